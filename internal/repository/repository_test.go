package repository_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
	"recurring-planner/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func ptr[T any](v T) *T { return &v }

func oneOff(owner uint, text string, d date.Date) *model.Task {
	return &model.Task{OwnerID: owner, Text: text, Date: d, AnchorDate: d, RecurrenceRule: model.NoRecurrence()}
}

func TestTaskRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTaskRepository(newTestDB(t), nil)
	day := date.New(2024, time.March, 4)

	id, err := repo.Create(ctx, oneOff(1, "Read", day))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.Get(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "Read", got.Text)
	assert.True(t, got.Date.Equal(day))
	assert.Equal(t, model.StatePending, got.CompletionState)
	assert.Equal(t, model.FrequencyNone, got.RecurrenceRule.Frequency)

	err = repo.Update(ctx, 1, id, model.TaskChanges{
		Text:            ptr("Read a book"),
		Mood:            ptr(model.MoodGood),
		CompletionState: ptr(model.StatePartial),
	})
	require.NoError(t, err)

	got, err = repo.Get(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, "Read a book", got.Text)
	assert.Equal(t, model.MoodGood, got.Mood)
	assert.Equal(t, model.StatePartial, got.CompletionState)

	require.NoError(t, repo.Delete(ctx, 1, id))
	_, err = repo.Get(ctx, 1, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 1, id), model.ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, 1, id, model.TaskChanges{Text: ptr("x")}), model.ErrNotFound)
}

func TestTaskRepository_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTaskRepository(newTestDB(t), nil)

	id, err := repo.Create(ctx, oneOff(1, "Mine", date.New(2024, time.March, 4)))
	require.NoError(t, err)

	_, err = repo.Get(ctx, 2, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 2, id), model.ErrNotFound)

	tasks, err := repo.Query(ctx, 2, model.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskRepository_QueryFilters(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTaskRepository(newTestDB(t), nil)
	start := date.New(2024, time.January, 1)
	group := model.NewGroupID()

	var ops []model.WriteOp
	for i := 0; i < 4; i++ {
		d := start.AddDays(7 * i)
		ops = append(ops, model.CreateOp(model.Task{
			Text:              "Gym",
			Date:              d,
			AnchorDate:        start,
			RecurrenceGroupID: group,
			RecurrenceRule:    model.RecurrenceRule{Frequency: model.FrequencyWeekly, Interval: 1, End: model.EndCondition{Kind: model.EndNever}},
		}))
	}
	require.NoError(t, repo.BatchWrite(ctx, 1, ops))
	_, err := repo.Create(ctx, oneOff(1, "Dentist", start.AddDays(8)))
	require.NoError(t, err)

	all, err := repo.Query(ctx, 1, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	series, err := repo.Query(ctx, 1, model.TaskFilter{RecurrenceGroupID: group})
	require.NoError(t, err)
	require.Len(t, series, 4)
	assert.Equal(t, model.FrequencyWeekly, series[0].RecurrenceRule.Frequency)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].Date.Before(series[i].Date))
	}

	from, to := start.AddDays(7), start.AddDays(14)
	window, err := repo.Query(ctx, 1, model.TaskFilter{From: &from, To: &to})
	require.NoError(t, err)
	var texts []string
	for _, task := range window {
		texts = append(texts, task.Date.String()+" "+task.Text)
	}
	assert.Equal(t, []string{"2024-01-08 Gym", "2024-01-09 Dentist", "2024-01-15 Gym"}, texts)
}

func TestTaskRepository_BatchWriteIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTaskRepository(newTestDB(t), nil)
	day := date.New(2024, time.May, 1)

	id, err := repo.Create(ctx, oneOff(1, "Keep", day))
	require.NoError(t, err)

	err = repo.BatchWrite(ctx, 1, []model.WriteOp{
		model.UpdateOp(id, model.TaskChanges{Text: ptr("Changed")}),
		model.CreateOp(*oneOff(0, "New", day)),
		model.DeleteOp("missing"),
	})
	require.ErrorIs(t, err, model.ErrStoreConflict)
	assert.ErrorIs(t, err, model.ErrNotFound)

	tasks, err := repo.Query(ctx, 1, model.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Keep", tasks[0].Text)
}

func TestTaskRepository_BatchWriteDetach(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTaskRepository(newTestDB(t), nil)
	day := date.New(2024, time.May, 1)

	task := oneOff(1, "Walk", day)
	task.RecurrenceGroupID = model.NewGroupID()
	id, err := repo.Create(ctx, task)
	require.NoError(t, err)

	none := model.NoRecurrence()
	require.NoError(t, repo.BatchWrite(ctx, 1, []model.WriteOp{
		model.UpdateOp(id, model.TaskChanges{RecurrenceRule: &none, DetachFromSeries: true}),
	}))

	got, err := repo.Get(ctx, 1, id)
	require.NoError(t, err)
	assert.False(t, got.InSeries())
}

func TestTaskRepository_Subscribe(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTaskRepository(newTestDB(t), repository.NewNotifier())
	day := date.New(2024, time.June, 3)

	var (
		mu     sync.Mutex
		counts []int
	)
	unsubscribe, err := repo.Subscribe(ctx, 1, func(tasks []model.Task) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, len(tasks))
	})
	require.NoError(t, err)

	id, err := repo.Create(ctx, oneOff(1, "A", day))
	require.NoError(t, err)
	_, err = repo.Create(ctx, oneOff(2, "Other owner", day))
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, 1, id, model.TaskChanges{Comments: ptr("ok")}))

	unsubscribe()
	unsubscribe()

	_, err = repo.Create(ctx, oneOff(1, "B", day))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 1}, counts)
}

func TestTaskRepository_SubscribeEndsOnLatestList(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTaskRepository(newTestDB(t), repository.NewNotifier())
	day := date.New(2024, time.June, 3)
	const writers = 8

	var (
		mu   sync.Mutex
		last []model.Task
	)
	record := func(tasks []model.Task) {
		mu.Lock()
		defer mu.Unlock()
		last = tasks
	}

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, oneOff(1, fmt.Sprintf("task %d", i), day))
			assert.NoError(t, err)
		}(i)
	}
	unsubscribe, err := repo.Subscribe(ctx, 1, record)
	require.NoError(t, err)
	defer unsubscribe()
	wg.Wait()

	stored, err := repo.Query(ctx, 1, model.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, stored, writers)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, last, writers)
}

func TestTaskRepository_ListOwners(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewTaskRepository(newTestDB(t), nil)
	day := date.New(2024, time.June, 3)

	for _, owner := range []uint{3, 1, 3} {
		_, err := repo.Create(ctx, oneOff(owner, "x", day))
		require.NoError(t, err)
	}

	owners, err := repo.ListOwners(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 3}, owners)
}

func TestUserRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewUserRepository(newTestDB(t))

	first, err := repo.UpsertFromTelegram(ctx, 42, "Ann", "", "ann")
	require.NoError(t, err)

	second, err := repo.UpsertFromTelegram(ctx, 42, "Anna", "Lee", "anna")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	found, err := repo.FindByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Anna", found.FirstName)
	assert.Equal(t, "anna", found.Username)

	byID, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), byID.TelegramID)

	_, err = repo.FindByTelegramID(ctx, 7)
	assert.ErrorIs(t, err, model.ErrNotFound)

	users, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
