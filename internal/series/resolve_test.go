package series_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
	"recurring-planner/internal/series"
)

func ptr[T any](v T) *T { return &v }

// weeklySeries builds the five Monday instances of January 2024.
func weeklySeries(group string) []model.Task {
	anchor := date.New(2024, time.January, 1)
	rule := model.RecurrenceRule{Frequency: model.FrequencyWeekly, Interval: 1, End: model.EndCondition{Kind: model.EndNever}}
	var out []model.Task
	for i := 0; i < 5; i++ {
		out = append(out, model.Task{
			ID:                fmt.Sprintf("t%d", i),
			Text:              "Gym",
			Date:              anchor.AddDays(7 * i),
			AnchorDate:        anchor,
			RecurrenceGroupID: ptr(group),
			RecurrenceRule:    rule,
			CompletionState:   model.StatePending,
		})
	}
	return out
}

func idsOf(plan series.Plan, kind model.OpKind) []string {
	var ids []string
	for _, op := range plan {
		if op.Kind == kind {
			ids = append(ids, op.ID)
		}
	}
	return ids
}

func TestResolveUpdate_InstanceScopeAppliesVerbatim(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("g")
	changes := model.TaskChanges{Text: ptr("Swim"), Mood: ptr(model.MoodGreat)}

	plan, err := series.ResolveUpdate(tasks[2], tasks, changes, series.ScopeInstance)
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, "t2", plan[0].ID)
	assert.Equal(t, "Swim", *plan[0].Changes.Text)
	assert.Equal(t, model.MoodGreat, *plan[0].Changes.Mood)
}

func TestResolveUpdate_FollowingPropagatesStructuralOnly(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("g")
	changes := model.TaskChanges{Text: ptr("New"), Mood: ptr(model.MoodGreat), Comments: ptr("note")}

	plan, err := series.ResolveUpdate(tasks[2], tasks, changes, series.ScopeFollowing)
	require.NoError(t, err)

	assert.Equal(t, []string{"t2", "t3", "t4"}, idsOf(plan, model.OpUpdate))
	for _, op := range plan {
		assert.Equal(t, "New", *op.Changes.Text)
		if op.ID == "t2" {
			assert.Equal(t, model.MoodGreat, *op.Changes.Mood)
			assert.Equal(t, "note", *op.Changes.Comments)
			continue
		}
		assert.Nil(t, op.Changes.Mood, op.ID)
		assert.Nil(t, op.Changes.Comments, op.ID)
	}
}

func TestResolveUpdate_FollowingMoodNeverReachesSiblings(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("g")

	plan, err := series.ResolveUpdate(tasks[1], tasks, model.TaskChanges{Mood: ptr(model.MoodGreat)}, series.ScopeFollowing)
	require.NoError(t, err)

	assert.Equal(t, []string{"t1"}, idsOf(plan, model.OpUpdate))
}

func TestResolveUpdate_FollowingIgnoresOtherSeries(t *testing.T) {
	t.Parallel()

	tasks := append(weeklySeries("g"), weeklySeries("other")...)
	for i := 5; i < len(tasks); i++ {
		tasks[i].ID = fmt.Sprintf("o%d", i)
	}

	plan, err := series.ResolveUpdate(tasks[3], tasks, model.TaskChanges{Text: ptr("x")}, series.ScopeFollowing)
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t4"}, idsOf(plan, model.OpUpdate))
}

func TestResolveUpdate_FollowingRequiresSeries(t *testing.T) {
	t.Parallel()

	oneOff := model.Task{ID: "solo", Text: "x", Date: date.New(2024, time.January, 1)}

	_, err := series.ResolveUpdate(oneOff, nil, model.TaskChanges{Text: ptr("y")}, series.ScopeFollowing)
	assert.ErrorIs(t, err, model.ErrMissingSeriesContext)
}

func TestResolveUpdate_RuleChanges(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("g")
	none := model.NoRecurrence()
	daily := model.RecurrenceRule{Frequency: model.FrequencyDaily}

	// Dropping the recurrence on one instance detaches it.
	plan, err := series.ResolveUpdate(tasks[1], tasks, model.TaskChanges{RecurrenceRule: &none}, series.ScopeInstance)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.True(t, plan[0].Changes.DetachFromSeries)

	// Stopping a whole tail of the series is not a structural edit.
	_, err = series.ResolveUpdate(tasks[1], tasks, model.TaskChanges{RecurrenceRule: &none}, series.ScopeFollowing)
	assert.ErrorIs(t, err, model.ErrValidation)

	// A new recurring rule propagates, normalized.
	plan, err = series.ResolveUpdate(tasks[3], tasks, model.TaskChanges{RecurrenceRule: &daily}, series.ScopeFollowing)
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t4"}, idsOf(plan, model.OpUpdate))
	assert.Equal(t, 1, plan[1].Changes.RecurrenceRule.Interval)

	// A one-off cannot become a series in place.
	oneOff := model.Task{ID: "solo", Text: "x", Date: date.New(2024, time.January, 1), AnchorDate: date.New(2024, time.January, 1)}
	_, err = series.ResolveUpdate(oneOff, nil, model.TaskChanges{RecurrenceRule: &daily}, series.ScopeInstance)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestResolveUpdate_RejectsDateCollision(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("g")

	_, err := series.ResolveUpdate(tasks[0], tasks, model.TaskChanges{Date: &tasks[1].Date}, series.ScopeInstance)
	assert.ErrorIs(t, err, model.ErrValidation)

	free := tasks[0].Date.AddDays(1)
	plan, err := series.ResolveUpdate(tasks[0], tasks, model.TaskChanges{Date: &free}, series.ScopeInstance)
	require.NoError(t, err)
	assert.Len(t, plan, 1)
}

func TestResolveUpdate_InvalidChanges(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("g")
	_, err := series.ResolveUpdate(tasks[0], tasks, model.TaskChanges{Text: ptr(" ")}, series.ScopeInstance)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestResolveDelete_Instance(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("g")
	plan, err := series.ResolveDelete(tasks[2], tasks, nil, series.ScopeInstance)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, idsOf(plan, model.OpDelete))
}

func TestResolveDelete_FollowingFromMidSeries(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("G")
	ctx := &series.Context{RecurrenceGroupID: "G", Date: date.New(2024, time.January, 15)}

	plan, err := series.ResolveDelete(tasks[2], tasks, ctx, series.ScopeFollowing)
	require.NoError(t, err)

	assert.Equal(t, []string{"t2", "t3", "t4"}, idsOf(plan, model.OpDelete))
}

func TestResolveDelete_FollowingNeedsContext(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("G")

	_, err := series.ResolveDelete(tasks[2], tasks, nil, series.ScopeFollowing)
	assert.ErrorIs(t, err, model.ErrMissingSeriesContext)

	_, err = series.ResolveDelete(tasks[2], tasks, &series.Context{RecurrenceGroupID: "G"}, series.ScopeFollowing)
	assert.ErrorIs(t, err, model.ErrMissingSeriesContext)
}

func TestFollowing(t *testing.T) {
	t.Parallel()

	tasks := weeklySeries("G")
	from := date.New(2024, time.January, 15)

	assert.Len(t, series.Following(tasks, "G", from, true), 3)
	assert.Len(t, series.Following(tasks, "G", from, false), 2)
	assert.Empty(t, series.Following(tasks, "nope", from, true))
}
