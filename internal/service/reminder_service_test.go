package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
	"recurring-planner/internal/series"
	"recurring-planner/internal/service"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	day := date.New(2024, time.January, 1)
	sum := service.Summarize(day, []model.Task{
		{CompletionState: model.StateCompleted, Mood: model.MoodGreat},
		{CompletionState: model.StatePartial, Mood: model.MoodLow},
		{CompletionState: model.StateAbandoned},
		{CompletionState: model.StatePending},
	})

	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 1, sum.Partial)
	assert.Equal(t, 1, sum.Abandoned)
	assert.Equal(t, 1, sum.Pending)
	assert.InDelta(t, 0.375, sum.Realization, 1e-9)
	assert.InDelta(t, 3.5, sum.Satisfaction, 1e-9)
	assert.Equal(t, 2, sum.MoodCount)

	empty := service.Summarize(day, nil)
	assert.Zero(t, empty.Realization)
	assert.Zero(t, empty.Satisfaction)
	assert.Contains(t, empty.Render(), "nothing planned")
}

func TestDailySummary(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	created := addWeeklyGym(t, svc)

	require.NoError(t, svc.UpdateTask(ctx, owner, created[0].ID, model.TaskChanges{
		CompletionState: ptr(model.StateCompleted),
		Mood:            ptr(model.MoodGood),
		Comments:        ptr("<b>felt strong</b>"),
	}, series.ScopeInstance))

	report, err := service.NewReminderService(svc).DailySummary(ctx, owner, date.New(2024, time.January, 1))
	require.NoError(t, err)

	assert.Contains(t, report, "Daily report")
	assert.Contains(t, report, "<b>07:30</b> Gym")
	assert.Contains(t, report, "&lt;b&gt;felt strong&lt;/b&gt;")
	assert.Contains(t, report, "Realization: 100%")
	assert.Contains(t, report, "Satisfaction: 4.0 / 5")
}
