package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring-planner/internal/model"
)

func ptr[T any](v T) *T { return &v }

func allFields() model.TaskChanges {
	rule := model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 2}
	return model.TaskChanges{
		Text:            ptr("New"),
		ScheduledTime:   ptr("08:15"),
		DurationMinutes: ptr(45),
		RecurrenceRule:  &rule,
		CompletionState: ptr(model.StateCompleted),
		Mood:            ptr(model.MoodGreat),
		Comments:        ptr("felt good"),
	}
}

func TestFieldPartition(t *testing.T) {
	t.Parallel()

	assert.ElementsMatch(t,
		[]model.Field{model.FieldText, model.FieldScheduledTime, model.FieldDurationMinutes, model.FieldRecurrenceRule},
		model.StructuralFields)
	assert.ElementsMatch(t,
		[]model.Field{model.FieldMood, model.FieldComments, model.FieldCompletionState},
		model.InstanceLocalFields)

	for _, f := range model.InstanceLocalFields {
		assert.False(t, model.IsStructural(f), f)
	}
	assert.False(t, model.IsStructural(model.FieldDate))
}

func TestTaskChanges_Structural(t *testing.T) {
	t.Parallel()

	structural := allFields().Structural()

	assert.ElementsMatch(t, model.StructuralFields, structural.Fields())
	assert.Nil(t, structural.Mood)
	assert.Nil(t, structural.Comments)
	assert.Nil(t, structural.CompletionState)
	assert.Equal(t, "New", *structural.Text)
}

func TestTaskChanges_StructuralOfLocalOnlyIsEmpty(t *testing.T) {
	t.Parallel()

	changes := model.TaskChanges{Mood: ptr(model.MoodGreat), Comments: ptr("x")}
	assert.True(t, changes.Structural().IsEmpty())
	assert.False(t, changes.IsEmpty())
}

func TestTaskChanges_ApplyTo(t *testing.T) {
	t.Parallel()

	group := "g1"
	task := model.Task{Text: "Old", RecurrenceGroupID: &group}
	changes := allFields()
	changes.Text = ptr("  New  ")
	changes.DetachFromSeries = true

	changes.ApplyTo(&task)

	assert.Equal(t, "New", task.Text)
	assert.Equal(t, "08:15", task.ScheduledTime)
	assert.Equal(t, 45, task.DurationMinutes)
	assert.Equal(t, model.StateCompleted, task.CompletionState)
	assert.Equal(t, model.MoodGreat, task.Mood)
	assert.Equal(t, "felt good", task.Comments)
	assert.Equal(t, model.FrequencyDaily, task.RecurrenceRule.Frequency)
	assert.Nil(t, task.RecurrenceGroupID)
}

func TestTaskChanges_Columns(t *testing.T) {
	t.Parallel()

	cols := model.TaskChanges{
		Text:             ptr("a"),
		Mood:             ptr(model.MoodLow),
		DetachFromSeries: true,
	}.Columns()

	assert.Equal(t, map[string]any{
		"text":                "a",
		"mood":                model.MoodLow,
		"recurrence_group_id": nil,
	}, cols)
}

func TestTaskChanges_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		changes model.TaskChanges
		wantErr bool
	}{
		{"empty", model.TaskChanges{}, false},
		{"all valid", allFields(), false},
		{"blank text", model.TaskChanges{Text: ptr("   ")}, true},
		{"bad clock", model.TaskChanges{ScheduledTime: ptr("25:00")}, true},
		{"unpadded clock", model.TaskChanges{ScheduledTime: ptr("9:30")}, true},
		{"padded clock", model.TaskChanges{ScheduledTime: ptr("09:30")}, false},
		{"clear clock", model.TaskChanges{ScheduledTime: ptr("")}, false},
		{"negative duration", model.TaskChanges{DurationMinutes: ptr(-1)}, true},
		{"unknown state", model.TaskChanges{CompletionState: ptr(model.CompletionState("done"))}, true},
		{"unknown mood", model.TaskChanges{Mood: ptr(model.Mood("meh"))}, true},
		{"clear mood", model.TaskChanges{Mood: ptr(model.MoodNone)}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.changes.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrValidation))
		})
	}
}

func TestMoodScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, model.MoodTerrible.Score())
	assert.Equal(t, 5, model.MoodGreat.Score())
	assert.Equal(t, 0, model.MoodNone.Score())
}
