package model

import (
	"strings"
	"time"

	"recurring-planner/internal/date"
)

// Field names a task attribute that can be edited.
type Field string

const (
	FieldText            Field = "text"
	FieldScheduledTime   Field = "scheduledTime"
	FieldDurationMinutes Field = "durationMinutes"
	FieldRecurrenceRule  Field = "recurrenceRule"
	FieldDate            Field = "date"
	FieldCompletionState Field = "completionState"
	FieldMood            Field = "mood"
	FieldComments        Field = "comments"
)

// StructuralFields are propagated by a "this and following" edit. Every
// other field stays on the edited instance only.
var StructuralFields = []Field{
	FieldText,
	FieldScheduledTime,
	FieldDurationMinutes,
	FieldRecurrenceRule,
}

// InstanceLocalFields never propagate across a series.
var InstanceLocalFields = []Field{
	FieldMood,
	FieldComments,
	FieldCompletionState,
}

// IsStructural reports whether f belongs to StructuralFields.
func IsStructural(f Field) bool {
	for _, s := range StructuralFields {
		if s == f {
			return true
		}
	}
	return false
}

// TaskChanges is a partial update. Nil fields are left untouched.
type TaskChanges struct {
	Text            *string
	ScheduledTime   *string
	DurationMinutes *int
	RecurrenceRule  *RecurrenceRule
	Date            *date.Date
	CompletionState *CompletionState
	Mood            *Mood
	Comments        *string

	// DetachFromSeries clears the recurrence group of the updated instance.
	DetachFromSeries bool
}

type fieldAccess struct {
	set  func(c TaskChanges) bool
	copy func(dst *TaskChanges, src TaskChanges)
}

var fieldTable = map[Field]fieldAccess{
	FieldText: {
		set:  func(c TaskChanges) bool { return c.Text != nil },
		copy: func(dst *TaskChanges, src TaskChanges) { dst.Text = src.Text },
	},
	FieldScheduledTime: {
		set:  func(c TaskChanges) bool { return c.ScheduledTime != nil },
		copy: func(dst *TaskChanges, src TaskChanges) { dst.ScheduledTime = src.ScheduledTime },
	},
	FieldDurationMinutes: {
		set:  func(c TaskChanges) bool { return c.DurationMinutes != nil },
		copy: func(dst *TaskChanges, src TaskChanges) { dst.DurationMinutes = src.DurationMinutes },
	},
	FieldRecurrenceRule: {
		set:  func(c TaskChanges) bool { return c.RecurrenceRule != nil },
		copy: func(dst *TaskChanges, src TaskChanges) { dst.RecurrenceRule = src.RecurrenceRule },
	},
	FieldDate: {
		set:  func(c TaskChanges) bool { return c.Date != nil },
		copy: func(dst *TaskChanges, src TaskChanges) { dst.Date = src.Date },
	},
	FieldCompletionState: {
		set:  func(c TaskChanges) bool { return c.CompletionState != nil },
		copy: func(dst *TaskChanges, src TaskChanges) { dst.CompletionState = src.CompletionState },
	},
	FieldMood: {
		set:  func(c TaskChanges) bool { return c.Mood != nil },
		copy: func(dst *TaskChanges, src TaskChanges) { dst.Mood = src.Mood },
	},
	FieldComments: {
		set:  func(c TaskChanges) bool { return c.Comments != nil },
		copy: func(dst *TaskChanges, src TaskChanges) { dst.Comments = src.Comments },
	},
}

var fieldOrder = []Field{
	FieldText, FieldScheduledTime, FieldDurationMinutes, FieldRecurrenceRule,
	FieldDate, FieldCompletionState, FieldMood, FieldComments,
}

// Fields lists the fields c sets, in a fixed order.
func (c TaskChanges) Fields() []Field {
	var out []Field
	for _, f := range fieldOrder {
		if fieldTable[f].set(c) {
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether c changes nothing.
func (c TaskChanges) IsEmpty() bool {
	return len(c.Fields()) == 0 && !c.DetachFromSeries
}

// Only returns the subset of c whose fields satisfy keep.
func (c TaskChanges) Only(keep func(Field) bool) TaskChanges {
	var out TaskChanges
	for _, f := range c.Fields() {
		if keep(f) {
			fieldTable[f].copy(&out, c)
		}
	}
	return out
}

// Structural returns the propagatable subset of c.
func (c TaskChanges) Structural() TaskChanges {
	return c.Only(IsStructural)
}

// Validate checks the values carried by c.
func (c TaskChanges) Validate() error {
	if c.Text != nil && strings.TrimSpace(*c.Text) == "" {
		return Invalid("text", "must not be empty")
	}
	if c.ScheduledTime != nil {
		if err := ValidateClock(*c.ScheduledTime); err != nil {
			return err
		}
	}
	if c.DurationMinutes != nil && *c.DurationMinutes < 0 {
		return Invalid("durationMinutes", "must not be negative, got %d", *c.DurationMinutes)
	}
	if c.CompletionState != nil && !c.CompletionState.Valid() {
		return Invalid("completionState", "unknown state %q", *c.CompletionState)
	}
	if c.Mood != nil && !c.Mood.Valid() {
		return Invalid("mood", "unknown mood %q", *c.Mood)
	}
	return nil
}

// ApplyTo writes the set fields of c onto t.
func (c TaskChanges) ApplyTo(t *Task) {
	if c.Text != nil {
		t.Text = strings.TrimSpace(*c.Text)
	}
	if c.ScheduledTime != nil {
		t.ScheduledTime = *c.ScheduledTime
	}
	if c.DurationMinutes != nil {
		t.DurationMinutes = *c.DurationMinutes
	}
	if c.RecurrenceRule != nil {
		t.RecurrenceRule = *c.RecurrenceRule
	}
	if c.Date != nil {
		t.Date = *c.Date
	}
	if c.CompletionState != nil {
		t.CompletionState = *c.CompletionState
	}
	if c.Mood != nil {
		t.Mood = *c.Mood
	}
	if c.Comments != nil {
		t.Comments = *c.Comments
	}
	if c.DetachFromSeries {
		t.RecurrenceGroupID = nil
	}
}

// Columns maps c onto database column names for a partial update.
func (c TaskChanges) Columns() map[string]any {
	cols := make(map[string]any)
	if c.Text != nil {
		cols["text"] = strings.TrimSpace(*c.Text)
	}
	if c.ScheduledTime != nil {
		cols["scheduled_time"] = *c.ScheduledTime
	}
	if c.DurationMinutes != nil {
		cols["duration_minutes"] = *c.DurationMinutes
	}
	if c.RecurrenceRule != nil {
		cols["recurrence_rule"] = *c.RecurrenceRule
	}
	if c.Date != nil {
		cols["date"] = *c.Date
	}
	if c.CompletionState != nil {
		cols["completion_state"] = *c.CompletionState
	}
	if c.Mood != nil {
		cols["mood"] = *c.Mood
	}
	if c.Comments != nil {
		cols["comments"] = *c.Comments
	}
	if c.DetachFromSeries {
		cols["recurrence_group_id"] = nil
	}
	return cols
}

// ValidateClock accepts "" or a zero-padded HH:MM time of day. Clocks are
// ordered as strings, so "9:30" is rejected.
func ValidateClock(clock string) error {
	if clock == "" {
		return nil
	}
	if _, err := time.Parse("15:04", clock); err != nil || len(clock) != len("15:04") {
		return Invalid("scheduledTime", "expected HH:MM, got %q", clock)
	}
	return nil
}
