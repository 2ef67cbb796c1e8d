package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"recurring-planner/internal/date"
)

// CompletionState tracks what happened to one occurrence.
type CompletionState string

const (
	StatePending   CompletionState = "pending"
	StateCompleted CompletionState = "completed"
	StatePartial   CompletionState = "partial"
	StateAbandoned CompletionState = "abandoned"
)

// Valid reports whether s is a known state.
func (s CompletionState) Valid() bool {
	switch s {
	case StatePending, StateCompleted, StatePartial, StateAbandoned:
		return true
	}
	return false
}

// Mood is the optional self-reported mood of an occurrence. Empty means unset.
type Mood string

const (
	MoodNone     Mood = ""
	MoodTerrible Mood = "terrible"
	MoodLow      Mood = "low"
	MoodNormal   Mood = "normal"
	MoodGood     Mood = "good"
	MoodGreat    Mood = "great"
)

// Score maps a mood onto 1..5; 0 for unset or unknown.
func (m Mood) Score() int {
	switch m {
	case MoodTerrible:
		return 1
	case MoodLow:
		return 2
	case MoodNormal:
		return 3
	case MoodGood:
		return 4
	case MoodGreat:
		return 5
	}
	return 0
}

// Valid reports whether m is unset or a known mood.
func (m Mood) Valid() bool {
	return m == MoodNone || m.Score() > 0
}

// Task is one concrete, dated occurrence.
type Task struct {
	ID                string          `gorm:"primaryKey;size:36"`
	OwnerID           uint            `gorm:"index:idx_owner_group_date,priority:1;index:idx_owner_date,priority:1"`
	Text              string          `gorm:"not null"`
	ScheduledTime     string          `gorm:"size:5"` // HH:MM, empty when unscheduled
	DurationMinutes   int             `gorm:"default:0"`
	Date              date.Date       `gorm:"type:text;index:idx_owner_group_date,priority:3;index:idx_owner_date,priority:2"`
	CompletionState   CompletionState `gorm:"size:16;default:pending"`
	Mood              Mood            `gorm:"size:16"`
	Comments          string
	RecurrenceGroupID *string        `gorm:"size:36;index:idx_owner_group_date,priority:2"`
	RecurrenceRule    RecurrenceRule `gorm:"type:text"`
	// AnchorDate is the first occurrence of the series (Date for one-off tasks).
	AnchorDate date.Date `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BeforeCreate assigns the store-side identifier.
func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CompletionState == "" {
		t.CompletionState = StatePending
	}
	return nil
}

// InSeries reports whether the task belongs to a recurrence group.
func (t Task) InSeries() bool {
	return t.RecurrenceGroupID != nil && *t.RecurrenceGroupID != ""
}

// GroupID returns the recurrence group id or "".
func (t Task) GroupID() string {
	if t.RecurrenceGroupID == nil {
		return ""
	}
	return *t.RecurrenceGroupID
}

// NewGroupID returns a fresh recurrence group identifier.
func NewGroupID() *string {
	id := uuid.NewString()
	return &id
}

// SortForDay orders tasks by date, then timed tasks by clock, then creation
// time. Unscheduled tasks follow the timed ones of the same day.
func SortForDay(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if (a.ScheduledTime == "") != (b.ScheduledTime == "") {
			return a.ScheduledTime != ""
		}
		if a.ScheduledTime != b.ScheduledTime {
			return a.ScheduledTime < b.ScheduledTime
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// TaskFilter narrows a store query. Nil fields do not filter.
type TaskFilter struct {
	RecurrenceGroupID *string
	From              *date.Date // inclusive
	To                *date.Date // inclusive
}
