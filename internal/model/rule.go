package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"recurring-planner/internal/date"
)

// Frequency selects the repeat pattern of a RecurrenceRule.
type Frequency string

const (
	FrequencyNone     Frequency = "none"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyYearly   Frequency = "yearly"
	FrequencyWeekdays Frequency = "weekdays"
	FrequencyCustom   Frequency = "custom"
)

// Weekday is a lowercase English weekday name.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekdayCodes = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// Time converts the code to a time.Weekday.
func (w Weekday) Time() (time.Weekday, bool) {
	wd, ok := weekdayCodes[Weekday(strings.ToLower(string(w)))]
	return wd, ok
}

// WeekdayOf returns the code for a time.Weekday.
func WeekdayOf(wd time.Weekday) Weekday {
	return Weekday(strings.ToLower(wd.String()))
}

// EndKind tags an EndCondition.
type EndKind string

const (
	EndNever      EndKind = "never"
	EndOnDate     EndKind = "on_date"
	EndAfterCount EndKind = "after_count"
)

// EndCondition bounds a series: never, on a date (inclusive) or after a
// number of occurrences.
type EndCondition struct {
	Kind   EndKind    `json:"kind"`
	OnDate *date.Date `json:"onDate,omitempty"`
	Count  int        `json:"count,omitempty"`
}

// RecurrenceRule describes how a series repeats. It is denormalized onto
// every instance of the series.
type RecurrenceRule struct {
	Frequency  Frequency `json:"frequency"`
	Interval   int       `json:"interval,omitempty"`
	DaysOfWeek []Weekday `json:"daysOfWeek,omitempty"`
	// WeekOfMonth is 1-4 for the nth-weekday monthly shape.
	WeekOfMonth int `json:"weekOfMonth,omitempty"`
	// CustomFrequency picks the matcher shape when Frequency is custom.
	CustomFrequency Frequency    `json:"customFrequency,omitempty"`
	End             EndCondition `json:"end"`
}

// NoRecurrence is the rule of a one-off task.
func NoRecurrence() RecurrenceRule {
	return RecurrenceRule{Frequency: FrequencyNone, Interval: 1, End: EndCondition{Kind: EndNever}}
}

// IsRecurring reports whether the rule produces a series.
func (r RecurrenceRule) IsRecurring() bool {
	return r.Frequency != "" && r.Frequency != FrequencyNone
}

// Normalized fills defaults: empty frequency becomes none, a zero interval
// becomes 1 and an empty end kind becomes never.
func (r RecurrenceRule) Normalized() RecurrenceRule {
	if r.Frequency == "" {
		r.Frequency = FrequencyNone
	}
	if r.Interval == 0 {
		r.Interval = 1
	}
	if r.End.Kind == "" {
		r.End.Kind = EndNever
	}
	if len(r.DaysOfWeek) > 0 {
		days := make([]Weekday, len(r.DaysOfWeek))
		for i, d := range r.DaysOfWeek {
			days[i] = Weekday(strings.ToLower(string(d)))
		}
		r.DaysOfWeek = days
	}
	return r
}

// Validate checks the rule shape against the anchor date of its series.
func (r RecurrenceRule) Validate(anchor date.Date) error {
	switch r.Frequency {
	case FrequencyNone:
		return nil
	case FrequencyDaily, FrequencyWeekly, FrequencyWeekdays, FrequencyYearly:
	case FrequencyMonthly:
		if err := validateNthWeekday(r); err != nil {
			return err
		}
	case FrequencyCustom:
		switch r.CustomFrequency {
		case FrequencyDaily, FrequencyWeekly, FrequencyYearly:
		case FrequencyMonthly:
			if (r.WeekOfMonth > 0) != (len(r.DaysOfWeek) > 0) {
				return Invalid("rule", "custom monthly needs both week of month and weekday, or neither")
			}
			if r.WeekOfMonth > 0 {
				if err := validateNthWeekday(r); err != nil {
					return err
				}
			}
		default:
			return Invalid("rule", "custom frequency %q is not supported", r.CustomFrequency)
		}
	default:
		return Invalid("rule", "unknown frequency %q", r.Frequency)
	}

	if r.Interval <= 0 {
		return Invalid("interval", "must be positive, got %d", r.Interval)
	}
	for _, d := range r.DaysOfWeek {
		if _, ok := d.Time(); !ok {
			return Invalid("daysOfWeek", "unknown weekday %q", d)
		}
	}

	switch r.End.Kind {
	case EndNever:
	case EndOnDate:
		if r.End.OnDate == nil {
			return Invalid("end", "end date is required")
		}
		if r.End.OnDate.Before(anchor) {
			return Invalid("end", "end date %s is before start %s", r.End.OnDate, anchor)
		}
	case EndAfterCount:
		if r.End.Count <= 0 {
			return Invalid("end", "occurrence count must be positive, got %d", r.End.Count)
		}
	default:
		return Invalid("end", "unknown end condition %q", r.End.Kind)
	}
	return nil
}

func validateNthWeekday(r RecurrenceRule) error {
	if r.WeekOfMonth < 1 || r.WeekOfMonth > 4 {
		return Invalid("weekOfMonth", "must be between 1 and 4, got %d", r.WeekOfMonth)
	}
	if len(r.DaysOfWeek) == 0 {
		return Invalid("daysOfWeek", "a weekday is required for monthly rules")
	}
	return nil
}

// Value implements driver.Valuer; the rule is stored as JSON text.
func (r RecurrenceRule) Value() (driver.Value, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode rule: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (r *RecurrenceRule) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		*r = NoRecurrence()
		return nil
	default:
		return fmt.Errorf("rule: cannot scan %T", src)
	}
	var out RecurrenceRule
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode rule: %w", err)
	}
	*r = out
	return nil
}
