// Package ics writes stored task instances as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
)

const (
	propRule  = ical.ComponentProperty("X-PLANNER-RRULE")
	propState = ical.ComponentProperty("X-PLANNER-STATE")
	propMood  = ical.ComponentProperty("X-PLANNER-MOOD")
)

// Options controls the exported calendar.
type Options struct {
	Name string
	// Location interprets scheduled times. Nil means time.Local.
	Location *time.Location
	// Now stamps DTSTAMP. Zero means time.Now.
	Now time.Time
}

// Write serializes tasks to w, one VEVENT per instance.
func Write(w io.Writer, tasks []model.Task, opts Options) error {
	cal, err := Calendar(tasks, opts)
	if err != nil {
		return err
	}
	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

// Calendar builds the iCalendar document for tasks. Timed tasks become
// timed events lasting their duration; the rest become all-day events.
func Calendar(tasks []model.Task, opts Options) (*ical.Calendar, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//recurring-planner//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, t := range tasks {
		ev := cal.AddEvent(t.ID + "@recurring-planner")
		ev.SetDtStampTime(opts.Now)
		if !t.CreatedAt.IsZero() {
			ev.SetCreatedTime(t.CreatedAt)
		}
		if !t.UpdatedAt.IsZero() {
			ev.SetModifiedAt(t.UpdatedAt)
		}
		ev.SetSummary(t.Text)
		if c := strings.TrimSpace(t.Comments); c != "" {
			ev.SetDescription(c)
		}

		if t.ScheduledTime == "" {
			ev.SetAllDayStartAt(t.Date.Time)
			ev.SetAllDayEndAt(t.Date.AddDays(1).Time)
		} else {
			start, err := t.Date.At(t.ScheduledTime, opts.Location)
			if err != nil {
				return nil, fmt.Errorf("task %s: %w", t.ID, err)
			}
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(time.Duration(t.DurationMinutes) * time.Minute))
		}

		ev.SetStatus(status(t.CompletionState))
		ev.SetProperty(propState, string(t.CompletionState))
		if t.Mood != model.MoodNone {
			ev.SetProperty(propMood, string(t.Mood))
		}
		if t.InSeries() {
			ev.AddProperty(ical.ComponentPropertyRelatedTo, t.GroupID())
			anchor := t.AnchorDate
			if anchor.IsZero() {
				anchor = t.Date
			}
			if r := RRule(t.RecurrenceRule, anchor); r != "" {
				ev.SetProperty(propRule, r)
			}
		}
	}
	return cal, nil
}

func status(s model.CompletionState) ical.ObjectStatus {
	switch s {
	case model.StateCompleted, model.StatePartial:
		return ical.ObjectStatusConfirmed
	case model.StateAbandoned:
		return ical.ObjectStatusCancelled
	}
	return ical.ObjectStatusTentative
}

var rruleDays = map[model.Weekday]rrule.Weekday{
	model.Monday:    rrule.MO,
	model.Tuesday:   rrule.TU,
	model.Wednesday: rrule.WE,
	model.Thursday:  rrule.TH,
	model.Friday:    rrule.FR,
	model.Saturday:  rrule.SA,
	model.Sunday:    rrule.SU,
}

// RRule renders rule as an RFC 5545 RRULE value, or "" for rules that do not
// recur or cannot be expressed.
func RRule(rule model.RecurrenceRule, anchor date.Date) string {
	rule = rule.Normalized()
	opt := rrule.ROption{Interval: rule.Interval}

	switch rule.Frequency {
	case model.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case model.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case model.FrequencyWeekdays:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 1
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	case model.FrequencyMonthly:
		wd, ok := nthWeekday(rule)
		if !ok {
			return ""
		}
		opt.Freq = rrule.MONTHLY
		opt.Interval = 1
		opt.Byweekday = []rrule.Weekday{wd}
	case model.FrequencyYearly:
		opt.Freq = rrule.YEARLY
		opt.Interval = 1
	case model.FrequencyCustom:
		if !customOption(rule, anchor, &opt) {
			return ""
		}
	default:
		return ""
	}

	switch rule.End.Kind {
	case model.EndOnDate:
		if rule.End.OnDate != nil {
			opt.Until = rule.End.OnDate.Time
		}
	case model.EndAfterCount:
		opt.Count = rule.End.Count
	}
	return opt.RRuleString()
}

func customOption(rule model.RecurrenceRule, anchor date.Date, opt *rrule.ROption) bool {
	switch rule.CustomFrequency {
	case model.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case model.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.DaysOfWeek {
			wd, ok := rruleDays[d]
			if !ok {
				return false
			}
			opt.Byweekday = append(opt.Byweekday, wd)
		}
	case model.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		if rule.WeekOfMonth == 0 && len(rule.DaysOfWeek) == 0 {
			opt.Bymonthday = []int{anchor.Day()}
			return true
		}
		wd, ok := nthWeekday(rule)
		if !ok {
			return false
		}
		opt.Byweekday = []rrule.Weekday{wd}
	case model.FrequencyYearly:
		opt.Freq = rrule.YEARLY
	default:
		return false
	}
	return true
}

func nthWeekday(rule model.RecurrenceRule) (rrule.Weekday, bool) {
	if len(rule.DaysOfWeek) == 0 || rule.WeekOfMonth < 1 || rule.WeekOfMonth > 4 {
		return rrule.Weekday{}, false
	}
	wd, ok := rruleDays[rule.DaysOfWeek[0]]
	if !ok {
		return rrule.Weekday{}, false
	}
	return wd.Nth(rule.WeekOfMonth), true
}
