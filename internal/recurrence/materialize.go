package recurrence

import (
	"strings"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
)

const (
	defaultHorizonMonths  = 1
	defaultMaxOccurrences = 500
	defaultMaxScanDays    = 36600
)

// Options bounds materialization.
type Options struct {
	// HorizonMonths is the lookahead for rules that never end. Zero means 1.
	HorizonMonths int
	// MaxOccurrences caps the number of dates returned. Zero means 500.
	MaxOccurrences int
	// MaxScanDays bounds the day walk of after-count rules that rarely
	// match. Zero means roughly a century.
	MaxScanDays int
}

func (o Options) withDefaults() Options {
	if o.HorizonMonths <= 0 {
		o.HorizonMonths = defaultHorizonMonths
	}
	if o.MaxOccurrences <= 0 {
		o.MaxOccurrences = defaultMaxOccurrences
	}
	if o.MaxScanDays <= 0 {
		o.MaxScanDays = defaultMaxScanDays
	}
	return o
}

// Result is the outcome of Materialize.
type Result struct {
	// Dates are strictly increasing, so no calendar day appears twice.
	Dates []date.Date
	// Truncated is set when MaxOccurrences or MaxScanDays cut the walk short.
	Truncated bool
}

// Horizon returns the last day Materialize will consider for rule, and false
// for after-count rules, which stop on the count instead.
func Horizon(rule model.RecurrenceRule, anchor date.Date, opts Options) (date.Date, bool) {
	opts = opts.withDefaults()
	switch rule.End.Kind {
	case model.EndOnDate:
		if rule.End.OnDate != nil {
			return *rule.End.OnDate, true
		}
	case model.EndAfterCount:
		if rule.End.Count > 0 {
			return date.Date{}, false
		}
	}
	return anchor.AddMonths(opts.HorizonMonths), true
}

// Materialize walks day by day from anchor and keeps every day OccursOn
// accepts, up to the horizon or the occurrence count. The result depends
// only on its inputs, so re-running it for a series yields the same dates.
func Materialize(rule model.RecurrenceRule, anchor date.Date, opts Options) Result {
	opts = opts.withDefaults()
	if !rule.IsRecurring() {
		return Result{Dates: []date.Date{anchor}}
	}

	horizon, bounded := Horizon(rule, anchor, opts)

	var res Result
	for i := 0; ; i++ {
		d := anchor.AddDays(i)
		if bounded && d.After(horizon) {
			return res
		}
		if !bounded && i >= opts.MaxScanDays {
			res.Truncated = true
			return res
		}
		if !OccursOn(rule, anchor, d) {
			continue
		}
		if len(res.Dates) == opts.MaxOccurrences {
			res.Truncated = true
			return res
		}
		res.Dates = append(res.Dates, d)
		if !bounded && len(res.Dates) == rule.End.Count {
			return res
		}
	}
}

// Extend returns the occurrences of rule strictly after after and on or
// before through. The walk starts at after+1, so MaxOccurrences caps only the
// new dates, however old the series is. For after-count rules the
// occurrences between anchor and after count against the total.
func Extend(rule model.RecurrenceRule, anchor, after, through date.Date, opts Options) Result {
	opts = opts.withDefaults()
	var res Result
	if !rule.IsRecurring() || !through.After(after) {
		return res
	}

	start := after.AddDays(1)
	if start.Before(anchor) {
		start = anchor
	}
	if rule.End.Kind == model.EndOnDate && rule.End.OnDate != nil && through.After(*rule.End.OnDate) {
		through = *rule.End.OnDate
	}

	remaining := -1
	if rule.End.Kind == model.EndAfterCount && rule.End.Count > 0 {
		remaining = rule.End.Count
		for d := anchor; d.Before(start); d = d.AddDays(1) {
			if OccursOn(rule, anchor, d) {
				remaining--
			}
		}
		if remaining <= 0 {
			return res
		}
	}

	for d := start; !d.After(through); d = d.AddDays(1) {
		if remaining == 0 {
			return res
		}
		if !OccursOn(rule, anchor, d) {
			continue
		}
		if len(res.Dates) == opts.MaxOccurrences {
			res.Truncated = true
			return res
		}
		res.Dates = append(res.Dates, d)
		if remaining > 0 {
			remaining--
		}
	}
	return res
}

// Instances builds one pending instance per date from seed. Structural
// fields come from seed; instance-local fields start empty.
func Instances(seed model.Task, groupID *string, anchor date.Date, dates []date.Date) []model.Task {
	out := make([]model.Task, 0, len(dates))
	for _, d := range dates {
		out = append(out, model.Task{
			OwnerID:           seed.OwnerID,
			Text:              strings.TrimSpace(seed.Text),
			ScheduledTime:     seed.ScheduledTime,
			DurationMinutes:   seed.DurationMinutes,
			RecurrenceRule:    seed.RecurrenceRule,
			RecurrenceGroupID: groupID,
			AnchorDate:        anchor,
			Date:              d,
			CompletionState:   model.StatePending,
			Mood:              model.MoodNone,
			Comments:          "",
		})
	}
	return out
}
