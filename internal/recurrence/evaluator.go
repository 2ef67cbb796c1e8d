// Package recurrence decides which calendar days a RecurrenceRule produces
// and expands a rule into concrete dates. Everything here is pure.
package recurrence

import (
	"time"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
)

// OccursOn reports whether rule, anchored at anchor, produces an occurrence
// on candidate. It never fails: malformed rules simply match nothing.
//
// An after-count end condition is not applied here; counting belongs to
// Materialize.
func OccursOn(rule model.RecurrenceRule, anchor, candidate date.Date) bool {
	if candidate.Before(anchor) {
		return false
	}
	if rule.End.Kind == model.EndOnDate && rule.End.OnDate != nil && candidate.After(*rule.End.OnDate) {
		return false
	}

	switch rule.Frequency {
	case model.FrequencyNone, "":
		return candidate.Equal(anchor)
	case model.FrequencyDaily:
		return everyNDays(anchor, candidate, rule.Interval)
	case model.FrequencyWeekly:
		return candidate.Weekday() == anchor.Weekday() && everyNWeeks(anchor, candidate, rule.Interval)
	case model.FrequencyWeekdays:
		return isWorkday(candidate.Weekday())
	case model.FrequencyMonthly:
		return isNthWeekday(rule, candidate)
	case model.FrequencyYearly:
		return sameMonthDay(anchor, candidate)
	case model.FrequencyCustom:
		return matchCustom(rule, anchor, candidate)
	}
	return false
}

func matchCustom(rule model.RecurrenceRule, anchor, candidate date.Date) bool {
	if rule.Interval <= 0 {
		return false
	}
	switch rule.CustomFrequency {
	case model.FrequencyDaily:
		return everyNDays(anchor, candidate, rule.Interval)
	case model.FrequencyWeekly:
		if !onAnyWeekday(rule.DaysOfWeek, anchor.Weekday(), candidate.Weekday()) {
			return false
		}
		weeks := candidate.StartOfWeek().DaysSince(anchor.StartOfWeek()) / 7
		return weeks%rule.Interval == 0
	case model.FrequencyMonthly:
		if candidate.MonthsSince(anchor)%rule.Interval != 0 {
			return false
		}
		switch {
		case rule.WeekOfMonth > 0 && len(rule.DaysOfWeek) > 0:
			return isNthWeekday(rule, candidate)
		case rule.WeekOfMonth == 0 && len(rule.DaysOfWeek) == 0:
			return candidate.Day() == anchor.Day()
		default:
			return false
		}
	case model.FrequencyYearly:
		return sameMonthDay(anchor, candidate) && (candidate.Year()-anchor.Year())%rule.Interval == 0
	}
	return false
}

func everyNDays(anchor, candidate date.Date, interval int) bool {
	if interval <= 0 {
		return false
	}
	diff := candidate.DaysSince(anchor)
	return diff >= 0 && diff%interval == 0
}

func everyNWeeks(anchor, candidate date.Date, interval int) bool {
	if interval <= 0 {
		return false
	}
	weeks := candidate.DaysSince(anchor) / 7
	return weeks%interval == 0
}

// isNthWeekday matches the rule.WeekOfMonth-th occurrence of
// rule.DaysOfWeek[0] within candidate's month.
func isNthWeekday(rule model.RecurrenceRule, candidate date.Date) bool {
	if rule.WeekOfMonth < 1 || len(rule.DaysOfWeek) == 0 {
		return false
	}
	wd, ok := rule.DaysOfWeek[0].Time()
	if !ok || candidate.Weekday() != wd {
		return false
	}
	return (candidate.Day()-1)/7+1 == rule.WeekOfMonth
}

func sameMonthDay(a, b date.Date) bool {
	return a.Month() == b.Month() && a.Day() == b.Day()
}

func isWorkday(wd time.Weekday) bool {
	return wd >= time.Monday && wd <= time.Friday
}

// onAnyWeekday checks wd against days; an empty set means the anchor's weekday.
func onAnyWeekday(days []model.Weekday, anchorDay, wd time.Weekday) bool {
	if len(days) == 0 {
		return wd == anchorDay
	}
	for _, d := range days {
		if t, ok := d.Time(); ok && t == wd {
			return true
		}
	}
	return false
}
