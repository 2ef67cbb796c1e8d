package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
)

// parseDay accepts YYYY-MM-DD, DD.MM.YYYY, "today", "tomorrow" and
// "yesterday"; an empty string means today.
func parseDay(text string, today date.Date) (date.Date, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	case "yesterday":
		return today.AddDays(-1), nil
	}
	if d, err := date.Parse(strings.TrimSpace(text)); err == nil {
		return d, nil
	}
	var day, month, year int
	if _, err := fmt.Sscanf(strings.TrimSpace(text), "%d.%d.%d", &day, &month, &year); err == nil {
		d, err := date.Parse(fmt.Sprintf("%04d-%02d-%02d", year, month, day))
		if err == nil {
			return d, nil
		}
	}
	return date.Date{}, fmt.Errorf("cannot read date %q", text)
}

// parseClock accepts H:MM or HH:MM and returns HH:MM.
func parseClock(text string) (string, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("expected HH:MM, got %q", text)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", text)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return "", fmt.Errorf("invalid minute in %q", text)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// parseMinutes accepts "45", "45m", "1h" or "1h30m".
func parseMinutes(text string) (int, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if n, err := strconv.Atoi(text); err == nil {
		if n < 0 {
			return 0, errors.New("duration must not be negative")
		}
		return n, nil
	}
	total, hours, rest := 0, "", text
	if i := strings.Index(rest, "h"); i >= 0 {
		hours, rest = rest[:i], rest[i+1:]
		h, err := strconv.Atoi(hours)
		if err != nil || h < 0 {
			return 0, fmt.Errorf("cannot read duration %q", text)
		}
		total = h * 60
	}
	rest = strings.TrimSuffix(rest, "m")
	if rest != "" {
		m, err := strconv.Atoi(rest)
		if err != nil || m < 0 {
			return 0, fmt.Errorf("cannot read duration %q", text)
		}
		total += m
	}
	return total, nil
}

// nthWeekdayRule builds the monthly rule repeating on the same nth weekday
// as d, which must fall in the first four weeks of its month.
func nthWeekdayRule(d date.Date) (model.RecurrenceRule, error) {
	week := (d.Day()-1)/7 + 1
	if week > 4 {
		return model.RecurrenceRule{}, errors.New("the date is in the fifth week of its month; pick a day in the first four weeks")
	}
	return model.RecurrenceRule{
		Frequency:   model.FrequencyMonthly,
		Interval:    1,
		WeekOfMonth: week,
		DaysOfWeek:  []model.Weekday{model.WeekdayOf(d.Weekday())},
	}, nil
}

var unitFrequency = map[string]model.Frequency{
	"day": model.FrequencyDaily, "days": model.FrequencyDaily,
	"week": model.FrequencyWeekly, "weeks": model.FrequencyWeekly,
	"month": model.FrequencyMonthly, "months": model.FrequencyMonthly,
	"year": model.FrequencyYearly, "years": model.FrequencyYearly,
}

var weekdayAbbrev = map[string]model.Weekday{
	"mon": model.Monday, "tue": model.Tuesday, "wed": model.Wednesday,
	"thu": model.Thursday, "fri": model.Friday, "sat": model.Saturday, "sun": model.Sunday,
}

// parseCustomRule reads "every N <unit>[ on <days>]", for example
// "every 2 weeks on mon,thu" or "every 3 months". Monthly rules with days
// repeat on the same week of the month as anchor.
func parseCustomRule(text string, anchor date.Date) (model.RecurrenceRule, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) < 3 || fields[0] != "every" {
		return model.RecurrenceRule{}, fmt.Errorf("expected \"every N days|weeks|months|years\", got %q", text)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 {
		return model.RecurrenceRule{}, fmt.Errorf("interval must be a positive number, got %q", fields[1])
	}
	freq, ok := unitFrequency[fields[2]]
	if !ok {
		return model.RecurrenceRule{}, fmt.Errorf("unknown unit %q", fields[2])
	}
	rule := model.RecurrenceRule{Frequency: model.FrequencyCustom, CustomFrequency: freq, Interval: n}

	rest := fields[3:]
	if len(rest) == 0 {
		return rule, nil
	}
	if rest[0] != "on" || len(rest) < 2 {
		return model.RecurrenceRule{}, fmt.Errorf("unexpected %q", strings.Join(rest, " "))
	}
	if freq != model.FrequencyWeekly && freq != model.FrequencyMonthly {
		return model.RecurrenceRule{}, errors.New("days can only be given for weekly or monthly repeats")
	}
	for _, part := range strings.Split(strings.Join(rest[1:], ""), ",") {
		if part == "" {
			continue
		}
		wd, ok := weekdayAbbrev[part[:min(3, len(part))]]
		if !ok {
			return model.RecurrenceRule{}, fmt.Errorf("unknown weekday %q", part)
		}
		rule.DaysOfWeek = append(rule.DaysOfWeek, wd)
	}
	if freq == model.FrequencyMonthly {
		week := (anchor.Day()-1)/7 + 1
		if week > 4 || len(rule.DaysOfWeek) != 1 {
			return model.RecurrenceRule{}, errors.New("monthly repeats take one weekday and a start date in the first four weeks")
		}
		rule.WeekOfMonth = week
	}
	return rule, nil
}

var moodNames = map[string]model.Mood{
	"terrible": model.MoodTerrible, "1": model.MoodTerrible,
	"low": model.MoodLow, "2": model.MoodLow,
	"normal": model.MoodNormal, "3": model.MoodNormal,
	"good": model.MoodGood, "4": model.MoodGood,
	"great": model.MoodGreat, "5": model.MoodGreat,
	"none": model.MoodNone, "-": model.MoodNone,
}

func parseMood(text string) (model.Mood, error) {
	m, ok := moodNames[strings.ToLower(strings.TrimSpace(text))]
	if !ok {
		return "", fmt.Errorf("unknown mood %q; use terrible, low, normal, good, great or 1-5", text)
	}
	return m, nil
}

// nextState cycles pending → completed → partial → abandoned → pending.
func nextState(s model.CompletionState) model.CompletionState {
	switch s {
	case model.StatePending:
		return model.StateCompleted
	case model.StateCompleted:
		return model.StatePartial
	case model.StatePartial:
		return model.StateAbandoned
	}
	return model.StatePending
}

// splitRef splits "<n> rest of text" into the list number and the rest.
func splitRef(args string) (int, string, error) {
	args = strings.TrimSpace(args)
	head, rest, _ := strings.Cut(args, " ")
	n, err := strconv.Atoi(head)
	if err != nil || n < 1 {
		return 0, "", fmt.Errorf("expected a task number first, got %q", head)
	}
	return n, strings.TrimSpace(rest), nil
}

func describeRule(r model.RecurrenceRule) string {
	var s string
	switch r.Frequency {
	case model.FrequencyNone, "":
		return "once"
	case model.FrequencyDaily:
		s = "every day"
	case model.FrequencyWeekly:
		s = "every week"
	case model.FrequencyWeekdays:
		s = "every weekday"
	case model.FrequencyMonthly:
		s = fmt.Sprintf("monthly, %s %s", ordinal(r.WeekOfMonth), firstDay(r))
	case model.FrequencyYearly:
		s = "every year"
	case model.FrequencyCustom:
		s = fmt.Sprintf("every %d %s(s)", r.Interval, unitName(r.CustomFrequency))
		if len(r.DaysOfWeek) > 0 {
			days := make([]string, 0, len(r.DaysOfWeek))
			for _, d := range r.DaysOfWeek {
				days = append(days, string(d))
			}
			s += " on " + strings.Join(days, ", ")
		}
	default:
		s = string(r.Frequency)
	}
	switch r.End.Kind {
	case model.EndAfterCount:
		s += fmt.Sprintf(", %d times", r.End.Count)
	case model.EndOnDate:
		if r.End.OnDate != nil {
			s += ", until " + r.End.OnDate.String()
		}
	}
	return s
}

func unitName(f model.Frequency) string {
	switch f {
	case model.FrequencyDaily:
		return "day"
	case model.FrequencyWeekly:
		return "week"
	case model.FrequencyMonthly:
		return "month"
	case model.FrequencyYearly:
		return "year"
	}
	return string(f)
}

func firstDay(r model.RecurrenceRule) string {
	if len(r.DaysOfWeek) == 0 {
		return "?"
	}
	return string(r.DaysOfWeek[0])
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	}
	return fmt.Sprintf("%dth", n)
}
