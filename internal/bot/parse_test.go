package bot

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
)

func TestParseDay(t *testing.T) {
	today := date.New(2024, time.March, 14)

	cases := map[string]date.Date{
		"":           today,
		"today":      today,
		"Tomorrow":   date.New(2024, time.March, 15),
		"yesterday":  date.New(2024, time.March, 13),
		"2024-12-31": date.New(2024, time.December, 31),
		"01.02.2025": date.New(2025, time.February, 1),
	}
	for in, want := range cases {
		got, err := parseDay(in, today)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%q: got %s", in, got)
	}

	for _, in := range []string{"soon", "31.02.2024", "2024-13-01"} {
		_, err := parseDay(in, today)
		assert.Error(t, err, in)
	}
}

func TestParseClock(t *testing.T) {
	got, err := parseClock("7:05")
	require.NoError(t, err)
	assert.Equal(t, "07:05", got)

	for _, in := range []string{"24:00", "12:60", "12", "12:5", "ab:cd"} {
		_, err := parseClock(in)
		assert.Error(t, err, in)
	}
}

func TestParseMinutes(t *testing.T) {
	cases := map[string]int{"45": 45, "45m": 45, "1h": 60, "1h30m": 90, "2H": 120}
	for in, want := range cases {
		got, err := parseMinutes(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"-5", "xh", "soon"} {
		_, err := parseMinutes(in)
		assert.Error(t, err, in)
	}
}

func TestNthWeekdayRule(t *testing.T) {
	// 2024-03-14 is the second Thursday of March.
	rule, err := nthWeekdayRule(date.New(2024, time.March, 14))
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyMonthly, rule.Frequency)
	assert.Equal(t, 2, rule.WeekOfMonth)
	assert.Equal(t, []model.Weekday{model.Thursday}, rule.DaysOfWeek)

	_, err = nthWeekdayRule(date.New(2024, time.March, 29))
	assert.Error(t, err)
}

func TestParseCustomRule(t *testing.T) {
	anchor := date.New(2024, time.March, 14)

	rule, err := parseCustomRule("every 2 weeks on mon,thu", anchor)
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyCustom, rule.Frequency)
	assert.Equal(t, model.FrequencyWeekly, rule.CustomFrequency)
	assert.Equal(t, 2, rule.Interval)
	assert.Equal(t, []model.Weekday{model.Monday, model.Thursday}, rule.DaysOfWeek)

	rule, err = parseCustomRule("every 3 months on thursday", anchor)
	require.NoError(t, err)
	assert.Equal(t, 2, rule.WeekOfMonth)

	rule, err = parseCustomRule("Every 10 days", anchor)
	require.NoError(t, err)
	assert.Equal(t, model.FrequencyDaily, rule.CustomFrequency)
	assert.Empty(t, rule.DaysOfWeek)

	for _, in := range []string{
		"each 2 weeks",
		"every 0 days",
		"every 2 fortnights",
		"every 2 days on mon",
		"every 2 weeks on funday",
		"every 1 months on mon,tue",
	} {
		_, err := parseCustomRule(in, anchor)
		assert.Error(t, err, in)
	}
}

func TestParseMood(t *testing.T) {
	m, err := parseMood("Great")
	require.NoError(t, err)
	assert.Equal(t, model.MoodGreat, m)

	m, err = parseMood("2")
	require.NoError(t, err)
	assert.Equal(t, model.MoodLow, m)

	m, err = parseMood("none")
	require.NoError(t, err)
	assert.Equal(t, model.MoodNone, m)

	_, err = parseMood("meh")
	assert.Error(t, err)
}

func TestNextStateCycles(t *testing.T) {
	s := model.StatePending
	seen := []model.CompletionState{s}
	for i := 0; i < 4; i++ {
		s = nextState(s)
		seen = append(seen, s)
	}
	assert.Equal(t, []model.CompletionState{
		model.StatePending, model.StateCompleted, model.StatePartial, model.StateAbandoned, model.StatePending,
	}, seen)
}

func TestSplitRef(t *testing.T) {
	n, rest, err := splitRef(" 3  Morning run ")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "Morning run", rest)

	n, rest, err = splitRef("2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, rest)

	_, _, err = splitRef("run 3")
	assert.Error(t, err)
	_, _, err = splitRef("0 x")
	assert.Error(t, err)
}

func TestDescribeRule(t *testing.T) {
	until := date.New(2024, time.June, 30)
	cases := []struct {
		rule model.RecurrenceRule
		want string
	}{
		{model.RecurrenceRule{Frequency: model.FrequencyNone}, "once"},
		{model.RecurrenceRule{Frequency: model.FrequencyWeekdays}, "every weekday"},
		{
			model.RecurrenceRule{Frequency: model.FrequencyMonthly, WeekOfMonth: 2, DaysOfWeek: []model.Weekday{model.Thursday}},
			"monthly, 2nd thursday",
		},
		{
			model.RecurrenceRule{
				Frequency: model.FrequencyCustom, CustomFrequency: model.FrequencyWeekly, Interval: 2,
				DaysOfWeek: []model.Weekday{model.Monday},
				End:        model.EndCondition{Kind: model.EndAfterCount, Count: 5},
			},
			"every 2 week(s) on monday, 5 times",
		},
		{
			model.RecurrenceRule{Frequency: model.FrequencyDaily, End: model.EndCondition{Kind: model.EndOnDate, OnDate: &until}},
			"every day, until 2024-06-30",
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, describeRule(tc.rule))
	}
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, userMessage(model.Invalid("text", "must not be empty")), "must not be empty")
	assert.Equal(t, "Task not found or already deleted.", userMessage(fmt.Errorf("get: %w", model.ErrNotFound)))
	assert.Contains(t, userMessage(model.ErrMissingSeriesContext), "not part of a series")

	assert.True(t, isServiceError(fmt.Errorf("batch: %w", model.ErrStoreConflict)))
	assert.False(t, isServiceError(errors.New("no task 3 in the last list")))
}

func TestDigestCountsToday(t *testing.T) {
	today := date.New(2024, time.March, 14)
	tasks := []model.Task{
		{Text: "a", Date: today, CompletionState: model.StateCompleted},
		{Text: "b", Date: today, CompletionState: model.StatePending},
		{Text: "c", Date: today.AddDays(1), CompletionState: model.StatePending},
	}

	text := digest(tasks, today, true)
	assert.Contains(t, text, "Watching your plan")
	assert.Contains(t, text, "Today: 2 tasks, 1 done, 1 pending.")
	assert.Contains(t, text, "Realization: 50%")

	assert.Contains(t, digest(nil, today, false), "Your plan changed")
}

func TestWatcherDeliversLatestSnapshot(t *testing.T) {
	w := newWatcher()
	type delivery struct {
		tasks   []model.Task
		initial bool
	}
	got := make(chan delivery, 4)
	go w.run(func(tasks []model.Task, initial bool) {
		got <- delivery{tasks, initial}
	})
	defer w.stop()

	w.push([]model.Task{{Text: "first"}})
	select {
	case d := <-got:
		assert.True(t, d.initial)
		require.Len(t, d.tasks, 1)
		assert.Equal(t, "first", d.tasks[0].Text)
	case <-time.After(time.Second):
		t.Fatal("no initial delivery")
	}

	w.push([]model.Task{{Text: "second"}})
	select {
	case d := <-got:
		assert.False(t, d.initial)
		assert.Equal(t, "second", d.tasks[0].Text)
	case <-time.After(time.Second):
		t.Fatal("no update delivery")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w := newWatcher()
	cancelled := 0
	w.cancel = func() { cancelled++ }
	w.stop()
	w.stop()
	assert.Equal(t, 1, cancelled)
}
