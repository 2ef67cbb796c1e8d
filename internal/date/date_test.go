package date_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring-planner/internal/date"
)

func TestParseAndString(t *testing.T) {
	t.Parallel()

	d, err := date.Parse("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", d.String())
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = date.Parse("15.01.2024")
	require.Error(t, err)
}

func TestArithmetic(t *testing.T) {
	t.Parallel()

	anchor := date.New(2024, time.January, 1)

	assert.Equal(t, "2024-01-29", anchor.AddDays(28).String())
	assert.Equal(t, "2024-02-01", anchor.AddMonths(1).String())
	assert.Equal(t, 28, anchor.AddDays(28).DaysSince(anchor))
	assert.Equal(t, -3, anchor.AddDays(-3).DaysSince(anchor))
	assert.Equal(t, 13, date.New(2025, time.February, 27).MonthsSince(anchor))

	// 2024-03-31 lies across the EU DST switch; UTC dates are unaffected.
	assert.Equal(t, 1, date.New(2024, time.April, 1).DaysSince(date.New(2024, time.March, 31)))
}

func TestStartOfWeek(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   date.Date
		want string
	}{
		{date.New(2024, time.January, 1), "2024-01-01"},
		{date.New(2024, time.January, 3), "2024-01-01"},
		{date.New(2024, time.January, 7), "2024-01-01"},
		{date.New(2024, time.January, 8), "2024-01-08"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.StartOfWeek().String(), tt.in.String())
	}
}

func TestComparisons(t *testing.T) {
	t.Parallel()

	a := date.New(2024, time.January, 1)
	b := date.New(2024, time.January, 2)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(date.Of(time.Date(2024, 1, 1, 23, 59, 0, 0, time.Local))))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 0, a.Compare(a))
}

func TestAt(t *testing.T) {
	t.Parallel()

	d := date.New(2024, time.January, 1)
	at, err := d.At("09:30", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), at)

	_, err = d.At("9h", time.UTC)
	require.Error(t, err)
}

func TestScanAndValue(t *testing.T) {
	t.Parallel()

	d := date.New(2024, time.February, 29)
	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", v)

	var scanned date.Date
	require.NoError(t, scanned.Scan("2024-02-29"))
	assert.True(t, scanned.Equal(d))

	require.NoError(t, scanned.Scan([]byte("2024-03-01 00:00:00")))
	assert.Equal(t, "2024-03-01", scanned.String())

	require.Error(t, scanned.Scan(42))
}

func TestJSON(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(date.New(2024, time.May, 5))
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-05-05"`, string(raw))

	var d date.Date
	require.NoError(t, json.Unmarshal(raw, &d))
	assert.Equal(t, "2024-05-05", d.String())
}
