package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
)

// DaySummary holds the wellness metrics of one day.
type DaySummary struct {
	Date  date.Date
	Tasks []model.Task

	Pending   int
	Completed int
	Partial   int
	Abandoned int

	// Realization is the share of the day's tasks that got done, a partial
	// task counting as half. Zero when the day is empty.
	Realization float64
	// Satisfaction is the average mood score (1..5) over tasks with a mood,
	// zero when no mood was recorded.
	Satisfaction float64
	MoodCount    int
}

// Summarize computes the metrics of tasks, which should all belong to day.
func Summarize(day date.Date, tasks []model.Task) DaySummary {
	sum := DaySummary{Date: day, Tasks: tasks}
	moodTotal := 0
	for _, t := range tasks {
		switch t.CompletionState {
		case model.StateCompleted:
			sum.Completed++
		case model.StatePartial:
			sum.Partial++
		case model.StateAbandoned:
			sum.Abandoned++
		default:
			sum.Pending++
		}
		if score := t.Mood.Score(); score > 0 {
			moodTotal += score
			sum.MoodCount++
		}
	}
	if n := len(tasks); n > 0 {
		sum.Realization = (float64(sum.Completed) + float64(sum.Partial)/2) / float64(n)
	}
	if sum.MoodCount > 0 {
		sum.Satisfaction = float64(moodTotal) / float64(sum.MoodCount)
	}
	return sum
}

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	tasks *TaskService
}

func NewReminderService(tasks *TaskService) *ReminderService {
	return &ReminderService{tasks: tasks}
}

// DailySummary renders the Telegram HTML report of the owner's day.
func (s *ReminderService) DailySummary(ctx context.Context, ownerID uint, day date.Date) (string, error) {
	tasks, err := s.tasks.ListDay(ctx, ownerID, day)
	if err != nil {
		return "", fmt.Errorf("daily summary: %w", err)
	}
	return Summarize(day, tasks).Render(), nil
}

// Render formats the summary as Telegram HTML.
func (s DaySummary) Render() string {
	var b strings.Builder
	b.WriteString("📋 <b>Daily report</b>\n")
	b.WriteString(fmt.Sprintf("🗓 %s\n\n", s.Date.Format("Mon 02.01.2006")))

	if len(s.Tasks) == 0 {
		b.WriteString("— nothing planned\n")
		return strings.TrimSpace(b.String())
	}

	for _, t := range s.Tasks {
		b.WriteString(FormatTask(t))
		b.WriteByte('\n')
	}

	b.WriteString(fmt.Sprintf("\n✅ %d done · 🌓 %d partial · ⏳ %d pending · ✖️ %d abandoned\n",
		s.Completed, s.Partial, s.Pending, s.Abandoned))
	b.WriteString(fmt.Sprintf("📈 Realization: %.0f%%\n", s.Realization*100))
	if s.MoodCount > 0 {
		b.WriteString(fmt.Sprintf("🙂 Satisfaction: %.1f / 5 (%d rated)\n", s.Satisfaction, s.MoodCount))
	} else {
		b.WriteString("🙂 Satisfaction: —\n")
	}
	return strings.TrimSpace(b.String())
}

var stateIcons = map[model.CompletionState]string{
	model.StatePending:   "⬜",
	model.StateCompleted: "✅",
	model.StatePartial:   "🌓",
	model.StateAbandoned: "✖️",
}

var moodIcons = map[model.Mood]string{
	model.MoodTerrible: "😫",
	model.MoodLow:      "😕",
	model.MoodNormal:   "😐",
	model.MoodGood:     "🙂",
	model.MoodGreat:    "😄",
}

// MoodIcon returns the emoji of m, or "" when unset.
func MoodIcon(m model.Mood) string {
	return moodIcons[m]
}

// FormatTask renders one task as a single HTML line with optional details.
func FormatTask(t model.Task) string {
	var sb strings.Builder

	icon := stateIcons[t.CompletionState]
	if icon == "" {
		icon = stateIcons[model.StatePending]
	}
	sb.WriteString(icon)
	if t.ScheduledTime != "" {
		sb.WriteString(" <b>" + t.ScheduledTime + "</b>")
	}
	sb.WriteString(" " + html.EscapeString(strings.TrimSpace(t.Text)))
	if t.DurationMinutes > 0 {
		sb.WriteString(fmt.Sprintf(" <i>(%d min)</i>", t.DurationMinutes))
	}
	if t.InSeries() {
		sb.WriteString(" ♻️")
	}
	if m := MoodIcon(t.Mood); m != "" {
		sb.WriteString(" " + m)
	}
	if c := strings.TrimSpace(t.Comments); c != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(c)))
	}
	return sb.String()
}
