package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"recurring-planner/internal/model"
	"recurring-planner/internal/series"
)

const (
	cbStatePrefix  = "st:"
	cbDeletePrefix = "del:"
	cbScopePrefix  = "sc:"
	cbCancel       = "cancel"
)

const (
	btnSkip         = "⏭️ Skip"
	btnToday        = "Today"
	btnTomorrow     = "Tomorrow"
	btnConfirm      = "✅ Confirm"
	btnCancel       = "↩️ Cancel"
	btnCancelDialog = "⏪ Cancel input"

	btnOnce     = "Once"
	btnDaily    = "Every day"
	btnWeekdays = "Weekdays"
	btnWeekly   = "Every week"
	btnMonthly  = "Monthly (same weekday)"
	btnYearly   = "Every year"
	btnCustom   = "Custom…"

	btnNever      = "Never ends"
	btnAfterCount = "After N times"
	btnUntil      = "Until a date"

	btnOnlyThis      = "Only this"
	btnThisFollowing = "This and following"

	menuLabelNewTask = "➕ New task"
	menuLabelToday   = "📋 Today"
	menuLabelWeek    = "🗓 Week"
	menuLabelHelp    = "ℹ️ Help"
)

func replyKeyboard(rows ...[]string) tgbotapi.ReplyKeyboardMarkup {
	kbRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		kbRows = append(kbRows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	kb := tgbotapi.NewReplyKeyboard(kbRows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := replyKeyboard(
		[]string{menuLabelNewTask, menuLabelToday},
		[]string{menuLabelWeek, menuLabelHelp},
	)
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]string{btnCancelDialog})
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]string{btnSkip}, []string{btnCancelDialog})
}

func dateKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]string{btnToday, btnTomorrow}, []string{btnCancelDialog})
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]string{btnConfirm, btnCancel})
}

func recurrenceKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard(
		[]string{btnOnce, btnDaily, btnWeekdays},
		[]string{btnWeekly, btnMonthly},
		[]string{btnYearly, btnCustom},
		[]string{btnCancelDialog},
	)
}

func endKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return replyKeyboard([]string{btnNever}, []string{btnAfterCount, btnUntil}, []string{btnCancelDialog})
}

// taskButtons is the inline row under each listed task.
func taskButtons(n int, t model.Task) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d · %s %s", n, stateIcon(t.CompletionState), shortText(t.Text, 20)), cbStatePrefix+t.ID),
		tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+t.ID),
	)
}

// scopeKeyboard asks how far a pending series action should reach.
func scopeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnOnlyThis, fmt.Sprintf("%s%d", cbScopePrefix, series.ScopeInstance)),
			tgbotapi.NewInlineKeyboardButtonData(btnThisFollowing, fmt.Sprintf("%s%d", cbScopePrefix, series.ScopeFollowing)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnCancel, cbCancel),
		),
	)
}

func stateIcon(s model.CompletionState) string {
	switch s {
	case model.StateCompleted:
		return "✅"
	case model.StatePartial:
		return "🌓"
	case model.StateAbandoned:
		return "✖️"
	}
	return "⬜"
}

func shortText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
