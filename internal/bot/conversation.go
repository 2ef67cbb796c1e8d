package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"recurring-planner/internal/model"
	"recurring-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageText
	stageDate
	stageTime
	stageDuration
	stageRecurrence
	stageCustom
	stageEnd
	stageEndCount
	stageEndDate
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageText})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what is it?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	skip := text == btnSkip

	switch state.stage {
	case stageText:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The task needs a name.", cancelKeyboard())
		}
		state.input.Text = text
		state.stage = stageDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "📅 <b>Step 2:</b> which day? <code>2025-11-30</code>, <code>30.11.2025</code>, today or tomorrow.", dateKeyboard())

	case stageDate:
		d, err := parseDay(text, b.today())
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "I cannot read that date. Try <code>2025-11-30</code>.", dateKeyboard())
		}
		state.input.Date = d
		state.stage = stageTime
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ <b>Step 3:</b> at what time? <code>07:30</code> or skip.", skipKeyboard())

	case stageTime:
		if !skip {
			clock, err := parseClock(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Use HH:MM, for example <code>18:45</code>, or skip.", skipKeyboard())
			}
			state.input.ScheduledTime = clock
		}
		state.stage = stageDuration
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏳ <b>Step 4:</b> how long? <code>45</code>, <code>1h30m</code> or skip.", skipKeyboard())

	case stageDuration:
		if !skip {
			minutes, err := parseMinutes(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Send minutes like <code>45</code> or <code>1h30m</code>, or skip.", skipKeyboard())
			}
			state.input.DurationMinutes = minutes
		}
		state.stage = stageRecurrence
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 <b>Step 5:</b> does it repeat?", recurrenceKeyboard())

	case stageRecurrence:
		return b.chooseRecurrence(ctx, msg, state, text)

	case stageCustom:
		rule, err := parseCustomRule(text, state.input.Date)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, escape(err.Error()), cancelKeyboard())
		}
		state.input.Rule = rule
		state.stage = stageEnd
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏁 When does it stop?", endKeyboard())

	case stageEnd:
		switch text {
		case btnNever:
			state.input.Rule.End = model.EndCondition{Kind: model.EndNever}
			return b.finishTaskCreation(ctx, msg, state.input)
		case btnAfterCount:
			state.stage = stageEndCount
			return b.sendWithReplyMarkup(msg.Chat.ID, "How many times?", cancelKeyboard())
		case btnUntil:
			state.stage = stageEndDate
			return b.sendWithReplyMarkup(msg.Chat.ID, "Last possible day?", cancelKeyboard())
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the buttons.", endKeyboard())

	case stageEndCount:
		count, err := strconv.Atoi(text)
		if err != nil || count < 1 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Send a positive number.", cancelKeyboard())
		}
		state.input.Rule.End = model.EndCondition{Kind: model.EndAfterCount, Count: count}
		return b.finishTaskCreation(ctx, msg, state.input)

	case stageEndDate:
		d, err := parseDay(text, b.today())
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "I cannot read that date. Try <code>2025-11-30</code>.", cancelKeyboard())
		}
		state.input.Rule.End = model.EndCondition{Kind: model.EndOnDate, OnDate: &d}
		return b.finishTaskCreation(ctx, msg, state.input)

	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "The dialog was reset. Start again with /newtask.")
	}
}

func (b *Bot) chooseRecurrence(ctx context.Context, msg *tgbotapi.Message, state *conversationState, choice string) error {
	var rule model.RecurrenceRule
	switch choice {
	case btnOnce:
		state.input.Rule = model.NoRecurrence()
		return b.finishTaskCreation(ctx, msg, state.input)
	case btnDaily:
		rule = model.RecurrenceRule{Frequency: model.FrequencyDaily, Interval: 1}
	case btnWeekdays:
		rule = model.RecurrenceRule{Frequency: model.FrequencyWeekdays, Interval: 1}
	case btnWeekly:
		rule = model.RecurrenceRule{Frequency: model.FrequencyWeekly, Interval: 1}
	case btnMonthly:
		var err error
		rule, err = nthWeekdayRule(state.input.Date)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, escape(err.Error()), recurrenceKeyboard())
		}
	case btnYearly:
		rule = model.RecurrenceRule{Frequency: model.FrequencyYearly, Interval: 1}
	case btnCustom:
		state.stage = stageCustom
		return b.sendWithReplyMarkup(msg.Chat.ID,
			"Describe it like <code>every 2 weeks on mon,thu</code>, <code>every 3 days</code> or <code>every 2 months on tue</code>.",
			cancelKeyboard())
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the buttons.", recurrenceKeyboard())
	}
	state.input.Rule = rule
	state.stage = stageEnd
	return b.sendWithReplyMarkup(msg.Chat.ID, "🏁 When does it stop?", endKeyboard())
}

func (b *Bot) finishTaskCreation(ctx context.Context, msg *tgbotapi.Message, input service.TaskInput) error {
	b.clearConversation(msg.From.ID)

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	created, err := b.taskSvc.AddTask(ctx, user.ID, input)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	log.Info().Uint("user", user.ID).Int("count", len(created)).Msg("task created")

	var summary strings.Builder
	summary.WriteString("✅ <b>Saved</b>\n")
	summary.WriteString(fmt.Sprintf("• %s\n", escape(created[0].Text)))
	summary.WriteString(fmt.Sprintf("• 📅 %s", created[0].Date.String()))
	if input.ScheduledTime != "" {
		summary.WriteString(" " + input.ScheduledTime)
	}
	if input.DurationMinutes > 0 {
		summary.WriteString(fmt.Sprintf(" (%d min)", input.DurationMinutes))
	}
	summary.WriteByte('\n')
	if created[0].InSeries() {
		summary.WriteString(fmt.Sprintf("• 🔁 %s\n", escape(describeRule(created[0].RecurrenceRule))))
		summary.WriteString(fmt.Sprintf("• %d occurrences planned, last on %s\n", len(created), created[len(created)-1].Date.String()))
	}
	return b.sendDay(ctx, msg.Chat.ID, msg.From.ID, user, created[0].Date, strings.TrimSpace(summary.String()))
}
