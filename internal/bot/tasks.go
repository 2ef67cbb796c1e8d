package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
	"recurring-planner/internal/series"
	"recurring-planner/internal/service"
)

func (b *Bot) handleDay(ctx context.Context, msg *tgbotapi.Message, args string) error {
	d, err := parseDay(args, b.today())
	if err != nil {
		return b.sendText(msg.Chat.ID, "I cannot read that date. Try /day 2025-11-30.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendDay(ctx, msg.Chat.ID, msg.From.ID, user, d, "")
}

func (b *Bot) handleWeek(ctx context.Context, msg *tgbotapi.Message, args string) error {
	d, err := parseDay(args, b.today())
	if err != nil {
		return b.sendText(msg.Chat.ID, "I cannot read that date. Try /week 2025-11-30.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	from := d.StartOfWeek()
	tasks, err := b.taskSvc.ListRange(ctx, user.ID, from, from.AddDays(6))
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	header := fmt.Sprintf("🗓 <b>Week of %s</b>", from.Format("02.01.2006"))
	return b.sendList(msg.Chat.ID, msg.From.ID, header, tasks, true)
}

// sendDay posts the list of day d, optionally preceded by a note line.
func (b *Bot) sendDay(ctx context.Context, chatID, telegramID int64, user *model.User, d date.Date, note string) error {
	tasks, err := b.taskSvc.ListDay(ctx, user.ID, d)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	header := fmt.Sprintf("📋 <b>%s</b>", d.Format("Monday, 02.01.2006"))
	if note != "" {
		header = note + "\n\n" + header
	}
	return b.sendList(chatID, telegramID, header, tasks, false)
}

// sendList renders tasks with numbered inline buttons and remembers the
// numbering for /rename, /mood, /comment and /delete.
func (b *Bot) sendList(chatID, telegramID int64, header string, tasks []model.Task, byDay bool) error {
	var builder strings.Builder
	builder.WriteString(header)
	builder.WriteString("\n")

	if len(tasks) == 0 {
		builder.WriteString("\n— nothing planned. Add a task with /newtask.")
		return b.sendText(chatID, builder.String())
	}

	ids := make([]string, 0, len(tasks))
	var buttons [][]tgbotapi.InlineKeyboardButton
	var lastDay date.Date
	for i, t := range tasks {
		if byDay && (i == 0 || !t.Date.Equal(lastDay)) {
			builder.WriteString(fmt.Sprintf("\n<b>%s</b>\n", t.Date.Format("Mon 02.01")))
			lastDay = t.Date
		}
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, service.FormatTask(t)))
		ids = append(ids, t.ID)
		buttons = append(buttons, taskButtons(i+1, t))
	}
	builder.WriteString("\nTap a task to change its state, 🗑 to delete.")
	b.setList(telegramID, ids)

	msg := tgbotapi.NewMessage(chatID, builder.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err := b.api.Send(msg)
	return err
}

// listedTask resolves "<n> rest" against the last list.
func (b *Bot) listedTask(ctx context.Context, msg *tgbotapi.Message, args string) (*model.User, *model.Task, string, error) {
	n, rest, err := splitRef(args)
	if err != nil {
		return nil, nil, "", err
	}
	id, ok := b.listed(msg.From.ID, n)
	if !ok {
		return nil, nil, "", fmt.Errorf("no task %d in the last list; open /day first", n)
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return nil, nil, "", err
	}
	task, err := b.taskSvc.GetTask(ctx, user.ID, id)
	if err != nil {
		return nil, nil, "", err
	}
	return user, task, rest, nil
}

func (b *Bot) handleRename(ctx context.Context, msg *tgbotapi.Message, args string) error {
	user, task, text, err := b.listedTask(ctx, msg, args)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	if text == "" {
		return b.sendText(msg.Chat.ID, "Usage: /rename 2 New name")
	}
	return b.applyEdit(ctx, msg.Chat.ID, msg.From, user, task, model.TaskChanges{Text: &text})
}

func (b *Bot) handleMood(ctx context.Context, msg *tgbotapi.Message, args string) error {
	user, task, text, err := b.listedTask(ctx, msg, args)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	mood, err := parseMood(text)
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	return b.applyEdit(ctx, msg.Chat.ID, msg.From, user, task, model.TaskChanges{Mood: &mood})
}

func (b *Bot) handleComment(ctx context.Context, msg *tgbotapi.Message, args string) error {
	user, task, text, err := b.listedTask(ctx, msg, args)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.applyEdit(ctx, msg.Chat.ID, msg.From, user, task, model.TaskChanges{Comments: &text})
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message, args string) error {
	_, task, _, err := b.listedTask(ctx, msg, args)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.askDelete(msg.Chat.ID, msg.From.ID, task)
}

// askDelete asks for a scope on series instances and for a plain
// confirmation otherwise.
func (b *Bot) askDelete(chatID, telegramID int64, task *model.Task) error {
	if task.InSeries() {
		b.setScope(telegramID, pendingAction{task: *task, delete: true})
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🗑 «%s» repeats. Delete only this day or this and the following ones?", escape(task.Text)), scopeKeyboard())
	}
	b.setConfirmation(telegramID, pendingAction{task: *task, delete: true})
	return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Delete «%s» on %s?", escape(task.Text), task.Date.String()), confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req pendingAction) error {
	switch strings.TrimSpace(msg.Text) {
	case btnConfirm:
		return b.runPending(ctx, msg.Chat.ID, msg.From, req, series.ScopeInstance)
	case btnCancel:
		return b.sendText(msg.Chat.ID, "Okay, nothing changed.")
	default:
		b.setConfirmation(msg.From.ID, req)
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel.", confirmKeyboard())
	}
}

// runPending executes a confirmed edit or deletion with the chosen scope.
func (b *Bot) runPending(ctx context.Context, chatID int64, from *tgbotapi.User, req pendingAction, scope series.Scope) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task := req.task
	if req.delete {
		var sctx *series.Context
		if scope == series.ScopeFollowing {
			sctx = &series.Context{RecurrenceGroupID: task.GroupID(), Date: task.Date}
		}
		if err := b.taskSvc.DeleteTask(ctx, user.ID, task.ID, scope, sctx); err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		log.Info().Uint("user", user.ID).Str("task", task.ID).Stringer("scope", scope).Msg("task deleted")
		return b.sendDay(ctx, chatID, from.ID, user, task.Date, fmt.Sprintf("🗑 «%s» deleted.", escape(task.Text)))
	}

	if err := b.taskSvc.UpdateTask(ctx, user.ID, task.ID, req.changes, scope); err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendDay(ctx, chatID, from.ID, user, task.Date, "✅ Saved.")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Warn().Err(err).Msg("callback ack")
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbStatePrefix):
		return b.cycleState(ctx, chatID, cb.From, strings.TrimPrefix(data, cbStatePrefix))

	case strings.HasPrefix(data, cbDeletePrefix):
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		task, err := b.taskSvc.GetTask(ctx, user.ID, strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return b.sendText(chatID, userMessage(err))
		}
		return b.askDelete(chatID, cb.From.ID, task)

	case strings.HasPrefix(data, cbScopePrefix):
		req, ok := b.takeScope(cb.From.ID)
		if !ok {
			return b.sendText(chatID, "That question has expired.")
		}
		n, err := strconv.Atoi(strings.TrimPrefix(data, cbScopePrefix))
		if err != nil {
			return nil
		}
		return b.runPending(ctx, chatID, cb.From, req, series.Scope(n))

	case data == cbCancel:
		b.takeScope(cb.From.ID)
		return b.sendText(chatID, "Okay, nothing changed.")
	}
	return nil
}

// cycleState advances the completion state of one instance. The state is
// instance-local, so no scope question is needed.
func (b *Bot) cycleState(ctx context.Context, chatID int64, from *tgbotapi.User, id string) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.GetTask(ctx, user.ID, id)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	next := nextState(task.CompletionState)
	if err := b.taskSvc.UpdateTask(ctx, user.ID, id, model.TaskChanges{CompletionState: &next}, series.ScopeInstance); err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendDay(ctx, chatID, from.ID, user, task.Date, fmt.Sprintf("%s «%s»", stateIcon(next), escape(task.Text)))
}

func (b *Bot) replyError(chatID int64, err error) error {
	if isServiceError(err) {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendText(chatID, escape(err.Error()))
}
