package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"recurring-planner/internal/config"
	"recurring-planner/internal/date"
	"recurring-planner/internal/ics"
	"recurring-planner/internal/model"
	"recurring-planner/internal/repository"
	"recurring-planner/internal/series"
	"recurring-planner/internal/service"
)

// pendingAction is an edit or deletion of a series instance waiting for the
// user to pick a scope.
type pendingAction struct {
	task    model.Task
	delete  bool
	changes model.TaskChanges
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api         *tgbotapi.BotAPI
	userRepo    *repository.UserRepository
	taskSvc     *service.TaskService
	reminderSvc *service.ReminderService
	cfg         config.Config
	loc         *time.Location
	// broadcast paces messages the bot sends on its own (reports, watch
	// digests) under the Telegram limit of ~30 messages per second.
	broadcast *rate.Limiter

	mu            sync.Mutex
	conversations map[int64]*conversationState
	confirmations map[int64]pendingAction
	scopes        map[int64]pendingAction
	lists         map[int64][]string
	watchers      map[int64]*watcher
}

func New(token string, userRepo *repository.UserRepository, taskSvc *service.TaskService, reminderSvc *service.ReminderService, cfg config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		taskSvc:       taskSvc,
		reminderSvc:   reminderSvc,
		cfg:           cfg,
		loc:           loc,
		broadcast:     rate.NewLimiter(rate.Limit(20), 5),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]pendingAction),
		scopes:        make(map[int64]pendingAction),
		lists:         make(map[int64][]string),
		watchers:      make(map[int64]*watcher),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
		b.stopWatchers()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Error().Err(err).Int64("chat", update.Message.Chat.ID).Msg("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) today() date.Date {
	return date.Today(b.loc)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && strings.TrimSpace(msg.Text) == btnCancelDialog {
		b.clearConversation(msg.From.ID)
		b.takeConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if msg.IsCommand() {
		log.Debug().Int64("from", msg.From.ID).Str("command", msg.Command()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if pending, ok := b.takeConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		log.Debug().Int64("from", msg.From.ID).Int("stage", int(state.stage)).Msg("conversation step")
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	args := msg.CommandArguments()
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "day", "tasks":
		return b.handleDay(ctx, msg, args)
	case "week":
		return b.handleWeek(ctx, msg, args)
	case "rename":
		return b.handleRename(ctx, msg, args)
	case "mood":
		return b.handleMood(ctx, msg, args)
	case "comment":
		return b.handleComment(ctx, msg, args)
	case "delete":
		return b.handleDelete(ctx, msg, args)
	case "report":
		return b.handleReport(ctx, msg)
	case "export":
		return b.handleExport(ctx, msg)
	case "watch":
		return b.handleWatch(ctx, msg)
	case "unwatch":
		return b.handleUnwatch(msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.takeConfirmation(msg.From.ID)
		b.takeScope(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelNewTask:
		return true, b.startNewTaskConversation(ctx, msg)
	case menuLabelToday:
		return true, b.handleDay(ctx, msg, "")
	case menuLabelWeek:
		return true, b.handleWeek(ctx, msg, "")
	case menuLabelHelp:
		return true, b.sendText(msg.Chat.ID, helpText)
	}
	return false, nil
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your day plan, including repeating tasks.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reminderSvc.DailySummary(ctx, user.ID, b.today())
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	tasks, err := b.taskSvc.ListAll(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "Nothing to export yet.")
	}

	var buf bytes.Buffer
	if err := ics.Write(&buf, tasks, ics.Options{Name: "Planner", Location: b.loc}); err != nil {
		log.Error().Err(err).Uint("user", user.ID).Msg("export calendar")
		return b.sendText(msg.Chat.ID, userMessage(err))
	}
	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: "planner.ics", Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("%d tasks", len(tasks))
	_, err = b.api.Send(doc)
	return err
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	today := b.today()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.broadcast.Wait(ctx); err != nil {
			return err
		}
		text, err := b.reminderSvc.DailySummary(ctx, user.ID, today)
		if err != nil {
			log.Error().Err(err).Int64("telegram", user.TelegramID).Msg("build summary")
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Error().Err(err).Int64("telegram", user.TelegramID).Msg("send summary")
		}
	}
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) takeConfirmation(userID int64) (pendingAction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	delete(b.confirmations, userID)
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req pendingAction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) takeScope(userID int64) (pendingAction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.scopes[userID]
	delete(b.scopes, userID)
	return req, ok
}

func (b *Bot) setScope(userID int64, req pendingAction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scopes[userID] = req
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) setList(userID int64, ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists[userID] = ids
}

// listed resolves the n-th task (1-based) of the user's last list.
func (b *Bot) listed(userID int64, n int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.lists[userID]
	if n < 1 || n > len(ids) {
		return "", false
	}
	return ids[n-1], true
}

// applyEdit runs changes on task directly, or asks for a scope first when
// the task belongs to a series.
func (b *Bot) applyEdit(ctx context.Context, chatID int64, from *tgbotapi.User, user *model.User, task *model.Task, changes model.TaskChanges) error {
	if task.InSeries() && !changes.Structural().IsEmpty() {
		b.setScope(from.ID, pendingAction{task: *task, changes: changes})
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("«%s» repeats. Change only this day or this and the following ones?", escape(task.Text)), scopeKeyboard())
	}
	if err := b.taskSvc.UpdateTask(ctx, user.ID, task.ID, changes, series.ScopeInstance); err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendDay(ctx, chatID, from.ID, user, task.Date, "✅ Saved.")
}
