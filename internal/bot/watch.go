package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"recurring-planner/internal/date"
	"recurring-planner/internal/model"
	"recurring-planner/internal/service"
)

// watcher forwards task snapshots of one user to a chat. The store calls
// push on the writer's goroutine, so push only keeps the latest snapshot and
// wakes run, which does the sending.
type watcher struct {
	mu     sync.Mutex
	latest []model.Task
	seen   int
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
	cancel func()
}

func newWatcher() *watcher {
	return &watcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (w *watcher) push(tasks []model.Task) {
	w.mu.Lock()
	w.latest = tasks
	w.seen++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// take returns the pending snapshot and whether it is the initial one.
func (w *watcher) take() ([]model.Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tasks := w.latest
	w.latest = nil
	return tasks, w.seen == 1
}

func (w *watcher) run(send func(tasks []model.Task, initial bool)) {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
			tasks, initial := w.take()
			send(tasks, initial)
		}
	}
}

func (w *watcher) stop() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		close(w.done)
	})
}

func (b *Bot) handleWatch(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	b.mu.Lock()
	_, exists := b.watchers[msg.From.ID]
	b.mu.Unlock()
	if exists {
		return b.sendText(msg.Chat.ID, "👀 Already watching. /unwatch to stop.")
	}

	w := newWatcher()
	chatID := msg.Chat.ID
	go w.run(func(tasks []model.Task, initial bool) {
		if err := b.broadcast.Wait(ctx); err != nil {
			return
		}
		text := digest(tasks, b.today(), initial)
		if err := b.sendText(chatID, text); err != nil {
			log.Warn().Err(err).Int64("chat", chatID).Msg("send watch digest")
		}
	})

	cancel, err := b.taskSvc.Subscribe(ctx, user.ID, w.push)
	if err != nil {
		w.stop()
		return b.sendText(chatID, userMessage(err))
	}
	w.cancel = cancel

	b.mu.Lock()
	b.watchers[msg.From.ID] = w
	b.mu.Unlock()

	log.Info().Uint("user", user.ID).Msg("watch started")
	return nil
}

func (b *Bot) handleUnwatch(msg *tgbotapi.Message) error {
	b.mu.Lock()
	w, ok := b.watchers[msg.From.ID]
	delete(b.watchers, msg.From.ID)
	b.mu.Unlock()

	if !ok {
		return b.sendText(msg.Chat.ID, "Nothing to stop.")
	}
	w.stop()
	return b.sendText(msg.Chat.ID, "🔕 Stopped watching.")
}

func (b *Bot) stopWatchers() {
	b.mu.Lock()
	watchers := b.watchers
	b.watchers = make(map[int64]*watcher)
	b.mu.Unlock()

	for _, w := range watchers {
		w.stop()
	}
}

// digest summarizes the today part of a snapshot.
func digest(tasks []model.Task, today date.Date, initial bool) string {
	var day []model.Task
	for _, t := range tasks {
		if t.Date.Equal(today) {
			day = append(day, t)
		}
	}
	summary := service.Summarize(today, day)

	var builder strings.Builder
	if initial {
		builder.WriteString("👀 <b>Watching your plan.</b> I will post here whenever it changes.\n")
	} else {
		builder.WriteString("🔄 <b>Your plan changed.</b>\n")
	}
	builder.WriteString(fmt.Sprintf("Today: %d tasks, %d done, %d pending.", len(summary.Tasks), summary.Completed, summary.Pending))
	if len(summary.Tasks) > 0 {
		builder.WriteString(fmt.Sprintf("\nRealization: %.0f%%", summary.Realization*100))
	}
	return builder.String()
}
