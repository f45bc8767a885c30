package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/handlers/moderation"
)

// welcomeDedupWindow suppresses repeat greetings when the platform replays a
// join, as happens on quick leave and rejoin.
const welcomeDedupWindow = 10 * time.Minute

type welcomeOps interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Welcomer greets new members with the chat's template, optionally delayed,
// optionally auto-deleted, optionally in private.
type Welcomer struct {
	ops welcomeOps

	mu       sync.Mutex
	greeted  map[timerKey]time.Time
	timers   []*time.Timer
	stopped  bool
	stopOnce sync.Once

	logger *log.Entry
}

func NewWelcomer(ops welcomeOps) *Welcomer {
	return &Welcomer{
		ops:     ops,
		greeted: map[timerKey]time.Time{},
		logger:  log.WithField("object", "welcomer"),
	}
}

// Welcome greets the joined member per the chat's settings.
func (w *Welcomer) Welcome(ctx context.Context, event moderation.JoinEvent, settings *db.Settings) error {
	key := timerKey{chatID: event.ChatID, userID: event.User.ID}
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	if last, ok := w.greeted[key]; ok && time.Since(last) < welcomeDedupWindow {
		w.mu.Unlock()
		return nil
	}
	w.greeted[key] = time.Now()
	w.mu.Unlock()

	text := RenderWelcome(settings.WelcomeMessage, event.User.DisplayName(), event.ChatTitle)
	targetChat := event.ChatID
	if settings.WelcomePrivate {
		targetChat = event.User.ID
	}

	if settings.WelcomeDelaySec > 0 {
		w.schedule(time.Duration(settings.WelcomeDelaySec)*time.Second, func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			w.send(sendCtx, targetChat, text, settings)
		})
		return nil
	}

	return w.sendNow(ctx, targetChat, text, settings)
}

func (w *Welcomer) Start(context.Context) error { return nil }

func (w *Welcomer) Stop(context.Context) error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.stopped = true
		for _, timer := range w.timers {
			timer.Stop()
		}
		w.timers = nil
	})
	return nil
}

func (w *Welcomer) send(ctx context.Context, chatID int64, text string, settings *db.Settings) {
	if err := w.sendNow(ctx, chatID, text, settings); err != nil {
		w.logger.WithField("error", err.Error()).Warn("cant send welcome message")
	}
}

func (w *Welcomer) sendNow(ctx context.Context, chatID int64, text string, settings *db.Settings) error {
	messageID, err := w.ops.SendMessage(ctx, chatID, text)
	if err != nil {
		return errors.WithMessage(err, "send welcome")
	}
	if settings.WelcomeAutoDeleteSec > 0 && !settings.WelcomePrivate {
		w.schedule(time.Duration(settings.WelcomeAutoDeleteSec)*time.Second, func() {
			deleteCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := w.ops.DeleteMessage(deleteCtx, chatID, messageID); err != nil {
				w.logger.WithField("error", err.Error()).Warn("cant auto-delete welcome message")
			}
		})
	}
	return nil
}

func (w *Welcomer) schedule(after time.Duration, f func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.timers = append(w.timers, time.AfterFunc(after, f))
}

// RenderWelcome fills the {username} and {chat} placeholders.
func RenderWelcome(template, username, chatTitle string) string {
	text := strings.ReplaceAll(template, "{username}", username)
	return strings.ReplaceAll(text, "{chat}", chatTitle)
}
