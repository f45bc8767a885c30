package chat

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/handlers/moderation"
	"github.com/wardenbot/warden/internal/observability"
)

// challengeGrace keeps the stored record alive a little past the deadline so
// the timeout handler always finds it.
const challengeGrace = time.Minute

const failMuteDuration = 24 * time.Hour

type gatekeeperStore interface {
	GetSettings(ctx context.Context, chatID int64) (*db.Settings, error)
	CreateChallenge(ctx context.Context, challenge *db.Challenge, ttl time.Duration) error
	GetChallenge(ctx context.Context, chatID, userID int64) (*db.Challenge, error)
	DeleteChallenge(ctx context.Context, chatID, userID int64) error
}

type gatekeeperOps interface {
	SendChallenge(ctx context.Context, chatID int64, text string, options []string) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	BanUser(ctx context.Context, chatID, userID int64) error
	UnbanUser(ctx context.Context, chatID, userID int64) error
	RestrictUser(ctx context.Context, chatID, userID int64, until time.Time) error
}

type gatekeeperAudit interface {
	Log(ctx context.Context, action *db.ModAction) error
}

var challengeTemplates = []string{
	"Hello, %s! Quick check before you can chat: what is %s?",
	"Welcome, %s! To confirm you're human, please answer: what is %s?",
	"Hey %s! One small thing first. What is %s?",
}

type timerKey struct {
	chatID int64
	userID int64
}

// Gatekeeper challenges newly joined members with an arithmetic question and
// enforces the configured fail action when the deadline passes unanswered.
// At most one live challenge exists per (chat, user); issuing a new one
// supersedes the previous, timer included.
type Gatekeeper struct {
	store gatekeeperStore
	ops   gatekeeperOps
	audit gatekeeperAudit

	mu     sync.Mutex
	timers map[timerKey]*time.Timer

	logger *log.Entry
}

func NewGatekeeper(store gatekeeperStore, ops gatekeeperOps, audit gatekeeperAudit) *Gatekeeper {
	return &Gatekeeper{
		store:  store,
		ops:    ops,
		audit:  audit,
		timers: map[timerKey]*time.Timer{},
		logger: log.WithField("object", "gatekeeper"),
	}
}

// Issue sends a challenge to the member and arms the timeout. Any previous
// challenge for the same member is superseded.
func (g *Gatekeeper) Issue(ctx context.Context, event moderation.JoinEvent, settings *db.Settings) error {
	captcha := generateCaptcha(settings.CaptchaDifficulty)
	text := fmt.Sprintf(challengeTemplates[rand.Intn(len(challengeTemplates))], event.User.DisplayName(), captcha.question)

	challenge := db.NewChallenge(event.ChatID, event.User.ID, captcha.question, captcha.answer, settings.CaptchaTimeout())
	messageID, err := g.ops.SendChallenge(ctx, event.ChatID, text, captcha.options)
	if err != nil {
		return errors.WithMessage(err, "send challenge")
	}
	challenge.MessageID = messageID

	if err := g.store.CreateChallenge(ctx, challenge, settings.CaptchaTimeout()+challengeGrace); err != nil {
		return errors.WithMessage(err, "store challenge")
	}

	g.armTimer(event.ChatID, event.User.ID, settings.CaptchaTimeout())
	observability.ChallengesIssued.Inc()
	return nil
}

// Verify checks the member's answer. A correct answer disarms the timeout,
// removes the challenge message and clears the record. A wrong answer leaves
// the challenge live so the member may retry until the deadline.
func (g *Gatekeeper) Verify(ctx context.Context, chatID, userID int64, answer string) (bool, error) {
	challenge, err := g.store.GetChallenge(ctx, chatID, userID)
	if err != nil {
		return false, errors.WithMessage(err, "get challenge")
	}
	if challenge == nil || challenge.Expired() {
		return false, nil
	}
	if !strings.EqualFold(strings.TrimSpace(answer), challenge.Answer) {
		return false, nil
	}

	g.disarmTimer(chatID, userID)
	if challenge.MessageID != 0 {
		if err := g.ops.DeleteMessage(ctx, chatID, challenge.MessageID); err != nil {
			g.logger.WithField("error", err.Error()).Warn("cant delete challenge message")
		}
	}
	if err := g.store.DeleteChallenge(ctx, chatID, userID); err != nil {
		return true, errors.WithMessage(err, "delete challenge")
	}
	observability.ChallengesSolved.Inc()
	return true, nil
}

// Pending reports whether the member currently has a live challenge.
func (g *Gatekeeper) Pending(ctx context.Context, chatID, userID int64) (bool, error) {
	challenge, err := g.store.GetChallenge(ctx, chatID, userID)
	if err != nil {
		return false, errors.WithMessage(err, "get challenge")
	}
	return challenge != nil && !challenge.Expired(), nil
}

func (g *Gatekeeper) Start(context.Context) error { return nil }

// Stop disarms every pending timeout. Stored challenges keep their TTL and
// simply lapse.
func (g *Gatekeeper) Stop(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, timer := range g.timers {
		timer.Stop()
		delete(g.timers, key)
	}
	return nil
}

func (g *Gatekeeper) armTimer(chatID, userID int64, timeout time.Duration) {
	key := timerKey{chatID: chatID, userID: userID}
	g.mu.Lock()
	defer g.mu.Unlock()
	if previous, ok := g.timers[key]; ok {
		previous.Stop()
	}
	g.timers[key] = time.AfterFunc(timeout, func() {
		g.handleTimeout(chatID, userID)
	})
}

func (g *Gatekeeper) disarmTimer(chatID, userID int64) {
	key := timerKey{chatID: chatID, userID: userID}
	g.mu.Lock()
	defer g.mu.Unlock()
	if timer, ok := g.timers[key]; ok {
		timer.Stop()
		delete(g.timers, key)
	}
}

// handleTimeout fires when the deadline passes. It re-reads the record first:
// a missing record means the member verified in the meantime and the timeout
// is a no-op.
func (g *Gatekeeper) handleTimeout(chatID, userID int64) {
	g.mu.Lock()
	delete(g.timers, timerKey{chatID: chatID, userID: userID})
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry := g.logger.WithFields(log.Fields{"method": "handleTimeout"})

	challenge, err := g.store.GetChallenge(ctx, chatID, userID)
	if err != nil {
		entry.WithField("error", err.Error()).Error("cant fetch challenge on timeout")
		return
	}
	if challenge == nil {
		return
	}

	if challenge.MessageID != 0 {
		if err := g.ops.DeleteMessage(ctx, chatID, challenge.MessageID); err != nil {
			entry.WithField("error", err.Error()).Warn("cant delete challenge message")
		}
	}

	settings, err := g.store.GetSettings(ctx, chatID)
	if err != nil {
		entry.WithField("error", err.Error()).Warn("cant load settings on timeout")
	}
	if settings == nil {
		settings = db.DefaultSettings(chatID)
	}

	actionType := db.ActionKick
	switch settings.CaptchaFailAction {
	case "mute":
		actionType = db.ActionMute
		if err := g.ops.RestrictUser(ctx, chatID, userID, time.Now().Add(failMuteDuration)); err != nil {
			entry.WithField("error", err.Error()).Error("cant mute unverified member")
		}
	default:
		// Kick is a ban immediately lifted, so the member may rejoin and
		// retry the challenge.
		if err := g.ops.BanUser(ctx, chatID, userID); err != nil {
			entry.WithField("error", err.Error()).Error("cant kick unverified member")
		} else if err := g.ops.UnbanUser(ctx, chatID, userID); err != nil {
			entry.WithField("error", err.Error()).Warn("cant lift kick ban")
		}
	}

	if err := g.store.DeleteChallenge(ctx, chatID, userID); err != nil {
		entry.WithField("error", err.Error()).Warn("cant delete challenge record")
	}
	if err := g.audit.Log(ctx, db.NewModAction(chatID, actionType, userID, "captcha_timeout", 0, true)); err != nil {
		entry.WithField("error", err.Error()).Warn("cant audit challenge timeout")
	}
	observability.ChallengesExpired.Inc()
}
