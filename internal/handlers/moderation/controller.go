package moderation

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
)

const settingsCacheSize = 4096

// Admitter gates newly joined members behind a challenge.
type Admitter interface {
	Issue(ctx context.Context, event JoinEvent, settings *db.Settings) error
}

// Greeter posts the welcome message for a join.
type Greeter interface {
	Welcome(ctx context.Context, event JoinEvent, settings *db.Settings) error
}

type auditLog interface {
	Log(ctx context.Context, action *db.ModAction) error
	Recent(ctx context.Context, chatID int64, limit int, targetUserID int64) ([]*db.ModAction, error)
}

// Controller is the moderation engine's front door. It owns the per-chat
// settings (with a read-through cache), runs the message pipeline in check
// order and fans joins out to admission or welcome.
type Controller struct {
	store    db.Client
	detector *Detector
	filter   *ContentFilter
	linkGate *LinkGate
	warns    *Tracker
	audit    auditLog
	admitter Admitter
	greeter  Greeter

	mu    sync.Mutex
	cache *lru.Cache[int64, *db.Settings]

	logger *log.Entry
}

func NewController(
	store db.Client,
	detector *Detector,
	filter *ContentFilter,
	linkGate *LinkGate,
	warns *Tracker,
	audit auditLog,
	admitter Admitter,
	greeter Greeter,
) *Controller {
	cache, err := lru.New[int64, *db.Settings](settingsCacheSize)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("cant create settings cache")
	}
	return &Controller{
		store:    store,
		detector: detector,
		filter:   filter,
		linkGate: linkGate,
		warns:    warns,
		audit:    audit,
		admitter: admitter,
		greeter:  greeter,
		cache:    cache,
		logger:   log.WithField("object", "moderationController"),
	}
}

// Settings returns the chat's policy, falling back to defaults for chats that
// were never configured. The cache is read-through and invalidated only by
// explicit writes, there is no TTL.
func (c *Controller) Settings(ctx context.Context, chatID int64) (*db.Settings, error) {
	c.mu.Lock()
	if cached, ok := c.cache.Get(chatID); ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	settings, err := c.store.GetSettings(ctx, chatID)
	if err != nil {
		return nil, errors.WithMessage(err, "get settings")
	}
	if settings == nil {
		settings = db.DefaultSettings(chatID)
	}

	c.mu.Lock()
	c.cache.Add(chatID, settings)
	c.mu.Unlock()
	return settings, nil
}

// UpdateSettings validates and persists the policy, then refreshes the cache.
// On validation failure nothing changes and the error carries every
// violation.
func (c *Controller) UpdateSettings(ctx context.Context, settings *db.Settings) error {
	if err := c.store.SetSettings(ctx, settings); err != nil {
		return err
	}
	c.mu.Lock()
	c.cache.Add(settings.ChatID, settings)
	c.mu.Unlock()
	c.filter.Invalidate(settings.ChatID)
	return nil
}

// ResetSettings drops the stored policy so the chat reverts to defaults.
func (c *Controller) ResetSettings(ctx context.Context, chatID int64) error {
	if err := c.store.DeleteSettings(ctx, chatID); err != nil {
		return errors.WithMessage(err, "delete settings")
	}
	c.InvalidateSettings(chatID)
	return nil
}

// InvalidateSettings evicts the chat from the cache. Use after out-of-band
// writes.
func (c *Controller) InvalidateSettings(chatID int64) {
	c.mu.Lock()
	c.cache.Remove(chatID)
	c.mu.Unlock()
	c.filter.Invalidate(chatID)
}

// ExportSettings returns the chat policy as a portable JSON document.
func (c *Controller) ExportSettings(ctx context.Context, chatID int64) (string, error) {
	return c.store.ExportSettings(ctx, chatID)
}

// ImportSettings replaces the chat policy from an exported document.
func (c *Controller) ImportSettings(ctx context.Context, chatID int64, payload string) (*db.Settings, error) {
	settings, err := c.store.ImportSettings(ctx, chatID, payload)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache.Add(chatID, settings)
	c.mu.Unlock()
	c.filter.Invalidate(chatID)
	return settings, nil
}

// OnMessage runs the checks in fixed order and returns the first verdict:
// word filter, spam signatures, newbie link gate, flood window. Later checks
// never run once one trips.
func (c *Controller) OnMessage(ctx context.Context, event MessageEvent) (Result, error) {
	settings, err := c.Settings(ctx, event.ChatID)
	if err != nil {
		return Result{Action: ActionNone}, err
	}

	if filtered := c.filter.Check(settings, event.Text); filtered.Filtered {
		return Result{
			Action:       ActionDelete,
			Reason:       filtered.Reason(),
			ShouldDelete: true,
			Details:      "blacklisted word",
		}, nil
	}

	if settings.SpamEnabled {
		if result := c.detector.CheckPatterns(event.Text); result.Action != ActionNone {
			return result, nil
		}
	}

	if settings.LinkFilterEnabled {
		if result := c.linkGate.Check(ctx, settings, event); result.Action != ActionNone {
			return result, nil
		}
	}

	if settings.SpamEnabled {
		if result := c.detector.CheckFlood(ctx, settings, event); result.Action != ActionNone {
			return result, nil
		}
	}

	return Result{Action: ActionNone}, nil
}

// OnJoin records the join time and routes the member to the admission
// challenge or the welcome message. Bots are recorded but never challenged
// nor greeted.
func (c *Controller) OnJoin(ctx context.Context, event JoinEvent) error {
	if err := c.store.RecordJoin(ctx, event.ChatID, event.User.ID, time.Now()); err != nil {
		c.logger.WithField("error", err.Error()).Warn("cant record join time")
	}
	if event.User.IsBot {
		return nil
	}

	settings, err := c.Settings(ctx, event.ChatID)
	if err != nil {
		return err
	}
	if settings.CaptchaEnabled && c.admitter != nil {
		return c.admitter.Issue(ctx, event, settings)
	}
	if settings.WelcomeEnabled && c.greeter != nil {
		return c.greeter.Welcome(ctx, event, settings)
	}
	return nil
}

// AddWarn issues a warning, audits it and returns the escalation verdict.
// Enforcement of the escalation is the caller's job.
func (c *Controller) AddWarn(ctx context.Context, chatID, userID, adminID int64, reason string) (*WarnResult, error) {
	settings, err := c.Settings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	result, err := c.warns.Add(ctx, settings, userID, adminID, reason)
	if err != nil {
		return nil, err
	}
	if err := c.audit.Log(ctx, db.NewModAction(chatID, db.ActionWarn, userID, reason, adminID, adminID == 0)); err != nil {
		c.logger.WithField("error", err.Error()).Warn("cant audit warning")
	}
	return result, nil
}

// Warnings lists a user's warnings, most recent first.
func (c *Controller) Warnings(ctx context.Context, chatID, userID int64) ([]*db.Warning, error) {
	return c.warns.List(ctx, chatID, userID)
}

// ClearWarns drops all warnings for the user, audits the reset and returns
// how many were cleared.
func (c *Controller) ClearWarns(ctx context.Context, chatID, userID, adminID int64) (int64, error) {
	count, err := c.warns.Clear(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		if err := c.audit.Log(ctx, db.NewModAction(chatID, db.ActionClearWarns, userID, "", adminID, adminID == 0)); err != nil {
			c.logger.WithField("error", err.Error()).Warn("cant audit warnings reset")
		}
	}
	return count, nil
}

// AddFilterWord appends a word to the chat's blacklist. Returns false when
// the word was already present or a list constraint rejected it.
func (c *Controller) AddFilterWord(ctx context.Context, chatID int64, word string) (bool, error) {
	settings, err := c.Settings(ctx, chatID)
	if err != nil {
		return false, err
	}
	updated := *settings
	words, changed := AppendFilterWord(append([]string(nil), settings.FilterWords...), word)
	if !changed {
		return false, nil
	}
	updated.FilterWords = words
	return true, c.UpdateSettings(ctx, &updated)
}

// RemoveFilterWord removes a word from the chat's blacklist. Returns false
// when the word was not on the list.
func (c *Controller) RemoveFilterWord(ctx context.Context, chatID int64, word string) (bool, error) {
	settings, err := c.Settings(ctx, chatID)
	if err != nil {
		return false, err
	}
	updated := *settings
	words, changed := RemoveFilterWord(append([]string(nil), settings.FilterWords...), word)
	if !changed {
		return false, nil
	}
	updated.FilterWords = words
	return true, c.UpdateSettings(ctx, &updated)
}

// FilterWords returns the chat's current blacklist.
func (c *Controller) FilterWords(ctx context.Context, chatID int64) ([]string, error) {
	settings, err := c.Settings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return settings.FilterWords, nil
}

// ModLog returns recent audit entries for the chat, optionally narrowed to a
// single target user (targetUserID = 0 means all).
func (c *Controller) ModLog(ctx context.Context, chatID int64, limit int, targetUserID int64) ([]*db.ModAction, error) {
	return c.audit.Recent(ctx, chatID, limit, targetUserID)
}

// ClearFloodHistory wipes the user's flood window, typically right after a
// flood mute so stale timestamps cannot re-trip the detector.
func (c *Controller) ClearFloodHistory(ctx context.Context, chatID, userID int64) {
	if err := c.store.ClearFlood(ctx, chatID, userID); err != nil {
		c.logger.WithField("error", err.Error()).Warn("cant clear flood history")
	}
}
