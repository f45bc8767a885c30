package moderation

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
)

type floodStore interface {
	RecordMessage(ctx context.Context, chatID, userID int64, at time.Time, window time.Duration) (int64, error)
	FloodTimestamps(ctx context.Context, chatID, userID int64, at time.Time, window time.Duration) ([]time.Time, error)
}

// Detector runs the antispam checks: known signatures first, then the
// per-user flood window. A store failure never trips the detector; flooding
// degrades to allow rather than punishing on broken infrastructure.
type Detector struct {
	store    floodStore
	patterns *PatternSet

	logger *log.Entry
}

func NewDetector(store floodStore, patterns *PatternSet) *Detector {
	return &Detector{
		store:    store,
		patterns: patterns,
		logger:   log.WithField("object", "spamDetector"),
	}
}

// CheckPatterns matches the text against the built-in signatures and returns
// a delete verdict on the first hit.
func (d *Detector) CheckPatterns(text string) Result {
	if category := d.patterns.Match(text); category != "" {
		return Result{
			Action:       ActionDelete,
			Reason:       category,
			ShouldDelete: true,
			Details:      ReasonDetails(category),
		}
	}
	return Result{Action: ActionNone}
}

// CheckFlood records the message in the user's sliding window and trips a
// mute once the window holds at least the configured limit. The triggering
// message counts toward the limit.
func (d *Detector) CheckFlood(ctx context.Context, settings *db.Settings, event MessageEvent) Result {
	count, err := d.store.RecordMessage(ctx, event.ChatID, event.UserID, event.At, settings.TimeWindow())
	if err != nil {
		d.logger.WithField("error", err.Error()).Warn("cant record message for flood window")
		return Result{Action: ActionNone}
	}
	if count < int64(settings.SpamMessageLimit) {
		return Result{Action: ActionNone}
	}

	result := Result{
		Action:          ActionMute,
		Reason:          "flood",
		ShouldDelete:    true,
		MuteDurationMin: settings.SpamMuteDurationMin,
		Details:         ReasonDetails("flood"),
	}
	timestamps, err := d.store.FloodTimestamps(ctx, event.ChatID, event.UserID, event.At, settings.TimeWindow())
	if err != nil {
		d.logger.WithField("error", err.Error()).Warn("cant fetch flood timestamps")
		return result
	}
	result.FloodTimestamps = timestamps
	return result
}
