package moderation

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
)

type warnStore interface {
	AddWarning(ctx context.Context, warning *db.Warning) error
	ListWarnings(ctx context.Context, chatID, userID int64) ([]*db.Warning, error)
	CountWarnings(ctx context.Context, chatID, userID int64) (int64, error)
	ClearWarnings(ctx context.Context, chatID, userID int64) (int64, error)
}

// Escalation is what a warning total earns on top of the warning itself.
type Escalation string

const (
	EscalationNone Escalation = "none"
	EscalationMute Escalation = "mute"
	EscalationBan  Escalation = "ban"
)

// WarnResult is the outcome of issuing one warning.
type WarnResult struct {
	Warning           *db.Warning
	Total             int64
	Escalation        Escalation
	MuteDurationHours int
}

// Tracker accumulates warnings per (chat, user) and decides escalation from
// the running total. Thresholds are checked ban first so a total past both
// always escalates to the heavier action.
type Tracker struct {
	store warnStore

	logger *log.Entry
}

func NewTracker(store warnStore) *Tracker {
	return &Tracker{
		store:  store,
		logger: log.WithField("object", "warnTracker"),
	}
}

// Add issues a warning and returns the new total with any escalation it
// triggers. adminID 0 marks a system-issued warning.
func (t *Tracker) Add(ctx context.Context, settings *db.Settings, userID, adminID int64, reason string) (*WarnResult, error) {
	warning := db.NewWarning(settings.ChatID, userID, adminID, reason)
	if err := t.store.AddWarning(ctx, warning); err != nil {
		return nil, errors.WithMessage(err, "add warning")
	}
	total, err := t.store.CountWarnings(ctx, settings.ChatID, userID)
	if err != nil {
		return nil, errors.WithMessage(err, "count warnings")
	}

	result := &WarnResult{
		Warning:    warning,
		Total:      total,
		Escalation: determineEscalation(settings, total),
	}
	if result.Escalation == EscalationMute {
		result.MuteDurationHours = settings.WarnMuteDurationHours
	}
	return result, nil
}

// List returns the user's warnings, most recent first.
func (t *Tracker) List(ctx context.Context, chatID, userID int64) ([]*db.Warning, error) {
	warnings, err := t.store.ListWarnings(ctx, chatID, userID)
	if err != nil {
		return nil, errors.WithMessage(err, "list warnings")
	}
	for i, j := 0, len(warnings)-1; i < j; i, j = i+1, j-1 {
		warnings[i], warnings[j] = warnings[j], warnings[i]
	}
	return warnings, nil
}

// Clear removes all warnings for the user and returns how many were dropped.
func (t *Tracker) Clear(ctx context.Context, chatID, userID int64) (int64, error) {
	count, err := t.store.ClearWarnings(ctx, chatID, userID)
	if err != nil {
		return 0, errors.WithMessage(err, "clear warnings")
	}
	return count, nil
}

func determineEscalation(settings *db.Settings, total int64) Escalation {
	switch {
	case total >= int64(settings.WarnBanThreshold):
		return EscalationBan
	case total >= int64(settings.WarnMuteThreshold):
		return EscalationMute
	default:
		return EscalationNone
	}
}
