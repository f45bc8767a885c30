// Package audit records moderation actions. Every action lands in the
// bounded per-chat store log; chats with a configured log channel also get a
// formatted copy forwarded there. Sink delivery is best effort and never
// fails the action that triggered it.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/security"
)

type auditStore interface {
	AppendModAction(ctx context.Context, action *db.ModAction) error
	ListModActions(ctx context.Context, chatID int64, limit int, targetUserID int64) ([]*db.ModAction, error)
	GetSettings(ctx context.Context, chatID int64) (*db.Settings, error)
}

// Sink receives formatted audit messages, typically a log channel on the chat
// platform.
type Sink interface {
	SendAuditMessage(ctx context.Context, channelID int64, text string) error
}

type Logger struct {
	store  auditStore
	sink   Sink
	masker *security.Masker

	logger *log.Entry
}

func NewLogger(store auditStore, sink Sink, masker *security.Masker) *Logger {
	return &Logger{
		store:  store,
		sink:   sink,
		masker: masker,
		logger: log.WithField("object", "auditLogger"),
	}
}

// Log appends the action to the store and forwards it to the chat's sink when
// one is configured. Store failures propagate; sink failures are logged and
// swallowed.
func (l *Logger) Log(ctx context.Context, action *db.ModAction) error {
	if err := l.store.AppendModAction(ctx, action); err != nil {
		return errors.WithMessage(err, "append mod action")
	}
	l.logger.Info(l.masker.Action(action.ActionType, action.TargetUserID, action.ChatID, action.AdminID, action.Auto, action.Reason))

	l.forward(ctx, action)
	return nil
}

// Recent returns up to limit most recent actions for the chat, optionally
// narrowed to a single target user (targetUserID = 0 means all).
func (l *Logger) Recent(ctx context.Context, chatID int64, limit int, targetUserID int64) ([]*db.ModAction, error) {
	return l.store.ListModActions(ctx, chatID, limit, targetUserID)
}

func (l *Logger) forward(ctx context.Context, action *db.ModAction) {
	if l.sink == nil {
		return
	}
	settings, err := l.store.GetSettings(ctx, action.ChatID)
	if err != nil {
		l.logger.WithField("error", err.Error()).Warn("cant load settings for audit forward")
		return
	}
	if settings == nil || settings.LogChannelID == 0 {
		return
	}
	if err := l.sink.SendAuditMessage(ctx, settings.LogChannelID, FormatAction(action)); err != nil {
		l.logger.WithField("error", err.Error()).Warn("cant forward action to log channel")
	}
}

var actionTitles = map[string]string{
	db.ActionWarn:       "Warning",
	db.ActionMute:       "Mute",
	db.ActionUnmute:     "Unmute",
	db.ActionBan:        "Ban",
	db.ActionKick:       "Kick",
	db.ActionDelete:     "Deletion",
	db.ActionFilter:     "Content filter",
	db.ActionHold:       "Held for review",
	db.ActionClearWarns: "Warnings cleared",
	db.ActionSpam:       "Antispam",
}

// FormatAction renders an action for the log channel. Raw ids are intentional
// here: the sink is the privileged read path moderators work from.
func FormatAction(action *db.ModAction) string {
	title, ok := actionTitles[action.ActionType]
	if !ok {
		title = action.ActionType
	}

	issuer := "automatic"
	if !action.Auto && action.AdminID != 0 {
		issuer = fmt.Sprintf("admin %d", action.AdminID)
	}
	reason := action.Reason
	if reason == "" {
		reason = "not specified"
	}

	return fmt.Sprintf("%s\nuser: %d\nby: %s\nreason: %s\nat: %s",
		title, action.TargetUserID, issuer, reason, action.CreatedAt.Format(time.DateTime))
}
