package bot

import (
	"context"
	"time"

	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/handlers/moderation"
)

// enforcementOps is the slice of the transport layer the processor enforces
// and replies with.
type enforcementOps interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	BanUser(ctx context.Context, chatID, userID int64) error
	UnbanUser(ctx context.Context, chatID, userID int64) error
	RestrictUser(ctx context.Context, chatID, userID int64, until time.Time) error
	UnrestrictUser(ctx context.Context, chatID, userID int64) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type adminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

type admissionGate interface {
	Verify(ctx context.Context, chatID, userID int64, answer string) (bool, error)
	Pending(ctx context.Context, chatID, userID int64) (bool, error)
}

type greeter interface {
	Welcome(ctx context.Context, event moderation.JoinEvent, settings *db.Settings) error
}

type auditLog interface {
	Log(ctx context.Context, action *db.ModAction) error
}
