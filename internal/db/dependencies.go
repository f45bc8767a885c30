package db

import (
	"context"
	"time"
)

// Client is the persistent store contract consumed by the moderation engine.
// All reads degrade gracefully: a missing record is (nil, nil) or a zero
// value, never an error. Write failures propagate to the caller.
type Client interface {
	Close() error
	Ping(ctx context.Context) error

	GetSettings(ctx context.Context, chatID int64) (*Settings, error)
	SetSettings(ctx context.Context, settings *Settings) error
	DeleteSettings(ctx context.Context, chatID int64) error
	ExportSettings(ctx context.Context, chatID int64) (string, error)
	ImportSettings(ctx context.Context, chatID int64, payload string) (*Settings, error)

	RecordMessage(ctx context.Context, chatID, userID int64, at time.Time, window time.Duration) (int64, error)
	FloodTimestamps(ctx context.Context, chatID, userID int64, at time.Time, window time.Duration) ([]time.Time, error)
	ClearFlood(ctx context.Context, chatID, userID int64) error

	RecordJoin(ctx context.Context, chatID, userID int64, at time.Time) error
	GetJoinTime(ctx context.Context, chatID, userID int64) (time.Time, bool, error)

	AddWarning(ctx context.Context, warning *Warning) error
	ListWarnings(ctx context.Context, chatID, userID int64) ([]*Warning, error)
	CountWarnings(ctx context.Context, chatID, userID int64) (int64, error)
	ClearWarnings(ctx context.Context, chatID, userID int64) (int64, error)

	AppendModAction(ctx context.Context, action *ModAction) error
	ListModActions(ctx context.Context, chatID int64, limit int, targetUserID int64) ([]*ModAction, error)

	CreateChallenge(ctx context.Context, challenge *Challenge, ttl time.Duration) error
	GetChallenge(ctx context.Context, chatID, userID int64) (*Challenge, error)
	DeleteChallenge(ctx context.Context, chatID, userID int64) error
}
