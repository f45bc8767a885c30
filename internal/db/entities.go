package db

import (
	"time"

	"github.com/pborman/uuid"
)

type (
	// Warning is a single warning issued to a user in a chat. Warnings are
	// immutable once created and only go away via ClearWarnings.
	Warning struct {
		ID        string    `json:"id"`
		ChatID    int64     `json:"chat_id"`
		UserID    int64     `json:"user_id"`
		AdminID   int64     `json:"admin_id"` // 0 for system-issued
		Reason    string    `json:"reason"`
		CreatedAt time.Time `json:"created_at"`
	}

	// ModAction is one entry of the per-chat moderation audit log.
	ModAction struct {
		ID           string    `json:"id"`
		ChatID       int64     `json:"chat_id"`
		ActionType   string    `json:"action_type"`
		TargetUserID int64     `json:"target_user_id"`
		AdminID      int64     `json:"admin_id"` // 0 when Auto
		Reason       string    `json:"reason"`
		CreatedAt    time.Time `json:"created_at"`
		Auto         bool      `json:"auto"`
	}

	// Challenge is an admission test gating a newly joined member. At most one
	// live Challenge exists per (chat, user); creating a new one supersedes
	// the previous.
	Challenge struct {
		ID        string    `json:"id"`
		ChatID    int64     `json:"chat_id"`
		UserID    int64     `json:"user_id"`
		Question  string    `json:"question"`
		Answer    string    `json:"answer"`
		ExpiresAt time.Time `json:"expires_at"`
		MessageID int       `json:"message_id"`
	}
)

// Moderation action types recorded in the audit log.
const (
	ActionWarn       = "warn"
	ActionMute       = "mute"
	ActionUnmute     = "unmute"
	ActionBan        = "ban"
	ActionKick       = "kick"
	ActionDelete     = "delete"
	ActionFilter     = "filter"
	ActionHold       = "hold"
	ActionClearWarns = "clearwarns"
	ActionSpam       = "spam"
)

func NewWarning(chatID, userID, adminID int64, reason string) *Warning {
	return &Warning{
		ID:        uuid.New(),
		ChatID:    chatID,
		UserID:    userID,
		AdminID:   adminID,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
}

func NewModAction(chatID int64, actionType string, targetUserID int64, reason string, adminID int64, auto bool) *ModAction {
	return &ModAction{
		ID:           uuid.New(),
		ChatID:       chatID,
		ActionType:   actionType,
		TargetUserID: targetUserID,
		AdminID:      adminID,
		Reason:       reason,
		CreatedAt:    time.Now(),
		Auto:         auto,
	}
}

func NewChallenge(chatID, userID int64, question, answer string, timeout time.Duration) *Challenge {
	return &Challenge{
		ID:        uuid.New(),
		ChatID:    chatID,
		UserID:    userID,
		Question:  question,
		Answer:    answer,
		ExpiresAt: time.Now().Add(timeout),
	}
}

func (c *Challenge) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}
