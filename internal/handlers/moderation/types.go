package moderation

import "time"

// Action is the single decision a moderation check yields.
type Action string

const (
	ActionNone   Action = "none"
	ActionDelete Action = "delete"
	ActionWarn   Action = "warn"
	ActionMute   Action = "mute"
	ActionBan    Action = "ban"
	ActionKick   Action = "kick"
	ActionHold   Action = "hold"
)

// Result is the controller's verdict on one inbound message.
type Result struct {
	Action          Action
	Reason          string
	ShouldDelete    bool
	MuteDurationMin int
	Details         string

	// FloodTimestamps carries the offending burst when Action is a flood
	// mute, so enforcement may bulk-handle it.
	FloodTimestamps []time.Time
}

// MessageEvent is an inbound chat message as seen by the controller.
type MessageEvent struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
	At        time.Time
}

// JoinEvent is a member joining a chat.
type JoinEvent struct {
	ChatID    int64
	ChatTitle string
	User      User
}

// User is the minimal member identity the engine needs; the transport layer
// maps its own types onto it.
type User struct {
	ID        int64
	IsBot     bool
	FirstName string
	UserName  string
}

// DisplayName picks the friendliest available handle for user-facing text.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.UserName != "" {
		return u.UserName
	}
	return "there"
}

var reasonDetails = map[string]string{
	"flood":         "too many messages in a short period",
	"crypto_scam":   "suspicious crypto link detected",
	"adult_content": "link to restricted content detected",
	"spam_pattern":  "spam pattern detected",
	"newbie_link":   "links from new members are held for review",
}

// ReasonDetails maps a machine reason to a human-readable explanation.
func ReasonDetails(reason string) string {
	if details, ok := reasonDetails[reason]; ok {
		return details
	}
	return "spam: " + reason
}
