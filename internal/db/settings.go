package db

import (
	"fmt"
	"strings"
	"time"
)

// Settings is the per-chat moderation policy. The zero value is not usable;
// start from DefaultSettings and mutate through the store's save path, which
// re-validates the whole object.
type Settings struct {
	ChatID int64 `json:"chat_id"`

	WelcomeEnabled       bool   `json:"welcome_enabled"`
	WelcomeMessage       string `json:"welcome_message"`
	WelcomeDelaySec      int    `json:"welcome_delay_sec"`
	WelcomeAutoDeleteSec int    `json:"welcome_auto_delete_sec"` // 0 = keep
	WelcomePrivate       bool   `json:"welcome_private"`

	SpamEnabled         bool `json:"spam_enabled"`
	SpamMessageLimit    int  `json:"spam_message_limit"`
	SpamTimeWindowSec   int  `json:"spam_time_window_sec"`
	SpamMuteDurationMin int  `json:"spam_mute_duration_min"`

	LinkFilterEnabled bool     `json:"link_filter_enabled"`
	LinkNewbieHours   int      `json:"link_newbie_hours"`
	LinkAction        string   `json:"link_action"` // delete, warn, hold
	LinkWhitelist     []string `json:"link_whitelist"`

	WarnMuteThreshold     int `json:"warn_mute_threshold"`
	WarnBanThreshold      int `json:"warn_ban_threshold"`
	WarnMuteDurationHours int `json:"warn_mute_duration_hours"`

	CaptchaEnabled    bool   `json:"captcha_enabled"`
	CaptchaTimeoutSec int    `json:"captcha_timeout_sec"`
	CaptchaDifficulty string `json:"captcha_difficulty"`  // easy, medium, hard
	CaptchaFailAction string `json:"captcha_fail_action"` // kick, mute

	FilterWords      []string `json:"filter_words"`
	FilterNotifyUser bool     `json:"filter_notify_user"`

	LogChannelID int64 `json:"log_channel_id"` // 0 = no audit sink
}

// Word list constraints enforced by AddFilterWord.
const (
	MaxFilterWordLen = 100
	MaxFilterWords   = 500
)

// MaxNewbiePeriod bounds the join record retention: the largest configurable
// newbie window is 168 hours.
const MaxNewbiePeriod = 168 * time.Hour

// DefaultSettings returns the conservative policy applied to chats that were
// never configured: spam detection on, every other feature off.
func DefaultSettings(chatID int64) *Settings {
	return &Settings{
		ChatID: chatID,

		WelcomeEnabled: false,
		WelcomeMessage: "Welcome, {username}!",

		SpamEnabled:         true,
		SpamMessageLimit:    5,
		SpamTimeWindowSec:   10,
		SpamMuteDurationMin: 5,

		LinkFilterEnabled: false,
		LinkNewbieHours:   24,
		LinkAction:        "hold",

		WarnMuteThreshold:     3,
		WarnBanThreshold:      5,
		WarnMuteDurationHours: 24,

		CaptchaEnabled:    false,
		CaptchaTimeoutSec: 120,
		CaptchaDifficulty: "easy",
		CaptchaFailAction: "kick",

		FilterNotifyUser: true,
	}
}

func (s *Settings) TimeWindow() time.Duration {
	return time.Duration(s.SpamTimeWindowSec) * time.Second
}

func (s *Settings) CaptchaTimeout() time.Duration {
	return time.Duration(s.CaptchaTimeoutSec) * time.Second
}

func (s *Settings) NewbiePeriod() time.Duration {
	return time.Duration(s.LinkNewbieHours) * time.Hour
}

// Validate checks every field against its documented range and returns the
// full list of violations. It is pure: nothing is persisted and the receiver
// is not mutated.
func (s *Settings) Validate() []string {
	var violations []string

	checkRange := func(name string, value, lo, hi int) {
		if value < lo || value > hi {
			violations = append(violations, fmt.Sprintf("%s must be between %d and %d, got %d", name, lo, hi, value))
		}
	}

	checkRange("warn_mute_threshold", s.WarnMuteThreshold, 1, 10)
	checkRange("warn_ban_threshold", s.WarnBanThreshold, 1, 20)
	if s.WarnMuteThreshold >= s.WarnBanThreshold {
		violations = append(violations, "warn_mute_threshold must be less than warn_ban_threshold")
	}
	checkRange("warn_mute_duration_hours", s.WarnMuteDurationHours, 1, 720)

	checkRange("spam_message_limit", s.SpamMessageLimit, 1, 20)
	checkRange("spam_time_window_sec", s.SpamTimeWindowSec, 5, 60)
	checkRange("spam_mute_duration_min", s.SpamMuteDurationMin, 1, 1440)

	checkRange("captcha_timeout_sec", s.CaptchaTimeoutSec, 30, 600)
	switch s.CaptchaDifficulty {
	case "easy", "medium", "hard":
	default:
		violations = append(violations, fmt.Sprintf("captcha_difficulty must be easy/medium/hard, got %q", s.CaptchaDifficulty))
	}
	switch s.CaptchaFailAction {
	case "kick", "mute":
	default:
		violations = append(violations, fmt.Sprintf("captcha_fail_action must be kick/mute, got %q", s.CaptchaFailAction))
	}

	checkRange("welcome_delay_sec", s.WelcomeDelaySec, 0, 30)
	checkRange("welcome_auto_delete_sec", s.WelcomeAutoDeleteSec, 0, 3600)

	checkRange("link_newbie_hours", s.LinkNewbieHours, 0, 168)
	switch s.LinkAction {
	case "delete", "warn", "hold":
	default:
		violations = append(violations, fmt.Sprintf("link_action must be delete/warn/hold, got %q", s.LinkAction))
	}

	for _, word := range s.FilterWords {
		if len(word) > MaxFilterWordLen {
			violations = append(violations, fmt.Sprintf("filter word %q exceeds %d characters", word[:16]+"...", MaxFilterWordLen))
		}
	}
	if len(s.FilterWords) > MaxFilterWords {
		violations = append(violations, fmt.Sprintf("filter word list exceeds %d entries", MaxFilterWords))
	}

	return violations
}

// ValidationError carries the full violation list of a rejected settings
// object. Nothing is persisted when it is returned.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "settings validation failed: " + strings.Join(e.Violations, "; ")
}
