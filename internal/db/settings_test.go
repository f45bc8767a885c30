package db_test

import (
	"strings"
	"testing"

	"github.com/wardenbot/warden/internal/db"
)

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	settings := db.DefaultSettings(-1001234567890)
	if settings.ChatID != -1001234567890 {
		t.Fatalf("unexpected chat id: %d", settings.ChatID)
	}
	if !settings.SpamEnabled {
		t.Fatalf("spam detection should be on by default")
	}
	if settings.WelcomeEnabled || settings.LinkFilterEnabled || settings.CaptchaEnabled {
		t.Fatalf("only spam detection should be enabled by default")
	}
	if settings.SpamMessageLimit != 5 || settings.SpamTimeWindowSec != 10 || settings.SpamMuteDurationMin != 5 {
		t.Fatalf("unexpected spam defaults: %d/%d/%d",
			settings.SpamMessageLimit, settings.SpamTimeWindowSec, settings.SpamMuteDurationMin)
	}
	if settings.WarnMuteThreshold != 3 || settings.WarnBanThreshold != 5 {
		t.Fatalf("unexpected warn thresholds: %d/%d", settings.WarnMuteThreshold, settings.WarnBanThreshold)
	}
	if violations := settings.Validate(); len(violations) != 0 {
		t.Fatalf("defaults should validate, got: %v", violations)
	}
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name   string
		mutate func(*db.Settings)
		want   string
	}{
		{
			name:   "warn mute threshold too high",
			mutate: func(s *db.Settings) { s.WarnMuteThreshold = 11; s.WarnBanThreshold = 20 },
			want:   "warn_mute_threshold",
		},
		{
			name:   "mute threshold not below ban threshold",
			mutate: func(s *db.Settings) { s.WarnMuteThreshold = 5; s.WarnBanThreshold = 5 },
			want:   "warn_mute_threshold must be less than warn_ban_threshold",
		},
		{
			name:   "spam window too short",
			mutate: func(s *db.Settings) { s.SpamTimeWindowSec = 2 },
			want:   "spam_time_window_sec",
		},
		{
			name:   "spam limit too high",
			mutate: func(s *db.Settings) { s.SpamMessageLimit = 21 },
			want:   "spam_message_limit",
		},
		{
			name:   "bad captcha difficulty",
			mutate: func(s *db.Settings) { s.CaptchaDifficulty = "extreme" },
			want:   "captcha_difficulty",
		},
		{
			name:   "bad captcha fail action",
			mutate: func(s *db.Settings) { s.CaptchaFailAction = "ban" },
			want:   "captcha_fail_action",
		},
		{
			name:   "captcha timeout too short",
			mutate: func(s *db.Settings) { s.CaptchaTimeoutSec = 10 },
			want:   "captcha_timeout_sec",
		},
		{
			name:   "bad link action",
			mutate: func(s *db.Settings) { s.LinkAction = "kick" },
			want:   "link_action",
		},
		{
			name:   "newbie window too long",
			mutate: func(s *db.Settings) { s.LinkNewbieHours = 200 },
			want:   "link_newbie_hours",
		},
		{
			name:   "welcome delay too long",
			mutate: func(s *db.Settings) { s.WelcomeDelaySec = 31 },
			want:   "welcome_delay_sec",
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			settings := db.DefaultSettings(1)
			tt.mutate(settings)
			violations := settings.Validate()
			if len(violations) == 0 {
				t.Fatalf("expected a violation")
			}
			found := false
			for _, v := range violations {
				if strings.Contains(v, tt.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("violations %v do not mention %q", violations, tt.want)
			}
		})
	}
}

func TestSettingsValidateCollectsAllViolations(t *testing.T) {
	t.Parallel()

	settings := db.DefaultSettings(1)
	settings.SpamMessageLimit = 0
	settings.SpamTimeWindowSec = 0
	settings.CaptchaDifficulty = "nope"

	violations := settings.Validate()
	if len(violations) < 3 {
		t.Fatalf("expected every violation reported, got %v", violations)
	}
}
