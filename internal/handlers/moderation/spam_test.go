package moderation_test

import (
	"context"
	"testing"
	"time"

	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/handlers/moderation"
)

// fakeFloodStore mimics the store's sliding window: record, prune, count.
type fakeFloodStore struct {
	timestamps map[[2]int64][]time.Time
}

func newFakeFloodStore() *fakeFloodStore {
	return &fakeFloodStore{timestamps: map[[2]int64][]time.Time{}}
}

func (f *fakeFloodStore) RecordMessage(_ context.Context, chatID, userID int64, at time.Time, window time.Duration) (int64, error) {
	key := [2]int64{chatID, userID}
	kept := []time.Time{at}
	for _, ts := range f.timestamps[key] {
		if !ts.Before(at.Add(-window)) {
			kept = append(kept, ts)
		}
	}
	f.timestamps[key] = kept
	return int64(len(kept)), nil
}

func (f *fakeFloodStore) FloodTimestamps(_ context.Context, chatID, userID int64, at time.Time, window time.Duration) ([]time.Time, error) {
	var inWindow []time.Time
	for _, ts := range f.timestamps[[2]int64{chatID, userID}] {
		if !ts.Before(at.Add(-window)) && !ts.After(at) {
			inWindow = append(inWindow, ts)
		}
	}
	return inWindow, nil
}

func loadPatterns(t *testing.T) *moderation.PatternSet {
	t.Helper()
	patterns, err := moderation.LoadPatterns()
	if err != nil {
		t.Fatalf("load patterns: %v", err)
	}
	return patterns
}

func TestDetectorPatterns(t *testing.T) {
	t.Parallel()

	detector := moderation.NewDetector(newFakeFloodStore(), loadPatterns(t))

	for _, tt := range []struct {
		name   string
		text   string
		reason string
	}{
		{name: "crypto scam domain", text: "claim it on binance-login.com now", reason: "crypto_scam"},
		{name: "adult link", text: "see onlyfans.com/someone", reason: "adult_content"},
		{name: "earnings pitch", text: "Earn money from $500 a week", reason: "spam_pattern"},
		{name: "work from home", text: "WORK FROM HOME opportunity", reason: "spam_pattern"},
		{name: "clean message", text: "lunch anyone?", reason: ""},
		{name: "empty message", text: "", reason: ""},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := detector.CheckPatterns(tt.text)
			if tt.reason == "" {
				if result.Action != moderation.ActionNone {
					t.Fatalf("expected clean verdict, got %+v", result)
				}
				return
			}
			if result.Action != moderation.ActionDelete || !result.ShouldDelete {
				t.Fatalf("expected delete verdict, got %+v", result)
			}
			if result.Reason != tt.reason {
				t.Fatalf("reason %q, want %q", result.Reason, tt.reason)
			}
		})
	}
}

func TestDetectorFloodTripsAtLimit(t *testing.T) {
	t.Parallel()

	detector := moderation.NewDetector(newFakeFloodStore(), loadPatterns(t))
	settings := db.DefaultSettings(10)
	ctx := context.Background()
	base := time.Now()

	event := func(i int, at time.Time) moderation.MessageEvent {
		return moderation.MessageEvent{ChatID: 10, UserID: 20, MessageID: i, At: at}
	}

	for i := 0; i < 4; i++ {
		result := detector.CheckFlood(ctx, settings, event(i, base.Add(time.Duration(i)*time.Second)))
		if result.Action != moderation.ActionNone {
			t.Fatalf("tripped early at message %d: %+v", i+1, result)
		}
	}

	result := detector.CheckFlood(ctx, settings, event(5, base.Add(9*time.Second)))
	if result.Action != moderation.ActionMute {
		t.Fatalf("expected mute at limit, got %+v", result)
	}
	if result.Reason != "flood" || !result.ShouldDelete {
		t.Fatalf("unexpected flood verdict: %+v", result)
	}
	if result.MuteDurationMin != settings.SpamMuteDurationMin {
		t.Fatalf("mute duration %d, want %d", result.MuteDurationMin, settings.SpamMuteDurationMin)
	}
	if len(result.FloodTimestamps) != 5 {
		t.Fatalf("expected the full burst attached, got %d timestamps", len(result.FloodTimestamps))
	}
}

func TestDetectorFloodSameSecondBurst(t *testing.T) {
	t.Parallel()

	detector := moderation.NewDetector(newFakeFloodStore(), loadPatterns(t))
	settings := db.DefaultSettings(12)
	ctx := context.Background()
	at := time.Now().Truncate(time.Second)

	// Every message of the burst shares one timestamp; each still counts.
	var result moderation.Result
	for i := 0; i < 5; i++ {
		result = detector.CheckFlood(ctx, settings, moderation.MessageEvent{
			ChatID: 12, UserID: 22, MessageID: i, At: at,
		})
	}
	if result.Action != moderation.ActionMute {
		t.Fatalf("same-second burst must trip the limit, got %+v", result)
	}
	if len(result.FloodTimestamps) != 5 {
		t.Fatalf("expected all 5 burst timestamps, got %d", len(result.FloodTimestamps))
	}
}

func TestDetectorFloodWindowSlides(t *testing.T) {
	t.Parallel()

	detector := moderation.NewDetector(newFakeFloodStore(), loadPatterns(t))
	settings := db.DefaultSettings(11)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 4; i++ {
		detector.CheckFlood(ctx, settings, moderation.MessageEvent{
			ChatID: 11, UserID: 21, At: base.Add(time.Duration(i) * time.Second),
		})
	}

	// The burst has aged out of the 10 second window by now.
	result := detector.CheckFlood(ctx, settings, moderation.MessageEvent{
		ChatID: 11, UserID: 21, At: base.Add(15 * time.Second),
	})
	if result.Action != moderation.ActionNone {
		t.Fatalf("aged-out burst still tripped: %+v", result)
	}
}
