package moderation_test

import (
	"context"
	"testing"
	"time"

	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/handlers/moderation"
)

// fakeClient is an in-memory stand-in for the Redis store.
type fakeClient struct {
	*fakeFloodStore
	*fakeWarnStore

	settings      map[int64]*db.Settings
	settingsReads int
	joins         map[[2]int64]time.Time
	actions       []*db.ModAction
	challenges    map[[2]int64]*db.Challenge
	floodCleared  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		fakeFloodStore: newFakeFloodStore(),
		fakeWarnStore:  newFakeWarnStore(),
		settings:       map[int64]*db.Settings{},
		joins:          map[[2]int64]time.Time{},
		challenges:     map[[2]int64]*db.Challenge{},
	}
}

func (f *fakeClient) Close() error               { return nil }
func (f *fakeClient) Ping(context.Context) error { return nil }

func (f *fakeClient) GetSettings(_ context.Context, chatID int64) (*db.Settings, error) {
	f.settingsReads++
	return f.settings[chatID], nil
}

func (f *fakeClient) SetSettings(_ context.Context, settings *db.Settings) error {
	if violations := settings.Validate(); len(violations) > 0 {
		return &db.ValidationError{Violations: violations}
	}
	f.settings[settings.ChatID] = settings
	return nil
}

func (f *fakeClient) DeleteSettings(_ context.Context, chatID int64) error {
	delete(f.settings, chatID)
	return nil
}

func (f *fakeClient) ExportSettings(context.Context, int64) (string, error) { return "{}", nil }

func (f *fakeClient) ImportSettings(_ context.Context, chatID int64, _ string) (*db.Settings, error) {
	settings := db.DefaultSettings(chatID)
	f.settings[chatID] = settings
	return settings, nil
}

func (f *fakeClient) ClearFlood(_ context.Context, chatID, userID int64) error {
	f.floodCleared++
	delete(f.timestamps, [2]int64{chatID, userID})
	return nil
}

func (f *fakeClient) RecordJoin(_ context.Context, chatID, userID int64, at time.Time) error {
	f.joins[[2]int64{chatID, userID}] = at
	return nil
}

func (f *fakeClient) GetJoinTime(_ context.Context, chatID, userID int64) (time.Time, bool, error) {
	at, ok := f.joins[[2]int64{chatID, userID}]
	return at, ok, nil
}

func (f *fakeClient) AppendModAction(_ context.Context, action *db.ModAction) error {
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeClient) ListModActions(_ context.Context, chatID int64, limit int, targetUserID int64) ([]*db.ModAction, error) {
	var out []*db.ModAction
	for i := len(f.actions) - 1; i >= 0 && len(out) < limit; i-- {
		a := f.actions[i]
		if a.ChatID != chatID {
			continue
		}
		if targetUserID != 0 && a.TargetUserID != targetUserID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeClient) CreateChallenge(_ context.Context, challenge *db.Challenge, _ time.Duration) error {
	f.challenges[[2]int64{challenge.ChatID, challenge.UserID}] = challenge
	return nil
}

func (f *fakeClient) GetChallenge(_ context.Context, chatID, userID int64) (*db.Challenge, error) {
	return f.challenges[[2]int64{chatID, userID}], nil
}

func (f *fakeClient) DeleteChallenge(_ context.Context, chatID, userID int64) error {
	delete(f.challenges, [2]int64{chatID, userID})
	return nil
}

type fakeAudit struct {
	store *fakeClient
}

func (a *fakeAudit) Log(ctx context.Context, action *db.ModAction) error {
	return a.store.AppendModAction(ctx, action)
}

func (a *fakeAudit) Recent(ctx context.Context, chatID int64, limit int, targetUserID int64) ([]*db.ModAction, error) {
	return a.store.ListModActions(ctx, chatID, limit, targetUserID)
}

type fakeAdmitter struct{ issued int }

func (f *fakeAdmitter) Issue(context.Context, moderation.JoinEvent, *db.Settings) error {
	f.issued++
	return nil
}

type fakeGreeter struct{ welcomed int }

func (f *fakeGreeter) Welcome(context.Context, moderation.JoinEvent, *db.Settings) error {
	f.welcomed++
	return nil
}

type controllerFixture struct {
	store    *fakeClient
	ctrl     *moderation.Controller
	admitter *fakeAdmitter
	greeter  *fakeGreeter
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	store := newFakeClient()
	admitter := &fakeAdmitter{}
	greeter := &fakeGreeter{}
	ctrl := moderation.NewController(
		store,
		moderation.NewDetector(store, loadPatterns(t)),
		moderation.NewContentFilter(),
		moderation.NewLinkGate(store),
		moderation.NewTracker(store),
		&fakeAudit{store: store},
		admitter,
		greeter,
	)
	return &controllerFixture{store: store, ctrl: ctrl, admitter: admitter, greeter: greeter}
}

func TestControllerFilterBeatsOtherChecks(t *testing.T) {
	t.Parallel()

	fx := newControllerFixture(t)
	ctx := context.Background()

	settings := db.DefaultSettings(1)
	settings.FilterWords = []string{"promo"}
	settings.LinkFilterEnabled = true
	fx.store.settings[1] = settings

	// Text that would also trip the spam patterns and the link gate.
	result, err := fx.ctrl.OnMessage(ctx, moderation.MessageEvent{
		ChatID: 1, UserID: 10, Text: "promo: earn money from $500 at sketchy.example", At: time.Now(),
	})
	if err != nil {
		t.Fatalf("on message: %v", err)
	}
	if result.Reason != "filter:promo" || result.Action != moderation.ActionDelete {
		t.Fatalf("word filter must decide first, got %+v", result)
	}
}

func TestControllerPatternsBeforeLinkGate(t *testing.T) {
	t.Parallel()

	fx := newControllerFixture(t)
	ctx := context.Background()

	settings := db.DefaultSettings(2)
	settings.LinkFilterEnabled = true
	fx.store.settings[2] = settings

	result, err := fx.ctrl.OnMessage(ctx, moderation.MessageEvent{
		ChatID: 2, UserID: 10, Text: "passive income via sketchy.example", At: time.Now(),
	})
	if err != nil {
		t.Fatalf("on message: %v", err)
	}
	if result.Reason != "spam_pattern" {
		t.Fatalf("patterns must run before the link gate, got %+v", result)
	}
}

func TestControllerSpamDisabledSkipsDetector(t *testing.T) {
	t.Parallel()

	fx := newControllerFixture(t)
	ctx := context.Background()

	settings := db.DefaultSettings(3)
	settings.SpamEnabled = false
	fx.store.settings[3] = settings

	for i := 0; i < 10; i++ {
		result, err := fx.ctrl.OnMessage(ctx, moderation.MessageEvent{
			ChatID: 3, UserID: 10, Text: "passive income here", At: time.Now(),
		})
		if err != nil {
			t.Fatalf("on message: %v", err)
		}
		if result.Action != moderation.ActionNone {
			t.Fatalf("spam checks ran while disabled: %+v", result)
		}
	}
}

func TestControllerFloodVerdict(t *testing.T) {
	t.Parallel()

	fx := newControllerFixture(t)
	ctx := context.Background()
	base := time.Now()

	var result moderation.Result
	var err error
	for i := 0; i < 5; i++ {
		result, err = fx.ctrl.OnMessage(ctx, moderation.MessageEvent{
			ChatID: 4, UserID: 10, Text: "hi", At: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("on message: %v", err)
		}
	}
	if result.Action != moderation.ActionMute || result.Reason != "flood" {
		t.Fatalf("expected flood mute on default settings, got %+v", result)
	}
}

func TestControllerOnJoinRouting(t *testing.T) {
	t.Parallel()

	fx := newControllerFixture(t)
	ctx := context.Background()

	captchaChat := db.DefaultSettings(5)
	captchaChat.CaptchaEnabled = true
	fx.store.settings[5] = captchaChat

	welcomeChat := db.DefaultSettings(6)
	welcomeChat.WelcomeEnabled = true
	fx.store.settings[6] = welcomeChat

	user := moderation.User{ID: 50, FirstName: "Ada"}

	if err := fx.ctrl.OnJoin(ctx, moderation.JoinEvent{ChatID: 5, User: user}); err != nil {
		t.Fatalf("on join: %v", err)
	}
	if fx.admitter.issued != 1 || fx.greeter.welcomed != 0 {
		t.Fatalf("captcha chat must challenge, not greet: issued=%d welcomed=%d",
			fx.admitter.issued, fx.greeter.welcomed)
	}

	if err := fx.ctrl.OnJoin(ctx, moderation.JoinEvent{ChatID: 6, User: user}); err != nil {
		t.Fatalf("on join: %v", err)
	}
	if fx.greeter.welcomed != 1 {
		t.Fatalf("welcome chat must greet, welcomed=%d", fx.greeter.welcomed)
	}

	bot := moderation.User{ID: 51, IsBot: true}
	if err := fx.ctrl.OnJoin(ctx, moderation.JoinEvent{ChatID: 5, User: bot}); err != nil {
		t.Fatalf("on join: %v", err)
	}
	if fx.admitter.issued != 1 {
		t.Fatalf("bots must not be challenged")
	}
	if _, ok := fx.store.joins[[2]int64{5, 51}]; !ok {
		t.Fatalf("bot join must still be recorded")
	}
}

func TestControllerSettingsCache(t *testing.T) {
	t.Parallel()

	fx := newControllerFixture(t)
	ctx := context.Background()

	if _, err := fx.ctrl.Settings(ctx, 7); err != nil {
		t.Fatalf("settings: %v", err)
	}
	if _, err := fx.ctrl.Settings(ctx, 7); err != nil {
		t.Fatalf("settings: %v", err)
	}
	if fx.store.settingsReads != 1 {
		t.Fatalf("expected a single store read, got %d", fx.store.settingsReads)
	}

	fx.ctrl.InvalidateSettings(7)
	if _, err := fx.ctrl.Settings(ctx, 7); err != nil {
		t.Fatalf("settings: %v", err)
	}
	if fx.store.settingsReads != 2 {
		t.Fatalf("invalidation must force a re-read, got %d reads", fx.store.settingsReads)
	}
}

func TestControllerUpdateSettingsRejectsInvalid(t *testing.T) {
	t.Parallel()

	fx := newControllerFixture(t)
	ctx := context.Background()

	settings := db.DefaultSettings(8)
	settings.SpamMessageLimit = 0
	if err := fx.ctrl.UpdateSettings(ctx, settings); err == nil {
		t.Fatalf("expected validation error")
	}

	current, err := fx.ctrl.Settings(ctx, 8)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if current.SpamMessageLimit != 5 {
		t.Fatalf("rejected settings leaked into the cache: %+v", current)
	}
}

func TestControllerWarnLifecycle(t *testing.T) {
	t.Parallel()

	fx := newControllerFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := fx.ctrl.AddWarn(ctx, 9, 60, 1, "spam")
		if err != nil {
			t.Fatalf("add warn: %v", err)
		}
		if i == 2 && result.Escalation != moderation.EscalationMute {
			t.Fatalf("third warning must escalate to mute, got %q", result.Escalation)
		}
	}

	actions, err := fx.ctrl.ModLog(ctx, 9, 10, 0)
	if err != nil {
		t.Fatalf("mod log: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 audited warns, got %d", len(actions))
	}

	cleared, err := fx.ctrl.ClearWarns(ctx, 9, 60, 1)
	if err != nil {
		t.Fatalf("clear warns: %v", err)
	}
	if cleared != 3 {
		t.Fatalf("cleared %d, want 3", cleared)
	}

	actions, err = fx.ctrl.ModLog(ctx, 9, 10, 0)
	if err != nil {
		t.Fatalf("mod log: %v", err)
	}
	if len(actions) != 4 || actions[0].ActionType != db.ActionClearWarns {
		t.Fatalf("clearwarns must be audited, got %d actions", len(actions))
	}
}

func TestControllerFilterWordManagement(t *testing.T) {
	t.Parallel()

	fx := newControllerFixture(t)
	ctx := context.Background()

	added, err := fx.ctrl.AddFilterWord(ctx, 11, "Scam")
	if err != nil {
		t.Fatalf("add filter word: %v", err)
	}
	if !added {
		t.Fatalf("expected word added")
	}

	added, err = fx.ctrl.AddFilterWord(ctx, 11, "scam")
	if err != nil {
		t.Fatalf("add duplicate: %v", err)
	}
	if added {
		t.Fatalf("duplicate must be rejected")
	}

	result, err := fx.ctrl.OnMessage(ctx, moderation.MessageEvent{
		ChatID: 11, UserID: 10, Text: "obvious scam here", At: time.Now(),
	})
	if err != nil {
		t.Fatalf("on message: %v", err)
	}
	if result.Reason != "filter:scam" {
		t.Fatalf("added word must filter immediately, got %+v", result)
	}

	removed, err := fx.ctrl.RemoveFilterWord(ctx, 11, "scam")
	if err != nil {
		t.Fatalf("remove filter word: %v", err)
	}
	if !removed {
		t.Fatalf("expected word removed")
	}

	result, err = fx.ctrl.OnMessage(ctx, moderation.MessageEvent{
		ChatID: 11, UserID: 11, Text: "obvious scam here", At: time.Now(),
	})
	if err != nil {
		t.Fatalf("on message: %v", err)
	}
	if result.Action == moderation.ActionDelete && result.Reason == "filter:scam" {
		t.Fatalf("removed word still filtering")
	}
}
