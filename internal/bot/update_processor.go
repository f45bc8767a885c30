package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/handlers/moderation"
	"github.com/wardenbot/warden/internal/infrastructure/telegram"
	"github.com/wardenbot/warden/internal/observability"
)

// UpdateTimeout drops updates older than this, typically a backlog replayed
// after downtime.
const UpdateTimeout = 5 * time.Minute

// UpdateProcessor routes inbound updates to the moderation engine and turns
// its verdicts into chat actions.
type UpdateProcessor struct {
	ctrl    *moderation.Controller
	ops     enforcementOps
	perms   adminChecker
	gate    admissionGate
	greeter greeter
	audit   auditLog
	selfID  int64

	logger *log.Entry
}

func NewUpdateProcessor(
	ctrl *moderation.Controller,
	ops enforcementOps,
	perms adminChecker,
	gate admissionGate,
	greeter greeter,
	audit auditLog,
	selfID int64,
) *UpdateProcessor {
	return &UpdateProcessor{
		ctrl:    ctrl,
		ops:     ops,
		perms:   perms,
		gate:    gate,
		greeter: greeter,
		audit:   audit,
		selfID:  selfID,
		logger:  log.WithField("object", "updateProcessor"),
	}
}

func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}

	if u.CallbackQuery != nil {
		return up.handleCallback(ctx, u)
	}

	msg := u.Message
	if msg == nil {
		return nil
	}
	if time.Since(time.Unix(int64(msg.Date), 0)) > UpdateTimeout {
		up.logger.WithField("age", time.Since(time.Unix(int64(msg.Date), 0))).Debug("skipping outdated update")
		return nil
	}
	if msg.Chat.Type == "private" {
		return nil
	}

	if len(msg.NewChatMembers) > 0 {
		return up.handleJoins(ctx, msg)
	}
	if msg.From == nil || msg.From.ID == up.selfID {
		return nil
	}
	if msg.IsCommand() {
		return up.handleCommand(ctx, msg)
	}
	return up.handleMessage(ctx, msg)
}

func (up *UpdateProcessor) handleJoins(ctx context.Context, msg *api.Message) error {
	for _, member := range msg.NewChatMembers {
		event := moderation.JoinEvent{
			ChatID:    msg.Chat.ID,
			ChatTitle: msg.Chat.Title,
			User:      toUser(&member),
		}
		if err := up.ctrl.OnJoin(ctx, event); err != nil {
			up.logger.WithField("error", err.Error()).Error("cant process join")
		}
	}
	return nil
}

func (up *UpdateProcessor) handleMessage(ctx context.Context, msg *api.Message) error {
	chatID, userID := msg.Chat.ID, msg.From.ID

	// Unverified members may not talk until they pass the challenge.
	pending, err := up.gate.Pending(ctx, chatID, userID)
	if err != nil {
		up.logger.WithField("error", err.Error()).Warn("cant check pending challenge")
	}
	if pending {
		if err := up.ops.DeleteMessage(ctx, chatID, msg.MessageID); err != nil {
			up.logger.WithField("error", err.Error()).Warn("cant delete unverified member message")
		}
		return nil
	}

	isAdmin, err := up.perms.IsAdmin(ctx, chatID, userID)
	if err != nil {
		up.logger.WithField("error", err.Error()).Warn("cant check admin status")
	}
	if isAdmin {
		return nil
	}

	event := moderation.MessageEvent{
		ChatID:    chatID,
		UserID:    userID,
		MessageID: msg.MessageID,
		Text:      strings.TrimSpace(msg.Text + " " + msg.Caption),
		// Arrival wall-clock time, not msg.Date: the platform timestamp has
		// whole-second granularity, which cannot order a burst within one
		// second for the flood window.
		At: time.Now(),
	}
	result, err := up.ctrl.OnMessage(ctx, event)
	if err != nil {
		return errors.WithMessage(err, "moderation check")
	}
	observability.Decisions.WithLabelValues(string(result.Action)).Inc()
	if result.Action == moderation.ActionNone {
		return nil
	}
	return up.enforce(ctx, msg, result)
}

func (up *UpdateProcessor) enforce(ctx context.Context, msg *api.Message, result moderation.Result) error {
	chatID, userID := msg.Chat.ID, msg.From.ID

	if result.ShouldDelete {
		if err := up.ops.DeleteMessage(ctx, chatID, msg.MessageID); err != nil {
			up.logger.WithField("error", err.Error()).Warn("cant delete offending message")
		}
	}

	switch result.Action {
	case moderation.ActionDelete:
		actionType := db.ActionSpam
		if strings.HasPrefix(result.Reason, "filter:") {
			actionType = db.ActionFilter
			up.notifyFiltered(ctx, chatID, userID)
		}
		up.auditAuto(ctx, chatID, actionType, userID, result.Reason)

	case moderation.ActionMute:
		until := time.Now().Add(time.Duration(result.MuteDurationMin) * time.Minute)
		if err := up.ops.RestrictUser(ctx, chatID, userID, until); err != nil {
			up.logger.WithField("error", err.Error()).Error("cant mute flooding member")
		}
		up.ctrl.ClearFloodHistory(ctx, chatID, userID)
		up.auditAuto(ctx, chatID, db.ActionMute, userID, result.Reason)

	case moderation.ActionWarn:
		warnResult, err := up.ctrl.AddWarn(ctx, chatID, userID, 0, result.Reason)
		if err != nil {
			return errors.WithMessage(err, "add warn")
		}
		up.applyEscalation(ctx, chatID, userID, warnResult)

	case moderation.ActionHold:
		up.auditAuto(ctx, chatID, db.ActionHold, userID, result.Reason)
	}
	return nil
}

// applyEscalation enforces what a warning total earned.
func (up *UpdateProcessor) applyEscalation(ctx context.Context, chatID, userID int64, result *moderation.WarnResult) {
	switch result.Escalation {
	case moderation.EscalationBan:
		if err := up.ops.BanUser(ctx, chatID, userID); err != nil {
			up.logger.WithField("error", err.Error()).Error("cant ban member over warnings")
			return
		}
		up.auditAuto(ctx, chatID, db.ActionBan, userID, "warn_threshold")
	case moderation.EscalationMute:
		until := time.Now().Add(time.Duration(result.MuteDurationHours) * time.Hour)
		if err := up.ops.RestrictUser(ctx, chatID, userID, until); err != nil {
			up.logger.WithField("error", err.Error()).Error("cant mute member over warnings")
			return
		}
		up.auditAuto(ctx, chatID, db.ActionMute, userID, "warn_threshold")
	}
}

func (up *UpdateProcessor) handleCallback(ctx context.Context, u *api.Update) error {
	cb := u.CallbackQuery
	if !strings.HasPrefix(cb.Data, telegram.CallbackPrefix) {
		return nil
	}
	chat, user := u.FromChat(), u.SentFrom()
	if chat == nil || user == nil {
		return nil
	}
	answer := strings.TrimPrefix(cb.Data, telegram.CallbackPrefix)

	passed, err := up.gate.Verify(ctx, chat.ID, user.ID, answer)
	if err != nil {
		return errors.WithMessage(err, "verify challenge")
	}
	if !passed {
		return up.ops.AnswerCallback(ctx, cb.ID, "Wrong answer, try again.")
	}
	if err := up.ops.AnswerCallback(ctx, cb.ID, "Welcome aboard!"); err != nil {
		up.logger.WithField("error", err.Error()).Warn("cant answer callback")
	}

	settings, err := up.ctrl.Settings(ctx, chat.ID)
	if err != nil {
		return errors.WithMessage(err, "get settings")
	}
	if settings.WelcomeEnabled && up.greeter != nil {
		event := moderation.JoinEvent{
			ChatID:    chat.ID,
			ChatTitle: chat.Title,
			User:      toUser(user),
		}
		return up.greeter.Welcome(ctx, event, settings)
	}
	return nil
}

func (up *UpdateProcessor) notifyFiltered(ctx context.Context, chatID, userID int64) {
	settings, err := up.ctrl.Settings(ctx, chatID)
	if err != nil || !settings.FilterNotifyUser {
		return
	}
	if _, err := up.ops.SendMessage(ctx, userID, "Your message was removed: it contained a word this group does not allow."); err != nil {
		up.logger.WithField("error", err.Error()).Debug("cant notify filtered user")
	}
}

func (up *UpdateProcessor) auditAuto(ctx context.Context, chatID int64, actionType string, userID int64, reason string) {
	if err := up.audit.Log(ctx, db.NewModAction(chatID, actionType, userID, reason, 0, true)); err != nil {
		up.logger.WithField("error", err.Error()).Warn("cant audit enforcement")
	}
	observability.AuditEntries.Inc()
}

func toUser(u *api.User) moderation.User {
	return moderation.User{
		ID:        u.ID,
		IsBot:     u.IsBot,
		FirstName: u.FirstName,
		UserName:  u.UserName,
	}
}

// GetUN picks a printable handle for a user.
func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	userName := user.UserName
	if len(userName) == 0 {
		userName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	return userName
}

func parseIntArg(arg string, fallback int) int {
	if arg == "" {
		return fallback
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func fmtCount(n int64, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
