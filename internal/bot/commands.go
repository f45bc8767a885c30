package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/wardenbot/warden/internal/db"
	"github.com/wardenbot/warden/internal/handlers/moderation"
)

const defaultModLogLimit = 10

func (up *UpdateProcessor) handleCommand(ctx context.Context, msg *api.Message) error {
	chatID := msg.Chat.ID

	isAdmin, err := up.perms.IsAdmin(ctx, chatID, msg.From.ID)
	if err != nil {
		up.logger.WithField("error", err.Error()).Warn("cant check admin status for command")
	}

	switch msg.Command() {
	case "warns":
		// The only command open to everyone: members may inspect their own
		// record, admins anyone's.
		target := msg.From
		if isAdmin && msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
			target = msg.ReplyToMessage.From
		}
		return up.cmdWarns(ctx, chatID, target)
	}

	if !isAdmin {
		return nil
	}

	switch msg.Command() {
	case "warn":
		return up.cmdWarn(ctx, msg)
	case "clearwarns":
		return up.cmdClearWarns(ctx, msg)
	case "ban":
		return up.cmdBan(ctx, msg)
	case "kick":
		return up.cmdKick(ctx, msg)
	case "mute":
		return up.cmdMute(ctx, msg)
	case "unmute":
		return up.cmdUnmute(ctx, msg)
	case "modlog":
		return up.cmdModLog(ctx, msg)
	case "filter":
		return up.cmdFilter(ctx, msg)
	}
	return nil
}

func (up *UpdateProcessor) replyTarget(msg *api.Message) *api.User {
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		return nil
	}
	return msg.ReplyToMessage.From
}

func (up *UpdateProcessor) reply(ctx context.Context, chatID int64, text string) error {
	_, err := up.ops.SendMessage(ctx, chatID, text)
	return err
}

func (up *UpdateProcessor) cmdWarn(ctx context.Context, msg *api.Message) error {
	target := up.replyTarget(msg)
	if target == nil {
		return up.reply(ctx, msg.Chat.ID, "Reply to the offending message with /warn [reason].")
	}
	reason := strings.TrimSpace(msg.CommandArguments())
	if reason == "" {
		reason = "manual"
	}

	result, err := up.ctrl.AddWarn(ctx, msg.Chat.ID, target.ID, msg.From.ID, reason)
	if err != nil {
		return err
	}
	up.applyEscalation(ctx, msg.Chat.ID, target.ID, result)

	text := fmt.Sprintf("%s warned (%s).", GetUN(target), fmtCount(result.Total, "warning", "warnings"))
	switch result.Escalation {
	case moderation.EscalationMute:
		text += fmt.Sprintf(" Muted for %d hours.", result.MuteDurationHours)
	case moderation.EscalationBan:
		text += " Banned."
	}
	return up.reply(ctx, msg.Chat.ID, text)
}

func (up *UpdateProcessor) cmdWarns(ctx context.Context, chatID int64, target *api.User) error {
	warnings, err := up.ctrl.Warnings(ctx, chatID, target.ID)
	if err != nil {
		return err
	}
	if len(warnings) == 0 {
		return up.reply(ctx, chatID, GetUN(target)+" has no warnings.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s has %s:\n", GetUN(target), fmtCount(int64(len(warnings)), "warning", "warnings"))
	for _, w := range warnings {
		reason := w.Reason
		if reason == "" {
			reason = "not specified"
		}
		fmt.Fprintf(&b, "• %s (%s)\n", reason, w.CreatedAt.Format("2006-01-02"))
	}
	return up.reply(ctx, chatID, b.String())
}

func (up *UpdateProcessor) cmdClearWarns(ctx context.Context, msg *api.Message) error {
	target := up.replyTarget(msg)
	if target == nil {
		return up.reply(ctx, msg.Chat.ID, "Reply to the member's message with /clearwarns.")
	}
	count, err := up.ctrl.ClearWarns(ctx, msg.Chat.ID, target.ID, msg.From.ID)
	if err != nil {
		return err
	}
	return up.reply(ctx, msg.Chat.ID, fmt.Sprintf("Cleared %s for %s.", fmtCount(count, "warning", "warnings"), GetUN(target)))
}

func (up *UpdateProcessor) cmdBan(ctx context.Context, msg *api.Message) error {
	target := up.replyTarget(msg)
	if target == nil {
		return up.reply(ctx, msg.Chat.ID, "Reply to the member's message with /ban [reason].")
	}
	if err := up.ops.BanUser(ctx, msg.Chat.ID, target.ID); err != nil {
		return up.reply(ctx, msg.Chat.ID, "Could not ban: "+err.Error())
	}
	up.auditAdmin(ctx, msg, db.ActionBan, target.ID)
	return up.reply(ctx, msg.Chat.ID, GetUN(target)+" banned.")
}

func (up *UpdateProcessor) cmdKick(ctx context.Context, msg *api.Message) error {
	target := up.replyTarget(msg)
	if target == nil {
		return up.reply(ctx, msg.Chat.ID, "Reply to the member's message with /kick [reason].")
	}
	if err := up.ops.BanUser(ctx, msg.Chat.ID, target.ID); err != nil {
		return up.reply(ctx, msg.Chat.ID, "Could not kick: "+err.Error())
	}
	if err := up.ops.UnbanUser(ctx, msg.Chat.ID, target.ID); err != nil {
		up.logger.WithField("error", err.Error()).Warn("cant lift kick ban")
	}
	up.auditAdmin(ctx, msg, db.ActionKick, target.ID)
	return up.reply(ctx, msg.Chat.ID, GetUN(target)+" kicked.")
}

func (up *UpdateProcessor) cmdMute(ctx context.Context, msg *api.Message) error {
	target := up.replyTarget(msg)
	if target == nil {
		return up.reply(ctx, msg.Chat.ID, "Reply to the member's message with /mute [hours].")
	}
	hours := 24
	if args := strings.Fields(msg.CommandArguments()); len(args) > 0 {
		hours = parseIntArg(args[0], 24)
	}
	until := time.Now().Add(time.Duration(hours) * time.Hour)
	if err := up.ops.RestrictUser(ctx, msg.Chat.ID, target.ID, until); err != nil {
		return up.reply(ctx, msg.Chat.ID, "Could not mute: "+err.Error())
	}
	up.auditAdmin(ctx, msg, db.ActionMute, target.ID)
	return up.reply(ctx, msg.Chat.ID, fmt.Sprintf("%s muted for %d hours.", GetUN(target), hours))
}

func (up *UpdateProcessor) cmdUnmute(ctx context.Context, msg *api.Message) error {
	target := up.replyTarget(msg)
	if target == nil {
		return up.reply(ctx, msg.Chat.ID, "Reply to the member's message with /unmute.")
	}
	if err := up.ops.UnrestrictUser(ctx, msg.Chat.ID, target.ID); err != nil {
		return up.reply(ctx, msg.Chat.ID, "Could not unmute: "+err.Error())
	}
	up.auditAdmin(ctx, msg, db.ActionUnmute, target.ID)
	return up.reply(ctx, msg.Chat.ID, GetUN(target)+" unmuted.")
}

func (up *UpdateProcessor) cmdModLog(ctx context.Context, msg *api.Message) error {
	limit := parseIntArg(strings.TrimSpace(msg.CommandArguments()), defaultModLogLimit)
	var targetID int64
	if target := up.replyTarget(msg); target != nil {
		targetID = target.ID
	}

	actions, err := up.ctrl.ModLog(ctx, msg.Chat.ID, limit, targetID)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		return up.reply(ctx, msg.Chat.ID, "The moderation log is empty.")
	}

	var b strings.Builder
	b.WriteString("Recent moderation actions:\n")
	for _, a := range actions {
		issuer := "auto"
		if !a.Auto {
			issuer = fmt.Sprintf("admin %d", a.AdminID)
		}
		reason := a.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(&b, "• %s user %d by %s: %s (%s)\n",
			a.ActionType, a.TargetUserID, issuer, reason, a.CreatedAt.Format("01-02 15:04"))
	}
	return up.reply(ctx, msg.Chat.ID, b.String())
}

func (up *UpdateProcessor) cmdFilter(ctx context.Context, msg *api.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		return up.reply(ctx, msg.Chat.ID, "Usage: /filter add <word> | del <word> | list")
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return up.reply(ctx, msg.Chat.ID, "Usage: /filter add <word>")
		}
		word := strings.Join(args[1:], " ")
		added, err := up.ctrl.AddFilterWord(ctx, msg.Chat.ID, word)
		if err != nil {
			return err
		}
		if !added {
			return up.reply(ctx, msg.Chat.ID, "Word not added: already on the list or over the limits.")
		}
		return up.reply(ctx, msg.Chat.ID, "Word added to the filter.")

	case "del", "remove":
		if len(args) < 2 {
			return up.reply(ctx, msg.Chat.ID, "Usage: /filter del <word>")
		}
		word := strings.Join(args[1:], " ")
		removed, err := up.ctrl.RemoveFilterWord(ctx, msg.Chat.ID, word)
		if err != nil {
			return err
		}
		if !removed {
			return up.reply(ctx, msg.Chat.ID, "Word was not on the list.")
		}
		return up.reply(ctx, msg.Chat.ID, "Word removed from the filter.")

	case "list":
		words, err := up.ctrl.FilterWords(ctx, msg.Chat.ID)
		if err != nil {
			return err
		}
		if len(words) == 0 {
			return up.reply(ctx, msg.Chat.ID, "The filter list is empty.")
		}
		return up.reply(ctx, msg.Chat.ID, "Filtered words: "+strings.Join(words, ", "))
	}
	return up.reply(ctx, msg.Chat.ID, "Usage: /filter add <word> | del <word> | list")
}

func (up *UpdateProcessor) auditAdmin(ctx context.Context, msg *api.Message, actionType string, targetID int64) {
	reason := strings.TrimSpace(msg.CommandArguments())
	if err := up.audit.Log(ctx, db.NewModAction(msg.Chat.ID, actionType, targetID, reason, msg.From.ID, false)); err != nil {
		up.logger.WithField("error", err.Error()).Warn("cant audit admin command")
	}
}
