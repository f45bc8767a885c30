// Package telegram adapts the moderation engine's enforcement and messaging
// needs onto the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

// CallbackPrefix namespaces challenge answer callbacks.
const CallbackPrefix = "captcha:"

// Operations provides the Telegram bot operations the engine enforces with.
type Operations struct {
	bot *api.BotAPI
}

func NewOperations(bot *api.BotAPI) *Operations {
	return &Operations{bot: bot}
}

// SendMessage sends plain text to a chat and returns the message id.
func (o *Operations) SendMessage(ctx context.Context, chatID int64, text string) (int, error) {
	sent, err := o.bot.Send(api.NewMessage(chatID, text))
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// SendChallenge sends the admission question with one answer button per
// option and returns the message id.
func (o *Operations) SendChallenge(ctx context.Context, chatID int64, text string, options []string) (int, error) {
	buttons := make([]api.InlineKeyboardButton, 0, len(options))
	for _, option := range options {
		buttons = append(buttons, api.NewInlineKeyboardButtonData(option, CallbackPrefix+option))
	}

	msg := api.NewMessage(chatID, text)
	msg.ReplyMarkup = api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(buttons...))
	sent, err := o.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send challenge: %w", err)
	}
	return sent.MessageID, nil
}

// SendAuditMessage delivers a formatted audit entry to the log channel.
func (o *Operations) SendAuditMessage(ctx context.Context, channelID int64, text string) error {
	if _, err := o.bot.Send(api.NewMessage(channelID, text)); err != nil {
		return fmt.Errorf("failed to send audit message: %w", err)
	}
	return nil
}

// DeleteMessage deletes a message from a chat.
func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// BanUser permanently bans a user from a chat.
func (o *Operations) BanUser(ctx context.Context, chatID, userID int64) error {
	config := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		RevokeMessages: true,
	}
	if _, err := o.bot.Request(config); err != nil {
		if strings.Contains(err.Error(), "not enough rights") {
			return fmt.Errorf("not enough rights to ban user")
		}
		return fmt.Errorf("failed to ban user: %w", err)
	}
	return nil
}

// UnbanUser lifts a ban so the user may rejoin.
func (o *Operations) UnbanUser(ctx context.Context, chatID, userID int64) error {
	config := api.UnbanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	}
	if _, err := o.bot.Request(config); err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

// RestrictUser mutes a user until the given time.
func (o *Operations) RestrictUser(ctx context.Context, chatID, userID int64, until time.Time) error {
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		UntilDate: until.Unix(),
		Permissions: &api.ChatPermissions{
			CanSendMessages:       false,
			CanSendOtherMessages:  false,
			CanAddWebPagePreviews: false,
		},
	}
	if _, err := o.bot.Request(config); err != nil {
		return fmt.Errorf("failed to restrict user: %w", err)
	}
	return nil
}

// UnrestrictUser removes chat restrictions from a user.
func (o *Operations) UnrestrictUser(ctx context.Context, chatID, userID int64) error {
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		Permissions: &api.ChatPermissions{
			CanSendMessages:       true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
		},
	}
	if _, err := o.bot.Request(config); err != nil {
		return fmt.Errorf("failed to unrestrict user: %w", err)
	}
	return nil
}

// MemberStatus returns the user's membership status in the chat.
func (o *Operations) MemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	member, err := o.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get chat member: %w", err)
	}
	return member.Status, nil
}

// AnswerCallback acknowledges a callback query, optionally with a toast.
func (o *Operations) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := o.bot.Request(api.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}
