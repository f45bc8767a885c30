package redis

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/wardenbot/warden/internal/db"
)

// GetSettings returns the stored policy for a chat, or (nil, nil) when the
// chat was never configured. A corrupt stored value is treated the same as a
// missing one so a bad write cannot take moderation down.
func (c *redisClient) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	raw, err := c.rdb.Get(ctx, c.keys.settings(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get settings")
	}

	settings := db.DefaultSettings(chatID)
	if err := json.Unmarshal([]byte(raw), settings); err != nil {
		c.logger.WithField("error", err.Error()).Warn("corrupt settings payload, falling back to defaults")
		return nil, nil
	}
	settings.ChatID = chatID
	return settings, nil
}

// SetSettings validates and atomically replaces the stored policy. On any
// violation nothing is persisted and a *db.ValidationError is returned.
func (c *redisClient) SetSettings(ctx context.Context, settings *db.Settings) error {
	if violations := settings.Validate(); len(violations) > 0 {
		return &db.ValidationError{Violations: violations}
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "marshal settings")
	}
	if err := c.rdb.Set(ctx, c.keys.settings(settings.ChatID), data, 0).Err(); err != nil {
		return errors.Wrap(err, "set settings")
	}
	return nil
}

func (c *redisClient) DeleteSettings(ctx context.Context, chatID int64) error {
	return errors.Wrap(c.rdb.Del(ctx, c.keys.settings(chatID)).Err(), "delete settings")
}

// ExportSettings serializes the chat's policy (defaults when unset) without
// the chat identifier, which is always supplied by the importing call.
func (c *redisClient) ExportSettings(ctx context.Context, chatID int64) (string, error) {
	settings, err := c.GetSettings(ctx, chatID)
	if err != nil {
		return "", err
	}
	if settings == nil {
		settings = db.DefaultSettings(chatID)
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return "", errors.Wrap(err, "marshal settings")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", errors.Wrap(err, "reshape settings")
	}
	delete(fields, "chat_id")

	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal export")
	}
	return string(out), nil
}

// ImportSettings parses a JSON payload on top of the default policy,
// re-validates and persists it. The chat id in the payload, if any, is
// ignored in favor of the one given by the caller. A malformed or invalid
// payload is rejected whole; nothing is partially applied.
func (c *redisClient) ImportSettings(ctx context.Context, chatID int64, payload string) (*db.Settings, error) {
	settings := db.DefaultSettings(chatID)

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(settings); err != nil {
		return nil, &db.ValidationError{Violations: []string{"malformed settings payload: " + err.Error()}}
	}
	settings.ChatID = chatID

	if err := c.SetSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
