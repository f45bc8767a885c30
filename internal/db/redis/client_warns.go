package redis

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/wardenbot/warden/internal/db"
)

func (c *redisClient) AddWarning(ctx context.Context, warning *db.Warning) error {
	data, err := json.Marshal(warning)
	if err != nil {
		return errors.Wrap(err, "marshal warning")
	}
	err = c.rdb.RPush(ctx, c.keys.warns(warning.ChatID, warning.UserID), data).Err()
	return errors.Wrap(err, "add warning")
}

func (c *redisClient) ListWarnings(ctx context.Context, chatID, userID int64) ([]*db.Warning, error) {
	raws, err := c.rdb.LRange(ctx, c.keys.warns(chatID, userID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list warnings")
	}

	warnings := make([]*db.Warning, 0, len(raws))
	for _, raw := range raws {
		var warning db.Warning
		if err := json.Unmarshal([]byte(raw), &warning); err != nil {
			c.logger.WithField("error", err.Error()).Warn("corrupt warning entry skipped")
			continue
		}
		warnings = append(warnings, &warning)
	}
	return warnings, nil
}

func (c *redisClient) CountWarnings(ctx context.Context, chatID, userID int64) (int64, error) {
	count, err := c.rdb.LLen(ctx, c.keys.warns(chatID, userID)).Result()
	return count, errors.Wrap(err, "count warnings")
}

// ClearWarnings removes every warning for the user and returns how many were
// dropped. The read and the delete run in one pipeline so a concurrent
// AddWarning cannot be counted without being deleted.
func (c *redisClient) ClearWarnings(ctx context.Context, chatID, userID int64) (int64, error) {
	key := c.keys.warns(chatID, userID)

	var count *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.LLen(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "clear warnings")
	}
	return count.Val(), nil
}
