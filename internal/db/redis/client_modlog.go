package redis

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/wardenbot/warden/internal/db"
)

// maxModLogEntries caps the per-chat audit log; the oldest entries are
// silently dropped once the cap is exceeded.
const maxModLogEntries = 1000

// AppendModAction prepends the action to the chat's audit log and trims it to
// the cap in one pipeline.
func (c *redisClient) AppendModAction(ctx context.Context, action *db.ModAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return errors.Wrap(err, "marshal mod action")
	}

	key := c.keys.modlog(action.ChatID)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, maxModLogEntries-1)
		return nil
	})
	return errors.Wrap(err, "append mod action")
}

// ListModActions returns up to limit most recent actions. When targetUserID
// is non-zero only actions against that user are returned; the log is
// over-fetched by a factor of five before filtering, matching the read
// behavior the audit surface documents.
func (c *redisClient) ListModActions(ctx context.Context, chatID int64, limit int, targetUserID int64) ([]*db.ModAction, error) {
	if limit <= 0 {
		limit = 20
	}
	fetch := int64(limit)
	if targetUserID != 0 {
		fetch *= 5
	}

	raws, err := c.rdb.LRange(ctx, c.keys.modlog(chatID), 0, fetch-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list mod actions")
	}

	actions := make([]*db.ModAction, 0, limit)
	for _, raw := range raws {
		var action db.ModAction
		if err := json.Unmarshal([]byte(raw), &action); err != nil {
			c.logger.WithField("error", err.Error()).Warn("corrupt mod action entry skipped")
			continue
		}
		if targetUserID != 0 && action.TargetUserID != targetUserID {
			continue
		}
		actions = append(actions, &action)
		if len(actions) >= limit {
			break
		}
	}
	return actions, nil
}
