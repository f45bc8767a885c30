package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/wardenbot/warden/internal/db"
)

// RecordJoin stores the member's most recent join time. The record lives for
// the maximum configurable newbie period plus an hour of slack, so the link
// gate never consults a record older than it could possibly need.
func (c *redisClient) RecordJoin(ctx context.Context, chatID, userID int64, at time.Time) error {
	ttl := db.MaxNewbiePeriod + time.Hour
	err := c.rdb.Set(ctx, c.keys.join(chatID, userID), strconv.FormatInt(at.Unix(), 10), ttl).Err()
	return errors.Wrap(err, "record join")
}

func (c *redisClient) GetJoinTime(ctx context.Context, chatID, userID int64) (time.Time, bool, error) {
	raw, err := c.rdb.Get(ctx, c.keys.join(chatID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "get join time")
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(seconds, 0), true, nil
}
