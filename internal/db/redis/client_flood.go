package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Flood windows are sorted sets of message timestamps, scored by unix
// nanoseconds. Retention is twice the configured window; the key expires on
// its own after three windows of silence. Members carry a unique suffix:
// ZADD on an existing member only rescores it, so equal timestamps would
// otherwise collapse into one entry and undercount the burst.

func floodScore(at time.Time) float64 {
	return float64(at.UnixNano())
}

func floodMember(at time.Time) string {
	return strconv.FormatInt(at.UnixNano(), 10) + ":" + uuid.New()
}

// RecordMessage appends a message timestamp to the user's flood window,
// prunes entries beyond the retention horizon and returns the number of
// entries inside the trailing window, all as one pipelined operation so a
// racing check for the same user cannot observe a half-applied window.
func (c *redisClient) RecordMessage(ctx context.Context, chatID, userID int64, at time.Time, window time.Duration) (int64, error) {
	key := c.keys.flood(chatID, userID)

	var count *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: floodScore(at), Member: floodMember(at)})
		horizon := at.Add(-2 * window)
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(floodScore(horizon), 'f', 0, 64))
		pipe.Expire(ctx, key, 3*window)
		count = pipe.ZCount(ctx, key,
			strconv.FormatFloat(floodScore(at.Add(-window)), 'f', 0, 64),
			strconv.FormatFloat(floodScore(at), 'f', 0, 64),
		)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "record message")
	}
	return count.Val(), nil
}

// FloodTimestamps returns the message timestamps inside the trailing window,
// oldest first, so enforcement can bulk-handle the offending burst.
func (c *redisClient) FloodTimestamps(ctx context.Context, chatID, userID int64, at time.Time, window time.Duration) ([]time.Time, error) {
	members, err := c.rdb.ZRangeByScore(ctx, c.keys.flood(chatID, userID), &redis.ZRangeBy{
		Min: strconv.FormatFloat(floodScore(at.Add(-window)), 'f', 0, 64),
		Max: strconv.FormatFloat(floodScore(at), 'f', 0, 64),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "flood timestamps")
	}

	timestamps := make([]time.Time, 0, len(members))
	for _, member := range members {
		nanosPart, _, _ := strings.Cut(member, ":")
		nanos, err := strconv.ParseInt(nanosPart, 10, 64)
		if err != nil {
			continue
		}
		timestamps = append(timestamps, time.Unix(0, nanos))
	}
	return timestamps, nil
}

func (c *redisClient) ClearFlood(ctx context.Context, chatID, userID int64) error {
	return errors.Wrap(c.rdb.Del(ctx, c.keys.flood(chatID, userID)).Err(), "clear flood")
}
