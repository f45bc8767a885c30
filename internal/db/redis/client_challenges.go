package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/wardenbot/warden/internal/db"
)

// CreateChallenge stores the challenge under the (chat, user) key, replacing
// any live predecessor. The TTL carries a grace margin past the challenge
// timeout so the timeout handler always finds the record it needs to clean
// up, even when its timer fires late.
func (c *redisClient) CreateChallenge(ctx context.Context, challenge *db.Challenge, ttl time.Duration) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return errors.Wrap(err, "marshal challenge")
	}
	err = c.rdb.Set(ctx, c.keys.challenge(challenge.ChatID, challenge.UserID), data, ttl).Err()
	return errors.Wrap(err, "create challenge")
}

// GetChallenge returns (nil, nil) when no live challenge exists: an already
// solved or expired challenge is an expected state, not an error.
func (c *redisClient) GetChallenge(ctx context.Context, chatID, userID int64) (*db.Challenge, error) {
	raw, err := c.rdb.Get(ctx, c.keys.challenge(chatID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get challenge")
	}

	var challenge db.Challenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		c.logger.WithField("error", err.Error()).Warn("corrupt challenge payload dropped")
		return nil, nil
	}
	return &challenge, nil
}

// DeleteChallenge is idempotent: deleting an absent challenge succeeds, which
// is what resolves the verify-vs-timeout race.
func (c *redisClient) DeleteChallenge(ctx context.Context, chatID, userID int64) error {
	return errors.Wrap(c.rdb.Del(ctx, c.keys.challenge(chatID, userID)).Err(), "delete challenge")
}
