package redis

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
)

type redisClient struct {
	rdb  redis.UniversalClient
	keys keyBuilder

	logger *log.Entry
}

// NewClient connects to Redis and returns a store client. The connection is
// verified with a ping so misconfiguration surfaces at startup, not on the
// first moderation decision.
func NewClient(ctx context.Context, addr, password string, database int) (db.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return &redisClient{
		rdb:    rdb,
		logger: log.WithField("object", "redisClient"),
	}, nil
}

// NewClientFromRDB wraps an existing Redis connection, used by tests that
// manage their own connection lifecycle.
func NewClientFromRDB(rdb redis.UniversalClient) db.Client {
	return &redisClient{
		rdb:    rdb,
		logger: log.WithField("object", "redisClient"),
	}
}

func (c *redisClient) Close() error {
	return c.rdb.Close()
}

func (c *redisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
