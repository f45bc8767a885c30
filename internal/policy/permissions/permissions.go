// Package permissions answers "is this user a chat admin" with a short-lived
// cache in front of the chat platform.
package permissions

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	adminCacheSize = 8192
	adminCacheTTL  = 5 * time.Minute
)

type memberSource interface {
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

type memberKey struct {
	chatID int64
	userID int64
}

type Checker struct {
	source memberSource
	cache  *expirable.LRU[memberKey, bool]

	logger *log.Entry
}

func NewChecker(source memberSource) *Checker {
	return &Checker{
		source: source,
		cache:  expirable.NewLRU[memberKey, bool](adminCacheSize, nil, adminCacheTTL),
		logger: log.WithField("object", "permissionsChecker"),
	}
}

// IsAdmin reports whether the user is a creator or administrator of the chat.
// Lookups are cached briefly, so a freshly demoted admin may pass for up to
// the cache TTL.
func (c *Checker) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	key := memberKey{chatID: chatID, userID: userID}
	if isAdmin, ok := c.cache.Get(key); ok {
		return isAdmin, nil
	}

	status, err := c.source.MemberStatus(ctx, chatID, userID)
	if err != nil {
		return false, errors.WithMessage(err, "member status")
	}
	isAdmin := tool.In(status, "creator", "administrator")
	c.cache.Add(key, isAdmin)
	return isAdmin, nil
}

// Invalidate drops the cached status, for promotion and demotion events.
func (c *Checker) Invalidate(chatID, userID int64) {
	c.cache.Remove(memberKey{chatID: chatID, userID: userID})
}
