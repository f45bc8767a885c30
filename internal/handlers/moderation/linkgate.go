package moderation

import (
	"context"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
)

type joinStore interface {
	GetJoinTime(ctx context.Context, chatID, userID int64) (time.Time, bool, error)
}

// Bare domains are caught too, a scheme is not required to share a link. The
// last label must be alphabetic so version numbers like 1.5 do not trip it.
var linkRE = regexp.MustCompile(`(?i)(?:https?://\S+|\b[\w-]+(?:\.[\w-]+)*\.[a-z]{2,}(?:/\S*)?)`)

// LinkGate restricts link posting by members inside their newbie period. A
// member with no join record is treated as a newbie: the gate fails closed
// for unknown tenure.
type LinkGate struct {
	store joinStore

	logger *log.Entry
}

func NewLinkGate(store joinStore) *LinkGate {
	return &LinkGate{
		store:  store,
		logger: log.WithField("object", "linkGate"),
	}
}

// Check returns the configured link action when a newbie posts a
// non-whitelisted link. The action is the chat's configured one, the caller
// maps it onto enforcement.
func (g *LinkGate) Check(ctx context.Context, settings *db.Settings, event MessageEvent) Result {
	if !settings.LinkFilterEnabled {
		return Result{Action: ActionNone}
	}
	links := linkRE.FindAllString(event.Text, -1)
	if len(links) == 0 {
		return Result{Action: ActionNone}
	}
	if allWhitelisted(links, settings.LinkWhitelist) {
		return Result{Action: ActionNone}
	}
	if !g.IsNewbie(ctx, settings, event.ChatID, event.UserID, event.At) {
		return Result{Action: ActionNone}
	}

	result := Result{
		Reason:  "newbie_link",
		Details: ReasonDetails("newbie_link"),
	}
	switch settings.LinkAction {
	case "warn":
		result.Action = ActionWarn
		result.ShouldDelete = true
	case "hold":
		result.Action = ActionHold
	default:
		result.Action = ActionDelete
		result.ShouldDelete = true
	}
	return result
}

// IsNewbie reports whether the member is still inside the chat's newbie
// window at the given time. Missing join records count as newbie, and a zero
// window disables the gate entirely.
func (g *LinkGate) IsNewbie(ctx context.Context, settings *db.Settings, chatID, userID int64, at time.Time) bool {
	if settings.LinkNewbieHours == 0 {
		return false
	}
	joinedAt, found, err := g.store.GetJoinTime(ctx, chatID, userID)
	if err != nil {
		g.logger.WithField("error", err.Error()).Warn("cant read join time")
		return true
	}
	if !found {
		return true
	}
	return at.Sub(joinedAt) < settings.NewbiePeriod()
}

func allWhitelisted(links, whitelist []string) bool {
	if len(whitelist) == 0 {
		return false
	}
	for _, link := range links {
		if !isWhitelisted(link, whitelist) {
			return false
		}
	}
	return true
}

func isWhitelisted(link string, whitelist []string) bool {
	link = strings.ToLower(link)
	for _, domain := range whitelist {
		if domain == "" {
			continue
		}
		if strings.Contains(link, strings.ToLower(domain)) {
			return true
		}
	}
	return false
}
