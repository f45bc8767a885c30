// Package security masks user and chat identifiers before they reach process
// logs. The transform is a keyed one-way HMAC: the same id always yields the
// same pseudonym, but the raw id cannot be recovered without the salt. Raw
// identifiers are only ever written to the audit store and sink, which are
// the privileged read path.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"

	log "github.com/sirupsen/logrus"
)

type Masker struct {
	salt []byte
}

// NewMasker builds a masker from the configured salt. An empty salt generates
// a process-lifetime random one, which keeps logs masked but makes pseudonyms
// unstable across restarts.
func NewMasker(salt string) *Masker {
	if salt == "" {
		log.Warn("data hash salt not configured, generating an ephemeral one; pseudonyms will change on restart")
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.WithField("error", err.Error()).Fatal("cant generate ephemeral salt")
		}
		salt = hex.EncodeToString(buf)
	}
	return &Masker{salt: []byte(salt)}
}

func (m *Masker) mask(context string, id int64) string {
	h := hmac.New(sha256.New, m.salt)
	h.Write([]byte(context + ":" + strconv.FormatInt(id, 10)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// UserID returns a stable pseudonym for a user id, safe for log lines.
func (m *Masker) UserID(id int64) string {
	return "u_" + m.mask("user", id)
}

// ChatID returns a stable pseudonym for a chat id. Chats hash in their own
// context so a chat and a user with equal numeric ids do not collide.
func (m *Masker) ChatID(id int64) string {
	return "c_" + m.mask("chat", id)
}

var usernameRE = regexp.MustCompile(`@\w+`)

// Action formats a moderation action as a log-safe line: ids are masked and
// any @username embedded in the reason is redacted.
func (m *Masker) Action(actionType string, targetUserID, chatID, adminID int64, auto bool, reason string) string {
	admin := "auto"
	if !auto && adminID != 0 {
		admin = m.UserID(adminID)
	}
	safeReason := usernameRE.ReplaceAllString(reason, "@***")
	if len(safeReason) > 50 {
		safeReason = safeReason[:50]
	}
	return "[" + actionType + "] target=" + m.UserID(targetUserID) + " chat=" + m.ChatID(chatID) + " by=" + admin + " reason=" + safeReason
}
