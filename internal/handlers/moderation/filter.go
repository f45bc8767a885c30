package moderation

import (
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/db"
)

// FilterResult is the outcome of a blacklist check.
type FilterResult struct {
	Filtered    bool
	MatchedWord string
}

func (r FilterResult) Reason() string {
	if r.MatchedWord != "" {
		return "filter:" + r.MatchedWord
	}
	return "filter"
}

const filterCacheSize = 1024

type compiledWords struct {
	fingerprint string
	patterns    []wordPattern
}

type wordPattern struct {
	word string
	re   *regexp.Regexp
}

// ContentFilter matches message text against a chat's word blacklist.
// Matching is case-insensitive and word-bounded, so a blacklisted "spam" does
// not fire inside "spammy". Compiled matchers are cached per chat and
// recompiled whenever the word list changes.
type ContentFilter struct {
	mu    sync.Mutex
	cache *lru.Cache[int64, *compiledWords]

	logger *log.Entry
}

func NewContentFilter() *ContentFilter {
	cache, err := lru.New[int64, *compiledWords](filterCacheSize)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("cant create filter cache")
	}
	return &ContentFilter{
		cache:  cache,
		logger: log.WithField("object", "contentFilter"),
	}
}

// Check reports whether the text contains any blacklisted word. The filter is
// pure with respect to the store: it only reads the word list off the passed
// settings.
func (f *ContentFilter) Check(settings *db.Settings, text string) FilterResult {
	if text == "" || len(settings.FilterWords) == 0 {
		return FilterResult{}
	}
	for _, p := range f.compiled(settings) {
		if p.re.MatchString(text) {
			return FilterResult{Filtered: true, MatchedWord: p.word}
		}
	}
	return FilterResult{}
}

// Invalidate drops the compiled matchers for a chat. Called on any word list
// mutation.
func (f *ContentFilter) Invalidate(chatID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.Remove(chatID)
}

func (f *ContentFilter) compiled(settings *db.Settings) []wordPattern {
	fingerprint := strings.Join(settings.FilterWords, "\x00")

	f.mu.Lock()
	defer f.mu.Unlock()
	if cached, ok := f.cache.Get(settings.ChatID); ok && cached.fingerprint == fingerprint {
		return cached.patterns
	}

	patterns := make([]wordPattern, 0, len(settings.FilterWords))
	for _, word := range settings.FilterWords {
		if word == "" {
			continue
		}
		re, err := compileWordPattern(word)
		if err != nil {
			f.logger.WithFields(log.Fields{"error": err.Error(), "word": word}).Warn("cant compile filter word")
			continue
		}
		patterns = append(patterns, wordPattern{word: word, re: re})
	}
	f.cache.Add(settings.ChatID, &compiledWords{fingerprint: fingerprint, patterns: patterns})
	return patterns
}

// compileWordPattern builds a case-insensitive matcher that requires the word
// to stand on its own: the adjacent rune, if any, must not be a letter or
// digit. \b is not used because it only understands ASCII word characters.
func compileWordPattern(word string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)(?:\A|[^\p{L}\p{N}])` + regexp.QuoteMeta(word) + `(?:\z|[^\p{L}\p{N}])`)
}

// AppendFilterWord normalizes the word and appends it to the list, enforcing
// the length cap, the list cap and case-insensitive de-duplication. Returns
// the updated list and whether anything changed.
func AppendFilterWord(words []string, word string) ([]string, bool) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" || len(word) > db.MaxFilterWordLen {
		return words, false
	}
	if len(words) >= db.MaxFilterWords {
		return words, false
	}
	for _, existing := range words {
		if strings.EqualFold(existing, word) {
			return words, false
		}
	}
	return append(words, word), true
}

// RemoveFilterWord removes the word (case-insensitive). Returns the updated
// list and whether anything was removed.
func RemoveFilterWord(words []string, word string) ([]string, bool) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return words, false
	}
	for i, existing := range words {
		if strings.EqualFold(existing, word) {
			return append(words[:i], words[i+1:]...), true
		}
	}
	return words, false
}
