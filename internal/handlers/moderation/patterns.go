package moderation

import (
	"regexp"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/wardenbot/warden/resources"
)

// PatternSet holds the built-in spam signatures, grouped by category. The
// categories are checked in a fixed order so a message hitting several lists
// always reports the same reason.
type PatternSet struct {
	categories []patternCategory
}

type patternCategory struct {
	name     string
	patterns []*regexp.Regexp
}

var patternOrder = []string{"crypto_scam", "adult_content", "spam_pattern"}

// LoadPatterns parses the embedded signature file. Individual broken patterns
// are logged and skipped rather than failing the whole load.
func LoadPatterns() (*PatternSet, error) {
	raw, err := resources.FS.ReadFile("spam/patterns.yml")
	if err != nil {
		return nil, errors.WithMessage(err, "read spam patterns")
	}

	var parsed map[string][]string
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.WithMessage(err, "parse spam patterns")
	}

	logger := log.WithField("object", "patternSet")
	set := &PatternSet{}
	for _, name := range patternOrder {
		category := patternCategory{name: name}
		for _, expr := range parsed[name] {
			re, err := regexp.Compile(`(?i)` + expr)
			if err != nil {
				logger.WithFields(log.Fields{"error": err.Error(), "pattern": expr}).Warn("cant compile spam pattern")
				continue
			}
			category.patterns = append(category.patterns, re)
		}
		set.categories = append(set.categories, category)
	}
	return set, nil
}

// Match returns the name of the first category with a matching pattern, or ""
// when the text is clean.
func (s *PatternSet) Match(text string) string {
	if text == "" {
		return ""
	}
	for _, category := range s.categories {
		for _, re := range category.patterns {
			if re.MatchString(text) {
				return category.name
			}
		}
	}
	return ""
}
