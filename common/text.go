package common

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptyText = errors.New("text cannot be empty")
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases s, trims it and collapses whitespace runs to one space.
func Normalize(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	return spaceRuns.ReplaceAllString(lower, " ")
}

// MatchAny reports the first phrase contained in text. Both sides are compared normalized.
func MatchAny(text string, phrases []string) (string, bool) {
	normalized := Normalize(text)
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(normalized, Normalize(phrase)) {
			return phrase, true
		}
	}
	return "", false
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// RequireText returns the trimmed text or ErrEmptyText.
func RequireText(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", ErrEmptyText
	}
	return trimmed, nil
}
