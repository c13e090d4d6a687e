package core

import "strings"

// IsBlocked reports whether any pattern is a literal substring of url.
// Patterns are tried in order and the first hit wins. There is no case folding,
// decoding or normalisation, and an empty pattern matches every URL.
func IsBlocked(url string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}

// MatchingPattern returns the first pattern contained in url.
func MatchingPattern(url string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if strings.Contains(url, p) {
			return p, true
		}
	}
	return "", false
}
