package core

import "streamline/models"

// PatternSet is the frozen list of active patterns for one proxy run.
// It is never mutated after construction and is shared by every connection goroutine.
type PatternSet struct {
	patterns []string
}

// NewPatternSet keeps the pattern of every active rule, in store order.
func NewPatternSet(rules []models.BlockRule) PatternSet {
	patterns := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			patterns = append(patterns, r.Pattern)
		}
	}
	return PatternSet{patterns: patterns}
}

// PatternSetOf builds a set directly from patterns.
func PatternSetOf(patterns ...string) PatternSet {
	return PatternSet{patterns: append([]string(nil), patterns...)}
}

func (s PatternSet) Len() int {
	return len(s.patterns)
}

func (s PatternSet) Empty() bool {
	return len(s.patterns) == 0
}

// Patterns returns a copy.
func (s PatternSet) Patterns() []string {
	return append([]string(nil), s.patterns...)
}

func (s PatternSet) Blocks(url string) bool {
	return IsBlocked(url, s.patterns)
}

// Match returns the pattern that blocks url, if any.
func (s PatternSet) Match(url string) (string, bool) {
	return MatchingPattern(url, s.patterns)
}
