package core

import (
	"math/rand"
	"streamline/models"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		patterns []string
		want     bool
	}{
		{"no patterns", "http://ads.example.com/banner.js", nil, false},
		{"empty pattern list", "http://ads.example.com/banner.js", []string{}, false},
		{"host match", "http://ads.example.com/banner.js", []string{"ads.example.com"}, true},
		{"path match", "http://game.example.com/assets/intro.swf", []string{"/intro.swf"}, true},
		{"query match", "http://game.example.com/load?skip=ad", []string{"skip=ad"}, true},
		{"scheme is part of the url", "https://game.example.com/", []string{"https://"}, true},
		{"no match", "http://game.example.com/play.swf", []string{"ads.example.com"}, false},
		{"case sensitive", "http://ADS.example.com/", []string{"ads.example.com"}, false},
		{"no decoding", "http://game.example.com/a%20b", []string{"a b"}, false},
		{"literal not regex", "http://game.example.com/axb", []string{"a.b"}, false},
		{"regex metachar literal", "http://game.example.com/a.b", []string{"a.b"}, true},
		{"second pattern matches", "http://cdn.example.com/x", []string{"ads.", "cdn."}, true},
		{"empty pattern blocks everything", "http://game.example.com/", []string{""}, true},
		{"empty pattern blocks empty url", "", []string{""}, true},
		{"empty url", "", []string{"a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlocked(tt.url, tt.patterns))
		})
	}
}

func randomString(r *rand.Rand, alphabet string, max int) string {
	n := r.Intn(max + 1)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(alphabet[r.Intn(len(alphabet))])
	}
	return sb.String()
}

func TestIsBlockedProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	const alphabet = "ab./:"
	for i := 0; i < 2000; i++ {
		url := randomString(r, alphabet, 12)
		patterns := make([]string, r.Intn(4))
		for j := range patterns {
			patterns[j] = randomString(r, alphabet, 3)
		}

		want := false
		for _, p := range patterns {
			if strings.Contains(url, p) {
				want = true
			}
		}
		got := IsBlocked(url, patterns)
		assert.Equal(t, want, got, "url=%q patterns=%q", url, patterns)
		assert.Equal(t, got, IsBlocked(url, patterns), "idempotent")
		assert.False(t, IsBlocked(url, nil))

		extra := randomString(r, alphabet, 3)
		extended := append(append([]string(nil), patterns...), extra)
		if got {
			assert.True(t, IsBlocked(url, extended), "adding a pattern never unblocks")
		}
		assert.Equal(t, got || strings.Contains(url, extra), IsBlocked(url, extended))
	}
}

func TestMatchingPatternFirstWins(t *testing.T) {
	p, ok := MatchingPattern("http://ads.example.com/banner.js", []string{"banner", "ads"})
	assert.True(t, ok)
	assert.Equal(t, "banner", p)

	_, ok = MatchingPattern("http://x/", []string{"y"})
	assert.False(t, ok)
}

func TestNewPatternSet(t *testing.T) {
	rules := []models.BlockRule{
		{Pattern: "one", Active: true},
		{Pattern: "two", Active: false},
		{Pattern: "three", Active: true},
	}
	set := NewPatternSet(rules)
	assert.Equal(t, 2, set.Len())
	assert.False(t, set.Empty())
	assert.Equal(t, []string{"one", "three"}, set.Patterns())

	rules[0].Pattern = "changed"
	assert.Equal(t, []string{"one", "three"}, set.Patterns(), "later rule edits do not reach the set")

	got := set.Patterns()
	got[0] = "mutated"
	assert.Equal(t, []string{"one", "three"}, set.Patterns(), "Patterns returns a copy")

	assert.True(t, set.Blocks("http://x/three"))
	assert.False(t, set.Blocks("http://x/two"))
}

func TestPatternSetOnlyInactive(t *testing.T) {
	set := NewPatternSet([]models.BlockRule{{Pattern: "a"}, {Pattern: "b"}})
	assert.True(t, set.Empty())
	assert.False(t, set.Blocks("http://a/b"))
}

func TestPatternSetOfCopies(t *testing.T) {
	src := []string{"a", "b"}
	set := PatternSetOf(src...)
	src[0] = "z"
	assert.Equal(t, []string{"a", "b"}, set.Patterns())
}
