package database

import (
	"path/filepath"
	"streamline/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "streamline.db")))
	t.Cleanup(func() { CloseDB() })
}

func TestInitDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	require.NoError(t, InitDB(path))
	require.NoError(t, InitDB(path))
	t.Cleanup(func() { CloseDB() })

	rules, err := GetAllBlockRules()
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestAddBlockRule(t *testing.T) {
	setupTestDB(t)

	require.NoError(t, AddBlockRule(models.BlockRule{Pattern: "ads.example.com", Description: "ads"}))

	rule, err := GetBlockRule("ads.example.com")
	require.NoError(t, err)
	assert.Equal(t, "ads.example.com", rule.Pattern)
	assert.Equal(t, "ads", rule.Description)
	assert.False(t, rule.Active, "new rules start inactive")
	assert.False(t, rule.CreatedAt.IsZero())

	err = AddBlockRule(models.BlockRule{Pattern: "ads.example.com"})
	assert.ErrorIs(t, err, ErrRuleExists)

	for _, p := range []string{"", "   ", "\t"} {
		assert.ErrorIs(t, AddBlockRule(models.BlockRule{Pattern: p}), ErrEmptyPattern)
	}
}

func TestGetBlockRuleNotFound(t *testing.T) {
	setupTestDB(t)
	_, err := GetBlockRule("missing")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestUpdateBlockRule(t *testing.T) {
	setupTestDB(t)
	require.NoError(t, AddBlockRule(models.BlockRule{Pattern: "a.swf", Active: true}))
	require.NoError(t, AddBlockRule(models.BlockRule{Pattern: "b.swf"}))

	t.Run("rename", func(t *testing.T) {
		require.NoError(t, UpdateBlockRule("a.swf", models.BlockRule{Pattern: "c.swf", Description: "renamed"}))
		_, err := GetBlockRule("a.swf")
		assert.ErrorIs(t, err, ErrRuleNotFound)
		rule, err := GetBlockRule("c.swf")
		require.NoError(t, err)
		assert.Equal(t, "renamed", rule.Description)
		assert.False(t, rule.Active)
	})

	t.Run("rename onto existing pattern", func(t *testing.T) {
		err := UpdateBlockRule("c.swf", models.BlockRule{Pattern: "b.swf"})
		assert.ErrorIs(t, err, ErrRuleExists)
	})

	t.Run("unknown pattern", func(t *testing.T) {
		err := UpdateBlockRule("nope", models.BlockRule{Pattern: "x"})
		assert.ErrorIs(t, err, ErrRuleNotFound)
	})

	t.Run("empty pattern", func(t *testing.T) {
		err := UpdateBlockRule("b.swf", models.BlockRule{Pattern: " "})
		assert.ErrorIs(t, err, ErrEmptyPattern)
	})
}

func activePatterns(t *testing.T) []string {
	t.Helper()
	rules, err := GetAllBlockRules()
	require.NoError(t, err)
	var patterns []string
	for _, r := range rules {
		if r.Active {
			patterns = append(patterns, r.Pattern)
		}
	}
	return patterns
}

func TestActivation(t *testing.T) {
	setupTestDB(t)
	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, AddBlockRule(models.BlockRule{Pattern: p}))
	}

	assert.Empty(t, activePatterns(t))

	n, err := SetBlockRulesActive(true, "three", "one", "missing")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	assert.Equal(t, []string{"one", "three"}, activePatterns(t), "insertion order is preserved")

	n, err = SetBlockRulesActive(false, "one")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.Equal(t, []string{"three"}, activePatterns(t))
}

func TestDeleteBlockRules(t *testing.T) {
	setupTestDB(t)
	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, AddBlockRule(models.BlockRule{Pattern: p}))
	}

	n, err := DeleteBlockRules("one", "three", "missing")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rules, err := GetAllBlockRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "two", rules[0].Pattern)

	n, err = DeleteBlockRules()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertBlockRule(t *testing.T) {
	setupTestDB(t)
	require.NoError(t, UpsertBlockRule(models.BlockRule{Pattern: "p", Description: "first"}))
	require.NoError(t, UpsertBlockRule(models.BlockRule{Pattern: "p", Active: true, Description: "second"}))

	rules, err := GetAllBlockRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Active)
	assert.Equal(t, "second", rules[0].Description)
}

func TestSettings(t *testing.T) {
	setupTestDB(t)

	v, err := GetSetting(models.ProxyPortKey)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, SetSetting(models.ProxyPortKey, "8080"))
	require.NoError(t, SetSetting(models.ProxyPortKey, "9090"))

	s, err := GetAppSettings()
	require.NoError(t, err)
	assert.Equal(t, "9090", s.ProxyPort)
}

func TestProxyRuns(t *testing.T) {
	setupTestDB(t)
	var store RunStore
	start := time.Now().Add(-time.Minute)

	require.NoError(t, store.RunStarted("run-1", 12345, 2, start))
	require.NoError(t, store.RunStarted("run-2", 12346, 1, start.Add(time.Second)))
	require.NoError(t, store.RunEnded("run-1", start.Add(30*time.Second), nil))

	runs, err := GetRecentProxyRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, models.ProxyRunStateRunning, runs[0].State)
	assert.Nil(t, runs[0].EndedAt)

	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, models.ProxyRunStateStopped, runs[1].State)
	assert.Equal(t, 12345, runs[1].Port)
	assert.Equal(t, 2, runs[1].PatternCount)
	require.NotNil(t, runs[1].EndedAt)
	assert.Empty(t, runs[1].Error)

	n, err := MarkAbandonedRuns()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	runs, err = GetRecentProxyRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.ProxyRunStateFaulted, runs[0].State)
	assert.NotEmpty(t, runs[0].Error)
}
