package logview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `2024-03-01 10:00:00 - DEBUG - dialing upstream
2024-03-01 10:00:01 - INFO - GET http://game.example.com/play.swf HTTP/1.1 << 200 OK 12.3KB
2024-03-01 10:00:02 - WARNING - GET http://ads.example.com/a.js HTTP/1.1 << 403 Forbidden 0.0KB
2024-03-01 10:00:03 - ERROR - addon logger panicked
goroutine 7 [running]:
main.main()
2024-03-01 10:00:04 - CRITICAL - giving up
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxy.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestTail(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1500; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	path := writeLog(t, b.String())

	lines, err := Tail(path, 0)
	require.NoError(t, err)
	require.Len(t, lines, DefaultLines)
	assert.Equal(t, "line 500", lines[0])
	assert.Equal(t, "line 1499", lines[len(lines)-1])

	lines, err = Tail(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 1497", "line 1498", "line 1499"}, lines)

	_, err = Tail(filepath.Join(t.TempDir(), "missing.log"), 10)
	assert.Error(t, err)
}

func TestFilterByLevel(t *testing.T) {
	lines := strings.Split(strings.TrimSuffix(sample, "\n"), "\n")

	assert.Equal(t, lines, FilterByLevel(lines, AllLevels))
	assert.Equal(t, lines, FilterByLevel(lines, ""))

	warn := FilterByLevel(lines, "WARNING")
	require.Len(t, warn, 5)
	assert.Contains(t, warn[0], "- WARNING -")
	assert.Equal(t, "goroutine 7 [running]:", warn[2], "continuation lines stay with their entry")
	assert.Contains(t, warn[4], "- CRITICAL -")

	info := FilterByLevel(lines, "info")
	assert.Len(t, info, 6)
	assert.NotContains(t, strings.Join(info, "\n"), "dialing upstream")

	assert.Nil(t, FilterByLevel(lines, "NOISY"))
	assert.False(t, ValidLevel("NOISY"))
	assert.True(t, ValidLevel("error"))
	assert.True(t, ValidLevel(AllLevels))
}

func TestParseEntries(t *testing.T) {
	entries := ParseEntries([]string{"orphan", "2024-03-01 10:00:00,123 - INFO - with millis", "more"})
	require.Len(t, entries, 2)
	assert.Equal(t, "", entries[0].Level)
	assert.Equal(t, "INFO", entries[1].Level)
	assert.Equal(t, "2024-03-01 10:00:00,123 - INFO - with millis\nmore", entries[1].String())
}

func TestClear(t *testing.T) {
	path := writeLog(t, sample)
	require.NoError(t, Clear(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
	assert.Error(t, Clear(filepath.Join(t.TempDir(), "nope", "x.log")))
}

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) add(l string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, l)
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func appendLine(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFollow(t *testing.T) {
	path := writeLog(t, "old line\n")
	fl, err := NewFollower(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var got collector
	done := make(chan error, 1)
	go func() { done <- fl.Run(ctx, got.add) }()

	appendLine(t, path, "first\nsecond part")
	assert.Eventually(t, func() bool { return len(got.get()) == 1 }, 2*time.Second, 20*time.Millisecond)
	appendLine(t, path, " done\n")
	assert.Eventually(t, func() bool { return len(got.get()) == 2 }, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"first", "second part done"}, got.get())

	require.NoError(t, Clear(path))
	appendLine(t, path, "after clear\n")
	assert.Eventually(t, func() bool {
		l := got.get()
		return len(l) == 3 && l[2] == "after clear"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
