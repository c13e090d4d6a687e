// Package logview reads, filters, follows and clears the line-oriented log files.
package logview

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultLines is how many trailing lines Tail returns when n <= 0.
	DefaultLines = 1000
	// AllLevels disables level filtering.
	AllLevels = "--ALL--"

	pollInterval = 200 * time.Millisecond
)

// Levels in ascending severity.
var Levels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

var entryStart = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:,\d{3})? - (DEBUG|INFO|WARNING|ERROR|CRITICAL) - `)

// Entry is one log record. Continuation lines (stack traces) belong to the entry above them.
type Entry struct {
	Level string
	Lines []string
}

func (e Entry) String() string {
	return strings.Join(e.Lines, "\n")
}

// Tail returns the last n lines of path.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultLines
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file %s: %w", path, err)
	}
	return ring, nil
}

// ParseEntries groups raw lines into entries. Leading lines that precede any
// entry header form an entry with an empty level.
func ParseEntries(lines []string) []Entry {
	var entries []Entry
	for _, line := range lines {
		if m := entryStart.FindStringSubmatch(line); m != nil {
			entries = append(entries, Entry{Level: m[1], Lines: []string{line}})
			continue
		}
		if len(entries) == 0 {
			entries = append(entries, Entry{})
		}
		last := &entries[len(entries)-1]
		last.Lines = append(last.Lines, line)
	}
	return entries
}

func levelIndex(level string) int {
	for i, l := range Levels {
		if l == level {
			return i
		}
	}
	return -1
}

// ValidLevel reports whether level is accepted by FilterByLevel.
func ValidLevel(level string) bool {
	return level == "" || level == AllLevels || levelIndex(strings.ToUpper(level)) >= 0
}

// FilterByLevel keeps the lines of entries at level or above. An empty level or
// AllLevels keeps everything.
func FilterByLevel(lines []string, level string) []string {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "" || level == AllLevels {
		return lines
	}
	min := levelIndex(level)
	if min < 0 {
		return nil
	}
	var out []string
	for _, e := range ParseEntries(lines) {
		if levelIndex(e.Level) >= min {
			out = append(out, e.Lines...)
		}
	}
	return out
}

// Clear truncates path, leaving the file in place for its writers.
func Clear(path string) error {
	if err := os.Truncate(path, 0); err != nil {
		return fmt.Errorf("failed to clear log file %s: %w", path, err)
	}
	return nil
}

// Follower streams lines appended to a log file after it was created.
type Follower struct {
	path    string
	f       *os.File
	watcher *fsnotify.Watcher
	offset  int64
	partial []byte
}

// NewFollower opens path positioned at its current end.
func NewFollower(path string) (*Follower, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		f.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return &Follower{path: path, f: f, watcher: w, offset: offset}, nil
}

// Run calls fn for every complete line until ctx is done. A truncated file is
// read again from the start.
func (fl *Follower) Run(ctx context.Context, fn func(line string)) error {
	defer fl.f.Close()
	defer fl.watcher.Close()

	// Some filesystems drop inotify events, so poll as well.
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fl.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				return fmt.Errorf("log file %s was removed", fl.path)
			}
			if err := fl.readNew(fn); err != nil {
				return err
			}
		case err, ok := <-fl.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", fl.path, err)
		case <-ticker.C:
			if err := fl.readNew(fn); err != nil {
				return err
			}
		}
	}
}

func (fl *Follower) readNew(fn func(string)) error {
	info, err := fl.f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < fl.offset {
		if _, err := fl.f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		fl.offset = 0
		fl.partial = nil
	}
	buf, err := io.ReadAll(fl.f)
	if err != nil {
		return err
	}
	fl.offset += int64(len(buf))
	fl.partial = append(fl.partial, buf...)
	for {
		i := bytes.IndexByte(fl.partial, '\n')
		if i < 0 {
			break
		}
		fn(strings.TrimRight(string(fl.partial[:i]), "\r"))
		fl.partial = fl.partial[i+1:]
	}
	return nil
}

// Follow is NewFollower followed by Run.
func Follow(ctx context.Context, path string, fn func(line string)) error {
	fl, err := NewFollower(path)
	if err != nil {
		return err
	}
	return fl.Run(ctx, fn)
}
