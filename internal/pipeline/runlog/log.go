// Package runlog implements the execution log of a job: an append-only,
// clearable text sink that mirrors every entry to zap and accumulates a
// rendered snapshot which is persisted into the job record.
package runlog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultMaxBytes = 1 << 20

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

type Log struct {
	logger   *zap.Logger
	maxBytes int
	now      func() time.Time

	mu      sync.Mutex
	entries []string
	size    int
	dropped int
}

type Option func(*Log)

// WithMaxBytes caps the accumulated snapshot. Non-positive values disable the cap.
func WithMaxBytes(n int) Option {
	return func(l *Log) { l.maxBytes = n }
}

func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func New(logger *zap.Logger, opts ...Option) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{
		logger:   logger,
		maxBytes: DefaultMaxBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// With returns a log sharing nothing with l except its settings, whose zap
// mirror carries the extra fields.
func (l *Log) With(fields ...zap.Field) *Log {
	return &Log{
		logger:   l.logger.With(fields...),
		maxBytes: l.maxBytes,
		now:      l.now,
	}
}

func (l *Log) Info(msg string) {
	l.logger.Info(msg)
	l.append(LevelInfo, msg)
}

func (l *Log) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *Log) Error(msg string) {
	l.logger.Error(msg)
	l.append(LevelError, msg)
}

func (l *Log) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

// Err records a failure.
func (l *Log) Err(err error) {
	if err == nil {
		return
	}
	l.logger.Error("failure", zap.Error(err))
	l.append(LevelError, err.Error())
}

// Clear empties the snapshot. The zap mirror is unaffected.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.size = 0
	l.dropped = 0
}

func (l *Log) Snapshot() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	if l.dropped > 0 {
		fmt.Fprintf(&b, "... %d earlier entries truncated\n", l.dropped)
	}
	for _, e := range l.entries {
		b.WriteString(e)
	}
	return b.String()
}

// Len reports the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) append(level Level, msg string) {
	entry := fmt.Sprintf("%s [%s] %s\n", l.now().UTC().Format(time.RFC3339), level, msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	l.size += len(entry)

	if l.maxBytes <= 0 {
		return
	}
	// Always keep the newest entry, even when it alone exceeds the cap.
	for l.size > l.maxBytes && len(l.entries) > 1 {
		l.size -= len(l.entries[0])
		l.entries[0] = ""
		l.entries = l.entries[1:]
		l.dropped++
	}
}
