// Package actionlog records every change applied to the replica as one
// timestamped line in an append-only file, mirrored to the console.
package actionlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the name of the log file created inside the log directory
const FileName = "sync_log.txt"

// TimeLayout is the timestamp prefix of every line
const TimeLayout = "2006-01-02 15:04:05"

// Log is an append-only action log
type Log struct {
	mu      sync.Mutex
	out     io.Writer
	console io.Writer
	closer  io.Closer
	now     func() time.Time
}

// Option configures a Log
type Option func(*Log)

// WithClock overrides the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// Open creates dir if needed and opens dir/sync_log.txt for appending.
// Lines are mirrored to console when it is non-nil.
func Open(dir string, console io.Writer, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(f, console, opts...)
	l.closer = f
	return l, nil
}

// New returns a Log writing to out and mirroring to console
func New(out, console io.Writer, opts ...Option) *Log {
	l := &Log{
		out:     out,
		console: console,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends one line for msg. The line is written with a single Write
// so concurrent writers cannot interleave partial lines.
func (l *Log) Record(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := l.now().Format(TimeLayout) + ": " + msg + "\n"
	if _, err := io.WriteString(l.out, line); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}

	if l.console != nil {
		if _, err := io.WriteString(l.console, msg+"\n"); err != nil {
			return fmt.Errorf("failed to write console entry: %w", err)
		}
	}
	return nil
}

// Close closes the underlying file when the Log was created by Open
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Copied describes an entry created in the replica
func Copied(kind, name, from, to string) string {
	return fmt.Sprintf("%s '%s' has been copied from %s to %s.", title(kind), name, from, to)
}

// Updated describes a file overwritten in the replica
func Updated(kind, name, in string) string {
	return fmt.Sprintf("%s '%s' has been updated in %s.", title(kind), name, in)
}

// Deleted describes an entry removed from the replica
func Deleted(kind, name, from string) string {
	return fmt.Sprintf("%s '%s' has been deleted from %s.", title(kind), name, from)
}

// Failed describes an operation that could not be applied to an entry
func Failed(op, name string, err error) string {
	return fmt.Sprintf("Failed to %s '%s': %v.", op, name, err)
}

func title(kind string) string {
	if kind == "" {
		return kind
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}
