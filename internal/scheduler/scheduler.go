// Package scheduler runs synchronization cycles on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClaudioK5/Synchronization-Folder/internal/config"
	foldersync "github.com/ClaudioK5/Synchronization-Folder/internal/sync"
)

// ErrInvalidInterval indicates the pause between cycles is not positive.
var ErrInvalidInterval = errors.New("interval must be positive")

// Cycler runs one synchronization cycle
type Cycler interface {
	Cycle(ctx context.Context) (*foldersync.Report, error)
}

// SleepFunc blocks for d or until ctx is done, whichever comes first
type SleepFunc func(ctx context.Context, d time.Duration) error

// Loop repeats cycles with a pause in between
type Loop struct {
	cycler   Cycler
	interval time.Duration
	logger   *slog.Logger
	sleep    SleepFunc
}

// Option configures a Loop
type Option func(*Loop)

// WithSleep replaces the pause primitive, mainly for tests
func WithSleep(sleep SleepFunc) Option {
	return func(l *Loop) {
		l.sleep = sleep
	}
}

// New creates a loop that runs c every interval
func New(c Cycler, interval time.Duration, logger *slog.Logger, opts ...Option) (*Loop, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	l := &Loop{
		cycler:   c,
		interval: interval,
		logger:   logger,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run executes a cycle, pauses for the interval, and repeats. The pause is
// measured from the end of one cycle to the start of the next, so cycles
// never overlap. Run only returns once ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("starting scheduler", "interval", l.interval)

	for {
		report, err := l.cycler.Cycle(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			l.logger.Error("cycle failed", "error", err)
		case report.Failed > 0:
			l.logger.Warn("cycle finished with failures",
				"failed", report.Failed,
				"changes", report.Changes())
		}

		if err := l.sleep(ctx, l.interval); err != nil {
			return err
		}
	}
}

// Sleep pauses for d, returning early with ctx.Err() if ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunForever synchronizes the replica named in cfg with its source every
// cfg interval until ctx is cancelled.
func RunForever(ctx context.Context, cfg *config.Config, actions foldersync.ActionLogger, logger *slog.Logger) error {
	engine, err := foldersync.NewOSEngine(cfg, actions, logger)
	if err != nil {
		return err
	}

	loop, err := New(engine, cfg.IntervalDuration(), logger)
	if err != nil {
		return err
	}
	return loop.Run(ctx)
}
