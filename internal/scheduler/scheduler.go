// Package scheduler drives a periodic task with max-in-flight=1
// coalescing (spec §5: "max_instances=1, coalesce=true" for the
// triage cycle) — a tick that arrives while the previous run is still
// executing is dropped rather than queued, so a slow cycle simply
// delays the next one instead of piling up concurrent runs.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler ticks at a fixed interval, invoking run on each tick that
// is not still occupied by a prior in-flight run.
type Scheduler struct {
	interval time.Duration
	run      func(ctx context.Context)
	logger   *slog.Logger

	inFlight chan struct{} // buffered size 1: occupied while run is executing
	cancel   context.CancelFunc
	done     chan struct{}
}

// New returns a Scheduler. run is invoked with a context derived from
// the one passed to Start, canceled on Stop.
func New(interval time.Duration, run func(ctx context.Context), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		run:      run,
		logger:   logger,
		inFlight: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start begins the ticking loop in a background goroutine. It returns
// immediately; call Stop to shut the loop down.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.loop(runCtx)
}

// Stop cancels the loop's context and waits for the current tick's
// dispatch (not the in-flight run itself) to observe cancellation.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	select {
	case s.inFlight <- struct{}{}:
		go func() {
			defer func() { <-s.inFlight }()
			s.run(ctx)
		}()
	default:
		s.logger.Warn("previous cycle still running, coalescing this tick")
	}
}

// RunNow triggers an out-of-band run, respecting the same in-flight
// guard as the ticker. It blocks until the run completes. The triage
// --once CLI command does not go through it; it calls Engine.RunCycle
// directly.
func (s *Scheduler) RunNow(ctx context.Context) {
	select {
	case s.inFlight <- struct{}{}:
		defer func() { <-s.inFlight }()
		s.run(ctx)
	default:
		s.logger.Warn("a cycle is already running, skipping RunNow")
	}
}
