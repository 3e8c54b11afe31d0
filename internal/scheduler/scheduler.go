// Package scheduler fires the sampler tick on a cron cadence and
// guarantees that no two ticks ever run concurrently. Tick exclusivity is
// enforced here, at the scheduler level, rather than via a store-level
// advisory lock.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/social-protocols/rankers/internal/health"
)

// Ticker is the single method the scheduler drives; internal/sampler.Sampler
// satisfies it.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Scheduler wraps a robfig/cron.Cron instance to invoke a Ticker on a
// fixed cadence.
type Scheduler struct {
	cron    *cron.Cron
	ticker  Ticker
	log     *slog.Logger
	health  *health.Health
	running atomic.Bool
}

// New builds a Scheduler that will fire t according to cronExpr once
// Start is called.
func New(cronExpr string, t Ticker, h *health.Health, log *slog.Logger) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{cron: c, ticker: t, log: log, health: h}
	if _, err := c.AddFunc(cronExpr, s.fire); err != nil {
		return nil, err
	}
	return s, nil
}

// fire is the cron callback. If a previous tick is still running (should
// not normally happen given the cadence, but defends against a slow
// store), the firing is skipped and logged rather than queued.
func (s *Scheduler) fire() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("sampler tick already in progress, skipping this firing")
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	ctx := context.Background()
	if err := s.ticker.Tick(ctx); err != nil {
		s.log.Error("sampler tick failed", "error", err, "duration", time.Since(start))
		if s.health != nil {
			s.health.Error(time.Now())
		}
		return
	}
	s.log.Info("sampler tick succeeded", "duration", time.Since(start))
	if s.health != nil {
		s.health.Tick(time.Now())
	}
}

// Start begins firing on the configured cadence. It returns immediately;
// cron runs its own goroutine internally.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop blocks until any in-flight tick finishes, then stops future
// firings — the graceful-shutdown shape used by every long-running loop
// in this codebase.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
