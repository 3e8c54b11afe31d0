// Package clock provides the single source of time used by the sampler and
// scheduler, so tests can drive it deterministically instead of sleeping on
// the wall clock.
package clock

import (
	"sync/atomic"

	"github.com/jonboulle/clockwork"
)

// Source yields UTC epoch milliseconds that never regress within a process,
// even if the underlying clock ever steps backward.
type Source struct {
	clock clockwork.Clock
	high  atomic.Int64
}

// New wraps an arbitrary clockwork.Clock (real or fake).
func New(c clockwork.Clock) *Source {
	return &Source{clock: c}
}

// NewReal returns a Source backed by the system clock.
func NewReal() *Source {
	return New(clockwork.NewRealClock())
}

// Now returns the current time as UTC epoch milliseconds, guaranteed
// non-decreasing across successive calls on the same Source.
func (s *Source) Now() int64 {
	ms := s.clock.Now().UTC().UnixMilli()
	for {
		prev := s.high.Load()
		if ms <= prev {
			return prev
		}
		if s.high.CompareAndSwap(prev, ms) {
			return ms
		}
	}
}

// Underlying exposes the wrapped clockwork.Clock, for components that need
// a time.Sleep/time.After-shaped API rather than a millisecond reading.
func (s *Source) Underlying() clockwork.Clock {
	return s.clock
}
