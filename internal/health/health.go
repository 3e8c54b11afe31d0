// Package health tracks sampler liveness for the HTTP health check,
// following the same atomic-counter pattern used for liveness tracking
// elsewhere in this codebase.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health records the last successful sampler tick and the last tick
// error, both as UnixMilli, using atomics so the HTTP handler never
// blocks on the sampler's own lock.
type Health struct {
	lastTickMillis atomic.Int64
	lastErrMillis  atomic.Int64
	maxStaleness   time.Duration
}

// New returns a Health tracker that considers the service unhealthy once
// more than maxStaleness has passed since the last successful tick.
func New(maxStaleness time.Duration) *Health {
	return &Health{maxStaleness: maxStaleness}
}

// Tick records a successful sampler run at the given time.
func (h *Health) Tick(at time.Time) {
	h.lastTickMillis.Store(at.UnixMilli())
}

// Error records a failed sampler run at the given time. It does not clear
// the last successful tick time — a single failed tick does not flip
// Healthy to false until maxStaleness has actually elapsed.
func (h *Health) Error(at time.Time) {
	h.lastErrMillis.Store(at.UnixMilli())
}

// Healthy reports whether the last successful tick happened within
// maxStaleness of now.
func (h *Health) Healthy(now time.Time) bool {
	last := h.lastTickMillis.Load()
	if last == 0 {
		return false // never ticked yet
	}
	age := now.Sub(time.UnixMilli(last))
	return age <= h.maxStaleness
}

type status struct {
	Healthy     bool  `json:"healthy"`
	LastTickMs  int64 `json:"last_tick_ms"`
	LastErrorMs int64 `json:"last_error_ms,omitempty"`
}

// Handler serves the /health_check JSON body and status code (200 if
// healthy, 503 otherwise).
func (h *Health) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		st := status{
			Healthy:     h.Healthy(now),
			LastTickMs:  h.lastTickMillis.Load(),
			LastErrorMs: h.lastErrMillis.Load(),
		}
		w.Header().Set("Content-Type", "application/json")
		if !st.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(st)
	}
}
