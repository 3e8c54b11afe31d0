package health

import (
	"testing"
	"time"
)

func TestHealthy_FalseBeforeFirstTick(t *testing.T) {
	h := New(time.Minute)
	if h.Healthy(time.Now()) {
		t.Fatal("expected unhealthy before any tick recorded")
	}
}

func TestHealthy_TrueWithinStaleness(t *testing.T) {
	h := New(time.Minute)
	now := time.Now()
	h.Tick(now)
	if !h.Healthy(now.Add(30 * time.Second)) {
		t.Fatal("expected healthy within staleness window")
	}
}

func TestHealthy_FalseAfterStaleness(t *testing.T) {
	h := New(time.Minute)
	now := time.Now()
	h.Tick(now)
	if h.Healthy(now.Add(2 * time.Minute)) {
		t.Fatal("expected unhealthy after staleness window elapses")
	}
}
