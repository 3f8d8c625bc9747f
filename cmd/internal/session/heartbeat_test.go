package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.HeartbeatTimeout = 10 * time.Millisecond
	return cfg
}

func waitForEvent(t *testing.T, events <-chan Event, want Event, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			if ev == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestRunner_TicksPeriodically(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	svc := NewService(fastConfig(), store, testLogger())
	v := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	if _, err := v.Bootstrap(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	events := make(chan Event, 100)
	r := NewRunner(v, fastConfig(), testLogger(), func(ev Event) { events <- ev })

	r.Start(context.Background())
	defer r.Stop()

	waitForEvent(t, events, EventRefreshed, time.Second)
	waitForEvent(t, events, EventRefreshed, time.Second)
}

func TestRunner_SurfacesEvictionWithinOneInterval(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	svc := NewService(fastConfig(), store, testLogger())
	ctx := context.Background()

	v := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	if _, err := v.Bootstrap(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	events := make(chan Event, 100)
	r := NewRunner(v, fastConfig(), testLogger(), func(ev Event) { events <- ev })
	r.Start(ctx)
	defer r.Stop()

	// Another device takes over; the runner must observe the rejection
	// on a subsequent tick.
	if _, err := svc.ForceTakeover(ctx, time.Now().UTC(), "u1", DeviceInfo{}); err != nil {
		t.Fatalf("ForceTakeover: %v", err)
	}

	waitForEvent(t, events, EventSignedOutElsewhere, time.Second)

	if v.State() != StateNoLocalToken {
		t.Fatalf("expected NoLocalToken after eviction, got %v", v.State())
	}
}

func TestRunner_StopHaltsTicking(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	svc := NewService(fastConfig(), store, testLogger())
	v := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	if _, err := v.Bootstrap(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	var ticks atomic.Int64
	r := NewRunner(v, fastConfig(), testLogger(), func(Event) { ticks.Add(1) })
	r.Start(context.Background())

	deadline := time.After(time.Second)
	for ticks.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("runner never ticked")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	r.Stop()
	after := ticks.Load()
	time.Sleep(100 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Fatalf("runner kept ticking after Stop: %d -> %d", after, got)
	}

	// Stop is idempotent, including before/after Start.
	r.Stop()
	NewRunner(v, fastConfig(), testLogger(), nil).Stop()
}

// slowStore delays IsActive beyond the heartbeat interval and records the
// maximum number of concurrent validation cycles.
type slowStore struct {
	*MemoryStore
	delay      time.Duration
	inFlight   atomic.Int64
	maxSeen    atomic.Int64
	totalCalls atomic.Int64
}

func (s *slowStore) IsActive(ctx context.Context, userID, token string) (bool, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		max := s.maxSeen.Load()
		if cur <= max || s.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	s.totalCalls.Add(1)

	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}
	return s.MemoryStore.IsActive(ctx, userID, token)
}

func TestRunner_NeverOverlapsSlowCycles(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	store := &slowStore{MemoryStore: NewMemoryStore(), delay: 3 * cfg.HeartbeatInterval}
	svc := NewService(cfg, store, testLogger())

	v := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	if _, err := v.Bootstrap(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	r := NewRunner(v, cfg, testLogger(), nil)
	r.Start(context.Background())

	// Fire extra manual ticks while scheduled cycles are slow; overlap
	// candidates must be skipped, not queued.
	for i := 0; i < 20; i++ {
		go r.TickNow(context.Background())
		time.Sleep(cfg.HeartbeatInterval / 2)
	}
	r.Stop()

	if max := store.maxSeen.Load(); max > 1 {
		t.Fatalf("validation cycles overlapped: max in flight %d", max)
	}
	if store.totalCalls.Load() == 0 {
		t.Fatalf("expected at least one validation cycle")
	}
}
