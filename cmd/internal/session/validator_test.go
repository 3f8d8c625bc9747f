package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestValidator_BootstrapEstablishes(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	v := NewValidator(svc, "u1", DeviceInfo{Platform: "web"}, nil, testLogger())

	ev, err := v.Bootstrap(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if ev != EventEstablished {
		t.Fatalf("expected EventEstablished, got %v", ev)
	}
	if v.State() != StateActive || v.Token() == "" {
		t.Fatalf("expected active state with token, got %v %q", v.State(), v.Token())
	}
}

func TestValidator_BootstrapBlockedByOtherDevice(t *testing.T) {
	t.Parallel()

	svc, store := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	a := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	if _, err := a.Bootstrap(ctx, now); err != nil {
		t.Fatalf("Bootstrap A: %v", err)
	}

	b := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	ev, err := b.Bootstrap(ctx, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Bootstrap B: %v", err)
	}
	if ev != EventBlocked || b.State() != StateBlockedByOther {
		t.Fatalf("expected B blocked, got ev=%v state=%v", ev, b.State())
	}

	// A's session must be untouched: blocking never steals.
	active, err := store.FindActive(ctx, "u1")
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if len(active) != 1 || active[0].Token != a.Token() {
		t.Fatalf("expected A's session to remain the sole active row")
	}

	// Bootstrap again while blocked stays blocked; still no new row.
	if ev, _ := b.Bootstrap(ctx, now.Add(2*time.Second)); ev != EventBlocked {
		t.Fatalf("expected repeat bootstrap to stay blocked, got %v", ev)
	}
}

func TestValidator_TakeoverEvictsOtherDevice(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	// Device A logs in and holds T1.
	a := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	if _, err := a.Bootstrap(ctx, now); err != nil {
		t.Fatalf("Bootstrap A: %v", err)
	}
	t1 := a.Token()

	// Device B is blocked, then the user confirms the takeover.
	b := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	if ev, _ := b.Bootstrap(ctx, now.Add(time.Second)); ev != EventBlocked {
		t.Fatalf("expected B blocked, got %v", ev)
	}
	sess, err := b.ForceTakeover(ctx, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("ForceTakeover: %v", err)
	}
	if b.State() != StateActive || b.Token() != sess.Token || sess.Token == t1 {
		t.Fatalf("expected B active under a fresh token")
	}

	// A's next heartbeat observes the rejection and drops its token.
	ev, err := a.Tick(ctx, now.Add(3*time.Second))
	if err != nil {
		t.Fatalf("Tick A: %v", err)
	}
	if ev != EventSignedOutElsewhere {
		t.Fatalf("expected EventSignedOutElsewhere, got %v", ev)
	}
	if a.State() != StateNoLocalToken || a.Token() != "" {
		t.Fatalf("expected A back to NoLocalToken, got %v %q", a.State(), a.Token())
	}

	// B keeps validating normally.
	if ev, err := b.Tick(ctx, now.Add(4*time.Second)); err != nil || ev != EventRefreshed {
		t.Fatalf("expected B refreshed, got ev=%v err=%v", ev, err)
	}
}

func TestValidator_StoreOutageIsTransient(t *testing.T) {
	t.Parallel()

	svc, store := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	v := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	if _, err := v.Bootstrap(ctx, now); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	token := v.Token()

	// Two consecutive failed ticks: no transition, token kept.
	store.SetUnavailable(true)
	for i := 0; i < 2; i++ {
		ev, err := v.Tick(ctx, now.Add(time.Duration(i+1)*time.Minute))
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("tick #%d: expected ErrStoreUnavailable, got %v", i+1, err)
		}
		if ev != EventNone {
			t.Fatalf("tick #%d: expected EventNone, got %v", i+1, ev)
		}
		if v.State() != StateActive || v.Token() != token {
			t.Fatalf("tick #%d: outage must not drop the token", i+1)
		}
	}

	// Recovery: normal validation resumes with the original token.
	store.SetUnavailable(false)
	ev, err := v.Tick(ctx, now.Add(3*time.Minute))
	if err != nil || ev != EventRefreshed {
		t.Fatalf("expected refreshed after recovery, got ev=%v err=%v", ev, err)
	}
	if v.Token() != token {
		t.Fatalf("token changed across outage")
	}
}

func TestValidator_ResumesTokenFromCache(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	cache := NewMemoryTokenCache()
	first := NewValidator(svc, "u1", DeviceInfo{}, cache, testLogger())
	if _, err := first.Bootstrap(ctx, now); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	token := first.Token()

	// Page reload: a fresh validator over the same cache adopts the token
	// without creating a new session.
	reloaded := NewValidator(svc, "u1", DeviceInfo{}, cache, testLogger())
	if reloaded.State() != StateActive || reloaded.Token() != token {
		t.Fatalf("expected reload to adopt cached token")
	}
	if ev, err := reloaded.Tick(ctx, now.Add(time.Second)); err != nil || ev != EventRefreshed {
		t.Fatalf("expected cached token to validate, got ev=%v err=%v", ev, err)
	}
}

func TestValidator_LogoutClearsLocalStateEvenWhenStoreDown(t *testing.T) {
	t.Parallel()

	svc, store := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	cache := NewMemoryTokenCache()
	v := NewValidator(svc, "u1", DeviceInfo{}, cache, testLogger())
	if _, err := v.Bootstrap(ctx, now); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	store.SetUnavailable(true)
	v.Logout(ctx)

	if v.State() != StateNoLocalToken || v.Token() != "" {
		t.Fatalf("logout must clear local state regardless of store outcome")
	}
	if tok, _ := cache.Load(); tok != "" {
		t.Fatalf("logout must clear the cache, still holds %q", tok)
	}
}

func TestValidator_LogoutDeactivatesRow(t *testing.T) {
	t.Parallel()

	svc, store := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	v := NewValidator(svc, "u1", DeviceInfo{}, nil, testLogger())
	if _, err := v.Bootstrap(ctx, now); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	token := v.Token()

	v.Logout(ctx)

	if ok, _ := store.IsActive(ctx, "u1", token); ok {
		t.Fatalf("expected row deactivated on logout")
	}

	// The seat is free again.
	if ev, err := v.Bootstrap(ctx, now.Add(time.Second)); err != nil || ev != EventEstablished {
		t.Fatalf("expected re-login to establish, got ev=%v err=%v", ev, err)
	}
}
