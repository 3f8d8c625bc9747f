package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_WatcherReceivesEviction(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	ch, cancel := h.Watch("t1")
	defer cancel()

	h.SessionEvicted("u1", "t1")

	select {
	case ev := <-ch:
		if ev.UserID != "u1" || ev.Token != "t1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for eviction")
	}
}

func TestHub_EvictionOnlyReachesItsToken(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	watched, cancel1 := h.Watch("t1")
	defer cancel1()
	other, cancel2 := h.Watch("t2")
	defer cancel2()

	h.SessionEvicted("u1", "t1")

	select {
	case <-watched:
	case <-time.After(time.Second):
		t.Fatalf("t1 watcher missed its eviction")
	}
	select {
	case ev := <-other:
		t.Fatalf("t2 watcher received a foreign eviction: %+v", ev)
	default:
	}
}

func TestHub_AllWatchersOfTokenNotified(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	a, cancelA := h.Watch("t1")
	defer cancelA()
	b, cancelB := h.Watch("t1")
	defer cancelB()

	h.SessionEvicted("u1", "t1")

	for i, ch := range []<-chan Eviction{a, b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("watcher #%d missed the eviction", i+1)
		}
	}
}

func TestHub_CancelReleasesRegistration(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	ch, cancel := h.Watch("t1")
	cancel()
	cancel() // idempotent

	h.SessionEvicted("u1", "t1")

	select {
	case ev := <-ch:
		t.Fatalf("cancelled watcher still received: %+v", ev)
	default:
	}
}

func TestHub_EvictionIsTerminal(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	ch, cancel := h.Watch("t1")
	defer cancel()

	h.SessionEvicted("u1", "t1")
	<-ch

	// The registration is gone; a second sweep for the same token does not
	// deliver again.
	h.SessionEvicted("u1", "t1")
	select {
	case ev := <-ch:
		t.Fatalf("received after terminal eviction: %+v", ev)
	default:
	}
}

func TestHub_EvictionWithNoWatchersIsNoOp(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger())
	h.SessionEvicted("u1", "nobody-watches-this")
}
