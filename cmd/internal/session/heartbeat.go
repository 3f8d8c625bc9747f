package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Runner drives a Validator on a fixed interval. It is bound to the
// session's lifetime: Stop (or context cancellation) halts it so no
// orphaned timer keeps touching a deactivated token.
//
// At most one validation cycle is in flight at a time; a tick that fires
// while the previous cycle is still pending is skipped, never overlapped.
type Runner struct {
	v        *Validator
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
	onEvent  func(Event)

	inFlight atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner constructs a heartbeat runner. onEvent (optional) receives
// every non-None event, including EventSignedOutElsewhere.
func NewRunner(v *Validator, cfg Config, log *slog.Logger, onEvent func(Event)) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		v:        v,
		interval: cfg.HeartbeatInterval,
		timeout:  cfg.HeartbeatTimeout,
		log:      log,
		onEvent:  onEvent,
	}
}

// Start launches the periodic loop. Idempotent: a second Start while
// running is a no-op.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	done := make(chan struct{})
	r.done = done

	go func() {
		defer close(done)

		t := time.NewTicker(r.interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
// Idempotent.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// TickNow runs one validation cycle outside the schedule (e.g. right after
// the app regains focus). Skipped if a cycle is already in flight.
func (r *Runner) TickNow(ctx context.Context) {
	r.tick(ctx)
}

func (r *Runner) tick(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.log.Debug("heartbeat.tick.skip_inflight")
		return
	}
	defer r.inFlight.Store(false)

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ev, err := r.v.Tick(tctx, time.Now().UTC())
	if err != nil {
		// Transient by contract: the validator did not transition.
		r.log.Warn("heartbeat.tick.fail", "err", err)
		return
	}
	if ev != EventNone && r.onEvent != nil {
		r.onEvent(ev)
	}
}
