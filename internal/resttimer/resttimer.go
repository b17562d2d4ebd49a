// Package resttimer runs the countdown between sets. At most one countdown
// is live: starting a new one stops the previous one first.
package resttimer

import (
	"context"
	"sync"
	"time"
)

// Option configures the timer.
type Option func(*Timer)

// WithTickInterval sets how often onTick reports the remaining time.
func WithTickInterval(d time.Duration) Option {
	return func(t *Timer) {
		t.tickInterval = d
	}
}

// Timer is a cancellable single-instance countdown.
//
// Callbacks run on the timer's goroutine while it holds the timer lock, so a
// stopped countdown can never report again. Callbacks must not call Start or
// Stop.
type Timer struct {
	tickInterval time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func New(opts ...Option) *Timer {
	t := &Timer{tickInterval: time.Second}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a countdown of d. onTick receives the remaining time after
// every tick; onDone fires once when the countdown reaches zero. Either may
// be nil. Cancelling ctx stops the countdown like Stop.
func (t *Timer) Start(ctx context.Context, d time.Duration, onTick func(remaining time.Duration), onDone func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	childCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.loop(childCtx, t.gen, time.Now().Add(d), onTick, onDone)
}

// Stop cancels the running countdown, if any.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Running reports whether a countdown is live.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

func (t *Timer) loop(ctx context.Context, gen uint64, deadline time.Time, onTick func(time.Duration), onDone func()) {
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.finish(gen)
			return
		case now := <-ticker.C:
			remaining := deadline.Sub(now)
			if remaining <= 0 {
				t.mu.Lock()
				if t.gen == gen && ctx.Err() == nil {
					if onDone != nil {
						onDone()
					}
					t.cancel()
					t.cancel = nil
				}
				t.mu.Unlock()
				return
			}
			t.mu.Lock()
			if t.gen == gen && ctx.Err() == nil && onTick != nil {
				onTick(remaining.Round(t.tickInterval))
			}
			t.mu.Unlock()
		}
	}
}

// finish clears the handle when ctx was cancelled from outside.
func (t *Timer) finish(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen == gen && t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
