package resttimer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownCompletes(t *testing.T) {
	timer := New(WithTickInterval(5 * time.Millisecond))
	done := make(chan struct{})
	var ticks atomic.Int32

	timer.Start(context.Background(), 40*time.Millisecond,
		func(remaining time.Duration) {
			ticks.Add(1)
			assert.Greater(t, remaining, time.Duration(0))
		},
		func() { close(done) })
	assert.True(t, timer.Running())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown never finished")
	}
	assert.Positive(t, ticks.Load())
	assert.Eventually(t, func() bool { return !timer.Running() }, time.Second, 5*time.Millisecond)
}

func TestStartingSecondTimerCancelsFirst(t *testing.T) {
	timer := New(WithTickInterval(5 * time.Millisecond))
	var firstTicks, firstDone atomic.Int32
	secondDone := make(chan struct{})

	timer.Start(context.Background(), 30*time.Millisecond,
		func(time.Duration) { firstTicks.Add(1) },
		func() { firstDone.Add(1) })
	timer.Start(context.Background(), 60*time.Millisecond, nil, func() { close(secondDone) })
	ticksAtSwitch := firstTicks.Load()

	select {
	case <-secondDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second countdown never finished")
	}
	assert.Zero(t, firstDone.Load(), "first countdown must not complete")
	assert.Equal(t, ticksAtSwitch, firstTicks.Load(), "first countdown must not tick after replacement")
}

func TestStop(t *testing.T) {
	timer := New(WithTickInterval(5 * time.Millisecond))
	var done atomic.Bool

	timer.Start(context.Background(), 20*time.Millisecond, nil, func() { done.Store(true) })
	timer.Stop()
	require.False(t, timer.Running())

	time.Sleep(60 * time.Millisecond)
	assert.False(t, done.Load())
}

func TestContextCancelStops(t *testing.T) {
	timer := New(WithTickInterval(5 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	timer.Start(ctx, time.Hour, nil, func() { t.Error("onDone after cancel") })
	cancel()
	assert.Eventually(t, func() bool { return !timer.Running() }, time.Second, 5*time.Millisecond)
}
