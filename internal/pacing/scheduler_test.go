package pacing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []fakeTimer
	armed  chan time.Duration
}

type fakeTimer struct {
	d  time.Duration
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		armed: make(chan time.Duration, 64),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.timers = append(c.timers, fakeTimer{d: d, ch: ch})
	c.armed <- d
	return ch
}

// fire expires the most recently armed timer.
func (c *fakeClock) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	last := c.timers[len(c.timers)-1]
	c.now = c.now.Add(last.d)
	last.ch <- c.now
}

func waitArmed(t *testing.T, c *fakeClock) time.Duration {
	t.Helper()
	select {
	case d := <-c.armed:
		return d
	case <-time.After(time.Second):
		t.Fatal("timer was not armed")
		return 0
	}
}

func awaitSignal(t *testing.T, ch *Channel) Signal {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sig, err := ch.Await(ctx)
	require.NoError(t, err)
	return sig
}

func assertNoSignal(t *testing.T, ch *Channel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sig, err := ch.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "unexpected signal %+v", sig)
}

func startScheduler(t *testing.T, cfg Config) (*Scheduler, *Channel, *fakeClock) {
	t.Helper()
	ch := NewChannel(nil)
	clock := newFakeClock()
	s := NewScheduler(cfg, ch, clock, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return s, ch, clock
}

func TestSchedulerManualNext(t *testing.T) {
	t.Parallel()

	s, ch, _ := startScheduler(t, Config{})
	s.Next()

	sig := awaitSignal(t, ch)
	assert.Equal(t, IntentAdvance, sig.Intent)
	assert.Equal(t, SourceManual, sig.Source)
	assertNoSignal(t, ch)
}

func TestSchedulerAutoPlayTicks(t *testing.T) {
	t.Parallel()

	s, ch, clock := startScheduler(t, Config{AutoPlay: true, IntervalSeconds: 1.5})
	assert.Equal(t, 1500*time.Millisecond, waitArmed(t, clock))

	for range 3 {
		clock.fire()
		sig := awaitSignal(t, ch)
		assert.Equal(t, SourceTimer, sig.Source)
		assert.Equal(t, 1500*time.Millisecond, waitArmed(t, clock))
	}

	autoPlay, interval := s.Settings()
	assert.True(t, autoPlay)
	assert.InDelta(t, 1.5, interval, 1e-9)
}

func TestSchedulerDisableDropsPendingTick(t *testing.T) {
	t.Parallel()

	s, ch, clock := startScheduler(t, Config{AutoPlay: true, IntervalSeconds: 2})
	waitArmed(t, clock)

	s.SetAutoPlay(false)
	// Give Run a moment to observe the change before the timer fires.
	time.Sleep(20 * time.Millisecond)
	clock.fire()
	assertNoSignal(t, ch)

	s.SetAutoPlay(true)
	assert.Equal(t, 2*time.Second, waitArmed(t, clock))
	clock.fire()
	assert.Equal(t, SourceTimer, awaitSignal(t, ch).Source)
}

func TestSchedulerIntervalAppliesToNextTimer(t *testing.T) {
	t.Parallel()

	s, ch, clock := startScheduler(t, Config{AutoPlay: true, IntervalSeconds: 3})
	assert.Equal(t, 3*time.Second, waitArmed(t, clock))

	require.NoError(t, s.SetInterval(0.25))
	clock.fire()
	awaitSignal(t, ch)
	assert.Equal(t, 250*time.Millisecond, waitArmed(t, clock))
}

func TestSchedulerManualRearmsTimer(t *testing.T) {
	t.Parallel()

	s, ch, clock := startScheduler(t, Config{AutoPlay: true, IntervalSeconds: 3})
	waitArmed(t, clock)

	s.Next()
	assert.Equal(t, SourceManual, awaitSignal(t, ch).Source)
	assert.Equal(t, 3*time.Second, waitArmed(t, clock))
}

func TestSchedulerSetIntervalRejectsNonPositive(t *testing.T) {
	t.Parallel()

	s := NewScheduler(Config{}, NewChannel(nil), newFakeClock(), nil)
	require.Error(t, s.SetInterval(0))
	require.Error(t, s.SetInterval(-1))

	_, interval := s.Settings()
	assert.InDelta(t, defaultInterval.Seconds(), interval, 1e-9)
}

func TestSchedulerStopsWhenChannelClosed(t *testing.T) {
	t.Parallel()

	ch := NewChannel(nil)
	ch.Close()
	s := NewScheduler(Config{}, ch, newFakeClock(), nil)
	s.Next()

	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrChannelClosed)
}
