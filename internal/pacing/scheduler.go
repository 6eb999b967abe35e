package pacing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock is the time source used for auto-play timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Config holds the initial scheduler settings.
type Config struct {
	AutoPlay bool
	// IntervalSeconds is the auto-play period; fractions are allowed.
	IntervalSeconds float64
}

const defaultInterval = 3 * time.Second

// Scheduler emits one advance Signal per manual request and, while
// auto-play is enabled, one per elapsed interval.
type Scheduler struct {
	out    *Channel
	clock  Clock
	logger *zap.Logger

	mu       sync.Mutex
	autoPlay bool
	interval time.Duration

	next    chan struct{}
	changed chan struct{}
}

// NewScheduler builds a Scheduler that sends into out.
func NewScheduler(cfg Config, out *Channel, clock Clock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := secondsToDuration(cfg.IntervalSeconds)
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		out:      out,
		clock:    clock,
		logger:   logger,
		autoPlay: cfg.AutoPlay,
		interval: interval,
		next:     make(chan struct{}, 1),
		changed:  make(chan struct{}, 1),
	}
}

// Next requests a single advance as soon as possible. Requests made while
// one is already pending are coalesced.
func (s *Scheduler) Next() {
	select {
	case s.next <- struct{}{}:
	default:
	}
}

// SetAutoPlay toggles the periodic trigger. Disabling drops a pending timer;
// enabling arms one with the current interval.
func (s *Scheduler) SetAutoPlay(enabled bool) {
	s.mu.Lock()
	s.autoPlay = enabled
	s.mu.Unlock()
	s.notify()
}

// SetInterval changes the auto-play period. A timer that is already armed
// keeps its original deadline; the new period applies from the next one.
func (s *Scheduler) SetInterval(seconds float64) error {
	d := secondsToDuration(seconds)
	if d <= 0 {
		return fmt.Errorf("interval must be > 0, got %v", seconds)
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
	s.notify()
	return nil
}

// Settings returns the current auto-play flag and interval in seconds.
func (s *Scheduler) Settings() (bool, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoPlay, s.interval.Seconds()
}

func (s *Scheduler) settings() (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoPlay, s.interval
}

func (s *Scheduler) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Run services triggers until ctx ends. A closed channel means nobody is
// left to consume signals, so it is returned as a fatal error.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	arm := func() {
		if autoPlay, interval := s.settings(); autoPlay {
			tick = s.clock.After(interval)
		} else {
			tick = nil
		}
	}
	arm()

	for {
		var source string
		select {
		case <-ctx.Done():
			return nil
		case <-s.changed:
			autoPlay, _ := s.settings()
			if !autoPlay {
				tick = nil
			} else if tick == nil {
				arm()
			}
			continue
		case <-s.next:
			source = SourceManual
		case <-tick:
			source = SourceTimer
		}

		if err := s.out.Send(ctx, Advance(source, s.clock.Now())); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				s.logger.Error("pacing channel closed, stopping scheduler")
				return fmt.Errorf("scheduler send: %w", err)
			}
			return nil
		}
		s.logger.Info("sent a play next command", zap.String("source", source))
		arm()
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
