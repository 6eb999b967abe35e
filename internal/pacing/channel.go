package pacing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrChannelClosed is returned by Send and Await after Close.
var ErrChannelClosed = errors.New("pacing channel closed")

// Channel carries Signals from producers to a single consumer. It buffers at
// most one pending signal; Send blocks while that slot is taken.
type Channel struct {
	signals chan Signal
	// recv admits one receiver at a time.
	recv      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewChannel constructs an open Channel with capacity one.
func NewChannel(logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		signals: make(chan Signal, 1),
		recv:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Send delivers sig, waiting for the pending slot to free up. It gives up
// only when the channel is closed or ctx ends.
func (c *Channel) Send(ctx context.Context, sig Signal) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.signals <- sig:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return fmt.Errorf("send pacing signal: %w", ctx.Err())
	}
}

// Await blocks until a complete advance request is received. Incomplete
// signals are discarded. Only one caller receives at a time.
func (c *Channel) Await(ctx context.Context) (Signal, error) {
	select {
	case c.recv <- struct{}{}:
	case <-c.done:
		return Signal{}, ErrChannelClosed
	case <-ctx.Done():
		return Signal{}, fmt.Errorf("acquire pacing receiver: %w", ctx.Err())
	}
	defer func() { <-c.recv }()

	for {
		select {
		case sig := <-c.signals:
			if sig.Complete() {
				return sig, nil
			}
			c.logger.Debug("discarding incomplete pacing signal",
				zap.Stringer("intent", sig.Intent),
				zap.String("source", sig.Source),
			)
		case <-c.done:
			return Signal{}, ErrChannelClosed
		case <-ctx.Done():
			return Signal{}, fmt.Errorf("await pacing signal: %w", ctx.Err())
		}
	}
}

// Close wakes every blocked sender and receiver. Safe to call repeatedly.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
