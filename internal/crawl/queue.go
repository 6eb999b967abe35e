package crawl

import (
	"errors"
	"fmt"
)

// ShuffleFunc permutes n elements through swap. rand.Shuffle satisfies it.
type ShuffleFunc func(n int, swap func(i, j int))

var errQueueNotEmpty = errors.New("queue is not empty")

// WorkQueue is a stack of not-yet-visited URLs. The last URL in the slice is
// the next one consumed.
type WorkQueue struct {
	name  string
	items []string
}

func newWorkQueue(name string) *WorkQueue {
	return &WorkQueue{name: name}
}

// Fill replaces an empty queue with a shuffled copy of items. Filling a queue
// that still holds URLs is refused so partially drained work is never lost.
func (q *WorkQueue) Fill(items []string, shuffle ShuffleFunc) error {
	if len(q.items) > 0 {
		return fmt.Errorf("fill %s: %w", q.name, errQueueNotEmpty)
	}
	q.items = append(make([]string, 0, len(items)), items...)
	if shuffle != nil && len(q.items) > 1 {
		shuffle(len(q.items), func(i, j int) {
			q.items[i], q.items[j] = q.items[j], q.items[i]
		})
	}
	return nil
}

// Peek returns the next URL without removing it.
func (q *WorkQueue) Peek() (string, error) {
	if len(q.items) == 0 {
		return "", fmt.Errorf("%s: %w", q.name, ErrQueueExhausted)
	}
	return q.items[len(q.items)-1], nil
}

// Pop removes and returns the next URL.
func (q *WorkQueue) Pop() (string, error) {
	top, err := q.Peek()
	if err != nil {
		return "", err
	}
	q.items = q.items[:len(q.items)-1]
	return top, nil
}

// Len reports how many URLs remain.
func (q *WorkQueue) Len() int {
	return len(q.items)
}

// Snapshot returns a copy of the remaining URLs in storage order.
func (q *WorkQueue) Snapshot() []string {
	return append([]string(nil), q.items...)
}

func (q *WorkQueue) drop() {
	if len(q.items) > 0 {
		q.items = q.items[:len(q.items)-1]
	}
}
