package dfu

import (
	"context"
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

// A NotificationQueue is the FIFO of control point payloads delivered by a
// transport. The transport is the only producer and the Controller the only
// consumer. Close disposes the queue; a blocked or later read then returns
// ErrDisconnected.
type NotificationQueue struct {
	q *queue.Queue
}

// NewNotificationQueue returns an empty queue.
func NewNotificationQueue() *NotificationQueue {
	return &NotificationQueue{q: queue.New(16)}
}

// Push appends a copy of b.
func (n *NotificationQueue) Push(b []byte) error {
	if err := n.q.Put(append([]byte(nil), b...)); err != nil {
		return ErrDisconnected
	}
	return nil
}

// AwaitNext returns the oldest payload, waiting up to timeout or the
// context deadline, whichever is sooner.
func (n *NotificationQueue) AwaitNext(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wait := timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < wait {
			wait = d
		}
	}
	if wait <= 0 {
		wait = time.Nanosecond
	}
	items, err := n.q.Poll(1, wait)
	switch err {
	case nil:
	case queue.ErrTimeout:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{Op: "await notification", After: timeout}
	default:
		return nil, ErrDisconnected
	}
	return items[0].([]byte), nil
}

// Clear drops every unread payload and reports how many were dropped.
func (n *NotificationQueue) Clear() int {
	cnt := n.q.Len()
	if cnt == 0 {
		return 0
	}
	items, _ := n.q.Get(cnt)
	return len(items)
}

// Len is the number of unread payloads.
func (n *NotificationQueue) Len() int { return int(n.q.Len()) }

// Close disposes the queue. Unread payloads are dropped.
func (n *NotificationQueue) Close() {
	if !n.q.Disposed() {
		n.q.Dispose()
	}
}

// Closed reports whether Close was called.
func (n *NotificationQueue) Closed() bool { return n.q.Disposed() }
