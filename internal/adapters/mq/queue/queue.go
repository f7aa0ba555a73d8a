// Package queue is the bounded buffer between store writes and the workers
// that fan change events out to subscribers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/pkg/metrics"
)

const defaultQueueCapacity = 4096

// Rejection reasons reported by Stats and the error metrics.
const (
	ReasonFull      = "queue_full"
	ReasonClosed    = "closed"
	ReasonCancelled = "context_cancelled"
)

// Event is the payload flowing through the queue.
type Event = model.ChangeEvent

// Stats is a point-in-time view of queue traffic. Accepted and Rejected are
// keyed by collection; RejectedBy by reason.
type Stats struct {
	Length     int               `json:"length"`
	Capacity   int               `json:"capacity"`
	Accepted   map[string]uint64 `json:"accepted"`
	Rejected   map[string]uint64 `json:"rejected"`
	RejectedBy map[string]uint64 `json:"rejectedBy"`
}

// ChangeQueue buffers change events in a channel. Enqueue never blocks: a
// full or closed queue refuses the event and the publisher decides what to
// do with it.
type ChangeQueue struct {
	events   chan Event
	capacity int

	mu         sync.RWMutex
	closed     bool
	statsMu    sync.Mutex
	accepted   map[string]uint64
	rejected   map[string]uint64
	rejectedBy map[string]uint64
}

// New creates a change queue.
func New(opts ...Option) *ChangeQueue {
	q := &ChangeQueue{
		capacity:   defaultQueueCapacity,
		accepted:   make(map[string]uint64),
		rejected:   make(map[string]uint64),
		rejectedBy: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue offers e to the workers. It reports false when the queue is full,
// closed, or ctx is already done.
func (q *ChangeQueue) Enqueue(ctx context.Context, e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject(e, ReasonClosed)
		return false
	}
	if ctx.Err() != nil {
		q.reject(e, ReasonCancelled)
		return false
	}

	select {
	case q.events <- e:
		q.statsMu.Lock()
		q.accepted[e.Collection]++
		q.statsMu.Unlock()
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.events), q.capacity)
		return true
	default:
		q.reject(e, ReasonFull)
		return false
	}
}

func (q *ChangeQueue) reject(e Event, reason string) {
	q.statsMu.Lock()
	q.rejected[e.Collection]++
	q.rejectedBy[reason]++
	q.statsMu.Unlock()
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}

// Dequeue returns the receive side of the buffer. Consumers share it and it
// is closed by Close.
func (q *ChangeQueue) Dequeue(_ context.Context) <-chan Event {
	return q.events
}

// Len returns the number of buffered events.
func (q *ChangeQueue) Len(_ context.Context) int {
	size := len(q.events)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Capacity returns the configured bound.
func (q *ChangeQueue) Capacity() int { return q.capacity }

// Stats copies the traffic counters.
func (q *ChangeQueue) Stats() Stats {
	q.statsMu.Lock()
	defer q.statsMu.Unlock()
	return Stats{
		Length:     len(q.events),
		Capacity:   q.capacity,
		Accepted:   copyCounts(q.accepted),
		Rejected:   copyCounts(q.rejected),
		RejectedBy: copyCounts(q.rejectedBy),
	}
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Close stops accepting events. Buffered events stay readable until drained.
func (q *ChangeQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *ChangeQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
