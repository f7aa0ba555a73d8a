package queue

// Option configures a ChangeQueue.
type Option func(*ChangeQueue)

// WithCapacity bounds how many change events may wait for a worker.
// Non-positive values keep the default.
func WithCapacity(capacity int) Option {
	return func(q *ChangeQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}
