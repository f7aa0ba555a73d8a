// Package worker drains the change queue and hands each event to the feed
// that notifies subscribers.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/perfboard/internal/adapters/mq/queue"
	"github.com/okian/perfboard/pkg/logger"
	"github.com/okian/perfboard/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = queue.Event

// Dispatcher delivers one change event to its subscribers.
type Dispatcher interface {
	Dispatch(ev Event)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the current event.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for dispatching change events.
type InMemoryWorker struct {
	queue      Queue
	dispatcher Dispatcher
	name       string
	processed  *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, d Dispatcher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		dispatcher: d,
		name:       "worker",
		processed:  &atomic.Int64{},
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Default().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(ctx, ev)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns how many events this worker dispatched.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, ev Event) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "dispatch_panic")
			w.logger.Error(ctx, "dispatch panicked",
				logger.String("collection", ev.Collection),
				logger.String("documentID", ev.DocumentID),
				logger.Any("panic", r),
			)
		}
	}()

	w.dispatcher.Dispatch(ev)
	w.processed.Add(1)
	metrics.RecordWorkerDispatch(float64(time.Since(start).Microseconds()) / 1000)
	if !ev.TS.IsZero() {
		w.logger.Debug(ctx, "change dispatched",
			logger.String("collection", ev.Collection),
			logger.String("op", string(ev.Op)),
			logger.Duration("lag", time.Since(ev.TS)),
		)
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}

	lastProcessed     int64
	lastProcessedTime time.Time

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. Values below 1 select
// runtime.NumCPU().
func NewPool(workerCount int, q Queue, d Dispatcher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             q,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Default().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, d, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the total number of dispatched events.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.logRate(ctx)
		}
	}
}

func (p *Pool) logRate(ctx context.Context) {
	now := time.Now()
	total := p.Processed()
	if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 && total > p.lastProcessed {
		p.logger.Debug(ctx, "dispatch rate",
			logger.Float64("perSecond", float64(total-p.lastProcessed)/elapsed))
	}
	p.lastProcessed = total
	p.lastProcessedTime = now
}

// Shutdown closes the queue, lets workers drain what is buffered and waits
// for them to exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	} else {
		for _, w := range p.workers {
			select {
			case <-w.shutdown:
			default:
				close(w.shutdown)
			}
		}
	}

	select {
	case <-p.shutdown:
		return nil
	default:
		close(p.shutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
