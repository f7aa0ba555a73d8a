package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/pkg/logger"
	"github.com/okian/perfboard/pkg/metrics"
)

// Enqueuer hands change events to an asynchronous dispatcher.
// Enqueue returns false when the event was not accepted.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev model.ChangeEvent) bool
}

// FeedOption applies a configuration option to the Feed.
type FeedOption func(*Feed)

// WithQueue routes published events through q. A worker is expected to drain
// q and call Dispatch.
func WithQueue(q Enqueuer) FeedOption {
	return func(f *Feed) {
		f.queue = q
	}
}

// WithFeedLogger sets the feed logger.
func WithFeedLogger(l logger.Logger) FeedOption {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// Feed fans change events out to the watchers of a collection.
type Feed struct {
	mu       sync.RWMutex
	watchers map[string]map[uint64]*watcher
	nextID   uint64
	queue    Enqueuer
	logger   logger.Logger
	closed   bool

	published  atomic.Int64
	dispatched atomic.Int64
}

// NewFeed creates a feed. Without WithQueue events are dispatched inline.
func NewFeed(opts ...FeedOption) *Feed {
	f := &Feed{
		watchers: make(map[string]map[uint64]*watcher),
		logger:   logger.Default().Named("feed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish announces a write. Events the queue rejects are dispatched inline
// so that watchers never miss a change.
func (f *Feed) Publish(ctx context.Context, ev model.ChangeEvent) {
	if ev.TS.IsZero() {
		ev.TS = time.Now()
	}
	f.published.Add(1)
	if f.queue != nil {
		if f.queue.Enqueue(ctx, ev) {
			return
		}
		f.logger.Debug(ctx, "change queue rejected event, dispatching inline",
			logger.String("collection", ev.Collection),
			logger.String("documentID", ev.DocumentID),
		)
	}
	f.Dispatch(ev)
}

// Dispatch signals every watcher of the event's collection. It never blocks:
// a watcher that already has a pending signal absorbs the new one.
func (f *Feed) Dispatch(ev model.ChangeEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	f.dispatched.Add(1)
	for _, w := range f.watchers[ev.Collection] {
		w.notify()
	}
}

// Watch registers a watcher on collection. read produces the result set; fn
// receives it once right away and again after each dispatched change.
func (f *Feed) Watch(ctx context.Context, collection string, read func(context.Context) ([]Document, error), fn ChangeFunc) CancelFunc {
	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		signal: make(chan struct{}, 1),
		read:   read,
		fn:     fn,
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		cancel()
		fn(nil, ErrClosed)
		return func() {}
	}
	f.nextID++
	id := f.nextID
	if f.watchers[collection] == nil {
		f.watchers[collection] = make(map[uint64]*watcher)
	}
	f.watchers[collection][id] = w
	f.mu.Unlock()

	metrics.AddActiveSubscriptions(1)
	w.notify()
	go w.run(wctx)

	var once sync.Once
	detach := func() {
		once.Do(func() {
			w.stopped.Store(true)
			cancel()
			f.mu.Lock()
			delete(f.watchers[collection], id)
			if len(f.watchers[collection]) == 0 {
				delete(f.watchers, collection)
			}
			f.mu.Unlock()
			metrics.AddActiveSubscriptions(-1)
		})
	}
	go func() {
		<-wctx.Done()
		detach()
	}()
	return detach
}

// Watchers returns the number of registered watchers.
func (f *Feed) Watchers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, ws := range f.watchers {
		n += len(ws)
	}
	return n
}

// FeedStats is a point-in-time view of the feed counters.
type FeedStats struct {
	Watchers   int   `json:"watchers"`
	Published  int64 `json:"published"`
	Dispatched int64 `json:"dispatched"`
}

// Stats returns the feed counters.
func (f *Feed) Stats() FeedStats {
	return FeedStats{
		Watchers:   f.Watchers(),
		Published:  f.published.Load(),
		Dispatched: f.dispatched.Load(),
	}
}

// Close stops accepting watchers. Existing watchers end when cancelled.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

type watcher struct {
	signal  chan struct{}
	read    func(context.Context) ([]Document, error)
	fn      ChangeFunc
	stopped atomic.Bool
}

func (w *watcher) notify() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.signal:
		}
		if ctx.Err() != nil {
			return
		}
		docs, err := w.read(ctx)
		// Cancellation is best-effort: a read that raced with it is dropped.
		if w.stopped.Load() || ctx.Err() != nil {
			return
		}
		w.fn(docs, err)
		metrics.RecordSubscriptionDelivery()
	}
}
