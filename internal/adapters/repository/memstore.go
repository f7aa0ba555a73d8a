package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/pkg/metrics"
)

type memCollection struct {
	order []string
	docs  map[string]map[string]any
}

func (c *memCollection) remove(id string) {
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// MemoryStore is an in-process Store. Documents are deep-copied on the way
// in and out, so callers never share maps with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	indexes     indexSet
	feed        *Feed
	closed      atomic.Bool
	stopChan    chan struct{}
	stopOnce    sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(ctx context.Context, opts ...Option) (*MemoryStore, error) {
	o, idx, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	s := &MemoryStore{
		collections: make(map[string]*memCollection),
		indexes:     idx,
		feed:        o.feed,
		stopChan:    make(chan struct{}),
	}
	startMetricsUpdater(ctx, s, o.metricsUpdateInterval, s.stopChan)
	return s, nil
}

// Feed returns the change feed the store publishes to.
func (s *MemoryStore) Feed() *Feed { return s.feed }

func (s *MemoryStore) guard(collection string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return checkCollection(collection)
}

// Fetch returns the documents of collection in insertion order.
func (s *MemoryStore) Fetch(ctx context.Context, collection string, filter *Filter) ([]Document, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreReadLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := s.guard(collection); err != nil {
		return nil, err
	}
	if err := s.indexes.check(collection, filter); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.collections[collection]
	if c == nil {
		return []Document{}, nil
	}
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		doc := Document{ID: id, Data: c.docs[id]}
		if filter != nil && !filter.Matches(doc) {
			continue
		}
		out = append(out, Document{ID: id, Data: cloneData(doc.Data)})
	}
	return out, nil
}

// Get returns one document.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := s.guard(collection); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.collections[collection]
	if c == nil {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	data, ok := c.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return Document{ID: id, Data: cloneData(data)}, nil
}

// Push stores data under a new uuid key.
func (s *MemoryStore) Push(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.write(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Set creates or replaces the document at id.
func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if id == "" {
		return ErrInvalidID
	}
	return s.write(ctx, collection, id, data)
}

func (s *MemoryStore) write(ctx context.Context, collection, id string, data map[string]any) error {
	if err := s.guard(collection); err != nil {
		return err
	}
	s.mu.Lock()
	c := s.collections[collection]
	if c == nil {
		c = &memCollection{docs: make(map[string]map[string]any)}
		s.collections[collection] = c
	}
	op := model.OpUpdate
	if _, exists := c.docs[id]; !exists {
		op = model.OpCreate
		c.order = append(c.order, id)
	}
	c.docs[id] = cloneData(data)
	s.mu.Unlock()

	s.published(ctx, collection, id, op)
	return nil
}

// Update merges patch into an existing document.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := s.guard(collection); err != nil {
		return err
	}
	s.mu.Lock()
	c := s.collections[collection]
	var data map[string]any
	if c != nil {
		data = c.docs[id]
	}
	if data == nil {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range patch {
		data[k] = cloneValue(v)
	}
	s.mu.Unlock()

	s.published(ctx, collection, id, model.OpUpdate)
	return nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.guard(collection); err != nil {
		return err
	}
	s.mu.Lock()
	c := s.collections[collection]
	if c == nil || c.docs[id] == nil {
		s.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	c.remove(id)
	s.mu.Unlock()

	s.published(ctx, collection, id, model.OpDelete)
	return nil
}

// Subscribe watches collection, optionally narrowed by an indexed filter.
func (s *MemoryStore) Subscribe(ctx context.Context, collection string, filter *Filter, onChange ChangeFunc) (CancelFunc, error) {
	if err := s.guard(collection); err != nil {
		return nil, err
	}
	if err := s.indexes.check(collection, filter); err != nil {
		return nil, err
	}
	read := func(ctx context.Context) ([]Document, error) {
		return s.Fetch(ctx, collection, filter)
	}
	return s.feed.Watch(ctx, collection, read, onChange), nil
}

// Count returns the number of documents in collection.
func (s *MemoryStore) Count(ctx context.Context, collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.collections[collection]; c != nil {
		return len(c.order)
	}
	return 0
}

// Close stops background work. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopChan)
	})
	return nil
}

func (s *MemoryStore) published(ctx context.Context, collection, id string, op model.ChangeOp) {
	metrics.RecordStoreWrite(collection, string(op))
	s.feed.Publish(ctx, model.ChangeEvent{Collection: collection, DocumentID: id, Op: op, TS: time.Now()})
}

// startMetricsUpdater refreshes the employee gauge until stop is closed.
func startMetricsUpdater(ctx context.Context, s Store, interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				metrics.UpdateEmployeesTotal(s.Count(ctx, model.CollectionEmployees))
			}
		}
	}()
}
