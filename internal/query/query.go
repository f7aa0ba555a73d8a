// Package query runs filtered reads and subscriptions against a document
// store, switching to a full collection scan with in-memory filtering when
// the store has no index for the filter field.
package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/pkg/logger"
	"github.com/okian/perfboard/pkg/metrics"
)

const tracerName = "github.com/okian/perfboard/internal/query"

// indexErrorMarker is how stores phrase a missing index.
const indexErrorMarker = "Index not defined"

var indexHintPattern = regexp.MustCompile(`"\.indexOn":\s*"([^"]+)",\s*for path\s*"([^"]+)"`)

// Mode is the strategy a fetch or subscription ended up using.
type Mode string

const (
	ModeIndexed  Mode = metrics.PathIndexed
	ModeFallback Mode = metrics.PathFallback
)

// Store is the part of the document store the query needs.
type Store interface {
	Fetch(ctx context.Context, collection string, filter *repository.Filter) ([]repository.Document, error)
	Subscribe(ctx context.Context, collection string, filter *repository.Filter, onChange repository.ChangeFunc) (repository.CancelFunc, error)
}

// ResilientQuery is safe for concurrent use. Each call owns its result buffer.
type ResilientQuery struct {
	store  Store
	logger logger.Logger
	tracer trace.Tracer
}

// New creates a ResilientQuery over store.
func New(store Store, opts ...Option) *ResilientQuery {
	q := &ResilientQuery{
		store:  store,
		logger: logger.Default().Named("query"),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// IsIndexNotDefined reports whether err means the filter field has no index.
func IsIndexNotDefined(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, repository.ErrIndexNotDefined) || strings.Contains(err.Error(), indexErrorMarker)
}

// IndexHint extracts the field and path from a missing index message.
func IndexHint(err error) (field, path string, ok bool) {
	if err == nil {
		return "", "", false
	}
	m := indexHintPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// Fetch returns the documents of collection matching filter. The indexed
// query is tried first; a missing index degrades to a full scan. Both paths
// yield the same set, in no guaranteed order.
func (q *ResilientQuery) Fetch(ctx context.Context, collection string, filter repository.Filter) ([]repository.Document, error) {
	start := time.Now()
	ctx, span := q.tracer.Start(ctx, "ResilientQuery.Fetch", trace.WithAttributes(
		attribute.String("query.collection", collection),
		attribute.String("query.field", filter.Field),
	))
	defer span.End()

	if err := filter.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	docs, err := q.store.Fetch(ctx, collection, &filter)
	if err == nil {
		q.finish(span, collection, ModeIndexed, start, len(docs))
		return docs, nil
	}
	if !IsIndexNotDefined(err) {
		return nil, q.fail(ctx, span, collection, err)
	}

	q.noteFallback(ctx, span, collection, filter, err)
	all, err := q.store.Fetch(ctx, collection, nil)
	if err != nil {
		return nil, q.fail(ctx, span, collection, err)
	}
	docs = repository.FilterDocuments(all, filter)
	q.finish(span, collection, ModeFallback, start, len(docs))
	return docs, nil
}

// Subscription is a live, filtered view of a collection.
type Subscription struct {
	mode   Mode
	cancel repository.CancelFunc
	once   sync.Once
	mu     sync.RWMutex
	done   bool
}

// Mode reports which strategy the subscription settled on. It never changes.
func (s *Subscription) Mode() Mode { return s.mode }

// Cancel detaches the listener. No delivery starts after Cancel returns; one
// already running may still complete. Calling Cancel twice is harmless.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		if s.cancel != nil {
			s.cancel()
		}
	})
}

func (s *Subscription) cancelled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Subscribe calls onChange with the current filtered set of collection and
// again after every upstream change. When the store has no index for the
// filter field the subscription covers the whole collection and filters each
// delivery itself, for its entire lifetime.
func (q *ResilientQuery) Subscribe(ctx context.Context, collection string, filter repository.Filter, onChange repository.ChangeFunc) (*Subscription, error) {
	// The listener outlives the span, so it is attached to the caller's context.
	parent := ctx
	ctx, span := q.tracer.Start(ctx, "ResilientQuery.Subscribe", trace.WithAttributes(
		attribute.String("query.collection", collection),
		attribute.String("query.field", filter.Field),
	))
	defer span.End()

	if err := filter.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	sub := &Subscription{mode: ModeIndexed}

	cancel, err := q.store.Subscribe(parent, collection, &filter, q.deliver(sub, collection, ModeIndexed, filter, onChange))
	if err == nil {
		sub.cancel = cancel
		span.SetAttributes(attribute.String("query.mode", string(ModeIndexed)))
		span.SetStatus(codes.Ok, "")
		return sub, nil
	}
	if !IsIndexNotDefined(err) {
		return nil, q.fail(ctx, span, collection, err)
	}

	q.noteFallback(ctx, span, collection, filter, err)
	sub.mode = ModeFallback
	cancel, err = q.store.Subscribe(parent, collection, nil, q.deliver(sub, collection, ModeFallback, filter, onChange))
	if err != nil {
		return nil, q.fail(ctx, span, collection, err)
	}
	sub.cancel = cancel
	span.SetAttributes(attribute.String("query.mode", string(ModeFallback)))
	span.SetStatus(codes.Ok, "")
	return sub, nil
}

func (q *ResilientQuery) deliver(sub *Subscription, collection string, mode Mode, filter repository.Filter, onChange repository.ChangeFunc) repository.ChangeFunc {
	return func(docs []repository.Document, err error) {
		if sub.cancelled() {
			return
		}
		if err != nil {
			metrics.RecordQueryError(collection)
			onChange(nil, fmt.Errorf("%w: %s: %w", ErrTransientStore, collection, err))
			return
		}
		if mode == ModeFallback {
			docs = repository.FilterDocuments(docs, filter)
		}
		onChange(docs, nil)
	}
}

func (q *ResilientQuery) noteFallback(ctx context.Context, span trace.Span, collection string, filter repository.Filter, err error) {
	fields := []logger.Field{
		logger.String("collection", collection),
		logger.String("field", filter.Field),
	}
	if field, path, ok := IndexHint(err); ok {
		fields = append(fields, logger.String("indexOn", field), logger.String("rulesPath", path))
	}
	q.logger.Warn(ctx, "index not defined, falling back to full scan", fields...)
	span.AddEvent("query.fallback", trace.WithAttributes(attribute.String("reason", err.Error())))
}

func (q *ResilientQuery) finish(span trace.Span, collection string, mode Mode, start time.Time, n int) {
	span.SetAttributes(
		attribute.String("query.mode", string(mode)),
		attribute.Int("query.results", n),
	)
	span.SetStatus(codes.Ok, "")
	metrics.RecordQuery(collection, string(mode), float64(time.Since(start).Microseconds())/1000)
}

func (q *ResilientQuery) fail(ctx context.Context, span trace.Span, collection string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.RecordQueryError(collection)
	q.logger.Error(ctx, "query failed", logger.String("collection", collection), logger.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrTransientStore, collection, err)
}
