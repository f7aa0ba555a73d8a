// Package service wires the document store, change feed, resilient queries
// and scoring into the operations served by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	eventqueue "github.com/okian/perfboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/perfboard/internal/adapters/mq/worker"
	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/dedupe"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/domain/ranking"
	"github.com/okian/perfboard/internal/domain/scoring"
	"github.com/okian/perfboard/internal/query"
	"github.com/okian/perfboard/pkg/logger"
	"github.com/okian/perfboard/pkg/metrics"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

const (
	defaultQueueSize  = 4096
	defaultDedupeSize = 50000
	defaultMaxLimit   = 1000
	stopTimeout       = 10 * time.Second
)

// DefaultIndexes are the equality indexes the service's own queries rely on.
func DefaultIndexes() map[string][]string {
	return map[string][]string{
		model.CollectionEmployees:   {model.FieldUserID},
		model.CollectionFeedbacks:   {model.FieldEmployeeID},
		model.CollectionGoals:       {model.FieldEmployeeID},
		model.CollectionPerformance: {model.FieldEmployeeID},
	}
}

// components is everything built by Start. It is replaced as a whole.
type components struct {
	store      repository.Store
	feed       *repository.Feed
	queue      *eventqueue.ChangeQueue
	pool       *workerpool.Pool
	query      *query.ResilientQuery
	aggregator *scoring.Aggregator
	deduper    dedupe.Deduper
}

// Service implements the API dependencies for the performance dashboard.
type Service struct {
	mu sync.RWMutex
	c  *components

	// Configuration
	storeDriver   string
	sqlitePath    string
	indexes       map[string][]string
	workerCount   int
	queueSize     int
	dedupeSize    int
	feedbackScale scoring.FeedbackScale
	maxLimit      int

	started bool
	logger  logger.Logger
	tracer  trace.Tracer

	// records guards read-modify-write updates per document.
	records keyedLocks
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStoreDriver selects the document store. path is used by DriverSQLite.
func WithStoreDriver(driver, path string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storeDriver = driver
		}
		s.sqlitePath = path
	}
}

// WithIndexes replaces the declared store indexes. A nil map keeps the defaults;
// an empty map declares none, which forces every filtered read onto the fallback.
func WithIndexes(indexes map[string][]string) Option {
	return func(s *Service) {
		if indexes != nil {
			s.indexes = indexes
		}
	}
}

// WithWorkerCount sets the number of change dispatch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the change queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many feedback submission keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithFeedbackScale selects how feedback ratings enter the score.
func WithFeedbackScale(scale scoring.FeedbackScale) Option {
	return func(s *Service) {
		s.feedbackScale = scale
	}
}

// WithMaxLeaderboardLimit caps the number of entries one request may ask for.
func WithMaxLeaderboardLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxLimit = limit
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver:   DriverMemory,
		indexes:       DefaultIndexes(),
		workerCount:   runtime.NumCPU(),
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		feedbackScale: scoring.ScaleRaw,
		maxLimit:      defaultMaxLimit,
		tracer:        otel.Tracer("github.com/okian/perfboard/internal/app"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the store, change feed and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Default().Named("service")
	}
	s.logger.Info(ctx, "starting performance service...")

	q := eventqueue.New(eventqueue.WithCapacity(s.queueSize))
	feed := repository.NewFeed(repository.WithQueue(q), repository.WithFeedLogger(s.logger.Named("feed")))
	storeOpts := []repository.Option{
		repository.WithFeed(feed),
		repository.WithIndexes(s.indexes),
	}

	var (
		store repository.Store
		err   error
	)
	switch s.storeDriver {
	case DriverMemory:
		store, err = repository.NewMemoryStore(ctx, storeOpts...)
	case DriverSQLite:
		store, err = repository.NewSQLiteStore(ctx, s.sqlitePath, storeOpts...)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownStoreDriver, s.storeDriver)
	}
	if err != nil {
		_ = q.Close()
		return fmt.Errorf("open store: %w", err)
	}

	pool := workerpool.NewPool(s.workerCount, q, feed)
	pool.Start(context.WithoutCancel(ctx))

	s.c = &components{
		store:      store,
		feed:       feed,
		queue:      q,
		pool:       pool,
		query:      query.New(store, query.WithLogger(s.logger.Named("query"))),
		aggregator: scoring.NewAggregator(scoring.WithFeedbackScale(s.feedbackScale)),
		deduper:    dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize)),
	}
	s.started = true

	metrics.UpdateEmployeesTotal(store.Count(ctx, model.CollectionEmployees))
	s.logger.Info(ctx, "performance service started",
		logger.String("store", s.storeDriver),
		logger.Int("workers", pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("feedbackScale", string(s.feedbackScale)),
	)
	return nil
}

// Stop drains pending change notifications and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping performance service...")
	if err := s.c.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.c.feed.Close()
	if err := s.c.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "performance service stopped")
}

func (s *Service) deps() (*components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.c, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"storeDriver":   s.storeDriver,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"feedbackScale": string(s.feedbackScale),
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	employees := s.c.store.Count(ctx, model.CollectionEmployees)
	stats["queueLength"] = s.c.queue.Len(ctx)
	stats["queue"] = s.c.queue.Stats()
	stats["dispatched"] = s.c.pool.Processed()
	stats["feed"] = s.c.feed.Stats()
	stats["submissionKeys"] = s.c.deduper.Size()
	stats["collections"] = map[string]int{
		model.CollectionUsers:       s.c.store.Count(ctx, model.CollectionUsers),
		model.CollectionEmployees:   employees,
		model.CollectionFeedbacks:   s.c.store.Count(ctx, model.CollectionFeedbacks),
		model.CollectionGoals:       s.c.store.Count(ctx, model.CollectionGoals),
		model.CollectionPerformance: s.c.store.Count(ctx, model.CollectionPerformance),
	}
	metrics.UpdateEmployeesTotal(employees)
	return stats
}

// clampLimit bounds a requested leaderboard size to the configured maximum.
func (s *Service) clampLimit(req ranking.Request) ranking.Request {
	if req.Limit > s.maxLimit {
		req.Limit = s.maxLimit
	}
	return req
}
