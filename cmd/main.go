package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/perfboard/internal/adapters/http/api"
	"github.com/okian/perfboard/internal/adapters/http/swagger"
	app "github.com/okian/perfboard/internal/app"
	"github.com/okian/perfboard/internal/config"
	"github.com/okian/perfboard/internal/domain/scoring"
	"github.com/okian/perfboard/internal/seed"
	"github.com/okian/perfboard/pkg/logger"
	"github.com/okian/perfboard/pkg/metrics"
)

// HTTP server timeout constants. WriteTimeout stays unset so the change
// stream can hold its connection open.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = os.Stderr.WriteString("perfboard: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, svc, cfg.SeedFile); err != nil {
			return err
		}
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the service from configuration without starting it.
func newService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	scale, err := scoring.ParseFeedbackScale(cfg.FeedbackScale)
	if err != nil {
		return nil, err
	}
	return app.New(
		app.WithLogger(log),
		app.WithStoreDriver(cfg.StoreDriver, cfg.SQLitePath),
		app.WithIndexes(cfg.StoreIndexes()),
		app.WithWorkerCount(cfg.FeedWorkerCount),
		app.WithQueueSize(cfg.FeedQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithFeedbackScale(scale),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
	), nil
}

// newMux registers the API docs and business routes.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithLeaderboardLimits(cfg.DefaultLeaderboardLimit, cfg.MaxLeaderboardLimit),
		api.WithWriteRate(cfg.WriteRatePerSec, cfg.WriteBurst),
	).Register(ctx, mux)
	return mux
}

// applySeed loads the fixture at path into the running service.
func applySeed(ctx context.Context, svc *app.Service, path string) error {
	fx, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	res, err := seed.Apply(ctx, svc, fx)
	if err != nil {
		return fmt.Errorf("failed to apply seed file: %w", err)
	}
	logger.Get().Info(ctx, "seed file applied",
		logger.String("path", path),
		logger.Int("users", res.Users),
		logger.Int("employees", len(res.Employees)),
		logger.Int("feedback", res.Feedback),
		logger.Int("goals", res.Goals))
	return nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges from the service's stats snapshot.
// GetStats itself refreshes the employee total.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		capacity, _ := stats["queueSize"].(int)
		metrics.UpdateQueueSize(queueLen, capacity)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
