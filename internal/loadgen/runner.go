// Package loadgen drives a running perfboard server with generated employees
// and reviews, then checks the served leaderboard against a local aggregation.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/okian/perfboard/internal/adapters/http/api"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/domain/scoring"
	"github.com/okian/perfboard/internal/seed"
	"github.com/okian/perfboard/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// ErrNoEmployees is returned when the run has nothing to submit.
var ErrNoEmployees = errors.New("no employees to generate")

// Run executes the complete load run.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := logger.Default().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}

	if config.Employees <= 0 {
		return stats, ErrNoEmployees
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	config.TopN = max(config.TopN, 0)
	scale, err := scoring.ParseFeedbackScale(config.FeedbackScale)
	if err != nil {
		return stats, err
	}

	log.Info(ctx, "starting perfboard load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("employees", config.Employees),
		logger.Int("feedbackPerEmployee", config.FeedbackPerEmployee),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Int("topN", config.TopN))

	client := newHTTPClient(config)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	employees := GenerateEmployees(config.Employees)
	reviews := GenerateReviews(employees, config.FeedbackPerEmployee)

	if err := createEmployees(ctx, client, config.Workers, employees, stats); err != nil {
		return stats, fmt.Errorf("employee creation failed: %w", err)
	}
	accepted, err := submitReviews(ctx, client, config, employees, reviews, stats)
	if err != nil {
		return stats, fmt.Errorf("feedback submission failed: %w", err)
	}

	// Feedback lands through the background queue.
	select {
	case <-ctx.Done():
		return stats, ctx.Err()
	case <-time.After(SettleDelay):
	}

	if err := verify(ctx, client, config, scale, employees, accepted, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	if config.OutputFile != "" {
		if err := saveFixture(config.OutputFile, employees, accepted); err != nil {
			log.Warn(ctx, "failed to save fixture", logger.Error(err))
		} else {
			log.Info(ctx, "fixture saved", logger.String("filename", config.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	if _, err := client.do(ctx, http.MethodGet, "/healthz", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	return nil
}

// createEmployees posts every employee and records the id the server assigned.
func createEmployees(ctx context.Context, client *HTTPClient, workers int, employees []Employee, stats *Stats) error {
	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range employees {
		g.Go(func() error {
			var out model.Employee
			if _, err := client.do(gctx, http.MethodPost, "/employees", &employees[i], nil, &out); err != nil {
				return err
			}
			employees[i].ID = out.ID
			created.Add(1)
			return nil
		})
	}
	err := g.Wait()
	stats.EmployeesCreated = int(created.Load())
	return err
}

// submitReviews posts every review under its own idempotency key. A share of
// them is sent a second time; those must come back flagged as duplicates.
// It returns the reviews the server stored once.
func submitReviews(ctx context.Context, client *HTTPClient, config *Config, employees []Employee, reviews []Review, stats *Stats) ([]Review, error) {
	ids := make(map[string]string, len(employees))
	for _, e := range employees {
		ids[e.Key] = e.ID
	}
	every := 0
	if config.DuplicateRatio > 0 {
		every = int(1 / config.DuplicateRatio)
		if every < 1 {
			every = 1
		}
	}

	var submitted, duplicates, failed, unexpected atomic.Int64
	ok := make([]bool, len(reviews))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for i := range reviews {
		reviews[i].EmployeeID = ids[reviews[i].EmployeeKey]
		g.Go(func() error {
			headers := map[string]string{api.IdempotencyHeader: reviews[i].Key}
			sends := 1
			if every > 0 && i%every == 0 {
				sends = 2
			}
			for n := 0; n < sends; n++ {
				var out struct {
					Duplicate bool `json:"duplicate"`
				}
				if _, err := client.do(gctx, http.MethodPost, "/feedbacks", &reviews[i], headers, &out); err != nil {
					failed.Add(1)
					if errors.Is(err, context.Canceled) {
						return err
					}
					logger.Default().Named("loadgen").Debug(gctx, "feedback rejected", logger.Error(err))
					return nil
				}
				switch {
				case out.Duplicate:
					duplicates.Add(1)
					if n == 0 {
						unexpected.Add(1)
					}
				default:
					submitted.Add(1)
					ok[i] = true
					if n > 0 {
						unexpected.Add(1)
					}
				}
			}
			return nil
		})
	}
	err := g.Wait()

	stats.FeedbackSubmitted = int(submitted.Load())
	stats.FeedbackDuplicate = int(duplicates.Load())
	stats.FeedbackFailed = int(failed.Load())
	if err != nil {
		return nil, err
	}
	if n := unexpected.Load(); n > 0 {
		return nil, fmt.Errorf("%d submissions ignored their idempotency key", n)
	}

	accepted := make([]Review, 0, len(reviews))
	for i := range reviews {
		if ok[i] {
			accepted = append(accepted, reviews[i])
		}
	}
	return accepted, nil
}

// saveFixture writes the run as a seed fixture so it can be replayed into a
// fresh server.
func saveFixture(filename string, employees []Employee, reviews []Review) error {
	fx := seed.Fixture{
		Employees: make([]seed.Employee, 0, len(employees)),
		Feedback:  make([]seed.Feedback, 0, len(reviews)),
	}
	for _, e := range employees {
		fx.Employees = append(fx.Employees, seed.Employee{
			Key:        e.Key,
			Name:       e.Name,
			Department: e.Dept,
			Metrics:    e.Metrics,
		})
	}
	for _, r := range reviews {
		fx.Feedback = append(fx.Feedback, seed.Feedback{
			Employee: r.EmployeeKey,
			Content:  r.Content,
			Rating:   r.Rating,
		})
	}

	data, err := yaml.Marshal(&fx)
	if err != nil {
		return fmt.Errorf("failed to encode fixture: %w", err)
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, perSecond float64
	attempts := stats.FeedbackSubmitted + stats.FeedbackFailed
	if attempts > 0 {
		successRate = float64(stats.FeedbackSubmitted) / float64(attempts) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.FeedbackSubmitted+stats.FeedbackDuplicate) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("employeesCreated", stats.EmployeesCreated),
		logger.Int("feedbackSubmitted", stats.FeedbackSubmitted),
		logger.Int("feedbackDuplicate", stats.FeedbackDuplicate),
		logger.Int("feedbackFailed", stats.FeedbackFailed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("verified", stats.Verified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", perSecond))
}
