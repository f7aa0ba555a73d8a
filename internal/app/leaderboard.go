package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/domain/ranking"
	"github.com/okian/perfboard/internal/domain/types"
	"github.com/okian/perfboard/pkg/metrics"
)

// entries loads every employee and every feedback record concurrently and
// scores them. Records are read leniently so an employee with a missing name
// or a malformed metric still ranks.
func (s *Service) entries(ctx context.Context, c *components) ([]types.LeaderboardEntry, error) {
	var employeeDocs, feedbackDocs []repository.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		employeeDocs, err = c.store.Fetch(gctx, model.CollectionEmployees, nil)
		return err
	})
	g.Go(func() error {
		var err error
		feedbackDocs, err = c.store.Fetch(gctx, model.CollectionFeedbacks, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr("load leaderboard data", err)
	}

	employees := decodeDocs(ctx, s.logger, model.CollectionEmployees, employeeDocs, model.ScoringEmployee)
	feedback := decodeDocs(ctx, s.logger, model.CollectionFeedbacks, feedbackDocs, model.ScoringFeedback)
	metrics.UpdateEmployeesTotal(len(employees))

	entries, err := c.aggregator.AggregateAll(employees, feedback)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	return entries, nil
}

// Leaderboard scores every employee and returns the requested view.
func (s *Service) Leaderboard(ctx context.Context, req ranking.Request) ([]types.LeaderboardEntry, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "Service.Leaderboard", trace.WithAttributes(
		attribute.Int("leaderboard.limit", req.Limit),
		attribute.Bool("leaderboard.details", req.ShowDetails),
		attribute.String("leaderboard.variant", string(req.Variant)),
	))
	defer span.End()

	c, err := s.deps()
	if err != nil {
		return nil, err
	}

	out, err := s.leaderboard(ctx, c, s.clampLimit(req))
	if err != nil {
		metrics.RecordLeaderboardError()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("leaderboard.entries", len(out)))
	span.SetStatus(codes.Ok, "")
	metrics.RecordLeaderboardBuild(float64(time.Since(start).Microseconds()) / 1000)
	return out, nil
}

func (s *Service) leaderboard(ctx context.Context, c *components, req ranking.Request) ([]types.LeaderboardEntry, error) {
	// Reject bad requests before touching the store.
	if _, err := ranking.Build(nil, req); err != nil {
		return nil, err
	}
	entries, err := s.entries(ctx, c)
	if err != nil {
		return nil, err
	}
	return ranking.Build(entries, req)
}

// Rank returns one employee's entry with its position in the full ranking.
func (s *Service) Rank(ctx context.Context, employeeID string) (types.LeaderboardEntry, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Rank", trace.WithAttributes(
		attribute.String("employee.id", employeeID),
	))
	defer span.End()

	c, err := s.deps()
	if err != nil {
		return types.LeaderboardEntry{}, err
	}
	entries, err := s.entries(ctx, c)
	if err != nil {
		span.RecordError(err)
		return types.LeaderboardEntry{}, err
	}
	entry, rank := ranking.Position(entries, employeeID)
	if rank == 0 {
		return types.LeaderboardEntry{}, fmt.Errorf("rank %s: %w", employeeID, repository.ErrNotFound)
	}
	return entry, nil
}
