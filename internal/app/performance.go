package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/pkg/logger"
)

var scoredMetrics = map[string]bool{
	model.MetricProductivity: true,
	model.MetricQuality:      true,
	model.MetricAttendance:   true,
	model.MetricTeamwork:     true,
}

// RecordMetric stores a dated measurement. Measurements of a scored metric
// also become the employee's current value for that metric.
func (s *Service) RecordMetric(ctx context.Context, m model.PerformanceMetric) (model.PerformanceMetric, error) {
	c, err := s.deps()
	if err != nil {
		return model.PerformanceMetric{}, err
	}
	if _, err := s.GetEmployee(ctx, m.EmployeeID); err != nil {
		return model.PerformanceMetric{}, err
	}
	if m.Date.IsZero() {
		m.Date = time.Now().UTC()
	}
	m.ID = ""

	doc, err := encodeMetric(m)
	if err != nil {
		return model.PerformanceMetric{}, err
	}
	if scoredMetrics[m.Metric] {
		if err := validateMetrics(map[string]float64{m.Metric: m.Value}); err != nil {
			return model.PerformanceMetric{}, err
		}
	}
	id, err := c.store.Push(ctx, model.CollectionPerformance, doc)
	if err != nil {
		return model.PerformanceMetric{}, storeErr("record metric", err)
	}
	m.ID = id

	if scoredMetrics[m.Metric] {
		if _, err := s.UpdateMetrics(ctx, m.EmployeeID, map[string]float64{m.Metric: m.Value}); err != nil {
			// Keep history and snapshot in step: drop the measurement again.
			if derr := c.store.Delete(ctx, model.CollectionPerformance, id); derr != nil {
				s.logger.Warn(ctx, "failed to roll back metric", logger.String("id", id), logger.Error(derr))
			}
			return model.PerformanceMetric{}, fmt.Errorf("refresh employee metrics: %w", err)
		}
	}
	return m, nil
}

// MetricsFor returns an employee's measurements, oldest first.
func (s *Service) MetricsFor(ctx context.Context, employeeID string) ([]model.PerformanceMetric, error) {
	c, err := s.deps()
	if err != nil {
		return nil, err
	}
	docs, err := c.query.Fetch(ctx, model.CollectionPerformance, repository.Filter{Field: model.FieldEmployeeID, Value: employeeID})
	if err != nil {
		return nil, fmt.Errorf("metrics for %s: %w", employeeID, err)
	}
	out := decodeDocs(ctx, s.logger, model.CollectionPerformance, docs, decodeMetric)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
