// Package scoring combines an employee's metrics and feedback history into one
// comparable score.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/domain/types"
)

// Blend weights.
const (
	MetricsWeight  = 0.7
	FeedbackWeight = 0.3
)

const (
	maxScoreValue        = 100
	maxRatingValue       = 5
	ratingToPercentScale = 20 // 0..5 -> 0..100
)

// FeedbackScale selects how the 0-5 feedback rating enters the 0-100 blend.
type FeedbackScale string

const (
	// ScaleRaw blends the rating as-is, so feedback contributes at most 1.5 points.
	ScaleRaw FeedbackScale = "raw"
	// ScaleNormalized maps the rating onto 0-100 before blending.
	ScaleNormalized FeedbackScale = "normalized"
)

// ParseFeedbackScale validates a configured scale name. Empty means ScaleRaw.
func ParseFeedbackScale(s string) (FeedbackScale, error) {
	switch FeedbackScale(s) {
	case "", ScaleRaw:
		return ScaleRaw, nil
	case ScaleNormalized:
		return ScaleNormalized, nil
	default:
		return "", fmt.Errorf("%w: unknown feedback scale %q", ErrInvalidInput, s)
	}
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithFeedbackScale sets the feedback rating scale used in the blend.
func WithFeedbackScale(scale FeedbackScale) Option {
	return func(a *Aggregator) {
		if scale == ScaleRaw || scale == ScaleNormalized {
			a.scale = scale
		}
	}
}

// Aggregator turns employee records and feedback into leaderboard entries.
// It holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	scale FeedbackScale
}

// NewAggregator creates an aggregator. The default scale is ScaleRaw.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{scale: ScaleRaw}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Scale reports the configured feedback scale.
func (a *Aggregator) Scale() FeedbackScale { return a.scale }

// Aggregate computes the entry for one employee. Feedback for other employees
// is ignored. The only failure is a missing employee identity.
func (a *Aggregator) Aggregate(emp model.Employee, feedback []model.Feedback) (types.LeaderboardEntry, error) {
	if emp.ID == "" {
		return types.LeaderboardEntry{}, fmt.Errorf("%w: employee without id", ErrInvalidInput)
	}

	var sum, count int
	for i := range feedback {
		if feedback[i].EmployeeID != emp.ID {
			continue
		}
		sum += feedback[i].Rating
		count++
	}
	var rating float64
	if count > 0 {
		rating = float64(sum) / float64(count)
	}

	breakdown := types.MetricBreakdown{
		Productivity: metricValue(emp, model.MetricProductivity),
		Quality:      metricValue(emp, model.MetricQuality),
		Attendance:   metricValue(emp, model.MetricAttendance),
		Teamwork:     metricValue(emp, model.MetricTeamwork),
	}

	return types.LeaderboardEntry{
		ID:             emp.ID,
		Name:           emp.Name,
		Department:     emp.Department,
		Position:       emp.Position,
		Score:          a.blend(breakdown.Mean(), rating),
		Metrics:        &breakdown,
		FeedbackRating: rating,
		FeedbackCount:  count,
	}, nil
}

// AggregateAll computes entries for every employee in input order.
func (a *Aggregator) AggregateAll(employees []model.Employee, feedback []model.Feedback) ([]types.LeaderboardEntry, error) {
	byEmployee := make(map[string][]model.Feedback, len(employees))
	for i := range feedback {
		byEmployee[feedback[i].EmployeeID] = append(byEmployee[feedback[i].EmployeeID], feedback[i])
	}

	entries := make([]types.LeaderboardEntry, 0, len(employees))
	for i := range employees {
		entry, err := a.Aggregate(employees[i], byEmployee[employees[i].ID])
		if err != nil {
			return nil, fmt.Errorf("aggregate employee #%d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (a *Aggregator) blend(metricsScore, rating float64) float64 {
	if a.scale == ScaleNormalized {
		rating *= ratingToPercentScale
	}
	score := metricsScore*MetricsWeight + rating*FeedbackWeight
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(maxScoreValue, score))
}

// metricValue reads a metric, treating absent and non-finite values as 0.
func metricValue(emp model.Employee, name string) float64 {
	v := emp.Metric(name)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// MaxScore is the highest score reachable under a scale with in-range inputs.
func MaxScore(scale FeedbackScale) float64 {
	return NewAggregator(WithFeedbackScale(scale)).blend(maxScoreValue, maxRatingValue)
}
