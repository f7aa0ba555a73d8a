// Package types contains common types used across the application.
package types

// MetricBreakdown is the per-metric part of a leaderboard entry.
type MetricBreakdown struct {
	Productivity float64 `json:"productivity"`
	Quality      float64 `json:"quality"`
	Attendance   float64 `json:"attendance"`
	Teamwork     float64 `json:"teamwork"`
}

// Mean is the unweighted mean of the four metrics.
func (m MetricBreakdown) Mean() float64 {
	return (m.Productivity + m.Quality + m.Attendance + m.Teamwork) / 4
}

// LeaderboardEntry is a derived, never persisted, projection of one employee.
// Rank is zero until the entry passes through the ranking builder.
type LeaderboardEntry struct {
	Rank           int              `json:"rank,omitempty"`
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Department     string           `json:"department,omitempty"`
	Position       string           `json:"position,omitempty"`
	Score          float64          `json:"score"`
	Metrics        *MetricBreakdown `json:"metrics,omitempty"`
	FeedbackRating float64          `json:"feedbackRating"`
	FeedbackCount  int              `json:"feedbackCount"`
}
