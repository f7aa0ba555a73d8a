package loadgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/okian/perfboard/internal/adapters/export"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/domain/ranking"
	"github.com/okian/perfboard/internal/domain/scoring"
	"github.com/okian/perfboard/internal/domain/types"
	"github.com/okian/perfboard/pkg/logger"
)

// ErrMismatch reports a served value that disagrees with the local aggregation.
var ErrMismatch = errors.New("leaderboard mismatch")

// verify fetches the full leaderboard and checks every generated employee's
// score against a local aggregation, the served order, single-employee ranks
// and the spreadsheet export.
func verify(ctx context.Context, client *HTTPClient, config *Config, scale scoring.FeedbackScale, employees []Employee, reviews []Review, stats *Stats) error {
	log := logger.Default().Named("loadgen")
	log.Info(ctx, "verifying results")

	local, err := Expected(employees, reviews, scale)
	if err != nil {
		return err
	}
	want := make(map[string]types.LeaderboardEntry, len(local))
	for _, e := range local {
		want[e.ID] = e
	}

	var served []types.LeaderboardEntry
	path := "/leaderboard?details=true&limit=" + strconv.Itoa(len(employees))
	if _, err := client.do(ctx, http.MethodGet, path, nil, nil, &served); err != nil {
		return err
	}
	stats.LeaderboardEntries = len(served)

	if err := checkOrder(served); err != nil {
		return err
	}
	ours := 0
	for _, got := range served {
		exp, ok := want[got.ID]
		if !ok {
			continue
		}
		ours++
		if math.Abs(got.Score-exp.Score) > ScoreTolerance {
			return fmt.Errorf("%w: employee %s scored %.6f, expected %.6f", ErrMismatch, got.ID, got.Score, exp.Score)
		}
		if got.FeedbackCount != exp.FeedbackCount {
			return fmt.Errorf("%w: employee %s has %d reviews, expected %d", ErrMismatch, got.ID, got.FeedbackCount, exp.FeedbackCount)
		}
	}
	stats.Verified = ours

	if err := checkRanks(ctx, client, served, config.TopN); err != nil {
		return err
	}
	if err := checkExport(ctx, client, served, config.TopN); err != nil {
		return err
	}

	displayTopPerformers(ctx, log, served, config.TopN, config.Verbose)
	log.Info(ctx, "result verification completed",
		logger.Int("served", len(served)),
		logger.Int("verified", ours))
	return nil
}

// Expected aggregates the generated data the way the server should, ranked
// best first.
func Expected(employees []Employee, reviews []Review, scale scoring.FeedbackScale) ([]types.LeaderboardEntry, error) {
	emps := make([]model.Employee, 0, len(employees))
	for _, e := range employees {
		emps = append(emps, model.Employee{ID: e.ID, Name: e.Name, Department: e.Dept, Metrics: e.Metrics})
	}
	fbs := make([]model.Feedback, 0, len(reviews))
	for _, r := range reviews {
		fbs = append(fbs, model.Feedback{EmployeeID: r.EmployeeID, Rating: r.Rating})
	}
	entries, err := scoring.NewAggregator(scoring.WithFeedbackScale(scale)).AggregateAll(emps, fbs)
	if err != nil {
		return nil, err
	}
	return ranking.Build(entries, ranking.Request{Limit: len(entries), ShowDetails: true})
}

// checkOrder verifies ranks count up from 1 and scores never increase.
func checkOrder(entries []types.LeaderboardEntry) error {
	for i := range entries {
		if entries[i].Rank != i+1 {
			return fmt.Errorf("%w: entry %d carries rank %d", ErrMismatch, i, entries[i].Rank)
		}
		if i > 0 && entries[i].Score > entries[i-1].Score {
			return fmt.Errorf("%w: entry %d outscores entry %d", ErrMismatch, i, i-1)
		}
	}
	return nil
}

// checkRanks asks /rank for the first n entries.
func checkRanks(ctx context.Context, client *HTTPClient, served []types.LeaderboardEntry, n int) error {
	for _, e := range served[:min(n, len(served))] {
		var got types.LeaderboardEntry
		if _, err := client.do(ctx, http.MethodGet, "/rank/"+e.ID, nil, nil, &got); err != nil {
			return err
		}
		if got.Rank != e.Rank {
			return fmt.Errorf("%w: rank of %s is %d, leaderboard says %d", ErrMismatch, e.ID, got.Rank, e.Rank)
		}
	}
	return nil
}

// checkExport downloads the spreadsheet for the first n entries and compares
// it with the JSON view.
func checkExport(ctx context.Context, client *HTTPClient, served []types.LeaderboardEntry, n int) error {
	n = min(n, len(served))
	if n == 0 {
		return nil
	}
	data, err := client.raw(ctx, "/leaderboard.xlsx?details=true&limit="+strconv.Itoa(n))
	if err != nil {
		return err
	}
	rows, err := export.ReadLeaderboard(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if len(rows) != n {
		return fmt.Errorf("%w: export has %d rows, expected %d", ErrMismatch, len(rows), n)
	}
	for i := range rows {
		if rows[i].ID != served[i].ID || math.Abs(rows[i].Score-served[i].Score) > ScoreTolerance {
			return fmt.Errorf("%w: export row %d is %s/%.6f, expected %s/%.6f",
				ErrMismatch, i+1, rows[i].ID, rows[i].Score, served[i].ID, served[i].Score)
		}
	}
	return nil
}

// displayTopPerformers logs the head of the leaderboard.
func displayTopPerformers(ctx context.Context, log logger.Logger, served []types.LeaderboardEntry, n int, verbose bool) {
	n = min(n, len(served))
	for _, e := range served[:n] {
		log.Info(ctx, "top performer",
			logger.Int("rank", e.Rank),
			logger.String("id", e.ID),
			logger.String("name", e.Name),
			logger.Float64("score", e.Score))
	}

	if verbose && len(served) > 0 {
		var sum float64
		for _, e := range served {
			sum += e.Score
		}
		log.Info(ctx, "score statistics",
			logger.Float64("average", sum/float64(len(served))),
			logger.Float64("maximum", served[0].Score),
			logger.Float64("minimum", served[len(served)-1].Score))
	}
}
