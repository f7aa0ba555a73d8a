package loadgen

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/perfboard/internal/domain/model"
)

const randomFloatDivisor = 1000000

// performer tiers as [min, width] of a metric percentage.
var tiers = [][2]float64{
	{40, 30}, // average, most common
	{40, 30},
	{70, 20}, // high
	{10, 30}, // low
	{90, 10}, // elite
	{0, 100}, // anywhere
}

var departments = []string{"Engineering", "Sales", "Support", "Finance", "People"}

var metricNames = []string{
	model.MetricProductivity,
	model.MetricQuality,
	model.MetricAttendance,
	model.MetricTeamwork,
}

// getRandomFloat returns a random float64 in [0, 1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// GenerateEmployees creates n employees with metrics drawn from one tier each.
func GenerateEmployees(n int) []Employee {
	out := make([]Employee, n)
	for i := range out {
		tier := tiers[randomInt(len(tiers))]
		metrics := make(map[string]float64, len(metricNames))
		for _, name := range metricNames {
			metrics[name] = roundTo(tier[0]+getRandomFloat()*tier[1], 2)
		}
		key := uuid.NewString()
		out[i] = Employee{
			Key:     key,
			Name:    fmt.Sprintf("Load %04d", i),
			Dept:    departments[randomInt(len(departments))],
			Metrics: metrics,
		}
	}
	return out
}

// GenerateReviews creates perEmployee reviews for each employee. Ratings are
// 0..5, where 0 means not applicable.
func GenerateReviews(employees []Employee, perEmployee int) []Review {
	out := make([]Review, 0, len(employees)*perEmployee)
	for _, e := range employees {
		for j := 0; j < perEmployee; j++ {
			out = append(out, Review{
				Key:         uuid.NewString(),
				EmployeeKey: e.Key,
				Rating:      randomInt(6),
				Content:     fmt.Sprintf("generated review %d", j+1),
			})
		}
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
