package loadgen_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/perfboard/internal/adapters/http/api"
	service "github.com/okian/perfboard/internal/app"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/domain/scoring"
	"github.com/okian/perfboard/internal/loadgen"
	"github.com/okian/perfboard/internal/seed"
	"github.com/okian/perfboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

func TestGenerate(t *testing.T) {
	Convey("Given a generated data set", t, func() {
		employees := loadgen.GenerateEmployees(50)
		reviews := loadgen.GenerateReviews(employees, 4)

		Convey("Then every employee has a unique key and in-range metrics", func() {
			So(len(employees), ShouldEqual, 50)
			keys := map[string]bool{}
			for _, e := range employees {
				So(keys[e.Key], ShouldBeFalse)
				keys[e.Key] = true
				So(e.Name, ShouldNotBeBlank)
				So(len(e.Metrics), ShouldEqual, 4)
				for _, v := range e.Metrics {
					So(v, ShouldBeBetweenOrEqual, 0, 100)
				}
			}
		})

		Convey("Then reviews reference generated employees with ratings 0 to 5", func() {
			So(len(reviews), ShouldEqual, 200)
			keys := map[string]bool{}
			for _, e := range employees {
				keys[e.Key] = true
			}
			for _, r := range reviews {
				So(keys[r.EmployeeKey], ShouldBeTrue)
				So(r.Rating, ShouldBeBetweenOrEqual, 0, 5)
				So(r.Key, ShouldNotBeBlank)
			}
		})
	})
}

func TestExpected(t *testing.T) {
	Convey("Given two known employees", t, func() {
		employees := []loadgen.Employee{
			{ID: "B", Name: "Bob", Metrics: map[string]float64{
				model.MetricProductivity: 60, model.MetricQuality: 60, model.MetricAttendance: 60, model.MetricTeamwork: 60,
			}},
			{ID: "A", Name: "Alice", Metrics: map[string]float64{
				model.MetricProductivity: 80, model.MetricQuality: 90, model.MetricAttendance: 100, model.MetricTeamwork: 70,
			}},
		}
		reviews := []loadgen.Review{{EmployeeID: "A", Rating: 5}, {EmployeeID: "B", Rating: 2}}

		Convey("When aggregating on the raw scale", func() {
			entries, err := loadgen.Expected(employees, reviews, scoring.ScaleRaw)

			Convey("Then Alice leads with 61.0 and Bob follows with 42.6", func() {
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].ID, ShouldEqual, "A")
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[0].Score, ShouldAlmostEqual, 61.0, 1e-9)
				So(entries[1].Score, ShouldAlmostEqual, 42.6, 1e-9)
			})
		})
	})
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	svc := service.New(service.WithWorkerCount(2))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)
	if _, err := svc.CreateUser(ctx, model.User{UID: "root", Role: model.RoleAdmin, DisplayName: "Root"}); err != nil {
		t.Fatalf("admin: %v", err)
	}

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a live server with an admin account", t, func() {
		srv := newServer(t)
		out := filepath.Join(t.TempDir(), "run.yaml")
		cfg := &loadgen.Config{
			BaseURL:             srv.URL,
			AdminUID:            "root",
			Employees:           20,
			FeedbackPerEmployee: 3,
			DuplicateRatio:      0.25,
			TopN:                5,
			Workers:             4,
			Timeout:             5 * time.Second,
			FeedbackScale:       "raw",
			OutputFile:          out,
		}

		Convey("When running a load pass", func() {
			stats, err := loadgen.Run(context.Background(), cfg)

			Convey("Then every employee verifies against the local aggregation", func() {
				So(err, ShouldBeNil)
				So(stats.EmployeesCreated, ShouldEqual, 20)
				So(stats.FeedbackSubmitted, ShouldEqual, 60)
				So(stats.FeedbackDuplicate, ShouldEqual, 15)
				So(stats.FeedbackFailed, ShouldEqual, 0)
				So(stats.LeaderboardEntries, ShouldEqual, 20)
				So(stats.Verified, ShouldEqual, 20)
			})

			Convey("And the saved fixture can be parsed back", func() {
				So(err, ShouldBeNil)
				fx, err := seed.LoadFile(out)
				So(err, ShouldBeNil)
				So(len(fx.Employees), ShouldEqual, 20)
				So(len(fx.Feedback), ShouldEqual, 60)
			})
		})

		Convey("When the admin account is unknown", func() {
			cfg.AdminUID = "nobody"
			_, err := loadgen.Run(context.Background(), cfg)

			Convey("Then the run fails on the first write", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When there is nothing to generate", func() {
			cfg.Employees = 0
			_, err := loadgen.Run(context.Background(), cfg)

			Convey("Then it should refuse to start", func() {
				So(errors.Is(err, loadgen.ErrNoEmployees), ShouldBeTrue)
			})
		})

		Convey("When the server uses a scale the run does not know", func() {
			cfg.Employees = 2
			cfg.FeedbackPerEmployee = 1
			cfg.FeedbackScale = "percent"
			_, err := loadgen.Run(context.Background(), cfg)

			Convey("Then verification rejects it", func() {
				So(errors.Is(err, scoring.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}
