package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/perfboard/internal/adapters/http/api"
	"github.com/okian/perfboard/internal/config"
	"github.com/okian/perfboard/internal/domain/types"
	"github.com/okian/perfboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const fixture = `
users:
  - uid: root
    displayName: Root
    role: admin
employees:
  - key: alice
    name: Alice
    metrics: {productivity: 80, quality: 90, attendance: 100, teamwork: 70}
  - key: bob
    name: Bob
    metrics: {productivity: 60, quality: 60, attendance: 60, teamwork: 60}
feedback:
  - {employee: alice, rating: 5}
  - {employee: bob, rating: 2}
`

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

func TestNewService(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When building the service", func() {
			svc, err := newService(cfg, logger.Get())

			convey.Convey("Then it should carry the configured settings", func() {
				convey.So(err, convey.ShouldBeNil)
				stats := svc.GetStats()
				convey.So(stats["storeDriver"], convey.ShouldEqual, cfg.StoreDriver)
				convey.So(stats["queueSize"], convey.ShouldEqual, cfg.FeedQueueSize)
				convey.So(stats["feedbackScale"], convey.ShouldEqual, "raw")
			})
		})

		convey.Convey("When the feedback scale is unknown", func() {
			cfg.FeedbackScale = "percent"
			_, err := newService(cfg, logger.Get())

			convey.Convey("Then building should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestServerWiring(t *testing.T) {
	convey.Convey("Given a started service seeded from a fixture file", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		svc, err := newService(cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		path := filepath.Join(t.TempDir(), "seed.yaml")
		convey.So(os.WriteFile(path, []byte(fixture), 0o600), convey.ShouldBeNil)
		convey.So(applySeed(ctx, svc, path), convey.ShouldBeNil)

		mux := newMux(ctx, cfg, svc)
		get := func(path, uid string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			if uid != "" {
				req.Header.Set(api.UserHeader, uid)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		convey.Convey("Then public routes answer without identity", func() {
			convey.So(get("/healthz", "").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs", "").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml", "").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the leaderboard needs an identity", func() {
			convey.So(get("/leaderboard", "").Code, convey.ShouldEqual, http.StatusUnauthorized)
		})

		convey.Convey("Then the seeded admin sees the seeded ranking", func() {
			w := get("/leaderboard", "root")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var entries []types.LeaderboardEntry
			convey.So(json.Unmarshal(w.Body.Bytes(), &entries), convey.ShouldBeNil)
			convey.So(len(entries), convey.ShouldEqual, 2)
			convey.So(entries[0].Name, convey.ShouldEqual, "Alice")
			convey.So(entries[0].Score, convey.ShouldAlmostEqual, 61.0, 1e-9)
		})

		convey.Convey("Then a missing seed file is reported", func() {
			convey.So(applySeed(ctx, svc, filepath.Join(t.TempDir(), "missing.yaml")), convey.ShouldNotBeNil)
		})

		convey.Convey("Then the metrics updaters run against it", func() {
			convey.So(func() {
				updateSystemMetrics()
				updateServiceMetrics(svc)
			}, convey.ShouldNotPanic)
		})
	})
}

func TestMetricsUpdatersStop(t *testing.T) {
	convey.Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		convey.Convey("Then the updaters return immediately", func() {
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, nil)
				close(done)
			}()
			<-done
		})
	})
}
