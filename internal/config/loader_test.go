package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/perfboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

// isolate runs the test from an empty directory so no stray .env is read.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("PERFBOARD_CONFIG", "")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	convey.Convey("Given no file and no environment", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then the defaults are returned", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.FeedQueueSize, convey.ShouldEqual, 4096)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.DefaultLeaderboardLimit, convey.ShouldEqual, 10)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 1000)
			convey.So(cfg.FeedbackScale, convey.ShouldEqual, "raw")
			convey.So(cfg.StoreIndexes(), convey.ShouldBeNil)
		})
	})
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("PERFBOARD_ADDR", ":8080")
	t.Setenv("PERFBOARD_FEED_QUEUE_SIZE", "128")
	t.Setenv("PERFBOARD_FEED_WORKER_COUNT", "3")
	t.Setenv("PERFBOARD_FEEDBACK_SCALE", "normalized")
	t.Setenv("PERFBOARD_WRITE_RATE_PER_SEC", "2.5")
	t.Setenv("PERFBOARD_DISABLE_INDEXES", "true")

	convey.Convey("Given PERFBOARD_ environment variables", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then they override the defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.FeedQueueSize, convey.ShouldEqual, 128)
			convey.So(cfg.FeedWorkerCount, convey.ShouldEqual, 3)
			convey.So(cfg.FeedbackScale, convey.ShouldEqual, "normalized")
			convey.So(cfg.WriteRatePerSec, convey.ShouldEqual, 2.5)
			convey.So(cfg.StoreIndexes(), convey.ShouldNotBeNil)
			convey.So(cfg.StoreIndexes(), convey.ShouldBeEmpty)
		})
	})
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "perfboard.yaml", `
addr: ":9090"
store_driver: sqlite
sqlite_path: /tmp/perfboard-test.db
max_leaderboard_limit: 50
indexes:
  feedbacks: [employeeId]
  goals: [employeeId, status]
`)
	t.Setenv("PERFBOARD_CONFIG", path)
	t.Setenv("PERFBOARD_MAX_LEADERBOARD_LIMIT", "25")

	convey.Convey("Given a YAML file and an env override", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then the file applies and env wins", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 25)
			convey.So(cfg.StoreIndexes()["goals"], convey.ShouldResemble, []string{"employeeId", "status"})
		})
	})
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".env", "PERFBOARD_LOG_LEVEL=debug\nPERFBOARD_SEED_FILE=fixtures.yaml\n")
	t.Setenv("PERFBOARD_SEED_FILE", "explicit.yaml")
	t.Cleanup(func() { _ = os.Unsetenv("PERFBOARD_LOG_LEVEL") })

	convey.Convey("Given a .env file in the working directory", t, func() {
		cfg, err := config.Load(context.Background())

		convey.Convey("Then it fills unset variables only", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			convey.So(cfg.SeedFile, convey.ShouldEqual, "explicit.yaml")
		})
	})
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	convey.Convey("Given a missing config file", t, func() {
		t.Setenv("PERFBOARD_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := config.Load(context.Background())

		convey.Convey("Then loading fails", func() {
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "absent.yaml")
		})
	})

	convey.Convey("Given a config file that is not YAML", t, func() {
		path := writeFile(t, t.TempDir(), "broken.yaml", "addr: [unclosed")
		t.Setenv("PERFBOARD_CONFIG", path)
		_, err := config.Load(context.Background())

		convey.Convey("Then loading fails with the read error, not a validation error", func() {
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeFalse)
			convey.So(err.Error(), convey.ShouldContainSubstring, "broken.yaml")
		})
	})
}

func TestLoad_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv("PERFBOARD_STORE_DRIVER", "postgres")

	convey.Convey("Given an unsupported store driver", t, func() {
		_, err := config.Load(context.Background())

		convey.Convey("Then validation fails", func() {
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given default settings", t, func() {
		ctx := context.Background()
		convey.So(config.New(ctx).Validate(), convey.ShouldBeNil)

		cases := map[string]func(*config.Config){
			"empty addr":          func(c *config.Config) { c.Addr = " " },
			"sqlite without path": func(c *config.Config) { c.StoreDriver, c.SQLitePath = "sqlite", "" },
			"zero queue":          func(c *config.Config) { c.FeedQueueSize = 0 },
			"negative workers":    func(c *config.Config) { c.FeedWorkerCount = -1 },
			"zero dedupe":         func(c *config.Config) { c.DedupeSize = 0 },
			"default above max":   func(c *config.Config) { c.DefaultLeaderboardLimit = 5000 },
			"bad scale":           func(c *config.Config) { c.FeedbackScale = "percent" },
			"bad level":           func(c *config.Config) { c.LogLevel = "loud" },
			"bad format":          func(c *config.Config) { c.LogFormat = "xml" },
			"no burst":            func(c *config.Config) { c.WriteBurst = 0 },
			"blank index field":   func(c *config.Config) { c.Indexes = map[string][]string{"goals": {""}} },
		}
		for name, mutate := range cases {
			convey.Convey("When "+name, func() {
				cfg := config.New(ctx)
				mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("When writes are unlimited the burst is irrelevant", func() {
			cfg := config.New(ctx)
			cfg.WriteRatePerSec, cfg.WriteBurst = 0, 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
