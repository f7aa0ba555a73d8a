package seed_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	service "github.com/okian/perfboard/internal/app"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/domain/ranking"
	"github.com/okian/perfboard/internal/seed"
	. "github.com/smartystreets/goconvey/convey"
)

const fixture = `
users:
  - uid: root
    email: root@example.com
    role: Admin
  - uid: ada-uid
    role: employee
employees:
  - key: ada
    name: Ada
    userId: ada-uid
    department: R&D
    metrics: {productivity: 80, quality: 90, attendance: 100, teamwork: 70}
  - key: bo
    name: Bo
    metrics: {productivity: 60, quality: 60, attendance: 60, teamwork: 60}
feedback:
  - {employee: ada, rating: 5, content: great}
  - {employee: bo, rating: 2}
goals:
  - employee: ada
    title: Ship the dashboard
    targetDate: 2026-12-01T00:00:00Z
`

func TestParse(t *testing.T) {
	Convey("Given a fixture document", t, func() {
		fx, err := seed.Parse(strings.NewReader(fixture))

		Convey("Then every section is decoded", func() {
			So(err, ShouldBeNil)
			So(len(fx.Users), ShouldEqual, 2)
			So(len(fx.Employees), ShouldEqual, 2)
			So(fx.Employees[0].Metrics["teamwork"], ShouldEqual, 70)
			So(fx.Goals[0].TargetDate.Year(), ShouldEqual, 2026)
		})
	})

	Convey("Given malformed fixtures", t, func() {
		cases := map[string]string{
			"unknown field":  "employees:\n  - key: a\n    nmae: typo\n",
			"missing key":    "employees:\n  - name: Keyless\n",
			"duplicate key":  "employees:\n  - {key: a, name: A}\n  - {key: a, name: B}\n",
			"not a document": "employees: [",
		}
		for name, doc := range cases {
			Convey("When the fixture has "+name, func() {
				_, err := seed.Parse(strings.NewReader(doc))
				So(errors.Is(err, seed.ErrParse), ShouldBeTrue)
			})
		}
	})

	Convey("Given an empty document", t, func() {
		fx, err := seed.Parse(strings.NewReader(""))
		So(err, ShouldBeNil)
		So(fx.Employees, ShouldBeEmpty)
	})
}

func TestApply(t *testing.T) {
	Convey("Given a running service and a fixture file", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		path := filepath.Join(t.TempDir(), "seed.yaml")
		So(os.WriteFile(path, []byte(fixture), 0o600), ShouldBeNil)
		fx, err := seed.LoadFile(path)
		So(err, ShouldBeNil)

		Convey("When the fixture is applied", func() {
			res, err := seed.Apply(ctx, svc, fx)

			Convey("Then the records exist and rank as expected", func() {
				So(err, ShouldBeNil)
				So(res.Users, ShouldEqual, 2)
				So(res.Feedback, ShouldEqual, 2)
				So(res.Goals, ShouldEqual, 1)

				u, err := svc.GetUser(ctx, "root")
				So(err, ShouldBeNil)
				So(u.Role, ShouldEqual, model.RoleAdmin)

				top, err := svc.Leaderboard(ctx, ranking.Request{Limit: 1})
				So(err, ShouldBeNil)
				So(top[0].ID, ShouldEqual, res.Employees["ada"])
				So(top[0].Score, ShouldAlmostEqual, 61.0, 1e-9)

				goals, err := svc.GoalsFor(ctx, res.Employees["ada"])
				So(err, ShouldBeNil)
				So(len(goals), ShouldEqual, 1)
			})
		})

		Convey("When feedback names an unknown employee", func() {
			bad := &seed.Fixture{Feedback: []seed.Feedback{{Employee: "ghost", Rating: 3}}}
			_, err := seed.Apply(ctx, svc, bad)
			So(errors.Is(err, seed.ErrReference), ShouldBeTrue)
		})

		Convey("When the file is missing", func() {
			_, err := seed.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
			So(errors.Is(err, seed.ErrParse), ShouldBeTrue)
		})
	})
}
