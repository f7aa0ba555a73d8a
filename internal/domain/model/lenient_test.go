package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/okian/perfboard/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestScoringEmployee(t *testing.T) {
	convey.Convey("Given stored employees that would fail strict validation", t, func() {
		convey.Convey("When the name is missing", func() {
			emp, err := model.ScoringEmployee("E1", map[string]any{
				"department": "Ops",
				"metrics":    map[string]any{"productivity": 90.0, "quality": 90, "attendance": json.Number("90"), "teamwork": 90.0},
			})

			convey.Convey("Then identity and metrics are still read", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(emp.ID, convey.ShouldEqual, "E1")
				convey.So(emp.Name, convey.ShouldBeEmpty)
				convey.So(emp.Department, convey.ShouldEqual, "Ops")
				convey.So(emp.Metric(model.MetricAttendance), convey.ShouldEqual, 90)
				convey.So(emp.Metric(model.MetricQuality), convey.ShouldEqual, 90)
			})
		})

		convey.Convey("When a metric is out of range or not a number", func() {
			emp, err := model.ScoringEmployee("E2", map[string]any{
				"name":    "Bo",
				"metrics": map[string]any{"quality": 120.0, "productivity": "80"},
			})

			convey.Convey("Then numbers are kept as stored and the rest read as zero", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(emp.Metric(model.MetricQuality), convey.ShouldEqual, 120)
				convey.So(emp.Metric(model.MetricProductivity), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the metrics field is not a map", func() {
			emp, err := model.ScoringEmployee("E3", map[string]any{"name": 7, "metrics": "high"})

			convey.Convey("Then the employee has no name and no metrics", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(emp.Name, convey.ShouldBeEmpty)
				convey.So(emp.Metrics, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the document has no body", func() {
			_, err := model.ScoringEmployee("E4", nil)

			convey.Convey("Then it is refused", func() {
				convey.So(errors.Is(err, model.ErrDecode), convey.ShouldBeTrue)
			})
		})
	})
}

func TestScoringFeedback(t *testing.T) {
	convey.Convey("Given stored feedback", t, func() {
		convey.Convey("When the rating is stored as a string", func() {
			fb, err := model.ScoringFeedback("F1", map[string]any{"employeeId": "E1", "rating": "5"})

			convey.Convey("Then it counts as a zero rating", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(fb.EmployeeID, convey.ShouldEqual, "E1")
				convey.So(fb.Rating, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the rating is numeric", func() {
			fb, err := model.ScoringFeedback("F2", map[string]any{"employeeId": "E1", "rating": 4.0})

			convey.Convey("Then it is kept", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(fb.Rating, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When no employee is named", func() {
			_, err := model.ScoringFeedback("F3", map[string]any{"rating": 4.0})

			convey.Convey("Then it is refused", func() {
				convey.So(errors.Is(err, model.ErrDecode), convey.ShouldBeTrue)
			})
		})
	})
}
