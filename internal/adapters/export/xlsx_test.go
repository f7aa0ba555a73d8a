package export_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/okian/perfboard/internal/adapters/export"
	"github.com/okian/perfboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWriteLeaderboard(t *testing.T) {
	Convey("Given a ranked leaderboard", t, func() {
		entries := []types.LeaderboardEntry{
			{
				Rank: 1, ID: "A", Name: "Ada", Department: "R&D", Position: "Lead", Score: 61,
				Metrics:        &types.MetricBreakdown{Productivity: 80, Quality: 90, Attendance: 100, Teamwork: 70},
				FeedbackRating: 5, FeedbackCount: 1,
			},
			{Rank: 2, ID: "B", Name: "Bo", Score: 42.6, FeedbackRating: 2, FeedbackCount: 3},
		}

		Convey("When it is written as a workbook", func() {
			var buf bytes.Buffer
			err := export.WriteLeaderboard(&buf, entries)

			Convey("Then it reads back unchanged", func() {
				So(err, ShouldBeNil)
				So(buf.Len(), ShouldBeGreaterThan, 0)

				got, err := export.ReadLeaderboard(&buf)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, entries)
			})
		})

		Convey("When the leaderboard is empty", func() {
			var buf bytes.Buffer
			So(export.WriteLeaderboard(&buf, nil), ShouldBeNil)

			got, err := export.ReadLeaderboard(&buf)
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})
	})

	Convey("Given bytes that are not a workbook", t, func() {
		_, err := export.ReadLeaderboard(bytes.NewBufferString("rank,id\n1,A\n"))

		Convey("Then reading fails", func() {
			So(errors.Is(err, export.ErrWorkbook), ShouldBeTrue)
		})
	})
}
