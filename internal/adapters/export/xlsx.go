// Package export renders leaderboards as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/okian/perfboard/internal/domain/types"
)

// SheetName is the worksheet holding the leaderboard.
const SheetName = "Leaderboard"

// ContentType is the MIME type of the workbook written by WriteLeaderboard.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []any{
	"Rank", "ID", "Name", "Department", "Position", "Score",
	"Productivity", "Quality", "Attendance", "Teamwork",
	"Feedback Rating", "Feedback Count",
}

// WriteLeaderboard writes ranked entries as an XLSX workbook with one header
// row and one row per entry. Entries without a metric breakdown leave the
// metric columns empty.
func WriteLeaderboard(w io.Writer, entries []types.LeaderboardEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("%w: %v", ErrWorkbook, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWorkbook, err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("%w: %v", ErrWorkbook, err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("%w: %v", ErrWorkbook, err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWorkbook, err)
		}
		row := []any{e.Rank, e.ID, e.Name, e.Department, e.Position, e.Score}
		if e.Metrics != nil {
			row = append(row, e.Metrics.Productivity, e.Metrics.Quality, e.Metrics.Attendance, e.Metrics.Teamwork)
		} else {
			row = append(row, nil, nil, nil, nil)
		}
		row = append(row, e.FeedbackRating, e.FeedbackCount)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrWorkbook, i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("%w: %v", ErrWorkbook, err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("%w: write: %v", ErrWorkbook, err)
	}
	return nil
}

// ReadLeaderboard parses a workbook produced by WriteLeaderboard.
func ReadLeaderboard(r io.Reader) ([]types.LeaderboardEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrWorkbook, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLayout, err)
	}
	if len(rows) == 0 || len(rows[0]) != len(header) {
		return nil, fmt.Errorf("%w: missing header", ErrLayout)
	}

	out := make([]types.LeaderboardEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		e, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrLayout, i+2, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func parseRow(row []string) (types.LeaderboardEntry, error) {
	// GetRows trims trailing empty cells.
	for len(row) < len(header) {
		row = append(row, "")
	}
	var (
		e   types.LeaderboardEntry
		err error
	)
	if e.Rank, err = strconv.Atoi(row[0]); err != nil {
		return e, fmt.Errorf("rank: %w", err)
	}
	e.ID, e.Name, e.Department, e.Position = row[1], row[2], row[3], row[4]
	if e.Score, err = strconv.ParseFloat(row[5], 64); err != nil {
		return e, fmt.Errorf("score: %w", err)
	}
	if row[6] != "" {
		var m types.MetricBreakdown
		for j, dst := range []*float64{&m.Productivity, &m.Quality, &m.Attendance, &m.Teamwork} {
			if *dst, err = strconv.ParseFloat(row[6+j], 64); err != nil {
				return e, fmt.Errorf("%s: %w", header[6+j], err)
			}
		}
		e.Metrics = &m
	}
	if e.FeedbackRating, err = strconv.ParseFloat(row[10], 64); err != nil {
		return e, fmt.Errorf("feedback rating: %w", err)
	}
	if e.FeedbackCount, err = strconv.Atoi(row[11]); err != nil {
		return e, fmt.Errorf("feedback count: %w", err)
	}
	return e, nil
}
