package export

import "errors"

// Sentinel kinds for export errors.
var (
	ErrWorkbook = errors.New("leaderboard workbook failed")
	ErrLayout   = errors.New("unexpected leaderboard sheet layout")
)
