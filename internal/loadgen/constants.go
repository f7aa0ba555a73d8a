package loadgen

import "time"

// Runner configuration constants.
const (
	SettleDelay          = 500 * time.Millisecond
	ScoreTolerance       = 1e-6
	PercentageMultiplier = 100
	maxRetries           = 5
	retryBackoff         = 200 * time.Millisecond
)
