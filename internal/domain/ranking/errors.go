package ranking

import "errors"

var (
	// ErrInvalidLimit is returned for a negative leaderboard limit.
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	// ErrInvalidVariant is returned for an unknown presentation variant.
	ErrInvalidVariant = errors.New("invalid leaderboard variant")
)
