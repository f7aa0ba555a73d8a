package config

import "errors"

var (
	// ErrLoadConfig wraps failures to read a settings source: the .env file,
	// the YAML file named by PERFBOARD_CONFIG, or the PERFBOARD_ variables.
	// The message names the source that failed.
	ErrLoadConfig = errors.New("perfboard settings could not be read")

	// ErrInvalidConfig wraps a setting that was read but cannot start the
	// server, such as an unknown store driver or a leaderboard default above
	// its cap.
	ErrInvalidConfig = errors.New("perfboard settings are invalid")
)
