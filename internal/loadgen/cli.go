package loadgen

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/perfboard/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends log output to stdout and, when logFile is set, to that
// file as well.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		return nil, err
	}
	return closer, nil
}

// ShowHelp prints usage information for the load generator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Perfboard Load Generator
========================

Creates employees and reviews through the HTTP API, then checks the served
leaderboard, single ranks and spreadsheet export against a local aggregation.

The account passed with -admin must exist on the server with the admin role,
for example through a seed file (PERFBOARD_SEED_FILE).

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -admin string
        Admin user id sent as X-User-ID (default "root")
  -employees int
        Number of employees to create (default 200)
  -feedback int
        Reviews per employee (default 5)
  -duplicates float
        Share of reviews re-sent with the same Idempotency-Key (default 0.1)
  -top int
        Number of leaderboard entries to cross-check (default 20)
  -scale string
        Feedback scale the server is configured with: raw or normalized (default "raw")
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write the generated data as a seed fixture to this YAML file
  -log string
        Also write log output to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/loadgen -employees 1000 -feedback 10 -workers 16
  go run ./cmd/loadgen -scale normalized -output run.yaml
`)
}
