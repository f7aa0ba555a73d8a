package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/perfboard/internal/loadgen"
)

// Default configuration constants.
const (
	defaultEmployees  = 200
	defaultFeedback   = 5
	defaultDuplicates = 0.1
	defaultTopN       = 20
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		admin      = flag.String("admin", "root", "Admin user id sent as X-User-ID")
		employees  = flag.Int("employees", defaultEmployees, "Number of employees to create")
		feedback   = flag.Int("feedback", defaultFeedback, "Reviews per employee")
		duplicates = flag.Float64("duplicates", defaultDuplicates, "Share of reviews re-sent with the same Idempotency-Key")
		topN       = flag.Int("top", defaultTopN, "Number of leaderboard entries to cross-check")
		scale      = flag.String("scale", "raw", "Feedback scale the server is configured with")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write the generated data as a seed fixture")
		logFile    = flag.String("log", "", "Also write log output to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return 0
	}

	closer, err := loadgen.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	config := &loadgen.Config{
		BaseURL:             *baseURL,
		AdminUID:            *admin,
		Employees:           *employees,
		FeedbackPerEmployee: *feedback,
		DuplicateRatio:      *duplicates,
		TopN:                *topN,
		Workers:             *workers,
		Timeout:             *timeout,
		FeedbackScale:       *scale,
		OutputFile:          *outputFile,
		Verbose:             *verbose,
	}

	if _, err := loadgen.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
