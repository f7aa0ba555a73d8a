package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL             string        // Base URL of the service
	AdminUID            string        // Account sent in X-User-ID; must hold the admin role
	Employees           int           // Number of employees to create
	FeedbackPerEmployee int           // Reviews submitted per employee
	DuplicateRatio      float64       // Share of reviews re-sent with the same idempotency key
	TopN                int           // Entries fetched from the leaderboard for the report
	Workers             int           // Number of concurrent workers
	Timeout             time.Duration // HTTP request timeout
	FeedbackScale       string        // Scale the server scores with: raw or normalized
	OutputFile          string        // Optional YAML seed file with the generated data
	Verbose             bool          // Enable verbose logging
}

// Employee is a generated employee before and after creation.
type Employee struct {
	Key     string             `json:"-"`
	ID      string             `json:"id,omitempty"`
	Name    string             `json:"name"`
	Dept    string             `json:"department"`
	Metrics map[string]float64 `json:"metrics"`
}

// Review is a generated feedback submission.
type Review struct {
	Key         string `json:"-"`
	EmployeeKey string `json:"-"`
	EmployeeID  string `json:"employeeId"`
	Rating      int    `json:"rating"`
	Content     string `json:"content,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	EmployeesCreated   int
	FeedbackSubmitted  int
	FeedbackDuplicate  int
	FeedbackFailed     int
	LeaderboardEntries int
	Verified           int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
