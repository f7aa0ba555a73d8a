// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/domain/ranking"
	"github.com/okian/perfboard/internal/domain/types"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	UserStore
	UserDependencies
	LeaderboardDependencies
	EmployeeDependencies
	FeedbackDependencies
	GoalDependencies
	MetricDependencies
	StreamDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.LeaderboardEntry

// Server wires HTTP routes for the business API.
type Server struct {
	guard   *Guard
	limiter *WriteLimiter

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	employeeHandler    *EmployeeHandler
	userHandler        *UserHandler
	feedbackHandler    *FeedbackHandler
	goalHandler        *GoalHandler
	metricHandler      *MetricHandler
	streamHandler      *StreamHandler
}

type serverOptions struct {
	defaultLimit int
	maxLimit     int
	writeRate    float64
	writeBurst   int
}

// Option configures the Server.
type Option func(*serverOptions)

// WithLeaderboardLimits sets the limit used when a request names none and the
// number of rows in a spreadsheet export.
func WithLeaderboardLimits(defaultLimit, maxLimit int) Option {
	return func(o *serverOptions) {
		if defaultLimit >= 0 {
			o.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			o.maxLimit = maxLimit
		}
	}
}

// WithWriteRate sets the token bucket applied to write endpoints.
func WithWriteRate(perSecond float64, burst int) Option {
	return func(o *serverOptions) {
		o.writeRate = perSecond
		o.writeBurst = burst
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{
		defaultLimit: ranking.DefaultLimit,
		maxLimit:     1000,
		writeRate:    50,
		writeBurst:   100,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		guard:              NewGuard(deps),
		limiter:            NewWriteLimiter(o.writeRate, o.writeBurst),
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps, o.defaultLimit, o.maxLimit),
		rankHandler:        NewRankHandler(deps),
		employeeHandler:    NewEmployeeHandler(deps),
		userHandler:        NewUserHandler(deps),
		feedbackHandler:    NewFeedbackHandler(deps),
		goalHandler:        NewGoalHandler(deps),
		metricHandler:      NewMetricHandler(deps),
		streamHandler:      NewStreamHandler(deps),
	}
}

type access int

const (
	public access = iota
	member
	admin
)

// handle registers h behind the guard, the write limiter and metrics.
func (s *Server) handle(mux *http.ServeMux, pattern, endpoint string, level access, h http.HandlerFunc) {
	switch level {
	case member:
		h = s.guard.Require(h, "")
	case admin:
		h = s.guard.Require(h, model.RoleAdmin)
	}
	h = s.limiter.Middleware(h, endpoint)
	mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	s.handle(mux, "GET /healthz", "healthz", public, s.healthHandler.HandleHealth)
	s.handle(mux, "GET /stats", "stats", admin, s.statsHandler.HandleStats)

	s.handle(mux, "GET /leaderboard", "leaderboard", member, s.leaderboardHandler.HandleGetLeaderboard)
	s.handle(mux, "GET /leaderboard.xlsx", "leaderboard_export", admin, s.leaderboardHandler.HandleExport)
	s.handle(mux, "GET /rank/{id}", "rank", member, s.rankHandler.HandleGetRank)

	s.handle(mux, "GET /me", "me", member, s.employeeHandler.HandleMe)
	s.handle(mux, "GET /employees", "employees", admin, s.employeeHandler.HandleList)
	s.handle(mux, "POST /employees", "employees", admin, s.employeeHandler.HandleCreate)
	s.handle(mux, "GET /employees/{id}", "employee", member, s.employeeHandler.HandleGet)
	s.handle(mux, "PUT /employees/{id}", "employee", admin, s.employeeHandler.HandleUpdate)
	s.handle(mux, "DELETE /employees/{id}", "employee", admin, s.employeeHandler.HandleDelete)
	s.handle(mux, "PUT /employees/{id}/metrics", "employee_metrics", admin, s.employeeHandler.HandleUpdateMetrics)
	s.handle(mux, "GET /employees/{id}/goals", "employee_goals", member, s.goalHandler.HandleList)
	s.handle(mux, "GET /employees/{id}/feedbacks", "employee_feedbacks", member, s.feedbackHandler.HandleList)
	s.handle(mux, "GET /employees/{id}/metrics", "employee_metrics", member, s.metricHandler.HandleList)
	s.handle(mux, "GET /employees/{id}/stream", "employee_stream", member, s.streamHandler.HandleStream)

	s.handle(mux, "POST /users", "users", admin, s.userHandler.HandleCreate)
	s.handle(mux, "DELETE /users/{uid}", "user", admin, s.userHandler.HandleDelete)

	s.handle(mux, "POST /feedbacks", "feedbacks", admin, s.feedbackHandler.HandleSubmit)
	s.handle(mux, "PUT /feedbacks/{id}", "feedback", admin, s.feedbackHandler.HandleUpdate)
	s.handle(mux, "DELETE /feedbacks/{id}", "feedback", admin, s.feedbackHandler.HandleDelete)

	s.handle(mux, "POST /goals", "goals", admin, s.goalHandler.HandleCreate)
	s.handle(mux, "PUT /goals/{id}/status", "goal_status", admin, s.goalHandler.HandleUpdateStatus)
	s.handle(mux, "DELETE /goals/{id}", "goal", admin, s.goalHandler.HandleDelete)

	s.handle(mux, "POST /metrics", "metrics", admin, s.metricHandler.HandleRecord)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes a bounded request body into v.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
