package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/perfboard/internal/adapters/export"
	"github.com/okian/perfboard/internal/domain/ranking"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, req ranking.Request) ([]Entry, error)
	Rank(ctx context.Context, employeeID string) (Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps         LeaderboardDependencies
	defaultLimit int
	maxLimit     int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, defaultLimit, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:         deps,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N&details=bool&variant=name.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleExport handles GET /leaderboard.xlsx with the full detailed ranking.
func (h *LeaderboardHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Leaderboard(r.Context(), ranking.Request{
		Limit:       h.maxLimit,
		ShowDetails: true,
		Variant:     ranking.VariantDetailed,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteLeaderboard(&buf, entries); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (h *LeaderboardHandler) parseRequest(r *http.Request) (ranking.Request, error) {
	q := r.URL.Query()
	req := ranking.Request{
		Limit:   h.defaultLimit,
		Variant: ranking.Variant(strings.TrimSpace(q.Get("variant"))),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return req, fmt.Errorf("%w: limit %q is not a number", ErrBadRequest, s)
		}
		req.Limit = n
	}
	if s := q.Get("details"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return req, fmt.Errorf("%w: details %q is not a boolean", ErrBadRequest, s)
		}
		req.ShowDetails = b
	}
	return req, nil
}
