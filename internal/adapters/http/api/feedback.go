package api

import (
	"context"
	"net/http"

	"github.com/okian/perfboard/internal/domain/model"
)

// IdempotencyHeader names the client-chosen key that makes a feedback
// submission safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// FeedbackDependencies defines the interface for feedback operations.
type FeedbackDependencies interface {
	employeeReader
	SubmitFeedback(ctx context.Context, fb model.Feedback, key string) (model.Feedback, bool, error)
	FeedbackFor(ctx context.Context, employeeID string) ([]model.Feedback, error)
	UpdateFeedback(ctx context.Context, id string, fb model.Feedback) (model.Feedback, error)
	DeleteFeedback(ctx context.Context, id string) error
}

// FeedbackHandler handles reviews.
type FeedbackHandler struct {
	deps FeedbackDependencies
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(deps FeedbackDependencies) *FeedbackHandler {
	return &FeedbackHandler{deps: deps}
}

type submitResponse struct {
	Feedback  model.Feedback `json:"feedback"`
	Duplicate bool           `json:"duplicate"`
}

// HandleSubmit handles POST /feedbacks. A repeated Idempotency-Key answers
// 200 with the first submission instead of 201.
func (h *FeedbackHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req model.Feedback
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if u, ok := UserFromContext(r.Context()); ok && req.ReviewerID == "" {
		req.ReviewerID = u.UID
		if req.ReviewerName == "" {
			req.ReviewerName = u.DisplayName
		}
	}

	fb, duplicate, err := h.deps.SubmitFeedback(r.Context(), req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, submitResponse{Feedback: fb, Duplicate: duplicate})
}

// HandleList handles GET /employees/{id}/feedbacks.
func (h *FeedbackHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	emp, err := authorizeEmployee(r, h.deps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.deps.FeedbackFor(r.Context(), emp.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleUpdate handles PUT /feedbacks/{id}.
func (h *FeedbackHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req model.Feedback
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fb, err := h.deps.UpdateFeedback(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

// HandleDelete handles DELETE /feedbacks/{id}.
func (h *FeedbackHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteFeedback(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
