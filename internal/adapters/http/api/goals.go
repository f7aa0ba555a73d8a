package api

import (
	"context"
	"net/http"

	"github.com/okian/perfboard/internal/domain/model"
)

// GoalDependencies defines the interface for goal operations.
type GoalDependencies interface {
	employeeReader
	CreateGoal(ctx context.Context, g model.Goal) (model.Goal, error)
	GoalsFor(ctx context.Context, employeeID string) ([]model.Goal, error)
	UpdateGoalStatus(ctx context.Context, id, status string) (model.Goal, error)
	DeleteGoal(ctx context.Context, id string) error
}

// GoalHandler handles goals.
type GoalHandler struct {
	deps GoalDependencies
}

// NewGoalHandler creates a new goal handler.
func NewGoalHandler(deps GoalDependencies) *GoalHandler {
	return &GoalHandler{deps: deps}
}

// HandleCreate handles POST /goals.
func (h *GoalHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.Goal
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := h.deps.CreateGoal(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// HandleList handles GET /employees/{id}/goals.
func (h *GoalHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	emp, err := authorizeEmployee(r, h.deps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goals, err := h.deps.GoalsFor(r.Context(), emp.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleUpdateStatus handles PUT /goals/{id}/status.
func (h *GoalHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := h.deps.UpdateGoalStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// HandleDelete handles DELETE /goals/{id}.
func (h *GoalHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
