package api

import (
	"context"
	"net/http"

	"github.com/okian/perfboard/internal/domain/model"
)

// UserDependencies defines the interface for account provisioning.
type UserDependencies interface {
	RegisterUser(ctx context.Context, u model.User) (model.User, error)
	DeleteUser(ctx context.Context, uid string) error
}

// UserHandler provisions login accounts.
type UserHandler struct {
	deps UserDependencies
}

// NewUserHandler creates a new user handler.
func NewUserHandler(deps UserDependencies) *UserHandler {
	return &UserHandler{deps: deps}
}

// HandleCreate handles POST /users. A missing uid is generated; an existing
// one answers 409.
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.User
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.deps.RegisterUser(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/users/"+u.UID)
	writeJSON(w, http.StatusCreated, u)
}

// HandleDelete handles DELETE /users/{uid}.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteUser(r.Context(), r.PathValue("uid")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
