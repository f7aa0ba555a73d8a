package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/perfboard/internal/domain/model"
)

type employeeReader interface {
	GetEmployee(ctx context.Context, id string) (model.Employee, error)
}

// EmployeeDependencies defines the interface for employee operations.
type EmployeeDependencies interface {
	employeeReader
	CreateEmployee(ctx context.Context, emp model.Employee) (model.Employee, error)
	ListEmployees(ctx context.Context) ([]model.Employee, error)
	UpdateEmployee(ctx context.Context, id string, emp model.Employee) (model.Employee, error)
	UpdateMetrics(ctx context.Context, id string, values map[string]float64) (model.Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
	EmployeeByUserID(ctx context.Context, userID string) (model.Employee, error)
}

// authorizeEmployee loads the employee named by the {id} path value and
// checks that the caller may read its records.
func authorizeEmployee(r *http.Request, deps employeeReader) (model.Employee, error) {
	emp, err := deps.GetEmployee(r.Context(), r.PathValue("id"))
	if err != nil {
		return model.Employee{}, err
	}
	if err := canRead(r.Context(), emp); err != nil {
		return model.Employee{}, err
	}
	return emp, nil
}

// EmployeeHandler handles employee records.
type EmployeeHandler struct {
	deps EmployeeDependencies
}

// NewEmployeeHandler creates a new employee handler.
func NewEmployeeHandler(deps EmployeeDependencies) *EmployeeHandler {
	return &EmployeeHandler{deps: deps}
}

// HandleMe handles GET /me: the employee linked to the caller.
func (h *EmployeeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, r, ErrUnauthenticated)
		return
	}
	emp, err := h.deps.EmployeeByUserID(r.Context(), u.UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// HandleList handles GET /employees.
func (h *EmployeeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.ListEmployees(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleCreate handles POST /employees.
func (h *EmployeeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.Employee
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	emp, err := h.deps.CreateEmployee(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/employees/"+emp.ID)
	writeJSON(w, http.StatusCreated, emp)
}

// HandleGet handles GET /employees/{id}.
func (h *EmployeeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	emp, err := authorizeEmployee(r, h.deps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// HandleUpdate handles PUT /employees/{id}.
func (h *EmployeeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req model.Employee
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	emp, err := h.deps.UpdateEmployee(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

type metricsRequest struct {
	Metrics map[string]float64 `json:"metrics"`
}

// HandleUpdateMetrics handles PUT /employees/{id}/metrics.
func (h *EmployeeHandler) HandleUpdateMetrics(w http.ResponseWriter, r *http.Request) {
	var req metricsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Metrics) == 0 {
		writeError(w, r, fmt.Errorf("%w: metrics object is empty", ErrBadRequest))
		return
	}
	emp, err := h.deps.UpdateMetrics(r.Context(), r.PathValue("id"), req.Metrics)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// HandleDelete handles DELETE /employees/{id}.
func (h *EmployeeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteEmployee(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
