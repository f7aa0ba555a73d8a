package api

import (
	"context"
	"net/http"

	"github.com/okian/perfboard/internal/domain/model"
)

// MetricDependencies defines the interface for performance measurements.
type MetricDependencies interface {
	employeeReader
	RecordMetric(ctx context.Context, m model.PerformanceMetric) (model.PerformanceMetric, error)
	MetricsFor(ctx context.Context, employeeID string) ([]model.PerformanceMetric, error)
}

// MetricHandler handles dated performance measurements.
type MetricHandler struct {
	deps MetricDependencies
}

// NewMetricHandler creates a new measurement handler.
func NewMetricHandler(deps MetricDependencies) *MetricHandler {
	return &MetricHandler{deps: deps}
}

// HandleRecord handles POST /metrics.
func (h *MetricHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var req model.PerformanceMetric
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.deps.RecordMetric(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleList handles GET /employees/{id}/metrics.
func (h *MetricHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	emp, err := authorizeEmployee(r, h.deps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.deps.MetricsFor(r.Context(), emp.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
