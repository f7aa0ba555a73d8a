package api

import (
	"errors"
	"net/http"

	service "github.com/okian/perfboard/internal/app"
	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/domain/ranking"
	"github.com/okian/perfboard/internal/query"
	"github.com/okian/perfboard/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("too many write requests")
	ErrStreaming       = errors.New("streaming unsupported")
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps an error to its HTTP status and machine-readable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrDuplicateSubmission):
		return http.StatusConflict, "duplicate_submission"
	case errors.Is(err, service.ErrUserExists):
		return http.StatusConflict, "user_exists"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrValidation),
		errors.Is(err, ranking.ErrInvalidLimit),
		errors.Is(err, ranking.ErrInvalidVariant),
		errors.Is(err, service.ErrInvalidMetric),
		errors.Is(err, service.ErrInvalidCollection),
		errors.Is(err, repository.ErrInvalidID),
		errors.Is(err, repository.ErrInvalidFilter):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, query.ErrTransientStore):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError answers with the status classify picks for err. Server-side
// failures are logged since the client only sees a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Default().Named("api").Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
		msg = http.StatusText(status)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
