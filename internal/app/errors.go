package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted          = errors.New("service not started")
	ErrDuplicateSubmission = errors.New("submission already in progress")
	ErrInvalidCollection   = errors.New("collection cannot be watched")
	ErrInvalidMetric       = errors.New("invalid metric value")
	ErrUnknownStoreDriver  = errors.New("unknown store driver")
	ErrUserExists          = errors.New("user already exists")
)
