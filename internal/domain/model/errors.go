package model

import "errors"

// Sentinel kinds for record errors.
var (
	ErrValidation = errors.New("record validation failed")
	ErrDecode     = errors.New("record decode failed")
)
