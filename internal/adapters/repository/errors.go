package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for document store errors.
var (
	ErrNotFound          = errors.New("document not found")
	ErrIndexNotDefined   = errors.New("index not defined")
	ErrClosed            = errors.New("store closed")
	ErrInvalidCollection = errors.New("invalid collection")
	ErrInvalidIndex      = errors.New("invalid index definition")
	ErrInvalidID         = errors.New("invalid document id")
	ErrInvalidFilter     = errors.New("invalid filter")
)

// IndexError reports a filtered read on a field that has no declared index.
// Its message follows the realtime database rules hint format.
type IndexError struct {
	Collection string
	Field      string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("Index not defined, add \".indexOn\": %q, for path \"/%s\", to the rules", e.Field, e.Collection)
}

func (e *IndexError) Unwrap() error { return ErrIndexNotDefined }
