package scoring

import "errors"

// ErrInvalidInput marks a programming error such as an employee without an id.
// Callers should fix the input rather than handle it.
var ErrInvalidInput = errors.New("invalid scoring input")
