package query

import "errors"

// ErrTransientStore wraps every store failure other than a missing index.
// Callers may retry; the query itself never does.
var ErrTransientStore = errors.New("transient store failure")
