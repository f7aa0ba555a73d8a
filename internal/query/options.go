package query

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/perfboard/pkg/logger"
)

// Option applies a configuration option to the ResilientQuery.
type Option func(*ResilientQuery)

// WithLogger sets the logger used for fallback notices.
func WithLogger(l logger.Logger) Option {
	return func(q *ResilientQuery) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(q *ResilientQuery) {
		if t != nil {
			q.tracer = t
		}
	}
}
