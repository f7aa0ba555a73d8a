package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/query"
	"github.com/okian/perfboard/pkg/logger"
	"github.com/okian/perfboard/pkg/metrics"
)

// decodeDocs converts documents into records. Documents that fail validation
// are logged and skipped so that one bad record cannot hide the rest.
func decodeDocs[T any](ctx context.Context, log logger.Logger, collection string, docs []repository.Document, decode func(string, map[string]any) (T, error)) []T {
	out := make([]T, 0, len(docs))
	for i := range docs {
		rec, err := decode(docs[i].ID, docs[i].Data)
		if err != nil {
			metrics.RecordErrorByComponent("service", "invalid_record")
			log.Warn(ctx, "skipping invalid record",
				logger.String("collection", collection),
				logger.String("id", docs[i].ID),
				logger.Error(err),
			)
			continue
		}
		out = append(out, rec)
	}
	return out
}

// storeErr marks failures other than a missing record as transient.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, model.ErrValidation) || errors.Is(err, query.ErrTransientStore) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, query.ErrTransientStore, err)
}

var (
	decodeEmployee = model.Decode[model.Employee, *model.Employee]
	decodeFeedback = model.Decode[model.Feedback, *model.Feedback]
	decodeGoal     = model.Decode[model.Goal, *model.Goal]
	decodeMetric   = model.Decode[model.PerformanceMetric, *model.PerformanceMetric]
	decodeUser     = model.Decode[model.User, *model.User]

	encodeEmployee = model.Encode[model.Employee, *model.Employee]
	encodeFeedback = model.Encode[model.Feedback, *model.Feedback]
	encodeGoal     = model.Encode[model.Goal, *model.Goal]
	encodeMetric   = model.Encode[model.PerformanceMetric, *model.PerformanceMetric]
	encodeUser     = model.Encode[model.User, *model.User]
)
