package service

import (
	"context"
	"fmt"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/internal/query"
)

var watchable = map[string]bool{
	model.CollectionGoals:       true,
	model.CollectionFeedbacks:   true,
	model.CollectionPerformance: true,
}

// WatchEmployee subscribes to an employee's goals, feedback or performance
// metrics. fn receives the full current set after every change until the
// subscription is cancelled or ctx ends.
func (s *Service) WatchEmployee(ctx context.Context, employeeID, collection string, fn repository.ChangeFunc) (*query.Subscription, error) {
	if !watchable[collection] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
	c, err := s.deps()
	if err != nil {
		return nil, err
	}
	sub, err := c.query.Subscribe(ctx, collection, repository.Filter{Field: model.FieldEmployeeID, Value: employeeID}, fn)
	if err != nil {
		return nil, fmt.Errorf("watch %s of %s: %w", collection, employeeID, err)
	}
	return sub, nil
}
