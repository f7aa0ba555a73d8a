package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
)

// CreateGoal stores a goal for an existing employee. Status defaults to pending.
func (s *Service) CreateGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	c, err := s.deps()
	if err != nil {
		return model.Goal{}, err
	}
	if _, err := s.GetEmployee(ctx, g.EmployeeID); err != nil {
		return model.Goal{}, err
	}
	now := time.Now().UTC()
	g.ID = ""
	g.CreatedAt, g.UpdatedAt = now, now

	doc, err := encodeGoal(g)
	if err != nil {
		return model.Goal{}, err
	}
	id, err := c.store.Push(ctx, model.CollectionGoals, doc)
	if err != nil {
		return model.Goal{}, storeErr("create goal", err)
	}
	g.ID = id
	if g.Status == "" {
		g.Status = model.GoalPending
	}
	return g, nil
}

// GoalsFor returns an employee's goals ordered by target date.
func (s *Service) GoalsFor(ctx context.Context, employeeID string) ([]model.Goal, error) {
	c, err := s.deps()
	if err != nil {
		return nil, err
	}
	docs, err := c.query.Fetch(ctx, model.CollectionGoals, repository.Filter{Field: model.FieldEmployeeID, Value: employeeID})
	if err != nil {
		return nil, fmt.Errorf("goals for %s: %w", employeeID, err)
	}
	out := decodeDocs(ctx, s.logger, model.CollectionGoals, docs, decodeGoal)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TargetDate.Before(out[j].TargetDate) })
	return out, nil
}

// UpdateGoalStatus moves a goal to another status.
func (s *Service) UpdateGoalStatus(ctx context.Context, id, status string) (model.Goal, error) {
	c, err := s.deps()
	if err != nil {
		return model.Goal{}, err
	}
	doc, err := c.store.Get(ctx, model.CollectionGoals, id)
	if err != nil {
		return model.Goal{}, storeErr("get goal", err)
	}
	g, err := decodeGoal(doc.ID, doc.Data)
	if err != nil {
		return model.Goal{}, err
	}
	g.Status = status
	g.UpdatedAt = time.Now().UTC()

	// Encode validates the new status before anything is written.
	body, err := encodeGoal(g)
	if err != nil {
		return model.Goal{}, err
	}
	patch := map[string]any{"status": body["status"], "updatedAt": body["updatedAt"]}
	if err := c.store.Update(ctx, model.CollectionGoals, id, patch); err != nil {
		return model.Goal{}, storeErr("update goal", err)
	}
	g.Status = body["status"].(string)
	return g, nil
}

// DeleteGoal removes a goal.
func (s *Service) DeleteGoal(ctx context.Context, id string) error {
	c, err := s.deps()
	if err != nil {
		return err
	}
	return storeErr("delete goal", c.store.Delete(ctx, model.CollectionGoals, id))
}
