package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/pkg/logger"
	"github.com/okian/perfboard/pkg/metrics"
)

// CreateEmployee stores a new employee under a generated id.
func (s *Service) CreateEmployee(ctx context.Context, emp model.Employee) (model.Employee, error) {
	c, err := s.deps()
	if err != nil {
		return model.Employee{}, err
	}
	if err := validateMetrics(emp.Metrics); err != nil {
		return model.Employee{}, err
	}
	now := time.Now().UTC()
	emp.CreatedAt, emp.UpdatedAt = now, now

	doc, err := encodeEmployee(emp)
	if err != nil {
		return model.Employee{}, err
	}
	id, err := c.store.Push(ctx, model.CollectionEmployees, doc)
	if err != nil {
		return model.Employee{}, storeErr("create employee", err)
	}
	emp.ID = id
	metrics.UpdateEmployeesTotal(c.store.Count(ctx, model.CollectionEmployees))
	s.logger.Info(ctx, "employee created", logger.String("id", id), logger.String("department", emp.Department))
	return emp, nil
}

// GetEmployee returns one employee.
func (s *Service) GetEmployee(ctx context.Context, id string) (model.Employee, error) {
	c, err := s.deps()
	if err != nil {
		return model.Employee{}, err
	}
	doc, err := c.store.Get(ctx, model.CollectionEmployees, id)
	if err != nil {
		return model.Employee{}, storeErr("get employee", err)
	}
	return decodeEmployee(doc.ID, doc.Data)
}

// ListEmployees returns every valid employee in insertion order.
func (s *Service) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	c, err := s.deps()
	if err != nil {
		return nil, err
	}
	docs, err := c.store.Fetch(ctx, model.CollectionEmployees, nil)
	if err != nil {
		return nil, storeErr("list employees", err)
	}
	return decodeDocs(ctx, s.logger, model.CollectionEmployees, docs, decodeEmployee), nil
}

// UpdateEmployee replaces an employee's profile. CreatedAt is preserved.
func (s *Service) UpdateEmployee(ctx context.Context, id string, emp model.Employee) (model.Employee, error) {
	unlock := s.records.lock(employeeKey(id))
	defer unlock()

	current, err := s.GetEmployee(ctx, id)
	if err != nil {
		return model.Employee{}, err
	}
	c, err := s.deps()
	if err != nil {
		return model.Employee{}, err
	}
	if err := validateMetrics(emp.Metrics); err != nil {
		return model.Employee{}, err
	}
	emp.ID = id
	emp.CreatedAt = current.CreatedAt
	emp.UpdatedAt = time.Now().UTC()
	if emp.Metrics == nil {
		emp.Metrics = current.Metrics
	}

	doc, err := encodeEmployee(emp)
	if err != nil {
		return model.Employee{}, err
	}
	if err := c.store.Set(ctx, model.CollectionEmployees, id, doc); err != nil {
		return model.Employee{}, storeErr("update employee", err)
	}
	return emp, nil
}

// UpdateMetrics merges named metric values into an employee's snapshot.
// Concurrent merges into the same employee are applied one after another.
func (s *Service) UpdateMetrics(ctx context.Context, id string, values map[string]float64) (model.Employee, error) {
	if len(values) == 0 {
		return model.Employee{}, fmt.Errorf("%w: no metrics given", ErrInvalidMetric)
	}
	if err := validateMetrics(values); err != nil {
		return model.Employee{}, err
	}
	c, err := s.deps()
	if err != nil {
		return model.Employee{}, err
	}

	unlock := s.records.lock(employeeKey(id))
	defer unlock()

	emp, err := s.GetEmployee(ctx, id)
	if err != nil {
		return model.Employee{}, err
	}
	merged := make(map[string]float64, len(emp.Metrics)+len(values))
	for k, v := range emp.Metrics {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	emp.Metrics = merged
	emp.UpdatedAt = time.Now().UTC()

	patch := map[string]any{
		"metrics":   toAnyMap(merged),
		"updatedAt": emp.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := c.store.Update(ctx, model.CollectionEmployees, id, patch); err != nil {
		return model.Employee{}, storeErr("update metrics", err)
	}
	return emp, nil
}

// DeleteEmployee removes an employee and the login account linked to it.
// Their goals and feedback are kept.
func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	c, err := s.deps()
	if err != nil {
		return err
	}

	unlock := s.records.lock(employeeKey(id))
	defer unlock()

	doc, err := c.store.Get(ctx, model.CollectionEmployees, id)
	if err != nil {
		return storeErr("delete employee", err)
	}
	if err := c.store.Delete(ctx, model.CollectionEmployees, id); err != nil {
		return storeErr("delete employee", err)
	}
	metrics.UpdateEmployeesTotal(c.store.Count(ctx, model.CollectionEmployees))
	s.logger.Info(ctx, "employee deleted", logger.String("id", id))

	if uid, _ := doc.Data[model.FieldUserID].(string); uid != "" {
		if err := s.DeleteUser(ctx, uid); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("delete account of employee %s: %w", id, err)
		}
	}
	return nil
}

// EmployeeByUserID resolves the employee linked to a user account. It works
// whether or not the store has an index on userId.
func (s *Service) EmployeeByUserID(ctx context.Context, userID string) (model.Employee, error) {
	c, err := s.deps()
	if err != nil {
		return model.Employee{}, err
	}
	docs, err := c.query.Fetch(ctx, model.CollectionEmployees, repository.Filter{Field: model.FieldUserID, Value: userID})
	if err != nil {
		return model.Employee{}, fmt.Errorf("employee by user %s: %w", userID, err)
	}
	employees := decodeDocs(ctx, s.logger, model.CollectionEmployees, docs, decodeEmployee)
	if len(employees) == 0 {
		return model.Employee{}, fmt.Errorf("employee by user %s: %w", userID, repository.ErrNotFound)
	}
	return employees[0], nil
}

func validateMetrics(values map[string]float64) error {
	for name, v := range values {
		if name == "" || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
			return fmt.Errorf("%w: %q=%v (want 0-100)", ErrInvalidMetric, name, v)
		}
	}
	return nil
}

func toAnyMap(in map[string]float64) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
