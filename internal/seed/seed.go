// Package seed loads YAML fixtures into a running service.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/pkg/logger"
)

// Sentinel kinds for fixture errors.
var (
	ErrParse     = errors.New("seed fixture parse failed")
	ErrReference = errors.New("seed fixture references unknown employee")
)

// Target is the subset of the service a fixture is applied to.
type Target interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	CreateEmployee(ctx context.Context, emp model.Employee) (model.Employee, error)
	SubmitFeedback(ctx context.Context, fb model.Feedback, key string) (model.Feedback, bool, error)
	CreateGoal(ctx context.Context, g model.Goal) (model.Goal, error)
}

// Fixture is the on-disk layout. Feedback and goals refer to employees by
// their fixture key, since store ids are assigned on insert.
type Fixture struct {
	Users     []User     `yaml:"users"`
	Employees []Employee `yaml:"employees"`
	Feedback  []Feedback `yaml:"feedback"`
	Goals     []Goal     `yaml:"goals"`
}

// User is a fixture account.
type User struct {
	UID         string `yaml:"uid"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"displayName"`
	Role        string `yaml:"role"`
}

// Employee is a fixture employee.
type Employee struct {
	Key        string             `yaml:"key"`
	Name       string             `yaml:"name"`
	Email      string             `yaml:"email"`
	Department string             `yaml:"department"`
	Position   string             `yaml:"position"`
	UserID     string             `yaml:"userId"`
	Metrics    map[string]float64 `yaml:"metrics"`
}

// Feedback is a fixture review.
type Feedback struct {
	Employee     string `yaml:"employee"`
	ReviewerName string `yaml:"reviewerName"`
	Content      string `yaml:"content"`
	Rating       int    `yaml:"rating"`
	Category     string `yaml:"category"`
}

// Goal is a fixture goal.
type Goal struct {
	Employee    string    `yaml:"employee"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	TargetDate  time.Time `yaml:"targetDate"`
	Status      string    `yaml:"status"`
}

// Result maps fixture keys to the ids the store assigned.
type Result struct {
	Users     int
	Employees map[string]string
	Feedback  int
	Goals     int
}

// Parse decodes a fixture.
func Parse(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	seen := make(map[string]bool, len(fx.Employees))
	for i, e := range fx.Employees {
		if e.Key == "" {
			return nil, fmt.Errorf("%w: employee #%d has no key", ErrParse, i)
		}
		if seen[e.Key] {
			return nil, fmt.Errorf("%w: duplicate employee key %q", ErrParse, e.Key)
		}
		seen[e.Key] = true
	}
	return &fx, nil
}

// LoadFile reads and parses the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer f.Close()
	return Parse(f)
}

// Apply inserts users, then employees, then their feedback and goals. It
// stops at the first failure; records inserted before it are kept.
func Apply(ctx context.Context, t Target, fx *Fixture) (Result, error) {
	res := Result{Employees: make(map[string]string, len(fx.Employees))}

	for _, u := range fx.Users {
		if _, err := t.CreateUser(ctx, model.User(u)); err != nil {
			return res, fmt.Errorf("seed user %s: %w", u.UID, err)
		}
		res.Users++
	}

	for _, e := range fx.Employees {
		emp, err := t.CreateEmployee(ctx, model.Employee{
			Name:       e.Name,
			Email:      e.Email,
			Department: e.Department,
			Position:   e.Position,
			UserID:     e.UserID,
			Metrics:    e.Metrics,
		})
		if err != nil {
			return res, fmt.Errorf("seed employee %s: %w", e.Key, err)
		}
		res.Employees[e.Key] = emp.ID
	}

	for i, f := range fx.Feedback {
		id, ok := res.Employees[f.Employee]
		if !ok {
			return res, fmt.Errorf("%w: feedback #%d -> %q", ErrReference, i, f.Employee)
		}
		fb := model.Feedback{
			EmployeeID:   id,
			ReviewerName: f.ReviewerName,
			Content:      f.Content,
			Rating:       f.Rating,
			Category:     f.Category,
		}
		if _, _, err := t.SubmitFeedback(ctx, fb, ""); err != nil {
			return res, fmt.Errorf("seed feedback #%d: %w", i, err)
		}
		res.Feedback++
	}

	for i, g := range fx.Goals {
		id, ok := res.Employees[g.Employee]
		if !ok {
			return res, fmt.Errorf("%w: goal #%d -> %q", ErrReference, i, g.Employee)
		}
		goal := model.Goal{
			EmployeeID:  id,
			Title:       g.Title,
			Description: g.Description,
			TargetDate:  g.TargetDate,
			Status:      g.Status,
		}
		if _, err := t.CreateGoal(ctx, goal); err != nil {
			return res, fmt.Errorf("seed goal #%d: %w", i, err)
		}
		res.Goals++
	}

	logger.Default().Named("seed").Info(ctx, "fixture applied",
		logger.Int("users", res.Users),
		logger.Int("employees", len(res.Employees)),
		logger.Int("feedback", res.Feedback),
		logger.Int("goals", res.Goals),
	)
	return res, nil
}
