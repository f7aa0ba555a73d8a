// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Collections of the document store.
const (
	CollectionUsers       = "users"
	CollectionEmployees   = "employees"
	CollectionFeedbacks   = "feedbacks"
	CollectionGoals       = "goals"
	CollectionPerformance = "performanceMetrics"
)

// Indexed fields used by equality queries.
const (
	FieldEmployeeID = "employeeId"
	FieldUserID     = "userId"
)

// Scored metric names inside Employee.Metrics.
const (
	MetricProductivity = "productivity"
	MetricQuality      = "quality"
	MetricAttendance   = "attendance"
	MetricTeamwork     = "teamwork"
)

// Roles understood by the route guard.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Goal statuses.
const (
	GoalPending    = "pending"
	GoalInProgress = "in-progress"
	GoalCompleted  = "completed"
	GoalOverdue    = "overdue"
)

// User is an authenticated account and its role.
type User struct {
	UID         string `json:"uid" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role" validate:"required,oneof=admin employee"`
}

func (u *User) setID(id string) { u.UID = id }

func (u *User) normalize() {
	u.Role = NormalizeRole(u.Role)
	u.Email = strings.TrimSpace(u.Email)
}

// Employee is one employee's identity and latest metric snapshot.
type Employee struct {
	ID          string             `json:"id"`
	Name        string             `json:"name" validate:"required"`
	Email       string             `json:"email,omitempty" validate:"omitempty,email"`
	Department  string             `json:"department,omitempty"`
	Position    string             `json:"position,omitempty"`
	UserID      string             `json:"userId,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty" validate:"omitempty,dive,gte=0,lte=100"`
	PhoneNumber string             `json:"phoneNumber,omitempty"`
	Address     string             `json:"address,omitempty"`
	Bio         string             `json:"bio,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (e *Employee) setID(id string) { e.ID = id }

func (e *Employee) normalize() {
	e.Name = strings.TrimSpace(e.Name)
	e.Email = strings.TrimSpace(e.Email)
}

// Metric returns the named metric or 0 when it is absent.
func (e *Employee) Metric(name string) float64 {
	if e.Metrics == nil {
		return 0
	}
	return e.Metrics[name]
}

// Feedback is one review of an employee. Rating 0 means not applicable.
type Feedback struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employeeId" validate:"required"`
	ReviewerID   string    `json:"reviewerId,omitempty"`
	ReviewerName string    `json:"reviewerName,omitempty"`
	Content      string    `json:"content,omitempty"`
	Rating       int       `json:"rating" validate:"gte=0,lte=5"`
	Category     string    `json:"category,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (f *Feedback) setID(id string) { f.ID = id }

func (f *Feedback) normalize() {
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
}

// Goal is a tracked objective for an employee.
type Goal struct {
	ID          string    `json:"id"`
	EmployeeID  string    `json:"employeeId" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description,omitempty"`
	TargetDate  time.Time `json:"targetDate"`
	Status      string    `json:"status" validate:"required,oneof=pending in-progress completed overdue"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (g *Goal) setID(id string) { g.ID = id }

func (g *Goal) normalize() {
	g.Title = strings.TrimSpace(g.Title)
	g.Status = strings.ToLower(strings.TrimSpace(g.Status))
	if g.Status == "" {
		g.Status = GoalPending
	}
}

// PerformanceMetric is a dated measurement recorded for an employee.
type PerformanceMetric struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId" validate:"required"`
	Metric     string    `json:"metric" validate:"required"`
	Value      float64   `json:"value"`
	Date       time.Time `json:"date"`
}

func (m *PerformanceMetric) setID(id string) { m.ID = id }

func (m *PerformanceMetric) normalize() {
	m.Metric = strings.TrimSpace(m.Metric)
}

// NormalizeRole lowercases and trims a role name.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
