package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ScoringEmployee reads the fields scoring needs from a stored employee
// without validating the rest. Sub-fields of the wrong type are left at their
// zero value, so a record with no name or an odd metric still ranks. Only a
// document with no body or no id is refused.
func ScoringEmployee(id string, data map[string]any) (Employee, error) {
	if id == "" || data == nil {
		return Employee{}, fmt.Errorf("%w: employee document %q is empty", ErrDecode, id)
	}
	emp := Employee{
		ID:         id,
		Name:       strings.TrimSpace(stringField(data, "name")),
		Department: stringField(data, "department"),
		Position:   stringField(data, "position"),
		UserID:     stringField(data, FieldUserID),
	}
	switch raw := data["metrics"].(type) {
	case map[string]any:
		emp.Metrics = make(map[string]float64, len(raw))
		for name, v := range raw {
			if f, ok := number(v); ok {
				emp.Metrics[name] = f
			}
		}
	case map[string]float64:
		emp.Metrics = make(map[string]float64, len(raw))
		for name, v := range raw {
			emp.Metrics[name] = v
		}
	}
	return emp, nil
}

// ScoringFeedback reads the employee reference and rating of a stored review.
// A non-numeric rating counts as 0. A review that names no employee cannot be
// attributed and is refused.
func ScoringFeedback(id string, data map[string]any) (Feedback, error) {
	fb := Feedback{ID: id, EmployeeID: stringField(data, FieldEmployeeID)}
	if fb.EmployeeID == "" {
		return Feedback{}, fmt.Errorf("%w: feedback %q has no employee", ErrDecode, id)
	}
	if f, ok := number(data["rating"]); ok {
		fb.Rating = int(f)
	}
	return fb, nil
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
