package model

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // validator caches struct metadata

// Record is the set of persisted document types.
type Record interface {
	User | Employee | Feedback | Goal | PerformanceMetric
}

type recordPtr[T Record] interface {
	*T
	setID(id string)
	normalize()
}

// Decode converts a raw store document into a typed record, applying the
// store-assigned id, defaults and validation.
func Decode[T Record, PT recordPtr[T]](id string, data map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(data)
	if err != nil {
		return out, fmt.Errorf("%w: encode document %s: %v", ErrDecode, id, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: decode document %s: %v", ErrDecode, id, err)
	}
	p := PT(&out)
	p.setID(id)
	p.normalize()
	if err := Validate(&out); err != nil {
		return out, fmt.Errorf("document %s: %w", id, err)
	}
	return out, nil
}

// Encode converts a record into a store document. The id is carried by the
// store key, so it is not duplicated inside the document body.
func Encode[T Record, PT recordPtr[T]](rec T) (map[string]any, error) {
	PT(&rec).normalize()
	if err := Validate(&rec); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	delete(doc, "id")
	return doc, nil
}

// Validate runs struct validation on a record.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
