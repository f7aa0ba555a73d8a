package repository

import (
	"fmt"
	"regexp"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// indexSet records which fields of which collections may be filtered on.
type indexSet map[string]map[string]struct{}

func newIndexSet(defs map[string][]string) (indexSet, error) {
	set := make(indexSet, len(defs))
	for collection, fields := range defs {
		if collection == "" {
			return nil, fmt.Errorf("%w: empty collection", ErrInvalidIndex)
		}
		for _, field := range fields {
			if !fieldNamePattern.MatchString(field) {
				return nil, fmt.Errorf("%w: field %q on %q", ErrInvalidIndex, field, collection)
			}
			if set[collection] == nil {
				set[collection] = make(map[string]struct{})
			}
			set[collection][field] = struct{}{}
		}
	}
	return set, nil
}

func (s indexSet) has(collection, field string) bool {
	_, ok := s[collection][field]
	return ok
}

// check fails with ErrInvalidFilter for a malformed filter and with an
// *IndexError when filter needs an index that is missing.
func (s indexSet) check(collection string, filter *Filter) error {
	if filter == nil {
		return nil
	}
	if err := filter.Validate(); err != nil {
		return err
	}
	if s.has(collection, filter.Field) {
		return nil
	}
	return &IndexError{Collection: collection, Field: filter.Field}
}
