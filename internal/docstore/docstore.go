// Package docstore is the remote document database: user profiles and
// hazard reports, addressed by collection and document id.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when the addressed document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Op is a filter comparison.
type Op string

const (
	OpEqual        Op = "=="
	OpGreaterEqual Op = ">="
	OpLessEqual    Op = "<="
)

// Filter restricts a Query to documents whose field compares to Value.
// Range operators compare numerically.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Document is one query result.
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// Store is implemented by every document backend.
type Store interface {
	GetDoc(ctx context.Context, collection, id string) (map[string]interface{}, error)
	// SetDoc creates or replaces the whole document.
	SetDoc(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// UpdateDoc merges fields into an existing document.
	UpdateDoc(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Increment(ctx context.Context, collection, id, field string, delta int) error
	Query(ctx context.Context, collection string, filters []Filter) ([]Document, error)
}

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if f.Field == "" {
			return errors.New("filter field is empty")
		}
		switch f.Op {
		case OpEqual:
		case OpGreaterEqual, OpLessEqual:
			if _, ok := toFloat(f.Value); !ok {
				return fmt.Errorf("filter %s %s needs a numeric value, got %T", f.Field, f.Op, f.Value)
			}
		default:
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
