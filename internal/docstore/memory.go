package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store for tests and offline runs.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]map[string]interface{})}
}

func copyFields(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *Memory) GetDoc(_ context.Context, collection, id string) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyFields(doc), nil
}

func (m *Memory) SetDoc(_ context.Context, collection, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]map[string]interface{})
		m.collections[collection] = coll
	}
	coll[id] = copyFields(fields)
	return nil
}

func (m *Memory) UpdateDoc(_ context.Context, collection, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (m *Memory) Increment(_ context.Context, collection, id, field string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	current, _ := toFloat(doc[field])
	doc[field] = int(current) + delta
	return nil
}

func (m *Memory) Query(_ context.Context, collection string, filters []Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for id, doc := range m.collections[collection] {
		if matches(doc, filters) {
			out = append(out, Document{ID: id, Fields: copyFields(doc)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matches(doc map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		v, present := doc[f.Field]
		if !present {
			return false
		}
		switch f.Op {
		case OpEqual:
			if fmt.Sprint(v) != fmt.Sprint(f.Value) {
				return false
			}
		case OpGreaterEqual, OpLessEqual:
			got, ok := toFloat(v)
			if !ok {
				return false
			}
			want, _ := toFloat(f.Value)
			if f.Op == OpGreaterEqual && got < want {
				return false
			}
			if f.Op == OpLessEqual && got > want {
				return false
			}
		}
	}
	return true
}
