package metastore

import (
	"context"
	"sync"

	"github.com/hupe1980/varanno/model"
)

// Memory is an in-memory Store.
type Memory struct {
	mu      sync.Mutex
	records map[string]model.ProjectMetadata
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]model.ProjectMetadata)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, project string) (model.ProjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return model.ProjectMetadata{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := m.records[project]
	if !ok {
		return Empty(project), nil
	}
	return md.Clone(), nil
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, project string, fn UpdateFunc) (model.ProjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return model.ProjectMetadata{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.records[project]
	if !ok {
		cur = Empty(project)
	}
	next, err := Apply(cur, fn)
	if err != nil {
		return cur.Clone(), err
	}
	m.records[project] = next
	return next.Clone(), nil
}
