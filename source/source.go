// Package source provides the external variant iterator consumed by the
// annotation engine.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/varanno/model"
	"github.com/hupe1980/varanno/query"
)

// Source resolves a query into variant keys in natural order.
type Source interface {
	Variants(ctx context.Context, q query.Query) iter.Seq2[model.VariantKey, error]
}

// Memory is an in-memory Source. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	keys []model.VariantKey
}

// NewMemory creates a source holding keys. Duplicates are dropped.
func NewMemory(keys ...model.VariantKey) *Memory {
	m := &Memory{}
	m.Add(keys...)
	return m
}

// Add inserts keys, keeping natural order. The backing slice is replaced,
// never modified, so running iterations keep their snapshot.
func (m *Memory) Add(keys ...model.VariantKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged := slices.Concat(m.keys, keys)
	slices.SortFunc(merged, model.VariantKey.Compare)
	m.keys = slices.Compact(merged)
}

// Len returns the number of variants.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Variants implements Source. The sequence iterates a snapshot of the keys
// taken when iteration starts and stops with the context error if ctx is
// canceled.
func (m *Memory) Variants(ctx context.Context, q query.Query) iter.Seq2[model.VariantKey, error] {
	return func(yield func(model.VariantKey, error) bool) {
		m.mu.RLock()
		keys := m.keys
		m.mu.RUnlock()

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(model.VariantKey{}, err)
				return
			}
			if !q.Match(k) {
				continue
			}
			if !yield(k, nil) {
				return
			}
		}
	}
}

// ReadVariants parses one variant id per line. Blank lines and lines
// starting with '#' are ignored.
func ReadVariants(r io.Reader) ([]model.VariantKey, error) {
	var out []model.VariantKey
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		k, err := model.ParseVariantKey(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, k)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
