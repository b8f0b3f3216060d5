package store

import (
	"context"
	"sort"
	"sync"

	"github.com/praetorian-inc/securelink/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu     sync.RWMutex
	pubs   []*types.Publication
	nextID int64
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// AddPublication stores a copy of p.
func (m *MemoryStore) AddPublication(_ context.Context, p *types.Publication) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.nextID
	m.nextID++

	stored := *p
	m.pubs = append(m.pubs, &stored)
	return nil
}

// GetPublications returns copies of the matching publications, newest first.
func (m *MemoryStore) GetPublications(_ context.Context, f Filter) ([]*types.Publication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Publication
	for _, p := range m.pubs {
		if !f.match(p) {
			continue
		}
		c := *p
		out = append(out, &c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// CountPublications returns the number of stored publications.
func (m *MemoryStore) CountPublications(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pubs), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
