package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a process-local Store. Records are held in insertion order
// behind an RWMutex. Search is a linear scan ranked by keyword frequency.
// Suitable for tests and single-process deployments; use the sqlite store for
// durability.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewInMemoryStore creates an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Save persists a new record with a generated id.
func (s *InMemoryStore) Save(_ context.Context, t Type, content string, tags []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{
		ID:        uuid.NewString(),
		Type:      t,
		Content:   content,
		Tags:      append([]string(nil), tags...),
		CreatedAt: time.Now().UTC(),
	}
	s.records = append(s.records, rec)
	return rec.ID, nil
}

// Search ranks stored records against the query, optionally filtered by type,
// truncated to limit (DefaultSearchLimit when <= 0).
func (s *InMemoryStore) Search(_ context.Context, query string, t Type, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	s.mu.RLock()
	candidates := s.filteredLocked(t)
	s.mu.RUnlock()

	ranked := Rank(candidates, query)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// List returns all records, optionally filtered by type, in insertion order.
func (s *InMemoryStore) List(_ context.Context, t Type) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filteredLocked(t), nil
}

// Delete removes a record by id. Deleting an absent id is a no-op.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// filteredLocked copies records matching the type filter. Caller holds a lock.
func (s *InMemoryStore) filteredLocked(t Type) []Record {
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if t != "" && rec.Type != t {
			continue
		}
		out = append(out, rec)
	}
	return out
}
