package marker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
)

// MemoryStore is a process-local Store used by tests and the CLI dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	byOrder map[string]marker.PendingOrder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byOrder: make(map[string]marker.PendingOrder)}
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (*marker.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byOrder[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) FindByOwner(_ context.Context, ownerID string) (*marker.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.byOrder {
		if m.OwnerID == ownerID {
			found := m
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Set(_ context.Context, m *marker.PendingOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.byOrder {
		if existing.OwnerID == m.OwnerID && id != m.OrderID {
			return ErrOwnerHasMarker
		}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.byOrder[m.OrderID] = *m
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, orderID string) (bool, error) {
	_, ok := s.Take(orderID)
	return ok, nil
}

// Take removes and returns the marker atomically.
func (s *MemoryStore) Take(orderID string) (*marker.PendingOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byOrder[orderID]
	if !ok {
		return nil, false
	}
	delete(s.byOrder, orderID)
	return &m, true
}

// Restore puts back a marker removed by Take.
func (s *MemoryStore) Restore(m *marker.PendingOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOrder[m.OrderID] = *m
}

func (s *MemoryStore) List(_ context.Context) ([]*marker.PendingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*marker.PendingOrder, 0, len(s.byOrder))
	for _, m := range s.byOrder {
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
