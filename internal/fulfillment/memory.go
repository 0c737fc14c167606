package fulfillment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/frahmantamala/moviemix/internal/core/datamodel/fulfillment"
	markerpkg "github.com/frahmantamala/moviemix/internal/marker"
)

var ErrRequestNotFound = errors.New("fulfillment request not found")

// MemoryRepository pairs with a marker.MemoryStore for tests and dry runs.
type MemoryRepository struct {
	markers *markerpkg.MemoryStore

	mu       sync.Mutex
	requests map[string]fulfillment.FulfillmentRequest
	nextID   int64

	// FailWrites makes every insert fail after the claim, which then rolls back.
	FailWrites error
}

func NewMemoryRepository(markers *markerpkg.MemoryStore) *MemoryRepository {
	return &MemoryRepository{
		markers:  markers,
		requests: make(map[string]fulfillment.FulfillmentRequest),
	}
}

func (r *MemoryRepository) ClaimAndCreate(_ context.Context, req *fulfillment.FulfillmentRequest) (bool, error) {
	claimed, ok := r.markers.Take(req.OrderID)
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites != nil {
		r.markers.Restore(claimed)
		return false, r.FailWrites
	}
	if _, exists := r.requests[req.OrderID]; exists {
		return false, nil
	}

	r.nextID++
	now := time.Now()
	req.ID = r.nextID
	req.CreatedAt = now
	req.UpdatedAt = now
	r.requests[req.OrderID] = *req
	return true, nil
}

func (r *MemoryRepository) GetByOrderID(_ context.Context, orderID string) (*fulfillment.FulfillmentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[orderID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &req, nil
}

func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}
