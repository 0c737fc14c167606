package marker

import (
	"context"
	"errors"

	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
)

var (
	ErrNotFound       = errors.New("pending order marker not found")
	ErrOwnerHasMarker = errors.New("owner already has a pending order")
)

// Store persists pending-order markers. A marker exists exactly while a
// payment is unresolved; at most one marker per owner.
type Store interface {
	Get(ctx context.Context, orderID string) (*marker.PendingOrder, error)
	FindByOwner(ctx context.Context, ownerID string) (*marker.PendingOrder, error)
	Set(ctx context.Context, m *marker.PendingOrder) error
	// Clear deletes the marker and reports whether this call removed it.
	Clear(ctx context.Context, orderID string) (bool, error)
	List(ctx context.Context) ([]*marker.PendingOrder, error)
}
