package fulfillment

import (
	"context"
	"errors"

	"github.com/frahmantamala/moviemix/internal/core/datamodel/fulfillment"
)

// ErrOrderNotPaid signals a caller bug: only PAID orders may be fulfilled.
var ErrOrderNotPaid = errors.New("fulfillment requires a PAID order")

// RepositoryAPI couples the marker claim with the insert. ClaimAndCreate
// deletes the pending marker for req.OrderID and inserts req in the same
// unit of work; it returns false with no write when the marker is already gone.
type RepositoryAPI interface {
	ClaimAndCreate(ctx context.Context, req *fulfillment.FulfillmentRequest) (bool, error)
	GetByOrderID(ctx context.Context, orderID string) (*fulfillment.FulfillmentRequest, error)
}
