package order

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/moviemix/internal/core/datamodel/order"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
)

// ErrStatusSettled is returned when a status write would overwrite a settled order.
var ErrStatusSettled = errors.New("order status already settled")

// RepositoryAPI persists payment orders. Status is only ever written with the
// last status observed from the gateway, and never over a settled status.
type RepositoryAPI interface {
	Create(ctx context.Context, o *order.PaymentOrder) error
	GetByOrderID(ctx context.Context, orderID string) (*order.PaymentOrder, error)
	RecordStatus(ctx context.Context, orderID, status string, attempts int, checkedAt time.Time) error
}

// LockedStatuses lists the recorded statuses a write of next must leave alone.
// A local TIMEOUT stays open to a late PAID from the gateway.
func LockedStatuses(next string) []string {
	locked := []string{
		string(gatewaytypes.StatusPaid),
		string(gatewaytypes.StatusFailed),
		string(gatewaytypes.StatusCancelled),
		string(gatewaytypes.StatusExpired),
	}
	if next != string(gatewaytypes.StatusPaid) {
		locked = append(locked, string(gatewaytypes.StatusTimeout))
	}
	return locked
}

// CanRecord reports whether current may be replaced by next.
func CanRecord(current, next string) bool {
	for _, s := range LockedStatuses(next) {
		if current == s {
			return false
		}
	}
	return true
}
