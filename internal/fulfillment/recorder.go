package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/core/datamodel/fulfillment"
	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
	"github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/moviemix/pkg/logger"
)

type Recorder struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewRecorder(repo RepositoryAPI, logger *slog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

// Result reports the stored request; Created is false when another caller
// already consumed the marker for this order.
type Result struct {
	Request *fulfillment.FulfillmentRequest
	Created bool
}

func (r *Recorder) Record(ctx context.Context, status paymentgateway.OrderStatus, pending *marker.PendingOrder) (*Result, error) {
	if status != paymentgateway.StatusPaid {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotPaid, pending.OrderID, status)
	}

	log := logger.FromOr(ctx, r.logger).With("order_id", pending.OrderID)

	req := &fulfillment.FulfillmentRequest{
		OrderID:       pending.OrderID,
		Mobile:        pending.Mobile,
		Title:         pending.Title,
		Language:      pending.Language,
		OwnerID:       pending.OwnerID,
		Status:        fulfillment.StatusPending,
		PaymentStatus: fulfillment.PaymentStatusSuccess,
	}

	created, err := r.repo.ClaimAndCreate(ctx, req)
	if err != nil {
		// money has moved; the marker stays so the next verify retries
		log.Error("failed to record fulfillment request for paid order", "error", err)
		return nil, internal.NewFulfillmentWriteError(pending.OrderID, err)
	}

	if !created {
		log.Info("fulfillment already recorded by another caller")
		existing, err := r.repo.GetByOrderID(ctx, pending.OrderID)
		if err != nil {
			log.Warn("could not load existing fulfillment request", "error", err)
			return &Result{Created: false}, nil
		}
		return &Result{Request: existing, Created: false}, nil
	}

	log.Info("fulfillment request recorded", "request_id", req.ID, "title", req.Title)
	return &Result{Request: req, Created: true}, nil
}
