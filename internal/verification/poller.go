package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
	ordermodel "github.com/frahmantamala/moviemix/internal/core/datamodel/order"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/moviemix/internal/core/events"
	"github.com/frahmantamala/moviemix/internal/fulfillment"
	markerpkg "github.com/frahmantamala/moviemix/internal/marker"
	"github.com/frahmantamala/moviemix/internal/order"
	"github.com/frahmantamala/moviemix/pkg/logger"
	"golang.org/x/sync/singleflight"
)

type GatewayAPI interface {
	GetOrder(ctx context.Context, orderID string) (*gatewaytypes.Order, error)
}

type RecorderAPI interface {
	Record(ctx context.Context, status gatewaytypes.OrderStatus, pending *marker.PendingOrder) (*fulfillment.Result, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Outcome is what a verification run concluded for one order.
type Outcome struct {
	OrderID         string                   `json:"order_id"`
	Status          gatewaytypes.OrderStatus `json:"status"`
	Attempts        int                      `json:"attempts"`
	AlreadyResolved bool                     `json:"already_resolved"`
	FulfillmentID   int64                    `json:"fulfillment_id,omitempty"`
}

type Poller struct {
	gateway   GatewayAPI
	markers   markerpkg.Store
	orders    order.RepositoryAPI
	recorder  RecorderAPI
	events    EventPublisher
	policy    Policy
	scheduler Scheduler
	logger    *slog.Logger
	now       func() time.Time

	inflight singleflight.Group
}

type Option func(*Poller)

func WithScheduler(s Scheduler) Option {
	return func(p *Poller) { p.scheduler = s }
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

func NewPoller(
	gateway GatewayAPI,
	markers markerpkg.Store,
	orders order.RepositoryAPI,
	recorder RecorderAPI,
	publisher EventPublisher,
	policy Policy,
	logger *slog.Logger,
	opts ...Option,
) (*Poller, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid verification policy: %w", err)
	}
	p := &Poller{
		gateway:   gateway,
		markers:   markers,
		orders:    orders,
		recorder:  recorder,
		events:    publisher,
		policy:    policy,
		scheduler: TimerScheduler{},
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Verify polls the gateway until the order reaches a terminal status or the
// attempt budget runs out. Concurrent calls for one order share a single loop.
// Without a pending marker it returns the recorded status and makes no call.
func (p *Poller) Verify(ctx context.Context, orderID string) (*Outcome, error) {
	v, err, shared := p.inflight.Do(orderID, func() (interface{}, error) {
		return p.verify(ctx, orderID)
	})
	if shared {
		logger.FromOr(ctx, p.logger).Debug("joined in-flight verification", "order_id", orderID)
	}
	return copyOutcome(v), err
}

func (p *Poller) verify(ctx context.Context, orderID string) (*Outcome, error) {
	log := logger.FromOr(ctx, p.logger).With("order_id", orderID)

	pending, err := p.markers.Get(ctx, orderID)
	if errors.Is(err, markerpkg.ErrNotFound) {
		return p.recorded(ctx, orderID)
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to read pending order", err)
	}

	backoff := p.policy.NewBackoff()
	status := gatewaytypes.StatusPending
	attempts := 0

	for attempts < p.policy.MaxAttempts {
		if err := ctx.Err(); err != nil {
			log.Info("verification interrupted, marker kept for resume", "attempts", attempts)
			return &Outcome{OrderID: orderID, Status: status, Attempts: attempts}, err
		}

		// a webhook may have settled the order during the wait
		if attempts > 0 {
			open, err := p.stillPending(ctx, orderID)
			if err != nil {
				return nil, err
			}
			if !open {
				log.Info("order settled elsewhere, polling stopped", "attempts", attempts)
				return p.recorded(ctx, orderID)
			}
		}

		attempts++
		status = p.check(ctx, log, orderID, attempts)
		p.recordStatus(ctx, log, orderID, status, attempts)

		if status.IsTerminal() {
			return p.settle(ctx, pending, status, attempts)
		}

		delay, stop := backoff.Next()
		if stop {
			break
		}
		if err := p.scheduler.Wait(ctx, delay); err != nil {
			log.Info("verification interrupted, marker kept for resume", "attempts", attempts, "error", err)
			return &Outcome{OrderID: orderID, Status: status, Attempts: attempts}, err
		}
	}

	return p.expire(ctx, pending, attempts)
}

// check performs one attempt. A gateway error consumes the attempt exactly
// like a PENDING answer.
func (p *Poller) check(ctx context.Context, log *slog.Logger, orderID string, attempt int) gatewaytypes.OrderStatus {
	if p.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.policy.AttemptTimeout)
		defer cancel()
	}

	gwOrder, err := p.gateway.GetOrder(ctx, orderID)
	if err != nil {
		log.Warn("order status check failed", "attempt", attempt, "error", err)
		return gatewaytypes.StatusPending
	}
	status := gatewaytypes.MapStatus(gwOrder.RawStatus)
	log.Debug("order status checked", "attempt", attempt, "raw_status", gwOrder.RawStatus, "status", status)
	return status
}

func (p *Poller) recordStatus(ctx context.Context, log *slog.Logger, orderID string, status gatewaytypes.OrderStatus, attempts int) {
	err := p.orders.RecordStatus(ctx, orderID, string(status), attempts, p.now())
	switch {
	case errors.Is(err, order.ErrStatusSettled):
		log.Debug("order status already settled, not overwritten", "status", status)
	case err != nil:
		log.Warn("failed to record order status", "status", status, "error", err)
	}
}

func (p *Poller) stillPending(ctx context.Context, orderID string) (bool, error) {
	_, err := p.markers.Get(ctx, orderID)
	if errors.Is(err, markerpkg.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, internal.NewInternalError("failed to read pending order", err)
	}
	return true, nil
}

// Resolve applies one status observed outside the poll loop, such as a
// gateway webhook. Only PAID settles directly: a failed payment attempt does
// not close the order, so failures are confirmed against the order status
// first. Non-terminal statuses are only recorded.
func (p *Poller) Resolve(ctx context.Context, orderID, rawStatus string) (*Outcome, error) {
	status := gatewaytypes.MapStatus(rawStatus)
	v, err, _ := p.inflight.Do("resolve:"+orderID, func() (interface{}, error) {
		return p.resolve(ctx, orderID, status)
	})
	return copyOutcome(v), err
}

func (p *Poller) resolve(ctx context.Context, orderID string, status gatewaytypes.OrderStatus) (*Outcome, error) {
	log := logger.FromOr(ctx, p.logger).With("order_id", orderID, "status", status)

	pending, err := p.markers.Get(ctx, orderID)
	if errors.Is(err, markerpkg.ErrNotFound) {
		rec, err := p.loadOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		outcome := outcomeFromRecord(rec)
		if status == gatewaytypes.StatusPaid && outcome.Status != gatewaytypes.StatusPaid {
			// settled after the loop gave up; the request metadata is gone
			log.Warn("payment settled after verification closed, manual follow-up required",
				"recorded_status", outcome.Status)
			p.recordStatus(ctx, log, orderID, status, 0)
			p.publish(ctx, log, events.NewPaymentPaidEvent(orderID, rec.OwnerID, rec.Attempts))
			outcome.Status = status
		}
		return outcome, nil
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to read pending order", err)
	}

	if status.IsFailure() {
		confirmed := p.check(ctx, log, orderID, 0)
		if confirmed != status {
			log.Info("payment attempt failed, order status confirmed with gateway", "order_status", confirmed)
		}
		status = confirmed
	}

	p.recordStatus(ctx, log, orderID, status, 0)
	if !status.IsTerminal() {
		return &Outcome{OrderID: orderID, Status: status}, nil
	}
	return p.settle(ctx, pending, status, 0)
}

func (p *Poller) settle(ctx context.Context, pending *marker.PendingOrder, status gatewaytypes.OrderStatus, attempts int) (*Outcome, error) {
	log := logger.FromOr(ctx, p.logger).With("order_id", pending.OrderID, "status", status)
	outcome := &Outcome{OrderID: pending.OrderID, Status: status, Attempts: attempts}

	if status == gatewaytypes.StatusPaid {
		result, err := p.recorder.Record(ctx, status, pending)
		if err != nil {
			return outcome, err
		}
		if result.Request != nil {
			outcome.FulfillmentID = result.Request.ID
		}
		if !result.Created {
			outcome.AlreadyResolved = true
			return outcome, nil
		}
		log.Info("payment verified", "attempts", attempts)
		p.publish(ctx, log, events.NewPaymentPaidEvent(pending.OrderID, pending.OwnerID, attempts))
		p.publish(ctx, log, events.NewFulfillmentRecordedEvent(
			pending.OrderID, result.Request.ID, pending.OwnerID, pending.Title, pending.Language))
		return outcome, nil
	}

	cleared, err := p.clear(ctx, log, pending.OrderID)
	if err == nil && !cleared {
		return p.recorded(ctx, pending.OrderID)
	}
	if cleared {
		p.publish(ctx, log, events.NewPaymentFailedEvent(pending.OrderID, pending.OwnerID, string(status)))
	}
	log.Info("payment not completed", "attempts", attempts)
	return outcome, internal.NewPaymentFailedError(pending.OrderID, string(status))
}

func (p *Poller) expire(ctx context.Context, pending *marker.PendingOrder, attempts int) (*Outcome, error) {
	log := logger.FromOr(ctx, p.logger).With("order_id", pending.OrderID)

	cleared, err := p.clear(ctx, log, pending.OrderID)
	if err == nil && !cleared {
		log.Info("order settled elsewhere before the budget ran out", "attempts", attempts)
		return p.recorded(ctx, pending.OrderID)
	}
	p.recordStatus(ctx, log, pending.OrderID, gatewaytypes.StatusTimeout, attempts)
	if cleared {
		p.publish(ctx, log, events.NewVerificationTimeoutEvent(pending.OrderID, pending.OwnerID, attempts))
	}
	log.Warn("verification budget exhausted, outcome unknown", "attempts", attempts)

	outcome := &Outcome{OrderID: pending.OrderID, Status: gatewaytypes.StatusTimeout, Attempts: attempts}
	return outcome, internal.NewVerificationTimeoutError(pending.OrderID, attempts)
}

// clear reports false with a nil error when another path removed the marker first.
func (p *Poller) clear(ctx context.Context, log *slog.Logger, orderID string) (bool, error) {
	cleared, err := p.markers.Clear(ctx, orderID)
	if err != nil {
		log.Error("failed to clear pending order marker", "error", err)
		return false, err
	}
	return cleared, nil
}

func (p *Poller) recorded(ctx context.Context, orderID string) (*Outcome, error) {
	rec, err := p.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return outcomeFromRecord(rec), nil
}

func (p *Poller) loadOrder(ctx context.Context, orderID string) (*ordermodel.PaymentOrder, error) {
	rec, err := p.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to load order", err)
	}
	return rec, nil
}

func outcomeFromRecord(rec *ordermodel.PaymentOrder) *Outcome {
	return &Outcome{
		OrderID:         rec.OrderID,
		Status:          gatewaytypes.OrderStatus(rec.Status),
		Attempts:        rec.Attempts,
		AlreadyResolved: true,
	}
}

func (p *Poller) publish(ctx context.Context, log *slog.Logger, event events.Event) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, event); err != nil {
		log.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func copyOutcome(v interface{}) *Outcome {
	o, ok := v.(*Outcome)
	if !ok || o == nil {
		return nil
	}
	c := *o
	return &c
}
