package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/checkout"
	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
	ordermodel "github.com/frahmantamala/moviemix/internal/core/datamodel/order"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	markerpkg "github.com/frahmantamala/moviemix/internal/marker"
	"github.com/frahmantamala/moviemix/pkg/logger"
	"github.com/google/uuid"
)

type GatewayAPI interface {
	CreateOrder(ctx context.Context, req *gatewaytypes.CreateOrderRequest) (*gatewaytypes.Order, error)
}

type CheckoutAPI interface {
	Launch(ctx context.Context, order *gatewaytypes.Order) (*checkout.Instruction, error)
}

type ServiceConfig struct {
	ReturnURL string
	NotifyURL string
}

type Service struct {
	gateway  GatewayAPI
	repo     RepositoryAPI
	markers  markerpkg.Store
	checkout CheckoutAPI
	config   ServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(gateway GatewayAPI, repo RepositoryAPI, markers markerpkg.Store, trigger CheckoutAPI, config ServiceConfig, logger *slog.Logger) *Service {
	return &Service{
		gateway:  gateway,
		repo:     repo,
		markers:  markers,
		checkout: trigger,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateOrder opens a gateway order for the owner, persists it with its
// pending marker and returns how to launch checkout. An owner with an
// unresolved payment is refused so the client resumes it instead.
func (s *Service) CreateOrder(ctx context.Context, owner string, dto *CreateOrderDTO) (*CreateOrderResponse, error) {
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	log := logger.FromOr(ctx, s.logger).With("owner", owner)

	existing, err := s.markers.FindByOwner(ctx, owner)
	switch {
	case err == nil:
		log.Info("refusing new order, payment already pending", "order_id", existing.OrderID)
		return nil, internal.NewPendingPaymentError(existing.OrderID)
	case !errors.Is(err, markerpkg.ErrNotFound):
		return nil, internal.NewInternalError("failed to read pending order", err)
	}

	correlationID := s.newCorrelationID()
	returnURL := dto.ReturnURL
	if returnURL == "" {
		returnURL = s.config.ReturnURL
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, &gatewaytypes.CreateOrderRequest{
		CorrelationID: correlationID,
		Amount:        dto.Amount,
		Currency:      gatewaytypes.CurrencyINR,
		Customer: gatewaytypes.Customer{
			ID:    customerID(owner),
			Phone: dto.CustomerPhone,
			Email: dto.CustomerEmail,
		},
		ReturnURL: returnURL,
		NotifyURL: s.config.NotifyURL,
		Tags:      map[string]string{"correlation_id": correlationID},
	})
	if err != nil {
		log.Error("gateway order creation failed", "correlation_id", correlationID, "error", err)
		return nil, err
	}

	log = log.With("order_id", gwOrder.ID, "correlation_id", correlationID)

	record := &ordermodel.PaymentOrder{
		OrderID:       gwOrder.ID,
		GatewayRef:    gwOrder.GatewayRef,
		CorrelationID: correlationID,
		Amount:        dto.Amount,
		Currency:      gatewaytypes.CurrencyINR,
		CustomerPhone: dto.CustomerPhone,
		CustomerEmail: dto.CustomerEmail,
		OwnerID:       owner,
		Status:        string(gatewaytypes.StatusCreated),
		SessionHandle: gwOrder.SessionHandle,
	}
	if gwOrder.HostedCheckoutURL != "" {
		hosted := gwOrder.HostedCheckoutURL
		record.CheckoutURL = &hosted
	}
	if err := s.repo.Create(ctx, record); err != nil {
		log.Error("failed to persist order", "error", err)
		return nil, internal.NewInternalError("failed to persist order", err)
	}

	pending := &marker.PendingOrder{
		OrderID:  gwOrder.ID,
		Mobile:   dto.CustomerPhone,
		Email:    dto.CustomerEmail,
		Title:    dto.Title,
		Language: dto.Language,
		OwnerID:  owner,
	}
	if err := s.markers.Set(ctx, pending); err != nil {
		if errors.Is(err, markerpkg.ErrOwnerHasMarker) {
			log.Warn("concurrent order for owner, new order left unpaid")
			if other, findErr := s.markers.FindByOwner(ctx, owner); findErr == nil {
				return nil, internal.NewPendingPaymentError(other.OrderID)
			}
			return nil, internal.NewPendingPaymentError(gwOrder.ID)
		}
		log.Error("failed to store pending marker", "error", err)
		return nil, internal.NewInternalError("failed to store pending order", err)
	}

	instruction, err := s.checkout.Launch(ctx, gwOrder)
	if err != nil {
		// nothing can be paid without a checkout, so nothing is left to verify
		if _, clearErr := s.markers.Clear(ctx, gwOrder.ID); clearErr != nil {
			log.Error("failed to clear marker after checkout failure", "error", clearErr)
		}
		return nil, err
	}

	log.Info("order created", "amount", dto.Amount.StringFixed(2), "checkout_mode", instruction.Mode)

	return &CreateOrderResponse{
		OrderID:       gwOrder.ID,
		CorrelationID: correlationID,
		Amount:        dto.Amount,
		Currency:      gatewaytypes.CurrencyINR,
		Status:        record.Status,
		Checkout:      instruction,
	}, nil
}

// GetOrder returns the owner's order; other owners' orders read as missing.
func (s *Service) GetOrder(ctx context.Context, owner, orderID string) (*ordermodel.PaymentOrder, error) {
	rec, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != owner {
		logger.FromOr(ctx, s.logger).Warn("order requested by another owner", "order_id", orderID)
		return nil, internal.ErrOrderNotFound
	}
	return rec, nil
}

// GetPending returns the owner's unresolved payment, if any.
func (s *Service) GetPending(ctx context.Context, owner string) (*marker.PendingOrder, error) {
	pending, err := s.markers.FindByOwner(ctx, owner)
	if errors.Is(err, markerpkg.ErrNotFound) {
		return nil, internal.NewNotFoundError("no pending payment", internal.ErrCodeOrderNotFound)
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to read pending order", err)
	}
	return pending, nil
}

func (s *Service) newCorrelationID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("req_%d_%s", s.now().UnixMilli(), suffix)
}

// customerID is stable per owner and carries no personal data.
func customerID(owner string) string {
	return "cust_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(owner)).String()
}
