package order

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
	ordermodel "github.com/frahmantamala/moviemix/internal/core/datamodel/order"
	"github.com/frahmantamala/moviemix/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateOrder(ctx context.Context, owner string, dto *CreateOrderDTO) (*CreateOrderResponse, error)
	GetOrder(ctx context.Context, owner, orderID string) (*ordermodel.PaymentOrder, error)
	GetPending(ctx context.Context, owner string) (*marker.PendingOrder, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     service,
	}
}

// CreateOrder handles POST /api/v1/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	owner := internal.OwnerFromContext(r.Context())
	if owner == "" {
		h.Logger.Error("CreateOrder: owner not found in context")
		h.HandleError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	var dto CreateOrderDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.Logger.Error("CreateOrder: invalid request body", "error", appErr)
		h.HandleError(w, appErr)
		return
	}

	resp, err := h.Service.CreateOrder(r.Context(), owner, &dto)
	if err != nil {
		h.Logger.Error("CreateOrder: service error", "error", err, "owner", owner)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateOrder: order created successfully",
		"order_id", resp.OrderID,
		"owner", owner,
		"checkout_mode", resp.Checkout.Mode)

	h.WriteJSON(w, http.StatusCreated, resp)
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	owner := internal.OwnerFromContext(r.Context())
	if owner == "" {
		h.HandleError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	orderID := chi.URLParam(r, "id")
	rec, err := h.Service.GetOrder(r.Context(), owner, orderID)
	if err != nil {
		h.Logger.Error("GetOrder: service error", "error", err, "order_id", orderID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NewOrderView(rec))
}

// GetPending handles GET /api/v1/orders/pending
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	owner := internal.OwnerFromContext(r.Context())
	if owner == "" {
		h.HandleError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	pending, err := h.Service.GetPending(r.Context(), owner)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, PendingOrderView{
		OrderID:   pending.OrderID,
		Title:     pending.Title,
		Language:  pending.Language,
		Mobile:    pending.Mobile,
		Email:     pending.Email,
		CreatedAt: pending.CreatedAt.UTC().Format(time.RFC3339),
	})
}
