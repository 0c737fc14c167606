package verification

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/order"
	"github.com/frahmantamala/moviemix/internal/transport"
	"github.com/go-chi/chi"
)

type Handler struct {
	transport.BaseHandler
	Verifier VerifierAPI
	Orders   order.RepositoryAPI
}

func NewHandler(verifier VerifierAPI, orders order.RepositoryAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: logger},
		Verifier:    verifier,
		Orders:      orders,
	}
}

// VerifyOrder handles POST /api/v1/orders/{id}/verify
func (h *Handler) VerifyOrder(w http.ResponseWriter, r *http.Request) {
	owner := internal.OwnerFromContext(r.Context())
	if owner == "" {
		h.HandleError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}

	orderID := chi.URLParam(r, "id")
	rec, err := h.Orders.GetByOrderID(r.Context(), orderID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if rec.OwnerID != owner {
		// other owners' orders are indistinguishable from missing ones
		h.HandleError(w, internal.ErrOrderNotFound)
		return
	}

	outcome, err := h.Verifier.Verify(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.Logger.Info("VerifyOrder: client went away, marker kept", "order_id", orderID)
			return
		}
		h.Logger.Info("VerifyOrder: verification did not confirm payment", "order_id", orderID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, outcome)
}
