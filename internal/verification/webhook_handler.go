package verification

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/paymentgateway"
	"github.com/frahmantamala/moviemix/internal/transport"
)

type ResolverAPI interface {
	Resolve(ctx context.Context, orderID, rawStatus string) (*Outcome, error)
}

type WebhookHandler struct {
	*transport.BaseHandler
	resolver  ResolverAPI
	signature *paymentgateway.SignatureVerifier
	logger    *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, resolver ResolverAPI, signature *paymentgateway.SignatureVerifier, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		resolver:    resolver,
		signature:   signature,
		logger:      logger,
	}
}

type PaymentCallbackResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	Result  string `json:"result"`
}

// HandlePaymentCallback handles POST /api/v1/payment/callback
func (h *WebhookHandler) HandlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := h.ReadBody(r)
	if err != nil {
		h.logger.Error("failed to read payment callback body", "error", err)
		h.HandleError(w, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
		return
	}

	timestamp := r.Header.Get(paymentgateway.HeaderWebhookTimestamp)
	signature := r.Header.Get(paymentgateway.HeaderWebhookSignature)
	if err := h.signature.Verify(timestamp, signature, body); err != nil {
		h.logger.Warn("payment callback rejected", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	event, err := paymentgateway.ParseWebhookEvent(body)
	if err != nil {
		h.logger.Error("invalid payment callback payload", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.logger.Info("received payment callback",
		"order_id", event.OrderID(),
		"type", event.Type,
		"payment_status", event.PaymentStatus(),
		"payment_ref", event.PaymentRef())

	outcome, err := h.resolver.Resolve(r.Context(), event.OrderID(), event.PaymentStatus())
	if internal.HasCode(err, internal.ErrCodeOrderNotFound) {
		h.logger.Warn("payment callback for unknown order", "order_id", event.OrderID())
		h.WriteJSON(w, http.StatusOK, PaymentCallbackResponse{
			Status:  "acknowledged",
			OrderID: event.OrderID(),
			Result:  "unknown_order",
		})
		return
	}
	if err != nil && !internal.HasCode(err, internal.ErrCodePaymentFailed) {
		h.logger.Error("failed to process payment callback",
			"error", err,
			"order_id", event.OrderID())
		// a non-2xx answer makes the gateway redeliver
		h.HandleServiceError(w, err)
		return
	}

	result := string(outcome.Status)
	if outcome.AlreadyResolved {
		result = "already_resolved"
	}

	h.WriteJSON(w, http.StatusOK, PaymentCallbackResponse{
		Status:  "acknowledged",
		OrderID: event.OrderID(),
		Result:  result,
	})
}
