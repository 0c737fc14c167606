package verification_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/moviemix/internal"
	ordermodel "github.com/frahmantamala/moviemix/internal/core/datamodel/order"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/moviemix/internal/paymentgateway"
	"github.com/frahmantamala/moviemix/internal/transport"
	"github.com/frahmantamala/moviemix/internal/verification"
)

type scriptedVerifier struct {
	outcome *verification.Outcome
	err     error
	calls   int
}

func (v *scriptedVerifier) Verify(_ context.Context, orderID string) (*verification.Outcome, error) {
	v.calls++
	return v.outcome, v.err
}

type scriptedResolver struct {
	outcome   *verification.Outcome
	err       error
	orderID   string
	rawStatus string
}

func (r *scriptedResolver) Resolve(_ context.Context, orderID, rawStatus string) (*verification.Outcome, error) {
	r.orderID = orderID
	r.rawStatus = rawStatus
	return r.outcome, r.err
}

var _ = Describe("Handler", func() {
	var (
		logger   *slog.Logger
		orders   *mockOrderRepository
		verifier *scriptedVerifier
		router   chi.Router
		owner    string
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		orders = newMockOrderRepository()
		verifier = &scriptedVerifier{}
		owner = "a@example.com"

		Expect(orders.Create(context.Background(), &ordermodel.PaymentOrder{
			OrderID:       "order_1",
			CorrelationID: "req_1",
			Amount:        decimal.NewFromInt(5),
			OwnerID:       "a@example.com",
			Status:        "CREATED",
		})).To(Succeed())

		handler := verification.NewHandler(verifier, orders, logger)
		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if owner != "" {
					r = r.WithContext(internal.ContextWithOwner(r.Context(), owner))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Post("/orders/{id}/verify", handler.VerifyOrder)
	})

	serve := func(orderID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID+"/verify", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("returns the outcome of a successful verification", func() {
		verifier.outcome = &verification.Outcome{OrderID: "order_1", Status: gatewaytypes.StatusPaid, Attempts: 2, FulfillmentID: 7}

		rec := serve("order_1")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body verification.Outcome
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Status).To(Equal(gatewaytypes.StatusPaid))
		Expect(body.FulfillmentID).To(Equal(int64(7)))
	})

	It("maps a verification timeout to 504", func() {
		verifier.err = internal.NewVerificationTimeoutError("order_1", 6)

		rec := serve("order_1")

		Expect(rec.Code).To(Equal(http.StatusGatewayTimeout))
		Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeVerificationTimeout)))
	})

	It("maps a failed payment to 402", func() {
		verifier.err = internal.NewPaymentFailedError("order_1", "CANCELLED")

		rec := serve("order_1")

		Expect(rec.Code).To(Equal(http.StatusPaymentRequired))
	})

	It("hides orders owned by someone else", func() {
		owner = "b@example.com"

		rec := serve("order_1")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(verifier.calls).To(BeZero())
	})

	It("requires an authenticated owner", func() {
		owner = ""

		rec := serve("order_1")

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns 404 for an unknown order", func() {
		rec := serve("order_missing")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("WebhookHandler", func() {
	const secret = "webhook-secret-for-tests"

	var (
		logger   *slog.Logger
		resolver *scriptedResolver
		signer   *paymentgateway.SignatureVerifier
		handler  *verification.WebhookHandler
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		resolver = &scriptedResolver{}
		signer = paymentgateway.NewSignatureVerifier(secret, 5*time.Minute)
		handler = verification.NewWebhookHandler(transport.NewBaseHandler(logger), resolver, signer, logger)
	})

	payload := func(orderID, status string) []byte {
		body, err := json.Marshal(map[string]interface{}{
			"type": "PAYMENT_SUCCESS_WEBHOOK",
			"data": map[string]interface{}{
				"order":   map[string]interface{}{"order_id": orderID, "order_amount": 5},
				"payment": map[string]interface{}{"cf_payment_id": 12345, "payment_status": status},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		return body
	}

	deliver := func(body []byte, signature string) *httptest.ResponseRecorder {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		if signature == "" {
			signature = signer.Sign(timestamp, body)
		}
		req := httptest.NewRequest(http.MethodPost, "/payment/callback", bytes.NewReader(body))
		req.Header.Set(paymentgateway.HeaderWebhookTimestamp, timestamp)
		req.Header.Set(paymentgateway.HeaderWebhookSignature, signature)
		rec := httptest.NewRecorder()
		handler.HandlePaymentCallback(rec, req)
		return rec
	}

	It("resolves a signed callback", func() {
		// Given
		resolver.outcome = &verification.Outcome{OrderID: "order_1", Status: gatewaytypes.StatusPaid}

		// When
		rec := deliver(payload("order_1", "SUCCESS"), "")

		// Then
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(resolver.orderID).To(Equal("order_1"))
		Expect(resolver.rawStatus).To(Equal("SUCCESS"))
		var body verification.PaymentCallbackResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Result).To(Equal("PAID"))
	})

	It("rejects a forged signature", func() {
		rec := deliver(payload("order_1", "SUCCESS"), "Zm9yZ2Vk")

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(resolver.orderID).To(BeEmpty())
	})

	It("rejects a payload without an order id", func() {
		rec := deliver(payload("", "SUCCESS"), "")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("acknowledges callbacks for unknown orders", func() {
		resolver.err = internal.ErrOrderNotFound

		rec := deliver(payload("order_x", "SUCCESS"), "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("unknown_order"))
	})

	It("acknowledges a failed payment", func() {
		resolver.outcome = &verification.Outcome{OrderID: "order_1", Status: gatewaytypes.StatusFailed}
		resolver.err = internal.NewPaymentFailedError("order_1", "FAILED")

		rec := deliver(payload("order_1", "FAILED"), "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("FAILED"))
	})

	It("asks for redelivery when recording fails", func() {
		resolver.err = internal.NewFulfillmentWriteError("order_1", errors.New("db down"))

		rec := deliver(payload("order_1", "SUCCESS"), "")

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
	})
})
