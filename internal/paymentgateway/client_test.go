package paymentgateway_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/moviemix/internal"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/moviemix/internal/paymentgateway"
)

var _ = Describe("Client", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		client  *paymentgateway.Client
		logger  *slog.Logger
		ctx     context.Context
		req     *gatewaytypes.CreateOrderRequest
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		ctx = context.Background()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		client = paymentgateway.NewClient(paymentgateway.Config{
			BaseURL:           server.URL + "/pg",
			ClientID:          "client-id",
			ClientSecret:      "client-secret",
			HostedCheckoutURL: "https://payments.example.com/checkout",
			RequestTimeout:    2 * time.Second,
		}, logger)
		req = &gatewaytypes.CreateOrderRequest{
			CorrelationID: "req_1700000000000_abcd1234",
			Amount:        decimal.NewFromInt(5),
			Currency:      gatewaytypes.CurrencyINR,
			Customer: gatewaytypes.Customer{
				ID:    "cust_1",
				Phone: "9999999999",
				Email: "user@example.com",
			},
			ReturnURL: "https://app.example.com/return?order_id={order_id}",
		}
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("CreateOrder", func() {
		It("sends credentials, version and payload and returns the canonical order", func() {
			// Given
			var captured map[string]any
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/pg/orders"))
				Expect(r.Header.Get("x-api-version")).To(Equal("2023-08-01"))
				Expect(r.Header.Get("x-client-id")).To(Equal("client-id"))
				Expect(r.Header.Get("x-client-secret")).To(Equal("client-secret"))
				Expect(r.Header.Get("x-request-id")).To(Equal("req_1700000000000_abcd1234"))
				body, _ := io.ReadAll(r.Body)
				Expect(json.Unmarshal(body, &captured)).To(Succeed())

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"cf_order_id":2149460581,"order_id":"order_101","order_status":"ACTIVE","payment_session_id":"session_abc","order_amount":5.00,"order_currency":"INR"}`))
			}

			// When
			order, err := client.CreateOrder(ctx, req)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(order.ID).To(Equal("order_101"))
			Expect(order.GatewayRef).To(Equal("2149460581"))
			Expect(order.SessionHandle).To(Equal("session_abc"))
			Expect(order.HostedCheckoutURL).To(Equal("https://payments.example.com/checkout/session_abc"))
			Expect(order.Amount.Equal(decimal.NewFromInt(5))).To(BeTrue())
			Expect(order.Status).To(Equal(gatewaytypes.StatusPending))

			Expect(captured["order_amount"]).To(BeNumerically("==", 5))
			Expect(captured["order_currency"]).To(Equal("INR"))
			Expect(captured).NotTo(HaveKey("order_id"))
			details := captured["customer_details"].(map[string]any)
			Expect(details["customer_phone"]).To(Equal("9999999999"))
			Expect(details["customer_email"]).To(Equal("user@example.com"))
			meta := captured["order_meta"].(map[string]any)
			Expect(meta["return_url"]).To(Equal("https://app.example.com/return?order_id={order_id}"))
		})

		It("normalizes the legacy response shape", func() {
			// Given
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"cf_order_id":"CF77","order_token":"token_xyz","payment_link":"https://pay.example.com/link/77"}`))
			}

			// When
			order, err := client.CreateOrder(ctx, req)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(order.ID).To(Equal("CF77"))
			Expect(order.SessionHandle).To(Equal("token_xyz"))
			Expect(order.HostedCheckoutURL).To(Equal("https://pay.example.com/link/77"))
			Expect(order.Status).To(Equal(gatewaytypes.StatusCreated))
			Expect(order.Currency).To(Equal("INR"))
		})

		It("preserves upstream status and body on rejection", func() {
			// Given
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"message":"customer_phone is invalid","code":"customer_details.customer_phone_invalid"}`))
			}

			// When
			order, err := client.CreateOrder(ctx, req)

			// Then
			Expect(order).To(BeNil())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodePaymentCreationFailed))
			details := appErr.Details.(internal.PaymentCreationDetails)
			Expect(details.UpstreamStatus).To(Equal(http.StatusBadRequest))
			Expect(details.UpstreamBody).To(ContainSubstring("customer_phone is invalid"))
		})

		It("does not retry a rejected creation", func() {
			// Given
			var calls int32
			handler = func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(http.StatusInternalServerError)
			}

			// When
			_, err := client.CreateOrder(ctx, req)

			// Then
			Expect(internal.HasCode(err, internal.ErrCodePaymentCreationFailed)).To(BeTrue())
			Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
		})

		It("treats a success without a session handle as malformed", func() {
			// Given
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"order_id":"order_101"}`))
			}

			// When
			_, err := client.CreateOrder(ctx, req)

			// Then
			Expect(internal.HasCode(err, internal.ErrCodePaymentCreationFailed)).To(BeTrue())
		})

		It("rejects an invalid request before calling the gateway", func() {
			// Given
			var calls int32
			handler = func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
			}
			req.Amount = decimal.Zero

			// When
			_, err := client.CreateOrder(ctx, req)

			// Then
			Expect(internal.HasCode(err, internal.ErrCodeValidationFailed)).To(BeTrue())
			Expect(atomic.LoadInt32(&calls)).To(BeZero())
		})
	})

	Describe("GetOrder", func() {
		It("maps the order status", func() {
			// Given
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodGet))
				Expect(r.URL.Path).To(Equal("/pg/orders/order_101"))
				Expect(r.Header.Get("x-client-secret")).To(Equal("client-secret"))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`{"order_id":"order_101","order_status":"paid"}`))
			}

			// When
			order, err := client.GetOrder(ctx, "order_101")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(order.Status).To(Equal(gatewaytypes.StatusPaid))
			Expect(order.RawStatus).To(Equal("paid"))
		})

		It("reports gateway unavailability on non-2xx", func() {
			// Given
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}

			// When
			_, err := client.GetOrder(ctx, "order_101")

			// Then
			Expect(internal.HasCode(err, internal.ErrCodeGatewayUnavailable)).To(BeTrue())
		})

		It("reports gateway unavailability when the server is down", func() {
			// Given
			server.Close()

			// When
			_, err := client.GetOrder(ctx, "order_101")

			// Then
			Expect(internal.HasCode(err, internal.ErrCodeGatewayUnavailable)).To(BeTrue())
		})
	})
})
