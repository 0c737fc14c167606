package order_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/moviemix/internal"
	"github.com/frahmantamala/moviemix/internal/checkout"
	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
	ordermodel "github.com/frahmantamala/moviemix/internal/core/datamodel/order"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	markerpkg "github.com/frahmantamala/moviemix/internal/marker"
	"github.com/frahmantamala/moviemix/internal/order"
)

type mockGateway struct {
	mu       sync.Mutex
	requests []*gatewaytypes.CreateOrderRequest
	response *gatewaytypes.Order
	err      error
}

func (g *mockGateway) CreateOrder(_ context.Context, req *gatewaytypes.CreateOrderRequest) (*gatewaytypes.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	resp := *g.response
	return &resp, nil
}

func (g *mockGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type mockOrderRepository struct {
	mu          sync.Mutex
	orders      map[string]*ordermodel.PaymentOrder
	createError error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*ordermodel.PaymentOrder)}
}

func (m *mockOrderRepository) Create(_ context.Context, o *ordermodel.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createError != nil {
		return m.createError
	}
	o.ID = int64(len(m.orders) + 1)
	o.CreatedAt = time.Now()
	copied := *o
	m.orders[o.OrderID] = &copied
	return nil
}

func (m *mockOrderRepository) GetByOrderID(_ context.Context, orderID string) (*ordermodel.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, internal.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) RecordStatus(_ context.Context, orderID, status string, attempts int, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return internal.ErrOrderNotFound
	}
	o.Status = status
	if attempts > 0 {
		o.Attempts = attempts
	}
	o.LastCheckedAt = &checkedAt
	return nil
}

type failingCheckout struct{}

func (failingCheckout) Launch(_ context.Context, o *gatewaytypes.Order) (*checkout.Instruction, error) {
	return nil, internal.NewCheckoutUnavailableError(o.ID)
}

func validDTO() *order.CreateOrderDTO {
	return &order.CreateOrderDTO{
		Amount:        decimal.RequireFromString("5"),
		CustomerPhone: "9999999999",
		CustomerEmail: "a@example.com",
		Title:         "Inception",
		Language:      "English",
	}
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		logger  *slog.Logger
		gateway *mockGateway
		repo    *mockOrderRepository
		markers *markerpkg.MemoryStore
		service *order.Service
		owner   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		gateway = &mockGateway{response: &gatewaytypes.Order{
			ID:                "order_101",
			GatewayRef:        "2149460581",
			Amount:            decimal.RequireFromString("5"),
			Currency:          gatewaytypes.CurrencyINR,
			Status:            gatewaytypes.StatusCreated,
			SessionHandle:     "session_abc",
			HostedCheckoutURL: "https://payments.example.com/pay/session_abc",
		}}
		repo = newMockOrderRepository()
		markers = markerpkg.NewMemoryStore()
		owner = "a@example.com"
		service = order.NewService(gateway, repo, markers, checkout.NewTrigger(nil, logger), order.ServiceConfig{
			ReturnURL: "https://moviemix.example.com/payment/return",
			NotifyURL: "https://api.moviemix.example.com/api/v1/payment/callback",
		}, logger)
	})

	Describe("CreateOrder", func() {
		It("creates the gateway order, persists it and stores the marker", func() {
			// When
			resp, err := service.CreateOrder(ctx, owner, validDTO())

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.OrderID).To(Equal("order_101"))
			Expect(resp.Status).To(Equal("CREATED"))
			Expect(resp.Currency).To(Equal("INR"))
			Expect(resp.Checkout.Mode).To(Equal(checkout.ModeRedirect))
			Expect(resp.Checkout.URL).To(Equal("https://payments.example.com/pay/session_abc"))
			Expect(resp.CorrelationID).To(MatchRegexp(`^req_\d+_[0-9a-f]{8}$`))

			sent := gateway.requests[0]
			Expect(sent.CorrelationID).To(Equal(resp.CorrelationID))
			Expect(sent.Currency).To(Equal("INR"))
			Expect(sent.Amount.Equal(decimal.NewFromInt(5))).To(BeTrue())
			Expect(sent.Customer.Email).To(Equal("a@example.com"))
			Expect(sent.Customer.ID).To(HavePrefix("cust_"))
			Expect(sent.ReturnURL).To(Equal("https://moviemix.example.com/payment/return"))
			Expect(sent.NotifyURL).To(ContainSubstring("/payment/callback"))
			Expect(sent.Tags).To(HaveKeyWithValue("correlation_id", resp.CorrelationID))

			rec, err := repo.GetByOrderID(ctx, "order_101")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.OwnerID).To(Equal(owner))
			Expect(rec.SessionHandle).To(Equal("session_abc"))
			Expect(*rec.CheckoutURL).To(Equal("https://payments.example.com/pay/session_abc"))

			pending, err := markers.Get(ctx, "order_101")
			Expect(err).NotTo(HaveOccurred())
			Expect(pending.Title).To(Equal("Inception"))
			Expect(pending.Language).To(Equal("English"))
			Expect(pending.Mobile).To(Equal("9999999999"))
		})

		It("derives a stable customer id per owner", func() {
			_, err := service.CreateOrder(ctx, owner, validDTO())
			Expect(err).NotTo(HaveOccurred())
			_, err = markers.Clear(ctx, "order_101")
			Expect(err).NotTo(HaveOccurred())
			gateway.response.ID = "order_102"

			_, err = service.CreateOrder(ctx, owner, validDTO())
			Expect(err).NotTo(HaveOccurred())

			Expect(gateway.requests[0].Customer.ID).To(Equal(gateway.requests[1].Customer.ID))
			Expect(gateway.requests[0].CorrelationID).NotTo(Equal(gateway.requests[1].CorrelationID))
		})

		It("prefers the caller's return url", func() {
			dto := validDTO()
			dto.ReturnURL = "https://moviemix.example.com/custom"

			_, err := service.CreateOrder(ctx, owner, dto)

			Expect(err).NotTo(HaveOccurred())
			Expect(gateway.requests[0].ReturnURL).To(Equal("https://moviemix.example.com/custom"))
		})

		It("refuses a second order while one is pending", func() {
			// Given
			Expect(markers.Set(ctx, &marker.PendingOrder{OrderID: "order_old", OwnerID: owner})).To(Succeed())

			// When
			_, err := service.CreateOrder(ctx, owner, validDTO())

			// Then
			Expect(internal.HasCode(err, internal.ErrCodePendingPaymentExists)).To(BeTrue())
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.StatusCode).To(Equal(409))
			Expect(appErr.Details).To(Equal(internal.PendingPaymentDetails{OrderID: "order_old"}))
			Expect(gateway.Calls()).To(BeZero())
		})

		DescribeTable("rejects invalid requests without calling the gateway",
			func(mutate func(*order.CreateOrderDTO), field string) {
				dto := validDTO()
				mutate(dto)

				_, err := service.CreateOrder(ctx, owner, dto)

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.StatusCode).To(Equal(400))
				details, ok := appErr.Details.(internal.ValidationErrors)
				Expect(ok).To(BeTrue())
				Expect(details.Errors[0].Field).To(Equal(field))
				Expect(gateway.Calls()).To(BeZero())
			},
			Entry("zero amount", func(d *order.CreateOrderDTO) { d.Amount = decimal.Zero }, "amount"),
			Entry("negative amount", func(d *order.CreateOrderDTO) { d.Amount = decimal.NewFromInt(-1) }, "amount"),
			Entry("three decimals", func(d *order.CreateOrderDTO) { d.Amount = decimal.RequireFromString("5.001") }, "amount"),
			Entry("missing phone", func(d *order.CreateOrderDTO) { d.CustomerPhone = "" }, "customer_phone"),
			Entry("short phone", func(d *order.CreateOrderDTO) { d.CustomerPhone = "12345" }, "customer_phone"),
			Entry("missing email", func(d *order.CreateOrderDTO) { d.CustomerEmail = "  " }, "customer_email"),
			Entry("malformed email", func(d *order.CreateOrderDTO) { d.CustomerEmail = "not-an-email" }, "customer_email"),
			Entry("missing title", func(d *order.CreateOrderDTO) { d.Title = "" }, "title"),
			Entry("missing language", func(d *order.CreateOrderDTO) { d.Language = "" }, "language"),
		)

		It("surfaces gateway refusals without persisting anything", func() {
			// Given
			gateway.err = internal.NewPaymentCreationError(400, `{"message":"order_amount invalid"}`)

			// When
			_, err := service.CreateOrder(ctx, owner, validDTO())

			// Then
			Expect(internal.HasCode(err, internal.ErrCodePaymentCreationFailed)).To(BeTrue())
			Expect(gateway.Calls()).To(Equal(1))
			_, err = markers.FindByOwner(ctx, owner)
			Expect(err).To(MatchError(markerpkg.ErrNotFound))
			_, err = repo.GetByOrderID(ctx, "order_101")
			Expect(err).To(HaveOccurred())
		})

		It("does not store a marker when the order cannot be persisted", func() {
			repo.createError = errors.New("db down")

			_, err := service.CreateOrder(ctx, owner, validDTO())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(500))
			_, err = markers.Get(ctx, "order_101")
			Expect(err).To(MatchError(markerpkg.ErrNotFound))
		})

		It("clears the marker when no checkout can be launched", func() {
			service = order.NewService(gateway, repo, markers, failingCheckout{}, order.ServiceConfig{}, logger)

			_, err := service.CreateOrder(ctx, owner, validDTO())

			Expect(internal.HasCode(err, internal.ErrCodeCheckoutUnavailable)).To(BeTrue())
			_, err = markers.Get(ctx, "order_101")
			Expect(err).To(MatchError(markerpkg.ErrNotFound))
		})
	})

	Describe("GetOrder", func() {
		BeforeEach(func() {
			_, err := service.CreateOrder(ctx, owner, validDTO())
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the owner's order", func() {
			rec, err := service.GetOrder(ctx, owner, "order_101")

			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal("CREATED"))
		})

		It("hides another owner's order", func() {
			_, err := service.GetOrder(ctx, "b@example.com", "order_101")

			Expect(err).To(MatchError(internal.ErrOrderNotFound))
		})
	})

	Describe("GetPending", func() {
		It("returns the marker to resume from", func() {
			_, err := service.CreateOrder(ctx, owner, validDTO())
			Expect(err).NotTo(HaveOccurred())

			pending, err := service.GetPending(ctx, owner)

			Expect(err).NotTo(HaveOccurred())
			Expect(pending.OrderID).To(Equal("order_101"))
		})

		It("reports not found when nothing is pending", func() {
			_, err := service.GetPending(ctx, owner)

			Expect(internal.HasCode(err, internal.ErrCodeOrderNotFound)).To(BeTrue())
		})
	})
})

