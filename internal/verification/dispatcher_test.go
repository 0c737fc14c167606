package verification_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/moviemix/internal/core/datamodel/marker"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	markerpkg "github.com/frahmantamala/moviemix/internal/marker"
	"github.com/frahmantamala/moviemix/internal/verification"
)

type stubVerifier struct {
	mu       sync.Mutex
	verified []string
	block    chan struct{}
}

func (v *stubVerifier) Verify(ctx context.Context, orderID string) (*verification.Outcome, error) {
	if v.block != nil {
		select {
		case <-v.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verified = append(v.verified, orderID)
	return &verification.Outcome{OrderID: orderID, Status: gatewaytypes.StatusPaid, Attempts: 1}, nil
}

func (v *stubVerifier) Verified() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.verified...)
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx      context.Context
		logger   *slog.Logger
		verifier *stubVerifier
		markers  *markerpkg.MemoryStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		verifier = &stubVerifier{}
		markers = markerpkg.NewMemoryStore()
	})

	It("verifies submitted orders in the background", func() {
		// Given
		d := verification.NewDispatcher(verifier, markers, verification.DispatcherConfig{Workers: 2, QueueSize: 10}, logger)
		d.Start()
		defer d.Shutdown()

		// When
		Expect(d.Submit("order_1")).To(Succeed())
		Expect(d.Submit("order_2")).To(Succeed())

		// Then
		drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		Expect(d.Drain(drainCtx)).To(Succeed())
		Expect(verifier.Verified()).To(ConsistOf("order_1", "order_2"))
	})

	It("resumes every persisted marker", func() {
		// Given
		for _, m := range []marker.PendingOrder{
			{OrderID: "order_1", OwnerID: "a@example.com"},
			{OrderID: "order_2", OwnerID: "b@example.com"},
			{OrderID: "order_3", OwnerID: "c@example.com"},
		} {
			m := m
			Expect(markers.Set(ctx, &m)).To(Succeed())
		}
		d := verification.NewDispatcher(verifier, markers, verification.DispatcherConfig{Workers: 1, QueueSize: 10}, logger)
		d.Start()
		defer d.Shutdown()

		// When
		queued, err := d.ResumePending(ctx)

		// Then
		Expect(err).NotTo(HaveOccurred())
		Expect(queued).To(Equal(3))
		drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		Expect(d.Drain(drainCtx)).To(Succeed())
		Expect(verifier.Verified()).To(ConsistOf("order_1", "order_2", "order_3"))
	})

	It("rejects work once the queue is full", func() {
		// Given a dispatcher that was never started
		d := verification.NewDispatcher(verifier, markers, verification.DispatcherConfig{Workers: 1, QueueSize: 1}, logger)

		// When
		first := d.Submit("order_1")
		second := d.Submit("order_2")

		// Then
		Expect(first).To(Succeed())
		Expect(second).To(MatchError(verification.ErrQueueFull))
		d.Shutdown()
	})

	It("refuses submissions after shutdown and releases blocked work", func() {
		// Given
		verifier.block = make(chan struct{})
		d := verification.NewDispatcher(verifier, markers, verification.DispatcherConfig{Workers: 1, QueueSize: 5}, logger)
		d.Start()
		Expect(d.Submit("order_1")).To(Succeed())
		Expect(d.Submit("order_2")).To(Succeed())

		// When
		d.Shutdown()

		// Then
		Expect(d.Submit("order_3")).To(MatchError(verification.ErrDispatcherStopped))
		drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		Expect(d.Drain(drainCtx)).To(Succeed())
		Expect(verifier.Verified()).To(BeEmpty())
	})
})
