package verification_test

import (
	"context"
	"sync"
	"time"

	"github.com/frahmantamala/moviemix/internal"
	ordermodel "github.com/frahmantamala/moviemix/internal/core/datamodel/order"
	gatewaytypes "github.com/frahmantamala/moviemix/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/moviemix/internal/core/events"
	"github.com/frahmantamala/moviemix/internal/order"
)

// fakeGateway answers GetOrder from a scripted status sequence; the last
// status repeats once the script runs out.
type fakeGateway struct {
	mu       sync.Mutex
	statuses []string
	errs     map[int]error
	calls    int
	release  chan struct{}
}

func newFakeGateway(statuses ...string) *fakeGateway {
	return &fakeGateway{statuses: statuses, errs: make(map[int]error)}
}

func (g *fakeGateway) GetOrder(ctx context.Context, orderID string) (*gatewaytypes.Order, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	release := g.release
	g.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := g.errs[call]; ok {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	raw := "ACTIVE"
	if len(g.statuses) > 0 {
		idx := call - 1
		if idx >= len(g.statuses) {
			idx = len(g.statuses) - 1
		}
		raw = g.statuses[idx]
	}
	return &gatewaytypes.Order{ID: orderID, RawStatus: raw, Status: gatewaytypes.MapStatus(raw)}, nil
}

func (g *fakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingScheduler struct {
	mu       sync.Mutex
	waits    []time.Duration
	failOn   int
	failWith error
	// onWait runs outside the lock with the 1-based wait number.
	onWait func(n int)
}

func (s *recordingScheduler) Wait(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	n := len(s.waits)
	hook := s.onWait
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if s.failOn > 0 && n == s.failOn {
		return s.failWith
	}
	return ctx.Err()
}

func (s *recordingScheduler) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

type mockOrderRepository struct {
	mu      sync.Mutex
	orders  map[string]*ordermodel.PaymentOrder
	history []string
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*ordermodel.PaymentOrder)}
}

func (m *mockOrderRepository) Create(_ context.Context, o *ordermodel.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = int64(len(m.orders) + 1)
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
	if !order.CanRecord(o.Status, status) {
		return order.ErrStatusSettled
	}
	o.Status = status
	if attempts > 0 {
		o.Attempts = attempts
	}
	o.LastCheckedAt = &checkedAt
	m.history = append(m.history, status)
	return nil
}

func (m *mockOrderRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}
