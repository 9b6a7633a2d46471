package service

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/orders/repository"
	"github.com/fjod/storefront/internal/payment"
	"github.com/google/uuid"
)

// mockRepository is an in-memory repository.OrderRepository.
type mockRepository struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	events   []*repository.OutboxEvent
	createFn func(*domain.Order) error
}

func newMockRepository() *mockRepository {
	return &mockRepository{orders: map[uuid.UUID]*domain.Order{}}
}

func (m *mockRepository) CreateOrder(_ context.Context, o *domain.Order, event *repository.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createFn != nil {
		if err := m.createFn(o); err != nil {
			return err
		}
	}
	if o.IdempotencyKey != "" {
		for _, existing := range m.orders {
			if existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
				return repository.ErrDuplicateIdempotencyKey
			}
		}
	}
	cp := *o
	m.orders[o.ID] = &cp
	if event != nil {
		m.events = append(m.events, event)
	}
	return nil
}

func (m *mockRepository) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepository) GetOrderByIdempotencyKey(_ context.Context, userID, key string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockRepository) ListOrdersByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepository) ListOrders(_ context.Context, filter repository.ListFilter) ([]*domain.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if filter.Status == "" || o.OrderStatus == filter.Status {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepository) SetPaymentIntent(_ context.Context, id uuid.UUID, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PaymentIntentID = intentID
	return nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, o *domain.Order, expected domain.OrderStatus, event *repository.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[o.ID]
	if !ok || stored.OrderStatus != expected {
		return repository.ErrStatusConflict
	}
	cp := *o
	cp.PaymentIntentID = stored.PaymentIntentID
	m.orders[o.ID] = &cp
	if event != nil {
		m.events = append(m.events, event)
	}
	return nil
}

func (m *mockRepository) ListStalePendingPayments(_ context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if o.OrderStatus == domain.OrderStatusPendingPayment && o.CreatedAt.Before(createdBefore) && len(out) < limit {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepository) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return nil, nil
}

func (m *mockRepository) MarkEventAsProcessed(context.Context, uuid.UUID) error { return nil }

func (m *mockRepository) RunMigrations(*repository.Credentials) error { return nil }

func (m *mockRepository) Close() error { return nil }

func (m *mockRepository) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.EventType)
	}
	return types
}

func (m *mockRepository) stored(id uuid.UUID) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

type mockCarts struct {
	cart *domain.Cart
	err  error
}

func (m *mockCarts) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return &domain.Cart{UserID: userID}, nil
	}
	return m.cart, nil
}

type mockProducts struct {
	products map[int64]*domain.Product
}

func (m *mockProducts) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// mockGateway keeps intents in memory and counts every call.
type mockGateway struct {
	mu        sync.Mutex
	intents   map[string]*payment.Intent
	createErr error
	getErr    error
	creates   int
	gets      int
	cancels   int
}

func newMockGateway() *mockGateway {
	return &mockGateway{intents: map[string]*payment.Intent{}}
}

func (g *mockGateway) CreateIntent(_ context.Context, in payment.CreateIntentInput) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	if g.createErr != nil {
		return nil, g.createErr
	}
	id := "pi_" + in.OrderID
	intent := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret_test",
		Status:       payment.StatusRequiresPaymentMethod,
		Amount:       domain.MinorUnits(in.Amount),
		Currency:     in.Currency,
		OrderID:      in.OrderID,
	}
	g.intents[id] = intent
	cp := *intent
	return &cp, nil
}

func (g *mockGateway) GetIntent(_ context.Context, id string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gets++
	if g.getErr != nil {
		return nil, g.getErr
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, payment.ErrInvalidEvent
	}
	cp := *intent
	return &cp, nil
}

func (g *mockGateway) CancelIntent(_ context.Context, id string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels++
	intent, ok := g.intents[id]
	if !ok {
		return nil, payment.ErrInvalidEvent
	}
	intent.Status = payment.StatusCanceled
	cp := *intent
	return &cp, nil
}

func (g *mockGateway) setStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = status
}

func (g *mockGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creates + g.gets + g.cancels
}
