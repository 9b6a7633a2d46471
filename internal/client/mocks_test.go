package client

import (
	"context"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Mocks ---

type update struct {
	productID int64
	quantity  int
}

type updaterMock struct {
	mu      sync.Mutex
	updates []update
	err     error
}

func (m *updaterMock) UpdateQuantity(_ context.Context, productID int64, quantity int) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, update{productID, quantity})
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Cart{Items: []domain.CartItem{{ProductID: productID, Quantity: quantity, UnitPrice: decimal.NewFromInt(100), Name: "Keyboard"}}}, nil
}

func (m *updaterMock) calls() []update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]update(nil), m.updates...)
}

func (m *updaterMock) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type apiMock struct {
	mu        sync.Mutex
	placed    []OrderRequest
	placeErr  error
	order     *domain.Order
	secret    string
	issued    int
	finalized []string
	finalErr  error
	cartReads int
}

func (m *apiMock) PlaceOrder(_ context.Context, req OrderRequest) (*PlacedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, req)
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	o := *m.order
	o.PaymentMode = req.PaymentMode
	if req.PaymentMode == domain.PaymentModeOnline {
		o.OrderStatus = domain.OrderStatusPendingPayment
		return &PlacedOrder{Order: &o, ClientSecret: m.secret}, nil
	}
	o.OrderStatus = domain.OrderStatusProcessing
	return &PlacedOrder{Order: &o}, nil
}

func (m *apiMock) GetCart(_ context.Context) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cartReads++
	return &domain.Cart{UserID: "user-1"}, nil
}

func (m *apiMock) ProcessPayment(_ context.Context, orderID uuid.UUID) (*PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	return &PaymentSession{OrderID: orderID.String(), PaymentIntentID: "pi_issued", ClientSecret: "pi_issued_secret_xyz"}, nil
}

func (m *apiMock) FinalizePayment(_ context.Context, orderID uuid.UUID, intentID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = append(m.finalized, intentID)
	if m.finalErr != nil {
		return nil, m.finalErr
	}
	o := *m.order
	o.ID = orderID
	o.PaymentMode = domain.PaymentModeOnline
	o.PaymentStatus = domain.PaymentStatusPaid
	o.OrderStatus = domain.OrderStatusProcessing
	return &o, nil
}

type confirmerMock struct {
	mu      sync.Mutex
	secrets []string
	status  string
	err     error
}

func (m *confirmerMock) ConfirmCard(_ context.Context, clientSecret string, _ CardDetails) (*Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets = append(m.secrets, clientSecret)
	if m.err != nil {
		return nil, m.err
	}
	id, err := IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}
	return &Confirmation{IntentID: id, Status: m.status}, nil
}

// --- helper ---

func testCart() *domain.Cart {
	return &domain.Cart{
		UserID: "user-1",
		Items: []domain.CartItem{
			{ProductID: 1, Name: "Keyboard", UnitPrice: decimal.NewFromInt(100), Quantity: 2},
			{ProductID: 2, Name: "Mouse", UnitPrice: decimal.NewFromInt(50), Quantity: 1},
		},
	}
}

func newTestStore() *CartStore {
	s := NewCartStore(pricing.DefaultPolicy())
	s.Replace(testCart())
	return s
}

func validAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		Address:    "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
		Phone:      "+1 555 0100",
	}
}

func pendingOrder() *domain.Order {
	return &domain.Order{
		ID:            uuid.MustParse("3f2a9c1e-0000-4000-8000-000000000001"),
		UserID:        "user-1",
		PaymentStatus: domain.PaymentStatusPending,
	}
}
