package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	cartrepo "github.com/fjod/storefront/internal/cart/repository"
	catalog "github.com/fjod/storefront/internal/catalog/service"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/identity"
	ordersrepo "github.com/fjod/storefront/internal/orders/repository"
	orders "github.com/fjod/storefront/internal/orders/service"
	"github.com/fjod/storefront/internal/payment"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Mocks ---

type authMock struct {
	users     map[string]*identity.Claims
	loggedOut []string
	err       error
}

func (m *authMock) Authenticate(_ context.Context, token string) (*identity.Claims, error) {
	if c, ok := m.users[token]; ok {
		return c, nil
	}
	return nil, identity.ErrInvalidToken
}

func (m *authMock) Register(_ context.Context, in identity.RegisterInput) (*identity.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &identity.Session{
		User:      &domain.User{ID: "new-user", Name: in.Name, Email: in.Email},
		Token:     "new-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (m *authMock) Login(_ context.Context, in identity.LoginInput) (*identity.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &identity.Session{
		User:      &domain.User{ID: "user-1", Email: in.Email},
		Token:     "user-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (m *authMock) Logout(_ context.Context, claims *identity.Claims) error {
	m.loggedOut = append(m.loggedOut, claims.ID)
	return nil
}

type catalogMock struct {
	product *domain.Product
	err     error
	review  *domain.Review
}

func (m *catalogMock) ListProducts(_ context.Context, q catalog.ListQuery) (*catalog.ProductPage, error) {
	if m.err != nil {
		return nil, m.err
	}
	page := &catalog.ProductPage{Page: 1, Pages: 1}
	if m.product != nil && q.Keyword != "none" {
		page.Products = []*domain.Product{m.product}
		page.Total = 1
	}
	return page, nil
}

func (m *catalogMock) GetProduct(_ context.Context, _ int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.product, nil
}

func (m *catalogMock) CreateProduct(_ context.Context, in catalog.ProductInput) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Product{ID: 7, Name: in.Name, Price: in.Price, CountInStock: in.CountInStock}, nil
}

func (m *catalogMock) UpdateProduct(_ context.Context, id int64, in catalog.ProductInput) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Product{ID: id, Name: in.Name, Price: in.Price}, nil
}

func (m *catalogMock) DeleteProduct(_ context.Context, _ int64) error {
	return m.err
}

func (m *catalogMock) AddReview(_ context.Context, productID int64, user *domain.User, in catalog.ReviewInput) (*domain.Review, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.review = &domain.Review{ProductID: productID, UserID: user.ID, UserName: user.Name, Rating: in.Rating, Comment: in.Comment}
	return m.review, nil
}

type cartMock struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
	err   error
}

func newCartMock() *cartMock {
	return &cartMock{carts: map[string]*domain.Cart{}}
}

func (m *cartMock) cart(userID string) *domain.Cart {
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID}
		m.carts[userID] = c
	}
	return c
}

func (m *cartMock) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	return &domain.Cart{UserID: userID}, nil
}

func (m *cartMock) AddItem(_ context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := m.cart(userID)
	c.Items = append(c.Items, domain.CartItem{ProductID: productID, Quantity: quantity, UnitPrice: decimal.NewFromInt(10)})
	return c, nil
}

func (m *cartMock) UpdateQuantity(_ context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := m.cart(userID)
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return c, nil
		}
	}
	return nil, cartrepo.ErrItemNotFound
}

func (m *cartMock) RemoveItem(_ context.Context, userID string, productID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := m.cart(userID)
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	if len(c.Items) == 0 {
		c.Items = nil
	}
	return c, nil
}

type ordersMock struct {
	mu          sync.Mutex
	placed      []orders.PlaceOrderRequest
	replay      bool
	order       *domain.Order
	err         error
	events      []*payment.WebhookEvent
	eventErr    error
	lastFilter  ordersrepo.ListFilter
	lastIntent  string
	lastStatus  domain.OrderStatus
	lastCaller  orders.Customer
	userOrders  []*domain.Order
	paymentsOff bool
}

func (m *ordersMock) PlaceOrder(_ context.Context, c orders.Customer, req orders.PlaceOrderRequest) (*orders.PlaceOrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, req)
	m.lastCaller = c
	if m.err != nil {
		return nil, m.err
	}
	res := &orders.PlaceOrderResult{Order: m.order, Replayed: m.replay}
	if req.PaymentMode == domain.PaymentModeOnline {
		res.ClientSecret = "pi_123_secret_abc"
	}
	return res, nil
}

func (m *ordersMock) GetOrder(_ context.Context, c orders.Customer, _ uuid.UUID) (*domain.Order, error) {
	m.lastCaller = c
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *ordersMock) ListUserOrders(_ context.Context, _ string) ([]*domain.Order, error) {
	return m.userOrders, m.err
}

func (m *ordersMock) ListOrders(_ context.Context, filter ordersrepo.ListFilter) (*orders.OrderPage, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return &orders.OrderPage{Total: 0}, nil
}

func (m *ordersMock) UpdateStatus(_ context.Context, _ uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	m.lastStatus = next
	if m.err != nil {
		return nil, m.err
	}
	o := *m.order
	o.OrderStatus = next
	return &o, nil
}

func (m *ordersMock) IssuePayment(_ context.Context, _ orders.Customer, _ uuid.UUID) (*orders.PaymentSession, error) {
	if m.paymentsOff {
		return nil, payment.ErrNotConfigured
	}
	if m.err != nil {
		return nil, m.err
	}
	return &orders.PaymentSession{Order: m.order, IntentID: "pi_123", ClientSecret: "pi_123_secret_abc"}, nil
}

func (m *ordersMock) ConfirmPayment(_ context.Context, _ orders.Customer, _ uuid.UUID, intentID string) (*domain.Order, error) {
	m.lastIntent = intentID
	if m.err != nil {
		return nil, m.err
	}
	o := *m.order
	o.PaymentStatus = domain.PaymentStatusPaid
	o.OrderStatus = domain.OrderStatusProcessing
	return &o, nil
}

func (m *ordersMock) HandlePaymentEvent(_ context.Context, ev *payment.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.eventErr
}

type webhookMock struct {
	event *payment.WebhookEvent
	err   error
}

func (m webhookMock) Parse(_ []byte, signature string) (*payment.WebhookEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	if signature == "" {
		return nil, payment.ErrInvalidEvent
	}
	return m.event, nil
}

// --- helper ---

func claims(id string, admin bool) *identity.Claims {
	return &identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: "jti-" + id},
		UserID:           id,
		Email:            id + "@example.com",
		Name:             "User " + id,
		IsAdmin:          admin,
	}
}

type testEnv struct {
	handler  http.Handler
	auth     *authMock
	catalog  *catalogMock
	carts    *cartMock
	orders   *ordersMock
	webhooks *webhookMock
}

func newTestEnv() *testEnv {
	env := &testEnv{
		auth: &authMock{users: map[string]*identity.Claims{
			"user-token":  claims("user-1", false),
			"admin-token": claims("admin-1", true),
		}},
		catalog: &catalogMock{product: &domain.Product{ID: 1, Name: "Desk Lamp", Price: decimal.RequireFromString("19.99"), CountInStock: 5}},
		carts:   newCartMock(),
		orders: &ordersMock{order: &domain.Order{
			ID:            uuid.MustParse("3f2a9c1e-0000-4000-8000-000000000001"),
			UserID:        "user-1",
			PaymentMode:   domain.PaymentModeCashOnDelivery,
			PaymentStatus: domain.PaymentStatusPending,
			OrderStatus:   domain.OrderStatusProcessing,
		}},
		webhooks: &webhookMock{},
	}
	env.handler = NewRouter(Deps{
		Auth:     env.auth,
		Catalog:  env.catalog,
		Carts:    env.carts,
		Orders:   env.orders,
		Webhooks: env.webhooks,
		HTTP: config.HTTPConfig{
			RequestTimeout: 5 * time.Second,
			AllowedOrigins: []string{"http://localhost:3000"},
			AuthRateLimit:  100,
			AuthRateBurst:  100,
		},
		Cookie:         config.CookieConfig{Name: "jwt", SameSite: "lax"},
		PublishableKey: "pk_test_123",
	})
	return env
}
