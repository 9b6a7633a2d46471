package service

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/orders/repository"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/pricing"
	"go.uber.org/zap"
)

type CartReader interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

// Customer is the authenticated caller.
type Customer struct {
	ID      string
	Email   string
	IsAdmin bool
}

type PlaceOrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMode     domain.PaymentMode     `json:"payment_mode" validate:"oneof=ONLINE COD"`
	IdempotencyKey  string                 `json:"idempotency_key,omitempty" validate:"max=128"`
}

type PlaceOrderResult struct {
	Order *domain.Order
	// ClientSecret is set for online orders still awaiting payment.
	ClientSecret string
	// Replayed is true when an earlier order with the same idempotency key was returned.
	Replayed bool
}

type PaymentSession struct {
	Order        *domain.Order
	IntentID     string
	ClientSecret string
}

type OrderPage struct {
	Orders []*domain.Order `json:"orders"`
	Total  int             `json:"total"`
}

type Options struct {
	Pricing  pricing.Policy
	Currency string
	// PendingPaymentTTL is how long an online order may wait for its charge before the reconciler steps in.
	PendingPaymentTTL time.Duration
}

type OrderService struct {
	repo     repository.OrderRepository
	carts    CartReader
	products ProductReader
	// gateway is nil when online payments are disabled.
	gateway payment.Gateway
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOrderService(
	repo repository.OrderRepository,
	carts CartReader,
	products ProductReader,
	gateway payment.Gateway,
	opts Options,
	log *zap.Logger,
	m *metrics.Metrics) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.PendingPaymentTTL <= 0 {
		opts.PendingPaymentTTL = 30 * time.Minute
	}
	return &OrderService{
		repo:     repo,
		carts:    carts,
		products: products,
		gateway:  gateway,
		opts:     opts,
		log:      log.Named("orders"),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OnlinePaymentsEnabled reports whether a payment gateway is configured.
func (s *OrderService) OnlinePaymentsEnabled() bool {
	return s.gateway != nil
}
