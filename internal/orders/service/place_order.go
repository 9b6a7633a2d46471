package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/orders/repository"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/validation"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceOrder turns the customer's cart into an order priced from the current catalog.
// Cash-on-delivery orders are complete once written. Online orders are written as
// PENDING_PAYMENT and carry the client secret of a fresh payment intent.
func (s *OrderService) PlaceOrder(ctx context.Context, customer Customer, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("user_id", customer.ID))

	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.PaymentMode == domain.PaymentModeOnline && s.gateway == nil {
		return nil, payment.ErrNotConfigured
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.GetOrderByIdempotencyKey(ctx, customer.ID, req.IdempotencyKey)
		if err != nil && !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			log.Info("duplicate order request",
				zap.String("idempotency_key", req.IdempotencyKey), zap.String("order_id", existing.ID.String()))
			return s.replay(ctx, existing)
		}
	}

	cart, err := s.carts.GetCart(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	lines, err := s.priceLines(ctx, cart)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          customer.ID,
		CustomerEmail:   customer.Email,
		IdempotencyKey:  req.IdempotencyKey,
		ShippingAddress: trimAddress(req.ShippingAddress),
		LineItems:       lines,
		Totals:          s.opts.Pricing.Compute(lines),
		Currency:        s.opts.Currency,
		PaymentMode:     req.PaymentMode,
		PaymentStatus:   domain.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var event *repository.OutboxEvent
	if req.PaymentMode == domain.PaymentModeCashOnDelivery {
		order.OrderStatus = domain.OrderStatusProcessing
		if event, err = s.newEvent(order, domain.EventOrderPlaced); err != nil {
			return nil, err
		}
	} else {
		order.OrderStatus = domain.OrderStatusPendingPayment
	}

	if err := s.repo.CreateOrder(ctx, order, event); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			// a concurrent request with the same key won the insert
			existing, errGet := s.repo.GetOrderByIdempotencyKey(ctx, customer.ID, req.IdempotencyKey)
			if errGet != nil {
				return nil, fmt.Errorf("load order for idempotency key: %w", errGet)
			}
			return s.replay(ctx, existing)
		}
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	s.metrics.OrderPlaced(string(order.PaymentMode))
	log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_mode", string(order.PaymentMode)),
		zap.String("grand_total", order.GrandTotal.StringFixed(2)))

	result := &PlaceOrderResult{Order: order}
	if order.AwaitingPayment() {
		intent, err := s.ensureIntent(ctx, order)
		if err != nil {
			// the order stays pending: a retry with the same key or /payment/process can recover it
			return nil, err
		}
		result.ClientSecret = intent.ClientSecret
	}
	return result, nil
}

func (s *OrderService) replay(ctx context.Context, order *domain.Order) (*PlaceOrderResult, error) {
	result := &PlaceOrderResult{Order: order, Replayed: true}
	if order.AwaitingPayment() && s.gateway != nil {
		intent, err := s.ensureIntent(ctx, order)
		if err != nil {
			return nil, err
		}
		result.ClientSecret = intent.ClientSecret
	}
	return result, nil
}

// priceLines copies every cart line at the product's current price and checks stock.
func (s *OrderService) priceLines(ctx context.Context, cart *domain.Cart) ([]domain.LineItem, error) {
	lines := make([]domain.LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product %d: %w", item.ProductID, err)
		}
		if !product.InStock(item.Quantity) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientStock, product.Name)
		}

		line := item.LineItem()
		line.Name = product.Name
		line.UnitPrice = domain.RoundMoney(product.Price)
		if product.ImageURL != "" {
			line.ImageURL = product.ImageURL
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *OrderService) newEvent(order *domain.Order, eventType string) (*repository.OutboxEvent, error) {
	now := s.now()
	payload, err := json.Marshal(domain.NewOrderEvent(order, now))
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return &repository.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: order.ID.String(),
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   now,
	}, nil
}

func trimAddress(a domain.ShippingAddress) domain.ShippingAddress {
	return domain.ShippingAddress{
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
		Phone:      strings.TrimSpace(a.Phone),
	}
}
