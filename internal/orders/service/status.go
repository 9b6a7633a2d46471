package service

import (
	"context"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/orders/repository"
	"github.com/fjod/storefront/internal/validation"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetOrder returns an order to its owner or to an admin.
func (s *OrderService) GetOrder(ctx context.Context, customer Customer, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != customer.ID && !customer.IsAdmin {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

func (s *OrderService) ListOrders(ctx context.Context, filter repository.ListFilter) (*OrderPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validation.NewError("status", "Invalid value")
	}
	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Total: total}, nil
}

// UpdateStatus applies an admin transition. Paying a pending online order is not an
// admin action: it only happens through a succeeded payment.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, validation.NewError("status", "Invalid value")
	}

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	from := order.OrderStatus
	if !domain.CanTransitionTo(from, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, next)
	}
	if from == domain.OrderStatusPendingPayment {
		if next != domain.OrderStatusCancelled {
			return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, next)
		}
		return s.cancelPending(ctx, order, true)
	}

	now := s.now()
	updated := *order
	updated.OrderStatus = next
	updated.UpdatedAt = now

	var event *repository.OutboxEvent
	switch next {
	case domain.OrderStatusShipped:
		updated.ShippedAt = &now
	case domain.OrderStatusDelivered:
		updated.DeliveredAt = &now
		if updated.PaymentMode == domain.PaymentModeCashOnDelivery && !updated.IsPaid() {
			updated.PaymentStatus = domain.PaymentStatusPaid
			updated.PaidAt = &now
		}
	case domain.OrderStatusCancelled:
		updated.CancelledAt = &now
		if event, err = s.newEvent(&updated, domain.EventOrderCancelled); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateStatus(ctx, &updated, from, event); err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.log).Info("order status updated",
		zap.String("order_id", id.String()), zap.String("from", from.String()), zap.String("to", next.String()))
	return &updated, nil
}
