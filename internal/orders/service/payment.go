package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/orders/repository"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IssuePayment returns the client secret the customer confirms the card charge with.
func (s *OrderService) IssuePayment(ctx context.Context, customer Customer, orderID uuid.UUID) (*PaymentSession, error) {
	if s.gateway == nil {
		return nil, payment.ErrNotConfigured
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != customer.ID {
		return nil, ErrForbidden
	}
	if !order.AwaitingPayment() {
		return nil, ErrNotAwaitingPayment
	}

	intent, err := s.ensureIntent(ctx, order)
	if err != nil {
		return nil, err
	}
	return &PaymentSession{Order: order, IntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// ensureIntent reuses the order's intent when one exists, otherwise creates and stores one.
func (s *OrderService) ensureIntent(ctx context.Context, order *domain.Order) (*payment.Intent, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("order_id", order.ID.String()))

	if order.PaymentIntentID != "" {
		intent, err := s.gateway.GetIntent(ctx, order.PaymentIntentID)
		if err != nil {
			return nil, fmt.Errorf("get payment intent: %w", err)
		}
		if intent.Status == payment.StatusCanceled {
			return nil, ErrNotAwaitingPayment
		}
		return intent, nil
	}

	intent, err := s.gateway.CreateIntent(ctx, payment.CreateIntentInput{
		OrderID:       order.ID.String(),
		Amount:        order.GrandTotal,
		Currency:      order.Currency,
		CustomerEmail: order.CustomerEmail,
	})
	if err != nil {
		s.metrics.PaymentOutcome("error")
		log.Error("failed to create payment intent", zap.Error(err))
		return nil, err
	}

	if err := s.repo.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		log.Error("failed to store payment intent", zap.String("intent_id", intent.ID), zap.Error(err))
		return nil, err
	}
	order.PaymentIntentID = intent.ID
	return intent, nil
}

// ConfirmPayment finalizes an online order after the customer confirmed the card charge.
// The intent is re-read from the gateway; the client's word is never trusted.
func (s *OrderService) ConfirmPayment(ctx context.Context, customer Customer, orderID uuid.UUID, intentID string) (*domain.Order, error) {
	if s.gateway == nil {
		return nil, payment.ErrNotConfigured
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != customer.ID {
		return nil, ErrForbidden
	}
	if order.PaymentMode == domain.PaymentModeOnline && order.IsPaid() {
		return order, nil
	}
	if !order.AwaitingPayment() {
		return nil, ErrNotAwaitingPayment
	}
	if order.PaymentIntentID == "" || (intentID != "" && intentID != order.PaymentIntentID) {
		return nil, ErrPaymentMismatch
	}

	intent, err := s.gateway.GetIntent(ctx, order.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	if !intent.Succeeded() {
		s.metrics.PaymentOutcome("failed")
		logger.FromContext(ctx, s.log).Info("payment not succeeded",
			zap.String("order_id", order.ID.String()), zap.String("intent_status", intent.Status))
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotSucceeded, intent.Status)
	}

	return s.finalize(ctx, order, intent)
}

// HandlePaymentEvent applies a verified webhook event. Events for unknown orders are ignored.
func (s *OrderService) HandlePaymentEvent(ctx context.Context, ev *payment.WebhookEvent) error {
	log := logger.FromContext(ctx, s.log).With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	if !ev.Handled() {
		log.Debug("ignoring payment event")
		return nil
	}

	orderID, err := uuid.Parse(ev.Intent.OrderID)
	if err != nil {
		log.Warn("payment event without order id", zap.String("intent_id", ev.Intent.ID))
		return nil
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		log.Warn("payment event for unknown order", zap.String("order_id", orderID.String()))
		return nil
	}
	if err != nil {
		return err
	}
	if !order.AwaitingPayment() {
		log.Debug("order no longer awaiting payment", zap.String("order_status", order.OrderStatus.String()))
		return nil
	}
	if order.PaymentIntentID != "" && order.PaymentIntentID != ev.Intent.ID {
		log.Warn("payment event for a different intent",
			zap.String("order_id", orderID.String()), zap.String("intent_id", ev.Intent.ID))
		return nil
	}

	switch ev.Type {
	case payment.EventIntentSucceeded:
		_, err = s.finalize(ctx, order, ev.Intent)
	case payment.EventIntentFailed:
		err = s.markPaymentFailed(ctx, order, ev.Intent.FailureMessage)
	case payment.EventIntentCanceled:
		_, err = s.cancelPending(ctx, order, false)
	}
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil
	}
	return err
}

// finalize marks a pending online order paid and publishes order.placed.
// Calling it again for an order another path already finalized returns that order.
func (s *OrderService) finalize(ctx context.Context, order *domain.Order, intent *payment.Intent) (*domain.Order, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("order_id", order.ID.String()))

	if intent.OrderID != order.ID.String() || intent.Amount != domain.MinorUnits(order.GrandTotal) {
		log.Error("payment intent does not match order",
			zap.String("intent_id", intent.ID), zap.String("intent_order_id", intent.OrderID), zap.Int64("amount", intent.Amount))
		return nil, ErrPaymentMismatch
	}

	now := s.now()
	paid := *order
	paid.PaymentStatus = domain.PaymentStatusPaid
	paid.OrderStatus = domain.OrderStatusProcessing
	paid.PaidAt = &now
	paid.UpdatedAt = now

	event, err := s.newEvent(&paid, domain.EventOrderPlaced)
	if err != nil {
		return nil, err
	}

	err = s.repo.UpdateStatus(ctx, &paid, domain.OrderStatusPendingPayment, event)
	if errors.Is(err, repository.ErrStatusConflict) {
		current, errGet := s.repo.GetOrder(ctx, order.ID)
		if errGet != nil {
			return nil, errGet
		}
		if current.IsPaid() && current.OrderStatus != domain.OrderStatusCancelled {
			return current, nil
		}
		return nil, ErrNotAwaitingPayment
	}
	if err != nil {
		log.Error("failed to finalize order", zap.Error(err))
		return nil, err
	}

	s.metrics.PaymentOutcome("succeeded")
	log.Info("order paid", zap.String("intent_id", intent.ID))
	return &paid, nil
}

func (s *OrderService) markPaymentFailed(ctx context.Context, order *domain.Order, reason string) error {
	failed := *order
	failed.PaymentStatus = domain.PaymentStatusFailed
	failed.UpdatedAt = s.now()

	if err := s.repo.UpdateStatus(ctx, &failed, domain.OrderStatusPendingPayment, nil); err != nil {
		return err
	}
	s.metrics.PaymentOutcome("failed")
	logger.FromContext(ctx, s.log).Info("payment failed",
		zap.String("order_id", order.ID.String()), zap.String("reason", reason))
	return nil
}

// cancelPending cancels an order that never got paid. No event is published since
// stock is only taken once an order is placed.
func (s *OrderService) cancelPending(ctx context.Context, order *domain.Order, cancelIntent bool) (*domain.Order, error) {
	log := logger.FromContext(ctx, s.log).With(zap.String("order_id", order.ID.String()))

	if cancelIntent && order.PaymentIntentID != "" && s.gateway != nil {
		if _, err := s.gateway.CancelIntent(ctx, order.PaymentIntentID); err != nil {
			log.Warn("failed to cancel payment intent", zap.String("intent_id", order.PaymentIntentID), zap.Error(err))
		}
	}

	now := s.now()
	cancelled := *order
	cancelled.OrderStatus = domain.OrderStatusCancelled
	cancelled.CancelledAt = &now
	cancelled.UpdatedAt = now

	if err := s.repo.UpdateStatus(ctx, &cancelled, domain.OrderStatusPendingPayment, nil); err != nil {
		return nil, err
	}
	s.metrics.PaymentOutcome("cancelled")
	log.Info("pending order cancelled")
	return &cancelled, nil
}
