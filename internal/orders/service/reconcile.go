package service

import (
	"context"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/payment"
	"go.uber.org/zap"
)

const reconcileBatch = 50

// ReconcileStale resolves online orders stuck in PENDING_PAYMENT past the TTL: a charge
// that succeeded finalizes the order, anything else cancels it. Intents still processing
// are left for the next sweep. Returns the number of orders resolved.
func (s *OrderService) ReconcileStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.opts.PendingPaymentTTL)
	orders, err := s.repo.ListStalePendingPayments(ctx, cutoff, reconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale pending orders: %w", err)
	}

	resolved := 0
	for _, order := range orders {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		ok, err := s.reconcileOne(ctx, order)
		if err != nil {
			s.log.Error("failed to reconcile order", zap.String("order_id", order.ID.String()), zap.Error(err))
			continue
		}
		if ok {
			resolved++
		}
	}
	return resolved, nil
}

func (s *OrderService) reconcileOne(ctx context.Context, order *domain.Order) (bool, error) {
	if order.PaymentIntentID == "" || s.gateway == nil {
		_, err := s.cancelPending(ctx, order, false)
		return err == nil, err
	}

	intent, err := s.gateway.GetIntent(ctx, order.PaymentIntentID)
	if err != nil {
		return false, err
	}

	switch intent.Status {
	case payment.StatusSucceeded:
		_, err = s.finalize(ctx, order, intent)
	case payment.StatusProcessing:
		return false, nil
	default:
		_, err = s.cancelPending(ctx, order, intent.Status != payment.StatusCanceled)
	}
	if err != nil {
		return false, err
	}
	s.log.Info("reconciled stale order",
		zap.String("order_id", order.ID.String()), zap.String("intent_status", intent.Status))
	return true, nil
}
