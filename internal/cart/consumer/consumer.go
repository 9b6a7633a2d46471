package consumer

import (
	"context"

	"github.com/fjod/storefront/internal/domain"
	"go.uber.org/zap"
)

// CartClearer empties a user's cart.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

// ClearOnOrderPlaced empties the buyer's cart once an order is placed.
type ClearOnOrderPlaced struct {
	carts CartClearer
	log   *zap.Logger
}

func NewClearOnOrderPlaced(carts CartClearer, log *zap.Logger) *ClearOnOrderPlaced {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClearOnOrderPlaced{carts: carts, log: log}
}

// Handle matches events.Handler.
func (h *ClearOnOrderPlaced) Handle(ctx context.Context, eventType string, event domain.OrderEvent) error {
	if eventType != domain.EventOrderPlaced || event.UserID == "" {
		return nil
	}
	if err := h.carts.ClearCart(ctx, event.UserID); err != nil {
		return err
	}
	h.log.Debug("cart cleared after order", zap.String("order_id", event.OrderID), zap.String("user_id", event.UserID))
	return nil
}
