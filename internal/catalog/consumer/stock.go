package consumer

import (
	"context"

	"github.com/fjod/storefront/internal/catalog/repository"
	"github.com/fjod/storefront/internal/domain"
	"go.uber.org/zap"
)

// StockAdjuster applies a stock change once per order event.
type StockAdjuster interface {
	AdjustStock(ctx context.Context, orderID, eventType string, deltas []repository.StockDelta, sign int) (bool, error)
}

// StockHandler takes stock when an order is placed and returns it when the
// order is cancelled.
type StockHandler struct {
	stock StockAdjuster
	log   *zap.Logger
}

func NewStockHandler(stock StockAdjuster, log *zap.Logger) *StockHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockHandler{stock: stock, log: log.Named("stock")}
}

// Handle matches events.Handler.
func (h *StockHandler) Handle(ctx context.Context, eventType string, event domain.OrderEvent) error {
	var sign int
	switch eventType {
	case domain.EventOrderPlaced:
		sign = -1
	case domain.EventOrderCancelled:
		sign = 1
	default:
		return nil
	}

	deltas := make([]repository.StockDelta, 0, len(event.Items))
	for _, item := range event.Items {
		deltas = append(deltas, repository.StockDelta{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	applied, err := h.stock.AdjustStock(ctx, event.OrderID, eventType, deltas, sign)
	if err != nil {
		return err
	}
	if !applied {
		h.log.Debug("stock already adjusted", zap.String("order_id", event.OrderID), zap.String("event_type", eventType))
		return nil
	}
	h.log.Info("stock adjusted",
		zap.String("order_id", event.OrderID),
		zap.String("event_type", eventType),
		zap.Int("lines", len(deltas)))
	return nil
}
