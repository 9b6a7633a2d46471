package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kafka event types, carried in the event_type header.
const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is the payload published for placed and cancelled orders.
type OrderEvent struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Items         []LineItem      `json:"items"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	Currency      string          `json:"currency"`
	PaymentMode   PaymentMode     `json:"payment_mode"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewOrderEvent(o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:       o.ID.String(),
		UserID:        o.UserID,
		CustomerEmail: o.CustomerEmail,
		Items:         o.LineItems,
		GrandTotal:    o.GrandTotal,
		Currency:      o.Currency,
		PaymentMode:   o.PaymentMode,
		OccurredAt:    at,
	}
}
