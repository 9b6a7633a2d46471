package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	PaymentModeOnline         PaymentMode = "ONLINE"
	PaymentModeCashOnDelivery PaymentMode = "COD"
)

func (m PaymentMode) Valid() bool {
	return m == PaymentModeOnline || m == PaymentModeCashOnDelivery
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

type ShippingAddress struct {
	Address    string `json:"address" validate:"notblank"`
	City       string `json:"city" validate:"notblank"`
	PostalCode string `json:"postal_code" validate:"notblank"`
	Country    string `json:"country" validate:"notblank"`
	Phone      string `json:"phone" validate:"notblank"`
}

// LineItem is a frozen copy of a cart line at order time.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals always satisfy GrandTotal = ItemsTotal + Tax + Shipping.
type Totals struct {
	ItemsTotal decimal.Decimal `json:"items_total"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          string          `json:"user_id"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	LineItems       []LineItem      `json:"line_items"`
	Totals
	Currency        string        `json:"currency"`
	PaymentMode     PaymentMode   `json:"payment_mode"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	OrderStatus     OrderStatus   `json:"order_status"`
	PaymentIntentID string        `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	ShippedAt       *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time    `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// AwaitingPayment reports whether the order is an online order still waiting for its charge.
func (o *Order) AwaitingPayment() bool {
	return o.PaymentMode == PaymentModeOnline && o.OrderStatus == OrderStatusPendingPayment
}
