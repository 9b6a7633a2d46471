// Package payment talks to the card-payment processor on behalf of the orders service.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured = errors.New("online payments are not configured")
	ErrDeclined      = errors.New("payment declined")
	ErrInvalidEvent  = errors.New("invalid webhook event")
)

// Intent statuses the orders service acts on.
const (
	StatusSucceeded             = "succeeded"
	StatusProcessing            = "processing"
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresAction        = "requires_action"
	StatusCanceled              = "canceled"
)

// Intent is a processor-side charge attempt for one order.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	OrderID      string
	// FailureMessage is the processor's last error, if any.
	FailureMessage string
}

func (i *Intent) Succeeded() bool { return i.Status == StatusSucceeded }

type CreateIntentInput struct {
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
}

// Gateway creates and inspects payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) (*Intent, error)
}
