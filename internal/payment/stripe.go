package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/circuitbreaker"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"go.uber.org/zap"
)

type StripeGateway struct {
	intents  *paymentintent.Client
	breaker  *circuitbreaker.Breaker[*stripe.PaymentIntent]
	currency string
	log      *zap.Logger
}

// NewStripeGateway uses the default Stripe API backend when backend is nil.
func NewStripeGateway(secretKey, currency string, backend stripe.Backend, log *zap.Logger) *StripeGateway {
	if log == nil {
		log = zap.NewNop()
	}
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	cfg := circuitbreaker.DefaultConfig("stripe")
	cfg.IsSuccessful = isClientError

	return &StripeGateway{
		intents:  &paymentintent.Client{B: backend, Key: secretKey},
		breaker:  circuitbreaker.New[*stripe.PaymentIntent](cfg, log),
		currency: strings.ToLower(currency),
		log:      log.Named("stripe"),
	}
}

// CreateIntent is idempotent per order: retries for the same order return the same intent.
func (g *StripeGateway) CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
	currency := g.currency
	if in.Currency != "" {
		currency = strings.ToLower(in.Currency)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(domain.MinorUnits(in.Amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if in.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(in.CustomerEmail)
	}
	params.AddMetadata("order_id", in.OrderID)
	params.SetIdempotencyKey("order-" + in.OrderID)
	params.Context = ctx

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.intents.New(params)
	})
	if err != nil {
		g.log.Error("failed to create payment intent", zap.String("order_id", in.OrderID), zap.Error(err))
		return nil, wrap("create payment intent", err)
	}

	g.log.Info("created payment intent", zap.String("order_id", in.OrderID), zap.String("intent_id", pi.ID))
	return toIntent(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.intents.Get(id, params)
	})
	if err != nil {
		return nil, wrap("get payment intent", err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	pi, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.intents.Cancel(id, params)
	})
	if err != nil {
		return nil, wrap("cancel payment intent", err)
	}
	g.log.Info("cancelled payment intent", zap.String("intent_id", id))
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		OrderID:      pi.Metadata["order_id"],
	}
	if pi.LastPaymentError != nil {
		in.FailureMessage = pi.LastPaymentError.Msg
	}
	return in
}

func wrap(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
		return fmt.Errorf("%s: %w: %s", op, ErrDeclined, se.Msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isClientError keeps declined cards and bad requests from tripping the breaker.
func isClientError(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != 429
}
