package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"go.uber.org/zap"
)

var (
	ErrPaymentNotInitialized = errors.New("payment processor is not initialized")
	ErrInvalidClientSecret   = errors.New("malformed payment client secret")
	ErrPaymentNotConfirmed   = errors.New("card payment was not confirmed")
)

// CardDetails identifies the card and who pays with it. Raw card numbers never pass
// through this package: PaymentMethodID is a processor token (e.g. "pm_card_visa" in test mode).
type CardDetails struct {
	PaymentMethodID string
	Name            string
	Email           string
	Address         domain.ShippingAddress
}

type Confirmation struct {
	IntentID string
	Status   string
}

func (c *Confirmation) Succeeded() bool {
	return c.Status == string(stripe.PaymentIntentStatusSucceeded)
}

type CardConfirmer interface {
	ConfirmCard(ctx context.Context, clientSecret string, card CardDetails) (*Confirmation, error)
}

// IntentIDFromClientSecret extracts "pi_123" from "pi_123_secret_abc".
func IntentIDFromClientSecret(secret string) (string, error) {
	i := strings.Index(secret, "_secret_")
	if i <= 0 || !strings.HasPrefix(secret, "pi_") {
		return "", ErrInvalidClientSecret
	}
	return secret[:i], nil
}

// StripeCardConfirmer confirms payment intents with the publishable key, the way
// a browser or mobile SDK would.
type StripeCardConfirmer struct {
	publishableKey string
	intents        *paymentintent.Client
}

// NewStripeCardConfirmer uses the default Stripe API backend when backend is nil.
func NewStripeCardConfirmer(publishableKey string, backend stripe.Backend) *StripeCardConfirmer {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeCardConfirmer{
		publishableKey: publishableKey,
		intents:        &paymentintent.Client{B: backend, Key: publishableKey},
	}
}

func (c *StripeCardConfirmer) ConfirmCard(ctx context.Context, clientSecret string, card CardDetails) (*Confirmation, error) {
	if c == nil || !strings.HasPrefix(c.publishableKey, "pk_") {
		return nil, ErrPaymentNotInitialized
	}
	intentID, err := IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(card.PaymentMethodID),
	}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)
	if card.Email != "" {
		params.ReceiptEmail = stripe.String(card.Email)
	}
	if card.Name != "" {
		params.Shipping = &stripe.ShippingDetailsParams{
			Name:  stripe.String(card.Name),
			Phone: stripe.String(card.Address.Phone),
			Address: &stripe.AddressParams{
				Line1:      stripe.String(card.Address.Address),
				City:       stripe.String(card.Address.City),
				PostalCode: stripe.String(card.Address.PostalCode),
				Country:    stripe.String(card.Address.Country),
			},
		}
	}

	pi, err := c.intents.Confirm(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotConfirmed, stripeErr.Msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentNotConfirmed, err)
	}
	return &Confirmation{IntentID: pi.ID, Status: string(pi.Status)}, nil
}

type PaymentAPI interface {
	ProcessPayment(ctx context.Context, orderID uuid.UUID) (*PaymentSession, error)
	FinalizePayment(ctx context.Context, orderID uuid.UUID, intentID string) (*domain.Order, error)
}

// PaymentAdapter charges a pending online order: client secret, card confirmation,
// then server-side finalization. The order is only finalized after a succeeded confirmation.
type PaymentAdapter struct {
	api       PaymentAPI
	confirmer CardConfirmer
	log       *zap.Logger
}

func NewPaymentAdapter(api PaymentAPI, confirmer CardConfirmer, log *zap.Logger) *PaymentAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentAdapter{api: api, confirmer: confirmer, log: log.Named("payment")}
}

// Ready reports whether a card can be charged at all.
func (p *PaymentAdapter) Ready() bool {
	return p != nil && p.confirmer != nil
}

// Pay charges the order. An empty clientSecret is fetched from the backend first.
func (p *PaymentAdapter) Pay(ctx context.Context, orderID uuid.UUID, clientSecret string, card CardDetails) (*domain.Order, error) {
	if !p.Ready() {
		return nil, ErrPaymentNotInitialized
	}
	log := p.log.With(zap.String("order_id", orderID.String()))

	if clientSecret == "" {
		session, err := p.api.ProcessPayment(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("issue payment: %w", err)
		}
		clientSecret = session.ClientSecret
	}

	conf, err := p.confirmer.ConfirmCard(ctx, clientSecret, card)
	if err != nil {
		log.Warn("card confirmation failed", zap.Error(err))
		return nil, err
	}
	if !conf.Succeeded() {
		log.Warn("card confirmation did not succeed", zap.String("status", conf.Status))
		return nil, fmt.Errorf("%w: status %s", ErrPaymentNotConfirmed, conf.Status)
	}

	order, err := p.api.FinalizePayment(ctx, orderID, conf.IntentID)
	if err != nil {
		// the webhook or the reconciler will still finalize a succeeded charge
		log.Error("finalize payment failed", zap.String("payment_intent_id", conf.IntentID), zap.Error(err))
		return nil, fmt.Errorf("finalize payment: %w", err)
	}
	log.Info("order paid", zap.String("payment_intent_id", conf.IntentID))
	return order, nil
}
