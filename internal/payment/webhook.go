package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// Webhook event types the orders service handles.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventIntentCanceled  = "payment_intent.canceled"
)

type WebhookEvent struct {
	ID     string
	Type   string
	Intent *Intent
}

// Handled reports whether the event carries a payment intent the orders service acts on.
func (e *WebhookEvent) Handled() bool {
	return e.Intent != nil
}

type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Parse checks the Stripe-Signature header and decodes payment intent events.
// Other event types are returned without an Intent.
func (v *WebhookVerifier) Parse(payload []byte, signature string) (*WebhookEvent, error) {
	if v.secret == "" {
		return nil, ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case EventIntentSucceeded, EventIntentFailed, EventIntentCanceled:
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidEvent)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	out.Intent = toIntent(&pi)
	return out, nil
}
