package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testWebhookSecret = "whsec_test_123456789"

func signedEvent(t *testing.T, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  testWebhookSecret,
	})
	return signed.Payload, signed.Header
}

func TestWebhookVerifier_PaymentIntentSucceeded(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)
	payload, header := signedEvent(t, EventIntentSucceeded, map[string]any{
		"id":       "pi_123",
		"object":   "payment_intent",
		"status":   "succeeded",
		"amount":   1000,
		"metadata": map[string]string{"order_id": "order-1"},
	})

	ev, err := v.Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.True(t, ev.Handled())
	assert.Equal(t, "pi_123", ev.Intent.ID)
	assert.Equal(t, "order-1", ev.Intent.OrderID)
	assert.True(t, ev.Intent.Succeeded())
}

func TestWebhookVerifier_FailedCarriesMessage(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)
	payload, header := signedEvent(t, EventIntentFailed, map[string]any{
		"id":                 "pi_123",
		"object":             "payment_intent",
		"status":             "requires_payment_method",
		"metadata":           map[string]string{"order_id": "order-1"},
		"last_payment_error": map[string]any{"type": "card_error", "message": "Your card was declined."},
	})

	ev, err := v.Parse(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "Your card was declined.", ev.Intent.FailureMessage)
}

func TestWebhookVerifier_UnhandledType(t *testing.T) {
	v := NewWebhookVerifier(testWebhookSecret)
	payload, header := signedEvent(t, "customer.created", map[string]any{"id": "cus_1", "object": "customer"})

	ev, err := v.Parse(payload, header)
	require.NoError(t, err)
	assert.False(t, ev.Handled())
}

func TestWebhookVerifier_Rejects(t *testing.T) {
	payload, header := signedEvent(t, EventIntentSucceeded, map[string]any{"id": "pi_1", "object": "payment_intent"})

	_, err := NewWebhookVerifier("whsec_other").Parse(payload, header)
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = NewWebhookVerifier(testWebhookSecret).Parse(payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = NewWebhookVerifier("").Parse(payload, header)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
