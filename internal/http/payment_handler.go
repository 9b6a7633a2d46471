package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxWebhookBody matches the limit Stripe documents for event payloads.
const maxWebhookBody = 65536

type WebhookParser interface {
	Parse(payload []byte, signature string) (*payment.WebhookEvent, error)
}

type PaymentHandler struct {
	orders         OrderService
	webhooks       WebhookParser
	publishableKey string
	timeout        time.Duration
}

func NewPaymentHandler(orders OrderService, webhooks WebhookParser, publishableKey string, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		orders:         orders,
		webhooks:       webhooks,
		publishableKey: publishableKey,
		timeout:        timeout,
	}
}

type ProcessPaymentRequestDTO struct {
	OrderID string `json:"order_id"`
}

type ProcessPaymentResponseDTO struct {
	OrderID         string `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	PublishableKey  string `json:"publishable_key,omitempty"`
}

// POST /payment/process
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req ProcessPaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	session, err := h.orders.IssuePayment(ctx, customer(claims), orderID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, ProcessPaymentResponseDTO{
		OrderID:         session.Order.ID.String(),
		PaymentIntentID: session.IntentID,
		ClientSecret:    session.ClientSecret,
		PublishableKey:  h.publishableKey,
	})
}

// POST /payment/webhook
// A non-2xx response makes Stripe redeliver the event.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	log := logger.FromContext(ctx, zap.L())

	if h.webhooks == nil {
		respondError(w, http.StatusServiceUnavailable, "payments_disabled", "webhooks are not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
		return
	}

	event, err := h.webhooks.Parse(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrInvalidEvent):
		log.Warn("rejected webhook", zap.Error(err))
		respondError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
		return
	case err != nil:
		handleServiceError(ctx, w, err)
		return
	}

	if event.Handled() {
		if err := h.orders.HandlePaymentEvent(ctx, event); err != nil {
			log.Error("failed to handle payment event",
				zap.String("event_id", event.ID), zap.String("event_type", event.Type), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal_error", "event not processed")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
