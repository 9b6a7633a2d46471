package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	cartrepo "github.com/fjod/storefront/internal/cart/repository"
	catalogrepo "github.com/fjod/storefront/internal/catalog/repository"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/identity"
	ordersrepo "github.com/fjod/storefront/internal/orders/repository"
	orders "github.com/fjod/storefront/internal/orders/service"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/validation"
	"github.com/fjod/storefront/pkg/circuitbreaker"
	"github.com/fjod/storefront/pkg/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts a service error to an HTTP status and error code.
// Unmapped errors are logged and reported as 500 without their text.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation failed",
			Code:   "validation_failed",
			Fields: verr.Fields,
		})
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, ordersrepo.ErrOrderNotFound),
		errors.Is(err, cartrepo.ErrItemNotFound),
		errors.Is(err, cartrepo.ErrCartNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		httpStatus = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, domain.ErrInvalidQuantity):
		httpStatus = http.StatusBadRequest
		code = "invalid_quantity"
	case errors.Is(err, orders.ErrEmptyCart):
		httpStatus = http.StatusBadRequest
		code = "empty_cart"
	case errors.Is(err, identity.ErrInvalidCredentials):
		httpStatus = http.StatusUnauthorized
		code = "invalid_credentials"
	case errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrExpiredToken),
		errors.Is(err, identity.ErrRevokedToken):
		httpStatus = http.StatusUnauthorized
		code = "unauthenticated"
	case errors.Is(err, orders.ErrForbidden):
		httpStatus = http.StatusForbidden
		code = "permission_denied"
	case errors.Is(err, identity.ErrEmailTaken),
		errors.Is(err, catalogrepo.ErrAlreadyReviewed):
		httpStatus = http.StatusConflict
		code = "already_exists"
	case errors.Is(err, ordersrepo.ErrStatusConflict),
		errors.Is(err, orders.ErrIllegalTransition),
		errors.Is(err, orders.ErrNotAwaitingPayment):
		httpStatus = http.StatusConflict
		code = "invalid_state"
	case errors.Is(err, domain.ErrInsufficientStock):
		httpStatus = http.StatusConflict
		code = "insufficient_stock"
	case errors.Is(err, orders.ErrPaymentNotSucceeded),
		errors.Is(err, orders.ErrPaymentMismatch),
		errors.Is(err, payment.ErrDeclined):
		httpStatus = http.StatusPaymentRequired
		code = "payment_failed"
	case errors.Is(err, payment.ErrNotConfigured):
		httpStatus = http.StatusServiceUnavailable
		code = "payments_disabled"
	case errors.Is(err, circuitbreaker.ErrUnavailable):
		httpStatus = http.StatusServiceUnavailable
		code = "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		logger.FromContext(ctx, zap.L()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
