package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/identity"
	ordersrepo "github.com/fjod/storefront/internal/orders/repository"
	orders "github.com/fjod/storefront/internal/orders/service"
	"github.com/fjod/storefront/internal/payment"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, customer orders.Customer, req orders.PlaceOrderRequest) (*orders.PlaceOrderResult, error)
	GetOrder(ctx context.Context, customer orders.Customer, id uuid.UUID) (*domain.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context, filter ordersrepo.ListFilter) (*orders.OrderPage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	IssuePayment(ctx context.Context, customer orders.Customer, orderID uuid.UUID) (*orders.PaymentSession, error)
	ConfirmPayment(ctx context.Context, customer orders.Customer, orderID uuid.UUID, intentID string) (*domain.Order, error)
	HandlePaymentEvent(ctx context.Context, ev *payment.WebhookEvent) error
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

type PlaceOrderResponseDTO struct {
	Order        *domain.Order `json:"order"`
	ClientSecret string        `json:"client_secret,omitempty"`
	Replayed     bool          `json:"replayed,omitempty"`
}

type ConfirmPaymentRequestDTO struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
}

// POST /orders
// An Idempotency-Key header takes precedence over idempotency_key in the body.
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req orders.PlaceOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		req.IdempotencyKey = key
	}

	res, err := h.orders.PlaceOrder(ctx, customer(claims), req)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, PlaceOrderResponseDTO{
		Order:        res.Order,
		ClientSecret: res.ClientSecret,
		Replayed:     res.Replayed,
	})
}

// GET /orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, customer(claims), id)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// POST /orders/{id}/pay
func (h *OrdersHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req ConfirmPaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		respondError(w, http.StatusBadRequest, "missing_payment_intent", "payment_intent_id is required")
		return
	}

	order, err := h.orders.ConfirmPayment(ctx, customer(claims), id, req.PaymentIntentID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// PUT /orders/{id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// GET /orders?status=&limit=&offset=
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	page, err := h.orders.ListOrders(ctx, ordersrepo.ListFilter{
		Status: domain.OrderStatus(strings.ToUpper(q.Get("status"))),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	if page.Orders == nil {
		page.Orders = []*domain.Order{}
	}

	respondJSON(w, http.StatusOK, page)
}

// GET /productsorder
func (h *OrdersHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	list, err := h.orders.ListUserOrders(ctx, claims.UserID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	// Must be a JSON array, not null
	if list == nil {
		list = []*domain.Order{}
	}

	respondJSON(w, http.StatusOK, list)
}

func customer(c *identity.Claims) orders.Customer {
	return orders.Customer{ID: c.UserID, Email: c.Email, IsAdmin: c.IsAdmin}
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
