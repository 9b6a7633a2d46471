package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, productID int64) (*domain.Cart, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

// POST /cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if !domain.ValidQuantity(req.Quantity) {
		respondError(w, http.StatusBadRequest, "invalid_quantity", domain.ErrInvalidQuantity.Error())
		return
	}

	cart, err := h.carts.AddItem(ctx, claims.UserID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cart)
}

// GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.carts.GetCart(ctx, claims.UserID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}

	respondJSON(w, http.StatusOK, cart)
}

// PUT /cart/update/{itemId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, ok := productIDParam(w, r, "itemId")
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if !domain.ValidQuantity(req.Quantity) {
		respondError(w, http.StatusBadRequest, "invalid_quantity", domain.ErrInvalidQuantity.Error())
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, claims.UserID, productID, req.Quantity)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// DELETE /products/remove/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, claims.UserID, productID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}

	respondJSON(w, http.StatusOK, cart)
}
