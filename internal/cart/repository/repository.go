package repository

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository defines the cart data operations the service depends on.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddItem stores item, replacing the line for the same product if one exists.
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID string, productID int64) error
	// ClearCart empties the item list but keeps the cart document.
	ClearCart(ctx context.Context, userID string) error
}
