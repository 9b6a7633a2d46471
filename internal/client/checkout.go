package client

import (
	"context"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"go.uber.org/zap"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*PlacedOrder, error)
	GetCart(ctx context.Context) (*domain.Cart, error)
}

// CheckoutResult carries the order even when payment failed, so the caller can retry
// payment for the pending order instead of placing a new one.
type CheckoutResult struct {
	Order *domain.Order
	Paid  bool
}

// Checkout submits the composed draft. Cash-on-delivery orders are done once written;
// online orders go through the PaymentAdapter.
type Checkout struct {
	api      OrderPlacer
	composer *Composer
	editor   *QuantityEditor
	store    *CartStore
	payments *PaymentAdapter
	log      *zap.Logger
}

func NewCheckout(api OrderPlacer, store *CartStore, composer *Composer, editor *QuantityEditor, payments *PaymentAdapter, log *zap.Logger) *Checkout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checkout{
		api:      api,
		composer: composer,
		editor:   editor,
		store:    store,
		payments: payments,
		log:      log.Named("checkout"),
	}
}

func (c *Checkout) Submit(ctx context.Context, card CardDetails) (*CheckoutResult, error) {
	if c.editor != nil {
		c.editor.Flush()
	}
	if err := c.composer.Validate(); err != nil {
		return nil, err
	}
	draft := c.composer.Draft()
	online := draft.PaymentMode == domain.PaymentModeOnline
	if online && !c.payments.Ready() {
		return nil, ErrPaymentNotInitialized
	}

	placed, err := c.api.PlaceOrder(ctx, OrderRequestFromDraft(draft))
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	res := &CheckoutResult{Order: placed.Order, Paid: placed.Order.IsPaid()}
	log := c.log.With(zap.String("order_id", placed.Order.ID.String()), zap.Bool("replayed", placed.Replayed))

	if online && placed.Order.AwaitingPayment() {
		order, err := c.payments.Pay(ctx, placed.Order.ID, placed.ClientSecret, card)
		if err != nil {
			return res, err
		}
		res.Order = order
		res.Paid = order.IsPaid()
	}

	log.Info("order placed", zap.String("payment_mode", string(draft.PaymentMode)))
	c.composer.Reset()
	c.refreshCart(ctx)
	return res, nil
}

// the server clears the cart asynchronously once the order.placed event is consumed
func (c *Checkout) refreshCart(ctx context.Context) {
	cart, err := c.api.GetCart(ctx)
	if err != nil {
		c.log.Warn("refresh cart after checkout failed", zap.Error(err))
		return
	}
	c.store.Replace(cart)
}
