package client

import (
	"errors"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/validation"
	"github.com/google/uuid"
)

// Draft is an order being composed from the cart.
type Draft struct {
	Address     domain.ShippingAddress
	PaymentMode domain.PaymentMode
	LineItems   []domain.LineItem
	Totals      domain.Totals
	// IdempotencyKey is fixed for the life of the draft so resubmits never create a second order.
	IdempotencyKey string
}

// Composer builds a Draft from the cart store and validates it locally.
type Composer struct {
	store *CartStore
	draft Draft
}

func NewComposer(store *CartStore) *Composer {
	c := &Composer{store: store}
	c.Reset()
	return c
}

// Reset starts a new draft with a fresh idempotency key.
func (c *Composer) Reset() {
	c.draft = Draft{
		PaymentMode:    domain.PaymentModeCashOnDelivery,
		IdempotencyKey: uuid.NewString(),
	}
	c.Refresh()
}

// Refresh re-reads the cart lines and recomputes the totals.
func (c *Composer) Refresh() {
	c.draft.LineItems = c.store.LineItems()
	c.draft.Totals = c.store.Totals()
}

func (c *Composer) SetAddress(a domain.ShippingAddress) {
	c.draft.Address = domain.ShippingAddress{
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
		Phone:      strings.TrimSpace(a.Phone),
	}
}

func (c *Composer) SetPaymentMode(m domain.PaymentMode) {
	c.draft.PaymentMode = m
}

func (c *Composer) Draft() Draft {
	c.Refresh()
	return c.draft
}

// Validate reports every invalid field at once, keyed the way the API reports them.
func (c *Composer) Validate() error {
	d := c.Draft()
	var verr *validation.Error
	if err := validation.Struct(OrderRequestFromDraft(d)); err != nil && !errors.As(err, &verr) {
		return err
	}
	if !d.PaymentMode.Valid() {
		verr = addField(verr, "payment_mode", "Must be one of: ONLINE COD")
	}
	if len(d.LineItems) == 0 {
		verr = addField(verr, "cart", "Cart is empty")
	}
	if verr == nil {
		return nil
	}
	return verr
}

func OrderRequestFromDraft(d Draft) OrderRequest {
	return OrderRequest{
		ShippingAddress: d.Address,
		PaymentMode:     d.PaymentMode,
		IdempotencyKey:  d.IdempotencyKey,
	}
}

func addField(verr *validation.Error, field, msg string) *validation.Error {
	if verr == nil {
		verr = &validation.Error{Fields: map[string]string{}}
	}
	verr.Fields[field] = msg
	return verr
}
