package service

import "errors"

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to order")
	ErrIllegalTransition   = errors.New("illegal transition of order status")
	ErrForbidden           = errors.New("order belongs to another user")
	ErrNotAwaitingPayment  = errors.New("order is not awaiting payment")
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
	// ErrPaymentMismatch means the intent does not belong to the order or charges a different amount.
	ErrPaymentMismatch = errors.New("payment does not match order")
)
