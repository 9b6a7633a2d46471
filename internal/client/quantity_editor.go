package client

import (
	"context"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/pkg/coalesce"
	"go.uber.org/zap"
)

const (
	DefaultQuietPeriod   = 500 * time.Millisecond
	defaultUpdateTimeout = 10 * time.Second
)

type QuantityUpdater interface {
	UpdateQuantity(ctx context.Context, productID int64, quantity int) (*domain.Cart, error)
}

// LineUpdate reports how a backend write for one line settled.
type LineUpdate struct {
	ProductID int64
	Quantity  int
	State     LineState
	// Reverted is set when the displayed quantity went back to the committed one.
	Reverted bool
	// Superseded is set when a newer edit of the line made this write's outcome moot.
	Superseded bool
	Err        error
}

type EditorOptions struct {
	QuietPeriod time.Duration
	Timeout     time.Duration
	// OnSettle is called from the writer goroutine after every backend write.
	OnSettle func(LineUpdate)
}

// quantityEdit is the quantity to send and the local edit it belongs to.
type quantityEdit struct {
	quantity int
	seq      uint64
}

// QuantityEditor applies +/- edits to the displayed cart at once and sends one
// backend update per line once edits stop for the quiet period.
type QuantityEditor struct {
	store     *CartStore
	api       QuantityUpdater
	coalescer *coalesce.Coalescer[int64, quantityEdit]
	opts      EditorOptions
	log       *zap.Logger
}

func NewQuantityEditor(store *CartStore, api QuantityUpdater, opts EditorOptions, log *zap.Logger) *QuantityEditor {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultUpdateTimeout
	}
	e := &QuantityEditor{
		store: store,
		api:   api,
		opts:  opts,
		log:   log.Named("quantity_editor"),
	}
	e.coalescer = coalesce.New[int64, quantityEdit](opts.QuietPeriod, e.write)
	return e
}

// Increment and Decrement return the new displayed quantity.
func (e *QuantityEditor) Increment(productID int64) (int, error) {
	return e.Adjust(productID, 1)
}

func (e *QuantityEditor) Decrement(productID int64) (int, error) {
	return e.Adjust(productID, -1)
}

// Adjust changes the displayed quantity by delta and (re)starts the quiet period for the line.
// Quantities are clamped to [1, 99]; an edit that changes nothing schedules nothing.
func (e *QuantityEditor) Adjust(productID int64, delta int) (int, error) {
	qty, seq, changed, err := e.store.adjust(productID, delta)
	if err != nil {
		return 0, err
	}
	if changed || e.coalescer.Pending(productID) {
		e.coalescer.Submit(productID, quantityEdit{quantity: qty, seq: seq})
	}
	return qty, nil
}

// Pending reports whether a backend write is still waiting for its quiet period.
func (e *QuantityEditor) Pending(productID int64) bool {
	return e.coalescer.Pending(productID)
}

// Discard drops a scheduled write, e.g. before the line is removed.
func (e *QuantityEditor) Discard(productID int64) {
	e.coalescer.Cancel(productID)
}

// Flush sends every scheduled write now. Call it before checkout.
func (e *QuantityEditor) Flush() {
	e.coalescer.FlushAll()
}

// Close drops scheduled writes and waits for writes in flight.
func (e *QuantityEditor) Close() {
	e.coalescer.Stop()
}

func (e *QuantityEditor) write(productID int64, edit quantityEdit) {
	qty := edit.quantity
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.Timeout)
	defer cancel()

	update := LineUpdate{ProductID: productID, Quantity: qty}
	cart, err := e.api.UpdateQuantity(ctx, productID, qty)
	if err != nil {
		e.log.Error("quantity update failed",
			zap.Int64("product_id", productID), zap.Int("quantity", qty), zap.Error(err))
		update.State = LineFailed
		update.Err = err
		update.Reverted = e.store.failed(productID, edit.seq, err)
		if !update.Reverted {
			update.Superseded = true
			update.State = LinePending
			if line, ok := e.store.Line(productID); ok {
				update.State = line.State
			}
		}
	} else {
		var snapshot *domain.CartItem
		if cart != nil {
			if item, ok := cart.Item(productID); ok {
				snapshot = &item
			}
		}
		e.store.applied(productID, qty, edit.seq, snapshot)
		update.State = LineApplied
		if line, ok := e.store.Line(productID); ok {
			update.State = line.State
		}
		e.log.Debug("quantity updated", zap.Int64("product_id", productID), zap.Int("quantity", qty))
	}

	if e.opts.OnSettle != nil {
		e.opts.OnSettle(update)
	}
}
