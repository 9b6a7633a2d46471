package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fjod/storefront/internal/client"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type backendMock struct {
	mu        sync.Mutex
	cart      *domain.Cart
	updates   []int
	updateErr error
	removed   []int64
	placed    []client.OrderRequest
}

func (m *backendMock) GetCart(_ context.Context) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.cart
	c.Items = append([]domain.CartItem(nil), m.cart.Items...)
	return &c, nil
}

func (m *backendMock) RemoveItem(_ context.Context, productID int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, productID)
	kept := m.cart.Items[:0:0]
	for _, it := range m.cart.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	m.cart.Items = kept
	c := *m.cart
	return &c, nil
}

func (m *backendMock) UpdateQuantity(_ context.Context, productID int64, quantity int) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, quantity)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	for i := range m.cart.Items {
		if m.cart.Items[i].ProductID == productID {
			m.cart.Items[i].Quantity = quantity
		}
	}
	c := *m.cart
	return &c, nil
}

func (m *backendMock) PlaceOrder(_ context.Context, req client.OrderRequest) (*client.PlacedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, req)
	m.cart.Items = nil
	return &client.PlacedOrder{Order: &domain.Order{
		ID:            uuid.MustParse("3f2a9c1e-0000-4000-8000-000000000001"),
		PaymentMode:   req.PaymentMode,
		PaymentStatus: domain.PaymentStatusPending,
		OrderStatus:   domain.OrderStatusProcessing,
	}}, nil
}

// --- helper ---

func newTestApp(t *testing.T, backend *backendMock) *App {
	t.Helper()
	store := client.NewCartStore(pricing.DefaultPolicy())
	settled := NewSettlements()
	editor := client.NewQuantityEditor(store, backend, client.EditorOptions{
		QuietPeriod: time.Hour,
		OnSettle:    settled.Publish,
	}, nil)
	t.Cleanup(editor.Close)

	composer := client.NewComposer(store)
	composer.SetAddress(domain.ShippingAddress{
		Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US", Phone: "+1 555 0100",
	})
	checkout := client.NewCheckout(backend, store, composer, editor, client.NewPaymentAdapter(nil, nil, nil), nil)

	app := NewApp(Options{
		API:      backend,
		Store:    store,
		Editor:   editor,
		Composer: composer,
		Checkout: checkout,
		Settled:  settled,
	})
	app.Update(app.loadCart()())
	return app
}

func newBackend() *backendMock {
	return &backendMock{cart: &domain.Cart{
		UserID: "user-1",
		Items: []domain.CartItem{
			{ProductID: 1, Name: "Keyboard", UnitPrice: decimal.NewFromInt(100), Quantity: 2},
			{ProductID: 2, Name: "Mouse", UnitPrice: decimal.NewFromInt(50), Quantity: 1},
		},
	}}
}

func press(app *App, keys string) tea.Cmd {
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return cmd
}

// runBatch executes cmd and every command nested in a batch, feeding the results back.
func runBatch(t *testing.T, app *App, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			runBatch(t, app, c)
		}
		return
	}
	if msg != nil {
		app.Update(msg)
	}
}

func TestApp_RendersCartAndTotals(t *testing.T) {
	app := newTestApp(t, newBackend())
	view := app.View()

	assert.Contains(t, view, "Keyboard")
	assert.Contains(t, view, "Mouse")
	assert.Contains(t, view, "250.00")
	assert.Contains(t, view, "275.00")
	assert.Contains(t, view, "free")
	assert.Contains(t, view, "Springfield")
}

func TestApp_QuantityKeysAreDebounced(t *testing.T) {
	backend := newBackend()
	app := newTestApp(t, backend)

	press(app, "+")
	press(app, "+")
	press(app, "-")

	line, ok := app.store.Line(1)
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity())
	assert.Equal(t, client.LinePending, line.State)
	assert.Contains(t, app.View(), "saving")
	assert.Empty(t, backend.updates, "nothing is sent before the quiet period")

	app.editor.Flush()
	app.Update(app.waitForSettle()())

	assert.Equal(t, []int{3}, backend.updates)
	line, _ = app.store.Line(1)
	assert.Equal(t, client.LineApplied, line.State)
	assert.Empty(t, app.flash)
}

func TestApp_FailedUpdateFlashesAndReverts(t *testing.T) {
	backend := newBackend()
	backend.updateErr = &client.APIError{Status: 409, Message: "insufficient stock", Code: "insufficient_stock"}
	app := newTestApp(t, backend)

	press(app, "+")
	app.editor.Flush()
	app.Update(app.waitForSettle()())

	line, _ := app.store.Line(1)
	assert.Equal(t, 2, line.Quantity())
	assert.Equal(t, client.LineFailed, line.State)
	assert.Equal(t, flashError, app.flashKind)
	assert.Equal(t, "could not update Keyboard: insufficient stock (back to 2)", app.flash)
	assert.Contains(t, app.View(), "not saved")
}

func TestApp_CursorMovesBetweenLines(t *testing.T) {
	backend := newBackend()
	app := newTestApp(t, backend)

	press(app, "j")
	press(app, "j")
	press(app, "+")
	line, _ := app.store.Line(2)
	assert.Equal(t, 2, line.Quantity())

	press(app, "k")
	press(app, "-")
	line, _ = app.store.Line(1)
	assert.Equal(t, 1, line.Quantity())
}

func TestApp_RemoveLine(t *testing.T) {
	backend := newBackend()
	app := newTestApp(t, backend)

	press(app, "+")
	cmd := press(app, "d")
	require.NotNil(t, cmd)
	assert.False(t, app.editor.Pending(1), "the scheduled write is dropped")

	app.Update(cmd())
	assert.Equal(t, []int64{1}, backend.removed)
	_, ok := app.store.Line(1)
	assert.False(t, ok)
	assert.Equal(t, "item removed", app.flash)
	assert.Equal(t, "50.00", app.store.Totals().ItemsTotal.StringFixed(2))
}

func TestApp_RemoveKeepsPendingEditOfOtherLine(t *testing.T) {
	backend := newBackend()
	app := newTestApp(t, backend)

	press(app, "j")
	press(app, "+")
	press(app, "k")
	cmd := press(app, "d")
	require.NotNil(t, cmd)
	app.Update(cmd())

	mouse, ok := app.store.Line(2)
	require.True(t, ok)
	assert.Equal(t, 2, mouse.Quantity())
	assert.Equal(t, client.LinePending, mouse.State)
	assert.Equal(t, "100.00", app.store.Totals().ItemsTotal.StringFixed(2))

	app.editor.Flush()
	app.Update(app.waitForSettle()())

	assert.Equal(t, []int{2}, backend.updates)
	mouse, _ = app.store.Line(2)
	assert.Equal(t, 2, mouse.Quantity())
	assert.Equal(t, mouse.Committed, mouse.Quantity())
	assert.Equal(t, client.LineApplied, mouse.State)
}

func TestApp_CashOnDeliveryOrder(t *testing.T) {
	backend := newBackend()
	app := newTestApp(t, backend)

	cmd := press(app, "c")
	require.True(t, app.placing)
	assert.Nil(t, press(app, "+"), "keys are ignored while the order is written")

	runBatch(t, app, cmd)
	assert.False(t, app.placing)
	require.Len(t, backend.placed, 1)
	assert.Equal(t, domain.PaymentModeCashOnDelivery, backend.placed[0].PaymentMode)
	assert.Equal(t, "Springfield", backend.placed[0].ShippingAddress.City)
	assert.NotEmpty(t, backend.placed[0].IdempotencyKey)
	assert.Equal(t, "order 3f2a9c1e placed, pay on delivery", app.flash)
	assert.True(t, app.store.IsEmpty())
}

func TestApp_EmptyCartCannotOrder(t *testing.T) {
	backend := newBackend()
	backend.cart.Items = nil
	app := newTestApp(t, backend)

	assert.Nil(t, press(app, "c"))
	assert.Equal(t, "your cart is empty", app.flash)
	assert.Contains(t, app.View(), "Your cart is empty.")
}

func TestApp_OnlineOrderWithoutCardPayments(t *testing.T) {
	backend := newBackend()
	app := newTestApp(t, backend)

	runBatch(t, app, press(app, "o"))
	assert.Empty(t, backend.placed)
	assert.Equal(t, flashError, app.flashKind)
	assert.Contains(t, app.flash, "card payments are not available")
}

func TestApp_Quit(t *testing.T) {
	app := newTestApp(t, newBackend())
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "out of stock", errorText(&client.APIError{Status: 409, Message: "out of stock"}))
	assert.Equal(t, "boom", errorText(errors.New("boom")))
}
