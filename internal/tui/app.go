// Package tui is the terminal storefront: the cart with debounced quantity
// edits, totals, and checkout. It follows the bubbletea model: key presses
// and backend results arrive as messages, Update changes state, View renders it.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fjod/storefront/internal/client"
	"github.com/fjod/storefront/internal/domain"
	"go.uber.org/zap"
)

const (
	requestTimeout  = 15 * time.Second
	checkoutTimeout = 45 * time.Second
)

// CartAPI is the part of the REST client the cart screen calls directly.
type CartAPI interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	RemoveItem(ctx context.Context, productID int64) (*domain.Cart, error)
}

// Settlements carries quantity write results from the editor's goroutine into the program.
type Settlements chan client.LineUpdate

func NewSettlements() Settlements {
	return make(Settlements, 64)
}

// Publish is the editor's OnSettle hook. It never blocks the writer; the
// store already holds the outcome, a dropped message only loses the flash.
func (s Settlements) Publish(u client.LineUpdate) {
	select {
	case s <- u:
	default:
	}
}

type Options struct {
	API      CartAPI
	Store    *client.CartStore
	Editor   *client.QuantityEditor
	Composer *client.Composer
	Checkout *client.Checkout
	Settled  Settlements
	// Card is used for online orders. Its Address is filled from the draft.
	Card   client.CardDetails
	Logger *zap.Logger
}

type flashKind int

const (
	flashInfo flashKind = iota
	flashError
)

type cartLoadedMsg struct {
	cart *domain.Cart
	err  error
}

type lineSettledMsg client.LineUpdate

type lineRemovedMsg struct {
	productID int64
	cart      *domain.Cart
	err       error
}

type orderPlacedMsg struct {
	mode   domain.PaymentMode
	result *client.CheckoutResult
	err    error
}

// App is the bubbletea model of the cart screen.
type App struct {
	api      CartAPI
	store    *client.CartStore
	editor   *client.QuantityEditor
	composer *client.Composer
	checkout *client.Checkout
	settled  Settlements
	card     client.CardDetails
	log      *zap.Logger

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	cursor    int
	loading   bool
	placing   bool
	flash     string
	flashKind flashKind
	lastOrder *domain.Order

	width  int
	height int
}

func NewApp(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))

	return &App{
		api:      opts.API,
		store:    opts.Store,
		editor:   opts.Editor,
		composer: opts.Composer,
		checkout: opts.Checkout,
		settled:  opts.Settled,
		card:     opts.Card,
		log:      log.Named("tui"),
		keys:     defaultKeyMap(),
		help:     help.New(),
		spinner:  s,
		loading:  true,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadCart(), a.waitForSettle())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case cartLoadedMsg:
		a.loading = false
		if msg.err != nil {
			a.setFlash(flashError, "could not load cart: %s", errorText(msg.err))
			return a, nil
		}
		a.store.Replace(msg.cart)
		a.composer.Refresh()
		a.clampCursor()
		return a, nil

	case lineSettledMsg:
		a.handleSettled(client.LineUpdate(msg))
		return a, a.waitForSettle()

	case lineRemovedMsg:
		if msg.err != nil {
			a.setFlash(flashError, "could not remove item: %s", errorText(msg.err))
			return a, nil
		}
		a.store.Replace(msg.cart)
		a.composer.Refresh()
		a.clampCursor()
		a.setFlash(flashInfo, "item removed")
		return a, nil

	case orderPlacedMsg:
		a.placing = false
		a.handleOrderPlaced(msg)
		a.clampCursor()
		return a, nil

	case spinner.TickMsg:
		if !a.placing {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.Quit) {
		return a, tea.Quit
	}
	if key.Matches(msg, a.keys.ShowHelp) {
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	}
	// the cart is frozen while an order is being written
	if a.placing {
		return a, nil
	}

	switch {
	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.store.Lines())-1 {
			a.cursor++
		}
	case key.Matches(msg, a.keys.Inc):
		a.adjust(1)
	case key.Matches(msg, a.keys.Dec):
		a.adjust(-1)
	case key.Matches(msg, a.keys.Remove):
		return a, a.removeSelected()
	case key.Matches(msg, a.keys.Refresh):
		a.loading = true
		return a, a.loadCart()
	case key.Matches(msg, a.keys.COD):
		return a, a.placeOrder(domain.PaymentModeCashOnDelivery)
	case key.Matches(msg, a.keys.Online):
		return a, a.placeOrder(domain.PaymentModeOnline)
	}
	return a, nil
}

// adjust only touches the local store; the backend write happens after the quiet period.
func (a *App) adjust(delta int) {
	line, ok := a.selected()
	if !ok {
		return
	}
	a.flash = ""
	if _, err := a.editor.Adjust(line.Item.ProductID, delta); err != nil {
		a.setFlash(flashError, "%s", err.Error())
		return
	}
	a.composer.Refresh()
}

func (a *App) handleSettled(u client.LineUpdate) {
	a.composer.Refresh()
	if u.Err == nil || u.Superseded {
		return
	}
	name := fmt.Sprintf("item %d", u.ProductID)
	if line, ok := a.store.Line(u.ProductID); ok {
		name = line.Item.Name
		if u.Reverted {
			a.setFlash(flashError, "could not update %s: %s (back to %d)", name, errorText(u.Err), line.Quantity())
			return
		}
	}
	a.setFlash(flashError, "could not update %s: %s", name, errorText(u.Err))
}

func (a *App) removeSelected() tea.Cmd {
	line, ok := a.selected()
	if !ok {
		return nil
	}
	productID := line.Item.ProductID
	a.editor.Discard(productID)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		cart, err := a.api.RemoveItem(ctx, productID)
		return lineRemovedMsg{productID: productID, cart: cart, err: err}
	}
}

func (a *App) placeOrder(mode domain.PaymentMode) tea.Cmd {
	if a.store.IsEmpty() {
		a.setFlash(flashError, "your cart is empty")
		return nil
	}
	a.composer.SetPaymentMode(mode)
	card := a.card
	card.Address = a.composer.Draft().Address

	a.placing = true
	a.flash = ""
	submit := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), checkoutTimeout)
		defer cancel()
		res, err := a.checkout.Submit(ctx, card)
		return orderPlacedMsg{mode: mode, result: res, err: err}
	}
	return tea.Batch(submit, a.spinner.Tick)
}

func (a *App) handleOrderPlaced(msg orderPlacedMsg) {
	if msg.result != nil {
		a.lastOrder = msg.result.Order
	}
	if msg.err != nil {
		a.log.Warn("checkout failed", zap.String("payment_mode", string(msg.mode)), zap.Error(msg.err))
		switch {
		case msg.result != nil && !msg.result.Paid:
			a.setFlash(flashError, "order %s is awaiting payment: %s", shortID(msg.result.Order), errorText(msg.err))
		case errors.Is(msg.err, client.ErrPaymentNotInitialized):
			a.setFlash(flashError, "card payments are not available, order with cash on delivery instead")
		default:
			a.setFlash(flashError, "could not place order: %s", errorText(msg.err))
		}
		return
	}
	if msg.result.Paid {
		a.setFlash(flashInfo, "order %s paid, thank you!", shortID(msg.result.Order))
		return
	}
	a.setFlash(flashInfo, "order %s placed, pay on delivery", shortID(msg.result.Order))
}

func (a *App) loadCart() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		cart, err := a.api.GetCart(ctx)
		return cartLoadedMsg{cart: cart, err: err}
	}
}

// waitForSettle is re-armed after every settlement, so one receive is always outstanding.
func (a *App) waitForSettle() tea.Cmd {
	if a.settled == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-a.settled
		if !ok {
			return nil
		}
		return lineSettledMsg(u)
	}
}

func (a *App) selected() (client.Line, bool) {
	lines := a.store.Lines()
	if a.cursor < 0 || a.cursor >= len(lines) {
		return client.Line{}, false
	}
	return lines[a.cursor], true
}

func (a *App) clampCursor() {
	n := len(a.store.Lines())
	if a.cursor >= n {
		a.cursor = n - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a *App) setFlash(kind flashKind, format string, args ...any) {
	a.flashKind = kind
	a.flash = fmt.Sprintf(format, args...)
}

func errorText(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func shortID(o *domain.Order) string {
	if o == nil {
		return ""
	}
	id := o.ID.String()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
