package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotAuthenticated = errors.New("not logged in")

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	Status  int               `json:"-"`
	Message string            `json:"error"`
	Code    string            `json:"code"`
	Details string            `json:"details"`
	Fields  map[string]string `json:"fields"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storefront api: status %d", e.Status)
	}
	return fmt.Sprintf("storefront api: %s (%s)", e.Message, e.Code)
}

type PlacedOrder struct {
	Order        *domain.Order `json:"order"`
	ClientSecret string        `json:"client_secret"`
	Replayed     bool          `json:"replayed"`
}

type PaymentSession struct {
	OrderID         string `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret"`
	PublishableKey  string `json:"publishable_key"`
}

type OrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMode     domain.PaymentMode     `json:"payment_mode"`
	IdempotencyKey  string                 `json:"idempotency_key,omitempty"`
}

type authResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// API is a typed client for the storefront REST endpoints.
type API struct {
	session *Session
	log     *zap.Logger
}

func NewAPI(session *Session, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{session: session, log: log.Named("api")}
}

func (a *API) Session() *Session {
	return a.session
}

func (a *API) Login(ctx context.Context, email, password string) (*domain.User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/authentication/login", body, &resp, false); err != nil {
		return nil, err
	}
	a.session.SetAuth(resp.Token, resp.User)
	return resp.User, nil
}

func (a *API) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	var resp authResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/authentication/register", body, &resp, false); err != nil {
		return nil, err
	}
	a.session.SetAuth(resp.Token, resp.User)
	return resp.User, nil
}

func (a *API) Logout(ctx context.Context) error {
	err := a.do(ctx, http.MethodPost, "/authentication/logout", nil, nil, true)
	a.session.Clear()
	return err
}

func (a *API) GetCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if err := a.do(ctx, http.MethodGet, "/cart", nil, &cart, true); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (a *API) AddItem(ctx context.Context, productID int64, quantity int) (*domain.Cart, error) {
	var cart domain.Cart
	body := map[string]any{"product_id": productID, "quantity": quantity}
	if err := a.do(ctx, http.MethodPost, "/cart", body, &cart, true); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (a *API) UpdateQuantity(ctx context.Context, productID int64, quantity int) (*domain.Cart, error) {
	var cart domain.Cart
	path := fmt.Sprintf("/cart/update/%d", productID)
	if err := a.do(ctx, http.MethodPut, path, map[string]int{"quantity": quantity}, &cart, true); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (a *API) RemoveItem(ctx context.Context, productID int64) (*domain.Cart, error) {
	var cart domain.Cart
	path := fmt.Sprintf("/products/remove/%d", productID)
	if err := a.do(ctx, http.MethodDelete, path, nil, &cart, true); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (a *API) ListProducts(ctx context.Context, keyword string) ([]*domain.Product, error) {
	var page struct {
		Products []*domain.Product `json:"products"`
	}
	path := "/products"
	if keyword != "" {
		path += "?keyword=" + url.QueryEscape(keyword)
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &page, false); err != nil {
		return nil, err
	}
	return page.Products, nil
}

func (a *API) PlaceOrder(ctx context.Context, req OrderRequest) (*PlacedOrder, error) {
	var resp PlacedOrder
	if err := a.do(ctx, http.MethodPost, "/orders", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *API) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	if err := a.do(ctx, http.MethodGet, "/orders/"+id.String(), nil, &order, true); err != nil {
		return nil, err
	}
	return &order, nil
}

func (a *API) MyOrders(ctx context.Context) ([]*domain.Order, error) {
	var list []*domain.Order
	if err := a.do(ctx, http.MethodGet, "/productsorder", nil, &list, true); err != nil {
		return nil, err
	}
	return list, nil
}

// ProcessPayment asks the backend for the client secret of a pending order.
func (a *API) ProcessPayment(ctx context.Context, orderID uuid.UUID) (*PaymentSession, error) {
	var resp PaymentSession
	body := map[string]string{"order_id": orderID.String()}
	if err := a.do(ctx, http.MethodPost, "/payment/process", body, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FinalizePayment tells the backend the card was charged. The backend checks with the processor.
func (a *API) FinalizePayment(ctx context.Context, orderID uuid.UUID, intentID string) (*domain.Order, error) {
	var order domain.Order
	body := map[string]string{"payment_intent_id": intentID}
	if err := a.do(ctx, http.MethodPost, "/orders/"+orderID.String()+"/pay", body, &order, true); err != nil {
		return nil, err
	}
	return &order, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any, auth bool) error {
	token := a.session.Token()
	if auth && token == "" {
		return ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.session.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if order, ok := body.(OrderRequest); ok && order.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", order.IdempotencyKey)
	}

	resp, err := a.session.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		a.log.Debug("api call failed",
			zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode), zap.String("code", apiErr.Code))
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
