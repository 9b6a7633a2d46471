package service

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/cart/cache"
	"github.com/fjod/storefront/internal/cart/repository"
	"github.com/fjod/storefront/internal/domain"
)

type mockRepository struct {
	m        sync.RWMutex
	cart     *domain.Cart
	err      error
	getCalls int
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, repository.ErrCartNotFound
	}
	c := *m.cart
	c.Items = append([]domain.CartItem{}, m.cart.Items...)
	return &c, nil
}

func (m *mockRepository) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		m.cart = &domain.Cart{UserID: userID, CreatedAt: time.Now()}
	}
	for i := range m.cart.Items {
		if m.cart.Items[i].ProductID == item.ProductID {
			m.cart.Items[i] = item
			return nil
		}
	}
	m.cart.Items = append(m.cart.Items, item)
	return nil
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, _ string, productID int64, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart != nil {
		for i := range m.cart.Items {
			if m.cart.Items[i].ProductID == productID {
				m.cart.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) RemoveItem(_ context.Context, _ string, productID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart != nil {
		for i, item := range m.cart.Items {
			if item.ProductID == productID {
				m.cart.Items = append(m.cart.Items[:i], m.cart.Items[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockRepository) ClearCart(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		return repository.ErrCartNotFound
	}
	m.cart.Items = []domain.CartItem{}
	return nil
}

func (m *mockRepository) getCallCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.getCalls
}

type mockCache struct {
	m       sync.RWMutex
	cart    *domain.Cart
	err     error
	deletes int
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return nil
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	m.deletes++
	return m.err
}

func (m *mockCache) getCart() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

func (m *mockCache) deleteCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.deletes
}

type mockProducts struct {
	products map[int64]*domain.Product
	err      error
}

func (m *mockProducts) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}
