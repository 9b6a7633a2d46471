package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/internal/cart/cache"
	"github.com/fjod/storefront/internal/cart/repository"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ProductReader is the slice of the catalog the cart needs.
type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	products ProductReader
	log      *zap.Logger
	metrics  *metrics.Metrics
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, products ProductReader, log *zap.Logger, m *metrics.Metrics) *CartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{
		repo:     repo,
		cache:    cache,
		products: products,
		log:      log.Named("cart"),
		metrics:  m,
	}
}

// GetCart returns the user's cart, or an empty one if the user never added anything.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	log := logger.FromContext(ctx, s.log)

	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{UserID: userID, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, userID, cart); errSet != nil {
				s.log.Warn("cache set failed", zap.String("user_id", userID), zap.Error(errSet))
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem adds quantity units of a product. Adding a product already in the cart
// increases its quantity and refreshes the name and price snapshot.
func (s *CartService) AddItem(ctx context.Context, userID string, productID int64, quantity int) (cart *domain.Cart, err error) {
	defer func() { s.metrics.CartOperation("add", err) }()

	if !domain.ValidQuantity(quantity) {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}

	current, err := s.repo.GetCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}
	if existing, ok := current.Item(productID); ok {
		quantity += existing.Quantity
	}
	if !domain.ValidQuantity(quantity) {
		return nil, domain.ErrInvalidQuantity
	}
	if !product.InStock(quantity) {
		return nil, domain.ErrInsufficientStock
	}

	item := domain.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		ImageURL:  product.ImageURL,
		UnitPrice: product.Price,
		Quantity:  quantity,
	}
	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		logger.FromContext(ctx, s.log).Error("repo add item failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.invalidateCache(userID)
	return s.repo.GetCart(ctx, userID)
}

// UpdateQuantity sets the quantity of an existing line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID string, productID int64, quantity int) (cart *domain.Cart, err error) {
	defer func() { s.metrics.CartOperation("update", err) }()

	if !domain.ValidQuantity(quantity) {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	// a delisted product can still be reduced or removed
	if product != nil && !product.InStock(quantity) {
		return nil, domain.ErrInsufficientStock
	}

	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		logger.FromContext(ctx, s.log).Error("repo update item quantity failed",
			zap.String("user_id", userID), zap.Int64("product_id", productID), zap.Error(err))
		return nil, err
	}

	s.invalidateCache(userID)
	return s.repo.GetCart(ctx, userID)
}

// RemoveItem drops a line. Removing the last line leaves an empty cart.
func (s *CartService) RemoveItem(ctx context.Context, userID string, productID int64) (cart *domain.Cart, err error) {
	defer func() { s.metrics.CartOperation("remove", err) }()

	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		logger.FromContext(ctx, s.log).Error("repo remove item failed",
			zap.String("user_id", userID), zap.Int64("product_id", productID), zap.Error(err))
		return nil, err
	}

	s.invalidateCache(userID)
	return s.repo.GetCart(ctx, userID)
}

// ClearCart empties the cart. A user without a cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) (err error) {
	defer func() { s.metrics.CartOperation("clear", err) }()

	if err := s.repo.ClearCart(ctx, userID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		logger.FromContext(ctx, s.log).Error("repo clear cart failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
