package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/fjod/storefront/internal/catalog/repository"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/validation"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultPageSize = 12

// ProductInput is the editable part of a product.
type ProductInput struct {
	Name         string          `json:"name" validate:"notblank,max=200"`
	Description  string          `json:"description" validate:"max=5000"`
	Brand        string          `json:"brand" validate:"max=100"`
	Category     string          `json:"category" validate:"max=100"`
	ImageURL     string          `json:"image_url" validate:"omitempty,max=500"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"count_in_stock" validate:"gte=0"`
}

func (in ProductInput) validate() error {
	err := validation.Struct(in)
	if in.Price.IsNegative() {
		var verr *validation.Error
		if !errors.As(err, &verr) {
			verr = &validation.Error{Fields: map[string]string{}}
		}
		verr.Fields["price"] = "Must be greater than or equal to 0"
		return verr
	}
	return err
}

func (in ProductInput) apply(p *domain.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Brand = in.Brand
	p.Category = in.Category
	p.ImageURL = in.ImageURL
	p.Price = domain.RoundMoney(in.Price)
	p.CountInStock = in.CountInStock
}

type ListQuery struct {
	Keyword  string
	Category string
	Page     int
	PageSize int
}

type ProductPage struct {
	Products []*domain.Product `json:"products"`
	Page     int               `json:"page"`
	Pages    int               `json:"pages"`
	Total    int               `json:"total"`
}

type ReviewInput struct {
	Rating  int    `json:"rating" validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"notblank,max=2000"`
}

type Service struct {
	repo repository.RepoInterface
	log  *zap.Logger
}

func NewService(repo repository.RepoInterface, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log.Named("catalog")}
}

func (s *Service) ListProducts(ctx context.Context, q ListQuery) (*ProductPage, error) {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	products, total, err := s.repo.ListProducts(ctx, repository.ProductFilter{
		Keyword:  q.Keyword,
		Category: q.Category,
		Limit:    q.PageSize,
		Offset:   (q.Page - 1) * q.PageSize,
	})
	if err != nil {
		return nil, err
	}

	return &ProductPage{
		Products: products,
		Page:     q.Page,
		Pages:    int(math.Ceil(float64(total) / float64(q.PageSize))),
		Total:    total,
	}, nil
}

// GetProduct returns the product together with its reviews.
func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Reviews = reviews
	return p, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &domain.Product{}
	in.apply(p)
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.log).Info("product created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	logger.FromContext(ctx, s.log).Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// AddReview records one review per user and product.
func (s *Service) AddReview(ctx context.Context, productID int64, user *domain.User, in ReviewInput) (*domain.Review, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	r := &domain.Review{
		ProductID: productID,
		UserID:    user.ID,
		UserName:  user.Name,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	}
	if err := s.repo.CreateReview(ctx, r); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return r, nil
}
