package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	catalog "github.com/fjod/storefront/internal/catalog/service"
	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CatalogService interface {
	ListProducts(ctx context.Context, q catalog.ListQuery) (*catalog.ProductPage, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, in catalog.ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AddReview(ctx context.Context, productID int64, user *domain.User, in catalog.ReviewInput) (*domain.Review, error)
}

type ProductHandler struct {
	catalog CatalogService
	timeout time.Duration
}

func NewProductHandler(catalog CatalogService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{catalog: catalog, timeout: timeout}
}

type CreateReviewRequestDTO struct {
	ProductID int64  `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// GET /products?keyword=&category=&page=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	resp, err := h.catalog.ListProducts(ctx, catalog.ListQuery{
		Keyword:  q.Get("keyword"),
		Category: q.Get("category"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	if resp.Products == nil {
		resp.Products = []*domain.Product{}
	}

	respondJSON(w, http.StatusOK, resp)
}

// GET /products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

// POST /products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req catalog.ProductInput
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.CreateProduct(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

// PUT /products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	var req catalog.ProductInput
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, id, req)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

// DELETE /products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(ctx, id); err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /reviews
func (h *ProductHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	claims := claimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateReviewRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	user := &domain.User{ID: claims.UserID, Name: claims.Name, Email: claims.Email}
	review, err := h.catalog.AddReview(ctx, req.ProductID, user, catalog.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, review)
}

func productIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return 0, false
	}
	return id, true
}
