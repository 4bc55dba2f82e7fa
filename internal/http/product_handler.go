package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/milkshop/internal/catalog"
	"github.com/fjod/milkshop/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProductStore interface {
	ListPosted(ctx context.Context, sellerID string) ([]domain.Product, error)
	ListBySeller(ctx context.Context, sellerID string) ([]domain.Product, error)
	Get(ctx context.Context, id domain.ID) (domain.Product, error)
	Upsert(ctx context.Context, p domain.Product, sellerID string) (domain.Product, error)
	UpsertMany(ctx context.Context, batch []domain.Product, sellerID string) ([]domain.Product, error)
	Delete(ctx context.Context, id domain.ID) error
	TogglePosted(ctx context.Context, id domain.ID) (domain.Product, error)
}

type ProductHandler struct {
	products ProductStore
	timeout  time.Duration
	log      *zap.Logger
}

func NewProductHandler(products ProductStore, timeout time.Duration, log *zap.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
		log:      log,
	}
}

type ProductRequestDTO struct {
	ID          domain.ID `json:"id"`
	Name        string    `json:"name" validate:"required,max=200"`
	Price       float64   `json:"price" validate:"gte=0"`
	Category    string    `json:"category" validate:"max=100"`
	Stock       int       `json:"stock" validate:"gte=0"`
	Description string    `json:"description" validate:"max=5000"`
	Image       string    `json:"image"`
	Location    string    `json:"location" validate:"max=200"`
	ExpiryDate  string    `json:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
	IsPosted    bool      `json:"isPosted"`
	Rating      *float64  `json:"rating" validate:"omitempty,gte=0,lte=5"`
}

type ProductBatchRequestDTO struct {
	Products []ProductRequestDTO `json:"products" validate:"required,dive"`
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

func (p ProductRequestDTO) toProduct(sellerID string) domain.Product {
	return domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Stock:       p.Stock,
		Description: p.Description,
		Image:       p.Image,
		Location:    p.Location,
		ExpiryDate:  p.ExpiryDate,
		IsPosted:    p.IsPosted,
		Rating:      p.Rating,
		SellerID:    sellerID,
	}
}

type ProductQueryDTO struct {
	Seller   string `json:"seller"`
	Search   string `json:"search" validate:"max=100"`
	Category string `json:"category" validate:"max=50"`
	Sort     string `json:"sort" validate:"omitempty,oneof=featured price-low price-high rating"`
}

// GET /api/v1/products?seller=&search=&category=&sort=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	query := ProductQueryDTO{
		Seller:   q.Get("seller"),
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	}
	if err := validate.Struct(query); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid query parameters",
			Code:    "validation_failed",
			Details: validationDetails(err),
		})
		return
	}

	products, err := h.products.ListPosted(ctx, query.Seller)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	products = catalog.Apply(products, catalog.Filter{
		Search:   query.Search,
		Category: query.Category,
		Sort:     query.Sort,
	})
	respondJSON(w, http.StatusOK, ProductsResponse{Products: products})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.products.Get(ctx, domain.ID(chi.URLParam(r, "id")))
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// GET /api/v1/seller/products
func (h *ProductHandler) SellerList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	products, err := h.products.ListBySeller(ctx, u.ID)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductsResponse{Products: products})
}

// POST /api/v1/seller/products
func (h *ProductHandler) SellerUpsert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	var req ProductRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID != "" && !h.owns(ctx, w, r, u.ID, req.ID, true) {
		return
	}

	p, err := h.products.Upsert(ctx, req.toProduct(u.ID), u.ID)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// PUT /api/v1/seller/products replaces all of the caller's products.
func (h *ProductHandler) SellerReplace(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	var req ProductBatchRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	batch := make([]domain.Product, len(req.Products))
	for i, p := range req.Products {
		batch[i] = p.toProduct(u.ID)
	}
	saved, err := h.products.UpsertMany(ctx, batch, u.ID)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductsResponse{Products: saved})
}

// DELETE /api/v1/seller/products/{id}
func (h *ProductHandler) SellerDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	id := domain.ID(chi.URLParam(r, "id"))
	if !h.owns(ctx, w, r, u.ID, id, false) {
		return
	}
	if err := h.products.Delete(ctx, id); err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/seller/products/{id}/toggle-posted
func (h *ProductHandler) SellerTogglePosted(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	id := domain.ID(chi.URLParam(r, "id"))
	if !h.owns(ctx, w, r, u.ID, id, false) {
		return
	}
	p, err := h.products.TogglePosted(ctx, id)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// owns reports whether sellerID may change product id. Products without a
// seller belong to nobody and may be claimed. With allowMissing an unknown
// id is fine (it is about to be created).
func (h *ProductHandler) owns(ctx context.Context, w http.ResponseWriter, r *http.Request, sellerID string, id domain.ID, allowMissing bool) bool {
	p, err := h.products.Get(ctx, id)
	switch {
	case errors.Is(err, catalog.ErrProductNotFound) && allowMissing:
		return true
	case err != nil:
		handleStoreError(w, r, h.log, err)
		return false
	case p.SellerID != "" && p.SellerID != sellerID:
		respondError(w, http.StatusForbidden, "permission_denied", "product belongs to another seller")
		return false
	}
	return true
}
