package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/milkshop/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartService interface {
	Get(ctx context.Context, ownerID string) (domain.Cart, error)
	Add(ctx context.Context, ownerID string, item domain.CartItem) (domain.Cart, error)
	Remove(ctx context.Context, ownerID string, id domain.ID) (domain.Cart, error)
	UpdateQuantity(ctx context.Context, ownerID string, id domain.ID, quantity int) (domain.Cart, error)
	Clear(ctx context.Context, ownerID string) error
}

type ProductReader interface {
	Get(ctx context.Context, id domain.ID) (domain.Product, error)
}

type CartHandler struct {
	carts    CartService
	products ProductReader
	timeout  time.Duration
	log      *zap.Logger
}

func NewCartHandler(carts CartService, products ProductReader, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		products: products,
		timeout:  timeout,
		log:      log,
	}
}

type AddItemRequestDTO struct {
	ProductID domain.ID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gte=0,lte=99"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=99"`
}

type CartResponse struct {
	Items []domain.CartItem `json:"items"`
	Total float64           `json:"total"`
	Count int               `json:"count"`
}

func toCartResponse(c domain.Cart) CartResponse {
	items := c.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponse{Items: items, Total: c.Total(), Count: c.Count()}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	c, err := h.carts.Get(ctx, u.ID)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// POST /api/v1/cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	// name and price come from the catalog, not the client
	p, err := h.products.Get(ctx, req.ProductID)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	if !p.IsPosted {
		respondError(w, http.StatusUnprocessableEntity, "not_available", "product is not on sale")
		return
	}

	c, err := h.carts.Add(ctx, u.ID, domain.CartItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: req.Quantity,
		Image:    p.Image,
	})
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCartResponse(c))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.carts.UpdateQuantity(ctx, u.ID, domain.ID(chi.URLParam(r, "product_id")), req.Quantity)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	c, err := h.carts.Remove(ctx, u.ID, domain.ID(chi.URLParam(r, "product_id")))
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	if err := h.carts.Clear(ctx, u.ID); err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(domain.Cart{OwnerID: u.ID}))
}
