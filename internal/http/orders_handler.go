package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/milkshop/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderStore interface {
	List(ctx context.Context, customerID string) ([]domain.Order, error)
	Get(ctx context.Context, customerID, orderID string) (domain.Order, error)
	UpdateStatus(ctx context.Context, customerID, orderID string, status domain.OrderStatus) (domain.Order, error)
	ListForSeller(ctx context.Context, sellerID string) ([]domain.Order, error)
	UpdateSellerStatus(ctx context.Context, sellerID, orderID string, status domain.OrderStatus) (domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderStore
	timeout time.Duration
	log     *zap.Logger
}

func NewOrdersHandler(orders OrderStore, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		log:     log,
	}
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status" validate:"required,order_status"`
}

type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	list, err := h.orders.List(ctx, u.ID)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: list})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	o, err := h.orders.Get(ctx, u.ID, chi.URLParam(r, "order_id"))
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// PATCH /api/v1/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(ctx, u.ID, chi.URLParam(r, "order_id"), req.Status)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// GET /api/v1/seller/orders
func (h *OrdersHandler) SellerListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	list, err := h.orders.ListForSeller(ctx, u.ID)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: list})
}

// PATCH /api/v1/seller/orders/{order_id}/status
func (h *OrdersHandler) SellerUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateSellerStatus(ctx, u.ID, chi.URLParam(r, "order_id"), req.Status)
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
