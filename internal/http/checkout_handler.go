package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/milkshop/internal/checkout"
	"github.com/fjod/milkshop/internal/domain"
	"go.uber.org/zap"
)

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

type CheckoutHandler struct {
	checkout OrderPlacer
	timeout  time.Duration
	log      *zap.Logger
}

func NewCheckoutHandler(placer OrderPlacer, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: placer,
		timeout:  timeout,
		log:      log,
	}
}

// CheckoutRequestDTO may leave out the shipping address when the caller's
// profile carries one.
type CheckoutRequestDTO struct {
	ShippingAddress *domain.ShippingAddress `json:"shippingAddress,omitempty" validate:"omitempty"`
	PaymentMethod   string                  `json:"paymentMethod" validate:"required,oneof=card gcash cod"`
}

type CheckoutDefaultsResponse struct {
	CustomerName    string                  `json:"customerName,omitempty"`
	ShippingAddress *domain.ShippingAddress `json:"shippingAddress,omitempty"`
	PaymentMethods  []string                `json:"paymentMethods"`
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Defaults(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	respondJSON(w, http.StatusOK, CheckoutDefaultsResponse{
		CustomerName:    u.Name,
		ShippingAddress: u.Address,
		PaymentMethods:  []string{"card", "gcash", "cod"},
	})
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, _ := UserFromContext(r.Context())
	var req CheckoutRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	shipping := req.ShippingAddress
	if shipping == nil && u.Address != nil {
		profile := *u.Address
		if err := validate.Struct(profile); err == nil {
			shipping = &profile
		}
	}
	if shipping == nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "request validation failed",
			Code:    "validation_failed",
			Details: "shippingAddress: required",
		})
		return
	}

	res, err := h.checkout.PlaceOrder(ctx, checkout.Request{
		CustomerID:    u.ID,
		CustomerName:  u.Name,
		Shipping:      shipping,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		handleStoreError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}
