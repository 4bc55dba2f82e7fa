package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/milkshop/internal/cart"
	"github.com/fjod/milkshop/internal/catalog"
	"github.com/fjod/milkshop/internal/checkout"
	"github.com/fjod/milkshop/internal/orders"
	"github.com/fjod/milkshop/pkg/circuitbreaker"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleStoreError converts errors from the stores to HTTP status codes.
func handleStoreError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, orders.ErrIllegalTransition):
		status, code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, checkout.ErrEmptyCart):
		status, code = http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, circuitbreaker.ErrOpen):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, status, code, err.Error())
}
