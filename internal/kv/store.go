package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Store is a flat key/value storage holding serialized collections.
type Store interface {
	// Get returns the stored bytes or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set creates or replaces the value stored under key
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error

	Close() error
}

// Storage keys.
const (
	KeyProducts        = "sharedProducts"
	KeyLegacyProducts  = "sellerProducts"
	KeyCart            = "milkShopCart"
	KeyOrders          = "milkShopOrders"
	KeyAllOrders       = "milkShopAllOrders"
	KeySellerOrders    = "milkShopSellerOrders"
	KeyAllSellerOrders = "milkShopAllSellerOrders"
)

// Scoped appends "_<owner>" to base, or returns base when owner is empty.
func Scoped(base, owner string) string {
	if owner == "" {
		return base
	}
	return base + "_" + owner
}
