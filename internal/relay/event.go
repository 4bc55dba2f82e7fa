package relay

import (
	"encoding/json"
	"time"

	"github.com/fjod/milkshop/internal/domain"
)

type EventType string

const (
	ProductAdded         EventType = "productAdded"
	ProductRemoved       EventType = "productRemoved"
	ProductPostedChanged EventType = "productPostedChanged"
	SellerProductsLoaded EventType = "sellerProductsLoaded"
	NewOrderPlaced       EventType = "newOrderPlaced"
	OrderStatusUpdated   EventType = "orderStatusUpdated"
	CartUpdated          EventType = "cartUpdated"
)

// Event is a change notification. Version grows by one with every event
// published on a relay, so a subscriber that sees a gap knows it missed some.
type Event struct {
	ID         string          `json:"id"`
	Version    uint64          `json:"version"`
	Type       EventType       `json:"type"`
	Source     string          `json:"source,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

type ProductRef struct {
	ID       domain.ID `json:"id"`
	SellerID string    `json:"sellerId,omitempty"`
}

type PostedChange struct {
	ID       domain.ID `json:"id"`
	IsPosted bool      `json:"isPosted"`
}

type SellerProducts struct {
	SellerID string `json:"sellerId,omitempty"`
	Count    int    `json:"count"`
}

type OrderPlaced struct {
	OrderID    string  `json:"orderId"`
	ParentID   string  `json:"parentId,omitempty"`
	SellerID   string  `json:"sellerId,omitempty"`
	CustomerID string  `json:"customerId,omitempty"`
	Total      float64 `json:"total"`
}

// OrderStatusChange names the customer and the sellers involved in the order.
type OrderStatusChange struct {
	OrderID    string             `json:"orderId"`
	SellerID   string             `json:"sellerId,omitempty"`
	CustomerID string             `json:"customerId,omitempty"`
	SellerIDs  []string           `json:"sellerIds,omitempty"`
	Status     domain.OrderStatus `json:"status"`
}

type CartChange struct {
	OwnerID string `json:"ownerId,omitempty"`
	Count   int    `json:"count"`
}

// audience returns the users allowed to see e. Catalog events are public;
// order and cart events go only to the users named in their payload.
func audience(e Event) (users []string, public bool) {
	switch e.Type {
	case ProductAdded, ProductRemoved, ProductPostedChanged, SellerProductsLoaded, Connected:
		return nil, true
	case NewOrderPlaced:
		var p OrderPlaced
		if e.Decode(&p) == nil {
			users = append(users, p.CustomerID, p.SellerID)
		}
	case OrderStatusUpdated:
		var p OrderStatusChange
		if e.Decode(&p) == nil {
			users = append(users, p.CustomerID, p.SellerID)
			users = append(users, p.SellerIDs...)
		}
	case CartUpdated:
		var p CartChange
		if e.Decode(&p) == nil {
			users = append(users, p.OwnerID)
		}
	}
	return users, false
}
