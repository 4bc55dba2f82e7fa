package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
)

type OrderStatus string

const (
	OrderStatusCheckout   OrderStatus = "checkout"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusOngoing    OrderStatus = "ongoing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

const DefaultCurrency = "₱"

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusCheckout:   {OrderStatusProcessing, OrderStatusOngoing, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusOngoing, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusOngoing:    {OrderStatusDelivered, OrderStatusCancelled},
	// sellers may reopen a delivered order
	OrderStatusDelivered: {OrderStatusProcessing},
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCheckout, OrderStatusProcessing, OrderStatusOngoing, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no other status can follow s.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether an order in status s may move to next.
// Re-applying the current status is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

type OrderItem struct {
	ID       ID      `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
	SellerID string  `json:"sellerId,omitempty"`
}

type ShippingAddress struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	ZipCode   string `json:"zipCode" validate:"required"`
}

type Order struct {
	ID              string           `json:"id"`
	Date            string           `json:"date"`
	Total           float64          `json:"total"`
	Currency        string           `json:"currency"`
	Status          OrderStatus      `json:"status"`
	Items           []OrderItem      `json:"items"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	PaymentMethod   string           `json:"paymentMethod,omitempty"`
	CustomerID      string           `json:"customerId,omitempty"`
	CustomerName    string           `json:"customerName,omitempty"`
	SellerID        string           `json:"sellerId,omitempty"`
	ParentID        string           `json:"parentId,omitempty"`
}

const orderIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderID returns "ORD-" followed by six upper-case base-36 characters.
func NewOrderID() string {
	var b strings.Builder
	b.WriteString("ORD-")
	max := big.NewInt(int64(len(orderIDAlphabet)))
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b.WriteByte(orderIDAlphabet[n.Int64()])
	}
	return b.String()
}

// SellerOrderID derives the id of a seller's share of a customer order.
func SellerOrderID(orderID, sellerID string) string {
	suffix := sellerID
	if len(suffix) > 4 {
		suffix = suffix[:4]
	}
	return orderID + "-" + suffix
}
