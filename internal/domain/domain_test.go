package domain

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalNumberAndString(t *testing.T) {
	var ps []Product
	err := json.Unmarshal([]byte(`[{"id":17,"name":"Milk"},{"id":"abc","name":"Cheese"},{"id":1716000000000,"name":"Butter"}]`), &ps)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, ID("17"), ps[0].ID)
	assert.Equal(t, ID("abc"), ps[1].ID)
	assert.Equal(t, ID("1716000000000"), ps[2].ID)

	out, err := json.Marshal(ps[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id":"17"`)
}

func TestNewProductID(t *testing.T) {
	now := time.UnixMilli(1716000000123)
	assert.Equal(t, ID("1716000000123"), NewProductID(now))
}

func TestNewOrderID_Format(t *testing.T) {
	re := regexp.MustCompile(`^ORD-[0-9A-Z]{6}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, re, NewOrderID())
	}
}

func TestSellerOrderID(t *testing.T) {
	assert.Equal(t, "ORD-ABC123-sell", SellerOrderID("ORD-ABC123", "seller-42"))
	assert.Equal(t, "ORD-ABC123-ab", SellerOrderID("ORD-ABC123", "ab"))
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusCheckout, OrderStatusOngoing, true},
		{OrderStatusCheckout, OrderStatusDelivered, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusOngoing, OrderStatusDelivered, true},
		{OrderStatusOngoing, OrderStatusCheckout, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusProcessing, true},
		{OrderStatusDelivered, OrderStatusCheckout, false},
		{OrderStatusCancelled, OrderStatusOngoing, false},
		{OrderStatusDelivered, OrderStatusDelivered, true},
		{OrderStatusCheckout, OrderStatus("shipped"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusDelivered.IsTerminal())
	assert.False(t, OrderStatusOngoing.IsTerminal())
}

func TestWithTax(t *testing.T) {
	items := []OrderItem{
		{ID: "1", Price: 100, Quantity: 2},
		{ID: "2", Price: 50, Quantity: 1},
	}
	assert.Equal(t, 270.0, WithTax(OrderSubtotal(items)))
	assert.Equal(t, 10.79, WithTax(decimal.RequireFromString("9.99")))
}

func TestCart_TotalAndCount(t *testing.T) {
	c := Cart{Items: []CartItem{
		{ID: "a", Price: 100, Quantity: 2},
		{ID: "b", Price: 50, Quantity: 1},
	}}
	assert.Equal(t, 250.0, c.Total())
	assert.Equal(t, 3, c.Count())

	assert.Equal(t, 0.0, Cart{}.Total())
	assert.Equal(t, 0, Cart{}.Count())
}
