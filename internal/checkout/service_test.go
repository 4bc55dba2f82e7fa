package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/milkshop/internal/cart"
	"github.com/fjod/milkshop/internal/catalog"
	"github.com/fjod/milkshop/internal/domain"
	"github.com/fjod/milkshop/internal/kv"
	"github.com/fjod/milkshop/internal/orders"
	"github.com/fjod/milkshop/internal/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var shipping = &domain.ShippingAddress{FirstName: "Ana", LastName: "Cruz", Address: "1 Rizal St", City: "Cebu", ZipCode: "6000"}

func newTestService(carts CartStore, products ProductLister, orderStore OrderStore) *Service {
	svc := NewService(carts, products, orderStore, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 5, 18, 23, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "ORD-TEST01" }
	return svc
}

func TestPlaceOrder_BuildsOrderFromCart(t *testing.T) {
	carts := &MockCartStore{Cart: domain.Cart{Items: []domain.CartItem{
		{ID: "1", Name: "Fresh Milk", Price: 100, Quantity: 2},
		{ID: "2", Name: "Kesong Puti", Price: 50, Quantity: 1},
	}}}
	products := &MockProductLister{Products: []domain.Product{
		{ID: "1", SellerID: "s1"},
		{ID: "2", SellerID: "s2"},
	}}
	orderStore := &MockOrderStore{}
	svc := newTestService(carts, products, orderStore)

	res, err := svc.PlaceOrder(context.Background(), Request{
		CustomerID:    "cust-1",
		CustomerName:  "Ana Cruz",
		Shipping:      shipping,
		PaymentMethod: "cod",
	})
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, "ORD-TEST01", o.ID)
	assert.Equal(t, "2024-05-18", o.Date)
	assert.Equal(t, 270.0, o.Total)
	assert.Equal(t, "₱", o.Currency)
	assert.Equal(t, domain.OrderStatusCheckout, o.Status)
	assert.Equal(t, "s1", o.Items[0].SellerID)
	assert.Equal(t, "s2", o.Items[1].SellerID)
	assert.Equal(t, shipping, o.ShippingAddress)
	assert.Equal(t, "Ana Cruz", o.CustomerName)

	require.Len(t, orderStore.Saved, 1)
	assert.Equal(t, []string{"cust-1"}, orderStore.SavedFor)
	require.Len(t, orderStore.SplitOrders, 1)
	assert.Equal(t, []string{"cust-1"}, carts.Cleared)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	orderStore := &MockOrderStore{}
	svc := newTestService(&MockCartStore{}, &MockProductLister{}, orderStore)

	_, err := svc.PlaceOrder(context.Background(), Request{CustomerID: "cust-1"})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, orderStore.Saved)
}

func TestPlaceOrder_UnknownProductHasNoSeller(t *testing.T) {
	carts := &MockCartStore{Cart: domain.Cart{Items: []domain.CartItem{{ID: "9", Name: "Gone", Price: 10, Quantity: 1}}}}
	svc := newTestService(carts, &MockProductLister{}, &MockOrderStore{})

	res, err := svc.PlaceOrder(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "", res.Order.Items[0].SellerID)
	assert.Equal(t, 10.8, res.Order.Total)
}

func TestPlaceOrder_SaveErrorKeepsCart(t *testing.T) {
	carts := &MockCartStore{Cart: domain.Cart{Items: []domain.CartItem{{ID: "1", Price: 10, Quantity: 1}}}}
	orderStore := &MockOrderStore{SaveErr: errors.New("disk full")}
	svc := newTestService(carts, &MockProductLister{}, orderStore)

	_, err := svc.PlaceOrder(context.Background(), Request{CustomerID: "cust-1"})
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, carts.Cleared)
}

func TestPlaceOrder_ProductErrorAborts(t *testing.T) {
	carts := &MockCartStore{Cart: domain.Cart{Items: []domain.CartItem{{ID: "1", Price: 10, Quantity: 1}}}}
	orderStore := &MockOrderStore{}
	svc := newTestService(carts, &MockProductLister{Err: errors.New("timeout")}, orderStore)

	_, err := svc.PlaceOrder(context.Background(), Request{})
	assert.Error(t, err)
	assert.Empty(t, orderStore.Saved)
}

func TestPlaceOrder_ClearErrorIsNotFatal(t *testing.T) {
	carts := &MockCartStore{
		Cart:     domain.Cart{Items: []domain.CartItem{{ID: "1", Price: 10, Quantity: 1}}},
		ClearErr: errors.New("redis down"),
	}
	svc := newTestService(carts, &MockProductLister{}, &MockOrderStore{})

	res, err := svc.PlaceOrder(context.Background(), Request{})
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestPlaceOrder_EndToEnd(t *testing.T) {
	mem := kv.NewMemoryStore(0)
	defer mem.Close()
	rel := relay.New("test", zap.NewNop())
	ctx := context.Background()

	products := catalog.NewStore(mem, rel, zap.NewNop())
	_, err := products.UpsertMany(ctx, []domain.Product{{ID: "1", Name: "Fresh Milk", Price: 100}}, "alpha")
	require.NoError(t, err)
	_, err = products.UpsertMany(ctx, []domain.Product{{ID: "2", Name: "Kesong Puti", Price: 50}}, "bravo")
	require.NoError(t, err)

	carts := cart.NewService(mem, rel, zap.NewNop())
	_, err = carts.Add(ctx, "cust-1", domain.CartItem{ID: "1", Name: "Fresh Milk", Price: 100, Quantity: 2})
	require.NoError(t, err)
	_, err = carts.Add(ctx, "cust-1", domain.CartItem{ID: "2", Name: "Kesong Puti", Price: 50})
	require.NoError(t, err)

	orderStore := orders.NewStore(mem, rel, zap.NewNop())
	svc := newTestService(carts, products, orderStore)

	res, err := svc.PlaceOrder(ctx, Request{CustomerID: "cust-1", Shipping: shipping, PaymentMethod: "cod"})
	require.NoError(t, err)
	assert.Equal(t, 270.0, res.Order.Total)
	require.Len(t, res.SellerOrders, 2)
	assert.Equal(t, 216.0, res.SellerOrders[0].Total)
	assert.Equal(t, 54.0, res.SellerOrders[1].Total)

	left, err := carts.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, left.Items)

	saved, err := orderStore.List(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "ORD-TEST01", saved[0].ID)

	alpha, err := orderStore.ListForSeller(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, alpha, 1)
	assert.Equal(t, "ORD-TEST01-alph", alpha[0].ID)
}
