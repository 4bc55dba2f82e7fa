package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/milkshop/internal/domain"
	"go.uber.org/zap"
)

type CartStore interface {
	Get(ctx context.Context, ownerID string) (domain.Cart, error)
	Clear(ctx context.Context, ownerID string) error
}

type ProductLister interface {
	List(ctx context.Context) ([]domain.Product, error)
}

type OrderStore interface {
	Save(ctx context.Context, order domain.Order, customerID string) error
	SaveForSellers(ctx context.Context, order domain.Order) ([]domain.Order, error)
}

type Request struct {
	CustomerID    string
	CustomerName  string
	Shipping      *domain.ShippingAddress
	PaymentMethod string
}

type Result struct {
	Order        domain.Order   `json:"order"`
	SellerOrders []domain.Order `json:"sellerOrders"`
}

type Service struct {
	carts    CartStore
	products ProductLister
	orders   OrderStore
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(carts CartStore, products ProductLister, orders OrderStore, log *zap.Logger) *Service {
	return &Service{
		carts:    carts,
		products: products,
		orders:   orders,
		log:      log.Named("checkout"),
		now:      time.Now,
		newID:    domain.NewOrderID,
	}
}

// PlaceOrder turns the customer's cart into an order, splits it per seller
// and empties the cart.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	cart, err := s.carts.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	order, err := s.buildOrder(ctx, cart, req)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Save(ctx, order, req.CustomerID); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	derived, err := s.orders.SaveForSellers(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to save seller orders for %s: %w", order.ID, err)
	}

	if err := s.carts.Clear(ctx, req.CustomerID); err != nil {
		// order is already stored, only log
		s.log.Error("failed to clear cart after checkout",
			zap.String("order_id", order.ID), zap.String("customer_id", req.CustomerID), zap.Error(err))
	}

	s.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.Int("seller_orders", len(derived)),
		zap.Float64("total", order.Total))
	return &Result{Order: order, SellerOrders: derived}, nil
}

func (s *Service) buildOrder(ctx context.Context, cart domain.Cart, req Request) (domain.Order, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to load products: %w", err)
	}
	sellerOf := make(map[domain.ID]string, len(products))
	for _, p := range products {
		if _, seen := sellerOf[p.ID]; !seen {
			sellerOf[p.ID] = p.SellerID
		}
	}

	items := make([]domain.OrderItem, len(cart.Items))
	hasSeller := false
	for i, ci := range cart.Items {
		items[i] = domain.OrderItem{
			ID:       ci.ID,
			Name:     ci.Name,
			Quantity: ci.Quantity,
			Price:    ci.Price,
			SellerID: sellerOf[ci.ID],
		}
		hasSeller = hasSeller || items[i].SellerID != ""
	}
	if !hasSeller {
		s.log.Warn("no seller found for any cart item", zap.String("customer_id", req.CustomerID))
	}

	return domain.Order{
		ID:              s.newID(),
		Date:            s.now().Format(domain.DateLayout),
		Total:           domain.WithTax(domain.OrderSubtotal(items)),
		Currency:        domain.DefaultCurrency,
		Status:          domain.OrderStatusCheckout,
		Items:           items,
		ShippingAddress: req.Shipping,
		PaymentMethod:   req.PaymentMethod,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
	}, nil
}
