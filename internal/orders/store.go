package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fjod/milkshop/internal/domain"
	"github.com/fjod/milkshop/internal/kv"
	"github.com/fjod/milkshop/internal/relay"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal transition of order status")
)

// Store keeps customer orders and the per-seller orders derived from them.
//
// Layout:
//
//	milkShopOrders[_<customer>]       customer's own orders
//	milkShopAllOrders                 every customer order
//	milkShopSellerOrders_<seller>     seller's share of each order
//	milkShopAllSellerOrders           every seller order
type Store struct {
	orders *kv.Collection[domain.Order]
	events relay.Publisher
	log    *zap.Logger

	mu sync.Mutex
}

func NewStore(store kv.Store, events relay.Publisher, log *zap.Logger) *Store {
	return &Store{
		orders: kv.NewCollection[domain.Order](store, log),
		events: events,
		log:    log.Named("orders"),
	}
}

// Save appends order to the customer's list and to the list of all orders.
func (s *Store) Save(ctx context.Context, order domain.Order, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendTo(ctx, kv.Scoped(kv.KeyOrders, customerID), order); err != nil {
		return err
	}
	return s.appendTo(ctx, kv.KeyAllOrders, order)
}

// SaveForSellers splits order by item seller and stores one derived order
// per seller. Items without a seller are not assigned to anyone.
func (s *Store) SaveForSellers(ctx context.Context, order domain.Order) ([]domain.Order, error) {
	bySeller := make(map[string][]domain.OrderItem)
	var sellers []string
	for _, it := range order.Items {
		if it.SellerID == "" {
			continue
		}
		if _, ok := bySeller[it.SellerID]; !ok {
			sellers = append(sellers, it.SellerID)
		}
		bySeller[it.SellerID] = append(bySeller[it.SellerID], it)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	derived := make([]domain.Order, 0, len(sellers))
	for _, sellerID := range sellers {
		items := bySeller[sellerID]
		so := order
		so.ID = domain.SellerOrderID(order.ID, sellerID)
		so.Items = items
		so.Total = domain.WithTax(domain.OrderSubtotal(items))
		so.SellerID = sellerID
		so.ParentID = order.ID

		if err := s.appendTo(ctx, kv.Scoped(kv.KeySellerOrders, sellerID), so); err != nil {
			return derived, err
		}
		if err := s.appendTo(ctx, kv.KeyAllSellerOrders, so); err != nil {
			return derived, err
		}
		derived = append(derived, so)

		s.publish(ctx, relay.NewOrderPlaced, relay.OrderPlaced{
			OrderID:    so.ID,
			ParentID:   order.ID,
			SellerID:   sellerID,
			CustomerID: order.CustomerID,
			Total:      so.Total,
		})
	}

	if len(derived) > 0 {
		s.publish(ctx, relay.OrderStatusUpdated, relay.OrderStatusChange{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			SellerIDs:  sellers,
			Status:     order.Status,
		})
	}
	return derived, nil
}

// List returns the customer's orders; an empty customerID reads the anonymous list.
func (s *Store) List(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.orders.Load(ctx, kv.Scoped(kv.KeyOrders, customerID))
}

func (s *Store) Get(ctx context.Context, customerID, orderID string) (domain.Order, error) {
	list, err := s.List(ctx, customerID)
	if err != nil {
		return domain.Order{}, err
	}
	for _, o := range list {
		if o.ID == orderID {
			return o, nil
		}
	}
	return domain.Order{}, ErrOrderNotFound
}

// ListForSeller returns the seller's derived orders. No seller, no orders.
func (s *Store) ListForSeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	if sellerID == "" {
		return []domain.Order{}, nil
	}
	return s.orders.Load(ctx, kv.Scoped(kv.KeySellerOrders, sellerID))
}

func (s *Store) ListAllSellerOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.Load(ctx, kv.KeyAllSellerOrders)
}

// UpdateStatus changes a customer order and every copy of it: the all-orders
// entry and the derived seller orders.
func (s *Store) UpdateStatus(ctx context.Context, customerID, orderID string, status domain.OrderStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := kv.Scoped(kv.KeyOrders, customerID)
	list, err := s.orders.LoadLatest(ctx, key)
	if err != nil {
		return domain.Order{}, err
	}
	idx := indexOf(list, orderID)
	if idx < 0 {
		return domain.Order{}, ErrOrderNotFound
	}
	if !list[idx].Status.CanTransitionTo(status) {
		return domain.Order{}, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, list[idx].Status, status)
	}

	list[idx].Status = status
	if err := s.orders.Save(ctx, key, list); err != nil {
		return domain.Order{}, err
	}
	updated := list[idx]

	if _, err := s.patchStatus(ctx, kv.KeyAllOrders, byID(orderID), status); err != nil {
		return updated, err
	}

	derived, err := s.patchStatus(ctx, kv.KeyAllSellerOrders, byParent(orderID), status)
	if err != nil {
		return updated, err
	}
	for _, sellerID := range sellerIDs(derived) {
		if _, err := s.patchStatus(ctx, kv.Scoped(kv.KeySellerOrders, sellerID), byParent(orderID), status); err != nil {
			return updated, err
		}
	}

	s.publish(ctx, relay.OrderStatusUpdated, relay.OrderStatusChange{
		OrderID:    orderID,
		CustomerID: customerID,
		SellerIDs:  sellerIDs(derived),
		Status:     status,
	})
	return updated, nil
}

// UpdateSellerStatus changes a seller's derived order and carries the status
// over to the customer order it came from.
func (s *Store) UpdateSellerStatus(ctx context.Context, sellerID, orderID string, status domain.OrderStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := kv.Scoped(kv.KeySellerOrders, sellerID)
	list, err := s.orders.LoadLatest(ctx, key)
	if err != nil {
		return domain.Order{}, err
	}
	idx := indexOf(list, orderID)
	if sellerID == "" || idx < 0 {
		return domain.Order{}, ErrOrderNotFound
	}
	if !list[idx].Status.CanTransitionTo(status) {
		return domain.Order{}, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, list[idx].Status, status)
	}

	list[idx].Status = status
	if err := s.orders.Save(ctx, key, list); err != nil {
		return domain.Order{}, err
	}
	updated := list[idx]

	if _, err := s.patchStatus(ctx, kv.KeyAllSellerOrders, bySellerOrder(sellerID, orderID), status); err != nil {
		return updated, err
	}
	s.publish(ctx, relay.OrderStatusUpdated, relay.OrderStatusChange{
		OrderID:    orderID,
		SellerID:   sellerID,
		CustomerID: updated.CustomerID,
		Status:     status,
	})

	parentID := updated.ParentID
	if parentID == "" {
		return updated, nil
	}

	parentKey := kv.Scoped(kv.KeyOrders, updated.CustomerID)
	parents, err := s.orders.LoadLatest(ctx, parentKey)
	if err != nil {
		return updated, err
	}
	pidx := indexOf(parents, parentID)
	switch {
	case pidx < 0:
		s.log.Warn("parent order missing", zap.String("order_id", orderID), zap.String("parent_id", parentID))
		return updated, nil
	case !parents[pidx].Status.CanTransitionTo(status):
		s.log.Info("parent order keeps its status",
			zap.String("parent_id", parentID),
			zap.String("status", string(parents[pidx].Status)),
			zap.String("requested", string(status)))
		return updated, nil
	}

	parents[pidx].Status = status
	if err := s.orders.Save(ctx, parentKey, parents); err != nil {
		return updated, err
	}
	if _, err := s.patchStatus(ctx, kv.KeyAllOrders, byID(parentID), status); err != nil {
		return updated, err
	}
	s.publish(ctx, relay.OrderStatusUpdated, relay.OrderStatusChange{
		OrderID:    parentID,
		SellerID:   sellerID,
		CustomerID: updated.CustomerID,
		Status:     status,
	})
	return updated, nil
}

// appendTo must be called with mu held.
func (s *Store) appendTo(ctx context.Context, key string, order domain.Order) error {
	list, err := s.orders.LoadLatest(ctx, key)
	if err != nil {
		return err
	}
	return s.orders.Save(ctx, key, append(list, order))
}

// patchStatus sets status on every order in key matching match and returns
// the patched orders. The collection is only written when something matched.
func (s *Store) patchStatus(ctx context.Context, key string, match func(domain.Order) bool, status domain.OrderStatus) ([]domain.Order, error) {
	list, err := s.orders.LoadLatest(ctx, key)
	if err != nil {
		return nil, err
	}
	var patched []domain.Order
	for i := range list {
		if match(list[i]) {
			list[i].Status = status
			patched = append(patched, list[i])
		}
	}
	if len(patched) == 0 {
		return nil, nil
	}
	return patched, s.orders.Save(ctx, key, list)
}

func (s *Store) publish(ctx context.Context, typ relay.EventType, payload any) {
	if _, err := s.events.Publish(ctx, typ, payload); err != nil {
		s.log.Error("failed to publish event", zap.String("event_type", string(typ)), zap.Error(err))
	}
}

func indexOf(list []domain.Order, id string) int {
	for i, o := range list {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func byID(id string) func(domain.Order) bool {
	return func(o domain.Order) bool { return o.ID == id }
}

// bySellerOrder matches on seller too: derived ids only carry a short
// seller prefix and may collide across sellers.
func bySellerOrder(sellerID, id string) func(domain.Order) bool {
	return func(o domain.Order) bool { return o.ID == id && o.SellerID == sellerID }
}

func byParent(id string) func(domain.Order) bool {
	return func(o domain.Order) bool { return o.ParentID == id }
}

func sellerIDs(orders []domain.Order) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range orders {
		if o.SellerID != "" && !seen[o.SellerID] {
			seen[o.SellerID] = true
			out = append(out, o.SellerID)
		}
	}
	sort.Strings(out)
	return out
}
