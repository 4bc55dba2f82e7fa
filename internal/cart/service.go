package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/milkshop/internal/domain"
	"github.com/fjod/milkshop/internal/kv"
	"github.com/fjod/milkshop/internal/relay"
	"go.uber.org/zap"
)

var ErrItemNotFound = errors.New("item not in cart")

// Service keeps one cart per owner. An empty owner id is the anonymous cart.
type Service struct {
	items  *kv.Collection[domain.CartItem]
	events relay.Publisher
	log    *zap.Logger

	mu sync.Mutex
}

func NewService(store kv.Store, events relay.Publisher, log *zap.Logger) *Service {
	return &Service{
		items:  kv.NewCollection[domain.CartItem](store, log),
		events: events,
		log:    log.Named("cart"),
	}
}

func (s *Service) Get(ctx context.Context, ownerID string) (domain.Cart, error) {
	items, err := s.items.Load(ctx, kv.Scoped(kv.KeyCart, ownerID))
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.Cart{OwnerID: ownerID, Items: items}, nil
}

// Add puts item in the cart. A product already in the cart has its quantity
// raised instead. item.Quantity is the amount to add; zero or less means one.
func (s *Service) Add(ctx context.Context, ownerID string, item domain.CartItem) (domain.Cart, error) {
	add := item.Quantity
	if add <= 0 {
		add = 1
	}
	return s.modify(ctx, ownerID, func(items []domain.CartItem) ([]domain.CartItem, error) {
		for i := range items {
			if items[i].ID == item.ID {
				items[i].Quantity += add
				return items, nil
			}
		}
		item.Quantity = add
		return append(items, item), nil
	})
}

func (s *Service) Remove(ctx context.Context, ownerID string, id domain.ID) (domain.Cart, error) {
	return s.modify(ctx, ownerID, func(items []domain.CartItem) ([]domain.CartItem, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, ErrItemNotFound
	})
}

// UpdateQuantity sets the quantity of a cart line; zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, ownerID string, id domain.ID, quantity int) (domain.Cart, error) {
	if quantity <= 0 {
		return s.Remove(ctx, ownerID, id)
	}
	return s.modify(ctx, ownerID, func(items []domain.CartItem) ([]domain.CartItem, error) {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = quantity
				return items, nil
			}
		}
		return nil, ErrItemNotFound
	})
}

func (s *Service) Clear(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.items.Delete(ctx, kv.Scoped(kv.KeyCart, ownerID))
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	s.publish(ctx, ownerID, 0)
	return nil
}

func (s *Service) Total(ctx context.Context, ownerID string) (float64, error) {
	c, err := s.Get(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return c.Total(), nil
}

func (s *Service) Count(ctx context.Context, ownerID string) (int, error) {
	c, err := s.Get(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

func (s *Service) modify(ctx context.Context, ownerID string, fn func([]domain.CartItem) ([]domain.CartItem, error)) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := kv.Scoped(kv.KeyCart, ownerID)
	items, err := s.items.LoadLatest(ctx, key)
	if err != nil {
		return domain.Cart{}, err
	}
	items, err = fn(items)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.items.Save(ctx, key, items); err != nil {
		return domain.Cart{}, err
	}

	c := domain.Cart{OwnerID: ownerID, Items: items}
	s.publish(ctx, ownerID, c.Count())
	return c, nil
}

func (s *Service) publish(ctx context.Context, ownerID string, count int) {
	if _, err := s.events.Publish(ctx, relay.CartUpdated, relay.CartChange{OwnerID: ownerID, Count: count}); err != nil {
		s.log.Warn("failed to publish cart change", zap.String("owner_id", ownerID), zap.Error(err))
	}
}
