package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/milkshop/internal/domain"
	"github.com/fjod/milkshop/internal/kv"
	"github.com/fjod/milkshop/internal/relay"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

var ErrProductNotFound = errors.New("product not found")

// Store is the shared product catalog. All sellers' products live in one
// collection; every change rewrites it whole.
type Store struct {
	products *kv.Collection[domain.Product]
	events   relay.Publisher
	log      *zap.Logger
	now      func() time.Time

	// mu serializes read-modify-write cycles
	mu       sync.Mutex
	migrated bool
}

func NewStore(store kv.Store, events relay.Publisher, log *zap.Logger) *Store {
	return &Store{
		products: kv.NewCollection[domain.Product](store, log),
		events:   events,
		log:      log.Named("catalog"),
		now:      time.Now,
	}
}

// List returns every product, posted or not.
func (s *Store) List(ctx context.Context) ([]domain.Product, error) {
	if err := s.ensureMigrated(ctx); err != nil {
		return nil, err
	}
	return s.products.Load(ctx, kv.KeyProducts)
}

// ListPosted returns products visible on the market, optionally only sellerID's.
func (s *Store) ListPosted(ctx context.Context, sellerID string) ([]domain.Product, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if p.IsPosted && (sellerID == "" || p.SellerID == sellerID) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListBySeller returns sellerID's products, posted or not.
func (s *Store) ListBySeller(ctx context.Context, sellerID string) ([]domain.Product, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0)
	for _, p := range all {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id domain.ID) (domain.Product, error) {
	all, err := s.List(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range all {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, ErrProductNotFound
}

// Upsert replaces the product with the same id or appends it. A product
// without a seller is assigned sellerID; one without an id gets a
// timestamp id.
func (s *Store) Upsert(ctx context.Context, p domain.Product, sellerID string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForUpdate(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	if p.ID == "" {
		p.ID = domain.NewProductID(s.now())
	}
	if p.SellerID == "" {
		p.SellerID = sellerID
	}
	p.Slug = slug.Make(p.Name)

	replaced := false
	for i := range all {
		if all[i].ID == p.ID {
			all[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, p)
	}

	if err := s.products.Save(ctx, kv.KeyProducts, all); err != nil {
		return domain.Product{}, err
	}
	s.publish(ctx, relay.ProductAdded, p)
	return p, nil
}

// UpsertMany stores a batch. With a sellerID the batch replaces everything
// that seller had, and a missing seller id or expiry date (today) is filled
// in. Without one the batch is appended to the catalog.
func (s *Store) UpsertMany(ctx context.Context, batch []domain.Product, sellerID string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForUpdate(ctx)
	if err != nil {
		return nil, err
	}

	prepared := make([]domain.Product, len(batch))
	today := s.now().Format(domain.DateLayout)
	for i, p := range batch {
		if p.ID == "" {
			p.ID = domain.ID(fmt.Sprintf("%s-%d", domain.NewProductID(s.now()), i))
		}
		if p.Slug == "" {
			p.Slug = slug.Make(p.Name)
		}
		if sellerID != "" {
			if p.SellerID == "" {
				p.SellerID = sellerID
			}
			if p.ExpiryDate == "" {
				p.ExpiryDate = today
			}
		}
		prepared[i] = p
	}

	merged := make([]domain.Product, 0, len(all)+len(prepared))
	for _, p := range all {
		if sellerID == "" || p.SellerID != sellerID {
			merged = append(merged, p)
		}
	}
	merged = append(merged, prepared...)

	if err := s.products.Save(ctx, kv.KeyProducts, merged); err != nil {
		return nil, err
	}
	s.publish(ctx, relay.SellerProductsLoaded, relay.SellerProducts{SellerID: sellerID, Count: len(prepared)})
	return prepared, nil
}

// Delete removes every entry carrying id and emits a single removal event.
func (s *Store) Delete(ctx context.Context, id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForUpdate(ctx)
	if err != nil {
		return err
	}

	kept := make([]domain.Product, 0, len(all))
	var removed *domain.Product
	for i, p := range all {
		if p.ID == id {
			if removed == nil {
				removed = &all[i]
			}
			continue
		}
		kept = append(kept, p)
	}
	if removed == nil {
		return ErrProductNotFound
	}

	if err := s.products.Save(ctx, kv.KeyProducts, kept); err != nil {
		return err
	}
	s.publish(ctx, relay.ProductRemoved, relay.ProductRef{ID: id, SellerID: removed.SellerID})
	return nil
}

// TogglePosted flips whether a product is listed on the market.
func (s *Store) TogglePosted(ctx context.Context, id domain.ID) (domain.Product, error) {
	return s.updatePosted(ctx, id, func(current bool) bool { return !current })
}

func (s *Store) SetPosted(ctx context.Context, id domain.ID, posted bool) (domain.Product, error) {
	return s.updatePosted(ctx, id, func(bool) bool { return posted })
}

func (s *Store) updatePosted(ctx context.Context, id domain.ID, next func(bool) bool) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForUpdate(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	for i := range all {
		if all[i].ID != id {
			continue
		}
		all[i].IsPosted = next(all[i].IsPosted)
		if err := s.products.Save(ctx, kv.KeyProducts, all); err != nil {
			return domain.Product{}, err
		}
		s.publish(ctx, relay.ProductPostedChanged, relay.PostedChange{ID: id, IsPosted: all[i].IsPosted})
		return all[i], nil
	}
	return domain.Product{}, ErrProductNotFound
}

// loadForUpdate must be called with mu held.
func (s *Store) loadForUpdate(ctx context.Context) ([]domain.Product, error) {
	if err := s.migrateLocked(ctx); err != nil {
		return nil, err
	}
	return s.products.LoadLatest(ctx, kv.KeyProducts)
}

func (s *Store) ensureMigrated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.migrateLocked(ctx)
}

// migrateLocked copies the legacy "sellerProducts" collection into the
// shared one the first time the shared one is found missing.
func (s *Store) migrateLocked(ctx context.Context) error {
	if s.migrated {
		return nil
	}

	exists, err := s.products.Exists(ctx, kv.KeyProducts)
	if err != nil {
		return err
	}
	if !exists {
		legacy, err := s.products.LoadLatest(ctx, kv.KeyLegacyProducts)
		if err != nil {
			return err
		}
		if len(legacy) > 0 {
			if err := s.products.Save(ctx, kv.KeyProducts, legacy); err != nil {
				return err
			}
			s.log.Info("migrated legacy seller products", zap.Int("count", len(legacy)))
		}
	}

	s.migrated = true
	return nil
}

func (s *Store) publish(ctx context.Context, typ relay.EventType, payload any) {
	if _, err := s.events.Publish(ctx, typ, payload); err != nil {
		s.log.Error("failed to publish event", zap.String("event_type", string(typ)), zap.Error(err))
	}
}
