package checkout

import (
	"context"

	"github.com/fjod/milkshop/internal/domain"
)

// MockCartStore implements CartStore for testing
type MockCartStore struct {
	Cart     domain.Cart
	GetErr   error
	ClearErr error
	Cleared  []string
}

func (m *MockCartStore) Get(_ context.Context, ownerID string) (domain.Cart, error) {
	if m.GetErr != nil {
		return domain.Cart{}, m.GetErr
	}
	c := m.Cart
	c.OwnerID = ownerID
	return c, nil
}

func (m *MockCartStore) Clear(_ context.Context, ownerID string) error {
	m.Cleared = append(m.Cleared, ownerID)
	return m.ClearErr
}

// MockProductLister implements ProductLister for testing
type MockProductLister struct {
	Products []domain.Product
	Err      error
}

func (m *MockProductLister) List(context.Context) ([]domain.Product, error) {
	return m.Products, m.Err
}

// MockOrderStore implements OrderStore for testing
type MockOrderStore struct {
	Saved       []domain.Order
	SavedFor    []string
	SplitOrders []domain.Order
	SaveErr     error
	SplitErr    error
}

func (m *MockOrderStore) Save(_ context.Context, order domain.Order, customerID string) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saved = append(m.Saved, order)
	m.SavedFor = append(m.SavedFor, customerID)
	return nil
}

func (m *MockOrderStore) SaveForSellers(_ context.Context, order domain.Order) ([]domain.Order, error) {
	if m.SplitErr != nil {
		return nil, m.SplitErr
	}
	m.SplitOrders = append(m.SplitOrders, order)
	return []domain.Order{}, nil
}
