package sell

import (
	"context"
	"sync/atomic"

	"github.com/ayouballali/mahali-pos/internal/cart"
	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/ayouballali/mahali-pos/internal/repository"
)

type MockProducts struct {
	ByBarcode map[string]*domain.Product
	ByID      map[int64]*domain.Product
	Err       error
	Lookups   int
}

func (m *MockProducts) FindByBarcode(_ context.Context, code string) (*domain.Product, error) {
	m.Lookups++
	if m.Err != nil {
		return nil, m.Err
	}
	if p, ok := m.ByBarcode[code]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProductNotFound
}

func (m *MockProducts) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	if p, ok := m.ByID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrProductNotFound
}

type MockSales struct {
	Tx  *domain.Transaction
	Err error
}

func (m *MockSales) Complete(_ context.Context, c *cart.Cart) (*domain.Transaction, error) {
	if m.Tx != nil {
		c.Clear()
	}
	return m.Tx, m.Err
}

type MockReports struct {
	Invalidated int
}

func (m *MockReports) Invalidate(context.Context) { m.Invalidated++ }

type MockSession struct {
	id      string
	stopped atomic.Int32
}

func (m *MockSession) ID() string { return m.id }
func (m *MockSession) Stop()      { m.stopped.Add(1) }
