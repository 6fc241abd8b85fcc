package sale

import (
	"context"

	"github.com/ayouballali/mahali-pos/internal/domain"
)

// MockTransactionWriter records every transaction it was asked to store.
type MockTransactionWriter struct {
	AddErr    error
	NextID    int64
	Added     []*domain.Transaction
	CallCount int
	// OnAdd runs before the transaction is stored.
	OnAdd func()
}

func (m *MockTransactionWriter) Add(_ context.Context, tx *domain.Transaction) (int64, error) {
	m.CallCount++
	if m.OnAdd != nil {
		m.OnAdd()
	}
	if m.AddErr != nil {
		return 0, m.AddErr
	}
	m.Added = append(m.Added, tx)
	m.NextID++
	return m.NextID, nil
}

type decrement struct {
	ProductID int64
	Qty       int
}

// MockStockUpdater fails decrements of the products listed in FailFor.
type MockStockUpdater struct {
	FailFor    map[int64]error
	Decrements []decrement
}

func (m *MockStockUpdater) DecrementStock(_ context.Context, productID int64, qty int) error {
	m.Decrements = append(m.Decrements, decrement{productID, qty})
	if err, ok := m.FailFor[productID]; ok {
		return err
	}
	return nil
}

type adjustment struct {
	ProductID     int64
	Delta         int
	TransactionID int64
}

type MockAdjustmentQueue struct {
	Err    error
	Queued []adjustment
}

func (m *MockAdjustmentQueue) EnqueueStockAdjustment(_ context.Context, productID int64, delta int, transactionID int64) error {
	if m.Err != nil {
		return m.Err
	}
	m.Queued = append(m.Queued, adjustment{productID, delta, transactionID})
	return nil
}
