package reconcile

import (
	"context"
	"sync"

	"github.com/ayouballali/mahali-pos/internal/domain"
)

type MockStore struct {
	mu         sync.Mutex
	Pending    []*domain.StockAdjustment
	PendingErr error
	ApplyErr   map[int64]error
	MarkErr    error
	Applied    []int64
	Failed     map[int64]string
	FetchCount int
}

func (m *MockStore) PendingStockAdjustments(_ context.Context, limit int) ([]*domain.StockAdjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCount++
	if m.PendingErr != nil {
		return nil, m.PendingErr
	}
	var out []*domain.StockAdjustment
	for _, a := range m.Pending {
		if a.AppliedAt == nil && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockStore) ApplyStockAdjustment(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ApplyErr[id]; err != nil {
		return err
	}
	for _, a := range m.Pending {
		if a.ID == id {
			now := a.CreatedAt
			a.AppliedAt = &now
		}
	}
	m.Applied = append(m.Applied, id)
	return nil
}

func (m *MockStore) MarkAdjustmentFailed(_ context.Context, id int64, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failed == nil {
		m.Failed = make(map[int64]string)
	}
	m.Failed[id] = cause.Error()
	for _, a := range m.Pending {
		if a.ID == id {
			a.Attempts++
		}
	}
	return m.MarkErr
}

func (m *MockStore) appliedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.Applied...)
}
