package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ayouballali/mahali-pos/internal/cache"
	"github.com/ayouballali/mahali-pos/internal/domain"
	"golang.org/x/sync/singleflight"
)

type TransactionSource interface {
	GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Transaction, error)
}

type ProductSource interface {
	LowStock(ctx context.Context, threshold int) ([]*domain.Product, error)
}

type Service struct {
	transactions      TransactionSource
	products          ProductSource
	cache             cache.ReportCache
	sfg               singleflight.Group // one computation per period at a time
	lowStockThreshold int
	log               *slog.Logger
	now               func() time.Time
	// generation changes on every invalidation; reports computed across a change
	// are not cached
	generation atomic.Uint64
}

func NewService(transactions TransactionSource, products ProductSource, c cache.ReportCache, lowStockThreshold int, log *slog.Logger) *Service {
	if c == nil {
		c = cache.NopCache{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		transactions:      transactions,
		products:          products,
		cache:             c,
		lowStockThreshold: lowStockThreshold,
		log:               log,
		now:               time.Now,
	}
}

func (s *Service) Get(ctx context.Context, period domain.Period) (*domain.Report, error) {
	now := s.now()
	from := PeriodStart(period, now)
	key := fmt.Sprintf("%s:%s", period, from.Format(time.DateOnly))

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		report, err := s.cache.Get(ctx, key)
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("report cache get failed", "key", key, "error", err)
		}

		gen := s.generation.Load()
		report, err = s.Range(ctx, from, now)
		if err != nil {
			return nil, err
		}
		report.Period = period

		if s.generation.Load() == gen {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := s.cache.Set(ctx, key, report); err != nil {
					s.log.Warn("report cache set failed", "key", key, "error", err)
				}
			}()
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Report), nil
}

// Range reports on transactions between from and to inclusive, bypassing the cache.
func (s *Service) Range(ctx context.Context, from, to time.Time) (*domain.Report, error) {
	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	txs, err := s.transactions.GetByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return &domain.Report{
		From:         from,
		To:           to,
		Stats:        Calculate(txs),
		Transactions: txs,
	}, nil
}

// Invalidate drops cached reports. Called after each recorded sale.
func (s *Service) Invalidate(ctx context.Context) {
	s.generation.Add(1)
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("report cache invalidate failed", "error", err)
	}
}

// LowStock lists products at or below the configured threshold.
func (s *Service) LowStock(ctx context.Context) ([]*domain.Product, error) {
	return s.products.LowStock(ctx, s.lowStockThreshold)
}
