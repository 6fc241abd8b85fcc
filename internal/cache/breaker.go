package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: 30 * time.Second}
}

// BreakerCache stops calling a failing cache for a while. While the breaker is open
// reads miss and writes are dropped.
type BreakerCache struct {
	next ReportCache
	get  *gobreaker.CircuitBreaker[*domain.Report]
	put  *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerCache(next ReportCache, s BreakerSettings, log *slog.Logger) *BreakerCache {
	if log == nil {
		log = slog.Default()
	}
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= s.ConsecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrCacheMiss)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("cache circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}
	}
	return &BreakerCache{
		next: next,
		get:  gobreaker.NewCircuitBreaker[*domain.Report](settings("report-cache-read")),
		put:  gobreaker.NewCircuitBreaker[struct{}](settings("report-cache-write")),
	}
}

func (b *BreakerCache) Get(ctx context.Context, key string) (*domain.Report, error) {
	report, err := b.get.Execute(func() (*domain.Report, error) {
		return b.next.Get(ctx, key)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCacheMiss
	}
	return report, err
}

func (b *BreakerCache) Set(ctx context.Context, key string, report *domain.Report) error {
	_, err := b.put.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Set(ctx, key, report)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil
	}
	return err
}

// Invalidate bypasses the breaker.
func (b *BreakerCache) Invalidate(ctx context.Context) error {
	return b.next.Invalidate(ctx)
}

func (b *BreakerCache) State() gobreaker.State {
	return b.get.State()
}
