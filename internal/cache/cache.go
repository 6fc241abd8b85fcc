// Package cache keeps computed sales reports out of the database hot path.
package cache

import (
	"context"
	"errors"

	"github.com/ayouballali/mahali-pos/internal/domain"
)

type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.Report, error)
	Set(ctx context.Context, key string, report *domain.Report) error
	// Invalidate drops every cached report.
	Invalidate(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache is used when no redis server is configured. Every Get misses.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.Report, error) { return nil, ErrCacheMiss }

func (NopCache) Set(context.Context, string, *domain.Report) error { return nil }

func (NopCache) Invalidate(context.Context) error { return nil }
