// Package reconcile re-applies stock changes left behind by partially failed sales.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/ayouballali/mahali-pos/internal/domain"
)

type AdjustmentStore interface {
	PendingStockAdjustments(ctx context.Context, limit int) ([]*domain.StockAdjustment, error)
	ApplyStockAdjustment(ctx context.Context, id int64) error
	MarkAdjustmentFailed(ctx context.Context, id int64, cause error) error
}

type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, BatchSize: 100, MaxAttempts: 20}
}

type Poller struct {
	cfg   Config
	store AdjustmentStore
	log   *slog.Logger
	// applied is called after each adjustment that went through
	applied func(a *domain.StockAdjustment)
}

func NewPoller(store AdjustmentStore, cfg Config, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{cfg: cfg, store: store, log: log}
}

// OnApplied registers fn to run after every applied adjustment.
func (p *Poller) OnApplied(fn func(a *domain.StockAdjustment)) {
	p.applied = fn
}

// Run processes pending adjustments once right away, then on every tick until ctx
// is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.ProcessPending(ctx)
	for {
		select {
		case <-ticker.C:
			p.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending applies one batch and returns how many adjustments went through.
func (p *Poller) ProcessPending(ctx context.Context) int {
	pending, err := p.store.PendingStockAdjustments(ctx, p.cfg.BatchSize)
	if err != nil {
		p.log.Error("failed to fetch stock adjustments", "error", err)
		return 0
	}

	applied := 0
	for _, a := range pending {
		if ctx.Err() != nil {
			return applied
		}
		if p.cfg.MaxAttempts > 0 && a.Attempts >= p.cfg.MaxAttempts {
			continue
		}
		if err := p.store.ApplyStockAdjustment(ctx, a.ID); err != nil {
			p.log.Warn("stock adjustment failed",
				"adjustment_id", a.ID, "product_id", a.ProductID, "attempt", a.Attempts+1, "error", err)
			if errMark := p.store.MarkAdjustmentFailed(ctx, a.ID, err); errMark != nil {
				p.log.Error("failed to record stock adjustment failure", "adjustment_id", a.ID, "error", errMark)
			}
			continue
		}
		applied++
		p.log.Info("stock adjustment applied",
			"adjustment_id", a.ID, "product_id", a.ProductID, "delta", a.Delta, "transaction_id", a.TransactionID)
		if p.applied != nil {
			p.applied(a)
		}
	}
	return applied
}
