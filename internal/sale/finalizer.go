// Package sale turns a cart into a recorded transaction and updates stock.
package sale

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayouballali/mahali-pos/internal/cart"
	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionWriter interface {
	Add(ctx context.Context, tx *domain.Transaction) (int64, error)
}

type StockUpdater interface {
	DecrementStock(ctx context.Context, productID int64, qty int) error
}

// AdjustmentQueue stores stock changes that have to be retried later.
type AdjustmentQueue interface {
	EnqueueStockAdjustment(ctx context.Context, productID int64, delta int, transactionID int64) error
}

type Finalizer struct {
	transactions TransactionWriter
	stock        StockUpdater
	queue        AdjustmentQueue
	log          *slog.Logger
	now          func() time.Time
}

func NewFinalizer(transactions TransactionWriter, stock StockUpdater, queue AdjustmentQueue, log *slog.Logger) *Finalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Finalizer{
		transactions: transactions,
		stock:        stock,
		queue:        queue,
		log:          log,
		now:          time.Now,
	}
}

// Build computes the transaction for a cart snapshot without storing it.
func Build(snap cart.Snapshot, now time.Time) *domain.Transaction {
	tx := &domain.Transaction{
		Reference: uuid.NewString(),
		Items:     make([]domain.LineItem, 0, len(snap.Lines)),
		Total:     decimal.Zero,
		Profit:    decimal.Zero,
		Status:    domain.TransactionCompleted,
		CreatedAt: now,
	}
	for _, l := range snap.Lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		sub := l.Subtotal()
		tx.Items = append(tx.Items, domain.LineItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			CostPrice: l.UnitCost(),
			Subtotal:  sub,
		})
		tx.Total = tx.Total.Add(sub)
		tx.Profit = tx.Profit.Add(l.UnitPrice.Sub(l.UnitCost()).Mul(qty))
		tx.ItemCount += l.Quantity
	}
	return tx
}

// Complete records the sale in c. The transaction is written first, then stock is
// decremented once per line. A failed transaction write leaves the cart untouched.
// Failed decrements are queued for reconciliation and reported as
// *PartialSaleError. Only the sold quantities are taken out of the cart, in the
// partial case too; lines added while the sale was being written stay.
func (f *Finalizer) Complete(ctx context.Context, c *cart.Cart) (*domain.Transaction, error) {
	snap := c.Snapshot()
	if len(snap.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	tx := Build(snap, f.now())
	id, err := f.transactions.Add(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransactionWrite, err)
	}
	tx.ID = id

	var failures []StockFailure
	for _, item := range tx.Items {
		err := f.stock.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err == nil {
			continue
		}
		failure := StockFailure{ProductID: item.ProductID, Quantity: item.Quantity, Err: err}
		if f.queue != nil {
			// a canceled request must not prevent queuing the adjustment
			qerr := f.queue.EnqueueStockAdjustment(context.WithoutCancel(ctx), item.ProductID, -item.Quantity, tx.ID)
			if qerr != nil {
				f.log.Error("failed to queue stock adjustment",
					"transaction_id", tx.ID, "product_id", item.ProductID, "error", qerr)
			} else {
				failure.Queued = true
			}
		}
		f.log.Warn("stock decrement failed",
			"transaction_id", tx.ID, "product_id", item.ProductID, "quantity", item.Quantity,
			"queued", failure.Queued, "error", err)
		failures = append(failures, failure)
	}

	c.Deduct(snap.Lines)

	if len(failures) > 0 {
		return tx, &PartialSaleError{Transaction: tx, Failures: failures}
	}
	f.log.Info("sale completed", "transaction_id", tx.ID, "reference", tx.Reference,
		"total", tx.Total.String(), "items", tx.ItemCount)
	return tx, nil
}
