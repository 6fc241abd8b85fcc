package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ayouballali/mahali-pos/internal/domain"
)

// EnqueueStockAdjustment records a stock change to be applied by the reconciler.
func (r *TransactionRepository) EnqueueStockAdjustment(ctx context.Context, productID int64, delta int, transactionID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_adjustments (product_id, delta, transaction_id, created_at)
		VALUES (?, ?, ?, ?)`,
		productID, delta, transactionID, toMillis(r.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue stock adjustment: %w", err)
	}
	return nil
}

// PendingStockAdjustments returns unapplied adjustments, least retried first.
func (r *TransactionRepository) PendingStockAdjustments(ctx context.Context, limit int) ([]*domain.StockAdjustment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, delta, transaction_id, attempts, last_error, created_at
		FROM stock_adjustments
		WHERE applied_at IS NULL
		ORDER BY attempts, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock adjustments: %w", err)
	}
	defer rows.Close()

	var out []*domain.StockAdjustment
	for rows.Next() {
		var (
			a         domain.StockAdjustment
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Delta, &a.TransactionID, &a.Attempts, &a.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock adjustment: %w", err)
		}
		a.CreatedAt = fromMillis(createdAt)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// ApplyStockAdjustment adds the adjustment delta to the product stock and marks it
// applied in one database transaction. Applying twice is a no-op.
func (r *TransactionRepository) ApplyStockAdjustment(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		productID int64
		delta     int
		appliedAt sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT product_id, delta, applied_at FROM stock_adjustments WHERE id = ?`, id,
	).Scan(&productID, &delta, &appliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAdjustmentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load stock adjustment %d: %w", id, err)
	}
	if appliedAt.Valid {
		return nil
	}

	now := toMillis(r.now())
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?`, delta, now, productID)
	if err != nil {
		return fmt.Errorf("failed to adjust stock of product %d: %w", productID, err)
	}
	if err := requireOneRow(res, ErrProductNotFound); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE stock_adjustments SET applied_at = ?, attempts = attempts + 1 WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("failed to mark stock adjustment %d applied: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stock adjustment %d: %w", id, err)
	}
	return nil
}

func (r *TransactionRepository) MarkAdjustmentFailed(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE stock_adjustments SET attempts = attempts + 1, last_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("failed to mark stock adjustment %d failed: %w", id, err)
	}
	return requireOneRow(res, ErrAdjustmentNotFound)
}
