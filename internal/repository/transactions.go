package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayouballali/mahali-pos/internal/domain"
)

type TransactionRepository struct {
	db  *sql.DB
	now func() time.Time
}

const transactionColumns = `id, reference, items, total, profit, item_count, status, created_at`

func (r *TransactionRepository) Add(ctx context.Context, tx *domain.Transaction) (int64, error) {
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal transaction items: %w", err)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = r.now()
	}
	if tx.Status == "" {
		tx.Status = domain.TransactionCompleted
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (reference, items, total, profit, item_count, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.Reference, string(items), tx.Total, tx.Profit, tx.ItemCount, string(tx.Status), toMillis(tx.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction id: %w", err)
	}
	tx.ID = id
	return id, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return tx, nil
}

func (r *TransactionRepository) GetAll(ctx context.Context) ([]*domain.Transaction, error) {
	return r.query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY created_at, id`)
}

// GetByDateRange returns transactions created between from and to, both inclusive.
func (r *TransactionRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Transaction, error) {
	return r.query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at, id`, toMillis(from), toMillis(to))
}

func (r *TransactionRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []*domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return txs, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		tx        domain.Transaction
		items     string
		status    string
		createdAt int64
	)
	if err := s.Scan(&tx.ID, &tx.Reference, &items, &tx.Total, &tx.Profit, &tx.ItemCount, &status, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &tx.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items of transaction %d: %w", tx.ID, err)
	}
	tx.Status = domain.TransactionStatus(status)
	tx.CreatedAt = fromMillis(createdAt)
	return &tx, nil
}
