package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductRepository struct {
	db  *sql.DB
	now func() time.Time
}

const productColumns = `id, barcode, name, sale_price, cost_price, stock, image, sale_type, created_at, updated_at`

func validateProduct(p *domain.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.SalePrice.IsNegative() {
		return fmt.Errorf("%w: sale price is negative", ErrInvalidProduct)
	}
	if p.CostPrice != nil && p.CostPrice.IsNegative() {
		return fmt.Errorf("%w: cost price is negative", ErrInvalidProduct)
	}
	switch p.SaleType {
	case domain.SaleByUnit, domain.SaleByWeight:
	default:
		return fmt.Errorf("%w: unknown sale type %q", ErrInvalidProduct, p.SaleType)
	}
	return nil
}

// Add stores p and fills in its ID and timestamps.
func (r *ProductRepository) Add(ctx context.Context, p *domain.Product) (int64, error) {
	if p.SaleType == "" {
		p.SaleType = domain.SaleByUnit
	}
	if err := validateProduct(p); err != nil {
		return 0, err
	}
	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO products (barcode, name, sale_price, cost_price, stock, image, sale_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(p.Barcode), p.Name, p.SalePrice, nullDecimal(p.CostPrice), p.Stock, p.Image,
		string(p.SaleType), toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read product id: %w", err)
	}
	p.ID = id
	return id, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

// FindByBarcode returns the first product carrying code.
func (r *ProductRepository) FindByBarcode(ctx context.Context, code string) (*domain.Product, error) {
	if code == "" {
		return nil, ErrProductNotFound
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE barcode = ? ORDER BY id LIMIT 1`, code)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by barcode: %w", err)
	}
	return p, nil
}

func (r *ProductRepository) GetAll(ctx context.Context) ([]*domain.Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
}

// Search matches query against the name, ignoring case, or against the barcode.
// An empty query returns every product.
func (r *ProductRepository) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return r.GetAll(ctx)
	}
	return r.query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE instr(lower(name), lower(?)) > 0
		   OR (barcode IS NOT NULL AND instr(barcode, ?) > 0)
		ORDER BY id`, query, query)
}

// LowStock returns products whose stock is at or below threshold, lowest first.
func (r *ProductRepository) LowStock(ctx context.Context, threshold int) ([]*domain.Product, error) {
	return r.query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE stock <= ?
		ORDER BY stock, id`, threshold)
}

// Update applies the non-nil fields of u and returns the stored product.
func (r *ProductRepository) Update(ctx context.Context, id int64, u domain.ProductUpdate) (*domain.Product, error) {
	if u.IsEmpty() {
		return nil, ErrEmptyUpdate
	}
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Barcode != nil {
		p.Barcode = *u.Barcode
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.SalePrice != nil {
		p.SalePrice = *u.SalePrice
	}
	if u.CostPrice != nil {
		cost := *u.CostPrice
		p.CostPrice = &cost
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Image != nil {
		p.Image = *u.Image
	}
	if u.SaleType != nil {
		p.SaleType = *u.SaleType
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = r.now()

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET barcode = ?, name = ?, sale_price = ?, cost_price = ?, stock = ?, image = ?, sale_type = ?, updated_at = ?
		WHERE id = ?`,
		nullString(p.Barcode), p.Name, p.SalePrice, nullDecimal(p.CostPrice), p.Stock, p.Image,
		string(p.SaleType), toMillis(p.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}
	if err := requireOneRow(res, ErrProductNotFound); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	return requireOneRow(res, ErrProductNotFound)
}

// DecrementStock subtracts qty from the product stock. Stock may go negative when
// the shelf count was wrong.
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ?`,
		qty, toMillis(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to decrement stock of product %d: %w", id, err)
	}
	return requireOneRow(res, ErrProductNotFound)
}

func (r *ProductRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*domain.Product, error) {
	var (
		p         domain.Product
		barcode   sql.NullString
		cost      decimal.NullDecimal
		saleType  string
		createdAt int64
		updatedAt int64
	)
	err := s.Scan(&p.ID, &barcode, &p.Name, &p.SalePrice, &cost, &p.Stock, &p.Image, &saleType, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.Barcode = barcode.String
	if cost.Valid {
		c := cost.Decimal
		p.CostPrice = &c
	}
	p.SaleType = domain.SaleType(saleType)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func requireOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
