package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleType tells whether a product is sold by the piece or by weight.
type SaleType string

const (
	SaleByUnit   SaleType = "unit"
	SaleByWeight SaleType = "weight"
)

type Product struct {
	ID        int64           `json:"id"`
	Barcode   string          `json:"barcode,omitempty"`
	Name      string          `json:"name"`
	SalePrice decimal.Decimal `json:"sale_price"`
	// CostPrice is nil when the shop never entered a purchase price.
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	Stock     int              `json:"stock"`
	Image     string           `json:"image,omitempty"`
	SaleType  SaleType         `json:"sale_type"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ProductUpdate carries a partial update; nil fields are left untouched.
type ProductUpdate struct {
	Barcode   *string          `json:"barcode,omitempty"`
	Name      *string          `json:"name,omitempty"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	Stock     *int             `json:"stock,omitempty"`
	Image     *string          `json:"image,omitempty"`
	SaleType  *SaleType        `json:"sale_type,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ProductUpdate) IsEmpty() bool {
	return u.Barcode == nil && u.Name == nil && u.SalePrice == nil && u.CostPrice == nil &&
		u.Stock == nil && u.Image == nil && u.SaleType == nil
}

// EffectiveCost returns the cost price, falling back to the sale price so that a
// product without a recorded cost yields zero profit.
func (p Product) EffectiveCost() decimal.Decimal {
	if p.CostPrice == nil {
		return p.SalePrice
	}
	return *p.CostPrice
}
