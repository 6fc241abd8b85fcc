package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
)

// LineItem is one sold product, with name and prices captured at sale time.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Transaction is immutable once persisted.
type Transaction struct {
	ID        int64             `json:"id"`
	Reference string            `json:"reference"`
	Items     []LineItem        `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	Profit    decimal.Decimal   `json:"profit"`
	ItemCount int               `json:"item_count"`
	Status    TransactionStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// StockAdjustment is a stock change that could not be applied when the sale was
// recorded and waits for reconciliation.
type StockAdjustment struct {
	ID            int64      `json:"id"`
	ProductID     int64      `json:"product_id"`
	Delta         int        `json:"delta"`
	TransactionID int64      `json:"transaction_id"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	AppliedAt     *time.Time `json:"applied_at,omitempty"`
}
