package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Stats aggregates a set of transactions.
type Stats struct {
	Sales      decimal.Decimal `json:"sales"`
	Profit     decimal.Decimal `json:"profit"`
	SalesCount int             `json:"sales_count"`
	ItemsSold  int             `json:"items_sold"`
	// ProfitMargin is a whole percentage of sales.
	ProfitMargin int64 `json:"profit_margin"`
}

type Report struct {
	Period       Period         `json:"period"`
	From         time.Time      `json:"from"`
	To           time.Time      `json:"to"`
	Stats        Stats          `json:"stats"`
	Transactions []*Transaction `json:"transactions"`
}
