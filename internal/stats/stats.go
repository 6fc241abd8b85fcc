// Package stats computes sales reports over recorded transactions.
package stats

import (
	"time"

	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Calculate aggregates txs. The margin is 0 when nothing was sold.
func Calculate(txs []*domain.Transaction) domain.Stats {
	st := domain.Stats{Sales: decimal.Zero, Profit: decimal.Zero}
	for _, tx := range txs {
		st.Sales = st.Sales.Add(tx.Total)
		st.Profit = st.Profit.Add(tx.Profit)
		st.ItemsSold += tx.ItemCount
		st.SalesCount++
	}
	if st.Sales.IsPositive() {
		st.ProfitMargin = st.Profit.Div(st.Sales).Mul(hundred).Round(0).IntPart()
	}
	return st
}

// ParsePeriod maps a query value to a period. Unknown values mean today.
func ParsePeriod(s string) domain.Period {
	switch p := domain.Period(s); p {
	case domain.PeriodWeek, domain.PeriodMonth:
		return p
	default:
		return domain.PeriodToday
	}
}

// PeriodStart returns the local midnight a period starts at, relative to now.
func PeriodStart(p domain.Period, now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch p {
	case domain.PeriodWeek:
		return midnight.AddDate(0, 0, -7)
	case domain.PeriodMonth:
		return midnight.AddDate(0, -1, 0)
	default:
		return midnight
	}
}
