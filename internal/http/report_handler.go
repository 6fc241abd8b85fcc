package http

import (
	"context"
	"net/http"
	"time"

	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/ayouballali/mahali-pos/internal/stats"
)

type ReportSource interface {
	Get(ctx context.Context, period domain.Period) (*domain.Report, error)
	Range(ctx context.Context, from, to time.Time) (*domain.Report, error)
}

type TransactionReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
}

type ReportHandler struct {
	reports      ReportSource
	transactions TransactionReader
	timeout      time.Duration
	now          func() time.Time
}

func NewReportHandler(reports ReportSource, transactions TransactionReader, timeout time.Duration) *ReportHandler {
	return &ReportHandler{
		reports:      reports,
		transactions: transactions,
		timeout:      timeout,
		now:          time.Now,
	}
}

// Report serves the dashboard figures for ?period=today|week|month.
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.reports.Get(ctx, stats.ParsePeriod(r.URL.Query().Get("period")))
	if err != nil {
		handleError(w, err)
		return
	}

	respondReport(w, report)
}

// Transactions lists sales between ?from= and ?to=, given as RFC 3339 timestamps
// or YYYY-MM-DD dates. A bare to date covers that whole day. Defaults are today's
// midnight and now.
func (h *ReportHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	now := h.now()
	from, ok := parseTime(w, r, "from", stats.PeriodStart(domain.PeriodToday, now), false)
	if !ok {
		return
	}
	to, ok := parseTime(w, r, "to", now, true)
	if !ok {
		return
	}

	report, err := h.reports.Range(ctx, from, to)
	if err != nil {
		handleError(w, err)
		return
	}

	respondReport(w, report)
}

func (h *ReportHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	tx, err := h.transactions.GetByID(ctx, id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

func parseTime(w http.ResponseWriter, r *http.Request, param string, def time.Time, endOfDay bool) (time.Time, bool) {
	v := r.URL.Query().Get(param)
	if v == "" {
		return def, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_"+param, param+" must be RFC 3339 or YYYY-MM-DD")
		return time.Time{}, false
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return t, true
}

// respondReport copies the report, which may be shared with other requests.
func respondReport(w http.ResponseWriter, report *domain.Report) {
	out := *report
	out.Transactions = nonNil(out.Transactions)
	respondJSON(w, http.StatusOK, out)
}
