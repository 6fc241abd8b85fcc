package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/ayouballali/mahali-pos/internal/sale"
	"github.com/ayouballali/mahali-pos/internal/sell"
)

type CheckoutHandler struct {
	register *sell.Register
	timeout  time.Duration
}

func NewCheckoutHandler(register *sell.Register, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		register: register,
		timeout:  timeout,
	}
}

type PendingStockDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Queued    bool   `json:"queued"`
	Error     string `json:"error"`
}

type CheckoutResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	// PendingStock lists stock decrements that did not go through with the sale.
	PendingStock []PendingStockDTO `json:"pending_stock,omitempty"`
}

// Checkout answers 201 for a complete sale and 207 when the sale was recorded
// but some stock decrements were left to the reconciler.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tx, err := h.register.Checkout(ctx)
	if err != nil {
		var partial *sale.PartialSaleError
		if !errors.As(err, &partial) {
			handleError(w, err)
			return
		}
		resp := CheckoutResponse{Transaction: tx}
		for _, f := range partial.Failures {
			resp.PendingStock = append(resp.PendingStock, PendingStockDTO{
				ProductID: f.ProductID,
				Quantity:  f.Quantity,
				Queued:    f.Queued,
				Error:     f.Err.Error(),
			})
		}
		respondJSON(w, http.StatusMultiStatus, resp)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponse{Transaction: tx})
}

// Deactivate is sent when the cashier leaves the sell view.
func (h *CheckoutHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.register.Deactivate()
	w.WriteHeader(http.StatusNoContent)
}
