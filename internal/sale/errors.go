package sale

import (
	"errors"
	"fmt"

	"github.com/ayouballali/mahali-pos/internal/domain"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrTransactionWrite = errors.New("failed to record transaction")
	ErrPartialSale      = errors.New("sale recorded with pending stock updates")
)

// StockFailure is one line whose stock decrement did not go through.
type StockFailure struct {
	ProductID int64
	Quantity  int
	Err       error
	// Queued is true when the decrement was handed to the reconciler.
	Queued bool
}

// PartialSaleError reports a sale whose transaction was stored while some stock
// decrements failed. The transaction stands; it is not rolled back.
type PartialSaleError struct {
	Transaction *domain.Transaction
	Failures    []StockFailure
}

func (e *PartialSaleError) Error() string {
	return fmt.Sprintf("sale %s recorded but stock update failed for %d product(s)",
		e.Transaction.Reference, len(e.Failures))
}

func (e *PartialSaleError) Is(target error) bool {
	return target == ErrPartialSale
}

func (e *PartialSaleError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
