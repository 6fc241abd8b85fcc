// Package sell runs the sell view: scans and manual entries go into the cart and a
// checkout turns the cart into a sale.
package sell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ayouballali/mahali-pos/internal/barcode"
	"github.com/ayouballali/mahali-pos/internal/cart"
	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/ayouballali/mahali-pos/internal/repository"
	"github.com/ayouballali/mahali-pos/internal/sale"
)

type EventKind string

const (
	EventScanned  EventKind = "scanned"
	EventNotFound EventKind = "not_found"
	EventRejected EventKind = "rejected"
)

// Event is the outcome of one scanned code.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Code    string          `json:"code"`
	Product *domain.Product `json:"product,omitempty"`
	Line    *cart.Line      `json:"line,omitempty"`
	Cart    *cart.Snapshot  `json:"cart,omitempty"`
}

type ProductFinder interface {
	FindByBarcode(ctx context.Context, code string) (*domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

type SaleCompleter interface {
	Complete(ctx context.Context, c *cart.Cart) (*domain.Transaction, error)
}

type ReportInvalidator interface {
	Invalidate(ctx context.Context)
}

// ScanSession is the part of a scan session the register controls.
type ScanSession interface {
	ID() string
	Stop()
}

type Register struct {
	cart      *cart.Cart
	products  ProductFinder
	sales     SaleCompleter
	reports   ReportInvalidator
	validator barcode.Validator
	log       *slog.Logger

	mu      sync.Mutex
	session ScanSession
}

func NewRegister(c *cart.Cart, products ProductFinder, sales SaleCompleter, reports ReportInvalidator, validator barcode.Validator, log *slog.Logger) *Register {
	if log == nil {
		log = slog.Default()
	}
	return &Register{
		cart:      c,
		products:  products,
		sales:     sales,
		reports:   reports,
		validator: validator,
		log:       log,
	}
}

func (r *Register) Cart() *cart.Cart { return r.cart }

func (r *Register) Validator() barcode.Validator { return r.validator }

// HandleScan looks the code up again on every scan so that products added since
// the last scan are found.
func (r *Register) HandleScan(ctx context.Context, code string) (Event, error) {
	code = strings.TrimSpace(code)
	if !r.validator.IsValid(code) {
		return Event{Kind: EventRejected, Code: code}, nil
	}

	p, err := r.products.FindByBarcode(ctx, code)
	if errors.Is(err, repository.ErrProductNotFound) {
		r.log.Info("scanned code not in catalogue", "code", code)
		return Event{Kind: EventNotFound, Code: code}, nil
	}
	if err != nil {
		return Event{}, fmt.Errorf("lookup barcode %s: %w", code, err)
	}

	line := r.cart.Add(*p)
	snap := r.cart.Snapshot()
	return Event{Kind: EventScanned, Code: code, Product: p, Line: &line, Cart: &snap}, nil
}

// AddManual adds qty units of a product picked by hand.
func (r *Register) AddManual(ctx context.Context, productID int64, qty int) (cart.Line, error) {
	p, err := r.products.GetByID(ctx, productID)
	if err != nil {
		return cart.Line{}, err
	}
	return r.cart.AddN(*p, qty), nil
}

// Checkout completes the sale of the current cart. A partial sale returns the
// transaction together with a *sale.PartialSaleError.
func (r *Register) Checkout(ctx context.Context) (*domain.Transaction, error) {
	tx, err := r.sales.Complete(ctx, r.cart)
	if tx != nil && r.reports != nil {
		r.reports.Invalidate(context.WithoutCancel(ctx))
	}
	if err != nil {
		var partial *sale.PartialSaleError
		if errors.As(err, &partial) {
			r.log.Warn("sale recorded with pending stock updates",
				"transaction_id", tx.ID, "failures", len(partial.Failures))
		}
		return tx, err
	}
	return tx, nil
}

func (r *Register) Cancel() {
	r.cart.Clear()
}

// Deactivate is called when the sell view loses focus. It ends any scan session
// and empties the cart.
func (r *Register) Deactivate() {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()

	if s != nil {
		s.Stop()
	}
	r.cart.Clear()
}

// AttachSession makes s the register's only scan session, stopping the previous one.
func (r *Register) AttachSession(s ScanSession) {
	r.mu.Lock()
	prev := r.session
	r.session = s
	r.mu.Unlock()

	if prev != nil && prev != s {
		r.log.Info("replacing scan session", "previous", prev.ID(), "next", s.ID())
		prev.Stop()
	}
}

// DetachSession forgets s if it is still the attached session. It does not stop it.
func (r *Register) DetachSession(s ScanSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == s {
		r.session = nil
	}
}

func (r *Register) Session() ScanSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}
