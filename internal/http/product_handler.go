package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductStore interface {
	Add(ctx context.Context, p *domain.Product) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	FindByBarcode(ctx context.Context, code string) (*domain.Product, error)
	GetAll(ctx context.Context) ([]*domain.Product, error)
	Search(ctx context.Context, query string) ([]*domain.Product, error)
	Update(ctx context.Context, id int64, u domain.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

type LowStockLister interface {
	LowStock(ctx context.Context) ([]*domain.Product, error)
}

type ProductHandler struct {
	products ProductStore
	lowStock LowStockLister
	timeout  time.Duration
	maxBody  int64
}

func NewProductHandler(products ProductStore, lowStock LowStockLister, timeout time.Duration, maxBody int64) *ProductHandler {
	return &ProductHandler{
		products: products,
		lowStock: lowStock,
		timeout:  timeout,
		maxBody:  maxBody,
	}
}

type CreateProductRequestDTO struct {
	Barcode   string           `json:"barcode"`
	Name      string           `json:"name"`
	SalePrice decimal.Decimal  `json:"sale_price"`
	CostPrice *decimal.Decimal `json:"cost_price"`
	Stock     int              `json:"stock"`
	Image     string           `json:"image"`
	SaleType  domain.SaleType  `json:"sale_type"`
}

type ProductsResponse struct {
	Products []*domain.Product `json:"products"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		products []*domain.Product
		err      error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		products, err = h.products.Search(ctx, q)
	} else {
		products, err = h.products.GetAll(ctx)
	}
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ProductsResponse{Products: nonNil(products)})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateProductRequestDTO
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}

	p := &domain.Product{
		Barcode:   strings.TrimSpace(req.Barcode),
		Name:      strings.TrimSpace(req.Name),
		SalePrice: req.SalePrice,
		CostPrice: req.CostPrice,
		Stock:     req.Stock,
		Image:     req.Image,
		SaleType:  req.SaleType,
	}
	if _, err := h.products.Add(ctx, p); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.products.GetByID(ctx, id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// GetByBarcode serves the quick lookup used after a not_found scan to decide
// between adding the product and selling it.
func (h *ProductHandler) GetByBarcode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.products.FindByBarcode(ctx, strings.TrimSpace(chi.URLParam(r, "code")))
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req domain.ProductUpdate
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}

	p, err := h.products.Update(ctx, id, req)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.products.Delete(ctx, id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.lowStock.LowStock(ctx)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ProductsResponse{Products: nonNil(products)})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+param, param+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
