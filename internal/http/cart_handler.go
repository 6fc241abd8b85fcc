package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ayouballali/mahali-pos/internal/sell"
)

type CartHandler struct {
	register *sell.Register
	timeout  time.Duration
	maxBody  int64
}

func NewCartHandler(register *sell.Register, timeout time.Duration, maxBody int64) *CartHandler {
	return &CartHandler{
		register: register,
		timeout:  timeout,
		maxBody:  maxBody,
	}
}

// AddItemRequestDTO adds a product by id, or by a typed barcode when the camera
// cannot read it.
type AddItemRequestDTO struct {
	ProductID int64  `json:"product_id"`
	Barcode   string `json:"barcode"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.register.Cart().Snapshot())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}

	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > 999 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 999")
		return
	}

	switch {
	case strings.TrimSpace(req.Barcode) != "":
		ev, err := h.register.HandleScan(ctx, req.Barcode)
		if err != nil {
			handleError(w, err)
			return
		}
		switch ev.Kind {
		case sell.EventRejected:
			respondError(w, http.StatusBadRequest, "invalid_barcode", "barcode is not valid")
			return
		case sell.EventNotFound:
			respondError(w, http.StatusNotFound, "not_found", "no product with barcode "+ev.Code)
			return
		}
		if req.Quantity > 1 {
			h.register.Cart().AddN(*ev.Product, req.Quantity-1)
		}
	case req.ProductID > 0:
		if _, err := h.register.AddManual(ctx, req.ProductID, req.Quantity); err != nil {
			handleError(w, err)
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id or barcode is required")
		return
	}

	respondJSON(w, http.StatusCreated, h.register.Cart().Snapshot())
}

// UpdateQuantity sets a line's quantity; zero removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, h.maxBody, &req) {
		return
	}
	if req.Quantity < 0 || req.Quantity > 999 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 999")
		return
	}

	if err := h.register.Cart().SetQuantity(productID, req.Quantity); err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.register.Cart().Snapshot())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}

	h.register.Cart().Remove(productID)
	respondJSON(w, http.StatusOK, h.register.Cart().Snapshot())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.register.Cancel()
	respondJSON(w, http.StatusOK, h.register.Cart().Snapshot())
}
