// Package cart holds the in-progress sale of the sell view.
package cart

import (
	"errors"
	"sync"

	"github.com/ayouballali/mahali-pos/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrLineNotFound = errors.New("product not in cart")

// Line is one product in the cart. Name and prices are captured when the product is
// first added and never refreshed.
type Line struct {
	ProductID int64            `json:"product_id"`
	Barcode   string           `json:"barcode,omitempty"`
	Name      string           `json:"name"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	SaleType  domain.SaleType  `json:"sale_type"`
	Quantity  int              `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// UnitCost is the captured cost price, or the unit price when no cost was recorded.
func (l Line) UnitCost() decimal.Decimal {
	if l.CostPrice == nil {
		return l.UnitPrice
	}
	return *l.CostPrice
}

// Snapshot is a consistent view of the cart at one point in time.
type Snapshot struct {
	Lines      []Line          `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TotalItems int             `json:"total_items"`
}

// Cart keeps lines in insertion order. Every method is safe for concurrent use and
// each mutation is applied atomically relative to its own read.
type Cart struct {
	mu    sync.Mutex
	lines []Line
	index map[int64]int
}

func New() *Cart {
	return &Cart{index: make(map[int64]int)}
}

// Add puts one unit of p in the cart and returns the resulting line.
func (c *Cart) Add(p domain.Product) Line {
	return c.AddN(p, 1)
}

// AddN puts n units of p in the cart and returns the resulting line. The lookup and
// the increment happen under one lock. n < 1 is treated as 1.
func (c *Cart) AddN(p domain.Product, n int) Line {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[p.ID]; ok {
		c.lines[i].Quantity += n
		return c.lines[i]
	}

	line := Line{
		ProductID: p.ID,
		Barcode:   p.Barcode,
		Name:      p.Name,
		UnitPrice: p.SalePrice,
		SaleType:  p.SaleType,
		Quantity:  n,
	}
	if p.CostPrice != nil {
		cost := *p.CostPrice
		line.CostPrice = &cost
	}
	c.index[p.ID] = len(c.lines)
	c.lines = append(c.lines, line)
	return line
}

// SetQuantity sets the quantity of a line; n <= 0 removes it.
func (c *Cart) SetQuantity(productID int64, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[productID]
	if !ok {
		if n <= 0 {
			return nil
		}
		return ErrLineNotFound
	}
	if n <= 0 {
		c.removeLocked(i)
		return nil
	}
	c.lines[i].Quantity = n
	return nil
}

// Remove deletes the line of productID. Missing lines are ignored.
func (c *Cart) Remove(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[productID]; ok {
		c.removeLocked(i)
	}
}

func (c *Cart) removeLocked(i int) {
	delete(c.index, c.lines[i].ProductID)
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].ProductID] = j
	}
}

// Subtotal sums unit price times quantity over all lines, unrounded.
func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return subtotal(c.lines)
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalItems(c.lines)
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyLines(c.lines)
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Lines:      copyLines(c.lines),
		Subtotal:   subtotal(c.lines),
		TotalItems: totalItems(c.lines),
	}
}

// Deduct subtracts the quantities of sold from the matching lines and drops lines
// that reach zero. Lines added after sold was taken are kept.
func (c *Cart) Deduct(sold []Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range sold {
		i, ok := c.index[l.ProductID]
		if !ok {
			continue
		}
		c.lines[i].Quantity -= l.Quantity
		if c.lines[i].Quantity <= 0 {
			c.removeLocked(i)
		}
	}
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	clear(c.index)
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

func subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

func totalItems(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func copyLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
