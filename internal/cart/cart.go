// Package cart holds the per-session shopping cart: line bookkeeping, quantity
// validation against live stock and total computation.
//
// A Cart is owned by exactly one session and is not safe for concurrent use.
package cart

import (
	"context"
	"encoding/json"
	"fmt"

	checkouterrors "github.com/abgdnv/gopos/internal/errors"
	"github.com/abgdnv/gopos/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one product entry in the cart. ProductName and UnitPrice are
// snapshots taken when the product was first added; Subtotal is always
// UnitPrice * Quantity.
type Line struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int32           `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

func (l *Line) setQuantity(q int32) {
	l.Quantity = q
	l.Subtotal = l.UnitPrice.Mul(decimal.NewFromInt32(q))
}

// Cart is an ordered sequence of lines with unique product IDs.
// Its revision grows with every successful change.
type Cart struct {
	lines    []Line
	revision int64
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{lines: make([]Line, 0)}
}

// Add looks the product up, validates the requested quantity against its
// current stock and either appends a new line or merges into the existing one.
// A merge re-validates the combined quantity against the current stock; on
// failure the existing line is left untouched.
func (c *Cart) Add(ctx context.Context, products store.ProductFinder, productID uuid.UUID, rawQuantity string) (Line, error) {
	product, err := products.FindByID(ctx, productID)
	if err != nil {
		return Line{}, err
	}

	requested, err := ValidateQuantity(rawQuantity, product.StockQuantity)
	if err != nil {
		return Line{}, err
	}

	if i := c.indexOf(productID); i >= 0 {
		combined := int64(requested)
		if held := c.lines[i].Quantity; held > 0 {
			combined += int64(held)
		}
		if err := CheckQuantity(combined, product.StockQuantity); err != nil {
			return Line{}, err
		}
		c.lines[i].setQuantity(int32(combined))
		c.revision++
		return c.lines[i], nil
	}

	line := Line{
		ID:          uuid.New(),
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
	}
	line.setQuantity(requested)
	c.lines = append(c.lines, line)
	c.revision++
	return line, nil
}

// Remove deletes the line at index. Remaining lines keep their relative order
// and are re-indexed densely from zero.
func (c *Cart) Remove(index int) (Line, error) {
	if index < 0 || index >= len(c.lines) {
		return Line{}, fmt.Errorf("index %d of %d lines: %w", index, len(c.lines), checkouterrors.ErrIndexOutOfRange)
	}
	removed := c.lines[index]
	c.lines = append(c.lines[:index:index], c.lines[index+1:]...)
	c.revision++
	return removed, nil
}

// RemoveLine deletes the line with the given stable ID.
func (c *Cart) RemoveLine(lineID uuid.UUID) (Line, error) {
	for i := range c.lines {
		if c.lines[i].ID == lineID {
			return c.Remove(i)
		}
	}
	return Line{}, fmt.Errorf("line %s: %w", lineID, checkouterrors.ErrLineNotFound)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = make([]Line, 0)
	c.revision++
}

// Revision identifies the current contents of the cart.
func (c *Cart) Revision() int64 {
	return c.revision
}

// Validate reports the first line that cannot be sold: a non-positive quantity,
// a negative price or a product that appears on more than one line.
func (c *Cart) Validate() error {
	seen := make(map[uuid.UUID]struct{}, len(c.lines))
	for i, line := range c.lines {
		if !line.wellFormed() {
			return fmt.Errorf("line %d (%s, quantity %d): %w", i, line.ProductName, line.Quantity, checkouterrors.ErrMalformedCart)
		}
		if _, dup := seen[line.ProductID]; dup {
			return fmt.Errorf("line %d: product %s appears twice: %w", i, line.ProductID, checkouterrors.ErrMalformedCart)
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Total returns the sum of line subtotals.
func (c *Cart) Total() decimal.Decimal {
	return Total(c.lines)
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

type cartJSON struct {
	Lines    []Line `json:"lines"`
	Revision int64  `json:"revision"`
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	lines := c.lines
	if lines == nil {
		lines = []Line{}
	}
	return json.Marshal(cartJSON{Lines: lines, Revision: c.revision})
}

// UnmarshalJSON restores a cart and recomputes every subtotal from price and quantity.
// Malformed lines are kept so they can be shown and removed; Validate rejects them.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var raw cartJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	lines := make([]Line, 0, len(raw.Lines))
	for _, line := range raw.Lines {
		line.setQuantity(line.Quantity)
		lines = append(lines, line)
	}
	c.lines = lines
	c.revision = raw.Revision
	return nil
}
