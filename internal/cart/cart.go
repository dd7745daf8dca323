package cart

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/product"
)

// Line is one product in a cart. Name, price and image are copied from the
// catalog when the product is first added so the price cannot change under
// the buyer afterwards.
type Line struct {
	ProductID int             `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is price × quantity, exact.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds at most one line per product id, each with quantity >= 1.
// The zero value is an empty cart.
type Cart struct {
	Items map[int]Line `json:"items"`
}

// Action is a quantity change requested on an existing line.
type Action string

const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
	ActionRemove   Action = "remove"
)

var ErrInvalidAction = errors.New("action must be increase, decrease or remove")

// ParseAction validates client input.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionIncrease, ActionDecrease, ActionRemove:
		return a, nil
	default:
		return "", ErrInvalidAction
	}
}

// Add puts quantity units of p in the cart. An existing line keeps its
// original snapshot and only grows. Non-positive quantities are ignored.
func (c *Cart) Add(p product.Product, quantity int) {
	if quantity <= 0 {
		return
	}
	if c.Items == nil {
		c.Items = make(map[int]Line)
	}
	if line, ok := c.Items[p.ID]; ok {
		line.Quantity += quantity
		c.Items[p.ID] = line
		return
	}
	c.Items[p.ID] = Line{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Quantity:  quantity,
	}
}

// Update applies action to the line for productID. Unknown ids are a no-op.
func (c *Cart) Update(productID int, action Action) {
	line, ok := c.Items[productID]
	if !ok {
		return
	}
	switch action {
	case ActionIncrease:
		line.Quantity++
	case ActionDecrease:
		line.Quantity--
	case ActionRemove:
		line.Quantity = 0
	default:
		return
	}
	if line.Quantity <= 0 {
		delete(c.Items, productID)
		return
	}
	c.Items[productID] = line
}

// Total is the sum of line subtotals rounded to cents, half away from zero.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Items {
		total = total.Add(line.Subtotal())
	}
	return total.Round(2)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = nil
}

// Lines returns the lines ordered by product id.
func (c Cart) Lines() []Line {
	out := make([]Line, 0, len(c.Items))
	for _, line := range c.Items {
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (c Cart) Len() int { return len(c.Items) }

func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Quantity is the number of units across all lines.
func (c Cart) Quantity() int {
	n := 0
	for _, line := range c.Items {
		n += line.Quantity
	}
	return n
}
