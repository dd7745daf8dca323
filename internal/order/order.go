package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/storefront/internal/cart"
)

var (
	ErrUnauthenticated = errors.New("checkout requires a signed-in user")
	ErrEmptyCart       = errors.New("cart is empty")
)

// Item is one purchased line. Name and price are copied from the cart so the
// order reads the same even if the catalog changes later.
type Item struct {
	OrderID     int             `json:"orderId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is immutable once stored. Total always equals the sum of item
// subtotals, rounded to cents.
type Order struct {
	ID        int             `json:"id"`
	UserID    int             `json:"userId"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"date"`
	Items     []Item          `json:"items"`
}

// NewFromCart builds the unsaved order for userID's cart, one item per line
// in product id order.
func NewFromCart(userID int, c cart.Cart) Order {
	lines := c.Lines()
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{ProductName: l.Name, Quantity: l.Quantity, Price: l.Price})
	}
	return Order{UserID: userID, Total: c.Total(), Items: items}
}

// ItemsTotal recomputes the total from the items.
func (o Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum.Round(2)
}
