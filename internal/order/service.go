package order

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/database"
	"github.com/wichananm65/storefront/internal/receipt"
	"github.com/wichananm65/storefront/internal/user"
)

// ReceiptRenderer turns a stored order into a downloadable document.
type ReceiptRenderer interface {
	Render(w io.Writer, rc receipt.Receipt) error
}

// Receipt is the outcome of a successful checkout.
type Receipt struct {
	Order    Order
	Filename string
	Document []byte
}

type Service struct {
	repo     Repository
	renderer ReceiptRenderer
}

func NewService(repo Repository, renderer ReceiptRenderer) *Service {
	return &Service{repo: repo, renderer: renderer}
}

// Checkout turns buyer's cart into a stored order and a receipt. The cart is
// cleared only when both succeed; on any error it is left as it was.
func (s *Service) Checkout(ctx context.Context, buyer *user.Identity, c *cart.Cart) (Receipt, error) {
	if buyer == nil || buyer.ID <= 0 {
		return Receipt{}, ErrUnauthenticated
	}
	if c == nil || c.IsEmpty() {
		return Receipt{}, ErrEmptyCart
	}

	o := NewFromCart(buyer.ID, *c)
	if sum := o.ItemsTotal(); !sum.Equal(o.Total) {
		return Receipt{}, fmt.Errorf("order total %s does not match items %s", o.Total, sum)
	}

	created, err := s.repo.Create(ctx, o)
	if err != nil {
		return Receipt{}, database.Unavailable(err)
	}
	slog.Info("Order placed", "order_id", created.ID, "user_id", buyer.ID, "items", len(created.Items), "total", created.Total.StringFixed(2))

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, receiptFor(created, buyer.Username)); err != nil {
		return Receipt{}, fmt.Errorf("order %d stored but receipt failed: %w", created.ID, err)
	}

	c.Clear()
	return Receipt{
		Order:    created,
		Filename: receipt.Filename(buyer.Username, created.ID),
		Document: buf.Bytes(),
	}, nil
}

func receiptFor(o Order, username string) receipt.Receipt {
	lines := make([]receipt.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, receipt.Line{
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			Subtotal:  it.Subtotal(),
		})
	}
	return receipt.Receipt{
		OrderID:  o.ID,
		Username: username,
		Date:     o.CreatedAt,
		Lines:    lines,
		Total:    o.Total,
	}
}

// History lists userID's orders, newest first.
func (s *Service) History(ctx context.Context, userID int) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, database.Unavailable(err)
	}
	return orders, nil
}
