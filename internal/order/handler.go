package order

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/database"
	"github.com/wichananm65/storefront/internal/user"
	"github.com/wichananm65/storefront/internal/web"
)

// Sessions is the part of the session layer checkout and history need.
type Sessions interface {
	Identity(c *fiber.Ctx) (user.Identity, bool)
	UpdateCart(c *fiber.Ctx, fn func(*cart.Cart) error) (cart.Cart, error)
	Cart(c *fiber.Ctx) cart.Cart
	LayoutData(c *fiber.Ctx) fiber.Map
	RequireIdentity(redirect string) fiber.Handler
}

type Handler struct {
	service   *Service
	sessions  Sessions
	jwtSecret []byte
}

func NewHandler(service *Service, sessions Sessions, jwtSecret []byte) *Handler {
	return &Handler{service: service, sessions: sessions, jwtSecret: jwtSecret}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	signedIn := h.sessions.RequireIdentity("/login")
	app.Get("/checkout", signedIn, h.checkout)
	app.Get("/history", signedIn, h.history)
}

// RegisterProtectedRoutes mounts the token-authenticated JSON API.
func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/api/v1/orders", user.RequireToken(h.jwtSecret), h.apiOrders)
}

// checkout runs the whole checkout under the session's cart lock, so a
// double-clicked checkout places one order and a failed order keeps the cart.
// Once the order is placed the buyer always gets the receipt, even if the
// emptied cart cannot be saved.
func (h *Handler) checkout(c *fiber.Ctx) error {
	id, ok := h.sessions.Identity(c)
	if !ok {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	var (
		rc        Receipt
		placed    bool
		purchased []int
	)
	_, err := h.sessions.UpdateCart(c, func(ct *cart.Cart) error {
		if placed {
			// The session store re-ran the update; the order already exists.
			removeLines(ct, purchased)
			return nil
		}
		purchased = productIDs(*ct)
		var err error
		rc, err = h.service.Checkout(c.UserContext(), &id, ct)
		placed = err == nil
		return err
	})
	if placed && err != nil {
		slog.Error("Order placed but the cart was not saved, retrying", "order_id", rc.Order.ID, "error", err)
		if _, err := h.sessions.UpdateCart(c, func(ct *cart.Cart) error {
			removeLines(ct, purchased)
			return nil
		}); err != nil {
			slog.Error("Failed to empty cart after order", "order_id", rc.Order.ID, "error", err)
		}
		err = nil
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthenticated):
		return c.Redirect("/login", fiber.StatusSeeOther)
	case errors.Is(err, ErrEmptyCart):
		return c.Redirect("/cart", fiber.StatusSeeOther)
	case errors.Is(err, database.ErrUnavailable):
		slog.Error("Checkout failed", "user_id", id.ID, "error", err)
		ct := h.sessions.Cart(c)
		bind := h.sessions.LayoutData(c)
		bind["Error"] = web.UnavailableMessage
		bind["Lines"] = ct.Lines()
		bind["Total"] = ct.Total()
		return c.Status(fiber.StatusServiceUnavailable).Render("cart", bind)
	default:
		return err
	}

	c.Attachment(rc.Filename)
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(rc.Document)
}

func productIDs(ct cart.Cart) []int {
	ids := make([]int, 0, ct.Len())
	for _, l := range ct.Lines() {
		ids = append(ids, l.ProductID)
	}
	return ids
}

func removeLines(ct *cart.Cart, productIDs []int) {
	for _, id := range productIDs {
		ct.Update(id, cart.ActionRemove)
	}
}

func (h *Handler) history(c *fiber.Ctx) error {
	id, _ := h.sessions.Identity(c)

	orders, err := h.service.History(c.UserContext(), id.ID)
	if err != nil {
		return err
	}

	bind := h.sessions.LayoutData(c)
	bind["Orders"] = orders
	return c.Render("history", bind)
}

type itemView struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	Subtotal    string `json:"subtotal"`
}

type orderView struct {
	ID    int        `json:"id"`
	Total string     `json:"total"`
	Date  string     `json:"date"`
	Items []itemView `json:"items"`
}

func (h *Handler) apiOrders(c *fiber.Ctx) error {
	id, err := user.IdentityFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	orders, err := h.service.History(c.UserContext(), id.ID)
	if err != nil {
		slog.Error("Failed to list orders", "user_id", id.ID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": web.UnavailableMessage})
	}

	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		items := make([]itemView, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, itemView{
				ProductName: it.ProductName,
				Quantity:    it.Quantity,
				Price:       it.Price.StringFixed(2),
				Subtotal:    it.Subtotal().StringFixed(2),
			})
		}
		out = append(out, orderView{
			ID:    o.ID,
			Total: o.Total.StringFixed(2),
			Date:  o.CreatedAt.UTC().Format(time.RFC3339),
			Items: items,
		})
	}
	return c.JSON(out)
}
