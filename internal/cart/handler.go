package cart

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront/internal/database"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/web"
)

// MaxQuantity caps a single add so a typo cannot put thousands of units in a cart.
const MaxQuantity = 99

// Catalog resolves product ids to snapshots.
type Catalog interface {
	GetByID(ctx context.Context, id int) (product.Product, error)
}

// Sessions gives the handler the visitor's cart and an atomic way to change it.
type Sessions interface {
	Cart(c *fiber.Ctx) Cart
	UpdateCart(c *fiber.Ctx, fn func(*Cart) error) (Cart, error)
	LayoutData(c *fiber.Ctx) fiber.Map
}

// Handler serves the cart pages and the cart mutation endpoints. Anonymous
// visitors may use all of them.
type Handler struct {
	catalog  Catalog
	sessions Sessions
}

func NewHandler(catalog Catalog, sessions Sessions) *Handler {
	return &Handler{catalog: catalog, sessions: sessions}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/add-to-cart", h.addToCart)
	app.Get("/cart", h.viewCart)
	app.Post("/update-cart", h.updateCart)
}

type addToCartRequest struct {
	ProductID int `json:"productId" form:"product_id"`
	Quantity  int `json:"quantity" form:"quantity"`
}

func (r *addToCartRequest) validate() string {
	if r.ProductID <= 0 {
		return "invalid product_id"
	}
	if r.Quantity == 0 {
		r.Quantity = 1
	}
	if r.Quantity < 0 || r.Quantity > MaxQuantity {
		return "quantity must be between 1 and 99"
	}
	return ""
}

type updateCartRequest struct {
	ProductID int    `json:"productId" form:"product_id"`
	Action    string `json:"action" form:"action"`
}

type lineView struct {
	ProductID int    `json:"productId"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type cartResponse struct {
	Success  bool       `json:"success"`
	NewTotal string     `json:"newTotal"`
	Cart     []lineView `json:"cart"`
	Message  string     `json:"message,omitempty"`
}

func newCartResponse(c Cart) cartResponse {
	lines := c.Lines()
	views := make([]lineView, 0, len(lines))
	for _, l := range lines {
		views = append(views, lineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			Image:     l.Image,
			Price:     l.Price.StringFixed(2),
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return cartResponse{Success: true, NewTotal: c.Total().StringFixed(2), Cart: views}
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(cartResponse{Success: false, Message: message, Cart: []lineView{}})
}

func (h *Handler) addToCart(c *fiber.Ctx) error {
	payload := new(addToCartRequest)
	if err := c.BodyParser(payload); err != nil {
		return failure(c, fiber.StatusBadRequest, "malformed request body")
	}
	if msg := payload.validate(); msg != "" {
		return failure(c, fiber.StatusBadRequest, msg)
	}

	p, err := h.catalog.GetByID(c.UserContext(), payload.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return failure(c, fiber.StatusNotFound, "product not found")
		}
		return h.storeFailure(c, err)
	}

	updated, err := h.sessions.UpdateCart(c, func(ct *Cart) error {
		ct.Add(p, payload.Quantity)
		return nil
	})
	if err != nil {
		return h.storeFailure(c, err)
	}

	if c.Is("json") {
		return c.JSON(newCartResponse(updated))
	}
	return c.Redirect(backTo(c), fiber.StatusSeeOther)
}

// backTo returns the path of a same-host Referer, or "/". Paths a browser
// would read as another host ("//evil.com", "/\evil.com") are refused.
func backTo(c *fiber.Ctx) string {
	ref, err := url.Parse(c.Get(fiber.HeaderReferer))
	if err != nil || ref.Host != c.Hostname() {
		return "/"
	}
	if !strings.HasPrefix(ref.Path, "/") || strings.HasPrefix(ref.Path, "//") || strings.ContainsRune(ref.Path, '\\') {
		return "/"
	}
	target := ref.EscapedPath()
	if ref.RawQuery != "" {
		target += "?" + ref.RawQuery
	}
	return target
}

func (h *Handler) viewCart(c *fiber.Ctx) error {
	ct := h.sessions.Cart(c)
	bind := h.sessions.LayoutData(c)
	bind["Lines"] = ct.Lines()
	bind["Total"] = ct.Total()
	return c.Render("cart", bind)
}

func (h *Handler) updateCart(c *fiber.Ctx) error {
	payload := new(updateCartRequest)
	if err := c.BodyParser(payload); err != nil {
		return failure(c, fiber.StatusBadRequest, "malformed request body")
	}
	if payload.ProductID <= 0 {
		return failure(c, fiber.StatusBadRequest, "invalid product_id")
	}
	action, err := ParseAction(payload.Action)
	if err != nil {
		return failure(c, fiber.StatusBadRequest, err.Error())
	}

	updated, err := h.sessions.UpdateCart(c, func(ct *Cart) error {
		ct.Update(payload.ProductID, action)
		return nil
	})
	if err != nil {
		return h.storeFailure(c, err)
	}
	return c.JSON(newCartResponse(updated))
}

func (h *Handler) storeFailure(c *fiber.Ctx, err error) error {
	slog.Error("Cart update failed", "path", c.Path(), "error", err)
	if errors.Is(err, database.ErrUnavailable) {
		return failure(c, fiber.StatusServiceUnavailable, web.UnavailableMessage)
	}
	return failure(c, fiber.StatusInternalServerError, "could not update cart")
}
