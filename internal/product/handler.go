package product

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront/internal/database"
	"github.com/wichananm65/storefront/internal/web"
)

// Layout supplies the per-visitor data every page header needs.
type Layout interface {
	LayoutData(c *fiber.Ctx) fiber.Map
}

type Handler struct {
	service *Service
	layout  Layout
}

func NewHandler(service *Service, layout Layout) *Handler {
	return &Handler{service: service, layout: layout}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/", h.index)
}

// index renders the product listing. A store outage degrades to an inline
// message instead of failing the whole page.
func (h *Handler) index(c *fiber.Ctx) error {
	bind := h.layout.LayoutData(c)

	products, err := h.service.List(c.UserContext())
	if err != nil {
		if !errors.Is(err, database.ErrUnavailable) {
			return err
		}
		slog.Error("Failed to list products", "error", err)
		bind["Error"] = web.UnavailableMessage
		bind["Products"] = []Product{}
		return c.Status(fiber.StatusServiceUnavailable).Render("index", bind)
	}

	bind["Products"] = products
	return c.Render("index", bind)
}
