// Package server assembles the storefront's Fiber application.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/config"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/receipt"
	"github.com/wichananm65/storefront/internal/session"
	"github.com/wichananm65/storefront/internal/user"
	"github.com/wichananm65/storefront/internal/web"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the stores the app runs on. Postgres in production, in-memory
// implementations in tests and local runs.
type Deps struct {
	DB       Pinger
	Products product.Repository
	Users    user.Repository
	Orders   order.Repository
	Sessions session.Store
}

// New builds the app with every route mounted.
func New(cfg config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.StoreName,
		Views:                 web.NewViews(cfg.StoreName),
		ErrorHandler:          web.ErrorHandler,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(web.RequestLogger())
	app.Use(recover.New())
	app.Use(web.SecurityHeaders())
	app.Use("/api", cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/healthz", healthz(deps.DB))
	app.Static("/static", cfg.StaticDir)

	app.Use(encryptcookie.New(encryptcookie.Config{Key: cfg.SessionSecret}))
	sessions := session.NewManager(deps.Sessions, session.Options{
		TTL:          cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure,
	})
	app.Use(sessions.Middleware())

	jwtSecret := []byte(cfg.JWTSecret)
	products := product.NewService(deps.Products)
	users := user.NewService(deps.Users)
	orders := order.NewService(deps.Orders, receipt.NewRenderer(cfg.StoreName))

	product.NewHandler(products, sessions).RegisterPublicRoutes(app)
	cart.NewHandler(products, sessions).RegisterPublicRoutes(app)
	userHandler := user.NewHandler(users, sessions, jwtSecret)
	userHandler.RegisterPublicRoutes(app)
	userHandler.RegisterProtectedRoutes(app)

	orderHandler := order.NewHandler(orders, sessions, jwtSecret)
	orderHandler.RegisterPublicRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)

	return app
}

func healthz(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).SendString("unavailable")
			}
		}
		return c.SendString("ok")
	}
}
