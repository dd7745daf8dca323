package web

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront/internal/database"
)

// UnavailableMessage is what users see when the data store is down. It never
// includes the underlying cause.
const UnavailableMessage = "The store is temporarily unavailable. Please try again in a moment."

// ErrorHandler is the fiber.Config ErrorHandler. Handlers return sentinel or
// fiber errors and this turns them into plain messages.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.Is(err, database.ErrUnavailable):
		code = fiber.StatusServiceUnavailable
		message = UnavailableMessage
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Method(), "path", c.Path(), "status", code, "error", err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(code).SendString(message)
}
