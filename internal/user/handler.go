package user

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/storefront/internal/database"
	"github.com/wichananm65/storefront/internal/web"
)

const invalidLoginMessage = "Invalid email or password"

// Sessions attaches and removes the signed-in identity on the visitor's
// session.
type Sessions interface {
	SignIn(c *fiber.Ctx, id Identity) error
	SignOut(c *fiber.Ctx) error
	LayoutData(c *fiber.Ctx) fiber.Map
}

type Handler struct {
	service   *Service
	sessions  Sessions
	jwtSecret []byte
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type registerRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (r registerRequest) input() RegisterInput {
	return RegisterInput{Username: r.Username, Email: r.Email, Password: r.Password}
}

func NewHandler(service *Service, sessions Sessions, jwtSecret []byte) *Handler {
	return &Handler{service: service, sessions: sessions, jwtSecret: jwtSecret}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/register", h.registerForm)
	app.Post("/register", h.register)
	app.Get("/login", h.loginForm)
	app.Post("/login", h.login)
	app.Get("/logout", h.logout)

	app.Post("/api/v1/sign-in", h.apiSignIn)
	app.Post("/api/v1/sign-up", h.apiSignUp)
}

// RegisterProtectedRoutes mounts the token-authenticated account endpoint.
func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/api/v1/me", RequireToken(h.jwtSecret), h.apiMe)
}

func (h *Handler) registerForm(c *fiber.Ctx) error {
	return c.Render("register", h.sessions.LayoutData(c))
}

func (h *Handler) register(c *fiber.Ctx) error {
	payload := new(registerRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed form")
	}

	bind := h.sessions.LayoutData(c)
	bind["Username"] = payload.Username
	bind["Email"] = payload.Email

	if _, err := h.service.Register(c.UserContext(), payload.input()); err != nil {
		status, message := registerFailure(err)
		bind["Error"] = message
		return c.Status(status).Render("register", bind)
	}

	return c.Redirect("/login", fiber.StatusSeeOther)
}

func (h *Handler) loginForm(c *fiber.Ctx) error {
	return c.Render("login", h.sessions.LayoutData(c))
}

func (h *Handler) login(c *fiber.Ctx) error {
	payload := new(loginRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed form")
	}

	id, err := h.service.Authenticate(c.UserContext(), payload.Email, payload.Password)
	if err == nil {
		err = h.sessions.SignIn(c, id)
	}
	if err != nil {
		status, message := loginFailure(err)
		bind := h.sessions.LayoutData(c)
		bind["Email"] = payload.Email
		bind["Error"] = message
		return c.Status(status).Render("login", bind)
	}

	slog.Info("User signed in", "user_id", id.ID)
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *Handler) logout(c *fiber.Ctx) error {
	if err := h.sessions.SignOut(c); err != nil {
		return err
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *Handler) apiSignIn(c *fiber.Ctx) error {
	payload := new(loginRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "malformed request body"})
	}

	id, err := h.service.Authenticate(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		status, message := loginFailure(err)
		return c.Status(status).JSON(fiber.Map{"message": message})
	}

	signed, err := IssueToken(h.jwtSecret, id, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to generate token"})
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    id,
		"token":   signed,
	})
}

func (h *Handler) apiSignUp(c *fiber.Ctx) error {
	payload := new(registerRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "malformed request body"})
	}

	id, err := h.service.Register(c.UserContext(), payload.input())
	if err != nil {
		status, message := registerFailure(err)
		return c.Status(status).JSON(fiber.Map{"message": message})
	}
	return c.Status(fiber.StatusCreated).JSON(id)
}

func (h *Handler) apiMe(c *fiber.Ctx) error {
	id, err := IdentityFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	u, err := h.service.GetByID(c.UserContext(), id.ID)
	switch {
	case err == nil:
		return c.JSON(u)
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "user not found"})
	case errors.Is(err, database.ErrUnavailable):
		slog.Error("Failed to load account", "user_id", id.ID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": web.UnavailableMessage})
	default:
		return err
	}
}

func registerFailure(err error) (int, string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return fiber.StatusBadRequest, verr.Message
	case errors.Is(err, ErrEmailExists):
		return fiber.StatusConflict, "An account with that email already exists"
	case errors.Is(err, database.ErrUnavailable):
		slog.Error("Registration failed", "error", err)
		return fiber.StatusServiceUnavailable, web.UnavailableMessage
	default:
		slog.Error("Registration failed", "error", err)
		return fiber.StatusInternalServerError, "Registration failed"
	}
}

// loginFailure gives unknown email and wrong password the same answer.
func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidCredentials):
		return fiber.StatusUnauthorized, invalidLoginMessage
	case errors.Is(err, database.ErrUnavailable):
		slog.Error("Login failed", "error", err)
		return fiber.StatusServiceUnavailable, web.UnavailableMessage
	default:
		slog.Error("Login failed", "error", err)
		return fiber.StatusInternalServerError, "Login failed"
	}
}
