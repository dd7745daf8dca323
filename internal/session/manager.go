package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/database"
	"github.com/wichananm65/storefront/internal/user"
)

const (
	CookieName = "sid"
	localsKey  = "session"
)

type Options struct {
	TTL          time.Duration
	CookieSecure bool
}

// Manager loads the visitor's session for every request and is the only
// writer of session state.
type Manager struct {
	store Store
	opts  Options
	locks keyedMutex
	newID func() string
}

func NewManager(store Store, opts Options) *Manager {
	return &Manager{store: store, opts: opts, newID: uuid.NewString}
}

// Middleware attaches the session named by the sid cookie. Missing or
// unknown ids get a fresh server-generated id; a client-chosen id is never
// stored.
func (m *Manager) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := utils.CopyString(c.Cookies(CookieName))

		var s Session
		if id != "" {
			loaded, err := m.store.Get(c.UserContext(), id)
			switch {
			case err == nil:
				s = loaded
			case errors.Is(err, ErrNotFound):
				s = m.fresh()
			default:
				// Keep the visitor's cookie untouched so the cart comes back
				// once the store recovers.
				slog.Error("Failed to load session", "error", err)
				s = m.fresh()
			}
		} else {
			s = m.fresh()
		}

		c.Locals(localsKey, &s)
		return c.Next()
	}
}

func (m *Manager) fresh() Session {
	return Session{ID: m.newID(), CreatedAt: time.Now().UTC(), fresh: true}
}

func (m *Manager) current(c *fiber.Ctx) *Session {
	if s, ok := c.Locals(localsKey).(*Session); ok {
		return s
	}
	s := m.fresh()
	c.Locals(localsKey, &s)
	return &s
}

// Update is the atomic read-modify-write on the visitor's session: it takes
// the per-id lock, re-reads the stored copy, applies fn and writes the result.
// Stores implementing Updater also make the cycle atomic across processes, in
// which case fn may run more than once. If fn fails nothing is written and
// its error is returned unchanged.
func (m *Manager) Update(c *fiber.Ctx, fn func(*Session) error) (Session, error) {
	cur := m.current(c)
	ctx := c.UserContext()

	unlock := m.locks.Lock(cur.ID)
	defer unlock()

	var fnErr error
	next, err := m.update(ctx, cur.ID, func(s *Session, found bool) error {
		if !found {
			*s = Session{ID: cur.ID, CreatedAt: time.Now().UTC()}
			if cur.fresh {
				*s = cur.clone()
			}
		}
		fnErr = fn(s)
		return fnErr
	})
	if err != nil {
		if fnErr != nil {
			return Session{}, fnErr
		}
		return Session{}, database.Unavailable(err)
	}

	if cur.fresh {
		m.setCookie(c, next.ID)
	}
	next.fresh = false
	*cur = next
	return next, nil
}

func (m *Manager) update(ctx context.Context, id string, fn func(*Session, bool) error) (Session, error) {
	if u, ok := m.store.(Updater); ok {
		return u.Update(ctx, id, fn)
	}

	s, err := m.store.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}
	if err := fn(&s, err == nil); err != nil {
		return Session{}, err
	}
	if err := m.store.Put(ctx, id, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (m *Manager) Cart(c *fiber.Ctx) cart.Cart {
	return m.current(c).Cart
}

// UpdateCart runs fn on the stored cart under the session lock.
func (m *Manager) UpdateCart(c *fiber.Ctx, fn func(*cart.Cart) error) (cart.Cart, error) {
	s, err := m.Update(c, func(s *Session) error {
		return fn(&s.Cart)
	})
	if err != nil {
		return cart.Cart{}, err
	}
	return s.Cart, nil
}

func (m *Manager) Identity(c *fiber.Ctx) (user.Identity, bool) {
	return m.current(c).Identity()
}

// SignIn attaches id to the visitor's session under a new session id, so an
// id known before login is useless afterwards. The cart moves with it.
func (m *Manager) SignIn(c *fiber.Ctx, id user.Identity) error {
	cur := m.current(c)
	ctx := c.UserContext()

	unlock := m.locks.Lock(cur.ID)
	defer unlock()

	next := cur.clone()
	if !cur.fresh {
		stored, err := m.store.Get(ctx, cur.ID)
		switch {
		case err == nil:
			next = stored
		case errors.Is(err, ErrNotFound):
		default:
			return database.Unavailable(err)
		}
	}

	next.ID = m.newID()
	next.User = &id
	next.fresh = false
	if err := m.store.Put(ctx, next.ID, next); err != nil {
		return database.Unavailable(err)
	}
	if !cur.fresh {
		if err := m.store.Delete(ctx, cur.ID); err != nil {
			slog.Warn("Failed to delete pre-login session", "error", err)
		}
	}

	m.setCookie(c, next.ID)
	*cur = next
	return nil
}

// SignOut forgets the session entirely and expires the cookie.
func (m *Manager) SignOut(c *fiber.Ctx) error {
	cur := m.current(c)
	if !cur.fresh {
		if err := m.store.Delete(c.UserContext(), cur.ID); err != nil {
			return database.Unavailable(err)
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   m.opts.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	*cur = m.fresh()
	return nil
}

// LayoutData is the header data every page renders: the signed-in user, if
// any, and the number of units in the cart.
func (m *Manager) LayoutData(c *fiber.Ctx) fiber.Map {
	s := m.current(c)
	bind := fiber.Map{"CartCount": s.Cart.Quantity()}
	if id, ok := s.Identity(); ok {
		bind["User"] = id
	}
	return bind
}

// RequireIdentity redirects anonymous visitors to redirect.
func (m *Manager) RequireIdentity(redirect string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := m.Identity(c); !ok {
			return c.Redirect(redirect, fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

func (m *Manager) setCookie(c *fiber.Ctx, id string) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HTTPOnly: true,
		Secure:   m.opts.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
