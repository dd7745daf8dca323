package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/database"
	"github.com/wichananm65/storefront/internal/receipt"
	"github.com/wichananm65/storefront/internal/user"
	"github.com/wichananm65/storefront/internal/web"
)

var testSecret = []byte("test-secret")

// fakeSessions is one visitor with an optional identity. failWrites makes
// that many cart saves fail after fn has run; rerun makes the next update
// call fn a second time on a fresh copy, the way a retrying store does.
type fakeSessions struct {
	mu         sync.Mutex
	who        *user.Identity
	cart       cart.Cart
	failWrites int
	rerun      bool
}

func (f *fakeSessions) Identity(*fiber.Ctx) (user.Identity, bool) {
	if f.who == nil {
		return user.Identity{}, false
	}
	return *f.who, true
}

func (f *fakeSessions) UpdateCart(_ *fiber.Ctx, fn func(*cart.Cart) error) (cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.copyCart()
	if err := fn(&next); err != nil {
		return cart.Cart{}, err
	}
	if f.rerun {
		f.rerun = false
		next = f.copyCart()
		if err := fn(&next); err != nil {
			return cart.Cart{}, err
		}
	}
	if f.failWrites > 0 {
		f.failWrites--
		return cart.Cart{}, database.Unavailable(errors.New("write session: i/o timeout"))
	}
	f.cart = next
	return next, nil
}

func (f *fakeSessions) copyCart() cart.Cart {
	next := cart.Cart{Items: map[int]cart.Line{}}
	for k, v := range f.cart.Items {
		next.Items[k] = v
	}
	return next
}

func (f *fakeSessions) Cart(*fiber.Ctx) cart.Cart { return f.cart }

func (f *fakeSessions) LayoutData(*fiber.Ctx) fiber.Map {
	bind := fiber.Map{"CartCount": f.cart.Quantity()}
	if f.who != nil {
		bind["User"] = *f.who
	}
	return bind
}

func (f *fakeSessions) RequireIdentity(redirect string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if f.who == nil {
			return c.Redirect(redirect, fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

func makeAppWithOrderHandler(repo Repository, sessions *fakeSessions) *fiber.App {
	app := fiber.New(fiber.Config{Views: web.NewViews("Tienda"), ErrorHandler: web.ErrorHandler})
	h := NewHandler(NewService(repo, receipt.NewRenderer("Tienda")), sessions, testSecret)
	h.RegisterPublicRoutes(app)
	h.RegisterProtectedRoutes(app)
	return app
}

func get(t *testing.T, app *fiber.App, path string) (*http.Response, []byte) {
	t.Helper()
	res, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, b
}

func TestCheckout_AnonymousRedirectsToLogin(t *testing.T) {
	repo := NewInMemoryRepository()
	app := makeAppWithOrderHandler(repo, &fakeSessions{cart: sampleCart()})

	res, _ := get(t, app, "/checkout")
	assert.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))
}

func TestCheckout_EmptyCartRedirectsToCart(t *testing.T) {
	repo := NewInMemoryRepository()
	app := makeAppWithOrderHandler(repo, &fakeSessions{who: ana})

	res, _ := get(t, app, "/checkout")
	assert.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/cart", res.Header.Get("Location"))

	orders, _ := repo.ListByUser(context.Background(), ana.ID)
	assert.Empty(t, orders)
}

func TestCheckout_DownloadsReceiptAndClearsCart(t *testing.T) {
	repo := NewInMemoryRepository()
	sessions := &fakeSessions{who: ana, cart: sampleCart()}
	app := makeAppWithOrderHandler(repo, sessions)

	res, body := get(t, app, "/checkout")
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Equal(t, "application/pdf", res.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="receipt-ana-1.pdf"`, res.Header.Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
	assert.True(t, sessions.cart.IsEmpty())

	// A second click finds the cart already empty.
	res, _ = get(t, app, "/checkout")
	assert.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/cart", res.Header.Get("Location"))

	orders, _ := repo.ListByUser(context.Background(), ana.ID)
	assert.Len(t, orders, 1)
}

func TestCheckout_CartSaveFailsAfterOrderPlaced(t *testing.T) {
	repo := NewInMemoryRepository()
	sessions := &fakeSessions{who: ana, cart: sampleCart(), failWrites: 1}
	app := makeAppWithOrderHandler(repo, sessions)

	res, body := get(t, app, "/checkout")
	require.Equal(t, fiber.StatusOK, res.StatusCode, "the order exists, so the receipt is sent")
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
	assert.True(t, sessions.cart.IsEmpty(), "second save empties the cart")

	res, _ = get(t, app, "/checkout")
	assert.Equal(t, "/cart", res.Header.Get("Location"))
	orders, _ := repo.ListByUser(context.Background(), ana.ID)
	assert.Len(t, orders, 1, "one purchase, one order")
}

func TestCheckout_CartSaveKeepsFailing(t *testing.T) {
	repo := NewInMemoryRepository()
	sessions := &fakeSessions{who: ana, cart: sampleCart(), failWrites: 2}
	app := makeAppWithOrderHandler(repo, sessions)

	res, _ := get(t, app, "/checkout")
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
	orders, _ := repo.ListByUser(context.Background(), ana.ID)
	assert.Len(t, orders, 1)
}

func TestCheckout_StoreRerunPlacesOneOrder(t *testing.T) {
	repo := NewInMemoryRepository()
	sessions := &fakeSessions{who: ana, cart: sampleCart(), rerun: true}
	app := makeAppWithOrderHandler(repo, sessions)

	res, _ := get(t, app, "/checkout")
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.True(t, sessions.cart.IsEmpty())
	orders, _ := repo.ListByUser(context.Background(), ana.ID)
	assert.Len(t, orders, 1)
}

func TestCheckout_StoreDownKeepsCart(t *testing.T) {
	sessions := &fakeSessions{who: ana, cart: sampleCart()}
	app := makeAppWithOrderHandler(&brokenRepo{}, sessions)

	res, body := get(t, app, "/checkout")
	assert.Equal(t, fiber.StatusServiceUnavailable, res.StatusCode)
	assert.Contains(t, string(body), "temporarily unavailable")
	assert.NotContains(t, string(body), "serialize")
	assert.Contains(t, string(body), "Mate", "cart is shown again")
	assert.Equal(t, 2, sessions.cart.Len())
}

func TestHistory_Page(t *testing.T) {
	repo := NewInMemoryRepository()
	sessions := &fakeSessions{who: ana, cart: sampleCart()}
	app := makeAppWithOrderHandler(repo, sessions)

	res, _ := get(t, app, "/checkout")
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	res, body := get(t, app, "/history")
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	page := string(body)
	assert.Contains(t, page, "Order #1")
	assert.Contains(t, page, "Mate")
	assert.Contains(t, page, "$39.98")
	assert.Contains(t, page, "$44.98")

	sessions.who = nil
	res, _ = get(t, app, "/history")
	assert.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))
}

func TestHistory_StoreDown(t *testing.T) {
	app := makeAppWithOrderHandler(&brokenRepo{}, &fakeSessions{who: ana})

	res, body := get(t, app, "/history")
	assert.Equal(t, fiber.StatusServiceUnavailable, res.StatusCode)
	assert.NotContains(t, string(body), "connection refused")
}

func TestAPIOrders(t *testing.T) {
	repo := NewInMemoryRepository()
	sessions := &fakeSessions{who: ana, cart: sampleCart()}
	app := makeAppWithOrderHandler(repo, sessions)
	get(t, app, "/checkout")

	res, err := app.Test(httptest.NewRequest("GET", "/api/v1/orders", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)

	token, err := user.IssueToken(testSecret, *ana, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var out []orderView
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "44.98", out[0].Total)
	require.Len(t, out[0].Items, 2)
	assert.Equal(t, itemView{ProductName: "Mate", Quantity: 2, Price: "19.99", Subtotal: "39.98"}, out[0].Items[0])
	assert.Equal(t, "5.00", out[0].Items[1].Price)
}
