package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/storefront/internal/config"
	"github.com/wichananm65/storefront/internal/order"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/session"
	"github.com/wichananm65/storefront/internal/user"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		SessionSecret: base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")),
		SessionTTL:    time.Hour,
		JWTSecret:     "jwt-test-secret",
		StoreName:     "Tienda",
		StaticDir:     t.TempDir(),
		CORSOrigins:   "*",
	}
}

func newTestApp(t *testing.T) (*fiber.App, order.Repository) {
	t.Helper()
	return newTestAppWithSessions(t, session.NewMemoryStore(time.Hour))
}

func newTestAppWithSessions(t *testing.T, sessions session.Store) (*fiber.App, order.Repository) {
	t.Helper()
	orders := order.NewInMemoryRepository()
	app := New(testConfig(t), Deps{
		Products: product.NewInMemoryRepository(product.SampleProducts()),
		Users:    user.NewInMemoryRepository(nil),
		Orders:   orders,
		Sessions: sessions,
	})
	return app, orders
}

// flakySessions fails the first save of a signed-in session whose cart is
// empty, which is the write that follows a successful checkout.
type flakySessions struct {
	*session.MemoryStore
	mu     sync.Mutex
	failed bool
}

func (f *flakySessions) Put(ctx context.Context, id string, s session.Session) error {
	f.mu.Lock()
	fail := !f.failed && s.User != nil && s.Cart.IsEmpty()
	if fail {
		f.failed = true
	}
	f.mu.Unlock()
	if fail {
		return errors.New("write session: connection reset by peer")
	}
	return f.MemoryStore.Put(ctx, id, s)
}

// browser carries cookies between requests the way a real client would.
type browser struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]string
}

func newBrowser(t *testing.T, app *fiber.App) *browser {
	return &browser{t: t, app: app, cookies: map[string]string{}}
}

func (b *browser) do(method, path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	res, err := b.app.Test(req, 5000)
	require.NoError(b.t, err)
	for _, ck := range res.Cookies() {
		expired := ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(time.Now()))
		if expired || ck.Value == "" {
			delete(b.cookies, ck.Name)
			continue
		}
		b.cookies[ck.Name] = ck.Value
	}
	out, err := io.ReadAll(res.Body)
	require.NoError(b.t, err)
	return res, string(out)
}

func TestCheckoutFlow_EndToEnd(t *testing.T) {
	app, _ := newTestApp(t)
	b := newBrowser(t, app)

	res, body := b.do("GET", "/", nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Gourd and Bombilla Set")

	// Anonymous visitors can fill a cart.
	res, _ = b.do("POST", "/add-to-cart", url.Values{"product_id": {"2"}, "quantity": {"2"}})
	require.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	res, _ = b.do("POST", "/add-to-cart", url.Values{"product_id": {"4"}})
	require.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	require.NotEmpty(t, b.cookies[session.CookieName])

	res, _ = b.do("GET", "/checkout", nil)
	assert.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, _ = b.do("POST", "/register", url.Values{"username": {"ana"}, "email": {"ana@x.com"}, "password": {"pw123"}})
	require.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	anonymousSID := b.cookies[session.CookieName]
	res, _ = b.do("POST", "/login", url.Values{"email": {"ana@x.com"}, "password": {"pw123"}})
	require.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	assert.NotEqual(t, anonymousSID, b.cookies[session.CookieName], "login issues a new session id")

	// The anonymous cart survives signing in.
	res, body = b.do("GET", "/cart", nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Hello, ana")
	assert.Contains(t, body, "Gourd and Bombilla Set")
	assert.Contains(t, body, "44.98")

	res, body = b.do("GET", "/checkout", nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Equal(t, "application/pdf", res.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="receipt-ana-1.pdf"`, res.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(body, "%PDF-"))

	_, body = b.do("GET", "/cart", nil)
	assert.Contains(t, body, "Your cart is empty")

	res, body = b.do("GET", "/history", nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Order #1")
	assert.Contains(t, body, "$39.98")
	assert.Contains(t, body, "$44.98")

	res, _ = b.do("GET", "/logout", nil)
	assert.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	res, _ = b.do("GET", "/history", nil)
	assert.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))
}

func TestCheckout_ReceiptSentWhenCartSaveFails(t *testing.T) {
	app, orders := newTestAppWithSessions(t, &flakySessions{MemoryStore: session.NewMemoryStore(time.Hour)})
	b := newBrowser(t, app)

	b.do("POST", "/add-to-cart", url.Values{"product_id": {"1"}})
	b.do("POST", "/register", url.Values{"username": {"ana"}, "email": {"ana@x.com"}, "password": {"pw123"}})
	b.do("POST", "/login", url.Values{"email": {"ana@x.com"}, "password": {"pw123"}})

	res, body := b.do("GET", "/checkout", nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.True(t, strings.HasPrefix(body, "%PDF-"))

	_, body = b.do("GET", "/cart", nil)
	assert.Contains(t, body, "Your cart is empty")

	res, _ = b.do("GET", "/checkout", nil)
	assert.Equal(t, "/cart", res.Header.Get("Location"))

	placed, err := orders.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, placed, 1)
}

func TestCheckout_EmptyCartCreatesNoOrder(t *testing.T) {
	app, orders := newTestApp(t)
	b := newBrowser(t, app)

	b.do("POST", "/register", url.Values{"username": {"bo"}, "email": {"bo@x.com"}, "password": {"secret"}})
	b.do("POST", "/login", url.Values{"email": {"bo@x.com"}, "password": {"secret"}})

	res, _ := b.do("GET", "/checkout", nil)
	assert.Equal(t, fiber.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/cart", res.Header.Get("Location"))

	placed, err := orders.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, placed)
}

func TestVisitorsHaveSeparateCarts(t *testing.T) {
	app, _ := newTestApp(t)
	alice := newBrowser(t, app)
	bob := newBrowser(t, app)

	alice.do("POST", "/add-to-cart", url.Values{"product_id": {"1"}})
	_, body := bob.do("GET", "/cart", nil)
	assert.Contains(t, body, "Your cart is empty")
	assert.Contains(t, body, "Cart (0)")

	_, body = alice.do("GET", "/cart", nil)
	assert.Contains(t, body, "Cart (1)")
}

func TestUpdateCart_JSON(t *testing.T) {
	app, _ := newTestApp(t)
	b := newBrowser(t, app)
	b.do("POST", "/add-to-cart", url.Values{"product_id": {"2"}, "quantity": {"2"}})

	req := httptest.NewRequest("POST", "/update-cart", strings.NewReader(`{"productId":2,"action":"decrease"}`))
	req.Header.Set("Content-Type", "application/json")
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var out struct {
		Success  bool   `json:"success"`
		NewTotal string `json:"newTotal"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, "19.99", out.NewTotal)
}

func TestAPI_TokenOrders(t *testing.T) {
	app, _ := newTestApp(t)
	b := newBrowser(t, app)
	b.do("POST", "/register", url.Values{"username": {"ana"}, "email": {"ana@x.com"}, "password": {"pw123"}})

	req := httptest.NewRequest("POST", "/api/v1/sign-in", strings.NewReader(`{"email":"ana@x.com","password":"pw123"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	var signIn struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&signIn))

	req = httptest.NewRequest("GET", "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signIn.Token)
	res, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	b2, _ := io.ReadAll(res.Body)
	assert.JSONEq(t, `[]`, string(b2))
}

func TestMiddlewareHeaders(t *testing.T) {
	app, _ := newTestApp(t)

	res, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Header.Get(fiber.HeaderXRequestID))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
}

func TestCORS_OnlyOnAPI(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/orders", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, res.StatusCode)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestSessionCookieIsEncrypted(t *testing.T) {
	app, _ := newTestApp(t)
	b := newBrowser(t, app)

	res, _ := b.do("POST", "/add-to-cart", url.Values{"product_id": {"1"}})
	var sid *http.Cookie
	for _, ck := range res.Cookies() {
		if ck.Name == session.CookieName {
			sid = ck
		}
	}
	require.NotNil(t, sid)
	assert.True(t, sid.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, sid.SameSite)
	// A raw uuid is 36 characters; the encrypted form is longer and opaque.
	assert.Greater(t, len(sid.Value), 36)
	assert.NotContains(t, sid.Value, "-")
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("connection refused") }

func TestHealthz(t *testing.T) {
	app, _ := newTestApp(t)
	res, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	down := New(testConfig(t), Deps{
		DB:       downDB{},
		Products: product.NewInMemoryRepository(nil),
		Users:    user.NewInMemoryRepository(nil),
		Orders:   order.NewInMemoryRepository(),
		Sessions: session.NewMemoryStore(time.Hour),
	})
	res, err = down.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, res.StatusCode)
}
