// Package session keeps per-visitor state (cart and signed-in identity)
// behind a cookie-keyed store.
package session

import (
	"errors"
	"time"

	"github.com/wichananm65/storefront/internal/cart"
	"github.com/wichananm65/storefront/internal/user"
)

var ErrNotFound = errors.New("session not found")

// Session is what the store persists for one visitor.
type Session struct {
	ID        string         `json:"-"`
	User      *user.Identity `json:"user,omitempty"`
	Cart      cart.Cart      `json:"cart"`
	CreatedAt time.Time      `json:"createdAt"`

	// fresh marks a session minted during this request whose id the client
	// has not been given yet.
	fresh bool
}

// Identity returns the signed-in user, or false for an anonymous visitor.
func (s Session) Identity() (user.Identity, bool) {
	if s.User == nil {
		return user.Identity{}, false
	}
	return *s.User, true
}

// clone copies s so the copy's cart can be changed without touching s.
func (s Session) clone() Session {
	out := s
	if s.Cart.Items != nil {
		out.Cart.Items = make(map[int]cart.Line, len(s.Cart.Items))
		for k, v := range s.Cart.Items {
			out.Cart.Items[k] = v
		}
	}
	return out
}
