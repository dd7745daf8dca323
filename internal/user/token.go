package user

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

const TokenTTL = 72 * time.Hour

// IssueToken signs an HS256 token carrying the identity.
func IssueToken(secret []byte, id Identity, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  id.ID,
		"username": id.Username,
		"exp":      now.Add(TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// RequireToken rejects API requests without a valid bearer token.
func RequireToken(secret []byte) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: secret,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
		},
	})
}

// IdentityFromToken reads the identity from the token RequireToken stored
// in c.Locals("user").
func IdentityFromToken(c *fiber.Ctx) (Identity, error) {
	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return Identity{}, fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fiber.ErrUnauthorized
	}

	var id int
	switch v := claims["user_id"].(type) {
	case float64:
		id = int(v)
	case int:
		id = v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return Identity{}, fiber.ErrUnauthorized
		}
		id = n
	default:
		return Identity{}, fiber.ErrUnauthorized
	}
	if id <= 0 {
		return Identity{}, fiber.ErrUnauthorized
	}

	username, _ := claims["username"].(string)
	return Identity{ID: id, Username: username}, nil
}
