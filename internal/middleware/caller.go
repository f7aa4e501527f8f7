package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CallerKey is the fiber.Locals key holding the authenticated caller identity.
const CallerKey = "caller"

// TokenVerifier resolves a bearer token to a caller identity.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Caller authenticates the bearer token and stores the caller identity in
// Locals. Whether the caller may mutate the registry is decided by the
// registry itself.
func Caller(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		identity, err := verifier.Verify(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		c.Locals(CallerKey, identity)
		return c.Next()
	}
}

// CallerIdentity returns the identity stored by Caller, if any.
func CallerIdentity(c *fiber.Ctx) string {
	identity, _ := c.Locals(CallerKey).(string)
	return identity
}
