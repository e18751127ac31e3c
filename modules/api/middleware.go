package api

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/whiteboard-sync/modules/store"
)

const (
	// UserContextKey is the key used to store the authenticated user in the
	// Fiber context.
	UserContextKey = "user"
)

// tokenVerifier resolves a bearer token to the account it belongs to.
type tokenVerifier interface {
	CurrentUser(ctx context.Context, token string) (*store.User, error)
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(verifier tokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Authorization header is required. Use: Bearer <token>",
			})
		}

		user, err := verifier.CurrentUser(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(UserContextKey, user)
		return c.Next()
	}
}

// AuthOptional resolves a bearer token when one is present but lets
// anonymous requests through. Handlers see a nil user for those.
func AuthOptional(verifier tokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return c.Next()
		}
		if user, err := verifier.CurrentUser(c.UserContext(), token); err == nil {
			c.Locals(UserContextKey, user)
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return token, token != ""
}

// currentUser returns the authenticated user set by the middleware, or nil.
func currentUser(c *fiber.Ctx) *store.User {
	user, _ := c.Locals(UserContextKey).(*store.User)
	return user
}
