// Package mw contains HTTP middleware including authentication, rate limiting
// and request metrics.
package mw

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/apperr"
)

// KindUser marks tokens issued to registered users.
const KindUser = "user"

const authKey = "auth"

// AuthContext holds authentication details extracted from JWT.
type AuthContext struct {
	Subject string // user id
	Kind    string
}

// TokenParser parses a token string and returns subject and kind.
type TokenParser func(token string) (string, string, error)

// JWTMiddlewareDynamic attaches auth context parsed by the given token parser.
// A missing or invalid token leaves the request anonymous; RequireUser
// decides whether that is acceptable.
func JWTMiddlewareDynamic(parse TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return c.Next()
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		sub, kind, err := parse(token)
		if err == nil && sub != "" {
			c.Locals(authKey, &AuthContext{Subject: sub, Kind: kind})
		}
		return c.Next()
	}
}

// Auth returns the auth context of the request, or nil.
func Auth(c *fiber.Ctx) *AuthContext {
	ac, _ := c.Locals(authKey).(*AuthContext)
	return ac
}

// PrincipalID returns the authenticated user id, or "".
func PrincipalID(c *fiber.Ctx) string {
	if ac := Auth(c); ac != nil && ac.Kind == KindUser {
		return ac.Subject
	}
	return ""
}

// RequireUser enforces authenticated user (kind=user)
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if PrincipalID(c) == "" {
			return goerr.Wrap(apperr.ErrUnauthenticated, "missing or invalid bearer token",
				goerr.V("path", c.Path()))
		}
		return c.Next()
	}
}
