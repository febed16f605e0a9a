package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/desk-bridge/pkg/util/errorutil"
)

const claimsKey = "auth_claims"

// AdminMiddleware validates bearer tokens on admin routes. Without a configured secret every
// request passes.
type AdminMiddleware struct {
	tokens *TokenManager
}

// NewAdminMiddleware constructs middleware.
func NewAdminMiddleware(tokens *TokenManager) *AdminMiddleware {
	return &AdminMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AdminMiddleware) Handle(c *fiber.Ctx) error {
	if !m.tokens.Enabled() {
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// RequireScope rejects authenticated callers whose token lacks scope. It is a no-op when
// authentication is disabled.
func (m *AdminMiddleware) RequireScope(scope Scope) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.tokens.Enabled() {
			return c.Next()
		}
		claims, ok := ClaimsFromContext(c)
		if !ok || !claims.HasScope(scope) {
			return fiber.NewError(http.StatusForbidden, "scope "+string(scope)+" required")
		}
		return c.Next()
	}
}

// ClaimsFromContext retrieves the authenticated operator.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok
}
