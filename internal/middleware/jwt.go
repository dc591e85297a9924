package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sendbtc/internal/auth"
)

// JWTAuth validates the bearer access token, stores the account id in the
// request locals and forwards the raw token to the wallet API through the
// user context.
func JWTAuth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.ParseAndVerifyHS256(tokenStr, secret, time.Now())
		if errors.Is(err, auth.ErrTokenExpired) {
			return fiber.NewError(http.StatusUnauthorized, "token expired")
		}
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(auth.LocalAccountID, claims.Subject)
		c.SetUserContext(auth.WithBearer(c.UserContext(), tokenStr))
		return c.Next()
	}
}
