package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sendbtc/internal/auth"
)

const spendingPINHeader = "X-Spending-PIN"

// SpendingPIN guards money-moving routes behind the account's spending PIN.
// It is a no-op when no PIN hash is configured.
func SpendingPIN(verifier *auth.PINVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if verifier == nil || !verifier.Enabled() {
			return c.Next()
		}
		pin := c.Get(spendingPINHeader)
		if pin == "" {
			return fiber.NewError(http.StatusForbidden, "spending pin required")
		}
		if err := verifier.Verify(pin); err != nil {
			return fiber.NewError(http.StatusForbidden, "invalid spending pin")
		}
		return c.Next()
	}
}
