package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sendbtc/internal/wallet"
)

// RegisterWalletRoutes wires the cached wallet views.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet/balance", h.Balance)
	r.Get("/wallet/transactions", h.Transactions)
	r.Get("/quiz", h.Quiz)
}
