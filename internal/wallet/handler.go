package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sendbtc/internal/auth"
)

// Handler exposes the cached wallet data over HTTP.
type Handler struct {
	cache *Cache
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(cache *Cache) *Handler {
	return &Handler{cache: cache}
}

// Balance returns the balance of the caller's first wallet.
func (h *Handler) Balance(c *fiber.Ctx) error {
	accountID, _ := c.Locals(auth.LocalAccountID).(string)
	balance, err := h.cache.ReadCachedBalance(c.UserContext(), accountID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance":   balance.Value,
		"currency":  balance.Currency,
		"formatted": balance.String(),
	})
}

// Transactions returns the caller's recent history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	accountID, _ := c.Locals(auth.LocalAccountID).(string)
	txs, err := h.cache.ReadRecentTransactions(c.UserContext(), accountID)
	if err != nil {
		return mapError(err)
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": txs})
}

// Quiz returns all quiz rewards and the ones the caller completed.
func (h *Handler) Quiz(c *fiber.Ctx) error {
	accountID, _ := c.Locals(auth.LocalAccountID).(string)
	progress, err := h.cache.ReadQuizProgress(c.UserContext(), accountID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(progress)
}

func mapError(err error) error {
	if errors.Is(err, ErrNoWallet) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return fiber.NewError(http.StatusBadGateway, err.Error())
}
