package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/sendbtc/internal/payments"
)

// RegisterPaymentRoutes wires payment endpoints. submitGuards run in order
// before a submission is dispatched.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, submitGuards ...fiber.Handler) {
	r.Post("/payments", h.Prepare)
	r.Get("/payments", h.History)
	r.Get("/payments/:id", h.Get)

	submit := append(append([]fiber.Handler{}, submitGuards...), h.Submit)
	r.Post("/payments/:id/submit", submit...)

	r.Get("/recipients/:handle", h.Recipient)
}
