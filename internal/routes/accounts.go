package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartbank/smartbank/internal/account"
)

// RegisterAccountRoutes wires account lifecycle and cash endpoints.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Post("/accounts", h.Create)
	r.Get("/accounts", h.List)
	r.Get("/accounts/:accountId", h.Get)
	r.Get("/accounts/:accountId/transactions", h.Transactions)
	r.Post("/accounts/:accountId/deposit", h.Deposit)
	r.Post("/accounts/:accountId/withdraw", h.Withdraw)
	r.Delete("/accounts/:accountId", h.Close)
}
