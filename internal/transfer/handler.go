package transfer

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/smartbank/smartbank/internal/ledger"
)

// Handler exposes the transfer endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	ToAccountNumber string          `json:"to_account_number"`
	Amount          decimal.Decimal `json:"amount"`
}

// Execute processes an account-to-account transfer. Only the source side is
// returned; the destination belongs to someone else.
func (h *Handler) Execute(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.service.Transfer(c.UserContext(), Input{
		FromAccountID:   c.Params("accountId"),
		ToAccountNumber: req.ToAccountNumber,
		Amount:          req.Amount,
		RequesterID:     uid,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "source account not found or does not belong to user")
		case errors.Is(err, ErrInvalidAmount),
			errors.Is(err, ErrSelfTransfer),
			errors.Is(err, ledger.ErrDestinationNotFound),
			errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrConflict):
			return fiber.NewError(http.StatusConflict, "transfer conflicted, retry")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":             res.From.ID,
		"account_number": res.From.Number,
		"account_type":   string(res.From.Type),
		"balance":        res.From.Balance.String(),
		"status":         string(res.From.Status),
		"owner_id":       res.From.OwnerID,
		"created_at":     res.From.CreatedAt.Format(time.RFC3339Nano),
		"completed_at":   res.CompletedAt.Format(time.RFC3339Nano),
	})
}
