package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/smartbank/smartbank/internal/ledger"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	AccountType    string          `json:"account_type"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type accountResponse struct {
	ID            string `json:"id"`
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type"`
	Balance       string `json:"balance"`
	Status        string `json:"status"`
	OwnerID       string `json:"owner_id"`
	CreatedAt     string `json:"created_at"`
}

type transactionResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		AccountNumber: a.Number,
		AccountType:   string(a.Type),
		Balance:       a.Balance.String(),
		Status:        string(a.Status),
		OwnerID:       a.OwnerID,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toTransactionResponse(r ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Type:        string(r.Type),
		Amount:      r.Amount.String(),
		Description: r.Description,
		Timestamp:   r.Timestamp.Format(time.RFC3339Nano),
	}
}

// Create opens an account for the authenticated user.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	accountType, err := ParseAccountType(req.AccountType)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.service.Create(c.UserContext(), requesterID(c), accountType, req.InitialDeposit)
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusCreated).JSON(toAccountResponse(acct))
}

// List returns the authenticated user's open accounts.
func (h *Handler) List(c *fiber.Ctx) error {
	accounts, err := h.service.List(c.UserContext(), requesterID(c))
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, acct := range accounts {
		out = append(out, toAccountResponse(acct))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Get returns a single owned account.
func (h *Handler) Get(c *fiber.Ctx) error {
	acct, err := h.service.Get(c.UserContext(), c.Params("accountId"), requesterID(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(acct))
}

// Transactions lists an owned account's records, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	records, err := h.service.Transactions(c.UserContext(), c.Params("accountId"), requesterID(c))
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]transactionResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toTransactionResponse(record))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Deposit credits cash into an owned account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.service.Deposit(c.UserContext(), c.Params("accountId"), requesterID(c), req.Amount)
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(acct))
}

// Withdraw debits cash from an owned account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.service.Withdraw(c.UserContext(), c.Params("accountId"), requesterID(c), req.Amount)
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(acct))
}

// Close soft-deletes an owned, empty account.
func (h *Handler) Close(c *fiber.Ctx) error {
	if err := h.service.Close(c.UserContext(), c.Params("accountId"), requesterID(c)); err != nil {
		return mapServiceError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func requesterID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found or does not belong to user")
	case errors.Is(err, ErrInvalidDeposit),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidType),
		errors.Is(err, ledger.ErrNonZeroBalance),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNumberSpaceExhausted), errors.Is(err, ledger.ErrConflict):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
