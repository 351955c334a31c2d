package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartbank/smartbank/internal/ledger"
)

var (
	// ErrInvalidDeposit rejects opening deposits below the minimum threshold.
	ErrInvalidDeposit = errors.New("initial deposit must be at least 500")

	// ErrInvalidAmount rejects non-positive deposit/withdrawal amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidType rejects unknown account types.
	ErrInvalidType = errors.New("invalid account type")

	// ErrNumberSpaceExhausted is returned when number generation keeps
	// colliding past the retry limit.
	ErrNumberSpaceExhausted = errors.New("could not allocate a unique account number")
)

const (
	numberLength       = 12
	maxNumberAttempts  = 5
	minOpeningDepositS = "500"
)

var minOpeningDeposit = decimal.RequireFromString(minOpeningDepositS)

// Service owns account lifecycle (open, close) and registry lookups. All
// balance mutations go through the ledger store's atomic operations.
type Service struct {
	store ledger.Store
}

// NewService builds an account service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// ParseAccountType maps the wire representation onto a known account type.
func ParseAccountType(raw string) (ledger.AccountType, error) {
	switch ledger.AccountType(raw) {
	case ledger.AccountTypeSavings, ledger.AccountTypeCurrent, ledger.AccountTypeFixedDeposit:
		return ledger.AccountType(raw), nil
	default:
		return "", ErrInvalidType
	}
}

// Create opens an account for ownerID with the given opening deposit. The
// account row and its founding DEPOSIT record are committed together; number
// collisions are retried a bounded number of times against the store's
// uniqueness constraint.
func (s *Service) Create(ctx context.Context, ownerID string, accountType ledger.AccountType, initialDeposit decimal.Decimal) (ledger.Account, error) {
	if _, err := ParseAccountType(string(accountType)); err != nil {
		return ledger.Account{}, err
	}
	if initialDeposit.Cmp(minOpeningDeposit) < 0 {
		return ledger.Account{}, ErrInvalidDeposit
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := generateNumber()
		if err != nil {
			return ledger.Account{}, err
		}

		now := time.Now().UTC()
		acct := ledger.Account{
			ID:        uuid.NewString(),
			Number:    number,
			OwnerID:   ownerID,
			Type:      accountType,
			Balance:   initialDeposit,
			Status:    ledger.AccountStatusActive,
			CreatedAt: now,
		}
		opening := ledger.Transaction{
			ID:          uuid.NewString(),
			AccountID:   acct.ID,
			Type:        ledger.TransactionTypeDeposit,
			Amount:      initialDeposit,
			Description: "Initial deposit",
			Timestamp:   now,
		}

		created, err := s.store.CreateAccount(ctx, acct, opening)
		if err != nil {
			if errors.Is(err, ledger.ErrNumberTaken) {
				continue
			}
			return ledger.Account{}, err
		}
		return created, nil
	}

	return ledger.Account{}, ErrNumberSpaceExhausted
}

// Get returns the account when it exists and belongs to requesterID. Missing
// and not-owned collapse into ErrNotFound so callers cannot probe for other
// users' accounts.
func (s *Service) Get(ctx context.Context, id, requesterID string) (ledger.Account, error) {
	return s.owned(ctx, id, requesterID)
}

// List returns the requester's open accounts.
func (s *Service) List(ctx context.Context, ownerID string) ([]ledger.Account, error) {
	return s.store.AccountsByOwner(ctx, ownerID)
}

// Transactions returns the audit trail of an owned account, newest first.
func (s *Service) Transactions(ctx context.Context, id, requesterID string) ([]ledger.Transaction, error) {
	if _, err := s.owned(ctx, id, requesterID); err != nil {
		return nil, err
	}
	return s.store.Transactions(ctx, id)
}

// Deposit credits an owned account with cash and records it.
func (s *Service) Deposit(ctx context.Context, id, requesterID string, amount decimal.Decimal) (ledger.Account, error) {
	if amount.Sign() <= 0 {
		return ledger.Account{}, ErrInvalidAmount
	}
	acct, err := s.owned(ctx, id, requesterID)
	if err != nil {
		return ledger.Account{}, err
	}
	return s.store.Deposit(ctx, acct.ID, amount, record(acct.ID, ledger.TransactionTypeDeposit, amount, "Cash deposit"))
}

// Withdraw debits an owned account, failing with ledger.ErrInsufficientFunds
// when the balance cannot cover the amount.
func (s *Service) Withdraw(ctx context.Context, id, requesterID string, amount decimal.Decimal) (ledger.Account, error) {
	if amount.Sign() <= 0 {
		return ledger.Account{}, ErrInvalidAmount
	}
	acct, err := s.owned(ctx, id, requesterID)
	if err != nil {
		return ledger.Account{}, err
	}
	return s.store.Withdraw(ctx, acct.ID, amount, record(acct.ID, ledger.TransactionTypeWithdrawal, amount, "Cash withdrawal"))
}

// Close marks an owned, empty account as closed. The transaction history is
// kept for audit.
func (s *Service) Close(ctx context.Context, id, requesterID string) error {
	if _, err := s.owned(ctx, id, requesterID); err != nil {
		return err
	}
	return s.store.CloseAccount(ctx, id)
}

func (s *Service) owned(ctx context.Context, id, requesterID string) (ledger.Account, error) {
	acct, err := s.store.Account(ctx, id)
	if err != nil {
		return ledger.Account{}, err
	}
	if acct.OwnerID != requesterID || acct.Status == ledger.AccountStatusClosed {
		return ledger.Account{}, ledger.ErrNotFound
	}
	return acct, nil
}

func record(accountID string, kind ledger.TransactionType, amount decimal.Decimal, description string) ledger.Transaction {
	return ledger.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Type:        kind,
		Amount:      amount,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
}

func generateNumber() (string, error) {
	buf := make([]byte, numberLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	digits := make([]byte, numberLength)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}
