package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartbank/smartbank/internal/ledger"
	"github.com/smartbank/smartbank/internal/notification"
)

var (
	// ErrInvalidAmount rejects non-positive transfer amounts.
	ErrInvalidAmount = errors.New("transfer amount must be positive")

	// ErrSelfTransfer rejects transfers whose source and destination are the
	// same account.
	ErrSelfTransfer = errors.New("cannot transfer to the same account")
)

// maxConflictRetries bounds automatic retries of transient storage conflicts
// before the failure is surfaced to the caller.
const maxConflictRetries = 3

// Service is the transfer engine. It validates preconditions in a fixed order
// and delegates the debit, credit and both record appends to one atomic store
// operation.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
}

// NewService constructs a transfer service.
func NewService(store ledger.Store, notifier notification.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Input captures the data needed to move funds between accounts.
type Input struct {
	FromAccountID   string
	ToAccountNumber string
	Amount          decimal.Decimal
	RequesterID     string
}

// Result describes the post-transfer state of both accounts.
type Result struct {
	From        ledger.Account
	To          ledger.Account
	CompletedAt time.Time
}

// Transfer moves Amount from the requester's account to the account addressed
// by ToAccountNumber. Precondition failures each map to a distinct error; a
// source that is missing, closed, or owned by someone else uniformly reads as
// ledger.ErrNotFound so callers cannot enumerate other users' accounts.
func (s *Service) Transfer(ctx context.Context, input Input) (Result, error) {
	if input.Amount.Sign() <= 0 {
		return Result{}, ErrInvalidAmount
	}

	src, err := s.store.Account(ctx, input.FromAccountID)
	if err != nil {
		return Result{}, err
	}
	if src.OwnerID != input.RequesterID || src.Status == ledger.AccountStatusClosed {
		return Result{}, ledger.ErrNotFound
	}

	dst, err := s.store.AccountByNumber(ctx, input.ToAccountNumber)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return Result{}, ledger.ErrDestinationNotFound
		}
		return Result{}, err
	}

	if src.ID == dst.ID {
		return Result{}, ErrSelfTransfer
	}

	// The balance check happens inside the store, under the row lock, so two
	// concurrent transfers cannot both pass it against a stale balance.
	var from, to ledger.Account
	for attempt := 0; ; attempt++ {
		now := time.Now().UTC()
		debit := ledger.Transaction{
			ID:          uuid.NewString(),
			AccountID:   src.ID,
			Type:        ledger.TransactionTypeWithdrawal,
			Amount:      input.Amount,
			Description: fmt.Sprintf("Transfer to %s", dst.Number),
			Timestamp:   now,
		}
		credit := ledger.Transaction{
			ID:          uuid.NewString(),
			AccountID:   dst.ID,
			Type:        ledger.TransactionTypeDeposit,
			Amount:      input.Amount,
			Description: fmt.Sprintf("Transfer from %s", src.Number),
			Timestamp:   now,
		}

		from, to, err = s.store.Transfer(ctx, src.ID, dst.ID, input.Amount, debit, credit)
		if err == nil {
			break
		}
		if errors.Is(err, ledger.ErrConflict) && attempt < maxConflictRetries-1 {
			continue
		}
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: to.OwnerID,
			Body:        fmt.Sprintf("You received %s from account %s", input.Amount, src.Number),
		})
	}

	return Result{From: from, To: to, CompletedAt: time.Now().UTC()}, nil
}
