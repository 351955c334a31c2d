package account

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartbank/smartbank/internal/ledger"
)

func TestCreateRecordsOpeningDeposit(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store)
	ctx := context.Background()
	owner := uuid.NewString()

	acct, err := svc.Create(ctx, owner, ledger.AccountTypeSavings, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(acct.Number) != 12 {
		t.Fatalf("expected 12-digit number, got %q", acct.Number)
	}
	if !acct.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected balance 1000, got %s", acct.Balance)
	}

	records, err := svc.Transactions(ctx, acct.ID, owner)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly the founding record, got %d", len(records))
	}
	if records[0].Type != ledger.TransactionTypeDeposit || records[0].Description != "Initial deposit" {
		t.Fatalf("unexpected founding record: %+v", records[0])
	}
	if !records[0].Amount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("founding amount mismatch: %s", records[0].Amount)
	}
}

func TestCreateRejectsSmallDeposit(t *testing.T) {
	svc := NewService(ledger.NewInMemory())

	_, err := svc.Create(context.Background(), uuid.NewString(), ledger.AccountTypeCurrent, decimal.NewFromInt(499))
	if !errors.Is(err, ErrInvalidDeposit) {
		t.Fatalf("expected ErrInvalidDeposit, got %v", err)
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc := NewService(ledger.NewInMemory())

	// Callers bypassing the HTTP layer must not be able to persist an
	// unknown account type.
	_, err := svc.Create(context.Background(), uuid.NewString(), ledger.AccountType("offshore"), decimal.NewFromInt(1000))
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

// collidingStore reports every generated number as taken.
type collidingStore struct {
	ledger.Store
	attempts int
}

func (s *collidingStore) CreateAccount(_ context.Context, _ ledger.Account, _ ledger.Transaction) (ledger.Account, error) {
	s.attempts++
	return ledger.Account{}, ledger.ErrNumberTaken
}

func TestCreateBoundsNumberRetries(t *testing.T) {
	store := &collidingStore{Store: ledger.NewInMemory()}
	svc := NewService(store)

	_, err := svc.Create(context.Background(), uuid.NewString(), ledger.AccountTypeSavings, decimal.NewFromInt(500))
	if !errors.Is(err, ErrNumberSpaceExhausted) {
		t.Fatalf("expected ErrNumberSpaceExhausted, got %v", err)
	}
	if store.attempts != maxNumberAttempts {
		t.Fatalf("expected %d attempts, got %d", maxNumberAttempts, store.attempts)
	}
}

func TestGetHidesForeignAccounts(t *testing.T) {
	svc := NewService(ledger.NewInMemory())
	ctx := context.Background()

	acct, err := svc.Create(ctx, uuid.NewString(), ledger.AccountTypeSavings, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, acct.ID, uuid.NewString()); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign requester, got %v", err)
	}
}

func TestCloseRequiresZeroBalance(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store)
	ctx := context.Background()
	owner := uuid.NewString()

	acct, err := svc.Create(ctx, owner, ledger.AccountTypeSavings, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Close(ctx, acct.ID, owner); !errors.Is(err, ledger.ErrNonZeroBalance) {
		t.Fatalf("expected ErrNonZeroBalance, got %v", err)
	}

	if _, err := svc.Withdraw(ctx, acct.ID, owner, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := svc.Close(ctx, acct.ID, owner); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A closed account behaves like a missing one.
	if _, err := svc.Get(ctx, acct.ID, owner); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected closed account to read as not found, got %v", err)
	}
	accounts, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("closed account still listed: %+v", accounts)
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	svc := NewService(ledger.NewInMemory())
	ctx := context.Background()
	owner := uuid.NewString()

	acct, err := svc.Create(ctx, owner, ledger.AccountTypeCurrent, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Deposit(ctx, acct.ID, owner, decimal.NewFromInt(250))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("expected balance 750, got %s", updated.Balance)
	}

	if _, err := svc.Withdraw(ctx, acct.ID, owner, decimal.NewFromInt(1000)); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if _, err := svc.Deposit(ctx, acct.ID, owner, decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
