package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartbank/smartbank/internal/account"
	"github.com/smartbank/smartbank/internal/ledger"
	"github.com/smartbank/smartbank/internal/notification"
)

type testNotifier struct {
	mu   sync.Mutex
	last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = msg
	return nil
}

type fixture struct {
	store    ledger.Store
	accounts *account.Service
	svc      *Service
	notifier *testNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewInMemory()
	notifier := &testNotifier{}
	return &fixture{
		store:    store,
		accounts: account.NewService(store),
		svc:      NewService(store, notifier),
		notifier: notifier,
	}
}

func (f *fixture) openAccount(t *testing.T, owner string, balance int64) ledger.Account {
	t.Helper()
	acct, err := f.accounts.Create(context.Background(), owner, ledger.AccountTypeSavings, decimal.NewFromInt(balance))
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	return acct
}

func TestTransferSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.NewString(), uuid.NewString()

	src := f.openAccount(t, alice, 1000)
	dst := f.openAccount(t, bob, 500)

	res, err := f.svc.Transfer(ctx, Input{
		FromAccountID:   src.ID,
		ToAccountNumber: dst.Number,
		Amount:          decimal.NewFromInt(300),
		RequesterID:     alice,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if got := res.From.Balance.String(); got != "700" {
		t.Fatalf("expected source balance 700, got %s", got)
	}
	if got := res.To.Balance.String(); got != "800" {
		t.Fatalf("expected destination balance 800, got %s", got)
	}

	srcRecords, err := f.accounts.Transactions(ctx, src.ID, alice)
	if err != nil {
		t.Fatalf("source records: %v", err)
	}
	dstRecords, err := f.accounts.Transactions(ctx, dst.ID, bob)
	if err != nil {
		t.Fatalf("destination records: %v", err)
	}
	// Opening deposit plus the transfer leg on each side.
	if len(srcRecords) != 2 || len(dstRecords) != 2 {
		t.Fatalf("expected 2 records per side, got %d/%d", len(srcRecords), len(dstRecords))
	}

	debit, credit := srcRecords[0], dstRecords[0]
	if debit.Type != ledger.TransactionTypeWithdrawal || credit.Type != ledger.TransactionTypeDeposit {
		t.Fatalf("unexpected record types: %s/%s", debit.Type, credit.Type)
	}
	if !debit.Amount.Equal(credit.Amount) {
		t.Fatalf("legs not balanced: %s vs %s", debit.Amount, credit.Amount)
	}
	if debit.Description != "Transfer to "+dst.Number {
		t.Fatalf("unexpected debit description: %q", debit.Description)
	}
	if credit.Description != "Transfer from "+src.Number {
		t.Fatalf("unexpected credit description: %q", credit.Description)
	}

	if f.notifier.last.Kind != notification.KindTransferReceived || f.notifier.last.Destination != bob {
		t.Fatalf("expected destination owner notification, got %+v", f.notifier.last)
	}
}

func TestTransferInvalidAmount(t *testing.T) {
	f := newFixture(t)
	alice := uuid.NewString()
	src := f.openAccount(t, alice, 1000)
	dst := f.openAccount(t, uuid.NewString(), 500)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-10)} {
		_, err := f.svc.Transfer(context.Background(), Input{
			FromAccountID:   src.ID,
			ToAccountNumber: dst.Number,
			Amount:          amount,
			RequesterID:     alice,
		})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}

	refetched, err := f.store.Account(context.Background(), src.ID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !refetched.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("state changed after rejected transfer: %s", refetched.Balance)
	}
}

func TestTransferForeignSourceReadsAsNotFound(t *testing.T) {
	f := newFixture(t)
	src := f.openAccount(t, uuid.NewString(), 1000)
	dst := f.openAccount(t, uuid.NewString(), 500)

	_, err := f.svc.Transfer(context.Background(), Input{
		FromAccountID:   src.ID,
		ToAccountNumber: dst.Number,
		Amount:          decimal.NewFromInt(100),
		RequesterID:     uuid.NewString(),
	})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransferDestinationNotFound(t *testing.T) {
	f := newFixture(t)
	alice := uuid.NewString()
	src := f.openAccount(t, alice, 1000)

	_, err := f.svc.Transfer(context.Background(), Input{
		FromAccountID:   src.ID,
		ToAccountNumber: "000000000000",
		Amount:          decimal.NewFromInt(100),
		RequesterID:     alice,
	})
	if !errors.Is(err, ledger.ErrDestinationNotFound) {
		t.Fatalf("expected ErrDestinationNotFound, got %v", err)
	}
}

func TestTransferToSelfRejected(t *testing.T) {
	f := newFixture(t)
	alice := uuid.NewString()
	src := f.openAccount(t, alice, 1000)

	_, err := f.svc.Transfer(context.Background(), Input{
		FromAccountID:   src.ID,
		ToAccountNumber: src.Number,
		Amount:          decimal.NewFromInt(100),
		RequesterID:     alice,
	})
	if !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
}

func TestTransferInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.NewString(), uuid.NewString()
	src := f.openAccount(t, alice, 500)
	dst := f.openAccount(t, bob, 500)

	_, err := f.svc.Transfer(ctx, Input{
		FromAccountID:   src.ID,
		ToAccountNumber: dst.Number,
		Amount:          decimal.NewFromInt(600),
		RequesterID:     alice,
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	records, err := f.accounts.Transactions(ctx, src.ID, alice)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("failed transfer left records behind: %d", len(records))
	}
}

// conflictingStore fails the first transfers with a transient conflict.
type conflictingStore struct {
	ledger.Store
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (s *conflictingStore) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, debit, credit ledger.Transaction) (ledger.Account, ledger.Account, error) {
	s.mu.Lock()
	s.calls++
	remaining := s.conflicts
	if remaining > 0 {
		s.conflicts--
	}
	s.mu.Unlock()
	if remaining > 0 {
		return ledger.Account{}, ledger.Account{}, ledger.ErrConflict
	}
	return s.Store.Transfer(ctx, fromID, toID, amount, debit, credit)
}

func TestTransferRetriesTransientConflicts(t *testing.T) {
	inner := ledger.NewInMemory()
	store := &conflictingStore{Store: inner, conflicts: 2}
	accounts := account.NewService(inner)
	svc := NewService(store, nil)

	ctx := context.Background()
	alice, bob := uuid.NewString(), uuid.NewString()
	src, err := accounts.Create(ctx, alice, ledger.AccountTypeSavings, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	dst, err := accounts.Create(ctx, bob, ledger.AccountTypeSavings, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := svc.Transfer(ctx, Input{FromAccountID: src.ID, ToAccountNumber: dst.Number, Amount: decimal.NewFromInt(100), RequesterID: alice})
	if err != nil {
		t.Fatalf("transfer after retries: %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
	if got := res.From.Balance.String(); got != "900" {
		t.Fatalf("expected 900 after retried transfer, got %s", got)
	}

	store.conflicts = maxConflictRetries
	if _, err := svc.Transfer(ctx, Input{FromAccountID: src.ID, ToAccountNumber: dst.Number, Amount: decimal.NewFromInt(100), RequesterID: alice}); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("expected surfaced ErrConflict, got %v", err)
	}
}

func TestConcurrentTransfersDrainExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.NewString()

	const (
		workers = 8
		funded  = 3
	)
	amount := decimal.NewFromInt(500)

	src := f.openAccount(t, alice, 500*funded)
	destinations := make([]ledger.Account, workers)
	for i := range destinations {
		destinations[i] = f.openAccount(t, uuid.NewString(), 500)
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Transfer(ctx, Input{
				FromAccountID:   src.ID,
				ToAccountNumber: destinations[i].Number,
				Amount:          amount,
				RequesterID:     alice,
			})
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != funded || insufficient != workers-funded {
		t.Fatalf("expected %d/%d split, got %d/%d", funded, workers-funded, succeeded, insufficient)
	}

	final, err := f.store.Account(ctx, src.ID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !final.Balance.IsZero() {
		t.Fatalf("expected drained source, got %s", final.Balance)
	}
}
