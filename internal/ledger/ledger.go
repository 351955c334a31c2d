package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the requested account does not exist (or is closed).
	ErrNotFound = errors.New("account not found")

	// ErrDestinationNotFound indicates the transfer destination number does not
	// resolve to an open account.
	ErrDestinationNotFound = errors.New("destination account not found")

	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNonZeroBalance prevents closing an account that still holds funds.
	ErrNonZeroBalance = errors.New("account balance must be zero")

	// ErrNumberTaken indicates the generated account number collided with an
	// existing one at insert time.
	ErrNumberTaken = errors.New("account number already in use")

	// ErrConflict is a transient serialization failure. The whole operation is
	// safe to retry.
	ErrConflict = errors.New("storage conflict")
)

// AccountType classifies an account product.
type AccountType string

const (
	AccountTypeSavings      AccountType = "savings"
	AccountTypeCurrent      AccountType = "current"
	AccountTypeFixedDeposit AccountType = "fd"
)

// AccountStatus reflects the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusLocked AccountStatus = "locked"
	AccountStatusClosed AccountStatus = "closed"
)

// TransactionType labels an entry in the transaction log.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeLoan       TransactionType = "loan"
	TransactionTypeRepayment  TransactionType = "repayment"
	TransactionTypeFee        TransactionType = "fee"
)

// Account is a user-owned balance holder. The Number is the externally visible
// 12-digit address used as a transfer destination; ID is internal.
type Account struct {
	ID        string
	Number    string
	OwnerID   string
	Type      AccountType
	Balance   decimal.Decimal
	Status    AccountStatus
	CreatedAt time.Time
}

// Transaction is an immutable, append-only audit record against one account.
type Transaction struct {
	ID          string
	AccountID   string
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	Timestamp   time.Time
}

// Store is the transactional ledger repository. Every mutating method is a
// single atomic unit: all of its writes become visible together or not at all.
// Concurrent mutations of the same account are serialized by the backend
// (row locks in Postgres, a store mutex in memory), so a balance read inside
// a mutation always sees the latest committed value.
type Store interface {
	// CreateAccount inserts the account together with its opening deposit
	// record. A duplicate account number fails with ErrNumberTaken and leaves
	// nothing behind.
	CreateAccount(ctx context.Context, account Account, opening Transaction) (Account, error)

	Account(ctx context.Context, id string) (Account, error)

	// AccountByNumber resolves an open account by its external number. Closed
	// accounts are not addressable.
	AccountByNumber(ctx context.Context, number string) (Account, error)

	AccountsByOwner(ctx context.Context, ownerID string) ([]Account, error)

	// Transfer debits from, credits to, and appends both records in one unit.
	// The source balance is re-checked under lock; ErrInsufficientFunds means
	// nothing was applied. Locks are taken in ascending account-ID order.
	Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, debit, credit Transaction) (Account, Account, error)

	// Deposit credits a single account and appends its record atomically.
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal, record Transaction) (Account, error)

	// Withdraw debits a single account and appends its record atomically,
	// failing with ErrInsufficientFunds if the balance cannot cover it.
	Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, record Transaction) (Account, error)

	// CloseAccount marks the account closed. Fails with ErrNonZeroBalance
	// unless the balance is exactly zero. The transaction history survives.
	CloseAccount(ctx context.Context, id string) error

	// Transactions returns the account's audit trail, newest first.
	Transactions(ctx context.Context, accountID string) ([]Transaction, error)
}
