package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists accounts and transaction records in PostgreSQL.
// Per-account serialization relies on SELECT ... FOR UPDATE row locks; every
// mutating method runs inside a single database transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id         UUID PRIMARY KEY,
    number     TEXT NOT NULL UNIQUE,
    owner_id   UUID NOT NULL,
    type       TEXT NOT NULL,
    balance    NUMERIC(20,2) NOT NULL CHECK (balance >= 0),
    status     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts (owner_id);

CREATE TABLE IF NOT EXISTS transactions (
    id          UUID PRIMARY KEY,
    account_id  UUID NOT NULL REFERENCES accounts (id),
    type        TEXT NOT NULL,
    amount      NUMERIC(20,2) NOT NULL CHECK (amount > 0),
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions (account_id);
`

// Migrate creates the ledger schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

const accountColumns = `id, number, owner_id, type, balance, status, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Number, &a.OwnerID, &a.Type, &a.Balance, &a.Status, &a.CreatedAt); err != nil {
		return Account{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

// mapError translates driver errors into the store's sentinel errors.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrNumberTaken
		case "40001", "40P01":
			return ErrConflict
		}
	}
	return err
}

// CreateAccount inserts the account row and its opening deposit record in one
// transaction so a crash can never leave an account without its founding entry.
func (s *PostgresStore) CreateAccount(ctx context.Context, account Account, opening Transaction) (Account, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO accounts (id, number, owner_id, type, balance, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		account.ID, account.Number, account.OwnerID, account.Type, account.Balance, account.Status, account.CreatedAt.UTC()); err != nil {
		return Account{}, mapError(err)
	}

	if err := insertTransaction(ctx, tx, opening); err != nil {
		return Account{}, mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, mapError(err)
	}
	return account, nil
}

// Account fetches an account by internal identifier.
func (s *PostgresStore) Account(ctx context.Context, id string) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// AccountByNumber resolves an open account by external number.
func (s *PostgresStore) AccountByNumber(ctx context.Context, number string) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number = $1 AND status <> $2`, number, AccountStatusClosed)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// AccountsByOwner lists the owner's open accounts, oldest first.
func (s *PostgresStore) AccountsByOwner(ctx context.Context, ownerID string) ([]Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts
        WHERE owner_id = $1 AND status <> $2 ORDER BY created_at`, ownerID, AccountStatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

// Transfer applies both balance mutations and both record inserts in one
// transaction. Rows are locked in ascending ID order so two opposite-direction
// transfers over the same pair cannot deadlock.
func (s *PostgresStore) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, debit, credit Transaction) (Account, Account, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Account{}, Account{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	firstID, secondID := fromID, toID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	if _, err := lockAccount(ctx, tx, firstID); err != nil {
		return Account{}, Account{}, translateLockErr(err, firstID == fromID)
	}
	if _, err := lockAccount(ctx, tx, secondID); err != nil {
		return Account{}, Account{}, translateLockErr(err, secondID == fromID)
	}

	var fromBalance decimal.Decimal
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, fromID).Scan(&fromBalance); err != nil {
		return Account{}, Account{}, mapError(err)
	}
	if fromBalance.Cmp(amount) < 0 {
		return Account{}, Account{}, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1 WHERE id = $2`, amount, fromID); err != nil {
		return Account{}, Account{}, mapError(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, amount, toID); err != nil {
		return Account{}, Account{}, mapError(err)
	}

	if err := insertTransaction(ctx, tx, debit); err != nil {
		return Account{}, Account{}, mapError(err)
	}
	if err := insertTransaction(ctx, tx, credit); err != nil {
		return Account{}, Account{}, mapError(err)
	}

	from, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, fromID))
	if err != nil {
		return Account{}, Account{}, mapError(err)
	}
	to, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, toID))
	if err != nil {
		return Account{}, Account{}, mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, Account{}, mapError(err)
	}
	return from, to, nil
}

// Deposit credits the account and appends the record atomically.
func (s *PostgresStore) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, record Transaction) (Account, error) {
	return s.mutate(ctx, accountID, amount, record, false)
}

// Withdraw debits the account and appends the record atomically.
func (s *PostgresStore) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, record Transaction) (Account, error) {
	return s.mutate(ctx, accountID, amount, record, true)
}

func (s *PostgresStore) mutate(ctx context.Context, accountID string, amount decimal.Decimal, record Transaction, debit bool) (Account, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, mapError(err)
	}

	delta := amount
	if debit {
		if balance.Cmp(amount) < 0 {
			return Account{}, ErrInsufficientFunds
		}
		delta = amount.Neg()
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, delta, accountID); err != nil {
		return Account{}, mapError(err)
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return Account{}, mapError(err)
	}

	account, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
	if err != nil {
		return Account{}, mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, mapError(err)
	}
	return account, nil
}

// CloseAccount soft-deletes the account, preserving its audit trail.
func (s *PostgresStore) CloseAccount(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockAccount(ctx, tx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return mapError(err)
	}
	if !balance.IsZero() {
		return ErrNonZeroBalance
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET status = $1 WHERE id = $2`, AccountStatusClosed, id); err != nil {
		return mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// Transactions returns the account's records, newest first.
func (s *PostgresStore) Transactions(ctx context.Context, accountID string) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT id, account_id, type, amount, description, created_at
        FROM transactions WHERE account_id = $1 ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var record Transaction
		if err := rows.Scan(&record.ID, &record.AccountID, &record.Type, &record.Amount, &record.Description, &record.Timestamp); err != nil {
			return nil, err
		}
		record.Timestamp = record.Timestamp.UTC()
		out = append(out, record)
	}
	return out, rows.Err()
}

func lockAccount(ctx context.Context, tx pgx.Tx, id string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
	return balance, err
}

func translateLockErr(err error, isSource bool) error {
	if errors.Is(err, pgx.ErrNoRows) {
		if isSource {
			return ErrNotFound
		}
		return ErrDestinationNotFound
	}
	return mapError(err)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, record Transaction) error {
	_, err := tx.Exec(ctx, `INSERT INTO transactions (id, account_id, type, amount, description, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.AccountID, record.Type, record.Amount, record.Description, record.Timestamp.UTC())
	return err
}
