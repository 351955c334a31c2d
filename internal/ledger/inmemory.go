package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type memoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
	byNumber map[string]string
	history  map[string][]Transaction
}

// NewInMemory creates a concurrency-safe in-memory store. The single mutex
// gives the same serialization guarantee the Postgres backend gets from row
// locks, which makes it a faithful double for unit tests.
func NewInMemory() Store {
	return &memoryStore{
		accounts: make(map[string]Account),
		byNumber: make(map[string]string),
		history:  make(map[string][]Transaction),
	}
}

func (s *memoryStore) CreateAccount(_ context.Context, account Account, opening Transaction) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNumber[account.Number]; exists {
		return Account{}, ErrNumberTaken
	}

	s.accounts[account.ID] = account
	s.byNumber[account.Number] = account.ID
	s.history[account.ID] = append(s.history[account.ID], opening)
	return account, nil
}

func (s *memoryStore) Account(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (s *memoryStore) AccountByNumber(_ context.Context, number string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return Account{}, ErrNotFound
	}
	account := s.accounts[id]
	if account.Status == AccountStatusClosed {
		return Account{}, ErrNotFound
	}
	return account, nil
}

func (s *memoryStore) AccountsByOwner(_ context.Context, ownerID string) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Account
	for _, account := range s.accounts {
		if account.OwnerID == ownerID && account.Status != AccountStatusClosed {
			out = append(out, account)
		}
	}
	return out, nil
}

func (s *memoryStore) Transfer(_ context.Context, fromID, toID string, amount decimal.Decimal, debit, credit Transaction) (Account, Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.accounts[fromID]
	if !ok {
		return Account{}, Account{}, ErrNotFound
	}
	to, ok := s.accounts[toID]
	if !ok {
		return Account{}, Account{}, ErrDestinationNotFound
	}

	if from.Balance.Cmp(amount) < 0 {
		return Account{}, Account{}, ErrInsufficientFunds
	}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	s.accounts[fromID] = from
	s.accounts[toID] = to
	s.history[fromID] = append(s.history[fromID], debit)
	s.history[toID] = append(s.history[toID], credit)

	return from, to, nil
}

func (s *memoryStore) Deposit(_ context.Context, accountID string, amount decimal.Decimal, record Transaction) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return Account{}, ErrNotFound
	}
	account.Balance = account.Balance.Add(amount)
	s.accounts[accountID] = account
	s.history[accountID] = append(s.history[accountID], record)
	return account, nil
}

func (s *memoryStore) Withdraw(_ context.Context, accountID string, amount decimal.Decimal, record Transaction) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return Account{}, ErrNotFound
	}
	if account.Balance.Cmp(amount) < 0 {
		return Account{}, ErrInsufficientFunds
	}
	account.Balance = account.Balance.Sub(amount)
	s.accounts[accountID] = account
	s.history[accountID] = append(s.history[accountID], record)
	return account, nil
}

func (s *memoryStore) CloseAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if !account.Balance.IsZero() {
		return ErrNonZeroBalance
	}
	account.Status = AccountStatusClosed
	s.accounts[id] = account
	return nil
}

func (s *memoryStore) Transactions(_ context.Context, accountID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, ErrNotFound
	}
	records := s.history[accountID]
	out := make([]Transaction, len(records))
	for i, record := range records {
		out[len(records)-1-i] = record
	}
	return out, nil
}
