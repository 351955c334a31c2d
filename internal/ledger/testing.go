package ledger

import "github.com/shopspring/decimal"

// SeedBalance overrides an account's balance when the store is the in-memory
// implementation. Test helper only.
func SeedBalance(s Store, accountID string, amount decimal.Decimal) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		account := mem.accounts[accountID]
		account.Balance = amount
		mem.accounts[accountID] = account
	}
}
