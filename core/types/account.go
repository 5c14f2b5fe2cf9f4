package types

import "math/big"

// Account holds the spendable balances for an address, keyed by denom.
type Account struct {
	Balances map[string]*big.Int
}

// NewAccount returns an account with an initialised balance table.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// Balance returns the balance for the supplied denom, zero when absent. The
// returned value is the stored instance; callers must not mutate it directly.
func (a *Account) Balance(denom string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	bal, ok := a.Balances[denom]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return bal
}

// SetBalance stores the balance for a denom, initialising the table if needed.
func (a *Account) SetBalance(denom string, amount *big.Int) {
	if a == nil {
		return
	}
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[denom] = new(big.Int).Set(amount)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	clone := NewAccount()
	if a == nil || a.Balances == nil {
		return clone
	}
	for denom, bal := range a.Balances {
		if bal != nil {
			clone.Balances[denom] = new(big.Int).Set(bal)
		}
	}
	return clone
}
