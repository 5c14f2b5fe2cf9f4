package profile

import (
	"errors"
	"fmt"
	"strings"
)

// storage abstracts the subset of state manager functionality required by the
// profile ledger.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var profilePrefix = []byte("profile/")

var (
	// ErrLedgerNotConfigured marks ledgers used before a store was attached.
	ErrLedgerNotConfigured = errors.New("profile: ledger not initialised")
)

// Profile aggregates the per-address trading bookkeeping: how many trades the
// address completed and the off-chain contact string counterparties use to
// reach it.
type Profile struct {
	Address    [20]byte
	TradeCount uint64
	Contact    string
}

// Ledger persists profiles keyed by address.
type Ledger struct {
	store storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store storage) *Ledger {
	return &Ledger{store: store}
}

type storedProfile struct {
	TradeCount uint64
	Contact    string
}

func profileKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", profilePrefix, addr))
}

// Get returns the profile for an address. Unknown addresses yield an empty
// profile rather than an error.
func (l *Ledger) Get(addr [20]byte) (*Profile, error) {
	if l == nil || l.store == nil {
		return nil, ErrLedgerNotConfigured
	}
	var stored storedProfile
	if _, err := l.store.KVGet(profileKey(addr), &stored); err != nil {
		return nil, err
	}
	return &Profile{Address: addr, TradeCount: stored.TradeCount, Contact: stored.Contact}, nil
}

// IncrementTradeCount bumps the completed-trade counter for an address.
func (l *Ledger) IncrementTradeCount(addr [20]byte) error {
	if l == nil || l.store == nil {
		return ErrLedgerNotConfigured
	}
	var stored storedProfile
	if _, err := l.store.KVGet(profileKey(addr), &stored); err != nil {
		return err
	}
	stored.TradeCount++
	return l.store.KVPut(profileKey(addr), &stored)
}

// UpdateContact stores the off-chain contact string for an address. Blank
// updates are ignored so a funding call without contact never clears one set
// during acceptance.
func (l *Ledger) UpdateContact(addr [20]byte, contact string) error {
	if l == nil || l.store == nil {
		return ErrLedgerNotConfigured
	}
	trimmed := strings.TrimSpace(contact)
	if trimmed == "" {
		return nil
	}
	var stored storedProfile
	if _, err := l.store.KVGet(profileKey(addr), &stored); err != nil {
		return err
	}
	stored.Contact = trimmed
	return l.store.KVPut(profileKey(addr), &stored)
}
