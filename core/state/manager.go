package state

import (
	"bytes"
	"errors"
	"math/big"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"otcnet/core/types"
	"otcnet/storage"
)

var (
	errEmptyKey             = errors.New("state: key must not be empty")
	errInsufficientBalance  = errors.New("state: insufficient balance")
	errNegativeAmount       = errors.New("state: negative amount")
	errInsufficientEscrowed = errors.New("state: insufficient escrowed balance")
)

var (
	accountPrefix = []byte("account/")
	escrowPrefix  = []byte("escrow/balance/")
	burnedPrefix  = []byte("supply/burned/")
)

// Manager persists node state as RLP-encoded records in a key-value database.
// It owns account balances, per-trade escrow credits and the burn ledger, and
// exposes generic KV helpers for the native modules.
type Manager struct {
	db storage.Database
}

// NewManager constructs a state manager over the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedBalance struct {
	Denom  string
	Amount *big.Int
}

type storedAccount struct {
	Balances []storedBalance
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

// GetAccount loads the account for the supplied address. A missing account is
// returned as an empty one rather than an error.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	account := types.NewAccount()
	if !ok {
		return account, nil
	}
	for _, bal := range stored.Balances {
		account.SetBalance(bal.Denom, bal.Amount)
	}
	return account, nil
}

// PutAccount stores the account under the supplied address. Balances are
// persisted in sorted denom order so encodings stay deterministic.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	stored := storedAccount{}
	if account != nil {
		denoms := make([]string, 0, len(account.Balances))
		for denom := range account.Balances {
			denoms = append(denoms, denom)
		}
		sort.Strings(denoms)
		for _, denom := range denoms {
			amount := account.Balance(denom)
			if amount.Sign() == 0 {
				continue
			}
			stored.Balances = append(stored.Balances, storedBalance{Denom: denom, Amount: new(big.Int).Set(amount)})
		}
	}
	return m.KVPut(accountKey(addr), &stored)
}

// Transfer moves amount of denom between two accounts.
func (m *Manager) Transfer(from, to [20]byte, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errNegativeAmount
	}
	normalized := types.NormalizeDenom(denom)
	fromAcc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance(normalized).Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	toAcc, err := m.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.SetBalance(normalized, new(big.Int).Sub(fromAcc.Balance(normalized), amount))
	toAcc.SetBalance(normalized, new(big.Int).Add(toAcc.Balance(normalized), amount))
	if err := m.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return m.PutAccount(to, toAcc)
}

// Burn removes amount of denom from the supplied account and records it on the
// cumulative burn ledger.
func (m *Manager) Burn(from [20]byte, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errNegativeAmount
	}
	normalized := types.NormalizeDenom(denom)
	acc, err := m.GetAccount(from)
	if err != nil {
		return err
	}
	if acc.Balance(normalized).Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	acc.SetBalance(normalized, new(big.Int).Sub(acc.Balance(normalized), amount))
	if err := m.PutAccount(from, acc); err != nil {
		return err
	}
	total, err := m.BurnedTotal(normalized)
	if err != nil {
		return err
	}
	key := append(append([]byte(nil), burnedPrefix...), []byte(normalized)...)
	return m.KVPut(key, new(big.Int).Add(total, amount))
}

// BurnedTotal returns the cumulative amount of denom removed from circulation.
func (m *Manager) BurnedTotal(denom string) (*big.Int, error) {
	key := append(append([]byte(nil), burnedPrefix...), []byte(types.NormalizeDenom(denom))...)
	total := new(big.Int)
	ok, err := m.KVGet(key, total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

// EscrowVaultAddress derives the module-controlled vault address holding
// escrowed funds for a denom. The derivation is deterministic so every node
// observes the same vault accounts.
func (m *Manager) EscrowVaultAddress(denom string) [20]byte {
	digest := ethcrypto.Keccak256([]byte("otcnet/vault/"), []byte(types.NormalizeDenom(denom)))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

func escrowKey(tradeID, denom string) []byte {
	key := append(append([]byte(nil), escrowPrefix...), []byte(tradeID)...)
	key = append(key, '/')
	return append(key, []byte(types.NormalizeDenom(denom))...)
}

// EscrowCredit records amount of denom as locked under the supplied trade.
func (m *Manager) EscrowCredit(tradeID, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	balance, err := m.EscrowBalance(tradeID, denom)
	if err != nil {
		return err
	}
	return m.KVPut(escrowKey(tradeID, denom), new(big.Int).Add(balance, amount))
}

// EscrowDebit releases amount of denom previously locked under the trade.
func (m *Manager) EscrowDebit(tradeID, denom string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	balance, err := m.EscrowBalance(tradeID, denom)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return errInsufficientEscrowed
	}
	return m.KVPut(escrowKey(tradeID, denom), new(big.Int).Sub(balance, amount))
}

// EscrowBalance returns the amount of denom locked under the trade.
func (m *Manager) EscrowBalance(tradeID, denom string) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.KVGet(escrowKey(tradeID, denom), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, errEmptyKey
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep indexes
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	var list [][]byte
	if err := m.KVGetList(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination. When no value is present the
// destination is left as an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
