package trade

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// storage abstracts the subset of state manager functionality required by the
// trade store.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	tradeRecordPrefix = []byte("trade/record/")
	tradeSeqKey       = []byte("trade/seq")
	tradeIndexPrefix  = []byte("trade/idx/")
	arbRecordPrefix   = []byte("trade/arb/record/")
	arbCurrencyPrefix = []byte("trade/arb/currency/")
	arbAddressPrefix  = []byte("trade/arb/address/")
	pendingSwapPrefix = []byte("trade/pendingswap/")
)

// Roles under which trades are indexed for listing.
const (
	RoleBuyer      = "buyer"
	RoleSeller     = "seller"
	RoleArbitrator = "arbitrator"
)

var errStoreNotConfigured = errors.New("trade: store not configured")

// Store persists trades, the arbitrator registry and pending swap
// correlations on top of the generic KV state.
type Store struct {
	state storage
}

// NewStore constructs a trade store bound to the supplied state backend.
func NewStore(state storage) *Store {
	return &Store{state: state}
}

type storedTransition struct {
	Actor     [20]byte
	State     uint8
	Timestamp uint64
}

type storedTrade struct {
	ID            string
	Contract      [20]byte
	OfferID       string
	OfferContract [20]byte

	Buyer      [20]byte
	Seller     [20]byte
	Arbitrator [20]byte

	Denom        string
	Amount       *big.Int
	FiatCurrency string

	CreatedAt uint64
	ExpiresAt uint64

	State   uint8
	History []storedTransition

	ArbitratorBuyerContact  string
	ArbitratorSellerContact string
}

func tradeKey(id string) []byte {
	return append(append([]byte(nil), tradeRecordPrefix...), []byte(id)...)
}

func roleIndexKey(role string, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%s/%x", tradeIndexPrefix, role, addr))
}

// NextSequence increments and returns the global trade sequence counter used
// to derive trade ids.
func (s *Store) NextSequence() (uint64, error) {
	if s == nil || s.state == nil {
		return 0, errStoreNotConfigured
	}
	var seq uint64
	if _, err := s.state.KVGet(tradeSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := s.state.KVPut(tradeSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// TradePut sanitizes and stores the supplied trade.
func (s *Store) TradePut(t *Trade) error {
	if s == nil || s.state == nil {
		return errStoreNotConfigured
	}
	sanitized, err := Sanitize(t)
	if err != nil {
		return err
	}
	stored := storedTrade{
		ID:                      sanitized.ID,
		Contract:                sanitized.Contract,
		OfferID:                 sanitized.OfferID,
		OfferContract:           sanitized.OfferContract,
		Buyer:                   sanitized.Buyer,
		Seller:                  sanitized.Seller,
		Arbitrator:              sanitized.Arbitrator,
		Denom:                   sanitized.Denom,
		Amount:                  sanitized.Amount,
		FiatCurrency:            sanitized.FiatCurrency,
		CreatedAt:               uint64(sanitized.CreatedAt),
		ExpiresAt:               uint64(sanitized.ExpiresAt),
		State:                   uint8(sanitized.State),
		ArbitratorBuyerContact:  sanitized.ArbitratorBuyerContact,
		ArbitratorSellerContact: sanitized.ArbitratorSellerContact,
	}
	for _, entry := range sanitized.StateHistory {
		stored.History = append(stored.History, storedTransition{
			Actor:     entry.Actor,
			State:     uint8(entry.State),
			Timestamp: uint64(entry.Timestamp),
		})
	}
	return s.state.KVPut(tradeKey(sanitized.ID), &stored)
}

// TradeGet loads a trade by id.
func (s *Store) TradeGet(id string) (*Trade, bool, error) {
	if s == nil || s.state == nil {
		return nil, false, errStoreNotConfigured
	}
	var stored storedTrade
	ok, err := s.state.KVGet(tradeKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	t := &Trade{
		ID:                      stored.ID,
		Contract:                stored.Contract,
		OfferID:                 stored.OfferID,
		OfferContract:           stored.OfferContract,
		Buyer:                   stored.Buyer,
		Seller:                  stored.Seller,
		Arbitrator:              stored.Arbitrator,
		Denom:                   stored.Denom,
		Amount:                  stored.Amount,
		FiatCurrency:            stored.FiatCurrency,
		CreatedAt:               int64(stored.CreatedAt),
		ExpiresAt:               int64(stored.ExpiresAt),
		State:                   State(stored.State),
		ArbitratorBuyerContact:  stored.ArbitratorBuyerContact,
		ArbitratorSellerContact: stored.ArbitratorSellerContact,
	}
	for _, entry := range stored.History {
		t.StateHistory = append(t.StateHistory, StateTransition{
			Actor:     entry.Actor,
			State:     State(entry.State),
			Timestamp: int64(entry.Timestamp),
		})
	}
	return t, true, nil
}

// TradeIndex records the trade id under the supplied role for an address.
func (s *Store) TradeIndex(role string, addr [20]byte, tradeID string) error {
	if s == nil || s.state == nil {
		return errStoreNotConfigured
	}
	return s.state.KVAppend(roleIndexKey(role, addr), []byte(tradeID))
}

// TradesByRole lists the trade ids recorded for an address under a role, in
// insertion order.
func (s *Store) TradesByRole(role string, addr [20]byte) ([]string, error) {
	if s == nil || s.state == nil {
		return nil, errStoreNotConfigured
	}
	var raw [][]byte
	if err := s.state.KVGetList(roleIndexKey(role, addr), &raw); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, string(id))
	}
	return ids, nil
}

// --- Arbitrator registry ---

type storedArbitrator struct {
	Address      [20]byte
	FiatCurrency string
}

func normalizeFiat(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func arbitratorKey(addr [20]byte, currency string) []byte {
	return []byte(fmt.Sprintf("%s%s/%x", arbRecordPrefix, normalizeFiat(currency), addr))
}

func arbitratorCurrencyIndexKey(currency string) []byte {
	return append(append([]byte(nil), arbCurrencyPrefix...), []byte(normalizeFiat(currency))...)
}

func arbitratorAddressIndexKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", arbAddressPrefix, addr))
}

// ArbitratorPut registers an arbitrator for a fiat currency.
func (s *Store) ArbitratorPut(arb Arbitrator) error {
	if s == nil || s.state == nil {
		return errStoreNotConfigured
	}
	currency := normalizeFiat(arb.FiatCurrency)
	if currency == "" {
		return fmt.Errorf("trade: arbitrator fiat currency required")
	}
	stored := storedArbitrator{Address: arb.Address, FiatCurrency: currency}
	if err := s.state.KVPut(arbitratorKey(arb.Address, currency), &stored); err != nil {
		return err
	}
	if err := s.state.KVAppend(arbitratorCurrencyIndexKey(currency), arb.Address[:]); err != nil {
		return err
	}
	return s.state.KVAppend(arbitratorAddressIndexKey(arb.Address), []byte(currency))
}

// ArbitratorRemove deletes the registration for an address and currency.
func (s *Store) ArbitratorRemove(addr [20]byte, currency string) error {
	if s == nil || s.state == nil {
		return errStoreNotConfigured
	}
	normalized := normalizeFiat(currency)
	var stored storedArbitrator
	ok, err := s.state.KVGet(arbitratorKey(addr, normalized), &stored)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: arbitrator %x for %s", ErrNotFound, addr, normalized)
	}
	// Tombstone the record and rewrite both indexes without the entry.
	if err := s.state.KVPut(arbitratorKey(addr, normalized), &storedArbitrator{}); err != nil {
		return err
	}
	var addrs [][]byte
	if err := s.state.KVGetList(arbitratorCurrencyIndexKey(normalized), &addrs); err != nil {
		return err
	}
	filtered := make([][]byte, 0, len(addrs))
	for _, entry := range addrs {
		if !bytes.Equal(entry, addr[:]) {
			filtered = append(filtered, entry)
		}
	}
	if err := s.state.KVPut(arbitratorCurrencyIndexKey(normalized), filtered); err != nil {
		return err
	}
	var currencies [][]byte
	if err := s.state.KVGetList(arbitratorAddressIndexKey(addr), &currencies); err != nil {
		return err
	}
	remaining := make([][]byte, 0, len(currencies))
	for _, entry := range currencies {
		if string(entry) != normalized {
			remaining = append(remaining, entry)
		}
	}
	return s.state.KVPut(arbitratorAddressIndexKey(addr), remaining)
}

// ArbitratorsByFiat lists the arbitrators serving a currency, sorted by
// address so the selection draw maps onto a stable order.
func (s *Store) ArbitratorsByFiat(currency string) ([]Arbitrator, error) {
	if s == nil || s.state == nil {
		return nil, errStoreNotConfigured
	}
	normalized := normalizeFiat(currency)
	var addrs [][]byte
	if err := s.state.KVGetList(arbitratorCurrencyIndexKey(normalized), &addrs); err != nil {
		return nil, err
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i], addrs[j]) < 0 })
	arbitrators := make([]Arbitrator, 0, len(addrs))
	for _, raw := range addrs {
		if len(raw) != 20 {
			continue
		}
		var addr [20]byte
		copy(addr[:], raw)
		var stored storedArbitrator
		ok, err := s.state.KVGet(arbitratorKey(addr, normalized), &stored)
		if err != nil {
			return nil, err
		}
		if !ok || stored.FiatCurrency == "" {
			continue
		}
		arbitrators = append(arbitrators, Arbitrator{Address: stored.Address, FiatCurrency: stored.FiatCurrency})
	}
	return arbitrators, nil
}

// ArbitratorCurrencies lists the currencies an address is registered for.
func (s *Store) ArbitratorCurrencies(addr [20]byte) ([]string, error) {
	if s == nil || s.state == nil {
		return nil, errStoreNotConfigured
	}
	var raw [][]byte
	if err := s.state.KVGetList(arbitratorAddressIndexKey(addr), &raw); err != nil {
		return nil, err
	}
	currencies := make([]string, 0, len(raw))
	for _, entry := range raw {
		currencies = append(currencies, string(entry))
	}
	sort.Strings(currencies)
	return currencies, nil
}

// --- Pending swap correlations ---

func pendingSwapKey(swapID string) []byte {
	return append(append([]byte(nil), pendingSwapPrefix...), []byte(swapID)...)
}

// PendingSwapPut records the trade awaiting the reply for a swap request.
func (s *Store) PendingSwapPut(swapID, tradeID string) error {
	if s == nil || s.state == nil {
		return errStoreNotConfigured
	}
	return s.state.KVPut(pendingSwapKey(swapID), tradeID)
}

// PendingSwapGet resolves the trade correlated with a swap request id.
func (s *Store) PendingSwapGet(swapID string) (string, bool, error) {
	if s == nil || s.state == nil {
		return "", false, errStoreNotConfigured
	}
	var tradeID string
	ok, err := s.state.KVGet(pendingSwapKey(swapID), &tradeID)
	return tradeID, ok, err
}

// PendingSwapClear removes a consumed correlation.
func (s *Store) PendingSwapClear(swapID string) error {
	if s == nil || s.state == nil {
		return errStoreNotConfigured
	}
	return s.state.KVPut(pendingSwapKey(swapID), "")
}
