package trade

import (
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"otcnet/core/types"
)

// State enumerates the lifecycle states of a trade. RequestCreated is the
// unique initial state; RequestCanceled, RequestExpired, EscrowRefunded,
// EscrowReleased, SettledForMaker and SettledForTaker are terminal.
type State uint8

const (
	StateRequestCreated State = iota
	StateRequestAccepted
	StateEscrowFunded
	StateFiatDeposited
	StateEscrowReleased
	StateRequestCanceled
	StateRequestExpired
	StateEscrowRefunded
	StateEscrowDisputed
	StateSettledForMaker
	StateSettledForTaker
)

// Valid reports whether the state value is within the supported range.
func (s State) Valid() bool {
	return s <= StateSettledForTaker
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateRequestCanceled, StateRequestExpired, StateEscrowRefunded,
		StateEscrowReleased, StateSettledForMaker, StateSettledForTaker:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	switch s {
	case StateRequestCreated:
		return "request_created"
	case StateRequestAccepted:
		return "request_accepted"
	case StateEscrowFunded:
		return "escrow_funded"
	case StateFiatDeposited:
		return "fiat_deposited"
	case StateEscrowReleased:
		return "escrow_released"
	case StateRequestCanceled:
		return "request_canceled"
	case StateRequestExpired:
		return "request_expired"
	case StateEscrowRefunded:
		return "escrow_refunded"
	case StateEscrowDisputed:
		return "escrow_disputed"
	case StateSettledForMaker:
		return "settled_for_maker"
	case StateSettledForTaker:
		return "settled_for_taker"
	default:
		return fmt.Sprintf("trade.State(%d)", uint8(s))
	}
}

// StateTransition is one entry of the append-only audit trail.
type StateTransition struct {
	Actor     [20]byte
	State     State
	Timestamp int64
}

// Trade is the central aggregate, one record per trade id. State and
// StateHistory only move together through advance, so the last history entry
// always matches the current state.
type Trade struct {
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

	CreatedAt int64
	ExpiresAt int64

	State        State
	StateHistory []StateTransition

	ArbitratorBuyerContact  string
	ArbitratorSellerContact string
}

// advance is the only mutation path for State: it records the transition on
// the audit trail atomically with the state change.
func (t *Trade) advance(actor [20]byte, state State, now int64) {
	t.State = state
	t.StateHistory = append(t.StateHistory, StateTransition{Actor: actor, State: state, Timestamp: now})
}

// Clone returns a deep copy of the trade so callers can safely mutate the copy
// without affecting the stored instance.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Amount != nil {
		clone.Amount = new(big.Int).Set(t.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	clone.StateHistory = append([]StateTransition(nil), t.StateHistory...)
	return &clone
}

// Sanitize validates and normalises the supplied trade, returning a cloned
// instance with canonical denom casing and a non-nil amount. The function does
// not mutate the original value.
func Sanitize(t *Trade) (*Trade, error) {
	if t == nil {
		return nil, fmt.Errorf("trade: nil trade")
	}
	clone := t.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if clone.ID == "" {
		return nil, fmt.Errorf("trade: id required")
	}
	clone.Denom = types.NormalizeDenom(clone.Denom)
	if clone.Denom == "" {
		return nil, fmt.Errorf("trade: denom required")
	}
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("trade: amount must be non-negative")
	}
	if !clone.State.Valid() {
		return nil, fmt.Errorf("trade: invalid state %d", clone.State)
	}
	if n := len(clone.StateHistory); n == 0 {
		return nil, fmt.Errorf("trade: empty state history")
	} else if clone.StateHistory[n-1].State != clone.State {
		return nil, fmt.Errorf("trade: state history tail %s does not match state %s", clone.StateHistory[n-1].State, clone.State)
	}
	return clone, nil
}

// Arbitrator is a pre-registered neutral address eligible to resolve disputes
// for a given fiat currency. The pairing forms the composite registry key;
// one arbitrator address may serve several currencies.
type Arbitrator struct {
	Address      [20]byte
	FiatCurrency string
}

// ModuleAddress is the trade module's own account. Swap proceeds destined for
// burning are credited here before the burn executes.
func ModuleAddress() [20]byte {
	digest := ethcrypto.Keccak256([]byte("otcnet/trade/module"))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}
