package hub

import (
	"errors"
	"fmt"

	"otcnet/core/types"
)

var (
	// ErrPercentSplit marks fee splits that do not partition the whole fee.
	ErrPercentSplit = errors.New("hub: burn, chain and warchest percentages must sum to 100")
	// ErrZeroDivisor marks divisor parameters that would divide by zero.
	ErrZeroDivisor = errors.New("hub: divisor parameters must be positive")
)

// Params carries the global economic parameters and collaborator addresses
// every trade operation receives as an explicit snapshot. Nothing in the trade
// core reads these from ambient state.
type Params struct {
	// AdminAddress may register arbitrators and rewrite parameters.
	AdminAddress [20]byte
	// TreasuryAddress receives the warchest share of the trade fee.
	TreasuryAddress [20]byte
	// ChainFeeAddress receives the chain-fee-sharing portion of the fee.
	ChainFeeAddress [20]byte
	// NativeDenom is the protocol denom that fee burns are settled in.
	NativeDenom string
	// FeeDenominator sets the combined fee rate: fee = amount / FeeDenominator.
	FeeDenominator uint64
	// BurnPct, ChainPct and WarchestPct partition the combined fee.
	BurnPct     uint64
	ChainPct    uint64
	WarchestPct uint64
	// ArbitrationFeeDivisor sets the settlement fee: amount / divisor.
	ArbitrationFeeDivisor uint64
	// TradeExpirationSecs is the lifetime of a trade from creation until both
	// the funding window and the funded escrow expire.
	TradeExpirationSecs int64
}

// DefaultParams returns the parameter set the daemon boots with when state is
// empty: a 1% combined fee split 40/30/30 burn/chain/warchest, a 1% arbitration
// fee and a 20 minute trade lifetime.
func DefaultParams() Params {
	return Params{
		NativeDenom:           "uotc",
		FeeDenominator:        100,
		BurnPct:               40,
		ChainPct:              30,
		WarchestPct:           30,
		ArbitrationFeeDivisor: 100,
		TradeExpirationSecs:   1200,
	}
}

// Validate checks the parameter invariants.
func (p Params) Validate() error {
	if p.FeeDenominator == 0 || p.ArbitrationFeeDivisor == 0 {
		return ErrZeroDivisor
	}
	if p.BurnPct+p.ChainPct+p.WarchestPct != 100 {
		return fmt.Errorf("%w: got %d/%d/%d", ErrPercentSplit, p.BurnPct, p.ChainPct, p.WarchestPct)
	}
	if types.NormalizeDenom(p.NativeDenom) == "" {
		return fmt.Errorf("hub: native denom required")
	}
	if p.TradeExpirationSecs <= 0 {
		return fmt.Errorf("hub: trade expiration must be positive")
	}
	return nil
}
