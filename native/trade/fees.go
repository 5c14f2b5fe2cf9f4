package trade

import (
	"math/big"

	"otcnet/native/hub"
)

// FeeSplit is the exact partition of a released trade amount. The combined fee
// is carved out of the principal, split by the hub percentages, and any
// rounding remainder of the percentage split is folded back into the buyer
// payout so the four parts always reconstruct the amount exactly.
type FeeSplit struct {
	Payout   *big.Int
	Burn     *big.Int
	Chain    *big.Int
	Warchest *big.Int
}

// Total returns Payout + Burn + Chain + Warchest.
func (s FeeSplit) Total() *big.Int {
	total := new(big.Int).Add(s.Payout, s.Burn)
	total.Add(total, s.Chain)
	return total.Add(total, s.Warchest)
}

var hundred = big.NewInt(100)

// ComputeFeeSplit derives the release distribution for amount under the
// supplied parameters. Integer arithmetic only; the invariant
// Payout + Burn + Chain + Warchest == amount holds for every input.
func ComputeFeeSplit(amount *big.Int, params hub.Params) FeeSplit {
	if amount == nil {
		amount = big.NewInt(0)
	}
	fee := new(big.Int).Div(amount, new(big.Int).SetUint64(params.FeeDenominator))
	pct := func(p uint64) *big.Int {
		part := new(big.Int).Mul(fee, new(big.Int).SetUint64(p))
		return part.Div(part, hundred)
	}
	split := FeeSplit{
		Burn:     pct(params.BurnPct),
		Chain:    pct(params.ChainPct),
		Warchest: pct(params.WarchestPct),
	}
	distributed := new(big.Int).Add(split.Burn, split.Chain)
	distributed.Add(distributed, split.Warchest)
	remainder := new(big.Int).Sub(fee, distributed)
	split.Payout = new(big.Int).Sub(amount, fee)
	split.Payout.Add(split.Payout, remainder)
	return split
}

// ArbitrationFee returns the fixed settlement fee for amount: the principal
// divided by the hub's arbitration fee divisor.
func ArbitrationFee(amount *big.Int, params hub.Params) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Div(amount, new(big.Int).SetUint64(params.ArbitrationFeeDivisor))
}
