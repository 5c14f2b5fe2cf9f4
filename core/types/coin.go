package types

import (
	"fmt"
	"math/big"
	"strings"
)

// Coin pairs a denom with an integer amount in the asset's minor unit. All
// monetary arithmetic in the node happens on big.Int values; floating point is
// never used.
type Coin struct {
	Denom  string
	Amount *big.Int
}

// NewCoin constructs a coin with a defensive copy of the amount.
func NewCoin(denom string, amount *big.Int) Coin {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return Coin{Denom: NormalizeDenom(denom), Amount: new(big.Int).Set(amount)}
}

// NormalizeDenom canonicalises denom identifiers for consistent lookups.
func NormalizeDenom(denom string) string {
	return strings.ToLower(strings.TrimSpace(denom))
}

// Validate reports whether the coin carries a denom and a non-negative amount.
func (c Coin) Validate() error {
	if strings.TrimSpace(c.Denom) == "" {
		return fmt.Errorf("coin: denom required")
	}
	if c.Amount == nil || c.Amount.Sign() < 0 {
		return fmt.Errorf("coin: amount must be non-negative")
	}
	return nil
}

func (c Coin) String() string {
	amount := "0"
	if c.Amount != nil {
		amount = c.Amount.String()
	}
	return amount + c.Denom
}
