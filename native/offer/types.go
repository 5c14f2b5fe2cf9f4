package offer

import (
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"otcnet/core/types"
)

// Type distinguishes the polarity of an offer from the maker's perspective: a
// Buy offer means the maker wants to buy crypto for fiat, a Sell offer means
// the maker sells crypto for fiat.
type Type uint8

const (
	TypeBuy Type = iota
	TypeSell
)

// Valid reports whether the offer type value is supported.
func (t Type) Valid() bool {
	switch t {
	case TypeBuy, TypeSell:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case TypeBuy:
		return "buy"
	case TypeSell:
		return "sell"
	default:
		return fmt.Sprintf("offer.Type(%d)", uint8(t))
	}
}

// ParseType converts an offer type label into its enum value.
func ParseType(label string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "buy":
		return TypeBuy, nil
	case "sell":
		return TypeSell, nil
	default:
		return 0, fmt.Errorf("offer: unknown type %q", label)
	}
}

// Offer is an exchange listing trades are opened against. The trade core only
// reads offers; posting and indexing them belongs to the offer collaborator.
type Offer struct {
	ID           string
	Owner        [20]byte
	Type         Type
	MinAmount    *big.Int
	MaxAmount    *big.Int
	Denom        string
	FiatCurrency string
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.MinAmount != nil {
		clone.MinAmount = new(big.Int).Set(o.MinAmount)
	} else {
		clone.MinAmount = big.NewInt(0)
	}
	if o.MaxAmount != nil {
		clone.MaxAmount = new(big.Int).Set(o.MaxAmount)
	} else {
		clone.MaxAmount = big.NewInt(0)
	}
	return &clone
}

// Sanitize validates and normalises the supplied offer, returning a cloned
// instance with canonical denom and currency casing. The function does not
// mutate the original value.
func Sanitize(o *Offer) (*Offer, error) {
	if o == nil {
		return nil, fmt.Errorf("offer: nil offer")
	}
	clone := o.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if clone.ID == "" {
		return nil, fmt.Errorf("offer: id required")
	}
	if !clone.Type.Valid() {
		return nil, fmt.Errorf("offer: invalid type %d", clone.Type)
	}
	clone.Denom = types.NormalizeDenom(clone.Denom)
	if clone.Denom == "" {
		return nil, fmt.Errorf("offer: denom required")
	}
	clone.FiatCurrency = strings.ToUpper(strings.TrimSpace(clone.FiatCurrency))
	if clone.FiatCurrency == "" {
		return nil, fmt.Errorf("offer: fiat currency required")
	}
	if clone.MinAmount.Sign() <= 0 {
		return nil, fmt.Errorf("offer: min amount must be positive")
	}
	if clone.MaxAmount.Cmp(clone.MinAmount) < 0 {
		return nil, fmt.Errorf("offer: max amount %s below min amount %s", clone.MaxAmount, clone.MinAmount)
	}
	return clone, nil
}

// ModuleAddress is the offer book's own account, recorded on each trade as the
// provenance of the offer it was opened against.
func ModuleAddress() [20]byte {
	digest := ethcrypto.Keccak256([]byte("otcnet/offer/module"))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}
