package swap

import (
	"encoding/hex"
	"math/big"

	"otcnet/core/types"
)

const (
	// EventTypeReceived is emitted by the swap collaborator when proceeds are
	// credited to a recipient.
	EventTypeReceived = "swap.received"

	attrRecipient = "recipient"
	attrDenom     = "denom"
	attrAmount    = "amount"
)

// NewReceivedEvent returns the canonical payload naming the recipient and the
// quantity it was credited.
func NewReceivedEvent(recipient [20]byte, denom string, amount *big.Int) types.Event {
	value := "0"
	if amount != nil {
		value = amount.String()
	}
	return types.Event{
		Type: EventTypeReceived,
		Attributes: map[string]string{
			attrRecipient: hex.EncodeToString(recipient[:]),
			attrDenom:     types.NormalizeDenom(denom),
			attrAmount:    value,
		},
	}
}

// ReceivedAmount scans swap result events for the quantity of denom credited
// to recipient. When no matching event is present, or the amount does not
// parse, the result defaults to zero. A zero return is therefore
// indistinguishable from a swap that paid the recipient nothing; callers that
// need to tell these apart must inspect the events themselves.
func ReceivedAmount(events []types.Event, recipient [20]byte, denom string) *big.Int {
	want := hex.EncodeToString(recipient[:])
	normalized := types.NormalizeDenom(denom)
	total := big.NewInt(0)
	for _, evt := range events {
		if evt.Type != EventTypeReceived {
			continue
		}
		if evt.Attributes[attrRecipient] != want {
			continue
		}
		if evt.Attributes[attrDenom] != normalized {
			continue
		}
		amount, ok := new(big.Int).SetString(evt.Attributes[attrAmount], 10)
		if !ok || amount.Sign() < 0 {
			continue
		}
		total.Add(total, amount)
	}
	return total
}
