package swap

import (
	"fmt"
	"math/big"

	"otcnet/core/types"
)

// Request asks the swap collaborator to convert an amount of one denom into
// the target denom and credit the proceeds to Recipient. ID correlates the
// asynchronous reply with the requesting trade.
type Request struct {
	ID        string
	TradeID   string
	FromDenom string
	ToDenom   string
	Amount    *big.Int
	Recipient [20]byte
}

// Validate reports whether the request is well formed.
func (r Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("swap: request id required")
	}
	if types.NormalizeDenom(r.FromDenom) == "" || types.NormalizeDenom(r.ToDenom) == "" {
		return fmt.Errorf("swap: denoms required")
	}
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return fmt.Errorf("swap: amount must be positive")
	}
	return nil
}

// Result is the reply continuation payload: the outcome of a previously
// requested swap. Err is set when the swap failed; Events carry the emitted
// attributes the requester parses for the received quantity.
type Result struct {
	RequestID string
	Err       error
	Events    []types.Event
}

// ReplyHandler consumes swap results. The node implements this to resume the
// burn step of a release.
type ReplyHandler interface {
	HandleSwapReply(result Result) error
}

// Router dispatches swap requests. Replies arrive asynchronously through the
// configured ReplyHandler after the requesting invocation has committed.
type Router interface {
	Swap(req Request) error
	SetReplyHandler(handler ReplyHandler)
}
