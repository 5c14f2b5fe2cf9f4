package trade

import (
	"encoding/hex"
	"strconv"

	"otcnet/core/types"
)

const (
	EventTypeTradeCreated       = "trade.created"
	EventTypeTradeAccepted      = "trade.accepted"
	EventTypeTradeFunded        = "trade.funded"
	EventTypeTradeFiatDeposited = "trade.fiat_deposited"
	EventTypeTradeCanceled      = "trade.canceled"
	EventTypeTradeExpired       = "trade.expired"
	EventTypeTradeReleased      = "trade.released"
	EventTypeTradeRefunded      = "trade.refunded"
	EventTypeTradeDisputed      = "trade.disputed"
	EventTypeTradeSettled       = "trade.settled"
	EventTypeBurnCompleted      = "trade.burn_completed"
)

type tradeEvent struct {
	evt *types.Event
}

func (e tradeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tradeEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent returns the canonical payload for a newly created trade.
func NewCreatedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeCreated, t) }

// NewAcceptedEvent returns the payload emitted when the buyer accepts a
// request.
func NewAcceptedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeAccepted, t) }

// NewFundedEvent returns the payload emitted once the escrow holds the trade
// amount.
func NewFundedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeFunded, t) }

// NewFiatDepositedEvent returns the payload emitted when the buyer attests the
// fiat payment.
func NewFiatDepositedEvent(t *Trade) *types.Event {
	return newTradeEvent(EventTypeTradeFiatDeposited, t)
}

// NewCanceledEvent returns the payload for a canceled request.
func NewCanceledEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeCanceled, t) }

// NewExpiredEvent returns the payload for an expired request.
func NewExpiredEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeExpired, t) }

// NewReleasedEvent returns the payload for a released escrow including the
// exact fee partition.
func NewReleasedEvent(t *Trade, split FeeSplit) *types.Event {
	evt := newTradeEvent(EventTypeTradeReleased, t)
	evt.Attributes["payout"] = split.Payout.String()
	evt.Attributes["burn"] = split.Burn.String()
	evt.Attributes["chain"] = split.Chain.String()
	evt.Attributes["warchest"] = split.Warchest.String()
	return evt
}

// NewRefundedEvent returns the payload for a refunded escrow.
func NewRefundedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeRefunded, t) }

// NewDisputedEvent returns the payload emitted when a trade enters dispute.
func NewDisputedEvent(t *Trade) *types.Event { return newTradeEvent(EventTypeTradeDisputed, t) }

// NewSettledEvent returns the payload for an arbitrator settlement.
func NewSettledEvent(t *Trade, winner [20]byte) *types.Event {
	evt := newTradeEvent(EventTypeTradeSettled, t)
	evt.Attributes["winner"] = hex.EncodeToString(winner[:])
	return evt
}

// NewBurnCompletedEvent returns the payload emitted when the deferred burn of
// a swap reply finishes.
func NewBurnCompletedEvent(tradeID, denom, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeBurnCompleted,
		Attributes: map[string]string{
			"tradeId": tradeID,
			"denom":   denom,
			"amount":  amount,
		},
	}
}

func newTradeEvent(eventType string, t *Trade) *types.Event {
	attrs := make(map[string]string)
	if t == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["tradeId"] = t.ID
	attrs["offerId"] = t.OfferID
	attrs["buyer"] = hex.EncodeToString(t.Buyer[:])
	attrs["seller"] = hex.EncodeToString(t.Seller[:])
	attrs["arbitrator"] = hex.EncodeToString(t.Arbitrator[:])
	attrs["denom"] = t.Denom
	if t.Amount != nil {
		attrs["amount"] = t.Amount.String()
	}
	attrs["fiatCurrency"] = t.FiatCurrency
	attrs["createdAt"] = strconv.FormatInt(t.CreatedAt, 10)
	attrs["expiresAt"] = strconv.FormatInt(t.ExpiresAt, 10)
	attrs["state"] = t.State.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}
