package trade

import (
	"errors"
	"fmt"
	"math/big"

	"otcnet/native/swap"
)

// Effect is a deferred collaborator call queued by a transition. Effects are
// executed by the host in emission order only after the transition's own state
// write has been recorded; the swap effect is the single one expecting a reply
// continuation.
type Effect interface {
	effect()
}

// NotifyIncentives registers a completed trade with the trading-incentives
// collaborator.
type NotifyIncentives struct {
	TradeID string
}

// NotifyProfileTrade increments the completed-trade counter for an address.
type NotifyProfileTrade struct {
	Address [20]byte
}

// UpdateContact forwards an off-chain contact string to the profile
// collaborator.
type UpdateContact struct {
	Address [20]byte
	Contact string
}

// SwapForBurn asks the swap collaborator to convert the fee's burn share into
// the native denom; the burn itself completes in the reply continuation.
type SwapForBurn struct {
	SwapID    string
	TradeID   string
	FromDenom string
	ToDenom   string
	Amount    *big.Int
	Recipient [20]byte
}

func (NotifyIncentives) effect()   {}
func (NotifyProfileTrade) effect() {}
func (UpdateContact) effect()      {}
func (SwapForBurn) effect()        {}

// ProfileNotifier is the profile collaborator contract.
type ProfileNotifier interface {
	IncrementTradeCount(addr [20]byte) error
	UpdateContact(addr [20]byte, contact string) error
}

// IncentivesNotifier is the trading-incentives collaborator contract.
type IncentivesNotifier interface {
	RegisterTrade(tradeID string) error
}

// dispatcherBank is the slice of bank state the dispatcher needs to hand the
// swap collaborator its source coins.
type dispatcherBank interface {
	Transfer(from, to [20]byte, denom string, amount *big.Int) error
	EscrowVaultAddress(denom string) [20]byte
}

// Dispatcher executes queued effects against the collaborator interfaces.
// Failures propagate: notifications are strict, not best-effort.
type Dispatcher struct {
	bank       dispatcherBank
	profile    ProfileNotifier
	incentives IncentivesNotifier
	router     swap.Router
}

// NewDispatcher wires a dispatcher over the supplied collaborators.
func NewDispatcher(bank dispatcherBank, profile ProfileNotifier, incentives IncentivesNotifier, router swap.Router) *Dispatcher {
	return &Dispatcher{bank: bank, profile: profile, incentives: incentives, router: router}
}

// Dispatch executes the effects in emission order, stopping at the first
// failure.
func (d *Dispatcher) Dispatch(effects []Effect) error {
	for _, eff := range effects {
		if err := d.dispatch(eff); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(eff Effect) error {
	switch e := eff.(type) {
	case NotifyIncentives:
		if d.incentives == nil {
			return &CollaboratorError{Collaborator: "incentives", Err: errStoreNotConfigured}
		}
		if err := d.incentives.RegisterTrade(e.TradeID); err != nil {
			return &CollaboratorError{Collaborator: "incentives", Err: err}
		}
	case NotifyProfileTrade:
		if d.profile == nil {
			return &CollaboratorError{Collaborator: "profile", Err: errStoreNotConfigured}
		}
		if err := d.profile.IncrementTradeCount(e.Address); err != nil {
			return &CollaboratorError{Collaborator: "profile", Err: err}
		}
	case UpdateContact:
		if d.profile == nil {
			return &CollaboratorError{Collaborator: "profile", Err: errStoreNotConfigured}
		}
		if err := d.profile.UpdateContact(e.Address, e.Contact); err != nil {
			return &CollaboratorError{Collaborator: "profile", Err: err}
		}
	case SwapForBurn:
		if d.router == nil || d.bank == nil {
			return &CollaboratorError{Collaborator: "swap", Err: errStoreNotConfigured}
		}
		// The source coins travel with the request: move them from the escrow
		// vault to the collaborator's pool before dispatching.
		vault := d.bank.EscrowVaultAddress(e.FromDenom)
		if err := d.bank.Transfer(vault, swap.PoolAddress(e.FromDenom), e.FromDenom, e.Amount); err != nil {
			return &CollaboratorError{Collaborator: "swap", Err: err}
		}
		req := swap.Request{
			ID:        e.SwapID,
			TradeID:   e.TradeID,
			FromDenom: e.FromDenom,
			ToDenom:   e.ToDenom,
			Amount:    e.Amount,
			Recipient: e.Recipient,
		}
		if err := d.router.Swap(req); err != nil {
			// The reply handler already classifies its own failures.
			var collab *CollaboratorError
			if errors.As(err, &collab) {
				return err
			}
			return &CollaboratorError{Collaborator: "swap", Err: err}
		}
	default:
		return fmt.Errorf("trade: unhandled effect %T", eff)
	}
	return nil
}
