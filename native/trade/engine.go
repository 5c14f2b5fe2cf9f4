package trade

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"otcnet/core/events"
	"otcnet/core/types"
	"otcnet/native/common"
	"otcnet/native/hub"
	"otcnet/native/offer"
	"otcnet/native/swap"
)

const tradeModuleName = "trade"

var (
	errNilStore      = errors.New("trade engine: store not configured")
	errNilBank       = errors.New("trade engine: bank not configured")
	errNilOffers     = errors.New("trade engine: offer source not configured")
	errNilParams     = errors.New("trade engine: params source not configured")
	errUnknownReply  = errors.New("trade engine: swap reply without pending request")
	errUnknownRole   = errors.New("trade engine: unknown role")
)

// Bank is the slice of state the engine moves funds through. Transfers and
// burns commit atomically with the trade write under the host's serialization.
type Bank interface {
	Transfer(from, to [20]byte, denom string, amount *big.Int) error
	Burn(from [20]byte, denom string, amount *big.Int) error
	EscrowVaultAddress(denom string) [20]byte
	EscrowCredit(tradeID, denom string, amount *big.Int) error
	EscrowDebit(tradeID, denom string, amount *big.Int) error
	EscrowBalance(tradeID, denom string) (*big.Int, error)
}

// OfferSource resolves offers by id. Read-only.
type OfferSource interface {
	Get(id string) (*offer.Offer, error)
}

// ParamsSource supplies the hub parameter snapshot an operation runs under.
type ParamsSource interface {
	Params() (hub.Params, error)
}

// Engine owns the trade state machine: it validates every transition against
// caller identity and current state, computes release and settlement amounts,
// and queues the deferred collaborator calls each transition produces.
type Engine struct {
	store   *Store
	bank    Bank
	offers  OfferSource
	params  ParamsSource
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
	swapID  func() string
}

// NewEngine constructs a trade engine bound to the supplied store.
func NewEngine(store *Store) *Engine {
	return &Engine{
		store:   store,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		swapID:  uuid.NewString,
	}
}

// SetBank configures the bank state backend.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetOfferSource configures the offer lookup collaborator.
func (e *Engine) SetOfferSource(offers OfferSource) { e.offers = offers }

// SetParamsSource configures the hub parameter provider.
func (e *Engine) SetParamsSource(params ParamsSource) { e.params = params }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the module pause view.
func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetSwapIDFunc overrides swap correlation id generation, used in tests.
func (e *Engine) SetSwapIDFunc(fn func() string) {
	if fn == nil {
		e.swapID = uuid.NewString
		return
	}
	e.swapID = fn
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(tradeEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.store == nil:
		return errNilStore
	case e.bank == nil:
		return errNilBank
	case e.offers == nil:
		return errNilOffers
	case e.params == nil:
		return errNilParams
	}
	return nil
}

func (e *Engine) snapshot() (hub.Params, error) {
	params, err := e.params.Params()
	if err != nil {
		return hub.Params{}, &CollaboratorError{Collaborator: "hub", Err: err}
	}
	return params, nil
}

func (e *Engine) lookupOffer(id string) (*offer.Offer, error) {
	o, err := e.offers.Get(id)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "offer", Err: err}
	}
	return o, nil
}

func (e *Engine) loadTrade(id string) (*Trade, error) {
	t, ok, err := e.store.TradeGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// CreateTrade opens a trade against an offer: it validates the amount against
// the offer bounds, resolves buyer and seller by offer polarity, assigns an
// arbitrator for the offer's fiat currency and persists the RequestCreated
// state.
func (e *Engine) CreateTrade(taker [20]byte, offerID string, amount *big.Int, takerContact string) (*Trade, []Effect, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	if err := common.Guard(e.pauses, tradeModuleName); err != nil {
		return nil, nil, err
	}
	params, err := e.snapshot()
	if err != nil {
		return nil, nil, err
	}
	o, err := e.lookupOffer(offerID)
	if err != nil {
		return nil, nil, err
	}
	if err := assertMinLessThanMax(o.MinAmount, o.MaxAmount); err != nil {
		return nil, nil, err
	}
	if err := assertAmountInRange(o.MinAmount, o.MaxAmount, amount); err != nil {
		return nil, nil, err
	}
	var buyer, seller [20]byte
	if o.Type == offer.TypeSell {
		seller = o.Owner
		buyer = taker
	} else {
		buyer = o.Owner
		seller = taker
	}
	arbitrators, err := e.store.ArbitratorsByFiat(o.FiatCurrency)
	if err != nil {
		return nil, nil, err
	}
	now := e.now()
	selected, err := SelectArbitrator(arbitrators, now)
	if err != nil {
		return nil, nil, err
	}
	seq, err := e.store.NextSequence()
	if err != nil {
		return nil, nil, err
	}
	t := &Trade{
		ID:            fmt.Sprintf("%s_%d", o.ID, seq),
		Contract:      ModuleAddress(),
		OfferID:       o.ID,
		OfferContract: offer.ModuleAddress(),
		Buyer:         buyer,
		Seller:        seller,
		Arbitrator:    selected.Address,
		Denom:         o.Denom,
		Amount:        new(big.Int).Set(amount),
		FiatCurrency:  o.FiatCurrency,
		CreatedAt:     now,
		ExpiresAt:     now + params.TradeExpirationSecs,
	}
	t.advance(taker, StateRequestCreated, now)
	if err := e.store.TradePut(t); err != nil {
		return nil, nil, err
	}
	for role, addr := range map[string][20]byte{
		RoleBuyer:      buyer,
		RoleSeller:     seller,
		RoleArbitrator: selected.Address,
	} {
		if err := e.store.TradeIndex(role, addr, t.ID); err != nil {
			return nil, nil, err
		}
	}
	var effects []Effect
	if takerContact != "" {
		effects = append(effects, UpdateContact{Address: taker, Contact: takerContact})
	}
	e.emit(NewCreatedEvent(t))
	return t.Clone(), effects, nil
}

// AcceptRequest moves a Buy-offer trade from RequestCreated to
// RequestAccepted. Only the buyer (the offer maker) may accept, and the
// contact string they share with the seller is required.
func (e *Engine) AcceptRequest(caller [20]byte, tradeID, contact string) ([]Effect, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, tradeModuleName); err != nil {
		return nil, err
	}
	t, err := e.loadTrade(tradeID)
	if err != nil {
		return nil, err
	}
	if err := assertOwnership(caller, t.Buyer); err != nil {
		return nil, err
	}
	o, err := e.lookupOffer(t.OfferID)
	if err != nil {
		return nil, err
	}
	if o.Type != offer.TypeBuy {
		return nil, &InvalidTransitionError{From: t.State, To: StateRequestAccepted}
	}
	if err := assertStateTransition(t.State, StateRequestCreated, StateRequestAccepted); err != nil {
		return nil, err
	}
	if contact == "" {
		return nil, &MissingContactError{Field: "contact"}
	}
	t.advance(caller, StateRequestAccepted, e.now())
	if err := e.store.TradePut(t); err != nil {
		return nil, err
	}
	e.emit(NewAcceptedEvent(t))
	return []Effect{UpdateContact{Address: caller, Contact: contact}}, nil
}

// FundEscrow locks the trade amount under escrow. Only the seller may fund; a
// funding attempt after the deadline persists RequestExpired before surfacing
// the expiry error, so subsequent reads observe the expired trade.
func (e *Engine) FundEscrow(caller [20]byte, tradeID string, sent types.Coin, contact string) ([]Effect, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, tradeModuleName); err != nil {
		return nil, err
	}
	t, err := e.loadTrade(tradeID)
	if err != nil {
		return nil, err
	}
	if t.State != StateRequestCreated && t.State != StateRequestAccepted {
		return nil, &InvalidTransitionError{From: t.State, To: StateEscrowFunded}
	}
	now := e.now()
	if now > t.ExpiresAt {
		// Lazy expiration: anyone's funding attempt commits the expired state.
		t.advance(caller, StateRequestExpired, now)
		if err := e.store.TradePut(t); err != nil {
			return nil, err
		}
		e.emit(NewExpiredEvent(t))
		return nil, &ExpiredError{CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt}
	}
	if err := assertOwnership(caller, t.Seller); err != nil {
		return nil, err
	}
	o, err := e.lookupOffer(t.OfferID)
	if err != nil {
		return nil, err
	}
	requiredFrom := StateRequestCreated
	if o.Type == offer.TypeBuy {
		requiredFrom = StateRequestAccepted
	}
	if err := assertStateTransition(t.State, requiredFrom, StateEscrowFunded); err != nil {
		return nil, err
	}
	sentAmount := big.NewInt(0)
	if types.NormalizeDenom(sent.Denom) == t.Denom && sent.Amount != nil {
		sentAmount = sent.Amount
	}
	if sentAmount.Cmp(t.Amount) < 0 {
		return nil, &InsufficientFundingError{
			Required: new(big.Int).Set(t.Amount),
			Sent:     new(big.Int).Set(sentAmount),
		}
	}
	vault := e.bank.EscrowVaultAddress(t.Denom)
	if err := e.bank.Transfer(t.Seller, vault, t.Denom, t.Amount); err != nil {
		return nil, err
	}
	if err := e.bank.EscrowCredit(t.ID, t.Denom, t.Amount); err != nil {
		return nil, err
	}
	t.advance(caller, StateEscrowFunded, now)
	if err := e.store.TradePut(t); err != nil {
		return nil, err
	}
	e.emit(NewFundedEvent(t))
	if contact != "" {
		return []Effect{UpdateContact{Address: caller, Contact: contact}}, nil
	}
	return nil, nil
}

// MarkFiatDeposited records the buyer's attestation that the fiat payment was
// made.
func (e *Engine) MarkFiatDeposited(caller [20]byte, tradeID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, tradeModuleName); err != nil {
		return err
	}
	t, err := e.loadTrade(tradeID)
	if err != nil {
		return err
	}
	if err := assertOwnership(caller, t.Buyer); err != nil {
		return err
	}
	if err := assertStateTransition(t.State, StateEscrowFunded, StateFiatDeposited); err != nil {
		return err
	}
	t.advance(caller, StateFiatDeposited, e.now())
	if err := e.store.TradePut(t); err != nil {
		return err
	}
	e.emit(NewFiatDepositedEvent(t))
	return nil
}

// CancelRequest aborts an unfunded trade. Either party may cancel while the
// request has not been funded.
func (e *Engine) CancelRequest(caller [20]byte, tradeID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, tradeModuleName); err != nil {
		return err
	}
	t, err := e.loadTrade(tradeID)
	if err != nil {
		return err
	}
	if err := assertBuyerOrSeller(caller, t.Buyer, t.Seller); err != nil {
		return err
	}
	if t.State != StateRequestCreated && t.State != StateRequestAccepted {
		return &InvalidTransitionError{From: t.State, To: StateRequestCanceled}
	}
	t.advance(caller, StateRequestCanceled, e.now())
	if err := e.store.TradePut(t); err != nil {
		return err
	}
	e.emit(NewCanceledEvent(t))
	return nil
}

// ReleaseEscrow settles the happy path: the seller confirms the fiat arrived,
// the buyer receives the principal minus the combined fee, and the fee is
// partitioned into burn, chain-fee-sharing and warchest shares. Collaborator
// notifications and the non-native burn swap are returned as deferred effects
// in the canonical emission order.
func (e *Engine) ReleaseEscrow(caller [20]byte, tradeID string) ([]Effect, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, tradeModuleName); err != nil {
		return nil, err
	}
	t, err := e.loadTrade(tradeID)
	if err != nil {
		return nil, err
	}
	if err := assertOwnership(caller, t.Seller); err != nil {
		return nil, err
	}
	if err := assertStateTransition(t.State, StateFiatDeposited, StateEscrowReleased); err != nil {
		return nil, err
	}
	params, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	o, err := e.lookupOffer(t.OfferID)
	if err != nil {
		return nil, err
	}
	split := ComputeFeeSplit(t.Amount, params)
	effects := []Effect{
		NotifyIncentives{TradeID: t.ID},
		NotifyProfileTrade{Address: o.Owner},
	}
	vault := e.bank.EscrowVaultAddress(t.Denom)
	payments := []struct {
		to     [20]byte
		amount *big.Int
	}{
		{t.Buyer, split.Payout},
		{params.TreasuryAddress, split.Warchest},
		{params.ChainFeeAddress, split.Chain},
	}
	for _, p := range payments {
		if p.amount.Sign() == 0 {
			continue
		}
		if err := e.bank.Transfer(vault, p.to, t.Denom, p.amount); err != nil {
			return nil, err
		}
		if err := e.bank.EscrowDebit(t.ID, t.Denom, p.amount); err != nil {
			return nil, err
		}
	}
	if split.Burn.Sign() > 0 {
		if err := e.bank.EscrowDebit(t.ID, t.Denom, split.Burn); err != nil {
			return nil, err
		}
		if t.Denom == types.NormalizeDenom(params.NativeDenom) {
			if err := e.bank.Burn(vault, t.Denom, split.Burn); err != nil {
				return nil, err
			}
		} else {
			swapID := e.swapID()
			if err := e.store.PendingSwapPut(swapID, t.ID); err != nil {
				return nil, err
			}
			effects = append(effects, SwapForBurn{
				SwapID:    swapID,
				TradeID:   t.ID,
				FromDenom: t.Denom,
				ToDenom:   params.NativeDenom,
				Amount:    split.Burn,
				Recipient: ModuleAddress(),
			})
		}
	}
	t.advance(caller, StateEscrowReleased, e.now())
	if err := e.store.TradePut(t); err != nil {
		return nil, err
	}
	e.emit(NewReleasedEvent(t, split))
	return effects, nil
}

// RefundEscrow returns the full locked amount to the seller once the funded
// trade's deadline has passed. Anyone may trigger it; a refund is not a
// completed trade, so no fee is deducted.
func (e *Engine) RefundEscrow(caller [20]byte, tradeID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, tradeModuleName); err != nil {
		return err
	}
	t, err := e.loadTrade(tradeID)
	if err != nil {
		return err
	}
	if err := assertStateTransition(t.State, StateEscrowFunded, StateEscrowRefunded); err != nil {
		return err
	}
	now := e.now()
	if now <= t.ExpiresAt {
		return &NotYetExpiredError{ExpiresAt: t.ExpiresAt, Now: now}
	}
	vault := e.bank.EscrowVaultAddress(t.Denom)
	if err := e.bank.Transfer(vault, t.Seller, t.Denom, t.Amount); err != nil {
		return err
	}
	if err := e.bank.EscrowDebit(t.ID, t.Denom, t.Amount); err != nil {
		return err
	}
	t.advance(caller, StateEscrowRefunded, now)
	if err := e.store.TradePut(t); err != nil {
		return err
	}
	e.emit(NewRefundedEvent(t))
	return nil
}

// DisputeEscrow escalates a trade to the assigned arbitrator. No funds move;
// both parties' out-of-band contact strings are captured for the arbitrator.
func (e *Engine) DisputeEscrow(caller [20]byte, tradeID, buyerContact, sellerContact string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, tradeModuleName); err != nil {
		return err
	}
	t, err := e.loadTrade(tradeID)
	if err != nil {
		return err
	}
	if err := assertBuyerOrSeller(caller, t.Buyer, t.Seller); err != nil {
		return err
	}
	if err := assertStateTransition(t.State, StateFiatDeposited, StateEscrowDisputed); err != nil {
		return err
	}
	if buyerContact == "" {
		return &MissingContactError{Field: "buyer_contact"}
	}
	if sellerContact == "" {
		return &MissingContactError{Field: "seller_contact"}
	}
	t.ArbitratorBuyerContact = buyerContact
	t.ArbitratorSellerContact = sellerContact
	t.advance(caller, StateEscrowDisputed, e.now())
	if err := e.store.TradePut(t); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(t))
	return nil
}

// SettleDispute lets the assigned arbitrator resolve a disputed trade. The
// arbitrator collects the fixed arbitration fee and the declared winner, who
// must be the offer maker or the taker, receives the remainder.
func (e *Engine) SettleDispute(caller [20]byte, tradeID string, winner [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, tradeModuleName); err != nil {
		return err
	}
	t, err := e.loadTrade(tradeID)
	if err != nil {
		return err
	}
	if err := assertOwnership(caller, t.Arbitrator); err != nil {
		return err
	}
	if winner != t.Buyer && winner != t.Seller {
		return &InvalidWinnerError{Winner: winner, Buyer: t.Buyer, Seller: t.Seller}
	}
	if err := assertStateTransition(t.State, StateEscrowDisputed, StateSettledForMaker); err != nil {
		return err
	}
	params, err := e.snapshot()
	if err != nil {
		return err
	}
	o, err := e.lookupOffer(t.OfferID)
	if err != nil {
		return err
	}
	fee := ArbitrationFee(t.Amount, params)
	remainder := new(big.Int).Sub(t.Amount, fee)
	vault := e.bank.EscrowVaultAddress(t.Denom)
	if fee.Sign() > 0 {
		if err := e.bank.Transfer(vault, t.Arbitrator, t.Denom, fee); err != nil {
			return err
		}
		if err := e.bank.EscrowDebit(t.ID, t.Denom, fee); err != nil {
			return err
		}
	}
	if remainder.Sign() > 0 {
		if err := e.bank.Transfer(vault, winner, t.Denom, remainder); err != nil {
			return err
		}
		if err := e.bank.EscrowDebit(t.ID, t.Denom, remainder); err != nil {
			return err
		}
	}
	outcome := StateSettledForTaker
	if winner == o.Owner {
		outcome = StateSettledForMaker
	}
	t.advance(caller, outcome, e.now())
	if err := e.store.TradePut(t); err != nil {
		return err
	}
	e.emit(NewSettledEvent(t, winner))
	return nil
}

// HandleSwapReply is the second control-flow entry point: the host re-invokes
// the engine with the outcome of a previously requested burn swap. A failed
// result leaves the pending correlation in place so the host can redeliver
// once the collaborator recovers; only a successful reply consumes it. The
// burn amount is whatever the swap result reports as received by the trade
// module; an absent event parses to zero, which makes a zero-value swap
// indistinguishable from a missing payout.
func (e *Engine) HandleSwapReply(result swap.Result) error {
	if err := e.ready(); err != nil {
		return err
	}
	tradeID, ok, err := e.store.PendingSwapGet(result.RequestID)
	if err != nil {
		return err
	}
	if !ok || tradeID == "" {
		return fmt.Errorf("%w: %s", errUnknownReply, result.RequestID)
	}
	if result.Err != nil {
		return &CollaboratorError{Collaborator: "swap", Err: result.Err}
	}
	if err := e.store.PendingSwapClear(result.RequestID); err != nil {
		return err
	}
	params, err := e.snapshot()
	if err != nil {
		return err
	}
	received := swap.ReceivedAmount(result.Events, ModuleAddress(), params.NativeDenom)
	if received.Sign() > 0 {
		if err := e.bank.Burn(ModuleAddress(), params.NativeDenom, received); err != nil {
			return err
		}
	}
	e.emit(NewBurnCompletedEvent(tradeID, types.NormalizeDenom(params.NativeDenom), received.String()))
	return nil
}

// Trade returns a copy of the stored trade.
func (e *Engine) Trade(id string) (*Trade, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	t, err := e.loadTrade(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// TradesByRole lists the trades an address participates in under the given
// role, paginated by offset and limit.
func (e *Engine) TradesByRole(addr [20]byte, role string, offset, limit int) ([]*Trade, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	switch role {
	case RoleBuyer, RoleSeller, RoleArbitrator:
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownRole, role)
	}
	ids, err := e.store.TradesByRole(role, addr)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return nil, nil
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	trades := make([]*Trade, 0, end-offset)
	for _, id := range ids[offset:end] {
		t, err := e.loadTrade(id)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// CompletedTrade exposes released trades to the incentives recorder.
func (e *Engine) CompletedTrade(tradeID string) ([20]byte, string, *big.Int, error) {
	if e == nil || e.store == nil {
		return [20]byte{}, "", nil, errNilStore
	}
	t, err := e.loadTrade(tradeID)
	if err != nil {
		return [20]byte{}, "", nil, err
	}
	if t.State != StateEscrowReleased {
		return [20]byte{}, "", nil, fmt.Errorf("trade: %s not released", tradeID)
	}
	return t.Buyer, t.Denom, new(big.Int).Set(t.Amount), nil
}

// RegisterArbitrator adds an arbitrator to the registry. Admin only.
func (e *Engine) RegisterArbitrator(caller [20]byte, arb Arbitrator) error {
	if err := e.ready(); err != nil {
		return err
	}
	params, err := e.snapshot()
	if err != nil {
		return err
	}
	if err := assertOwnership(caller, params.AdminAddress); err != nil {
		return err
	}
	return e.store.ArbitratorPut(arb)
}

// RemoveArbitrator deletes a registry entry. Admin only.
func (e *Engine) RemoveArbitrator(caller, addr [20]byte, currency string) error {
	if err := e.ready(); err != nil {
		return err
	}
	params, err := e.snapshot()
	if err != nil {
		return err
	}
	if err := assertOwnership(caller, params.AdminAddress); err != nil {
		return err
	}
	return e.store.ArbitratorRemove(addr, currency)
}

// ArbitratorsByFiat lists the registered arbitrators for a currency.
func (e *Engine) ArbitratorsByFiat(currency string) ([]Arbitrator, error) {
	if e == nil || e.store == nil {
		return nil, errNilStore
	}
	return e.store.ArbitratorsByFiat(currency)
}
