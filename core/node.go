package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"otcnet/core/events"
	"otcnet/core/state"
	"otcnet/core/types"
	"otcnet/native/hub"
	"otcnet/native/incentives"
	"otcnet/native/offer"
	"otcnet/native/profile"
	"otcnet/native/swap"
	"otcnet/native/trade"
	"otcnet/observability/metrics"
	"otcnet/storage"
)

const recentEventLimit = 256

var errNotAdmin = errors.New("node: caller is not the hub admin")

// Node owns the full module graph: the state manager, the trade engine and its
// collaborators, and the effect dispatcher. Every mutating operation runs under
// a single mutex against a staging layer, so a transition and its deferred
// effects commit as one unit or not at all, the way a block boundary would
// serialize them.
type Node struct {
	mu sync.Mutex

	db         storage.Database
	staged     *storage.Staged
	manager    *state.Manager
	params     *hub.Store
	book       *offer.Book
	profiles   *profile.Ledger
	incentives *incentives.Recorder
	trades     *trade.Engine
	router     *swap.PoolRouter
	dispatcher *trade.Dispatcher

	logger  *slog.Logger
	metrics *metrics.TradeMetrics

	pendingEmits []events.Event
	recentEvents []types.Event
}

// NewNode wires a node over the supplied database.
func NewNode(db storage.Database, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	staged := storage.NewStaged(db)
	manager := state.NewManager(staged)
	n := &Node{
		db:       db,
		staged:   staged,
		manager:  manager,
		params:   hub.NewStore(manager),
		book:     offer.NewBook(manager),
		profiles: profile.NewLedger(manager),
		logger:   logger,
		metrics:  metrics.Trade(),
	}
	n.incentives = incentives.NewRecorder(manager)
	n.trades = trade.NewEngine(trade.NewStore(manager))
	n.trades.SetBank(manager)
	n.trades.SetOfferSource(n.book)
	n.trades.SetParamsSource(n.params)
	n.trades.SetEmitter(n)
	n.incentives.SetTradeSource(n.trades)
	n.router = swap.NewPoolRouter(manager)
	n.router.SetReplyHandler(n.trades)
	n.dispatcher = trade.NewDispatcher(manager, n.profiles, n.incentives, n.router)
	return n
}

// SetNowFunc overrides the engine time source, primarily used in tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.trades.SetNowFunc(now)
	n.incentives.SetNowFunc(now)
}

// staticPauses is a fixed pause view built from the daemon configuration.
type staticPauses map[string]bool

func (p staticPauses) IsPaused(module string) bool { return p[module] }

// SetPausedModules pauses the named modules: every mutating operation of a
// paused module is rejected until the node restarts without it.
func (n *Node) SetPausedModules(modules []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(modules) == 0 {
		n.trades.SetPauses(nil)
		return
	}
	view := make(staticPauses, len(modules))
	for _, module := range modules {
		if trimmed := strings.TrimSpace(module); trimmed != "" {
			view[trimmed] = true
		}
	}
	n.trades.SetPauses(view)
}

// payloadEvent is satisfied by module events that carry a structured payload.
type payloadEvent interface {
	events.Event
	Event() *types.Event
}

// Emit implements events.Emitter: module events are buffered alongside the
// staged state writes and published only when the operation commits, so a
// rolled-back transition leaves no trace in the event ring or the metrics.
func (n *Node) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	n.pendingEmits = append(n.pendingEmits, evt)
}

// commit flushes the staged state writes and publishes the buffered events. A
// flush failure rolls the operation back instead of leaving it half-applied.
func (n *Node) commit() error {
	if err := n.staged.Commit(); err != nil {
		n.rollback()
		return err
	}
	for _, evt := range n.pendingEmits {
		n.metrics.ObserveTransition(evt.EventType())
		payload, ok := evt.(payloadEvent)
		if !ok || payload.Event() == nil {
			continue
		}
		record := *payload.Event()
		if record.Type == trade.EventTypeBurnCompleted {
			n.metrics.ObserveBurnCompleted(record.Attributes["denom"])
		}
		n.recentEvents = append(n.recentEvents, record)
	}
	if len(n.recentEvents) > recentEventLimit {
		n.recentEvents = n.recentEvents[len(n.recentEvents)-recentEventLimit:]
	}
	n.pendingEmits = n.pendingEmits[:0]
	return nil
}

// rollback discards every staged write and buffered event of the current
// operation.
func (n *Node) rollback() {
	n.staged.Discard()
	n.pendingEmits = n.pendingEmits[:0]
}

// finish resolves an operation against the staging layer. Success commits.
// Lazy expiration persists the expired state before surfacing ErrExpired, so
// that write commits alongside the error; every other failure discards
// whatever was buffered.
func (n *Node) finish(opErr error) error {
	if opErr == nil {
		return n.commit()
	}
	if errors.Is(opErr, trade.ErrExpired) {
		if err := n.commit(); err != nil {
			return err
		}
		return opErr
	}
	n.rollback()
	return opErr
}

// RecentEvents returns a copy of the retained event ring, newest last.
func (n *Node) RecentEvents() []types.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.Event(nil), n.recentEvents...)
}

func (n *Node) dispatch(op, tradeID string, effects []trade.Effect) error {
	if len(effects) == 0 {
		return nil
	}
	if err := n.dispatcher.Dispatch(effects); err != nil {
		var collab *trade.CollaboratorError
		if errors.As(err, &collab) {
			n.metrics.IncEffectFailure(collab.Collaborator)
		}
		n.logger.Error("effect dispatch failed", "op", op, "trade", tradeID, "err", err)
		return err
	}
	return nil
}

// CreateTrade opens a trade against an offer on behalf of the taker.
func (n *Node) CreateTrade(taker [20]byte, offerID string, amount *big.Int, contact string) (*trade.Trade, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, effects, err := n.trades.CreateTrade(taker, offerID, amount, contact)
	if err != nil {
		return nil, n.finish(err)
	}
	if err := n.dispatch("create", t.ID, effects); err != nil {
		n.rollback()
		return nil, err
	}
	if err := n.commit(); err != nil {
		return nil, err
	}
	n.logger.Info("trade created", "trade", t.ID, "offer", offerID, "amount", amount.String())
	return t, nil
}

// AcceptTrade records the buyer's acceptance of a trade request.
func (n *Node) AcceptTrade(caller [20]byte, tradeID, contact string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	effects, err := n.trades.AcceptRequest(caller, tradeID, contact)
	if err != nil {
		return n.finish(err)
	}
	if err := n.dispatch("accept", tradeID, effects); err != nil {
		n.rollback()
		return err
	}
	return n.commit()
}

// FundTrade locks the seller's coins under escrow.
func (n *Node) FundTrade(caller [20]byte, tradeID string, sent types.Coin, contact string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	effects, err := n.trades.FundEscrow(caller, tradeID, sent, contact)
	if err != nil {
		return n.finish(err)
	}
	if err := n.dispatch("fund", tradeID, effects); err != nil {
		n.rollback()
		return err
	}
	return n.commit()
}

// MarkFiatDeposited records the buyer's fiat payment attestation.
func (n *Node) MarkFiatDeposited(caller [20]byte, tradeID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finish(n.trades.MarkFiatDeposited(caller, tradeID))
}

// CancelTrade aborts an unfunded trade request.
func (n *Node) CancelTrade(caller [20]byte, tradeID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finish(n.trades.CancelRequest(caller, tradeID))
}

// ReleaseTrade settles the trade to the buyer and distributes the fee. The
// queued effects, including a burn swap for non-native denoms, run before the
// call returns; if any effect fails the whole release rolls back and the trade
// stays in fiat_deposited, ready for a retry.
func (n *Node) ReleaseTrade(caller [20]byte, tradeID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	effects, err := n.trades.ReleaseEscrow(caller, tradeID)
	if err != nil {
		return n.finish(err)
	}
	if err := n.dispatch("release", tradeID, effects); err != nil {
		n.rollback()
		return err
	}
	if err := n.commit(); err != nil {
		return err
	}
	n.logger.Info("trade released", "trade", tradeID)
	return nil
}

// RefundTrade returns expired escrow funds to the seller.
func (n *Node) RefundTrade(caller [20]byte, tradeID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finish(n.trades.RefundEscrow(caller, tradeID))
}

// DisputeTrade escalates a trade to its assigned arbitrator.
func (n *Node) DisputeTrade(caller [20]byte, tradeID, buyerContact, sellerContact string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finish(n.trades.DisputeEscrow(caller, tradeID, buyerContact, sellerContact))
}

// SettleTrade resolves a disputed trade in favour of the declared winner.
func (n *Node) SettleTrade(caller [20]byte, tradeID string, winner [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.trades.SettleDispute(caller, tradeID, winner); err != nil {
		return n.finish(err)
	}
	t, err := n.trades.Trade(tradeID)
	if err != nil {
		n.rollback()
		return err
	}
	if err := n.commit(); err != nil {
		return err
	}
	n.metrics.ObserveSettlement(t.State.String())
	n.logger.Info("trade settled", "trade", tradeID, "outcome", t.State.String())
	return nil
}

// GetTrade returns a trade by id.
func (n *Node) GetTrade(id string) (*trade.Trade, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trades.Trade(id)
}

// TradesByRole lists trades an address participates in under a role.
func (n *Node) TradesByRole(addr [20]byte, role string, offset, limit int) ([]*trade.Trade, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trades.TradesByRole(addr, role, offset, limit)
}

// CreateOffer posts an offer owned by the caller.
func (n *Node) CreateOffer(caller [20]byte, o *offer.Offer) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if o == nil {
		return fmt.Errorf("node: nil offer")
	}
	posted := o.Clone()
	posted.Owner = caller
	return n.finish(n.book.Put(posted))
}

// GetOffer returns an offer by id.
func (n *Node) GetOffer(id string) (*offer.Offer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.book.Get(id)
}

// Params returns the current hub parameter snapshot.
func (n *Node) Params() (hub.Params, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.params.Params()
}

// SetParams rewrites the hub parameters. Admin only once an admin is set; the
// first write from an empty state is unrestricted so genesis can establish one.
func (n *Node) SetParams(caller [20]byte, params hub.Params) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	current, err := n.params.Params()
	if err != nil {
		return err
	}
	if current.AdminAddress != ([20]byte{}) && caller != current.AdminAddress {
		return errNotAdmin
	}
	return n.finish(n.params.SetParams(params))
}

// RegisterArbitrator adds an arbitrator to the registry. Admin only.
func (n *Node) RegisterArbitrator(caller [20]byte, arb trade.Arbitrator) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finish(n.trades.RegisterArbitrator(caller, arb))
}

// RemoveArbitrator deletes an arbitrator registration. Admin only.
func (n *Node) RemoveArbitrator(caller, addr [20]byte, currency string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finish(n.trades.RemoveArbitrator(caller, addr, currency))
}

// ArbitratorsByFiat lists registered arbitrators for a currency.
func (n *Node) ArbitratorsByFiat(currency string) ([]trade.Arbitrator, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trades.ArbitratorsByFiat(currency)
}

// Profile returns the trading profile for an address.
func (n *Node) Profile(addr [20]byte) (*profile.Profile, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.profiles.Get(addr)
}

// Volume returns the incentive volume bucket for an address, denom and epoch
// day.
func (n *Node) Volume(addr [20]byte, denom string, epochDay int64) (uint64, *big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.incentives.Volume(addr, denom, epochDay)
}

// Balance returns the spendable balance of denom held by an address.
func (n *Node) Balance(addr [20]byte, denom string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.manager.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance(denom), nil
}

// BurnedTotal returns the cumulative burned supply of denom.
func (n *Node) BurnedTotal(denom string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.manager.BurnedTotal(denom)
}

// SetSwapRate configures the conversion rate the burn-swap pool applies to a
// source denom. Admin only.
func (n *Node) SetSwapRate(caller [20]byte, denom string, num, den int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	current, err := n.params.Params()
	if err != nil {
		return err
	}
	if current.AdminAddress != ([20]byte{}) && caller != current.AdminAddress {
		return errNotAdmin
	}
	if den == 0 {
		return fmt.Errorf("node: zero rate denominator")
	}
	n.router.SetRate(denom, num, den)
	return nil
}

// CreditGenesis mints an initial balance for an address. Used only while
// applying the genesis allocations at boot.
func (n *Node) CreditGenesis(addr [20]byte, denom string, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.manager.GetAccount(addr)
	if err != nil {
		return err
	}
	account.SetBalance(denom, new(big.Int).Add(account.Balance(denom), amount))
	return n.finish(n.manager.PutAccount(addr, account))
}
