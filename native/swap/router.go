package swap

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"otcnet/core/types"
)

var (
	errRouterNotConfigured = errors.New("swap: router not configured")
	errNoHandler           = errors.New("swap: reply handler not configured")
	errNoRate              = errors.New("swap: no conversion rate for denom")
)

// bank abstracts the balance mutations the in-process router performs.
type bank interface {
	Transfer(from, to [20]byte, denom string, amount *big.Int) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// PoolRouter is an in-process swap collaborator backed by constant-rate pools.
// It consumes the request's source coins from the pool account, credits the
// recipient with the converted native quantity and delivers the reply through
// the configured handler. Conversion uses integer rate numerator/denominator
// pairs so no floating point enters the proceeds math.
type PoolRouter struct {
	state   bank
	handler ReplyHandler
	// rates maps source denom to the amount of target denom minted per unit,
	// expressed as num/den.
	rates map[string]Rate
}

// Rate expresses an integer conversion ratio: out = in * Num / Den.
type Rate struct {
	Num *big.Int
	Den *big.Int
}

// NewPoolRouter constructs a router over the supplied bank state.
func NewPoolRouter(state bank) *PoolRouter {
	return &PoolRouter{state: state, rates: make(map[string]Rate)}
}

// SetRate configures the conversion ratio applied to swaps from denom.
func (r *PoolRouter) SetRate(denom string, num, den int64) {
	if r == nil || den == 0 {
		return
	}
	r.rates[types.NormalizeDenom(denom)] = Rate{Num: big.NewInt(num), Den: big.NewInt(den)}
}

// SetReplyHandler wires the consumer that resumes processing on swap replies.
func (r *PoolRouter) SetReplyHandler(handler ReplyHandler) {
	if r == nil {
		return
	}
	r.handler = handler
}

// PoolAddress derives the account holding the router's inventory for a denom.
func PoolAddress(denom string) [20]byte {
	digest := ethcrypto.Keccak256([]byte("otcnet/swap/pool/"), []byte(types.NormalizeDenom(denom)))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// Swap executes the request against the pool and delivers the reply. The
// request's source amount must already sit on the pool account for FromDenom;
// failures are reported through the reply continuation, mirroring a host that
// always invokes the callback.
func (r *PoolRouter) Swap(req Request) error {
	if r == nil || r.state == nil {
		return errRouterNotConfigured
	}
	if r.handler == nil {
		return errNoHandler
	}
	if err := req.Validate(); err != nil {
		return err
	}
	result := Result{RequestID: req.ID}
	received, err := r.execute(req)
	if err != nil {
		result.Err = err
	} else {
		result.Events = append(result.Events, NewReceivedEvent(req.Recipient, req.ToDenom, received))
	}
	return r.handler.HandleSwapReply(result)
}

func (r *PoolRouter) execute(req Request) (*big.Int, error) {
	fromDenom := types.NormalizeDenom(req.FromDenom)
	toDenom := types.NormalizeDenom(req.ToDenom)
	rate, ok := r.rates[fromDenom]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoRate, fromDenom)
	}
	pool := PoolAddress(fromDenom)
	poolAcc, err := r.state.GetAccount(pool)
	if err != nil {
		return nil, err
	}
	if poolAcc.Balance(fromDenom).Cmp(req.Amount) < 0 {
		return nil, fmt.Errorf("swap: pool missing %s of %s", req.Amount, fromDenom)
	}
	// Consume the source coins: they leave circulation inside the pool.
	poolAcc.SetBalance(fromDenom, new(big.Int).Sub(poolAcc.Balance(fromDenom), req.Amount))
	if err := r.state.PutAccount(pool, poolAcc); err != nil {
		return nil, err
	}
	received := new(big.Int).Mul(req.Amount, rate.Num)
	received.Div(received, rate.Den)
	recipientAcc, err := r.state.GetAccount(req.Recipient)
	if err != nil {
		return nil, err
	}
	recipientAcc.SetBalance(toDenom, new(big.Int).Add(recipientAcc.Balance(toDenom), received))
	if err := r.state.PutAccount(req.Recipient, recipientAcc); err != nil {
		return nil, err
	}
	return received, nil
}
