package incentives

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// TradeSource resolves the trade facts the recorder needs. The trade module
// satisfies this without the incentives package importing it.
type TradeSource interface {
	CompletedTrade(tradeID string) (buyer [20]byte, denom string, amount *big.Int, err error)
}

// storage abstracts the subset of state manager functionality required by the
// incentive recorder.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

const secondsPerDay int64 = 86_400

var (
	volumePrefix = []byte("incentives/volume/")

	errNotConfigured = errors.New("incentives: recorder not initialised")
	errNilSource     = errors.New("incentives: trade source not configured")
)

// Recorder accumulates trade-volume-based incentive rewards. Each completed
// trade credits the buyer's running volume for the current epoch day; reward
// distribution reads these buckets.
type Recorder struct {
	store  storage
	trades TradeSource
	nowFn  func() int64
}

// NewRecorder constructs a recorder bound to the provided storage backend.
func NewRecorder(store storage) *Recorder {
	return &Recorder{
		store: store,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetTradeSource wires the collaborator used to resolve completed trades.
func (r *Recorder) SetTradeSource(src TradeSource) {
	if r == nil {
		return
	}
	r.trades = src
}

// SetNowFunc overrides the time source, primarily used in tests.
func (r *Recorder) SetNowFunc(now func() int64) {
	if r == nil {
		return
	}
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Recorder) now() int64 {
	if r == nil || r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}

type storedVolume struct {
	Trades uint64
	Volume *big.Int
}

func volumeKey(addr [20]byte, denom string, epochDay int64) []byte {
	return []byte(fmt.Sprintf("%s%x/%s/%d", volumePrefix, addr, denom, epochDay))
}

// EpochDay returns the epoch-day bucket for a unix timestamp.
func EpochDay(ts int64) int64 {
	return ts / secondsPerDay
}

// RegisterTrade records a completed trade against the buyer's volume bucket
// for the current epoch day.
func (r *Recorder) RegisterTrade(tradeID string) error {
	if r == nil || r.store == nil {
		return errNotConfigured
	}
	if r.trades == nil {
		return errNilSource
	}
	buyer, denom, amount, err := r.trades.CompletedTrade(tradeID)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("incentives: trade %s has no volume", tradeID)
	}
	key := volumeKey(buyer, denom, EpochDay(r.now()))
	var stored storedVolume
	if _, err := r.store.KVGet(key, &stored); err != nil {
		return err
	}
	if stored.Volume == nil {
		stored.Volume = big.NewInt(0)
	}
	stored.Trades++
	stored.Volume = new(big.Int).Add(stored.Volume, amount)
	return r.store.KVPut(key, &stored)
}

// Volume returns the accumulated volume and trade count for an address, denom
// and epoch day.
func (r *Recorder) Volume(addr [20]byte, denom string, epochDay int64) (uint64, *big.Int, error) {
	if r == nil || r.store == nil {
		return 0, nil, errNotConfigured
	}
	var stored storedVolume
	ok, err := r.store.KVGet(volumeKey(addr, denom, epochDay), &stored)
	if err != nil {
		return 0, nil, err
	}
	if !ok || stored.Volume == nil {
		return 0, big.NewInt(0), nil
	}
	return stored.Trades, stored.Volume, nil
}
