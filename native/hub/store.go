package hub

import (
	"errors"

	"otcnet/core/types"
)

// storage abstracts the subset of state manager functionality required by the
// hub parameter store.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var paramsKey = []byte("hub/params")

var errStoreNotConfigured = errors.New("hub: store not configured")

// Store persists the hub parameter set.
type Store struct {
	state storage
}

// NewStore constructs a parameter store bound to the supplied state backend.
func NewStore(state storage) *Store {
	return &Store{state: state}
}

type storedParams struct {
	AdminAddress          [20]byte
	TreasuryAddress       [20]byte
	ChainFeeAddress       [20]byte
	NativeDenom           string
	FeeDenominator        uint64
	BurnPct               uint64
	ChainPct              uint64
	WarchestPct           uint64
	ArbitrationFeeDivisor uint64
	TradeExpirationSecs   uint64
}

// Params loads the stored parameter set, falling back to defaults when none
// has been written yet.
func (s *Store) Params() (Params, error) {
	if s == nil || s.state == nil {
		return Params{}, errStoreNotConfigured
	}
	var stored storedParams
	ok, err := s.state.KVGet(paramsKey, &stored)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		return DefaultParams(), nil
	}
	params := Params{
		AdminAddress:          stored.AdminAddress,
		TreasuryAddress:       stored.TreasuryAddress,
		ChainFeeAddress:       stored.ChainFeeAddress,
		NativeDenom:           stored.NativeDenom,
		FeeDenominator:        stored.FeeDenominator,
		BurnPct:               stored.BurnPct,
		ChainPct:              stored.ChainPct,
		WarchestPct:           stored.WarchestPct,
		ArbitrationFeeDivisor: stored.ArbitrationFeeDivisor,
		TradeExpirationSecs:   int64(stored.TradeExpirationSecs),
	}
	return params, nil
}

// SetParams validates and persists the supplied parameter set.
func (s *Store) SetParams(params Params) error {
	if s == nil || s.state == nil {
		return errStoreNotConfigured
	}
	params.NativeDenom = types.NormalizeDenom(params.NativeDenom)
	if err := params.Validate(); err != nil {
		return err
	}
	stored := storedParams{
		AdminAddress:          params.AdminAddress,
		TreasuryAddress:       params.TreasuryAddress,
		ChainFeeAddress:       params.ChainFeeAddress,
		NativeDenom:           params.NativeDenom,
		FeeDenominator:        params.FeeDenominator,
		BurnPct:               params.BurnPct,
		ChainPct:              params.ChainPct,
		WarchestPct:           params.WarchestPct,
		ArbitrationFeeDivisor: params.ArbitrationFeeDivisor,
		TradeExpirationSecs:   uint64(params.TradeExpirationSecs),
	}
	return s.state.KVPut(paramsKey, &stored)
}
