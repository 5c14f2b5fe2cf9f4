package rpc

import (
	"net/http"
	"strings"

	"otcnet/native/hub"
	"otcnet/native/offer"
	"otcnet/native/trade"
)

type balanceParams struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
}

type balanceResult struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
	Amount  string `json:"amount"`
}

type denomParams struct {
	Denom string `json:"denom"`
}

type profileParams struct {
	Address string `json:"address"`
}

type profileResult struct {
	Address    string `json:"address"`
	TradeCount uint64 `json:"tradeCount"`
	Contact    string `json:"contact,omitempty"`
}

type volumeParams struct {
	Address  string `json:"address"`
	Denom    string `json:"denom"`
	EpochDay int64  `json:"epochDay"`
}

type volumeResult struct {
	Address  string `json:"address"`
	Denom    string `json:"denom"`
	EpochDay int64  `json:"epochDay"`
	Trades   uint64 `json:"trades"`
	Volume   string `json:"volume"`
}

type offerCreateParams struct {
	Caller       string `json:"caller"`
	ID           string `json:"id"`
	Type         string `json:"type"`
	MinAmount    string `json:"minAmount"`
	MaxAmount    string `json:"maxAmount"`
	Denom        string `json:"denom"`
	FiatCurrency string `json:"fiatCurrency"`
}

type offerIDParams struct {
	ID string `json:"id"`
}

type offerJSON struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	Type         string `json:"type"`
	MinAmount    string `json:"minAmount"`
	MaxAmount    string `json:"maxAmount"`
	Denom        string `json:"denom"`
	FiatCurrency string `json:"fiatCurrency"`
}

type hubParamsJSON struct {
	AdminAddress          string `json:"adminAddress,omitempty"`
	TreasuryAddress       string `json:"treasuryAddress,omitempty"`
	ChainFeeAddress       string `json:"chainFeeAddress,omitempty"`
	NativeDenom           string `json:"nativeDenom"`
	FeeDenominator        uint64 `json:"feeDenominator"`
	BurnPct               uint64 `json:"burnPct"`
	ChainPct              uint64 `json:"chainPct"`
	WarchestPct           uint64 `json:"warchestPct"`
	ArbitrationFeeDivisor uint64 `json:"arbitrationFeeDivisor"`
	TradeExpirationSecs   int64  `json:"tradeExpirationSecs"`
}

type hubSetParams struct {
	Caller string        `json:"caller"`
	Params hubParamsJSON `json:"params"`
}

type arbRegisterParams struct {
	Caller       string `json:"caller"`
	Address      string `json:"address"`
	FiatCurrency string `json:"fiatCurrency"`
}

type arbListParams struct {
	FiatCurrency string `json:"fiatCurrency"`
}

type arbJSON struct {
	Address      string `json:"address"`
	FiatCurrency string `json:"fiatCurrency"`
}

type swapRateParams struct {
	Caller string `json:"caller"`
	Denom  string `json:"denom"`
	Num    int64  `json:"num"`
	Den    int64  `json:"den"`
}

func formatOfferJSON(o *offer.Offer) offerJSON {
	return offerJSON{
		ID:           o.ID,
		Owner:        formatAddress(o.Owner),
		Type:         o.Type.String(),
		MinAmount:    o.MinAmount.String(),
		MaxAmount:    o.MaxAmount.String(),
		Denom:        o.Denom,
		FiatCurrency: o.FiatCurrency,
	}
}

func formatHubParamsJSON(p hub.Params) hubParamsJSON {
	out := hubParamsJSON{
		NativeDenom:           p.NativeDenom,
		FeeDenominator:        p.FeeDenominator,
		BurnPct:               p.BurnPct,
		ChainPct:              p.ChainPct,
		WarchestPct:           p.WarchestPct,
		ArbitrationFeeDivisor: p.ArbitrationFeeDivisor,
		TradeExpirationSecs:   p.TradeExpirationSecs,
	}
	if p.AdminAddress != ([20]byte{}) {
		out.AdminAddress = formatAddress(p.AdminAddress)
	}
	if p.TreasuryAddress != ([20]byte{}) {
		out.TreasuryAddress = formatAddress(p.TreasuryAddress)
	}
	if p.ChainFeeAddress != ([20]byte{}) {
		out.ChainFeeAddress = formatAddress(p.ChainFeeAddress)
	}
	return out
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := s.node.Balance(addr, params.Denom)
	if err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceResult{Address: params.Address, Denom: params.Denom, Amount: amount.String()})
}

func (s *Server) handleBurnedTotal(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params denomParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	total, err := s.node.BurnedTotal(params.Denom)
	if err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, total.String())
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params profileParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	prof, err := s.node.Profile(addr)
	if err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, profileResult{
		Address:    params.Address,
		TradeCount: prof.TradeCount,
		Contact:    prof.Contact,
	})
}

func (s *Server) handleGetVolume(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params volumeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	trades, volume, err := s.node.Volume(addr, params.Denom, params.EpochDay)
	if err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, volumeResult{
		Address:  params.Address,
		Denom:    params.Denom,
		EpochDay: params.EpochDay,
		Trades:   trades,
		Volume:   volume.String(),
	})
}

func (s *Server) handleOfferCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params offerCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	offerType, err := offer.ParseType(params.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	minAmount, err := parsePositiveBigInt(params.MinAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	maxAmount, err := parsePositiveBigInt(params.MaxAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	o := &offer.Offer{
		ID:           strings.TrimSpace(params.ID),
		Type:         offerType,
		MinAmount:    minAmount,
		MaxAmount:    maxAmount,
		Denom:        params.Denom,
		FiatCurrency: params.FiatCurrency,
	}
	if err := s.node.CreateOffer(caller, o); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleOfferGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params offerIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	o, err := s.node.GetOffer(params.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeTradeNotFound, "not_found", err.Error())
		return
	}
	writeResult(w, req.ID, formatOfferJSON(o))
}

func (s *Server) handleHubGetParams(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	params, err := s.node.Params()
	if err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatHubParamsJSON(params))
}

func (s *Server) handleHubSetParams(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params hubSetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	next := hub.Params{
		NativeDenom:           params.Params.NativeDenom,
		FeeDenominator:        params.Params.FeeDenominator,
		BurnPct:               params.Params.BurnPct,
		ChainPct:              params.Params.ChainPct,
		WarchestPct:           params.Params.WarchestPct,
		ArbitrationFeeDivisor: params.Params.ArbitrationFeeDivisor,
		TradeExpirationSecs:   params.Params.TradeExpirationSecs,
	}
	for _, field := range []struct {
		value string
		dest  *[20]byte
	}{
		{params.Params.AdminAddress, &next.AdminAddress},
		{params.Params.TreasuryAddress, &next.TreasuryAddress},
		{params.Params.ChainFeeAddress, &next.ChainFeeAddress},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		decoded, err := parseBech32Address(field.value)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
			return
		}
		*field.dest = decoded
	}
	if err := s.node.SetParams(caller, next); err != nil {
		writeError(w, http.StatusForbidden, req.ID, codeTradeForbidden, "forbidden", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleArbitratorRegister(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params arbRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	arb := trade.Arbitrator{Address: addr, FiatCurrency: params.FiatCurrency}
	if err := s.node.RegisterArbitrator(caller, arb); err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleArbitratorRemove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params arbRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.RemoveArbitrator(caller, addr, params.FiatCurrency); err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleArbitratorList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params arbListParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	arbitrators, err := s.node.ArbitratorsByFiat(params.FiatCurrency)
	if err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	out := make([]arbJSON, 0, len(arbitrators))
	for _, arb := range arbitrators {
		out = append(out, arbJSON{Address: formatAddress(arb.Address), FiatCurrency: arb.FiatCurrency})
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleSwapSetRate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params swapRateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.SetSwapRate(caller, params.Denom, params.Num, params.Den); err != nil {
		writeError(w, http.StatusForbidden, req.ID, codeTradeForbidden, "forbidden", err.Error())
		return
	}
	writeResult(w, req.ID, "ok")
}
