package rpc

import (
	"errors"
	"net/http"

	"otcnet/core/types"
	"otcnet/native/common"
	"otcnet/native/trade"
)

type tradeCreateParams struct {
	Taker   string `json:"taker"`
	OfferID string `json:"offerId"`
	Amount  string `json:"amount"`
	Contact string `json:"contact,omitempty"`
}

type tradeActorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type tradeAcceptParams struct {
	ID      string `json:"id"`
	Caller  string `json:"caller"`
	Contact string `json:"contact"`
}

type tradeFundParams struct {
	ID      string `json:"id"`
	Caller  string `json:"caller"`
	Denom   string `json:"denom"`
	Amount  string `json:"amount"`
	Contact string `json:"contact,omitempty"`
}

type tradeDisputeParams struct {
	ID            string `json:"id"`
	Caller        string `json:"caller"`
	BuyerContact  string `json:"buyerContact"`
	SellerContact string `json:"sellerContact"`
}

type tradeSettleParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
	Winner string `json:"winner"`
}

type tradeIDParams struct {
	ID string `json:"id"`
}

type tradeListParams struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	Offset  int    `json:"offset,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type transitionJSON struct {
	Actor     string `json:"actor"`
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

type tradeJSON struct {
	ID            string           `json:"id"`
	OfferID       string           `json:"offerId"`
	Buyer         string           `json:"buyer"`
	Seller        string           `json:"seller"`
	Arbitrator    string           `json:"arbitrator"`
	Denom         string           `json:"denom"`
	Amount        string           `json:"amount"`
	FiatCurrency  string           `json:"fiatCurrency"`
	CreatedAt     int64            `json:"createdAt"`
	ExpiresAt     int64            `json:"expiresAt"`
	State         string           `json:"state"`
	History       []transitionJSON `json:"history"`
	BuyerContact  string           `json:"buyerContact,omitempty"`
	SellerContact string           `json:"sellerContact,omitempty"`
}

func formatTradeJSON(t *trade.Trade) tradeJSON {
	out := tradeJSON{
		ID:            t.ID,
		OfferID:       t.OfferID,
		Buyer:         formatAddress(t.Buyer),
		Seller:        formatAddress(t.Seller),
		Arbitrator:    formatAddress(t.Arbitrator),
		Denom:         t.Denom,
		Amount:        t.Amount.String(),
		FiatCurrency:  t.FiatCurrency,
		CreatedAt:     t.CreatedAt,
		ExpiresAt:     t.ExpiresAt,
		State:         t.State.String(),
		BuyerContact:  t.ArbitratorBuyerContact,
		SellerContact: t.ArbitratorSellerContact,
	}
	for _, entry := range t.StateHistory {
		out.History = append(out.History, transitionJSON{
			Actor:     formatAddress(entry.Actor),
			State:     entry.State.String(),
			Timestamp: entry.Timestamp,
		})
	}
	return out
}

// writeTradeError maps the trade error taxonomy onto RPC error codes so
// clients can branch without parsing messages.
func writeTradeError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, trade.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeTradeNotFound, "not_found", err.Error())
	case errors.Is(err, trade.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeTradeForbidden, "forbidden", err.Error())
	case errors.Is(err, trade.ErrInvalidTransition),
		errors.Is(err, trade.ErrInsufficientFunding),
		errors.Is(err, trade.ErrExpired),
		errors.Is(err, trade.ErrNotYetExpired),
		errors.Is(err, trade.ErrInvalidWinner),
		errors.Is(err, trade.ErrMissingContact):
		writeError(w, http.StatusConflict, id, codeTradeConflict, "conflict", err.Error())
	case errors.Is(err, trade.ErrAmountOutOfRange):
		writeError(w, http.StatusBadRequest, id, codeTradeInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, trade.ErrNoArbitrator):
		writeError(w, http.StatusConflict, id, codeTradeConflict, "conflict", err.Error())
	case errors.Is(err, trade.ErrCollaborator), errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, id, codeTradeUnavailable, "unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeTradeInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tradeCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	taker, err := parseBech32Address(params.Taker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	created, err := s.node.CreateTrade(taker, params.OfferID, amount, params.Contact)
	if err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatTradeJSON(created))
}

func (s *Server) handleAcceptTrade(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tradeAcceptParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.AcceptTrade(caller, params.ID, params.Contact); err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleFundTrade(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tradeFundParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	coin := types.Coin{Denom: params.Denom, Amount: amount}
	if err := coin.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.FundTrade(caller, params.ID, coin, params.Contact); err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleMarkFiatDeposited(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleTradeTransition(w, req, s.node.MarkFiatDeposited)
}

func (s *Server) handleCancelTrade(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleTradeTransition(w, req, s.node.CancelTrade)
}

func (s *Server) handleReleaseTrade(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleTradeTransition(w, req, s.node.ReleaseTrade)
}

func (s *Server) handleRefundTrade(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleTradeTransition(w, req, s.node.RefundTrade)
}

func (s *Server) handleTradeTransition(w http.ResponseWriter, req *RPCRequest, fn func([20]byte, string) error) {
	var params tradeActorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := fn(caller, params.ID); err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleDisputeTrade(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tradeDisputeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.DisputeTrade(caller, params.ID, params.BuyerContact, params.SellerContact); err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleSettleTrade(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tradeSettleParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	winner, err := parseBech32Address(params.Winner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.SettleTrade(caller, params.ID, winner); err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tradeIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	t, err := s.node.GetTrade(params.ID)
	if err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatTradeJSON(t))
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tradeListParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeTradeInvalidParams, "invalid_params", err.Error())
		return
	}
	trades, err := s.node.TradesByRole(addr, params.Role, params.Offset, params.Limit)
	if err != nil {
		writeTradeError(w, req.ID, err)
		return
	}
	out := make([]tradeJSON, 0, len(trades))
	for _, t := range trades {
		out = append(out, formatTradeJSON(t))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, s.node.RecentEvents())
}
