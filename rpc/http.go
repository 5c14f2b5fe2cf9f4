package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"otcnet/core"
	"otcnet/crypto"
	"otcnet/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// AuthTokenEnv names the environment variable carrying the bearer token
	// required by mutating methods.
	AuthTokenEnv = "OTC_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeUnauthorized   = -32001
	codeServerError    = -32000

	codeTradeInvalidParams = -32021
	codeTradeNotFound      = -32022
	codeTradeForbidden     = -32023
	codeTradeConflict      = -32024
	codeTradeInternal      = -32025
	codeTradeUnavailable   = -32026
)

// Server exposes the node over JSON-RPC. Query methods are open; every
// mutating method requires the configured bearer token.
type Server struct {
	node      *core.Node
	authToken string
	metrics   *metrics.TradeMetrics
}

// NewServer constructs a server over the supplied node, reading the auth token
// from the environment.
func NewServer(node *core.Node) *Server {
	return &Server{
		node:      node,
		authToken: strings.TrimSpace(os.Getenv(AuthTokenEnv)),
		metrics:   metrics.Trade(),
	}
}

// SetAuthToken overrides the bearer token, primarily used in tests.
func (s *Server) SetAuthToken(token string) {
	s.authToken = strings.TrimSpace(token)
}

// Handler returns the HTTP handler serving the RPC endpoint and the Prometheus
// scrape endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves the RPC endpoint on addr until the listener fails.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	s.metrics.ObserveRPCRequest(req.Method, "received")

	switch req.Method {
	case "otc_createTrade":
		s.authed(w, r, req, s.handleCreateTrade)
	case "otc_acceptTrade":
		s.authed(w, r, req, s.handleAcceptTrade)
	case "otc_fundTrade":
		s.authed(w, r, req, s.handleFundTrade)
	case "otc_markFiatDeposited":
		s.authed(w, r, req, s.handleMarkFiatDeposited)
	case "otc_cancelTrade":
		s.authed(w, r, req, s.handleCancelTrade)
	case "otc_releaseTrade":
		s.authed(w, r, req, s.handleReleaseTrade)
	case "otc_refundTrade":
		s.authed(w, r, req, s.handleRefundTrade)
	case "otc_disputeTrade":
		s.authed(w, r, req, s.handleDisputeTrade)
	case "otc_settleTrade":
		s.authed(w, r, req, s.handleSettleTrade)
	case "otc_getTrade":
		s.handleGetTrade(w, r, req)
	case "otc_listTrades":
		s.handleListTrades(w, r, req)
	case "otc_recentEvents":
		s.handleRecentEvents(w, r, req)
	case "otc_getBalance":
		s.handleGetBalance(w, r, req)
	case "otc_burnedTotal":
		s.handleBurnedTotal(w, r, req)
	case "otc_getProfile":
		s.handleGetProfile(w, r, req)
	case "otc_getVolume":
		s.handleGetVolume(w, r, req)
	case "offer_create":
		s.authed(w, r, req, s.handleOfferCreate)
	case "offer_get":
		s.handleOfferGet(w, r, req)
	case "hub_getParams":
		s.handleHubGetParams(w, r, req)
	case "hub_setParams":
		s.authed(w, r, req, s.handleHubSetParams)
	case "arb_register":
		s.authed(w, r, req, s.handleArbitratorRegister)
	case "arb_remove":
		s.authed(w, r, req, s.handleArbitratorRemove)
	case "arb_list":
		s.handleArbitratorList(w, r, req)
	case "swap_setRate":
		s.authed(w, r, req, s.handleSwapSetRate)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) authed(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	fn(w, r, req)
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseBech32Address(value string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	if decoded.Prefix() != crypto.OTCPrefix {
		return out, fmt.Errorf("address must use the %q prefix", crypto.OTCPrefix)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.OTCPrefix, addr[:]).String()
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}
