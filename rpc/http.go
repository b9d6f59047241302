package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"beamledger/ledger"
	"beamledger/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	// Per-source budget for mutating calls.
	mutationsPerMinute = 60
	mutationBurst      = 10

	authTokenEnv = "BEAM_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeRoleForbidden     = -32030
	codeInvalidTier       = -32031
	codeInvalidIdentity   = -32032
	codeDailyCapReached   = -32033
	codeInsufficientFunds = -32034
	codeGrantNotFound     = -32035
	codeAlreadyClaimed    = -32036
	codeNotOwner          = -32037
	codeTransferFailed    = -32038
)

// Server exposes the reward ledger over JSON-RPC 2.0. Mutating methods require
// the bearer token from BEAM_RPC_TOKEN and are rate limited per source.
type Server struct {
	engine *ledger.Engine

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	authToken string
}

func NewServer(engine *ledger.Engine) *Server {
	token := strings.TrimSpace(os.Getenv(authTokenEnv))
	return &Server{
		engine:    engine,
		limiters:  make(map[string]*rate.Limiter),
		authToken: token,
	}
}

// Router builds the HTTP handler: the JSON-RPC endpoint plus health and
// metrics surfaces.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves the router on the supplied address and blocks until the
// listener fails.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
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

// writeLedgerError maps the ledger's sentinel errors to stable RPC codes.
func writeLedgerError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeRoleForbidden, "unauthorized", err.Error())
	case errors.Is(err, ledger.ErrInvalidTier):
		writeError(w, http.StatusBadRequest, id, codeInvalidTier, "invalid_tier", err.Error())
	case errors.Is(err, ledger.ErrInvalidIdentity):
		writeError(w, http.StatusBadRequest, id, codeInvalidIdentity, "invalid_identity", err.Error())
	case errors.Is(err, ledger.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid_score", err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid_amount", err.Error())
	case errors.Is(err, ledger.ErrDailyCapReached):
		writeError(w, http.StatusConflict, id, codeDailyCapReached, "daily_cap_reached", err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, id, codeInsufficientFunds, "insufficient_funds", err.Error())
	case errors.Is(err, ledger.ErrGrantNotFound):
		writeError(w, http.StatusNotFound, id, codeGrantNotFound, "grant_not_found", err.Error())
	case errors.Is(err, ledger.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, id, codeAlreadyClaimed, "already_claimed", err.Error())
	case errors.Is(err, ledger.ErrNotOwner):
		writeError(w, http.StatusForbidden, id, codeNotOwner, "not_owner", err.Error())
	case errors.Is(err, ledger.ErrTransferFailed):
		writeError(w, http.StatusInternalServerError, id, codeTransferFailed, "transfer_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}

// handle is the main request handler that routes to specific handlers.
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
			message = "request body too large"
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

	handler, mutation := s.route(req.Method)
	if handler == nil {
		observability.Rewards().RecordRPC(req.Method, "unknown")
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if mutation {
		if authErr := s.requireAuth(r); authErr != nil {
			observability.Rewards().RecordRPC(req.Method, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		if !s.allowSource(clientSource(r)) {
			observability.Rewards().RecordRPC(req.Method, "throttled")
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
			return
		}
	}
	observability.Rewards().RecordRPC(req.Method, "handled")
	handler(w, r, req)
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

// route resolves a method name to its handler and reports whether the method
// mutates ledger state.
func (s *Server) route(method string) (handlerFunc, bool) {
	switch method {
	case "reward_record":
		return s.handleRecord, true
	case "reward_claim":
		return s.handleClaim, true
	case "reward_setTable":
		return s.handleSetTable, true
	case "reward_setDailyCap":
		return s.handleSetDailyCap, true
	case "reward_setRecorder":
		return s.handleSetRecorder, true
	case "reward_withdraw":
		return s.handleWithdraw, true
	case "reward_fundPool":
		return s.handleFundPool, true
	case "reward_get":
		return s.handleGetGrant, false
	case "reward_list":
		return s.handleListGrants, false
	case "reward_pending":
		return s.handleListPending, false
	case "reward_todayCount":
		return s.handleTodayCount, false
	case "reward_remainingToday":
		return s.handleRemainingToday, false
	case "reward_freeBalance":
		return s.handleFreeBalance, false
	case "reward_totals":
		return s.handleTotals, false
	case "reward_table":
		return s.handleRewardTable, false
	case "reward_balance":
		return s.handleBalance, false
	default:
		return nil, false
	}
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

func (s *Server) allowSource(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/mutationsPerMinute), mutationBurst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
