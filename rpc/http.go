package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"rfqsettle/observability"
	"rfqsettle/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	tracerName      = "rfqsettle/rpc"

	// TokenEnv names the environment variable holding the admin bearer token.
	TokenEnv = "RFQ_RPC_TOKEN"
	// JWTSecretEnv names the variable holding the HMAC secret for admin JWTs.
	JWTSecretEnv = "RFQ_RPC_JWT_SECRET"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
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

// Modules groups the handlers the server dispatches to. Nil modules answer
// with a module unavailable error.
type Modules struct {
	RFQ    *modules.RFQModule
	Ledger *modules.LedgerModule
	Attest *modules.AttestModule
	Index  *modules.IndexModule
}

// Options tunes authentication and throttling.
type Options struct {
	// AuthToken guards administrative methods. Empty reads TokenEnv.
	AuthToken string
	// JWTSecret additionally accepts HS256 bearer tokens carrying the admin
	// scope. Empty reads JWTSecretEnv.
	JWTSecret string
	JWTIssuer string
	// RateLimitPerSec bounds state-changing calls per client source. Zero
	// disables throttling.
	RateLimitPerSec float64
	RateLimitBurst  int
	// SignatureSkew bounds the age of caller signatures. Zero means two
	// minutes.
	SignatureSkew time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

type methodFunc func(json.RawMessage) (interface{}, *modules.ModuleError)

type method struct {
	module string
	write  bool
	admin  bool
	// actor names the parameter holding the identity the call acts for.
	// Such calls must carry that identity's signature.
	actor string
	call  methodFunc
}

type Server struct {
	methods   map[string]method
	authToken string
	jwtSecret []byte
	jwtIssuer string
	limit     rate.Limit
	burst     int
	logger    *slog.Logger
	callers   *callerAuth

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(mods Modules, opts Options) *Server {
	token := strings.TrimSpace(opts.AuthToken)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(TokenEnv))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	secret := strings.TrimSpace(opts.JWTSecret)
	if secret == "" {
		secret = strings.TrimSpace(os.Getenv(JWTSecretEnv))
	}
	s := &Server{
		authToken: token,
		jwtSecret: []byte(secret),
		jwtIssuer: strings.TrimSpace(opts.JWTIssuer),
		limit:     rate.Limit(opts.RateLimitPerSec),
		burst:     burst,
		logger:    logger,
		callers:   newCallerAuth(opts.SignatureSkew, opts.Now),
		limiters:  make(map[string]*rate.Limiter),
	}
	s.methods = buildMethods(mods)
	return s
}

func bind[T any](fn func(json.RawMessage) (T, *modules.ModuleError)) methodFunc {
	return func(raw json.RawMessage) (interface{}, *modules.ModuleError) {
		out, modErr := fn(raw)
		if modErr != nil {
			return nil, modErr
		}
		return out, nil
	}
}

func buildMethods(m Modules) map[string]method {
	r, l, a, x := m.RFQ, m.Ledger, m.Attest, m.Index
	write := func(fn methodFunc) method { return method{module: "rfq", write: true, actor: "caller", call: fn} }
	read := func(module string, fn methodFunc) method { return method{module: module, call: fn} }
	return map[string]method{
		"rfq_create":                    {module: "rfq", write: true, actor: "maker", call: bind(r.Create)},
		"rfq_update":                    write(bind(r.Update)),
		"rfq_cancel":                    write(bind(r.Cancel)),
		"rfq_open":                      write(bind(r.Open)),
		"rfq_setFacilitator":            write(bind(r.SetFacilitator)),
		"rfq_commitQuote":               write(bind(r.CommitQuote)),
		"rfq_setQuoteFacilitator":       write(bind(r.SetQuoteFacilitator)),
		"rfq_revealQuote":               write(bind(r.RevealQuote)),
		"rfq_selectQuote":               write(bind(r.SelectQuote)),
		"rfq_completeSettlement":        write(bind(r.CompleteSettlement)),
		"rfq_closeExpired":              write(bind(r.CloseExpired)),
		"rfq_closeIgnored":              write(bind(r.CloseIgnored)),
		"rfq_closeIncomplete":           write(bind(r.CloseIncomplete)),
		"rfq_refundQuoteBonds":          write(bind(r.RefundQuoteBonds)),
		"rfq_withdrawFacilitatorReward": write(bind(r.WithdrawFacilitatorReward)),
		"rfq_get":                       read("rfq", bind(r.Get)),
		"rfq_getQuote":                  read("rfq", bind(r.GetQuote)),
		"rfq_listQuotes":                read("rfq", bind(r.ListQuotes)),
		"rfq_getSettlement":             read("rfq", bind(r.GetSettlement)),
		"rfq_getDeadlines":              read("rfq", bind(r.GetDeadlines)),
		"rfq_getSlashedBonds":           read("rfq", bind(r.GetSlashedBonds)),
		"rfq_getFees":                   read("rfq", bind(r.GetFees)),
		"ledger_getAccount":             read("ledger", bind(l.GetAccount)),
		"ledger_listAccounts":           read("ledger", bind(l.ListAccounts)),
		"ledger_deposit":                {module: "ledger", write: true, admin: true, call: bind(l.Deposit)},
		"ledger_setFrozen":              {module: "ledger", write: true, admin: true, call: bind(l.SetFrozen)},
		"attest_liquidity":              {module: "attest", write: true, actor: "taker", call: bind(a.Liquidity)},
		"index_listEvents":              read("index", bind(x.ListEvents)),
		"index_feeSummary":              read("index", bind(x.FeeSummary)),
	}
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

func writeModuleError(w http.ResponseWriter, id interface{}, err *modules.ModuleError) {
	if err == nil {
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", nil)
		return
	}
	writeError(w, err.HTTPStatus, id, err.Code, err.Message, err.Data)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// statusRecorder captures the JSON-RPC code written for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
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
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(r.Context(), req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.service", m.module),
			attribute.String("rpc.method", req.Method),
		))
	defer span.End()

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(rec, r.WithContext(ctx), req, m)
	span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
	if rec.status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(rec.status))
	}
	observability.ModuleMetrics().Observe(m.module, req.Method, rec.status, time.Since(start))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest, m method) {
	if m.admin {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	if m.write && !s.allowSource(clientSource(r)) {
		observability.ModuleMetrics().RecordThrottle(m.module, "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single parameter object", nil)
		return
	}
	var param json.RawMessage
	if len(req.Params) == 1 {
		param = req.Params[0]
	}
	if m.actor != "" {
		actor, err := actorOf(m.actor, param)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		if err := s.callers.verify(r, req.Method, actor, param); err != nil {
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "caller signature rejected", err.Error())
			return
		}
	}
	result, modErr := m.call(param)
	if modErr != nil {
		if modErr.HTTPStatus >= http.StatusInternalServerError {
			s.logger.Error("rpc method failed", slog.String("method", req.Method), slog.String("error", modErr.Message))
		}
		writeModuleError(w, req.ID, modErr)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) allowSource(source string) bool {
	if s.limit <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[source] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if candidate := strings.TrimSpace(parts[0]); candidate != "" {
			return candidate
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
