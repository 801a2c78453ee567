package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"rfqsettle/core/events"
	"rfqsettle/core/state"
	"rfqsettle/core/types"
	"rfqsettle/crypto"
	"rfqsettle/native/rfq"
	"rfqsettle/rpc/modules"
	"rfqsettle/services/attestor"
	"rfqsettle/services/indexer"
	"rfqsettle/storage"
)

const testToken = "secret-token"

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	a[31] = b
	return a
}

func testKey(b byte) *crypto.PrivateKey {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b
	}
	key, err := crypto.PrivateKeyFromSeed(seed)
	if err != nil {
		panic(err)
	}
	return key
}

var (
	makerKey    = testKey(0x01)
	takerKey    = testKey(0x02)
	strangerKey = testKey(0x06)

	maker    = makerKey.PubKey().Address()
	taker    = takerKey.PubKey().Address()
	stranger = strangerKey.PubKey().Address()
	treasury = addr(0x05)
	usdc     = addr(0xA1)
	base     = addr(0xA2)
	quote    = addr(0xA3)
)

type testEnv struct {
	t      *testing.T
	server *Server
	engine *rfq.Engine
	index  *indexer.Indexer
	now    int64
	nonce  int
}

var signers = map[types.Address]*crypto.PrivateKey{
	maker:    makerKey,
	taker:    takerKey,
	stranger: strangerKey,
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	key, err := crypto.PrivateKeyFromSeed(make([]byte, 32))
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	idx, err := indexer.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open indexer: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	env := &testEnv{t: t, index: idx}
	manager := state.NewManager(storage.NewMemDB())
	manager.SetEmitter(idx)
	engine := rfq.NewEngine()
	engine.SetStore(manager)
	engine.SetVerifier(crypto.Ed25519Verifier{})
	engine.SetEmitter(events.Fanout{idx})
	engine.SetNowFunc(func() int64 { return env.now })
	engine.SetRegistry(rfq.Registry{
		Admin:             addr(0x09),
		SettlementAsset:   usdc,
		TreasuryOwner:     treasury,
		AttestationKey:    key.PubKey().Address(),
		MaxFacilitatorBps: 5000,
	})
	env.engine = engine
	if opts.AuthToken == "" {
		opts.AuthToken = testToken
	}
	env.server = NewServer(Modules{
		RFQ:    modules.NewRFQModule(engine, manager),
		Ledger: modules.NewLedgerModule(manager, true),
		Attest: modules.NewAttestModule(engine, attestor.New(key, manager)),
		Index:  modules.NewIndexModule(idx),
	}, opts)
	return env
}

type rpcResult struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func marshalParam(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal param: %v", err)
	}
	return raw
}

// signer signs a call with the key of the identity it acts for.
type signer func(req *http.Request, method string, param []byte)

func (e *testEnv) signWith(key *crypto.PrivateKey, at time.Time) signer {
	return func(req *http.Request, method string, param []byte) {
		e.nonce++
		SignRequest(req, key, method, param, at, fmt.Sprintf("n-%d", e.nonce))
	}
}

// actorSigner signs with the key named by the call's actor parameter, if any.
func (e *testEnv) actorSigner() signer {
	return func(req *http.Request, method string, param []byte) {
		m, ok := e.server.methods[method]
		if !ok || m.actor == "" {
			return
		}
		actor, err := actorOf(m.actor, param)
		if err != nil {
			return
		}
		if key, ok := signers[actor]; ok {
			e.signWith(key, time.Now())(req, method, param)
		}
	}
}

func (e *testEnv) post(method string, params interface{}, token string) (*httptest.ResponseRecorder, rpcResult) {
	e.t.Helper()
	return e.send(method, params, token, e.actorSigner())
}

func (e *testEnv) send(method string, params interface{}, token string, sign signer) (*httptest.ResponseRecorder, rpcResult) {
	e.t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	var param json.RawMessage
	if params != nil {
		param = marshalParam(e.t, params)
		req["params"] = []json.RawMessage{param}
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(marshalParam(e.t, req)))
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if sign != nil {
		sign(httpReq, method, param)
	}
	recorder := httptest.NewRecorder()
	e.server.ServeHTTP(recorder, httpReq)
	var out rpcResult
	if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
		e.t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return recorder, out
}

// call performs a request that must succeed and decodes its result into out.
func (e *testEnv) call(method string, params interface{}, out interface{}) {
	e.t.Helper()
	_, res := e.post(method, params, testToken)
	if res.Error != nil {
		e.t.Fatalf("%s: unexpected error %d %s (%v)", method, res.Error.Code, res.Error.Message, res.Error.Data)
	}
	if out != nil {
		if err := json.Unmarshal(res.Result, out); err != nil {
			e.t.Fatalf("%s: decode result: %v", method, err)
		}
	}
}

func (e *testEnv) fund(owner, asset types.Address, amount string) {
	e.t.Helper()
	e.call("ledger_deposit", map[string]string{"owner": owner.Hex(), "asset": asset.Hex(), "amount": amount}, nil)
}

func (e *testEnv) balance(owner, asset types.Address) string {
	e.t.Helper()
	var acc modules.AccountResult
	e.call("ledger_getAccount", map[string]string{"owner": owner.Hex(), "asset": asset.Hex()}, &acc)
	return acc.Balance
}

func (e *testEnv) createDraft() modules.RFQResult {
	e.t.Helper()
	var draft modules.RFQResult
	e.call("rfq_create", map[string]interface{}{
		"maker":          maker.Hex(),
		"uuid":           "6f1c1d4e-5a8b-4c2d-9e3f-0a1b2c3d4e5f",
		"baseAsset":      base.Hex(),
		"quoteAsset":     quote.Hex(),
		"bondAmount":     "100",
		"baseAmount":     "1000",
		"minQuoteAmount": "500",
		"feeAmount":      "10",
		"commitTtl":      60,
		"revealTtl":      60,
		"selectionTtl":   60,
		"fundTtl":        60,
	}, &draft)
	if draft.Status != "draft" {
		e.t.Fatalf("expected draft, got %s", draft.Status)
	}
	return draft
}

func (e *testEnv) createOpen() modules.RFQResult {
	e.t.Helper()
	draft := e.createDraft()
	var opened modules.RFQResult
	e.call("rfq_open", map[string]string{"caller": maker.Hex(), "rfq": draft.ID}, &opened)
	return opened
}

func TestRPCSettlementFlow(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.fund(maker, usdc, "1000")
	env.fund(maker, base, "5000")
	env.fund(taker, usdc, "1000")
	env.fund(taker, quote, "5000")

	r := env.createOpen()
	if r.Status != "open" {
		t.Fatalf("expected open, got %s", r.Status)
	}
	if got := env.balance(maker, usdc); got != "900" {
		t.Fatalf("maker bond not escrowed: %s", got)
	}

	salt := hex.EncodeToString([]byte("0123456789abcdef"))
	var att modules.AttestResult
	env.call("attest_liquidity", map[string]string{
		"rfq": r.ID, "taker": taker.Hex(), "amount": "600", "salt": salt,
	}, &att)

	var committed modules.QuoteResult
	env.call("rfq_commitQuote", map[string]interface{}{
		"caller":         taker.Hex(),
		"rfq":            r.ID,
		"commitHash":     att.CommitHash,
		"liquidityProof": att.LiquidityProof,
		"attestation":    att.Attestation,
	}, &committed)
	if committed.Taker != taker.Hex() {
		t.Fatalf("unexpected taker %s", committed.Taker)
	}

	var listed []modules.QuoteResult
	env.call("rfq_listQuotes", map[string]string{"rfq": r.ID}, &listed)
	if len(listed) != 1 || listed[0].ID != committed.ID {
		t.Fatalf("unexpected quote listing %+v", listed)
	}

	env.now = 70
	var revealed modules.QuoteResult
	env.call("rfq_revealQuote", map[string]string{
		"caller": taker.Hex(), "rfq": r.ID, "salt": salt, "amount": "600",
	}, &revealed)
	if revealed.QuoteAmount == nil || *revealed.QuoteAmount != "600" {
		t.Fatalf("reveal did not record amount: %+v", revealed)
	}

	env.now = 125
	env.call("rfq_selectQuote", map[string]string{
		"caller":           maker.Hex(),
		"rfq":              r.ID,
		"quote":            revealed.ID,
		"makerBaseAccount": rfq.AssociatedAccount(maker, base).Hex(),
	}, nil)

	var fees json.RawMessage
	env.call("rfq_getFees", map[string]string{"rfq": r.ID}, &fees)
	if string(fees) != "null" {
		t.Fatalf("fees reported before settlement: %s", fees)
	}

	env.now = 150
	var settled modules.SettlementResult
	env.call("rfq_completeSettlement", map[string]string{
		"caller":            taker.Hex(),
		"rfq":               r.ID,
		"takerQuoteAccount": rfq.AssociatedAccount(taker, quote).Hex(),
	}, &settled)
	if settled.CompletedAt == nil || *settled.CompletedAt != 150 {
		t.Fatalf("settlement not completed: %+v", settled)
	}

	var final modules.RFQResult
	env.call("rfq_get", map[string]string{"rfq": r.ID}, &final)
	if final.Status != "settled" {
		t.Fatalf("expected settled, got %s", final.Status)
	}
	if got := env.balance(maker, quote); got != "600" {
		t.Fatalf("maker quote balance %s", got)
	}
	if got := env.balance(taker, base); got != "1000" {
		t.Fatalf("taker base balance %s", got)
	}
	if got := env.balance(treasury, usdc); got != "10" {
		t.Fatalf("treasury fee balance %s", got)
	}

	var feeResult modules.FeesResult
	env.call("rfq_getFees", map[string]string{"rfq": r.ID}, &feeResult)
	if feeResult.TreasuryShare != "10" || feeResult.FacilitatorShare != "0" {
		t.Fatalf("unexpected fee split %+v", feeResult)
	}

	var evts []modules.EventResult
	env.call("index_listEvents", map[string]interface{}{"rfq": r.ID}, &evts)
	found := false
	for _, evt := range evts {
		if evt.Type == rfq.EventTypeRFQSettled {
			found = true
		}
	}
	if !found {
		t.Fatalf("settled event missing from index: %+v", evts)
	}

	var summary modules.FeeSummaryResult
	env.call("index_feeSummary", map[string]string{"asset": usdc.Hex()}, &summary)
	if summary.Fees != "10" || summary.TreasuryShare != "10" {
		t.Fatalf("unexpected fee summary %+v", summary)
	}
}

func TestRPCErrorMapping(t *testing.T) {
	env := newTestEnv(t, Options{})

	recorder, res := env.post("rfq_get", map[string]string{"rfq": addr(0x77).Hex()}, "")
	if res.Error == nil || res.Error.Code != modules.CodeNotFound {
		t.Fatalf("expected not found, got %+v", res.Error)
	}
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	data, ok := res.Error.Data.(map[string]interface{})
	if !ok || data["kind"] != "not_found" {
		t.Fatalf("expected kind data, got %v", res.Error.Data)
	}

	env.fund(maker, usdc, "1000")
	env.fund(maker, base, "5000")
	r := env.createOpen()
	_, res = env.post("rfq_cancel", map[string]string{"caller": maker.Hex(), "rfq": r.ID}, "")
	if res.Error == nil || res.Error.Code != modules.CodeState {
		t.Fatalf("expected state error cancelling an open request, got %+v", res.Error)
	}

	_, res = env.post("rfq_closeIgnored", map[string]string{"caller": maker.Hex(), "rfq": r.ID}, "")
	if res.Error == nil {
		t.Fatalf("expected close of an open request to fail")
	}

	_, res = env.post("rfq_create", map[string]string{"maker": "zz"}, "")
	if res.Error == nil || res.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", res.Error)
	}

	_, res = env.post("rfq_create", map[string]string{"bogus": "1"}, "")
	if res.Error == nil || res.Error.Code != codeInvalidParams {
		t.Fatalf("expected unknown fields to be rejected, got %+v", res.Error)
	}

	_, res = env.post("rfq_nope", map[string]string{}, "")
	if res.Error == nil || res.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", res.Error)
	}
}

func TestRPCRejectsMalformedRequests(t *testing.T) {
	env := newTestEnv(t, Options{})

	recorder := httptest.NewRecorder()
	env.server.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader([]byte("{"))))
	var res rpcResult
	if err := json.Unmarshal(recorder.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Error == nil || res.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", res.Error)
	}

	recorder = httptest.NewRecorder()
	env.server.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/rpc", nil))
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestRPCLedgerAdminRequiresToken(t *testing.T) {
	env := newTestEnv(t, Options{})
	params := map[string]string{"owner": maker.Hex(), "asset": usdc.Hex(), "amount": "5"}

	recorder, res := env.post("ledger_deposit", params, "")
	if res.Error == nil || res.Error.Code != codeUnauthorized || recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d %+v", recorder.Code, res.Error)
	}
	_, res = env.post("ledger_deposit", params, "wrong")
	if res.Error == nil || res.Error.Code != codeUnauthorized {
		t.Fatalf("expected invalid credentials, got %+v", res.Error)
	}
	_, res = env.post("ledger_deposit", params, testToken)
	if res.Error != nil {
		t.Fatalf("deposit failed: %+v", res.Error)
	}

	var frozen modules.AccountResult
	env.call("ledger_setFrozen", map[string]interface{}{
		"account": rfq.AssociatedAccount(maker, usdc).Hex(), "frozen": true,
	}, &frozen)
	if !frozen.Frozen {
		t.Fatalf("account not frozen")
	}

	var accounts []modules.AccountResult
	env.call("ledger_listAccounts", map[string]string{"owner": maker.Hex()}, &accounts)
	if len(accounts) != 1 || accounts[0].Balance != "5" {
		t.Fatalf("unexpected accounts %+v", accounts)
	}
}

func TestRPCLedgerAdminDisabled(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	server := NewServer(Modules{Ledger: modules.NewLedgerModule(manager, false)}, Options{AuthToken: testToken})
	env := &testEnv{t: t, server: server}
	_, res := env.post("ledger_deposit", map[string]string{"owner": maker.Hex(), "asset": usdc.Hex(), "amount": "5"}, testToken)
	if res.Error == nil || res.Error.Code != modules.CodeForbidden {
		t.Fatalf("expected forbidden, got %+v", res.Error)
	}
	_, res = env.post("rfq_get", map[string]string{"rfq": addr(1).Hex()}, "")
	if res.Error == nil || res.Error.Message != "module unavailable" {
		t.Fatalf("expected unavailable module, got %+v", res.Error)
	}
}

func TestRPCRateLimitsWrites(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerSec: 0.001, RateLimitBurst: 1})
	params := map[string]string{"caller": maker.Hex(), "rfq": addr(0x42).Hex()}

	_, res := env.post("rfq_open", params, "")
	if res.Error == nil || res.Error.Code == codeRateLimited {
		t.Fatalf("first write should reach the engine, got %+v", res.Error)
	}
	recorder, res := env.post("rfq_open", params, "")
	if res.Error == nil || res.Error.Code != codeRateLimited || recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("expected throttling, got %d %+v", recorder.Code, res.Error)
	}
	_, res = env.post("rfq_get", map[string]string{"rfq": addr(0x42).Hex()}, "")
	if res.Error == nil || res.Error.Code != modules.CodeNotFound {
		t.Fatalf("reads must not be throttled, got %+v", res.Error)
	}
}

func TestRPCRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	env := newTestEnv(t, Options{})
	env.post("rfq_get", map[string]string{"rfq": addr(0x77).Hex()}, "")

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "rfq_get" || span.Status().Code != codes.Error {
		t.Fatalf("unexpected span %s status %v", span.Name(), span.Status())
	}
	var service string
	for _, attr := range span.Attributes() {
		if attr.Key == "rpc.service" {
			service = attr.Value.AsString()
		}
	}
	if service != "rfq" {
		t.Fatalf("expected rfq service attribute, got %q", service)
	}
}

func TestRPCRequiresCallerSignature(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.fund(maker, usdc, "1000")
	env.fund(maker, base, "5000")
	draft := env.createDraft()

	lower := map[string]string{"caller": maker.Hex(), "rfq": draft.ID, "minQuoteAmount": "1"}
	open := map[string]string{"caller": maker.Hex(), "rfq": draft.ID}
	expectRejected := func(name string, recorder *httptest.ResponseRecorder, res rpcResult) {
		t.Helper()
		if res.Error == nil || res.Error.Code != codeUnauthorized || recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected unauthorized, got %d %+v", name, recorder.Code, res.Error)
		}
	}

	recorder, res := env.send("rfq_update", lower, "", nil)
	expectRejected("unsigned update", recorder, res)
	recorder, res = env.send("rfq_open", open, testToken, nil)
	expectRejected("admin token is not a caller signature", recorder, res)
	recorder, res = env.send("rfq_update", lower, "", env.signWith(strangerKey, time.Now()))
	expectRejected("signed by another key", recorder, res)
	recorder, res = env.send("rfq_open", open, "", env.signWith(makerKey, time.Now().Add(-10*time.Minute)))
	expectRejected("stale signature", recorder, res)

	var current modules.RFQResult
	env.call("rfq_get", map[string]string{"rfq": draft.ID}, &current)
	if current.Status != "draft" || current.MinQuoteAmount != "500" {
		t.Fatalf("rejected calls must not change the request: %+v", current)
	}
	if got := env.balance(maker, usdc); got != "1000" {
		t.Fatalf("maker bond moved without a signature: %s", got)
	}

	sign := env.signWith(makerKey, time.Now())
	replayed := func(req *http.Request, method string, param []byte) {
		SignRequest(req, makerKey, method, param, time.Unix(time.Now().Unix(), 0), "fixed-nonce")
	}
	_, res = env.send("rfq_open", open, "", replayed)
	if res.Error != nil {
		t.Fatalf("signed open failed: %+v", res.Error)
	}
	recorder, res = env.send("rfq_open", open, "", replayed)
	if res.Error == nil || res.Error.Code != codeUnauthorized || res.Error.Data != errNonceReused.Error() {
		t.Fatalf("expected nonce replay to be rejected, got %d %+v", recorder.Code, res.Error)
	}
	_, res = env.send("rfq_open", open, "", sign)
	if res.Error == nil || res.Error.Code != modules.CodeState {
		t.Fatalf("fresh signature should reach the engine, got %+v", res.Error)
	}
	if got := env.balance(maker, usdc); got != "900" {
		t.Fatalf("maker bond should be escrowed once, got %s", got)
	}
}

func TestCallerSignatureRequiresActor(t *testing.T) {
	env := newTestEnv(t, Options{})
	recorder, res := env.send("rfq_open", map[string]string{"rfq": addr(0x42).Hex()}, "", env.signWith(makerKey, time.Now()))
	if res.Error == nil || res.Error.Code != codeInvalidParams || recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected missing caller to be rejected, got %d %+v", recorder.Code, res.Error)
	}
}

func TestNonceStoreEvictsExpired(t *testing.T) {
	store := newNonceStore(time.Minute, 2)
	start := time.Unix(1_700_000_000, 0)
	if !store.Add("a", start) || store.Add("a", start.Add(time.Second)) {
		t.Fatalf("duplicate nonce must be rejected inside the window")
	}
	if !store.Add("a", start.Add(2*time.Minute)) {
		t.Fatalf("expired nonce should be forgotten")
	}
	store.Add("b", start.Add(2*time.Minute))
	store.Add("c", start.Add(2*time.Minute))
	if store.order.Len() != 2 {
		t.Fatalf("capacity not enforced: %d", store.order.Len())
	}
}
