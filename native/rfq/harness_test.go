package rfq

import (
	"errors"
	"testing"

	"rfqsettle/core/events"
	"rfqsettle/core/types"
	"rfqsettle/crypto"
)

func testAddr(b byte) types.Address {
	var a types.Address
	a[0] = b
	a[31] = b
	return a
}

var (
	makerAddr       = testAddr(0x01)
	takerAAddr      = testAddr(0x02)
	takerBAddr      = testAddr(0x03)
	facilitatorAddr = testAddr(0x04)
	treasuryOwner   = testAddr(0x05)
	strangerAddr    = testAddr(0x06)
	usdcAsset       = testAddr(0xA1)
	baseAsset       = testAddr(0xA2)
	quoteAsset      = testAddr(0xA3)
)

type harness struct {
	t        *testing.T
	engine   *Engine
	store    *mockStore
	recorder *events.Recorder
	key      *crypto.PrivateKey
	now      int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	key, err := crypto.PrivateKeyFromSeed(make([]byte, 32))
	if err != nil {
		t.Fatalf("attestation key: %v", err)
	}
	h := &harness{t: t, store: newMockStore(), recorder: &events.Recorder{}, key: key}
	h.engine = NewEngine()
	h.engine.SetStore(h.store)
	h.engine.SetEmitter(h.recorder)
	h.engine.SetVerifier(crypto.Ed25519Verifier{})
	h.engine.SetNowFunc(func() int64 { return h.now })
	h.engine.SetRegistry(Registry{
		Admin:             testAddr(0x09),
		SettlementAsset:   usdcAsset,
		TreasuryOwner:     treasuryOwner,
		AttestationKey:    key.PubKey().Address(),
		MaxFacilitatorBps: 5000,
	})
	h.fund(makerAddr, usdcAsset, 1_000)
	h.fund(makerAddr, baseAsset, 5_000)
	for _, taker := range []types.Address{takerAAddr, takerBAddr} {
		h.fund(taker, usdcAsset, 1_000)
		h.fund(taker, quoteAsset, 5_000)
	}
	return h
}

func (h *harness) fund(owner, asset types.Address, amount uint64) types.Address {
	id := AssociatedAccount(owner, asset)
	h.store.state.accounts[id] = &types.Account{ID: id, Owner: owner, Asset: asset, Balance: amount}
	return id
}

func (h *harness) balance(owner, asset types.Address) uint64 {
	acc, ok := h.store.state.accounts[AssociatedAccount(owner, asset)]
	if !ok {
		return 0
	}
	return acc.Balance
}

func (h *harness) vaultBalance(id types.Address) uint64 {
	acc, ok := h.store.state.accounts[id]
	if !ok {
		return 0
	}
	return acc.Balance
}

func defaultParams() CreateParams {
	return CreateParams{
		UUID:                [16]byte{1, 2, 3},
		BaseAsset:           baseAsset,
		QuoteAsset:          quoteAsset,
		BondAmount:          100,
		BaseAmount:          1000,
		MinQuoteAmount:      500,
		FeeAmount:           10,
		CommitTTL:           60,
		RevealTTL:           60,
		SelectionTTL:        60,
		FundTTL:             60,
		MakerPaymentAccount: AssociatedAccount(makerAddr, usdcAsset),
	}
}

func (h *harness) openRFQ(params CreateParams) *RFQ {
	h.t.Helper()
	r, err := h.engine.CreateRFQ(makerAddr, params)
	if err != nil {
		h.t.Fatalf("create rfq: %v", err)
	}
	opened, err := h.engine.OpenRFQ(makerAddr, r.ID)
	if err != nil {
		h.t.Fatalf("open rfq: %v", err)
	}
	return opened
}

func saltFor(taker types.Address) [SaltLength]byte {
	var salt [SaltLength]byte
	copy(salt[:], taker[:SaltLength])
	salt[SaltLength-1] = 0x5A
	return salt
}

func (h *harness) commitParams(r *RFQ, taker types.Address, amount uint64) CommitParams {
	hash := CommitHash(saltFor(taker), r.ID, taker, r.QuoteAsset, amount, r.BondAmount, r.FeeAmount)
	ix, sig := crypto.SignEd25519Instruction(h.key, hash[:])
	return CommitParams{
		CommitHash:     hash,
		LiquidityProof: sig,
		PaymentAccount: AssociatedAccount(taker, usdcAsset),
		Attestation:    &ix,
	}
}

func (h *harness) commit(r *RFQ, taker types.Address, amount uint64) *Quote {
	h.t.Helper()
	q, err := h.engine.CommitQuote(taker, r.ID, h.commitParams(r, taker, amount))
	if err != nil {
		h.t.Fatalf("commit quote: %v", err)
	}
	return q
}

func (h *harness) reveal(r *RFQ, taker types.Address, amount uint64) *Quote {
	h.t.Helper()
	q, err := h.engine.RevealQuote(taker, r.ID, saltFor(taker), amount)
	if err != nil {
		h.t.Fatalf("reveal quote: %v", err)
	}
	return q
}

func (h *harness) rfq(id types.Address) *RFQ {
	h.t.Helper()
	r, err := h.engine.RFQ(id)
	if err != nil {
		h.t.Fatalf("load rfq: %v", err)
	}
	return r
}

func (h *harness) tracker(id types.Address) *SlashedBondsTracker {
	h.t.Helper()
	tracker, err := h.engine.SlashedBonds(id)
	if err != nil {
		h.t.Fatalf("load tracker: %v", err)
	}
	return tracker
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
