package attestor

import (
	"errors"
	"testing"

	"rfqsettle/core/types"
	"rfqsettle/crypto"
	"rfqsettle/native/rfq"
)

type fakeLedger map[types.Address]*types.Account

func (f fakeLedger) Account(id types.Address) (*types.Account, bool, error) {
	acc, ok := f[id]
	return acc, ok, nil
}

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func TestAttestProducesVerifiableCommitment(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	taker, quote := addr(0x02), addr(0xA3)
	ledger := fakeLedger{rfq.AssociatedAccount(taker, quote): {Owner: taker, Asset: quote, Balance: 600}}
	a := New(key, ledger)

	req := Request{RFQ: addr(0x10), Taker: taker, QuoteAsset: quote, Amount: 600, BondAmount: 100, FeeAmount: 10, Salt: [rfq.SaltLength]byte{9}}
	att, err := a.Attest(req)
	if err != nil {
		t.Fatalf("attest: %v", err)
	}
	want := rfq.CommitHash(req.Salt, req.RFQ, taker, quote, 600, 100, 10)
	if att.CommitHash != want {
		t.Fatalf("unexpected commit hash")
	}
	err = rfq.VerifyAttestation(&att.Instruction, a.Address(), att.CommitHash, att.LiquidityProof, crypto.Ed25519Verifier{})
	if err != nil {
		t.Fatalf("attestation should verify: %v", err)
	}
}

func TestAttestChecksLiquidity(t *testing.T) {
	key, _ := crypto.GeneratePrivateKey()
	taker, quote, other := addr(0x02), addr(0xA3), addr(0xA4)
	custom := addr(0x77)
	ledger := fakeLedger{
		rfq.AssociatedAccount(taker, quote): {Owner: taker, Asset: quote, Balance: 500},
		custom:                              {Owner: addr(0x03), Asset: quote, Balance: 9000},
		rfq.AssociatedAccount(taker, other): {Owner: taker, Asset: other, Balance: 9000},
	}
	a := New(key, ledger)
	base := Request{RFQ: addr(0x10), Taker: taker, QuoteAsset: quote, Amount: 600}

	cases := []struct {
		name    string
		mutate  func(*Request)
		wantErr error
	}{
		{"insufficient", func(r *Request) {}, ErrInsufficientLiquidity},
		{"foreign owner", func(r *Request) { r.LiquidityAccount = custom }, ErrLiquidityOwner},
		{"wrong asset", func(r *Request) { r.LiquidityAccount = rfq.AssociatedAccount(taker, other) }, ErrLiquidityAsset},
		{"missing", func(r *Request) { r.LiquidityAccount = addr(0x99) }, ErrLiquidityAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			if _, err := a.Attest(req); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if _, err := New(nil, ledger).Attest(base); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}
