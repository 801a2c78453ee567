package rfq

import (
	"encoding/binary"
	"testing"

	"rfqsettle/core/types"
	"rfqsettle/crypto"
)

func TestCommitHashBindsEveryField(t *testing.T) {
	salt := [SaltLength]byte{1, 2, 3, 4}
	rfqID, taker, asset := testAddr(0x10), testAddr(0x11), testAddr(0x12)
	base := CommitHash(salt, rfqID, taker, asset, 600, 100, 10)
	if base != CommitHash(salt, rfqID, taker, asset, 600, 100, 10) {
		t.Fatalf("hash must be deterministic")
	}
	for i := range salt {
		perturbed := salt
		perturbed[i] ^= 0x01
		if CommitHash(perturbed, rfqID, taker, asset, 600, 100, 10) == base {
			t.Fatalf("salt byte %d not bound", i)
		}
	}
	flip := func(a types.Address, i int) types.Address {
		a[i] ^= 0x80
		return a
	}
	for i := 0; i < types.AddressLength; i++ {
		if CommitHash(salt, flip(rfqID, i), taker, asset, 600, 100, 10) == base {
			t.Fatalf("rfq byte %d not bound", i)
		}
		if CommitHash(salt, rfqID, flip(taker, i), asset, 600, 100, 10) == base {
			t.Fatalf("taker byte %d not bound", i)
		}
		if CommitHash(salt, rfqID, taker, flip(asset, i), 600, 100, 10) == base {
			t.Fatalf("asset byte %d not bound", i)
		}
	}
	for shift := 0; shift < 64; shift += 8 {
		delta := uint64(1) << shift
		if CommitHash(salt, rfqID, taker, asset, 600^delta, 100, 10) == base {
			t.Fatalf("amount byte %d not bound", shift/8)
		}
		if CommitHash(salt, rfqID, taker, asset, 600, 100^delta, 10) == base {
			t.Fatalf("bond byte %d not bound", shift/8)
		}
		if CommitHash(salt, rfqID, taker, asset, 600, 100, 10^delta) == base {
			t.Fatalf("fee byte %d not bound", shift/8)
		}
	}
	// amount, bond and fee are not interchangeable.
	if CommitHash(salt, rfqID, taker, asset, 100, 600, 10) == base {
		t.Fatalf("field order not bound")
	}
}

type attestationFixture struct {
	key   *crypto.PrivateKey
	hash  [CommitHashLength]byte
	proof [LiquidityProofLength]byte
	ix    crypto.Instruction
}

func newAttestationFixture(t *testing.T) attestationFixture {
	t.Helper()
	key, err := crypto.PrivateKeyFromSeed(make([]byte, 32))
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	hash := CommitHash([SaltLength]byte{7}, testAddr(1), testAddr(2), testAddr(3), 600, 100, 10)
	ix, sig := crypto.SignEd25519Instruction(key, hash[:])
	return attestationFixture{key: key, hash: hash, proof: sig, ix: ix}
}

func (f attestationFixture) verify(ix *crypto.Instruction) error {
	return VerifyAttestation(ix, f.key.PubKey().Address(), f.hash, f.proof, crypto.Ed25519Verifier{})
}

func cloneInstruction(ix crypto.Instruction) crypto.Instruction {
	return crypto.Instruction{ProgramID: ix.ProgramID, Data: append([]byte(nil), ix.Data...)}
}

func TestVerifyAttestationAccepts(t *testing.T) {
	f := newAttestationFixture(t)
	if err := f.verify(&f.ix); err != nil {
		t.Fatalf("expected valid attestation, got %v", err)
	}
}

func TestVerifyAttestationRejections(t *testing.T) {
	f := newAttestationFixture(t)
	putU16 := func(data []byte, pos int, v uint16) { binary.LittleEndian.PutUint16(data[pos:], v) }
	cases := []struct {
		name   string
		mutate func(ix *crypto.Instruction) *crypto.Instruction
		want   error
	}{
		{"missing", func(*crypto.Instruction) *crypto.Instruction { return nil }, ErrNoEd25519Instruction},
		{"wrong program", func(ix *crypto.Instruction) *crypto.Instruction {
			ix.ProgramID = testAddr(0xEE)
			return ix
		}, ErrInvalidEd25519Program},
		{"short data", func(ix *crypto.Instruction) *crypto.Instruction {
			ix.Data = ix.Data[:crypto.Ed25519MinDataSize-1]
			return ix
		}, ErrInvalidEd25519Data},
		{"two signatures", func(ix *crypto.Instruction) *crypto.Instruction {
			ix.Data[0] = 2
			return ix
		}, ErrInvalidSignatureCount},
		{"signature elsewhere", func(ix *crypto.Instruction) *crypto.Instruction {
			putU16(ix.Data, 4, 0)
			return ix
		}, ErrInvalidOffset},
		{"pubkey elsewhere", func(ix *crypto.Instruction) *crypto.Instruction {
			putU16(ix.Data, 8, 1)
			return ix
		}, ErrInvalidOffset},
		{"message elsewhere", func(ix *crypto.Instruction) *crypto.Instruction {
			putU16(ix.Data, 14, 0)
			return ix
		}, ErrInvalidOffset},
		{"message size", func(ix *crypto.Instruction) *crypto.Instruction {
			putU16(ix.Data, 12, 31)
			return ix
		}, ErrInvalidMessageSize},
		{"signature out of bounds", func(ix *crypto.Instruction) *crypto.Instruction {
			putU16(ix.Data, 2, uint16(len(ix.Data)-10))
			return ix
		}, ErrInvalidEd25519Data},
		{"message out of bounds", func(ix *crypto.Instruction) *crypto.Instruction {
			putU16(ix.Data, 10, 0xFFF0)
			return ix
		}, ErrInvalidEd25519Data},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ix := cloneInstruction(f.ix)
			if err := f.verify(tc.mutate(&ix)); err != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestVerifyAttestationBindings(t *testing.T) {
	f := newAttestationFixture(t)

	other, _ := crypto.PrivateKeyFromSeed(append(make([]byte, 31), 1))
	foreign, foreignSig := crypto.SignEd25519Instruction(other, f.hash[:])
	if err := VerifyAttestation(&foreign, f.key.PubKey().Address(), f.hash, foreignSig, crypto.Ed25519Verifier{}); err != ErrUnauthorizedSigner {
		t.Fatalf("expected ErrUnauthorizedSigner, got %v", err)
	}

	otherHash := f.hash
	otherHash[0] ^= 0xFF
	if err := VerifyAttestation(&f.ix, f.key.PubKey().Address(), otherHash, f.proof, crypto.Ed25519Verifier{}); err != ErrCommitHashMismatch {
		t.Fatalf("expected ErrCommitHashMismatch, got %v", err)
	}

	otherProof := f.proof
	otherProof[10] ^= 0xFF
	if err := VerifyAttestation(&f.ix, f.key.PubKey().Address(), f.hash, otherProof, crypto.Ed25519Verifier{}); err != ErrLiquidityProofSignatureMismatch {
		t.Fatalf("expected ErrLiquidityProofSignatureMismatch, got %v", err)
	}

	// A forged signature that matches the submitted proof still fails the
	// cryptographic check.
	forged := f.proof
	forged[5] ^= 0x01
	bad := crypto.NewEd25519Instruction(f.key.PubKey().PublicKey, f.hash[:], forged[:])
	if err := VerifyAttestation(&bad, f.key.PubKey().Address(), f.hash, forged, crypto.Ed25519Verifier{}); err != ErrInvalidLiquidityProof {
		t.Fatalf("expected ErrInvalidLiquidityProof, got %v", err)
	}
}

func TestVerifyRevealChecksFloorAfterBinding(t *testing.T) {
	r := &RFQ{ID: testAddr(1), QuoteAsset: testAddr(3), BondAmount: 100, FeeAmount: 10, MinQuoteAmount: 500}
	salt := [SaltLength]byte{9}
	q := &Quote{Taker: testAddr(2), CommitHash: CommitHash(salt, r.ID, testAddr(2), r.QuoteAsset, 400, 100, 10)}
	if err := verifyReveal(r, q, salt, 401); err != ErrCommitMismatch {
		t.Fatalf("expected ErrCommitMismatch, got %v", err)
	}
	if err := verifyReveal(r, q, salt, 400); err != ErrInvalidQuoteAmount {
		t.Fatalf("expected ErrInvalidQuoteAmount, got %v", err)
	}
	q.CommitHash = CommitHash(salt, r.ID, testAddr(2), r.QuoteAsset, 500, 100, 10)
	if err := verifyReveal(r, q, salt, 500); err != nil {
		t.Fatalf("expected valid reveal at floor, got %v", err)
	}
}
