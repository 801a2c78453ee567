package rfq

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"rfqsettle/core/types"
	"rfqsettle/crypto"
)

const (
	// SaltLength is the size of the reveal salt.
	SaltLength = 16
	// CommitHashLength is the size of the commitment digest.
	CommitHashLength = sha256.Size
	// LiquidityProofLength is the size of the attestation signature.
	LiquidityProofLength = 64

	attestationKeyLength = 32
)

// SignatureVerifier checks a raw signature over msg by pubKey.
type SignatureVerifier interface {
	Verify(pubKey, msg, sig []byte) bool
}

// CommitHash computes the commitment a taker publishes before revealing:
// SHA-256(salt | rfq | taker | quote asset | amount | bond | fee) with the
// three amounts encoded as little-endian uint64. The layout is shared with
// the external attestation signer and must not change.
func CommitHash(salt [SaltLength]byte, rfqID, taker, quoteAsset types.Address, amount, bond, fee uint64) [CommitHashLength]byte {
	h := sha256.New()
	h.Write(salt[:])
	h.Write(rfqID[:])
	h.Write(taker[:])
	h.Write(quoteAsset[:])
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], amount)
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], bond)
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], fee)
	h.Write(buf[:])
	var out [CommitHashLength]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyAttestation checks that ix is a well formed single-signature Ed25519
// verification instruction whose offsets all point into its own data, that
// it was signed by attestationKey over commitHash, and that the signature is
// exactly proof. The signature itself is then checked by verifier.
func VerifyAttestation(ix *crypto.Instruction, attestationKey types.Address, commitHash [CommitHashLength]byte, proof [LiquidityProofLength]byte, verifier SignatureVerifier) error {
	if ix == nil {
		return ErrNoEd25519Instruction
	}
	if ix.ProgramID != crypto.Ed25519ProgramID {
		return ErrInvalidEd25519Program
	}
	data := ix.Data
	if len(data) < crypto.Ed25519MinDataSize {
		return ErrInvalidEd25519Data
	}
	if data[0] != 1 {
		return ErrInvalidSignatureCount
	}
	offsets, err := crypto.ReadEd25519Offsets(data)
	if err != nil {
		return ErrInvalidEd25519Data
	}
	if offsets.SignatureIxIndex != crypto.Ed25519CurrentIxIndex ||
		offsets.PublicKeyIxIndex != crypto.Ed25519CurrentIxIndex ||
		offsets.MessageIxIndex != crypto.Ed25519CurrentIxIndex {
		return ErrInvalidOffset
	}
	if offsets.MessageSize != CommitHashLength {
		return ErrInvalidMessageSize
	}
	sig, ok := slice(data, offsets.SignatureOffset, LiquidityProofLength)
	if !ok {
		return ErrInvalidEd25519Data
	}
	pubKey, ok := slice(data, offsets.PublicKeyOffset, attestationKeyLength)
	if !ok {
		return ErrInvalidEd25519Data
	}
	msg, ok := slice(data, offsets.MessageOffset, CommitHashLength)
	if !ok {
		return ErrInvalidEd25519Data
	}
	if !bytes.Equal(pubKey, attestationKey[:]) {
		return ErrUnauthorizedSigner
	}
	if !bytes.Equal(msg, commitHash[:]) {
		return ErrCommitHashMismatch
	}
	if !bytes.Equal(sig, proof[:]) {
		return ErrLiquidityProofSignatureMismatch
	}
	if verifier == nil {
		return errNilVerifier
	}
	if !verifier.Verify(pubKey, msg, sig) {
		return ErrInvalidLiquidityProof
	}
	return nil
}

func slice(data []byte, offset uint16, size int) ([]byte, bool) {
	start := int(offset)
	if start > len(data) || len(data)-start < size {
		return nil, false
	}
	return data[start : start+size], true
}

// verifyReveal recomputes the commitment of quote from the revealed salt and
// amount.
func verifyReveal(r *RFQ, q *Quote, salt [SaltLength]byte, amount uint64) error {
	expected := CommitHash(salt, r.ID, q.Taker, r.QuoteAsset, amount, r.BondAmount, r.FeeAmount)
	if expected != q.CommitHash {
		return ErrCommitMismatch
	}
	if amount < r.MinQuoteAmount {
		return ErrInvalidQuoteAmount
	}
	return nil
}
