// Package attestor issues liquidity attestations for sealed quotes. A taker
// asks for an attestation before committing; the attestor checks the quoted
// amount is available in the taker's quote asset account and signs the
// commitment hash.
package attestor

import (
	"errors"
	"fmt"

	"rfqsettle/core/types"
	"rfqsettle/crypto"
	"rfqsettle/native/rfq"
)

var (
	ErrNoKey                 = errors.New("attestor: signing key not configured")
	ErrLiquidityAccount      = errors.New("attestor: liquidity account not found")
	ErrLiquidityOwner        = errors.New("attestor: liquidity account not owned by taker")
	ErrLiquidityAsset        = errors.New("attestor: liquidity account holds a different asset")
	ErrInsufficientLiquidity = errors.New("attestor: insufficient liquidity for quoted amount")
)

// Ledger exposes the balances the attestor inspects.
type Ledger interface {
	Account(id types.Address) (*types.Account, bool, error)
}

// Request carries the sealed quote terms. The salt never leaves the taker
// except through this call.
type Request struct {
	RFQ              types.Address
	Taker            types.Address
	QuoteAsset       types.Address
	Amount           uint64
	BondAmount       uint64
	FeeAmount        uint64
	Salt             [rfq.SaltLength]byte
	LiquidityAccount types.Address
}

// Attestation is the material a taker submits with its commit.
type Attestation struct {
	CommitHash     [rfq.CommitHashLength]byte
	LiquidityProof [rfq.LiquidityProofLength]byte
	Instruction    crypto.Instruction
}

// Attestor signs liquidity attestations with the registry attestation key.
// It is safe for concurrent use when the ledger is.
type Attestor struct {
	key    *crypto.PrivateKey
	ledger Ledger
}

// New returns an attestor signing with key and reading balances from ledger.
// A nil key yields an attestor whose Attest fails with ErrNoKey.
func New(key *crypto.PrivateKey, ledger Ledger) *Attestor {
	return &Attestor{key: key, ledger: ledger}
}

// Address returns the identity the registry must list as attestation key.
func (a *Attestor) Address() types.Address {
	if a == nil || a.key == nil {
		return types.ZeroAddress
	}
	return a.key.PubKey().Address()
}

// Attest verifies liquidity and signs the commitment hash. A zero
// LiquidityAccount selects the taker's associated quote asset account.
func (a *Attestor) Attest(req Request) (*Attestation, error) {
	if a == nil || a.key == nil {
		return nil, ErrNoKey
	}
	if req.RFQ.IsZero() || req.Taker.IsZero() || req.QuoteAsset.IsZero() {
		return nil, fmt.Errorf("attestor: rfq, taker and quote asset are required")
	}
	if a.ledger != nil {
		if err := a.checkLiquidity(req); err != nil {
			return nil, err
		}
	}
	hash := rfq.CommitHash(req.Salt, req.RFQ, req.Taker, req.QuoteAsset, req.Amount, req.BondAmount, req.FeeAmount)
	ix, sig := crypto.SignEd25519Instruction(a.key, hash[:])
	return &Attestation{CommitHash: hash, LiquidityProof: sig, Instruction: ix}, nil
}

func (a *Attestor) checkLiquidity(req Request) error {
	id := req.LiquidityAccount
	if id.IsZero() {
		id = rfq.AssociatedAccount(req.Taker, req.QuoteAsset)
	}
	acc, ok, err := a.ledger.Account(id)
	if err != nil {
		return err
	}
	switch {
	case !ok:
		return ErrLiquidityAccount
	case acc.Owner != req.Taker:
		return ErrLiquidityOwner
	case acc.Asset != req.QuoteAsset:
		return ErrLiquidityAsset
	case acc.Balance < req.Amount:
		return ErrInsufficientLiquidity
	}
	return nil
}
