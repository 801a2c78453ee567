package rfq

import (
	"github.com/holiman/uint256"

	"rfqsettle/native/fees"
)

// MaxBps mirrors the basis point denominator used by the fee split.
const MaxBps = fees.MaxBps

// ComputeSlashedAmount returns the bonds forfeited to the treasury: one bond
// for every committed but unrevealed quote, plus one more when the acting
// party itself failed to perform.
func ComputeSlashedAmount(r *RFQ, includeActorBond bool) (uint64, error) {
	if r == nil {
		return 0, ErrRFQNotFound
	}
	if r.RevealedCount > r.CommittedCount {
		return 0, ErrArithmeticOverflow
	}
	units := uint64(r.CommittedCount - r.RevealedCount)
	if includeActorBond {
		units++
	}
	amount, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(units), uint256.NewInt(r.BondAmount))
	if overflow || !amount.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return amount.Uint64(), nil
}
