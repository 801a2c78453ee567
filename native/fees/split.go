package fees

import (
	"errors"

	"github.com/holiman/uint256"

	"rfqsettle/core/types"
)

// MaxBps is the denominator of every basis point rate.
const MaxBps = 10_000

var (
	ErrBpsOutOfRange = errors.New("fees: facilitator bps out of range")
	ErrFeeOverflow   = errors.New("fees: share does not fit in uint64")
)

// SplitInput captures the context required to divide a taker fee between the
// treasury and a referring facilitator.
type SplitInput struct {
	FeeAmount         uint64
	FacilitatorFeeBps uint16
	// RFQFacilitator is the facilitator configured on the request.
	RFQFacilitator *types.Address
	// QuoteFacilitator is the facilitator named by the winning quote.
	QuoteFacilitator *types.Address
}

// SplitResult is the division of the fee. The two shares always add up to the
// fee amount.
type SplitResult struct {
	Facilitator      types.Address
	FacilitatorShare uint64
	TreasuryShare    uint64
}

// Eligible reports whether the referral is consistent end to end: both sides
// name the same non-empty facilitator.
func Eligible(rfqFacilitator, quoteFacilitator *types.Address) bool {
	if rfqFacilitator == nil || quoteFacilitator == nil {
		return false
	}
	if rfqFacilitator.IsZero() {
		return false
	}
	return *rfqFacilitator == *quoteFacilitator
}

// Split computes floor(fee * bps / 10000) for an eligible facilitator and
// assigns the remainder to the treasury.
func Split(input SplitInput) (SplitResult, error) {
	if input.FacilitatorFeeBps > MaxBps {
		return SplitResult{}, ErrBpsOutOfRange
	}
	result := SplitResult{TreasuryShare: input.FeeAmount}
	if !Eligible(input.RFQFacilitator, input.QuoteFacilitator) {
		return result, nil
	}
	result.Facilitator = *input.RFQFacilitator
	share, err := Share(input.FeeAmount, input.FacilitatorFeeBps)
	if err != nil {
		return SplitResult{}, err
	}
	result.FacilitatorShare = share
	result.TreasuryShare = input.FeeAmount - share
	return result, nil
}

// Share returns floor(amount * bps / 10000) using wide intermediate
// arithmetic.
func Share(amount uint64, bps uint16) (uint64, error) {
	if bps > MaxBps {
		return 0, ErrBpsOutOfRange
	}
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(bps)))
	product.Div(product, uint256.NewInt(MaxBps))
	if !product.IsUint64() {
		return 0, ErrFeeOverflow
	}
	return product.Uint64(), nil
}

// Totals aggregates fee distribution per asset.
type Totals struct {
	Asset            types.Address
	Fees             uint64
	TreasuryShare    uint64
	FacilitatorShare uint64
}

// Add accumulates result into the totals, failing instead of wrapping.
func (t *Totals) Add(fee uint64, result SplitResult) error {
	fees, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(t.Fees), uint256.NewInt(fee))
	if overflow || !fees.IsUint64() {
		return ErrFeeOverflow
	}
	treasury := new(uint256.Int).Add(uint256.NewInt(t.TreasuryShare), uint256.NewInt(result.TreasuryShare))
	facilitator := new(uint256.Int).Add(uint256.NewInt(t.FacilitatorShare), uint256.NewInt(result.FacilitatorShare))
	if !treasury.IsUint64() || !facilitator.IsUint64() {
		return ErrFeeOverflow
	}
	t.Fees = fees.Uint64()
	t.TreasuryShare = treasury.Uint64()
	t.FacilitatorShare = facilitator.Uint64()
	return nil
}
