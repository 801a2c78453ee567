package rfq

import "errors"

// Kind classifies failures so callers can react without matching every
// sentinel individually.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidParams
	KindNotFound
	KindState
	KindTiming
	KindAuthorization
	KindVerification
	KindArithmetic
	KindUniqueness
	KindTransfer
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParams:
		return "invalid_params"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindTiming:
		return "timing"
	case KindAuthorization:
		return "authorization"
	case KindVerification:
		return "verification"
	case KindArithmetic:
		return "arithmetic"
	case KindUniqueness:
		return "uniqueness"
	case KindTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Error is a classified engine failure.
type Error struct {
	kind Kind
	msg  string
}

func newError(kind Kind, msg string) *Error { return &Error{kind: kind, msg: msg} }

func (e *Error) Error() string { return "rfq: " + e.msg }

// Kind returns the failure class.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the class of the first classified error in err's chain.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindUnknown
}

var (
	errNilState    = errors.New("rfq engine: state not configured")
	errNilVerifier = errors.New("rfq engine: signature verifier not configured")
)

// Invalid parameters.
var (
	ErrInvalidAmount         = newError(KindInvalidParams, "amounts must be positive")
	ErrInvalidTTL            = newError(KindInvalidParams, "phase durations must be positive")
	ErrInvalidBps            = newError(KindInvalidParams, "facilitator fee bps out of range")
	ErrFacilitatorFeeTooHigh = newError(KindInvalidParams, "facilitator fee above registry ceiling")
	ErrSameAsset             = newError(KindInvalidParams, "base and quote asset must differ")
	ErrInvalidAccount        = newError(KindInvalidParams, "account reference must not be empty")
	ErrInvalidIdentity       = newError(KindInvalidParams, "caller identity must not be empty")
)

// Missing records.
var (
	ErrRFQNotFound        = newError(KindNotFound, "rfq not found")
	ErrQuoteNotFound      = newError(KindNotFound, "quote not found")
	ErrSettlementNotFound = newError(KindNotFound, "settlement not found")
	ErrTrackerNotFound    = newError(KindNotFound, "slashed bonds tracker not found")
)

// State errors.
var (
	ErrInvalidState         = newError(KindState, "invalid rfq state")
	ErrDeadlineUndetermined = newError(KindState, "deadline undetermined")
	ErrQuoteAlreadyRevealed = newError(KindState, "quote already revealed")
	ErrQuoteNotRevealed     = newError(KindState, "quote not revealed")
	ErrQuoteAlreadySelected = newError(KindState, "quote already selected")
	ErrAlreadySelected      = newError(KindState, "rfq already has a selected quote")
	ErrQuoteRFQMismatch     = newError(KindState, "quote does not belong to rfq")
	ErrQuoteIsSelected      = newError(KindState, "selected quote bonds are settled with the trade")
	ErrBondsAlreadyRefunded = newError(KindState, "quote bonds already refunded")
	ErrRevealsExist         = newError(KindState, "rfq has revealed quotes")
	ErrNoFacilitatorReward  = newError(KindState, "no facilitator reward to withdraw")
	ErrCounterOverflow      = newError(KindState, "quote counter exhausted")
)

// Timing errors.
var (
	ErrCommitTooLate     = newError(KindTiming, "commit window closed")
	ErrRevealTooEarly    = newError(KindTiming, "reveal window not open")
	ErrRevealTooLate     = newError(KindTiming, "reveal window closed")
	ErrSelectionTooEarly = newError(KindTiming, "selection window not open")
	ErrSelectionTooLate  = newError(KindTiming, "selection window closed")
	ErrFundingTooLate    = newError(KindTiming, "funding window closed")
	ErrTooEarlyToClose   = newError(KindTiming, "deadline not reached")
)

// Authorization errors.
var (
	ErrNotMaker             = newError(KindAuthorization, "caller is not the maker")
	ErrNotTaker             = newError(KindAuthorization, "caller is not the taker")
	ErrNotFacilitator       = newError(KindAuthorization, "caller is not the facilitator")
	ErrCommitMismatch       = newError(KindAuthorization, "revealed values do not match commitment")
	ErrAccountOwnerMismatch = newError(KindAuthorization, "account not owned by caller")
	ErrAccountAssetMismatch = newError(KindAuthorization, "account holds a different asset")
)

// Verification errors.
var (
	ErrNoEd25519Instruction            = newError(KindVerification, "missing ed25519 verification instruction")
	ErrInvalidEd25519Program           = newError(KindVerification, "companion instruction is not the ed25519 program")
	ErrInvalidEd25519Data              = newError(KindVerification, "malformed ed25519 instruction data")
	ErrInvalidSignatureCount           = newError(KindVerification, "ed25519 instruction must carry exactly one signature")
	ErrInvalidOffset                   = newError(KindVerification, "ed25519 offsets must reference the same instruction")
	ErrInvalidMessageSize              = newError(KindVerification, "ed25519 message must be 32 bytes")
	ErrUnauthorizedSigner              = newError(KindVerification, "attestation signer mismatch")
	ErrCommitHashMismatch              = newError(KindVerification, "signed message differs from commit hash")
	ErrLiquidityProofSignatureMismatch = newError(KindVerification, "signature differs from liquidity proof")
	ErrInvalidLiquidityProof           = newError(KindVerification, "liquidity proof signature invalid")
	ErrInvalidQuoteAmount              = newError(KindVerification, "quote amount below minimum")
)

// Arithmetic errors.
var (
	ErrArithmeticOverflow = newError(KindArithmetic, "arithmetic overflow")
)

// Uniqueness errors.
var (
	ErrRecordExists         = newError(KindUniqueness, "record already exists")
	ErrRFQExists            = newError(KindUniqueness, "rfq already exists")
	ErrQuoteExists          = newError(KindUniqueness, "quote already exists")
	ErrCommitHashReused     = newError(KindUniqueness, "commit hash already used")
	ErrRewardAlreadyClaimed = newError(KindUniqueness, "facilitator reward already claimed")
	ErrFeesAlreadyRecorded  = newError(KindUniqueness, "fees already recorded")
)

// Transfer errors returned by State implementations.
var (
	ErrAccountNotFound   = newError(KindTransfer, "account not found")
	ErrAccountFrozen     = newError(KindTransfer, "account frozen")
	ErrInsufficientFunds = newError(KindTransfer, "insufficient funds")
)
