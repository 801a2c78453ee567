package rfq

import (
	"fmt"

	"rfqsettle/core/types"
)

// Status enumerates the lifecycle phases of a request for quote.
type Status uint8

const (
	StatusDraft Status = iota
	StatusOpen
	StatusCommitted
	StatusRevealed
	StatusSelected
	StatusSettled
	StatusExpired
	StatusIgnored
	StatusIncomplete
)

var statusNames = map[Status]string{
	StatusDraft:      "draft",
	StatusOpen:       "open",
	StatusCommitted:  "committed",
	StatusRevealed:   "revealed",
	StatusSelected:   "selected",
	StatusSettled:    "settled",
	StatusExpired:    "expired",
	StatusIgnored:    "ignored",
	StatusIncomplete: "incomplete",
}

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether no further lifecycle transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusSettled, StatusExpired, StatusIgnored, StatusIncomplete:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("rfq: unknown status %q", string(text))
}

// RFQ is a single maker request to deliver BaseAmount of BaseAsset against at
// least MinQuoteAmount of QuoteAsset. The registry parameters are copied in
// when the request opens so later registry changes do not affect it.
type RFQ struct {
	ID    types.Address
	Maker types.Address
	UUID  [16]byte

	BaseAsset       types.Address
	QuoteAsset      types.Address
	SettlementAsset types.Address
	TreasuryOwner   types.Address
	AttestationKey  types.Address

	BondAmount     uint64
	BaseAmount     uint64
	MinQuoteAmount uint64
	FeeAmount      uint64

	FacilitatorFeeBps uint16
	Facilitator       *types.Address

	CommitTTL    uint32
	RevealTTL    uint32
	SelectionTTL uint32
	FundTTL      uint32

	CreatedAt   int64
	OpenedAt    *int64
	SelectedAt  *int64
	CompletedAt *int64

	CommittedCount uint16
	RevealedCount  uint16

	SelectedQuote *types.Address
	Settlement    *types.Address

	MakerPaymentAccount types.Address
	Status              Status
}

// Clone returns a deep copy of the RFQ so callers can mutate it freely.
func (r *RFQ) Clone() *RFQ {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Facilitator = cloneAddress(r.Facilitator)
	clone.OpenedAt = cloneInt64(r.OpenedAt)
	clone.SelectedAt = cloneInt64(r.SelectedAt)
	clone.CompletedAt = cloneInt64(r.CompletedAt)
	clone.SelectedQuote = cloneAddress(r.SelectedQuote)
	clone.Settlement = cloneAddress(r.Settlement)
	return &clone
}

// Quote is a taker's sealed bid on an RFQ. At most one quote exists per
// (RFQ, taker) pair.
type Quote struct {
	ID    types.Address
	RFQ   types.Address
	Taker types.Address

	CommitHash     [32]byte
	LiquidityProof [64]byte

	CommittedAt        int64
	RevealedAt         *int64
	QuoteAmount        *uint64
	MaxFundingDeadline int64
	Selected           bool
	BondsRefundedAt    *int64

	PaymentAccount types.Address
	Facilitator    *types.Address
}

// Clone returns a deep copy of the quote.
func (q *Quote) Clone() *Quote {
	if q == nil {
		return nil
	}
	clone := *q
	clone.RevealedAt = cloneInt64(q.RevealedAt)
	clone.QuoteAmount = cloneUint64(q.QuoteAmount)
	clone.BondsRefundedAt = cloneInt64(q.BondsRefundedAt)
	clone.Facilitator = cloneAddress(q.Facilitator)
	return &clone
}

// Revealed reports whether a valid reveal has been recorded.
func (q *Quote) Revealed() bool {
	return q != nil && q.RevealedAt != nil && q.QuoteAmount != nil
}

// CommitGuard marks a commitment hash as consumed. Guards are never removed.
type CommitGuard struct {
	Hash        [32]byte
	RFQ         types.Address
	Taker       types.Address
	CommittedAt int64
}

// Settlement is the trade snapshot taken when the maker selects a quote.
type Settlement struct {
	ID    types.Address
	RFQ   types.Address
	Quote types.Address

	Maker types.Address
	Taker types.Address

	BaseAsset       types.Address
	QuoteAsset      types.Address
	SettlementAsset types.Address
	BaseAmount      uint64
	QuoteAmount     uint64
	BondAmount      uint64
	FeeAmount       uint64

	MakerPaymentAccount types.Address
	MakerBaseAccount    types.Address
	MakerQuoteAccount   types.Address
	TakerPaymentAccount types.Address
	TakerBaseAccount    *types.Address
	TakerQuoteAccount   *types.Address
	BondsFeesVault      types.Address
	BaseVault           types.Address

	CreatedAt     int64
	MakerFundedAt int64
	TakerFundedAt *int64
	CompletedAt   *int64
}

// Clone returns a deep copy of the settlement record.
func (s *Settlement) Clone() *Settlement {
	if s == nil {
		return nil
	}
	clone := *s
	clone.TakerBaseAccount = cloneAddress(s.TakerBaseAccount)
	clone.TakerQuoteAccount = cloneAddress(s.TakerQuoteAccount)
	clone.TakerFundedAt = cloneInt64(s.TakerFundedAt)
	clone.CompletedAt = cloneInt64(s.CompletedAt)
	return &clone
}

// SlashedBondsTracker records the single forfeiture of bonds for an RFQ.
type SlashedBondsTracker struct {
	RFQ             types.Address
	SettlementAsset types.Address
	TreasuryOwner   types.Address
	Amount          *uint64
	SeizedAt        *int64
}

// Resolved reports whether the forfeiture has already been paid out.
func (t *SlashedBondsTracker) Resolved() bool {
	return t != nil && t.Amount != nil && t.SeizedAt != nil
}

// Clone returns a deep copy of the tracker.
func (t *SlashedBondsTracker) Clone() *SlashedBondsTracker {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Amount = cloneUint64(t.Amount)
	clone.SeizedAt = cloneInt64(t.SeizedAt)
	return &clone
}

// FacilitatorRewardTracker exists once a facilitator withdrew its share for
// an RFQ.
type FacilitatorRewardTracker struct {
	RFQ         types.Address
	Facilitator types.Address
	Asset       types.Address
	Amount      uint64
	ClaimedAt   int64
}

// FeesTracker records the fee paid to the treasury when a trade settled.
type FeesTracker struct {
	RFQ              types.Address
	Taker            types.Address
	Asset            types.Address
	TreasuryOwner    types.Address
	TreasuryShare    uint64
	FacilitatorShare uint64
	PaidAt           int64
}

// Deadlines bundles the derived phase boundaries of an RFQ. Absent values
// are undetermined.
type Deadlines struct {
	Commit    *int64 `json:"commit,omitempty"`
	Reveal    *int64 `json:"reveal,omitempty"`
	Selection *int64 `json:"selection,omitempty"`
	Funding   *int64 `json:"funding,omitempty"`
}

// FacilitatorUpdateKind selects the variant of a FacilitatorUpdate.
type FacilitatorUpdateKind uint8

const (
	FacilitatorUpdateClear FacilitatorUpdateKind = iota
	FacilitatorUpdateSet
)

// FacilitatorUpdate either clears the facilitator or sets it to Facilitator.
type FacilitatorUpdate struct {
	Kind        FacilitatorUpdateKind
	Facilitator types.Address
}

// ClearFacilitator returns the update removing any facilitator.
func ClearFacilitator() FacilitatorUpdate {
	return FacilitatorUpdate{Kind: FacilitatorUpdateClear}
}

// SetFacilitator returns the update installing addr as facilitator.
func SetFacilitator(addr types.Address) FacilitatorUpdate {
	return FacilitatorUpdate{Kind: FacilitatorUpdateSet, Facilitator: addr}
}

// apply returns the facilitator after the update.
func (u FacilitatorUpdate) apply() (*types.Address, error) {
	switch u.Kind {
	case FacilitatorUpdateClear:
		return nil, nil
	case FacilitatorUpdateSet:
		if u.Facilitator.IsZero() {
			return nil, newError(KindInvalidParams, "facilitator must not be empty")
		}
		addr := u.Facilitator
		return &addr, nil
	default:
		return nil, newError(KindInvalidParams, fmt.Sprintf("unknown facilitator update %d", u.Kind))
	}
}

// Registry is the read-only view of the global configuration. Values are
// copied into the RFQ when it opens.
type Registry struct {
	Admin             types.Address
	SettlementAsset   types.Address
	TreasuryOwner     types.Address
	AttestationKey    types.Address
	MaxFacilitatorBps uint16
}

// Validate checks that every registry field is populated.
func (r Registry) Validate() error {
	switch {
	case r.SettlementAsset.IsZero():
		return newError(KindInvalidParams, "registry settlement asset not configured")
	case r.TreasuryOwner.IsZero():
		return newError(KindInvalidParams, "registry treasury owner not configured")
	case r.AttestationKey.IsZero():
		return newError(KindInvalidParams, "registry attestation key not configured")
	case r.MaxFacilitatorBps > MaxBps:
		return newError(KindInvalidParams, "registry facilitator fee ceiling out of range")
	}
	return nil
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneUint64(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneAddress(v *types.Address) *types.Address {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func int64Ptr(v int64) *int64 { return &v }

func uint64Ptr(v uint64) *uint64 { return &v }

func addressPtr(v types.Address) *types.Address { return &v }
