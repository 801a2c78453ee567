package rfq

import (
	"encoding/hex"
	"strconv"

	"rfqsettle/core/types"
	"rfqsettle/native/fees"
)

const (
	EventTypeRFQCreated             = "rfq.created"
	EventTypeRFQUpdated             = "rfq.updated"
	EventTypeRFQCancelled           = "rfq.cancelled"
	EventTypeRFQOpened              = "rfq.opened"
	EventTypeRFQFacilitatorSet      = "rfq.facilitator_set"
	EventTypeQuoteCommitted         = "rfq.quote.committed"
	EventTypeQuoteRevealed          = "rfq.quote.revealed"
	EventTypeQuoteFacilitatorSet    = "rfq.quote.facilitator_set"
	EventTypeQuoteSelected          = "rfq.quote.selected"
	EventTypeRFQSettled             = "rfq.settled"
	EventTypeRFQExpired             = "rfq.expired"
	EventTypeRFQIgnored             = "rfq.ignored"
	EventTypeRFQIncomplete          = "rfq.incomplete"
	EventTypeBondsSlashed           = "rfq.bonds.slashed"
	EventTypeQuoteBondsRefunded     = "rfq.quote.bonds_refunded"
	EventTypeFacilitatorRewardTaken = "rfq.facilitator.reward_withdrawn"
)

func newRFQEvent(eventType string, r *RFQ) *types.Event {
	attrs := map[string]string{}
	if r != nil {
		attrs["rfq"] = r.ID.Hex()
		attrs["maker"] = r.Maker.Hex()
		attrs["status"] = r.Status.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

// NewCreatedEvent returns the payload emitted for a new draft request.
func NewCreatedEvent(r *RFQ) *types.Event {
	evt := newRFQEvent(EventTypeRFQCreated, r)
	evt.Attributes["uuid"] = hex.EncodeToString(r.UUID[:])
	evt.Attributes["baseAsset"] = r.BaseAsset.Hex()
	evt.Attributes["quoteAsset"] = r.QuoteAsset.Hex()
	evt.Attributes["baseAmount"] = formatUint(r.BaseAmount)
	evt.Attributes["minQuoteAmount"] = formatUint(r.MinQuoteAmount)
	evt.Attributes["bondAmount"] = formatUint(r.BondAmount)
	evt.Attributes["feeAmount"] = formatUint(r.FeeAmount)
	evt.Attributes["createdAt"] = formatInt(r.CreatedAt)
	return evt
}

// NewUpdatedEvent returns the payload emitted when draft terms change.
func NewUpdatedEvent(r *RFQ) *types.Event {
	evt := newRFQEvent(EventTypeRFQUpdated, r)
	evt.Attributes["baseAmount"] = formatUint(r.BaseAmount)
	evt.Attributes["minQuoteAmount"] = formatUint(r.MinQuoteAmount)
	evt.Attributes["bondAmount"] = formatUint(r.BondAmount)
	evt.Attributes["feeAmount"] = formatUint(r.FeeAmount)
	return evt
}

// NewCancelledEvent returns the payload emitted when a draft is withdrawn.
func NewCancelledEvent(r *RFQ) *types.Event {
	return newRFQEvent(EventTypeRFQCancelled, r)
}

// NewOpenedEvent returns the payload emitted when the commit window starts.
func NewOpenedEvent(r *RFQ) *types.Event {
	evt := newRFQEvent(EventTypeRFQOpened, r)
	evt.Attributes["settlementAsset"] = r.SettlementAsset.Hex()
	evt.Attributes["bondAmount"] = formatUint(r.BondAmount)
	if r.OpenedAt != nil {
		evt.Attributes["openedAt"] = formatInt(*r.OpenedAt)
	}
	if d, ok := CommitDeadline(r); ok {
		evt.Attributes["commitDeadline"] = formatInt(d)
	}
	return evt
}

// NewFacilitatorSetEvent returns the payload emitted when the RFQ facilitator
// changes.
func NewFacilitatorSetEvent(r *RFQ) *types.Event {
	evt := newRFQEvent(EventTypeRFQFacilitatorSet, r)
	if r.Facilitator != nil {
		evt.Attributes["facilitator"] = r.Facilitator.Hex()
	}
	return evt
}

// NewQuoteCommittedEvent returns the payload emitted for a sealed bid.
func NewQuoteCommittedEvent(r *RFQ, q *Quote) *types.Event {
	evt := newRFQEvent(EventTypeQuoteCommitted, r)
	evt.Attributes["quote"] = q.ID.Hex()
	evt.Attributes["taker"] = q.Taker.Hex()
	evt.Attributes["commitHash"] = hex.EncodeToString(q.CommitHash[:])
	evt.Attributes["committedCount"] = formatUint(uint64(r.CommittedCount))
	return evt
}

// NewQuoteFacilitatorSetEvent returns the payload emitted when a quote
// facilitator changes.
func NewQuoteFacilitatorSetEvent(r *RFQ, q *Quote) *types.Event {
	evt := newRFQEvent(EventTypeQuoteFacilitatorSet, r)
	evt.Attributes["quote"] = q.ID.Hex()
	evt.Attributes["taker"] = q.Taker.Hex()
	if q.Facilitator != nil {
		evt.Attributes["facilitator"] = q.Facilitator.Hex()
	}
	return evt
}

// NewQuoteRevealedEvent returns the payload emitted for a valid reveal.
func NewQuoteRevealedEvent(r *RFQ, q *Quote) *types.Event {
	evt := newRFQEvent(EventTypeQuoteRevealed, r)
	evt.Attributes["quote"] = q.ID.Hex()
	evt.Attributes["taker"] = q.Taker.Hex()
	if q.QuoteAmount != nil {
		evt.Attributes["quoteAmount"] = formatUint(*q.QuoteAmount)
	}
	evt.Attributes["revealedCount"] = formatUint(uint64(r.RevealedCount))
	return evt
}

// NewQuoteSelectedEvent returns the payload emitted when the maker picks a
// winner.
func NewQuoteSelectedEvent(r *RFQ, s *Settlement) *types.Event {
	evt := newRFQEvent(EventTypeQuoteSelected, r)
	evt.Attributes["quote"] = s.Quote.Hex()
	evt.Attributes["taker"] = s.Taker.Hex()
	evt.Attributes["settlement"] = s.ID.Hex()
	evt.Attributes["quoteAmount"] = formatUint(s.QuoteAmount)
	if d, ok := FundingDeadline(r); ok {
		evt.Attributes["fundingDeadline"] = formatInt(d)
	}
	return evt
}

// NewSettledEvent returns the payload emitted when the trade completes.
func NewSettledEvent(r *RFQ, s *Settlement, split fees.SplitResult) *types.Event {
	evt := newRFQEvent(EventTypeRFQSettled, r)
	evt.Attributes["settlement"] = s.ID.Hex()
	evt.Attributes["taker"] = s.Taker.Hex()
	evt.Attributes["baseAsset"] = s.BaseAsset.Hex()
	evt.Attributes["quoteAsset"] = s.QuoteAsset.Hex()
	evt.Attributes["feeAsset"] = s.SettlementAsset.Hex()
	evt.Attributes["baseAmount"] = formatUint(s.BaseAmount)
	evt.Attributes["quoteAmount"] = formatUint(s.QuoteAmount)
	evt.Attributes["treasuryFee"] = formatUint(split.TreasuryShare)
	evt.Attributes["facilitatorFee"] = formatUint(split.FacilitatorShare)
	if split.FacilitatorShare > 0 {
		evt.Attributes["facilitator"] = split.Facilitator.Hex()
	}
	return evt
}

// NewExpiredEvent returns the payload emitted when a request expires without
// reveals.
func NewExpiredEvent(r *RFQ, caller types.Address) *types.Event {
	evt := newRFQEvent(EventTypeRFQExpired, r)
	evt.Attributes["caller"] = caller.Hex()
	evt.Attributes["committedCount"] = formatUint(uint64(r.CommittedCount))
	return evt
}

// NewIgnoredEvent returns the payload emitted when the maker never selected.
func NewIgnoredEvent(r *RFQ, caller types.Address) *types.Event {
	evt := newRFQEvent(EventTypeRFQIgnored, r)
	evt.Attributes["caller"] = caller.Hex()
	evt.Attributes["revealedCount"] = formatUint(uint64(r.RevealedCount))
	return evt
}

// NewIncompleteEvent returns the payload emitted when the selected taker
// never funded.
func NewIncompleteEvent(r *RFQ, s *Settlement, caller types.Address) *types.Event {
	evt := newRFQEvent(EventTypeRFQIncomplete, r)
	evt.Attributes["caller"] = caller.Hex()
	evt.Attributes["settlement"] = s.ID.Hex()
	evt.Attributes["taker"] = s.Taker.Hex()
	return evt
}

// NewBondsSlashedEvent returns the payload emitted when forfeited bonds are
// paid to the treasury.
func NewBondsSlashedEvent(r *RFQ, amount uint64, includeActorBond bool) *types.Event {
	evt := newRFQEvent(EventTypeBondsSlashed, r)
	evt.Attributes["amount"] = formatUint(amount)
	evt.Attributes["treasuryOwner"] = r.TreasuryOwner.Hex()
	evt.Attributes["asset"] = r.SettlementAsset.Hex()
	evt.Attributes["actorBond"] = strconv.FormatBool(includeActorBond)
	return evt
}

// NewQuoteBondsRefundedEvent returns the payload emitted when a losing taker
// reclaims its bond.
func NewQuoteBondsRefundedEvent(r *RFQ, q *Quote) *types.Event {
	evt := newRFQEvent(EventTypeQuoteBondsRefunded, r)
	evt.Attributes["quote"] = q.ID.Hex()
	evt.Attributes["taker"] = q.Taker.Hex()
	evt.Attributes["amount"] = formatUint(r.BondAmount)
	return evt
}

// NewRewardWithdrawnEvent returns the payload emitted when a facilitator
// collects its share.
func NewRewardWithdrawnEvent(r *RFQ, t *FacilitatorRewardTracker) *types.Event {
	evt := newRFQEvent(EventTypeFacilitatorRewardTaken, r)
	evt.Attributes["facilitator"] = t.Facilitator.Hex()
	evt.Attributes["amount"] = formatUint(t.Amount)
	return evt
}
