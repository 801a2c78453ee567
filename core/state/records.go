package state

import (
	"rfqsettle/core/types"
	"rfqsettle/native/rfq"
)

// RLP has no notion of signed integers or absent values. Timestamps are
// stored as their two's complement uint64 and optionals as explicit
// presence/value pairs.

type optInt64 struct {
	Present bool
	Value   uint64
}

type optUint64 struct {
	Present bool
	Value   uint64
}

type optAddress struct {
	Present bool
	Value   types.Address
}

func encodeOptInt64(v *int64) optInt64 {
	if v == nil {
		return optInt64{}
	}
	return optInt64{Present: true, Value: uint64(*v)}
}

func (o optInt64) decode() *int64 {
	if !o.Present {
		return nil
	}
	v := int64(o.Value)
	return &v
}

func encodeOptUint64(v *uint64) optUint64 {
	if v == nil {
		return optUint64{}
	}
	return optUint64{Present: true, Value: *v}
}

func (o optUint64) decode() *uint64 {
	if !o.Present {
		return nil
	}
	v := o.Value
	return &v
}

func encodeOptAddress(v *types.Address) optAddress {
	if v == nil {
		return optAddress{}
	}
	return optAddress{Present: true, Value: *v}
}

func (o optAddress) decode() *types.Address {
	if !o.Present {
		return nil
	}
	v := o.Value
	return &v
}

type storedRFQ struct {
	ID                  types.Address
	Maker               types.Address
	UUID                [16]byte
	BaseAsset           types.Address
	QuoteAsset          types.Address
	SettlementAsset     types.Address
	TreasuryOwner       types.Address
	AttestationKey      types.Address
	BondAmount          uint64
	BaseAmount          uint64
	MinQuoteAmount      uint64
	FeeAmount           uint64
	FacilitatorFeeBps   uint16
	Facilitator         optAddress
	CommitTTL           uint32
	RevealTTL           uint32
	SelectionTTL        uint32
	FundTTL             uint32
	CreatedAt           uint64
	OpenedAt            optInt64
	SelectedAt          optInt64
	CompletedAt         optInt64
	CommittedCount      uint16
	RevealedCount       uint16
	SelectedQuote       optAddress
	Settlement          optAddress
	MakerPaymentAccount types.Address
	Status              uint8
}

func newStoredRFQ(r *rfq.RFQ) *storedRFQ {
	return &storedRFQ{
		ID:                  r.ID,
		Maker:               r.Maker,
		UUID:                r.UUID,
		BaseAsset:           r.BaseAsset,
		QuoteAsset:          r.QuoteAsset,
		SettlementAsset:     r.SettlementAsset,
		TreasuryOwner:       r.TreasuryOwner,
		AttestationKey:      r.AttestationKey,
		BondAmount:          r.BondAmount,
		BaseAmount:          r.BaseAmount,
		MinQuoteAmount:      r.MinQuoteAmount,
		FeeAmount:           r.FeeAmount,
		FacilitatorFeeBps:   r.FacilitatorFeeBps,
		Facilitator:         encodeOptAddress(r.Facilitator),
		CommitTTL:           r.CommitTTL,
		RevealTTL:           r.RevealTTL,
		SelectionTTL:        r.SelectionTTL,
		FundTTL:             r.FundTTL,
		CreatedAt:           uint64(r.CreatedAt),
		OpenedAt:            encodeOptInt64(r.OpenedAt),
		SelectedAt:          encodeOptInt64(r.SelectedAt),
		CompletedAt:         encodeOptInt64(r.CompletedAt),
		CommittedCount:      r.CommittedCount,
		RevealedCount:       r.RevealedCount,
		SelectedQuote:       encodeOptAddress(r.SelectedQuote),
		Settlement:          encodeOptAddress(r.Settlement),
		MakerPaymentAccount: r.MakerPaymentAccount,
		Status:              uint8(r.Status),
	}
}

func (s *storedRFQ) toRFQ() *rfq.RFQ {
	return &rfq.RFQ{
		ID:                  s.ID,
		Maker:               s.Maker,
		UUID:                s.UUID,
		BaseAsset:           s.BaseAsset,
		QuoteAsset:          s.QuoteAsset,
		SettlementAsset:     s.SettlementAsset,
		TreasuryOwner:       s.TreasuryOwner,
		AttestationKey:      s.AttestationKey,
		BondAmount:          s.BondAmount,
		BaseAmount:          s.BaseAmount,
		MinQuoteAmount:      s.MinQuoteAmount,
		FeeAmount:           s.FeeAmount,
		FacilitatorFeeBps:   s.FacilitatorFeeBps,
		Facilitator:         s.Facilitator.decode(),
		CommitTTL:           s.CommitTTL,
		RevealTTL:           s.RevealTTL,
		SelectionTTL:        s.SelectionTTL,
		FundTTL:             s.FundTTL,
		CreatedAt:           int64(s.CreatedAt),
		OpenedAt:            s.OpenedAt.decode(),
		SelectedAt:          s.SelectedAt.decode(),
		CompletedAt:         s.CompletedAt.decode(),
		CommittedCount:      s.CommittedCount,
		RevealedCount:       s.RevealedCount,
		SelectedQuote:       s.SelectedQuote.decode(),
		Settlement:          s.Settlement.decode(),
		MakerPaymentAccount: s.MakerPaymentAccount,
		Status:              rfq.Status(s.Status),
	}
}

type storedQuote struct {
	ID                 types.Address
	RFQ                types.Address
	Taker              types.Address
	CommitHash         [32]byte
	LiquidityProof     [64]byte
	CommittedAt        uint64
	RevealedAt         optInt64
	QuoteAmount        optUint64
	MaxFundingDeadline uint64
	Selected           bool
	BondsRefundedAt    optInt64
	PaymentAccount     types.Address
	Facilitator        optAddress
}

func newStoredQuote(q *rfq.Quote) *storedQuote {
	return &storedQuote{
		ID:                 q.ID,
		RFQ:                q.RFQ,
		Taker:              q.Taker,
		CommitHash:         q.CommitHash,
		LiquidityProof:     q.LiquidityProof,
		CommittedAt:        uint64(q.CommittedAt),
		RevealedAt:         encodeOptInt64(q.RevealedAt),
		QuoteAmount:        encodeOptUint64(q.QuoteAmount),
		MaxFundingDeadline: uint64(q.MaxFundingDeadline),
		Selected:           q.Selected,
		BondsRefundedAt:    encodeOptInt64(q.BondsRefundedAt),
		PaymentAccount:     q.PaymentAccount,
		Facilitator:        encodeOptAddress(q.Facilitator),
	}
}

func (s *storedQuote) toQuote() *rfq.Quote {
	return &rfq.Quote{
		ID:                 s.ID,
		RFQ:                s.RFQ,
		Taker:              s.Taker,
		CommitHash:         s.CommitHash,
		LiquidityProof:     s.LiquidityProof,
		CommittedAt:        int64(s.CommittedAt),
		RevealedAt:         s.RevealedAt.decode(),
		QuoteAmount:        s.QuoteAmount.decode(),
		MaxFundingDeadline: int64(s.MaxFundingDeadline),
		Selected:           s.Selected,
		BondsRefundedAt:    s.BondsRefundedAt.decode(),
		PaymentAccount:     s.PaymentAccount,
		Facilitator:        s.Facilitator.decode(),
	}
}

type storedCommitGuard struct {
	Hash        [32]byte
	RFQ         types.Address
	Taker       types.Address
	CommittedAt uint64
}

type storedSettlement struct {
	ID                  types.Address
	RFQ                 types.Address
	Quote               types.Address
	Maker               types.Address
	Taker               types.Address
	BaseAsset           types.Address
	QuoteAsset          types.Address
	SettlementAsset     types.Address
	BaseAmount          uint64
	QuoteAmount         uint64
	BondAmount          uint64
	FeeAmount           uint64
	MakerPaymentAccount types.Address
	MakerBaseAccount    types.Address
	MakerQuoteAccount   types.Address
	TakerPaymentAccount types.Address
	TakerBaseAccount    optAddress
	TakerQuoteAccount   optAddress
	BondsFeesVault      types.Address
	BaseVault           types.Address
	CreatedAt           uint64
	MakerFundedAt       uint64
	TakerFundedAt       optInt64
	CompletedAt         optInt64
}

func newStoredSettlement(s *rfq.Settlement) *storedSettlement {
	return &storedSettlement{
		ID:                  s.ID,
		RFQ:                 s.RFQ,
		Quote:               s.Quote,
		Maker:               s.Maker,
		Taker:               s.Taker,
		BaseAsset:           s.BaseAsset,
		QuoteAsset:          s.QuoteAsset,
		SettlementAsset:     s.SettlementAsset,
		BaseAmount:          s.BaseAmount,
		QuoteAmount:         s.QuoteAmount,
		BondAmount:          s.BondAmount,
		FeeAmount:           s.FeeAmount,
		MakerPaymentAccount: s.MakerPaymentAccount,
		MakerBaseAccount:    s.MakerBaseAccount,
		MakerQuoteAccount:   s.MakerQuoteAccount,
		TakerPaymentAccount: s.TakerPaymentAccount,
		TakerBaseAccount:    encodeOptAddress(s.TakerBaseAccount),
		TakerQuoteAccount:   encodeOptAddress(s.TakerQuoteAccount),
		BondsFeesVault:      s.BondsFeesVault,
		BaseVault:           s.BaseVault,
		CreatedAt:           uint64(s.CreatedAt),
		MakerFundedAt:       uint64(s.MakerFundedAt),
		TakerFundedAt:       encodeOptInt64(s.TakerFundedAt),
		CompletedAt:         encodeOptInt64(s.CompletedAt),
	}
}

func (s *storedSettlement) toSettlement() *rfq.Settlement {
	return &rfq.Settlement{
		ID:                  s.ID,
		RFQ:                 s.RFQ,
		Quote:               s.Quote,
		Maker:               s.Maker,
		Taker:               s.Taker,
		BaseAsset:           s.BaseAsset,
		QuoteAsset:          s.QuoteAsset,
		SettlementAsset:     s.SettlementAsset,
		BaseAmount:          s.BaseAmount,
		QuoteAmount:         s.QuoteAmount,
		BondAmount:          s.BondAmount,
		FeeAmount:           s.FeeAmount,
		MakerPaymentAccount: s.MakerPaymentAccount,
		MakerBaseAccount:    s.MakerBaseAccount,
		MakerQuoteAccount:   s.MakerQuoteAccount,
		TakerPaymentAccount: s.TakerPaymentAccount,
		TakerBaseAccount:    s.TakerBaseAccount.decode(),
		TakerQuoteAccount:   s.TakerQuoteAccount.decode(),
		BondsFeesVault:      s.BondsFeesVault,
		BaseVault:           s.BaseVault,
		CreatedAt:           int64(s.CreatedAt),
		MakerFundedAt:       int64(s.MakerFundedAt),
		TakerFundedAt:       s.TakerFundedAt.decode(),
		CompletedAt:         s.CompletedAt.decode(),
	}
}

type storedSlashedBonds struct {
	RFQ             types.Address
	SettlementAsset types.Address
	TreasuryOwner   types.Address
	Amount          optUint64
	SeizedAt        optInt64
}

type storedReward struct {
	RFQ         types.Address
	Facilitator types.Address
	Asset       types.Address
	Amount      uint64
	ClaimedAt   uint64
}

type storedFees struct {
	RFQ              types.Address
	Taker            types.Address
	Asset            types.Address
	TreasuryOwner    types.Address
	TreasuryShare    uint64
	FacilitatorShare uint64
	PaidAt           uint64
}

type storedAccount struct {
	ID      types.Address
	Owner   types.Address
	Asset   types.Address
	Balance uint64
	Frozen  bool
}
