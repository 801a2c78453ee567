package modules

import (
	"encoding/hex"
	"strconv"

	"rfqsettle/core/types"
	"rfqsettle/native/rfq"
)

// RFQResult is the JSON rendering of a request for quote.
type RFQResult struct {
	ID                  string  `json:"id"`
	Maker               string  `json:"maker"`
	UUID                string  `json:"uuid"`
	Status              string  `json:"status"`
	BaseAsset           string  `json:"baseAsset"`
	QuoteAsset          string  `json:"quoteAsset"`
	SettlementAsset     string  `json:"settlementAsset,omitempty"`
	TreasuryOwner       string  `json:"treasuryOwner,omitempty"`
	AttestationKey      string  `json:"attestationKey,omitempty"`
	BondAmount          string  `json:"bondAmount"`
	BaseAmount          string  `json:"baseAmount"`
	MinQuoteAmount      string  `json:"minQuoteAmount"`
	FeeAmount           string  `json:"feeAmount"`
	FacilitatorFeeBps   uint16  `json:"facilitatorFeeBps"`
	Facilitator         *string `json:"facilitator,omitempty"`
	CommitTTL           uint32  `json:"commitTtl"`
	RevealTTL           uint32  `json:"revealTtl"`
	SelectionTTL        uint32  `json:"selectionTtl"`
	FundTTL             uint32  `json:"fundTtl"`
	CreatedAt           int64   `json:"createdAt"`
	OpenedAt            *int64  `json:"openedAt,omitempty"`
	SelectedAt          *int64  `json:"selectedAt,omitempty"`
	CompletedAt         *int64  `json:"completedAt,omitempty"`
	CommittedCount      uint16  `json:"committedCount"`
	RevealedCount       uint16  `json:"revealedCount"`
	SelectedQuote       *string `json:"selectedQuote,omitempty"`
	Settlement          *string `json:"settlement,omitempty"`
	MakerPaymentAccount string  `json:"makerPaymentAccount"`
}

// QuoteResult is the JSON rendering of a sealed or revealed quote.
type QuoteResult struct {
	ID                 string  `json:"id"`
	RFQ                string  `json:"rfq"`
	Taker              string  `json:"taker"`
	CommitHash         string  `json:"commitHash"`
	LiquidityProof     string  `json:"liquidityProof"`
	CommittedAt        int64   `json:"committedAt"`
	RevealedAt         *int64  `json:"revealedAt,omitempty"`
	QuoteAmount        *string `json:"quoteAmount,omitempty"`
	MaxFundingDeadline int64   `json:"maxFundingDeadline"`
	Selected           bool    `json:"selected"`
	BondsRefundedAt    *int64  `json:"bondsRefundedAt,omitempty"`
	PaymentAccount     string  `json:"paymentAccount"`
	Facilitator        *string `json:"facilitator,omitempty"`
}

// SettlementResult is the JSON rendering of a settlement snapshot.
type SettlementResult struct {
	ID                  string  `json:"id"`
	RFQ                 string  `json:"rfq"`
	Quote               string  `json:"quote"`
	Maker               string  `json:"maker"`
	Taker               string  `json:"taker"`
	BaseAsset           string  `json:"baseAsset"`
	QuoteAsset          string  `json:"quoteAsset"`
	SettlementAsset     string  `json:"settlementAsset"`
	BaseAmount          string  `json:"baseAmount"`
	QuoteAmount         string  `json:"quoteAmount"`
	BondAmount          string  `json:"bondAmount"`
	FeeAmount           string  `json:"feeAmount"`
	MakerPaymentAccount string  `json:"makerPaymentAccount"`
	MakerBaseAccount    string  `json:"makerBaseAccount"`
	MakerQuoteAccount   string  `json:"makerQuoteAccount"`
	TakerPaymentAccount string  `json:"takerPaymentAccount"`
	TakerBaseAccount    *string `json:"takerBaseAccount,omitempty"`
	TakerQuoteAccount   *string `json:"takerQuoteAccount,omitempty"`
	BondsFeesVault      string  `json:"bondsFeesVault"`
	BaseVault           string  `json:"baseVault"`
	CreatedAt           int64   `json:"createdAt"`
	MakerFundedAt       int64   `json:"makerFundedAt"`
	TakerFundedAt       *int64  `json:"takerFundedAt,omitempty"`
	CompletedAt         *int64  `json:"completedAt,omitempty"`
}

// SlashedBondsResult reports the slashing resolution of a request.
type SlashedBondsResult struct {
	RFQ             string  `json:"rfq"`
	SettlementAsset string  `json:"settlementAsset"`
	TreasuryOwner   string  `json:"treasuryOwner"`
	Resolved        bool    `json:"resolved"`
	Amount          *string `json:"amount,omitempty"`
	SeizedAt        *int64  `json:"seizedAt,omitempty"`
}

// FeesResult reports how a settlement fee was split.
type FeesResult struct {
	RFQ              string `json:"rfq"`
	Taker            string `json:"taker"`
	Asset            string `json:"asset"`
	TreasuryOwner    string `json:"treasuryOwner"`
	TreasuryShare    string `json:"treasuryShare"`
	FacilitatorShare string `json:"facilitatorShare"`
	PaidAt           int64  `json:"paidAt"`
}

// RewardResult reports a facilitator reward withdrawal.
type RewardResult struct {
	RFQ         string `json:"rfq"`
	Facilitator string `json:"facilitator"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	ClaimedAt   int64  `json:"claimedAt"`
}

// AccountResult is the JSON rendering of a ledger account.
type AccountResult struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
	Frozen  bool   `json:"frozen"`
}

func amountString(v uint64) string { return strconv.FormatUint(v, 10) }

func optionalAmount(v *uint64) *string {
	if v == nil {
		return nil
	}
	s := amountString(*v)
	return &s
}

func optionalAddress(a *types.Address) *string {
	if a == nil {
		return nil
	}
	s := a.Hex()
	return &s
}

func formatRFQ(r *rfq.RFQ) *RFQResult {
	return &RFQResult{
		ID:                  r.ID.Hex(),
		Maker:               r.Maker.Hex(),
		UUID:                hex.EncodeToString(r.UUID[:]),
		Status:              r.Status.String(),
		BaseAsset:           r.BaseAsset.Hex(),
		QuoteAsset:          r.QuoteAsset.Hex(),
		SettlementAsset:     hexUnlessZero(r.SettlementAsset),
		TreasuryOwner:       hexUnlessZero(r.TreasuryOwner),
		AttestationKey:      hexUnlessZero(r.AttestationKey),
		BondAmount:          amountString(r.BondAmount),
		BaseAmount:          amountString(r.BaseAmount),
		MinQuoteAmount:      amountString(r.MinQuoteAmount),
		FeeAmount:           amountString(r.FeeAmount),
		FacilitatorFeeBps:   r.FacilitatorFeeBps,
		Facilitator:         optionalAddress(r.Facilitator),
		CommitTTL:           r.CommitTTL,
		RevealTTL:           r.RevealTTL,
		SelectionTTL:        r.SelectionTTL,
		FundTTL:             r.FundTTL,
		CreatedAt:           r.CreatedAt,
		OpenedAt:            r.OpenedAt,
		SelectedAt:          r.SelectedAt,
		CompletedAt:         r.CompletedAt,
		CommittedCount:      r.CommittedCount,
		RevealedCount:       r.RevealedCount,
		SelectedQuote:       optionalAddress(r.SelectedQuote),
		Settlement:          optionalAddress(r.Settlement),
		MakerPaymentAccount: r.MakerPaymentAccount.Hex(),
	}
}

func hexUnlessZero(a types.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.Hex()
}

func formatQuote(q *rfq.Quote) *QuoteResult {
	return &QuoteResult{
		ID:                 q.ID.Hex(),
		RFQ:                q.RFQ.Hex(),
		Taker:              q.Taker.Hex(),
		CommitHash:         formatHex(q.CommitHash[:]),
		LiquidityProof:     formatHex(q.LiquidityProof[:]),
		CommittedAt:        q.CommittedAt,
		RevealedAt:         q.RevealedAt,
		QuoteAmount:        optionalAmount(q.QuoteAmount),
		MaxFundingDeadline: q.MaxFundingDeadline,
		Selected:           q.Selected,
		BondsRefundedAt:    q.BondsRefundedAt,
		PaymentAccount:     q.PaymentAccount.Hex(),
		Facilitator:        optionalAddress(q.Facilitator),
	}
}

func formatSettlement(s *rfq.Settlement) *SettlementResult {
	return &SettlementResult{
		ID:                  s.ID.Hex(),
		RFQ:                 s.RFQ.Hex(),
		Quote:               s.Quote.Hex(),
		Maker:               s.Maker.Hex(),
		Taker:               s.Taker.Hex(),
		BaseAsset:           s.BaseAsset.Hex(),
		QuoteAsset:          s.QuoteAsset.Hex(),
		SettlementAsset:     s.SettlementAsset.Hex(),
		BaseAmount:          amountString(s.BaseAmount),
		QuoteAmount:         amountString(s.QuoteAmount),
		BondAmount:          amountString(s.BondAmount),
		FeeAmount:           amountString(s.FeeAmount),
		MakerPaymentAccount: s.MakerPaymentAccount.Hex(),
		MakerBaseAccount:    s.MakerBaseAccount.Hex(),
		MakerQuoteAccount:   s.MakerQuoteAccount.Hex(),
		TakerPaymentAccount: s.TakerPaymentAccount.Hex(),
		TakerBaseAccount:    optionalAddress(s.TakerBaseAccount),
		TakerQuoteAccount:   optionalAddress(s.TakerQuoteAccount),
		BondsFeesVault:      s.BondsFeesVault.Hex(),
		BaseVault:           s.BaseVault.Hex(),
		CreatedAt:           s.CreatedAt,
		MakerFundedAt:       s.MakerFundedAt,
		TakerFundedAt:       s.TakerFundedAt,
		CompletedAt:         s.CompletedAt,
	}
}

func formatSlashed(t *rfq.SlashedBondsTracker) *SlashedBondsResult {
	return &SlashedBondsResult{
		RFQ:             t.RFQ.Hex(),
		SettlementAsset: t.SettlementAsset.Hex(),
		TreasuryOwner:   t.TreasuryOwner.Hex(),
		Resolved:        t.Resolved(),
		Amount:          optionalAmount(t.Amount),
		SeizedAt:        t.SeizedAt,
	}
}

func formatFees(t *rfq.FeesTracker) *FeesResult {
	return &FeesResult{
		RFQ:              t.RFQ.Hex(),
		Taker:            t.Taker.Hex(),
		Asset:            t.Asset.Hex(),
		TreasuryOwner:    t.TreasuryOwner.Hex(),
		TreasuryShare:    amountString(t.TreasuryShare),
		FacilitatorShare: amountString(t.FacilitatorShare),
		PaidAt:           t.PaidAt,
	}
}

func formatReward(t *rfq.FacilitatorRewardTracker) *RewardResult {
	return &RewardResult{
		RFQ:         t.RFQ.Hex(),
		Facilitator: t.Facilitator.Hex(),
		Asset:       t.Asset.Hex(),
		Amount:      amountString(t.Amount),
		ClaimedAt:   t.ClaimedAt,
	}
}

func formatAccount(a *types.Account) *AccountResult {
	return &AccountResult{
		ID:      a.ID.Hex(),
		Owner:   a.Owner.Hex(),
		Asset:   a.Asset.Hex(),
		Balance: amountString(a.Balance),
		Frozen:  a.Frozen,
	}
}
