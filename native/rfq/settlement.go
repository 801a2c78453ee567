package rfq

// buildSettlement snapshots the trade terms at selection. Final settlement
// routes funds only to the accounts recorded here. The maker's base asset is
// escrowed in the same step, so the maker counts as funded immediately.
func buildSettlement(r *RFQ, q *Quote, accounts SelectAccounts, now int64) *Settlement {
	var quoteAmount uint64
	if q.QuoteAmount != nil {
		quoteAmount = *q.QuoteAmount
	}
	return &Settlement{
		ID:                  SettlementID(r.ID),
		RFQ:                 r.ID,
		Quote:               q.ID,
		Maker:               r.Maker,
		Taker:               q.Taker,
		BaseAsset:           r.BaseAsset,
		QuoteAsset:          r.QuoteAsset,
		SettlementAsset:     r.SettlementAsset,
		BaseAmount:          r.BaseAmount,
		QuoteAmount:         quoteAmount,
		BondAmount:          r.BondAmount,
		FeeAmount:           r.FeeAmount,
		MakerPaymentAccount: r.MakerPaymentAccount,
		MakerBaseAccount:    accounts.MakerBaseAccount,
		MakerQuoteAccount:   accounts.MakerQuoteAccount,
		TakerPaymentAccount: q.PaymentAccount,
		BondsFeesVault:      BondsVault(r.ID),
		BaseVault:           BaseVault(r.ID),
		CreatedAt:           now,
		MakerFundedAt:       now,
	}
}
