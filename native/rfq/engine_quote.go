package rfq

import (
	"math"

	"rfqsettle/core/types"
	"rfqsettle/crypto"
	"rfqsettle/native/fees"
)

// CommitParams carries a sealed bid together with the companion Ed25519
// verification instruction submitted in the same transaction.
type CommitParams struct {
	CommitHash     [CommitHashLength]byte
	LiquidityProof [LiquidityProofLength]byte
	PaymentAccount types.Address
	Facilitator    *types.Address
	Attestation    *crypto.Instruction
}

// CommitQuote records taker's sealed bid and escrows the taker bond.
func (e *Engine) CommitQuote(taker, rfqID types.Address, params CommitParams) (*Quote, error) {
	if err := requireIdentity(taker); err != nil {
		return nil, err
	}
	if params.PaymentAccount.IsZero() {
		return nil, ErrInvalidAccount
	}
	if params.Facilitator != nil && params.Facilitator.IsZero() {
		return nil, ErrInvalidIdentity
	}
	var out *Quote
	err := e.run("commit", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if r.Status != StatusOpen && r.Status != StatusCommitted {
			return ErrInvalidState
		}
		deadline, err := mustDeadline(CommitDeadline(r))
		if err != nil {
			return err
		}
		if tx.now > deadline {
			return ErrCommitTooLate
		}
		if err := VerifyAttestation(params.Attestation, r.AttestationKey, params.CommitHash, params.LiquidityProof, e.verifier); err != nil {
			return err
		}
		if r.CommittedCount == math.MaxUint16 {
			return ErrCounterOverflow
		}
		maxFunding, err := mustDeadline(FundingDeadline(r))
		if err != nil {
			return err
		}
		q := &Quote{
			ID:                 QuoteID(r.ID, taker),
			RFQ:                r.ID,
			Taker:              taker,
			CommitHash:         params.CommitHash,
			LiquidityProof:     params.LiquidityProof,
			CommittedAt:        tx.now,
			MaxFundingDeadline: maxFunding,
			PaymentAccount:     params.PaymentAccount,
			Facilitator:        cloneAddress(params.Facilitator),
		}
		if err := tx.state.QuoteCreate(q); err != nil {
			return translateExists(err, ErrQuoteExists)
		}
		guard := &CommitGuard{Hash: params.CommitHash, RFQ: r.ID, Taker: taker, CommittedAt: tx.now}
		if err := tx.state.CommitGuardCreate(guard); err != nil {
			return translateExists(err, ErrCommitHashReused)
		}
		if err := tx.collect(r.SettlementAsset, q.PaymentAccount, BondsVault(r.ID), taker, r.BondAmount); err != nil {
			return err
		}
		r.CommittedCount++
		r.Status = StatusCommitted
		if err := tx.state.RFQPut(r); err != nil {
			return err
		}
		tx.emit(NewQuoteCommittedEvent(r, q))
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// SetQuoteFacilitator sets or clears the facilitator named by taker's quote.
func (e *Engine) SetQuoteFacilitator(taker, rfqID types.Address, update FacilitatorUpdate) (*Quote, error) {
	var out *Quote
	err := e.run("set_quote_facilitator", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if !facilitatorMutable(r.Status) {
			return ErrInvalidState
		}
		q, err := tx.loadQuote(QuoteID(r.ID, taker))
		if err != nil {
			return err
		}
		if q.Taker != taker {
			return ErrNotTaker
		}
		facilitator, err := update.apply()
		if err != nil {
			return err
		}
		q.Facilitator = facilitator
		if err := tx.state.QuotePut(q); err != nil {
			return err
		}
		tx.emit(NewQuoteFacilitatorSetEvent(r, q))
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// RevealQuote opens taker's commitment. The salt and amount must reproduce
// the committed hash and the amount must meet the RFQ floor.
func (e *Engine) RevealQuote(taker, rfqID types.Address, salt [SaltLength]byte, amount uint64) (*Quote, error) {
	var out *Quote
	err := e.run("reveal", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if r.Status != StatusCommitted && r.Status != StatusRevealed {
			return ErrInvalidState
		}
		q, err := tx.loadQuote(QuoteID(r.ID, taker))
		if err != nil {
			return err
		}
		if q.Taker != taker {
			return ErrNotTaker
		}
		if q.RevealedAt != nil {
			return ErrQuoteAlreadyRevealed
		}
		commitDeadline, err := mustDeadline(CommitDeadline(r))
		if err != nil {
			return err
		}
		revealDeadline, err := mustDeadline(RevealDeadline(r))
		if err != nil {
			return err
		}
		if tx.now <= commitDeadline {
			return ErrRevealTooEarly
		}
		if tx.now > revealDeadline {
			return ErrRevealTooLate
		}
		if err := verifyReveal(r, q, salt, amount); err != nil {
			return err
		}
		if r.RevealedCount >= r.CommittedCount {
			return ErrCounterOverflow
		}
		q.RevealedAt = int64Ptr(tx.now)
		q.QuoteAmount = uint64Ptr(amount)
		r.RevealedCount++
		r.Status = StatusRevealed
		if err := tx.state.QuotePut(q); err != nil {
			return err
		}
		if err := tx.state.RFQPut(r); err != nil {
			return err
		}
		tx.emit(NewQuoteRevealedEvent(r, q))
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// SelectAccounts names the maker accounts used by a selection. A zero quote
// account selects the maker's associated account for the quote asset.
type SelectAccounts struct {
	MakerBaseAccount  types.Address
	MakerQuoteAccount types.Address
}

// SelectQuote picks the winning quote, escrows the maker's base asset and
// records the settlement snapshot.
func (e *Engine) SelectQuote(caller, rfqID, quoteID types.Address, accounts SelectAccounts) (*Settlement, error) {
	if accounts.MakerBaseAccount.IsZero() {
		return nil, ErrInvalidAccount
	}
	var out *Settlement
	err := e.run("select", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if err := requireMaker(r, caller); err != nil {
			return err
		}
		if r.SelectedQuote != nil || r.Settlement != nil {
			return ErrAlreadySelected
		}
		if r.Status != StatusRevealed {
			return ErrInvalidState
		}
		revealDeadline, err := mustDeadline(RevealDeadline(r))
		if err != nil {
			return err
		}
		selectionDeadline, err := mustDeadline(SelectionDeadline(r))
		if err != nil {
			return err
		}
		if tx.now <= revealDeadline {
			return ErrSelectionTooEarly
		}
		if tx.now > selectionDeadline {
			return ErrSelectionTooLate
		}
		q, err := tx.loadQuote(quoteID)
		if err != nil {
			return err
		}
		if q.RFQ != r.ID {
			return ErrQuoteRFQMismatch
		}
		if !q.Revealed() {
			return ErrQuoteNotRevealed
		}
		if q.Selected {
			return ErrQuoteAlreadySelected
		}
		makerQuote, err := tx.participantAccount(accounts.MakerQuoteAccount, r.Maker, r.QuoteAsset)
		if err != nil {
			return err
		}
		vault := BaseVault(r.ID)
		if _, err := tx.state.AccountOpen(vault, CustodyAuthority, r.BaseAsset); err != nil {
			return err
		}
		if err := tx.collect(r.BaseAsset, accounts.MakerBaseAccount, vault, r.Maker, r.BaseAmount); err != nil {
			return err
		}
		s := buildSettlement(r, q, SelectAccounts{MakerBaseAccount: accounts.MakerBaseAccount, MakerQuoteAccount: makerQuote}, tx.now)
		if err := tx.state.SettlementCreate(s); err != nil {
			return translateExists(err, ErrAlreadySelected)
		}
		q.Selected = true
		r.SelectedQuote = addressPtr(q.ID)
		r.Settlement = addressPtr(s.ID)
		r.SelectedAt = int64Ptr(tx.now)
		r.Status = StatusSelected
		if err := tx.state.QuotePut(q); err != nil {
			return err
		}
		if err := tx.state.RFQPut(r); err != nil {
			return err
		}
		tx.emit(NewQuoteSelectedEvent(r, s))
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// CompleteAccounts names the taker accounts used at settlement. A zero base
// account selects the taker's associated account for the base asset.
type CompleteAccounts struct {
	TakerBaseAccount  types.Address
	TakerQuoteAccount types.Address
}

// CompleteSettlement finishes the trade: both bonds are refunded, the fee is
// split, the base asset goes to the taker and the quote asset to the maker.
// Bonds of unrevealed quotes are forfeited to the treasury.
func (e *Engine) CompleteSettlement(caller, rfqID types.Address, accounts CompleteAccounts) (*Settlement, error) {
	if accounts.TakerQuoteAccount.IsZero() {
		return nil, ErrInvalidAccount
	}
	var out *Settlement
	err := e.run("complete", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if r.Status != StatusSelected || r.Settlement == nil || r.SelectedQuote == nil {
			return ErrInvalidState
		}
		s, err := tx.loadSettlement(*r.Settlement)
		if err != nil {
			return err
		}
		if s.Taker != caller {
			return ErrNotTaker
		}
		fundingDeadline, err := mustDeadline(FundingDeadline(r))
		if err != nil {
			return err
		}
		if tx.now > fundingDeadline {
			return ErrFundingTooLate
		}
		q, err := tx.loadQuote(*r.SelectedQuote)
		if err != nil {
			return err
		}
		split, err := fees.Split(fees.SplitInput{
			FeeAmount:         s.FeeAmount,
			FacilitatorFeeBps: r.FacilitatorFeeBps,
			RFQFacilitator:    r.Facilitator,
			QuoteFacilitator:  q.Facilitator,
		})
		if err != nil {
			return translateFeeError(err)
		}
		takerBase, err := tx.participantAccount(accounts.TakerBaseAccount, s.Taker, s.BaseAsset)
		if err != nil {
			return err
		}
		treasury, err := tx.treasuryAccount(r)
		if err != nil {
			return err
		}

		if err := tx.release(r.SettlementAsset, s.BondsFeesVault, s.MakerPaymentAccount, s.BondAmount); err != nil {
			return err
		}
		if err := tx.release(r.SettlementAsset, s.BondsFeesVault, s.TakerPaymentAccount, s.BondAmount); err != nil {
			return err
		}
		if err := tx.collect(r.SettlementAsset, s.TakerPaymentAccount, treasury, s.Taker, split.TreasuryShare); err != nil {
			return err
		}
		if err := tx.collect(r.SettlementAsset, s.TakerPaymentAccount, s.BondsFeesVault, s.Taker, split.FacilitatorShare); err != nil {
			return err
		}
		if err := tx.release(s.BaseAsset, s.BaseVault, takerBase, s.BaseAmount); err != nil {
			return err
		}
		if err := tx.collect(s.QuoteAsset, accounts.TakerQuoteAccount, s.MakerQuoteAccount, s.Taker, s.QuoteAmount); err != nil {
			return err
		}
		if _, err := tx.resolveSlashing(r, false); err != nil {
			return err
		}
		feesRecord := &FeesTracker{
			RFQ:              r.ID,
			Taker:            s.Taker,
			Asset:            r.SettlementAsset,
			TreasuryOwner:    r.TreasuryOwner,
			TreasuryShare:    split.TreasuryShare,
			FacilitatorShare: split.FacilitatorShare,
			PaidAt:           tx.now,
		}
		if err := tx.state.FeesTrackerCreate(feesRecord); err != nil {
			return translateExists(err, ErrFeesAlreadyRecorded)
		}
		tx.fees = [2]uint64{split.TreasuryShare, split.FacilitatorShare}

		takerQuote := accounts.TakerQuoteAccount
		s.TakerBaseAccount = addressPtr(takerBase)
		s.TakerQuoteAccount = addressPtr(takerQuote)
		s.TakerFundedAt = int64Ptr(tx.now)
		s.CompletedAt = int64Ptr(tx.now)
		q.BondsRefundedAt = int64Ptr(tx.now)
		r.CompletedAt = int64Ptr(tx.now)
		r.Status = StatusSettled
		if err := tx.state.SettlementPut(s); err != nil {
			return err
		}
		if err := tx.state.QuotePut(q); err != nil {
			return err
		}
		if err := tx.state.RFQPut(r); err != nil {
			return err
		}
		tx.emit(NewSettledEvent(r, s, split))
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func translateFeeError(err error) error {
	switch err {
	case fees.ErrBpsOutOfRange:
		return ErrInvalidBps
	case fees.ErrFeeOverflow:
		return ErrArithmeticOverflow
	default:
		return err
	}
}

// RefundQuoteBonds returns the bond of a revealed quote that was not
// selected. It is available once the RFQ settled or its funding deadline
// passed. When the RFQ was never closed the matching exit path runs first.
func (e *Engine) RefundQuoteBonds(taker, rfqID types.Address) (*Quote, error) {
	var out *Quote
	err := e.run("refund_quote_bonds", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		q, err := tx.loadQuote(QuoteID(r.ID, taker))
		if err != nil {
			return err
		}
		if q.Taker != taker {
			return ErrNotTaker
		}
		if !q.Revealed() {
			return ErrQuoteNotRevealed
		}
		if q.Selected {
			return ErrQuoteIsSelected
		}
		if q.BondsRefundedAt != nil {
			return ErrBondsAlreadyRefunded
		}
		if r.Status != StatusSettled {
			fundingDeadline, err := mustDeadline(FundingDeadline(r))
			if err != nil {
				return err
			}
			if tx.now <= fundingDeadline {
				return ErrTooEarlyToClose
			}
		}
		switch r.Status {
		case StatusRevealed:
			if err := tx.closeIgnored(r, taker); err != nil {
				return err
			}
		case StatusSelected:
			if err := tx.closeIncomplete(r, taker); err != nil {
				return err
			}
		case StatusSettled, StatusIgnored, StatusIncomplete:
		default:
			return ErrInvalidState
		}
		if err := tx.release(r.SettlementAsset, BondsVault(r.ID), q.PaymentAccount, r.BondAmount); err != nil {
			return err
		}
		q.BondsRefundedAt = int64Ptr(tx.now)
		if err := tx.state.QuotePut(q); err != nil {
			return err
		}
		tx.emit(NewQuoteBondsRefundedEvent(r, q))
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// WithdrawFacilitatorReward pays the facilitator share retained at settlement
// to the facilitator's associated account. Each (RFQ, facilitator) pair can
// withdraw once.
func (e *Engine) WithdrawFacilitatorReward(caller, rfqID types.Address) (*FacilitatorRewardTracker, error) {
	var out *FacilitatorRewardTracker
	err := e.run("withdraw_reward", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if r.Status != StatusSettled || r.SelectedQuote == nil {
			return ErrInvalidState
		}
		q, err := tx.loadQuote(*r.SelectedQuote)
		if err != nil {
			return err
		}
		if r.Facilitator == nil || q.Facilitator == nil || *r.Facilitator != caller || *q.Facilitator != caller {
			return ErrNotFacilitator
		}
		paid, ok, err := tx.state.FeesTrackerGet(r.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		share := paid.FacilitatorShare
		if share == 0 {
			return ErrNoFacilitatorReward
		}
		tracker := &FacilitatorRewardTracker{
			RFQ:         r.ID,
			Facilitator: caller,
			Asset:       r.SettlementAsset,
			Amount:      share,
			ClaimedAt:   tx.now,
		}
		if err := tx.state.RewardTrackerCreate(tracker); err != nil {
			return translateExists(err, ErrRewardAlreadyClaimed)
		}
		dest, err := tx.participantAccount(types.Address{}, caller, r.SettlementAsset)
		if err != nil {
			return err
		}
		if err := tx.release(r.SettlementAsset, BondsVault(r.ID), dest, share); err != nil {
			return err
		}
		tx.emit(NewRewardWithdrawnEvent(r, tracker))
		out = tracker
		return nil
	})
	if err != nil {
		return nil, err
	}
	clone := *out
	return &clone, nil
}
