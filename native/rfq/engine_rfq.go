package rfq

import (
	"github.com/google/uuid"

	"rfqsettle/core/types"
)

// CreateParams describes a new request. A zero UUID is replaced with a random
// one.
type CreateParams struct {
	UUID                [16]byte
	BaseAsset           types.Address
	QuoteAsset          types.Address
	BondAmount          uint64
	BaseAmount          uint64
	MinQuoteAmount      uint64
	FeeAmount           uint64
	FacilitatorFeeBps   uint16
	Facilitator         *types.Address
	CommitTTL           uint32
	RevealTTL           uint32
	SelectionTTL        uint32
	FundTTL             uint32
	MakerPaymentAccount types.Address
}

// UpdateParams changes a draft request. Nil fields are left untouched.
type UpdateParams struct {
	BondAmount          *uint64
	BaseAmount          *uint64
	MinQuoteAmount      *uint64
	FeeAmount           *uint64
	FacilitatorFeeBps   *uint16
	CommitTTL           *uint32
	RevealTTL           *uint32
	SelectionTTL        *uint32
	FundTTL             *uint32
	MakerPaymentAccount *types.Address
}

func validateTerms(r *RFQ) error {
	if r.BondAmount == 0 || r.BaseAmount == 0 || r.MinQuoteAmount == 0 || r.FeeAmount == 0 {
		return ErrInvalidAmount
	}
	if r.CommitTTL == 0 || r.RevealTTL == 0 || r.SelectionTTL == 0 || r.FundTTL == 0 {
		return ErrInvalidTTL
	}
	if r.FacilitatorFeeBps > MaxBps {
		return ErrInvalidBps
	}
	if r.BaseAsset.IsZero() || r.QuoteAsset.IsZero() {
		return ErrInvalidAccount
	}
	if r.BaseAsset == r.QuoteAsset {
		return ErrSameAsset
	}
	if r.MakerPaymentAccount.IsZero() {
		return ErrInvalidAccount
	}
	if r.Facilitator != nil && r.Facilitator.IsZero() {
		return ErrInvalidIdentity
	}
	return nil
}

func (e *Engine) checkFeeCeiling(bps uint16) error {
	if bps > e.registry.MaxFacilitatorBps {
		return ErrFacilitatorFeeTooHigh
	}
	return nil
}

func requireMaker(r *RFQ, caller types.Address) error {
	if r.Maker != caller {
		return ErrNotMaker
	}
	return nil
}

// CreateRFQ stores a new draft request owned by maker.
func (e *Engine) CreateRFQ(maker types.Address, params CreateParams) (*RFQ, error) {
	if err := requireIdentity(maker); err != nil {
		return nil, err
	}
	id := params.UUID
	if id == ([16]byte{}) {
		id = uuid.New()
	}
	r := &RFQ{
		ID:                  RFQID(maker, id),
		Maker:               maker,
		UUID:                id,
		BaseAsset:           params.BaseAsset,
		QuoteAsset:          params.QuoteAsset,
		BondAmount:          params.BondAmount,
		BaseAmount:          params.BaseAmount,
		MinQuoteAmount:      params.MinQuoteAmount,
		FeeAmount:           params.FeeAmount,
		FacilitatorFeeBps:   params.FacilitatorFeeBps,
		Facilitator:         cloneAddress(params.Facilitator),
		CommitTTL:           params.CommitTTL,
		RevealTTL:           params.RevealTTL,
		SelectionTTL:        params.SelectionTTL,
		FundTTL:             params.FundTTL,
		MakerPaymentAccount: params.MakerPaymentAccount,
		Status:              StatusDraft,
	}
	if err := validateTerms(r); err != nil {
		return nil, err
	}
	if err := e.checkFeeCeiling(r.FacilitatorFeeBps); err != nil {
		return nil, err
	}
	err := e.run("create", r.ID, func(tx *txn) error {
		r.CreatedAt = tx.now
		if err := tx.state.RFQCreate(r); err != nil {
			return translateExists(err, ErrRFQExists)
		}
		tx.emit(NewCreatedEvent(r))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// UpdateRFQ changes the terms of a draft request.
func (e *Engine) UpdateRFQ(caller, rfqID types.Address, params UpdateParams) (*RFQ, error) {
	var out *RFQ
	err := e.run("update", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if err := requireMaker(r, caller); err != nil {
			return err
		}
		if r.Status != StatusDraft {
			return ErrInvalidState
		}
		if params.BondAmount != nil {
			r.BondAmount = *params.BondAmount
		}
		if params.BaseAmount != nil {
			r.BaseAmount = *params.BaseAmount
		}
		if params.MinQuoteAmount != nil {
			r.MinQuoteAmount = *params.MinQuoteAmount
		}
		if params.FeeAmount != nil {
			r.FeeAmount = *params.FeeAmount
		}
		if params.FacilitatorFeeBps != nil {
			r.FacilitatorFeeBps = *params.FacilitatorFeeBps
		}
		if params.CommitTTL != nil {
			r.CommitTTL = *params.CommitTTL
		}
		if params.RevealTTL != nil {
			r.RevealTTL = *params.RevealTTL
		}
		if params.SelectionTTL != nil {
			r.SelectionTTL = *params.SelectionTTL
		}
		if params.FundTTL != nil {
			r.FundTTL = *params.FundTTL
		}
		if params.MakerPaymentAccount != nil {
			r.MakerPaymentAccount = *params.MakerPaymentAccount
		}
		if err := validateTerms(r); err != nil {
			return err
		}
		if err := e.checkFeeCeiling(r.FacilitatorFeeBps); err != nil {
			return err
		}
		if err := tx.state.RFQPut(r); err != nil {
			return err
		}
		tx.emit(NewUpdatedEvent(r))
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// CancelRFQ removes a draft request. Nothing has been escrowed yet.
func (e *Engine) CancelRFQ(caller, rfqID types.Address) error {
	return e.run("cancel", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if err := requireMaker(r, caller); err != nil {
			return err
		}
		if r.Status != StatusDraft {
			return ErrInvalidState
		}
		if err := tx.state.RFQDelete(r.ID); err != nil {
			return err
		}
		tx.emit(NewCancelledEvent(r))
		return nil
	})
}

// OpenRFQ snapshots the registry, escrows the maker bond and starts the
// commit window.
func (e *Engine) OpenRFQ(caller, rfqID types.Address) (*RFQ, error) {
	var out *RFQ
	err := e.run("open", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if err := requireMaker(r, caller); err != nil {
			return err
		}
		if r.Status != StatusDraft {
			return ErrInvalidState
		}
		if err := validateTerms(r); err != nil {
			return err
		}
		if err := e.registry.Validate(); err != nil {
			return err
		}
		if err := e.checkFeeCeiling(r.FacilitatorFeeBps); err != nil {
			return err
		}
		r.SettlementAsset = e.registry.SettlementAsset
		r.TreasuryOwner = e.registry.TreasuryOwner
		r.AttestationKey = e.registry.AttestationKey
		if _, err := tx.treasuryAccount(r); err != nil {
			return err
		}

		vault := BondsVault(r.ID)
		if _, err := tx.state.AccountOpen(vault, CustodyAuthority, r.SettlementAsset); err != nil {
			return err
		}
		if err := tx.collect(r.SettlementAsset, r.MakerPaymentAccount, vault, r.Maker, r.BondAmount); err != nil {
			return err
		}
		tracker := &SlashedBondsTracker{
			RFQ:             r.ID,
			SettlementAsset: r.SettlementAsset,
			TreasuryOwner:   r.TreasuryOwner,
		}
		if err := tx.state.SlashedBondsCreate(tracker); err != nil {
			return err
		}
		r.OpenedAt = int64Ptr(tx.now)
		r.Status = StatusOpen
		if err := tx.state.RFQPut(r); err != nil {
			return err
		}
		tx.emit(NewOpenedEvent(r))
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// SetRFQFacilitator sets or clears the referring facilitator of a live
// request.
func (e *Engine) SetRFQFacilitator(caller, rfqID types.Address, update FacilitatorUpdate) (*RFQ, error) {
	var out *RFQ
	err := e.run("set_facilitator", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if err := requireMaker(r, caller); err != nil {
			return err
		}
		if !facilitatorMutable(r.Status) {
			return ErrInvalidState
		}
		facilitator, err := update.apply()
		if err != nil {
			return err
		}
		r.Facilitator = facilitator
		if err := tx.state.RFQPut(r); err != nil {
			return err
		}
		tx.emit(NewFacilitatorSetEvent(r))
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func facilitatorMutable(status Status) bool {
	switch status {
	case StatusDraft, StatusOpen, StatusCommitted, StatusRevealed, StatusSelected:
		return true
	default:
		return false
	}
}
