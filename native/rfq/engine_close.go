package rfq

import "rfqsettle/core/types"

// CloseExpired ends a request that never received a reveal. Anyone may call
// it once the reveal window is over, or once the commit window is over when
// nobody committed. Without commits the maker bond is refunded; otherwise it
// is forfeited together with every unrevealed taker bond.
func (e *Engine) CloseExpired(caller, rfqID types.Address) (*RFQ, error) {
	var out *RFQ
	err := e.run("close_expired", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if r.Status != StatusOpen && r.Status != StatusCommitted {
			return ErrInvalidState
		}
		if r.RevealedCount != 0 {
			return ErrRevealsExist
		}
		var deadline int64
		if r.CommittedCount == 0 {
			deadline, err = mustDeadline(CommitDeadline(r))
		} else {
			deadline, err = mustDeadline(RevealDeadline(r))
		}
		if err != nil {
			return err
		}
		if tx.now <= deadline {
			return ErrTooEarlyToClose
		}
		if r.CommittedCount == 0 {
			if err := tx.release(r.SettlementAsset, BondsVault(r.ID), r.MakerPaymentAccount, r.BondAmount); err != nil {
				return err
			}
			if _, err := tx.resolveSlashing(r, false); err != nil {
				return err
			}
		} else if _, err := tx.resolveSlashing(r, true); err != nil {
			return err
		}
		r.Status = StatusExpired
		r.CompletedAt = int64Ptr(tx.now)
		if err := tx.state.RFQPut(r); err != nil {
			return err
		}
		tx.emit(NewExpiredEvent(r, caller))
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// CloseIgnored ends a request whose maker never selected a revealed quote
// before the selection deadline. The maker bond is refunded and unrevealed
// bonds are forfeited; revealed takers reclaim their bonds individually.
func (e *Engine) CloseIgnored(caller, rfqID types.Address) (*RFQ, error) {
	var out *RFQ
	err := e.run("close_ignored", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if r.Status != StatusRevealed {
			return ErrInvalidState
		}
		deadline, err := mustDeadline(SelectionDeadline(r))
		if err != nil {
			return err
		}
		if tx.now <= deadline {
			return ErrTooEarlyToClose
		}
		if err := tx.closeIgnored(r, caller); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// CloseIncomplete ends a request whose selected taker never funded before the
// funding deadline. The maker gets back its bond and base asset; the selected
// taker's bond is forfeited together with every unrevealed bond.
func (e *Engine) CloseIncomplete(caller, rfqID types.Address) (*RFQ, error) {
	var out *RFQ
	err := e.run("close_incomplete", rfqID, func(tx *txn) error {
		r, err := tx.loadRFQ(rfqID)
		if err != nil {
			return err
		}
		if r.Status != StatusSelected {
			return ErrInvalidState
		}
		deadline, err := mustDeadline(FundingDeadline(r))
		if err != nil {
			return err
		}
		if tx.now <= deadline {
			return ErrTooEarlyToClose
		}
		if err := tx.closeIncomplete(r, caller); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// closeIgnored moves r from Revealed to Ignored. Deadline checks are the
// caller's responsibility.
func (tx *txn) closeIgnored(r *RFQ, caller types.Address) error {
	if err := tx.release(r.SettlementAsset, BondsVault(r.ID), r.MakerPaymentAccount, r.BondAmount); err != nil {
		return err
	}
	if _, err := tx.resolveSlashing(r, false); err != nil {
		return err
	}
	r.Status = StatusIgnored
	r.CompletedAt = int64Ptr(tx.now)
	if err := tx.state.RFQPut(r); err != nil {
		return err
	}
	tx.emit(NewIgnoredEvent(r, caller))
	return nil
}

// closeIncomplete moves r from Selected to Incomplete and clears the
// settlement record.
func (tx *txn) closeIncomplete(r *RFQ, caller types.Address) error {
	if r.Settlement == nil {
		return ErrSettlementNotFound
	}
	s, err := tx.loadSettlement(*r.Settlement)
	if err != nil {
		return err
	}
	if err := tx.release(r.SettlementAsset, s.BondsFeesVault, s.MakerPaymentAccount, r.BondAmount); err != nil {
		return err
	}
	if err := tx.release(s.BaseAsset, s.BaseVault, s.MakerBaseAccount, s.BaseAmount); err != nil {
		return err
	}
	if _, err := tx.resolveSlashing(r, true); err != nil {
		return err
	}
	if err := tx.state.SettlementDelete(s.ID); err != nil {
		return err
	}
	r.Settlement = nil
	r.Status = StatusIncomplete
	r.CompletedAt = int64Ptr(tx.now)
	if err := tx.state.RFQPut(r); err != nil {
		return err
	}
	tx.emit(NewIncompleteEvent(r, s, caller))
	return nil
}
