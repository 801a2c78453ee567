package state

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"rfqsettle/core/events"
	"rfqsettle/core/types"
	"rfqsettle/native/rfq"
	"rfqsettle/storage"
)

var errReadOnly = errors.New("state: write attempted in read-only view")

// Manager persists the settlement engine state in a key-value database. It
// implements rfq.Store: every action runs inside one database transaction.
type Manager struct {
	db      storage.Database
	emitter events.Emitter
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, emitter: events.NoopEmitter{}}
}

// SetEmitter configures where committed ledger transfers are reported.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	m.emitter = emitter
}

// Atomic implements rfq.Store. Ledger transfers are emitted after the
// transaction commits.
func (m *Manager) Atomic(fn func(rfq.State) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: database not configured")
	}
	var committed []events.Transfer
	err := m.db.Update(func(tx storage.Tx) error {
		v := &view{r: tx, w: tx}
		if err := fn(v); err != nil {
			return err
		}
		committed = v.transfers
		return nil
	})
	if err != nil {
		return err
	}
	for i := range committed {
		m.emitter.Emit(committed[i])
	}
	return nil
}

// View implements rfq.Store with a read-only view of committed state.
func (m *Manager) View(fn func(rfq.State) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: database not configured")
	}
	return fn(&view{r: m.db})
}

// view is the rfq.State backed by a storage transaction. w is nil for
// read-only views.
type view struct {
	r         storage.Reader
	w         storage.Tx
	transfers []events.Transfer
}

func (v *view) get(key []byte, out interface{}) (bool, error) {
	data, err := v.r.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (v *view) put(key []byte, value interface{}) error {
	if v.w == nil {
		return errReadOnly
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return v.w.Put(key, encoded)
}

// create writes value only when key is absent.
func (v *view) create(key []byte, value interface{}) error {
	exists, err := v.r.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return rfq.ErrRecordExists
	}
	return v.put(key, value)
}

func (v *view) remove(key []byte) error {
	if v.w == nil {
		return errReadOnly
	}
	return v.w.Delete(key)
}

// appendIndex adds id to the list stored under key. Duplicates are ignored
// to keep the index deterministic.
func (v *view) appendIndex(key []byte, id types.Address) error {
	var list []types.Address
	if _, err := v.get(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing[:], id[:]) {
			return nil
		}
	}
	list = append(list, id)
	return v.put(key, list)
}

func (v *view) index(key []byte) ([]types.Address, error) {
	var list []types.Address
	if _, err := v.get(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (v *view) RFQGet(id types.Address) (*rfq.RFQ, bool, error) {
	var stored storedRFQ
	ok, err := v.get(rfqKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toRFQ(), true, nil
}

func (v *view) RFQCreate(r *rfq.RFQ) error { return v.create(rfqKey(r.ID), newStoredRFQ(r)) }

func (v *view) RFQPut(r *rfq.RFQ) error { return v.put(rfqKey(r.ID), newStoredRFQ(r)) }

func (v *view) RFQDelete(id types.Address) error { return v.remove(rfqKey(id)) }

func (v *view) QuoteGet(id types.Address) (*rfq.Quote, bool, error) {
	var stored storedQuote
	ok, err := v.get(quoteKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toQuote(), true, nil
}

func (v *view) QuoteCreate(q *rfq.Quote) error {
	if err := v.create(quoteKey(q.ID), newStoredQuote(q)); err != nil {
		return err
	}
	return v.appendIndex(quoteIndexKey(q.RFQ), q.ID)
}

func (v *view) QuotePut(q *rfq.Quote) error { return v.put(quoteKey(q.ID), newStoredQuote(q)) }

func (v *view) CommitGuardGet(hash [32]byte) (*rfq.CommitGuard, bool, error) {
	var stored storedCommitGuard
	ok, err := v.get(guardKey(hash), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &rfq.CommitGuard{Hash: stored.Hash, RFQ: stored.RFQ, Taker: stored.Taker, CommittedAt: int64(stored.CommittedAt)}, true, nil
}

func (v *view) CommitGuardCreate(g *rfq.CommitGuard) error {
	return v.create(guardKey(g.Hash), &storedCommitGuard{Hash: g.Hash, RFQ: g.RFQ, Taker: g.Taker, CommittedAt: uint64(g.CommittedAt)})
}

func (v *view) SettlementGet(id types.Address) (*rfq.Settlement, bool, error) {
	var stored storedSettlement
	ok, err := v.get(settlementKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stored.toSettlement(), true, nil
}

func (v *view) SettlementCreate(s *rfq.Settlement) error {
	return v.create(settlementKey(s.ID), newStoredSettlement(s))
}

func (v *view) SettlementPut(s *rfq.Settlement) error {
	return v.put(settlementKey(s.ID), newStoredSettlement(s))
}

func (v *view) SettlementDelete(id types.Address) error { return v.remove(settlementKey(id)) }

func (v *view) SlashedBondsGet(rfqID types.Address) (*rfq.SlashedBondsTracker, bool, error) {
	var stored storedSlashedBonds
	ok, err := v.get(slashedKey(rfqID), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &rfq.SlashedBondsTracker{
		RFQ:             stored.RFQ,
		SettlementAsset: stored.SettlementAsset,
		TreasuryOwner:   stored.TreasuryOwner,
		Amount:          stored.Amount.decode(),
		SeizedAt:        stored.SeizedAt.decode(),
	}, true, nil
}

func newStoredSlashedBonds(t *rfq.SlashedBondsTracker) *storedSlashedBonds {
	return &storedSlashedBonds{
		RFQ:             t.RFQ,
		SettlementAsset: t.SettlementAsset,
		TreasuryOwner:   t.TreasuryOwner,
		Amount:          encodeOptUint64(t.Amount),
		SeizedAt:        encodeOptInt64(t.SeizedAt),
	}
}

func (v *view) SlashedBondsCreate(t *rfq.SlashedBondsTracker) error {
	return v.create(slashedKey(t.RFQ), newStoredSlashedBonds(t))
}

func (v *view) SlashedBondsPut(t *rfq.SlashedBondsTracker) error {
	return v.put(slashedKey(t.RFQ), newStoredSlashedBonds(t))
}

func (v *view) RewardTrackerGet(rfqID, facilitator types.Address) (*rfq.FacilitatorRewardTracker, bool, error) {
	var stored storedReward
	ok, err := v.get(rewardKey(rfqID, facilitator), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &rfq.FacilitatorRewardTracker{
		RFQ:         stored.RFQ,
		Facilitator: stored.Facilitator,
		Asset:       stored.Asset,
		Amount:      stored.Amount,
		ClaimedAt:   int64(stored.ClaimedAt),
	}, true, nil
}

func (v *view) RewardTrackerCreate(t *rfq.FacilitatorRewardTracker) error {
	return v.create(rewardKey(t.RFQ, t.Facilitator), &storedReward{
		RFQ:         t.RFQ,
		Facilitator: t.Facilitator,
		Asset:       t.Asset,
		Amount:      t.Amount,
		ClaimedAt:   uint64(t.ClaimedAt),
	})
}

func (v *view) FeesTrackerGet(rfqID types.Address) (*rfq.FeesTracker, bool, error) {
	var stored storedFees
	ok, err := v.get(feesKey(rfqID), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &rfq.FeesTracker{
		RFQ:              stored.RFQ,
		Taker:            stored.Taker,
		Asset:            stored.Asset,
		TreasuryOwner:    stored.TreasuryOwner,
		TreasuryShare:    stored.TreasuryShare,
		FacilitatorShare: stored.FacilitatorShare,
		PaidAt:           int64(stored.PaidAt),
	}, true, nil
}

func (v *view) FeesTrackerCreate(t *rfq.FeesTracker) error {
	return v.create(feesKey(t.RFQ), &storedFees{
		RFQ:              t.RFQ,
		Taker:            t.Taker,
		Asset:            t.Asset,
		TreasuryOwner:    t.TreasuryOwner,
		TreasuryShare:    t.TreasuryShare,
		FacilitatorShare: t.FacilitatorShare,
		PaidAt:           uint64(t.PaidAt),
	})
}

// QuotesByRFQ returns every quote committed to rfqID in commit order.
func (m *Manager) QuotesByRFQ(rfqID types.Address) ([]*rfq.Quote, error) {
	var out []*rfq.Quote
	err := m.View(func(st rfq.State) error {
		v := st.(*view)
		ids, err := v.index(quoteIndexKey(rfqID))
		if err != nil {
			return err
		}
		out = make([]*rfq.Quote, 0, len(ids))
		for _, id := range ids {
			q, ok, err := v.QuoteGet(id)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, q)
			}
		}
		return nil
	})
	return out, err
}
