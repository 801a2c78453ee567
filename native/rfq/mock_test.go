package rfq

import (
	"sync"

	"rfqsettle/core/types"
)

type rewardKey struct {
	rfq, facilitator types.Address
}

type mockState struct {
	rfqs        map[types.Address]*RFQ
	quotes      map[types.Address]*Quote
	guards      map[[32]byte]*CommitGuard
	settlements map[types.Address]*Settlement
	trackers    map[types.Address]*SlashedBondsTracker
	rewards     map[rewardKey]*FacilitatorRewardTracker
	feeRecords  map[types.Address]*FeesTracker
	accounts    map[types.Address]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		rfqs:        make(map[types.Address]*RFQ),
		quotes:      make(map[types.Address]*Quote),
		guards:      make(map[[32]byte]*CommitGuard),
		settlements: make(map[types.Address]*Settlement),
		trackers:    make(map[types.Address]*SlashedBondsTracker),
		rewards:     make(map[rewardKey]*FacilitatorRewardTracker),
		feeRecords:  make(map[types.Address]*FeesTracker),
		accounts:    make(map[types.Address]*types.Account),
	}
}

func (m *mockState) clone() *mockState {
	out := newMockState()
	for k, v := range m.rfqs {
		out.rfqs[k] = v.Clone()
	}
	for k, v := range m.quotes {
		out.quotes[k] = v.Clone()
	}
	for k, v := range m.guards {
		g := *v
		out.guards[k] = &g
	}
	for k, v := range m.settlements {
		out.settlements[k] = v.Clone()
	}
	for k, v := range m.trackers {
		out.trackers[k] = v.Clone()
	}
	for k, v := range m.rewards {
		r := *v
		out.rewards[k] = &r
	}
	for k, v := range m.feeRecords {
		f := *v
		out.feeRecords[k] = &f
	}
	for k, v := range m.accounts {
		out.accounts[k] = v.Clone()
	}
	return out
}

func (m *mockState) RFQGet(id types.Address) (*RFQ, bool, error) {
	r, ok := m.rfqs[id]
	return r.Clone(), ok, nil
}

func (m *mockState) RFQCreate(r *RFQ) error {
	if _, ok := m.rfqs[r.ID]; ok {
		return ErrRecordExists
	}
	m.rfqs[r.ID] = r.Clone()
	return nil
}

func (m *mockState) RFQPut(r *RFQ) error {
	m.rfqs[r.ID] = r.Clone()
	return nil
}

func (m *mockState) RFQDelete(id types.Address) error {
	delete(m.rfqs, id)
	return nil
}

func (m *mockState) QuoteGet(id types.Address) (*Quote, bool, error) {
	q, ok := m.quotes[id]
	return q.Clone(), ok, nil
}

func (m *mockState) QuoteCreate(q *Quote) error {
	if _, ok := m.quotes[q.ID]; ok {
		return ErrRecordExists
	}
	m.quotes[q.ID] = q.Clone()
	return nil
}

func (m *mockState) QuotePut(q *Quote) error {
	m.quotes[q.ID] = q.Clone()
	return nil
}

func (m *mockState) CommitGuardGet(hash [32]byte) (*CommitGuard, bool, error) {
	g, ok := m.guards[hash]
	if !ok {
		return nil, false, nil
	}
	out := *g
	return &out, true, nil
}

func (m *mockState) CommitGuardCreate(g *CommitGuard) error {
	if _, ok := m.guards[g.Hash]; ok {
		return ErrRecordExists
	}
	out := *g
	m.guards[g.Hash] = &out
	return nil
}

func (m *mockState) SettlementGet(id types.Address) (*Settlement, bool, error) {
	s, ok := m.settlements[id]
	return s.Clone(), ok, nil
}

func (m *mockState) SettlementCreate(s *Settlement) error {
	if _, ok := m.settlements[s.ID]; ok {
		return ErrRecordExists
	}
	m.settlements[s.ID] = s.Clone()
	return nil
}

func (m *mockState) SettlementPut(s *Settlement) error {
	m.settlements[s.ID] = s.Clone()
	return nil
}

func (m *mockState) SettlementDelete(id types.Address) error {
	delete(m.settlements, id)
	return nil
}

func (m *mockState) SlashedBondsGet(rfqID types.Address) (*SlashedBondsTracker, bool, error) {
	t, ok := m.trackers[rfqID]
	return t.Clone(), ok, nil
}

func (m *mockState) SlashedBondsCreate(t *SlashedBondsTracker) error {
	if _, ok := m.trackers[t.RFQ]; ok {
		return ErrRecordExists
	}
	m.trackers[t.RFQ] = t.Clone()
	return nil
}

func (m *mockState) SlashedBondsPut(t *SlashedBondsTracker) error {
	m.trackers[t.RFQ] = t.Clone()
	return nil
}

func (m *mockState) RewardTrackerGet(rfqID, facilitator types.Address) (*FacilitatorRewardTracker, bool, error) {
	r, ok := m.rewards[rewardKey{rfqID, facilitator}]
	if !ok {
		return nil, false, nil
	}
	out := *r
	return &out, true, nil
}

func (m *mockState) RewardTrackerCreate(t *FacilitatorRewardTracker) error {
	key := rewardKey{t.RFQ, t.Facilitator}
	if _, ok := m.rewards[key]; ok {
		return ErrRecordExists
	}
	out := *t
	m.rewards[key] = &out
	return nil
}

func (m *mockState) FeesTrackerGet(rfqID types.Address) (*FeesTracker, bool, error) {
	f, ok := m.feeRecords[rfqID]
	if !ok {
		return nil, false, nil
	}
	out := *f
	return &out, true, nil
}

func (m *mockState) FeesTrackerCreate(t *FeesTracker) error {
	if _, ok := m.feeRecords[t.RFQ]; ok {
		return ErrRecordExists
	}
	out := *t
	m.feeRecords[t.RFQ] = &out
	return nil
}

func (m *mockState) AccountGet(id types.Address) (*types.Account, bool, error) {
	acc, ok := m.accounts[id]
	return acc.Clone(), ok, nil
}

func (m *mockState) AccountOpen(id, owner, asset types.Address) (*types.Account, error) {
	if acc, ok := m.accounts[id]; ok {
		if acc.Owner != owner {
			return nil, ErrAccountOwnerMismatch
		}
		if acc.Asset != asset {
			return nil, ErrAccountAssetMismatch
		}
		return acc.Clone(), nil
	}
	acc := &types.Account{ID: id, Owner: owner, Asset: asset}
	m.accounts[id] = acc
	return acc.Clone(), nil
}

func (m *mockState) Transfer(asset, from, to, authority types.Address, amount uint64) error {
	src, ok := m.accounts[from]
	if !ok {
		return ErrAccountNotFound
	}
	dst, ok := m.accounts[to]
	if !ok {
		return ErrAccountNotFound
	}
	if src.Owner != authority {
		return ErrAccountOwnerMismatch
	}
	if src.Asset != asset || dst.Asset != asset {
		return ErrAccountAssetMismatch
	}
	if src.Frozen || dst.Frozen {
		return ErrAccountFrozen
	}
	if src.Balance < amount {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	if dst.Balance+amount < dst.Balance {
		return ErrArithmeticOverflow
	}
	src.Balance -= amount
	dst.Balance += amount
	return nil
}

// mockStore applies actions to a copy of the state and swaps it in on
// success.
type mockStore struct {
	mu    sync.Mutex
	state *mockState
}

func newMockStore() *mockStore { return &mockStore{state: newMockState()} }

func (s *mockStore) Atomic(fn func(State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *mockStore) View(fn func(State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state.clone())
}
