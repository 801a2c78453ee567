package rfq

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"rfqsettle/core/events"
	"rfqsettle/core/types"
)

// State is the transactional view handed to every engine action. Create
// methods must fail with ErrRecordExists when the key is already present.
type State interface {
	RFQGet(id types.Address) (*RFQ, bool, error)
	RFQCreate(r *RFQ) error
	RFQPut(r *RFQ) error
	RFQDelete(id types.Address) error

	QuoteGet(id types.Address) (*Quote, bool, error)
	QuoteCreate(q *Quote) error
	QuotePut(q *Quote) error

	CommitGuardGet(hash [32]byte) (*CommitGuard, bool, error)
	CommitGuardCreate(g *CommitGuard) error

	SettlementGet(id types.Address) (*Settlement, bool, error)
	SettlementCreate(s *Settlement) error
	SettlementPut(s *Settlement) error
	SettlementDelete(id types.Address) error

	SlashedBondsGet(rfqID types.Address) (*SlashedBondsTracker, bool, error)
	SlashedBondsCreate(t *SlashedBondsTracker) error
	SlashedBondsPut(t *SlashedBondsTracker) error

	RewardTrackerGet(rfqID, facilitator types.Address) (*FacilitatorRewardTracker, bool, error)
	RewardTrackerCreate(t *FacilitatorRewardTracker) error

	FeesTrackerGet(rfqID types.Address) (*FeesTracker, bool, error)
	FeesTrackerCreate(t *FeesTracker) error

	// AccountGet loads a ledger account.
	AccountGet(id types.Address) (*types.Account, bool, error)
	// AccountOpen creates the account when missing. An existing account must
	// match owner and asset.
	AccountOpen(id, owner, asset types.Address) (*types.Account, error)
	// Transfer moves amount of asset between two accounts. authority must own
	// the source account.
	Transfer(asset, from, to, authority types.Address, amount uint64) error
}

// Store runs engine actions atomically. Writes made inside Atomic are only
// persisted when fn returns nil.
type Store interface {
	Atomic(fn func(State) error) error
	View(fn func(State) error) error
}

// Metrics receives action outcomes and economic totals.
type Metrics interface {
	ObserveAction(action, outcome string)
	ObserveSlash(amount uint64)
	ObserveFees(treasury, facilitator uint64)
}

type rfqEvent struct {
	evt *types.Event
}

func (e rfqEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e rfqEvent) Event() *types.Event { return e.evt }

// Engine drives the RFQ lifecycle on top of a transactional store. Actions
// are serialised; each runs in a single atomic unit and its events are only
// emitted after the unit commits.
type Engine struct {
	mu       sync.Mutex
	store    Store
	registry Registry
	verifier SignatureVerifier
	emitter  events.Emitter
	metrics  Metrics
	logger   *slog.Logger
	nowFn    func() int64
}

// NewEngine creates an engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetStore configures the state backend used by the engine.
func (e *Engine) SetStore(store Store) { e.store = store }

// SetRegistry installs the configuration snapshot copied into RFQs on open.
func (e *Engine) SetRegistry(registry Registry) { e.registry = registry }

// Registry returns the configured registry.
func (e *Engine) Registry() Registry { return e.registry }

// SetVerifier configures the signature verification service.
func (e *Engine) SetVerifier(verifier SignatureVerifier) { e.verifier = verifier }

// SetMetrics configures the metrics sink. nil disables metrics.
func (e *Engine) SetMetrics(metrics Metrics) { e.metrics = metrics }

// SetLogger configures the structured logger. nil restores slog.Default.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// txn carries the state of one action while it runs.
type txn struct {
	state   State
	now     int64
	events  []*types.Event
	slashed uint64
	fees    [2]uint64
}

func (t *txn) emit(evt *types.Event) {
	if evt != nil {
		t.events = append(t.events, evt)
	}
}

// run executes fn as one atomic action. The clock is read once before the
// unit starts.
func (e *Engine) run(action string, rfqID types.Address, fn func(*txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return errNilState
	}
	tx := &txn{now: e.now()}
	err := e.store.Atomic(func(state State) error {
		tx.state = state
		tx.events = tx.events[:0]
		tx.slashed = 0
		tx.fees = [2]uint64{}
		return fn(tx)
	})
	e.observe(action, rfqID, err)
	if err != nil {
		return err
	}
	if e.metrics != nil {
		if tx.slashed > 0 {
			e.metrics.ObserveSlash(tx.slashed)
		}
		if tx.fees[0] > 0 || tx.fees[1] > 0 {
			e.metrics.ObserveFees(tx.fees[0], tx.fees[1])
		}
	}
	if tx.slashed > 0 && e.logger != nil {
		e.logger.Warn("rfq bonds slashed", "action", action, "rfq", rfqID.Hex(), "amount", tx.slashed)
	}
	for _, evt := range tx.events {
		e.emitter.Emit(rfqEvent{evt: evt})
	}
	return nil
}

func (e *Engine) observe(action string, rfqID types.Address, err error) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	if e.metrics != nil {
		e.metrics.ObserveAction(action, outcome)
	}
	if e.logger == nil {
		return
	}
	if err != nil {
		e.logger.Warn("rfq action rejected", "action", action, "rfq", rfqID.Hex(), "kind", outcome, "error", err)
		return
	}
	e.logger.Info("rfq action applied", "action", action, "rfq", rfqID.Hex())
}

func (e *Engine) view(fn func(State) error) error {
	if e.store == nil {
		return errNilState
	}
	return e.store.View(fn)
}

func (t *txn) loadRFQ(id types.Address) (*RFQ, error) {
	r, ok, err := t.state.RFQGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRFQNotFound
	}
	return r, nil
}

func (t *txn) loadQuote(id types.Address) (*Quote, error) {
	q, ok, err := t.state.QuoteGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrQuoteNotFound
	}
	return q, nil
}

func (t *txn) loadSettlement(id types.Address) (*Settlement, error) {
	s, ok, err := t.state.SettlementGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSettlementNotFound
	}
	return s, nil
}

func (t *txn) loadTracker(rfqID types.Address) (*SlashedBondsTracker, error) {
	tracker, ok, err := t.state.SlashedBondsGet(rfqID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTrackerNotFound
	}
	return tracker, nil
}

// release moves amount out of an escrow vault.
func (t *txn) release(asset, vault, to types.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return t.state.Transfer(asset, vault, to, CustodyAuthority, amount)
}

// collect moves amount from a participant account the caller owns.
func (t *txn) collect(asset, from, to, owner types.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return t.state.Transfer(asset, from, to, owner, amount)
}

func (t *txn) treasuryAccount(r *RFQ) (types.Address, error) {
	id := AssociatedAccount(r.TreasuryOwner, r.SettlementAsset)
	if _, err := t.state.AccountOpen(id, r.TreasuryOwner, r.SettlementAsset); err != nil {
		return types.Address{}, err
	}
	return id, nil
}

// participantAccount resolves an account of owner for asset. Only the
// owner's associated account is opened on demand, so no caller can claim an
// id derived for somebody else. Any other id must already exist and belong to
// owner for asset.
func (t *txn) participantAccount(id, owner, asset types.Address) (types.Address, error) {
	associated := AssociatedAccount(owner, asset)
	if id.IsZero() || id == associated {
		if _, err := t.state.AccountOpen(associated, owner, asset); err != nil {
			return types.Address{}, err
		}
		return associated, nil
	}
	acc, ok, err := t.state.AccountGet(id)
	if err != nil {
		return types.Address{}, err
	}
	if !ok {
		return types.Address{}, ErrAccountNotFound
	}
	if acc.Owner != owner {
		return types.Address{}, ErrAccountOwnerMismatch
	}
	if acc.Asset != asset {
		return types.Address{}, ErrAccountAssetMismatch
	}
	return id, nil
}

// resolveSlashing pays the forfeited bonds to the treasury unless an earlier
// exit path already did. It returns the amount moved by this call.
func (t *txn) resolveSlashing(r *RFQ, includeActorBond bool) (uint64, error) {
	tracker, err := t.loadTracker(r.ID)
	if err != nil {
		return 0, err
	}
	if tracker.Resolved() {
		return 0, nil
	}
	amount, err := ComputeSlashedAmount(r, includeActorBond)
	if err != nil {
		return 0, err
	}
	if amount > 0 {
		treasury, err := t.treasuryAccount(r)
		if err != nil {
			return 0, err
		}
		if err := t.release(r.SettlementAsset, BondsVault(r.ID), treasury, amount); err != nil {
			return 0, err
		}
	}
	tracker.Amount = uint64Ptr(amount)
	tracker.SeizedAt = int64Ptr(t.now)
	if err := t.state.SlashedBondsPut(tracker); err != nil {
		return 0, err
	}
	t.slashed += amount
	t.emit(NewBondsSlashedEvent(r, amount, includeActorBond))
	return amount, nil
}

func requireIdentity(addr types.Address) error {
	if addr.IsZero() {
		return ErrInvalidIdentity
	}
	return nil
}

func translateExists(err, replacement error) error {
	if errors.Is(err, ErrRecordExists) {
		return replacement
	}
	return err
}

// RFQ returns the stored request.
func (e *Engine) RFQ(id types.Address) (*RFQ, error) {
	var out *RFQ
	err := e.view(func(state State) error {
		r, ok, err := state.RFQGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRFQNotFound
		}
		out = r
		return nil
	})
	return out, err
}

// Quote returns the stored quote.
func (e *Engine) Quote(id types.Address) (*Quote, error) {
	var out *Quote
	err := e.view(func(state State) error {
		q, ok, err := state.QuoteGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrQuoteNotFound
		}
		out = q
		return nil
	})
	return out, err
}

// Settlement returns the settlement record of rfqID.
func (e *Engine) Settlement(rfqID types.Address) (*Settlement, error) {
	var out *Settlement
	err := e.view(func(state State) error {
		s, ok, err := state.SettlementGet(SettlementID(rfqID))
		if err != nil {
			return err
		}
		if !ok {
			return ErrSettlementNotFound
		}
		out = s
		return nil
	})
	return out, err
}

// SlashedBonds returns the forfeiture tracker of rfqID.
func (e *Engine) SlashedBonds(rfqID types.Address) (*SlashedBondsTracker, error) {
	var out *SlashedBondsTracker
	err := e.view(func(state State) error {
		tracker, ok, err := state.SlashedBondsGet(rfqID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTrackerNotFound
		}
		out = tracker
		return nil
	})
	return out, err
}

// Fees returns the fee record written when rfqID settled.
func (e *Engine) Fees(rfqID types.Address) (*FeesTracker, bool, error) {
	var (
		out   *FeesTracker
		found bool
	)
	err := e.view(func(state State) error {
		var err error
		out, found, err = state.FeesTrackerGet(rfqID)
		return err
	})
	return out, found, err
}

// Deadlines returns the currently determined deadlines of rfqID.
func (e *Engine) Deadlines(rfqID types.Address) (Deadlines, error) {
	r, err := e.RFQ(rfqID)
	if err != nil {
		return Deadlines{}, err
	}
	return ComputeDeadlines(r), nil
}

// OpenTreasuryAccount opens the treasury owner's settlement asset account
// named by the current registry.
func (e *Engine) OpenTreasuryAccount() (types.Address, error) {
	if err := e.registry.Validate(); err != nil {
		return types.Address{}, err
	}
	var id types.Address
	err := e.run("open_treasury", types.Address{}, func(tx *txn) error {
		var err error
		id, err = tx.treasuryAccount(&RFQ{
			TreasuryOwner:   e.registry.TreasuryOwner,
			SettlementAsset: e.registry.SettlementAsset,
		})
		return err
	})
	return id, err
}

// Account returns a ledger account.
func (e *Engine) Account(id types.Address) (*types.Account, error) {
	var out *types.Account
	err := e.view(func(state State) error {
		acc, ok, err := state.AccountGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAccountNotFound
		}
		out = acc
		return nil
	})
	return out, err
}
