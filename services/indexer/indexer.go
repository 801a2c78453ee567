package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rfqsettle/core/events"
	"rfqsettle/core/types"
	"rfqsettle/native/fees"
	"rfqsettle/native/rfq"
	"rfqsettle/observability/metrics"
)

// ErrClosed is returned when the index has been shut down.
var ErrClosed = errors.New("indexer: closed")

// Indexer persists committed settlement events into SQL. It implements
// events.Emitter so it can sit behind the engine emitter fanout.
type Indexer struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.IndexerMetrics
	now     func() time.Time

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// IsPostgres reports whether target is a PostgreSQL connection URL rather
// than a SQLite file path.
func IsPostgres(target string) bool {
	lower := strings.ToLower(strings.TrimSpace(target))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// Dialector selects the gorm driver for target.
func Dialector(target string) gorm.Dialector {
	if IsPostgres(target) {
		return postgres.Open(strings.TrimSpace(target))
	}
	return sqlite.Open(target)
}

// Open creates an index backed by PostgreSQL when target is a postgres URL
// and by the SQLite file at target otherwise.
func Open(target string) (*Indexer, error) {
	dialector := Dialector(target)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", dialector.Name(), err)
	}
	return New(db)
}

// New wraps an existing gorm handle, migrating the schema first.
func New(db *gorm.DB) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	idx := &Indexer{db: db, logger: slog.Default(), now: time.Now}
	var last EventRecord
	err := db.Order("seq desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	idx.seq = last.Seq
	return idx, nil
}

func (i *Indexer) SetLogger(l *slog.Logger) {
	if l != nil {
		i.logger = l
	}
}

func (i *Indexer) SetMetrics(m *metrics.IndexerMetrics) { i.metrics = m }

func (i *Indexer) SetNowFunc(now func() time.Time) {
	if now != nil {
		i.now = now
	}
}

// Emit implements events.Emitter. Failures are logged and counted; the
// settlement state itself is already committed.
func (i *Indexer) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok {
		return
	}
	data := payload.Event()
	if data == nil {
		return
	}
	if err := i.Index(data); err != nil {
		i.metrics.RecordFailure(data.Type)
		i.logger.Error("indexer: write event", "type", data.Type, "error", err)
		return
	}
	i.metrics.RecordIndexed(data.Type)
	i.metrics.SetLastSequence(i.lastSeq())
}

func (i *Indexer) lastSeq() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.seq
}

// Index writes a single event and updates the derived tables.
func (i *Indexer) Index(evt *types.Event) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrClosed
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return err
	}
	now := i.now().UTC()
	record := EventRecord{
		ID:         uuid.New(),
		Seq:        i.seq + 1,
		Type:       evt.Type,
		RFQ:        evt.Attributes["rfq"],
		Attributes: string(attrs),
		CreatedAt:  now,
	}
	err = i.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		switch evt.Type {
		case rfq.EventTypeRFQSettled:
			return tx.Create(settlementFromEvent(evt, now)).Error
		case rfq.EventTypeBondsSlashed:
			return tx.Create(slashFromEvent(evt, now)).Error
		}
		return nil
	})
	if err != nil {
		return err
	}
	i.seq = record.Seq
	return nil
}

func parseAttr(attrs map[string]string, key string) uint64 {
	v, err := strconv.ParseUint(attrs[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func settlementFromEvent(evt *types.Event, at time.Time) *SettlementRecord {
	a := evt.Attributes
	return &SettlementRecord{
		RFQ:            a["rfq"],
		Settlement:     a["settlement"],
		Maker:          a["maker"],
		Taker:          a["taker"],
		BaseAsset:      a["baseAsset"],
		QuoteAsset:     a["quoteAsset"],
		FeeAsset:       a["feeAsset"],
		BaseAmount:     parseAttr(a, "baseAmount"),
		QuoteAmount:    parseAttr(a, "quoteAmount"),
		TreasuryFee:    parseAttr(a, "treasuryFee"),
		FacilitatorFee: parseAttr(a, "facilitatorFee"),
		Facilitator:    a["facilitator"],
		SettledAt:      at,
	}
}

func slashFromEvent(evt *types.Event, at time.Time) *SlashRecord {
	a := evt.Attributes
	return &SlashRecord{
		RFQ:       a["rfq"],
		Asset:     a["asset"],
		Treasury:  a["treasuryOwner"],
		Amount:    parseAttr(a, "amount"),
		ActorBond: a["actorBond"] == "true",
		SlashedAt: at,
	}
}

// Events lists indexed events for rfqID in commit order. An empty rfqID
// lists every event. limit <= 0 returns everything.
func (i *Indexer) Events(rfqID string, limit int) ([]EventRecord, error) {
	query := i.db.Order("seq asc")
	if rfqID != "" {
		query = query.Where("rfq = ?", rfqID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []EventRecord
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Settlements lists completed trades settled within [start, end).
func (i *Indexer) Settlements(start, end time.Time) ([]SettlementRecord, error) {
	var out []SettlementRecord
	err := i.db.Where("settled_at >= ? AND settled_at < ?", start.UTC(), end.UTC()).
		Order("settled_at asc").Find(&out).Error
	return out, err
}

// FeeSummary aggregates the settlement fees collected in asset.
func (i *Indexer) FeeSummary(asset types.Address) (fees.Totals, error) {
	totals := fees.Totals{Asset: asset}
	var rows []SettlementRecord
	if err := i.db.Where("fee_asset = ?", asset.Hex()).Find(&rows).Error; err != nil {
		return totals, err
	}
	for _, row := range rows {
		split := fees.SplitResult{TreasuryShare: row.TreasuryFee, FacilitatorShare: row.FacilitatorFee}
		if err := totals.Add(row.TreasuryFee+row.FacilitatorFee, split); err != nil {
			return totals, err
		}
	}
	return totals, nil
}

// SlashedTotal sums the bonds seized in asset.
func (i *Indexer) SlashedTotal(asset types.Address) (uint64, error) {
	var total uint64
	err := i.db.Model(&SlashRecord{}).Where("asset = ?", asset.Hex()).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

// Close releases the underlying database handle.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
