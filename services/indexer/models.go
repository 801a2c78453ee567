package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord stores every committed settlement event.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"uniqueIndex"`
	Type       string    `gorm:"size:64;index"`
	RFQ        string    `gorm:"size:66;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// SettlementRecord is the denormalised view of a completed trade.
type SettlementRecord struct {
	RFQ            string `gorm:"size:66;primaryKey"`
	Settlement     string `gorm:"size:66;uniqueIndex"`
	Maker          string `gorm:"size:66;index"`
	Taker          string `gorm:"size:66;index"`
	BaseAsset      string `gorm:"size:66"`
	QuoteAsset     string `gorm:"size:66"`
	FeeAsset       string `gorm:"size:66;index"`
	BaseAmount     uint64
	QuoteAmount    uint64
	TreasuryFee    uint64
	FacilitatorFee uint64
	Facilitator    string `gorm:"size:66"`
	SettledAt      time.Time
}

// SlashRecord captures one slashing resolution.
type SlashRecord struct {
	RFQ       string `gorm:"size:66;primaryKey"`
	Asset     string `gorm:"size:66;index"`
	Treasury  string `gorm:"size:66"`
	Amount    uint64
	ActorBond bool
	SlashedAt time.Time
}

// AutoMigrate creates or updates the index schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &SettlementRecord{}, &SlashRecord{})
}
