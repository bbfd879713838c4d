package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Instrument is a tradable security known to the recommendation pipeline.
type Instrument struct {
	Base
	Code     string `gorm:"uniqueIndex;not null" json:"code"`
	Name     string `gorm:"not null" json:"name"`
	Sector   string `gorm:"index" json:"sector"`
	LotSize  int64  `gorm:"not null;default:1" json:"lot_size"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`
}

// InstrumentPrice is one market-data observation. Immutable time series.
type InstrumentPrice struct {
	ID             string          `gorm:"type:uuid;primaryKey" json:"id"`
	InstrumentCode string          `gorm:"not null;uniqueIndex:idx_price_code_time" json:"instrument_code"`
	Price          decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"price"`
	Volume         int64           `gorm:"not null;default:0" json:"volume"`
	RecordedAt     time.Time       `gorm:"not null;uniqueIndex:idx_price_code_time" json:"recorded_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *InstrumentPrice) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}

// InstrumentAnalysis holds the latest analyzer output for one instrument.
// Technical and Sentiment keep the raw feature maps so missing fields can be
// told apart from zero values.
type InstrumentAnalysis struct {
	Base
	InstrumentCode string         `gorm:"uniqueIndex;not null" json:"instrument_code"`
	Technical      datatypes.JSON `gorm:"type:jsonb" json:"technical,omitempty"`
	Sentiment      datatypes.JSON `gorm:"type:jsonb" json:"sentiment,omitempty"`
	AnalyzedAt     time.Time      `gorm:"not null" json:"analyzed_at"`
}

func (InstrumentAnalysis) TableName() string { return "instrument_analyses" }
