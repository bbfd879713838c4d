package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DecisionType is the user's response to a recommendation.
type DecisionType string

const (
	DecisionBuy     DecisionType = "buy"
	DecisionSell    DecisionType = "sell"
	DecisionHold    DecisionType = "hold"
	DecisionPending DecisionType = "pending"
	DecisionCancel  DecisionType = "cancel"
)

// DecisionRecord is an append-only log entry for every accepted decision,
// including holds that do not touch the ledger.
type DecisionRecord struct {
	ID               string          `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UserID           string          `gorm:"not null;index" json:"user_id"`
	InstrumentCode   string          `gorm:"not null" json:"instrument_code"`
	Type             DecisionType    `gorm:"not null" json:"type"`
	Quantity         int64           `gorm:"not null;default:0" json:"quantity"`
	Price            decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"price"`
	Amount           decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"amount"`
	RealizedPnL      decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10);not null;default:0" json:"realized_pnl"`
	RecommendationID *string         `gorm:"type:uuid" json:"recommendation_id,omitempty"`
	InvestmentID     *string         `gorm:"type:uuid" json:"investment_id,omitempty"`
	PortfolioVersion int64           `gorm:"not null" json:"portfolio_version"`
	Message          string          `json:"message"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (d *DecisionRecord) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = newID()
	}
	return nil
}
