package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Portfolio is the latest ledger snapshot for a user. Version increments on
// every write and guards concurrent updates.
type Portfolio struct {
	Base
	UserID           string                                 `gorm:"uniqueIndex;not null" json:"user_id"`
	CashBalance      decimal.Decimal                        `gorm:"type:numeric(30,10);not null" json:"cash_balance"`
	ReservedCash     decimal.Decimal                        `gorm:"type:numeric(30,10);not null;default:0" json:"reserved_cash"`
	AvailableCash    decimal.Decimal                        `gorm:"type:numeric(30,10);not null" json:"available_cash"`
	TotalInvested    decimal.Decimal                        `gorm:"type:numeric(30,10);not null;default:0" json:"total_invested"`
	HoldingsValue    decimal.Decimal                        `gorm:"type:numeric(30,10);not null;default:0" json:"holdings_value"`
	TotalValue       decimal.Decimal                        `gorm:"type:numeric(30,10);not null" json:"total_value"`
	RealizedPnL      decimal.Decimal                        `gorm:"column:realized_pnl;type:numeric(30,10);not null;default:0" json:"realized_pnl"`
	UnrealizedPnL    decimal.Decimal                        `gorm:"column:unrealized_pnl;type:numeric(30,10);not null;default:0" json:"unrealized_pnl"`
	SectorAllocation datatypes.JSONType[map[string]float64] `gorm:"type:jsonb" json:"sector_allocation"`
	Version          int64                                  `gorm:"not null;default:1" json:"version"`
	SnapshotAt       time.Time                              `gorm:"not null" json:"snapshot_at"`
}

// BeforeCreate assigns an ID and checks the cash invariant.
func (p *Portfolio) BeforeCreate(tx *gorm.DB) error {
	if err := p.Base.BeforeCreate(tx); err != nil {
		return err
	}
	return p.Validate()
}

// Validate checks the cash invariants of the snapshot.
func (p *Portfolio) Validate() error {
	if p.CashBalance.IsNegative() {
		return fmt.Errorf("portfolio %s: negative cash balance %s", p.UserID, p.CashBalance)
	}
	if p.ReservedCash.IsNegative() {
		return fmt.Errorf("portfolio %s: negative reserved cash %s", p.UserID, p.ReservedCash)
	}
	if !p.AvailableCash.Equal(p.CashBalance.Sub(p.ReservedCash)) {
		return fmt.Errorf("portfolio %s: available cash %s != cash %s - reserved %s",
			p.UserID, p.AvailableCash, p.CashBalance, p.ReservedCash)
	}
	if p.AvailableCash.GreaterThan(p.CashBalance) {
		return fmt.Errorf("portfolio %s: available cash exceeds cash balance", p.UserID)
	}
	return nil
}

// SnapshotSource records what produced a snapshot row.
type SnapshotSource string

const (
	SnapshotSourceDecision SnapshotSource = "decision"
	SnapshotSourceRevalue  SnapshotSource = "revalue"
	SnapshotSourceCreate   SnapshotSource = "create"
)

// PortfolioSnapshot is an immutable point-in-time copy of a Portfolio.
type PortfolioSnapshot struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string          `gorm:"not null;index:idx_snapshots_user_time" json:"user_id"`
	RecordedAt    time.Time       `gorm:"not null;index:idx_snapshots_user_time" json:"recorded_at"`
	Source        SnapshotSource  `gorm:"not null" json:"source"`
	Version       int64           `gorm:"not null" json:"version"`
	CashBalance   decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"cash_balance"`
	ReservedCash  decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"reserved_cash"`
	HoldingsValue decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"holdings_value"`
	TotalValue    decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"total_value"`
	RealizedPnL   decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10);not null" json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(30,10);not null" json:"unrealized_pnl"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *PortfolioSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}

// NewSnapshot copies the ledger totals of p into a history row.
func NewSnapshot(p *Portfolio, source SnapshotSource) *PortfolioSnapshot {
	return &PortfolioSnapshot{
		UserID:        p.UserID,
		RecordedAt:    p.SnapshotAt,
		Source:        source,
		Version:       p.Version,
		CashBalance:   p.CashBalance,
		ReservedCash:  p.ReservedCash,
		HoldingsValue: p.HoldingsValue,
		TotalValue:    p.TotalValue,
		RealizedPnL:   p.RealizedPnL,
		UnrealizedPnL: p.UnrealizedPnL,
	}
}
