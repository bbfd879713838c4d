package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType represents how a lot entered the ledger.
type TransactionType string

const (
	TransactionBuy      TransactionType = "buy"
	TransactionSell     TransactionType = "sell"
	TransactionDividend TransactionType = "dividend"
)

// InvestmentStatus is the lifecycle state of a lot.
type InvestmentStatus string

const (
	StatusActive      InvestmentStatus = "active"
	StatusPartialSold InvestmentStatus = "partial_sold"
	StatusSold        InvestmentStatus = "sold"
	StatusPending     InvestmentStatus = "pending"
	StatusCancelled   InvestmentStatus = "cancelled"
)

// allowedTransitions lists the forward-only status moves of a lot.
var allowedTransitions = map[InvestmentStatus][]InvestmentStatus{
	StatusActive:      {StatusPartialSold, StatusSold},
	StatusPartialSold: {StatusPartialSold, StatusSold},
	StatusPending:     {StatusActive, StatusCancelled},
}

// CanTransition reports whether a lot may move from one status to another.
func CanTransition(from, to InvestmentStatus) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsOpen reports whether the lot counts toward holdings and totals.
func (s InvestmentStatus) IsOpen() bool {
	return s == StatusActive || s == StatusPartialSold
}

// Investment is a single lot held by a user.
type Investment struct {
	Base
	UserID           string           `gorm:"not null;index" json:"user_id"`
	InstrumentCode   string           `gorm:"not null;index" json:"instrument_code"`
	Sector           string           `json:"sector"`
	TransactionType  TransactionType  `gorm:"not null;default:buy" json:"transaction_type"`
	OriginalQuantity int64            `gorm:"not null" json:"original_quantity"`
	CurrentQuantity  int64            `gorm:"not null" json:"current_quantity"`
	BuyPrice         decimal.Decimal  `gorm:"type:numeric(30,10);not null" json:"buy_price"`
	SellPrice        *decimal.Decimal `gorm:"type:numeric(30,10)" json:"sell_price,omitempty"`
	CurrentPrice     decimal.Decimal  `gorm:"type:numeric(30,10);not null" json:"current_price"`
	RealizedPnL      decimal.Decimal  `gorm:"column:realized_pnl;type:numeric(30,10);not null;default:0" json:"realized_pnl"`
	UnrealizedPnL    decimal.Decimal  `gorm:"column:unrealized_pnl;type:numeric(30,10);not null;default:0" json:"unrealized_pnl"`
	ReservedAmount   decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0" json:"reserved_amount"`
	Status           InvestmentStatus `gorm:"not null;index" json:"status"`
	RecommendationID *string          `gorm:"type:uuid" json:"recommendation_id,omitempty"`
	BuyDate          time.Time        `gorm:"not null;index" json:"buy_date"`
	SellDate         *time.Time       `json:"sell_date,omitempty"`
}

// ErrInvalidTransition is returned when a save would move a lot backwards
// through its lifecycle.
var ErrInvalidTransition = errors.New("invalid lot status transition")

// BeforeSave enforces per-lot quantity and status invariants. For a lot that
// already exists the persisted status must be able to reach the new one.
func (i *Investment) BeforeSave(tx *gorm.DB) error {
	if err := i.Validate(); err != nil {
		return err
	}
	if i.ID == "" {
		return nil
	}

	var persisted []InvestmentStatus
	if err := tx.Session(&gorm.Session{NewDB: true}).
		Model(&Investment{}).
		Where("id = ?", i.ID).
		Limit(1).
		Pluck("status", &persisted).Error; err != nil {
		return err
	}
	if len(persisted) == 1 && !CanTransition(persisted[0], i.Status) {
		return fmt.Errorf("lot %s: %s to %s: %w", i.ID, persisted[0], i.Status, ErrInvalidTransition)
	}
	return nil
}

// Validate checks that quantities are consistent with the lot's status.
func (i *Investment) Validate() error {
	if i.OriginalQuantity <= 0 {
		return fmt.Errorf("lot %s: original quantity must be positive", i.ID)
	}
	if i.CurrentQuantity < 0 || i.CurrentQuantity > i.OriginalQuantity {
		return fmt.Errorf("lot %s: current quantity %d outside [0, %d]", i.ID, i.CurrentQuantity, i.OriginalQuantity)
	}
	switch i.Status {
	case StatusActive:
		if i.CurrentQuantity != i.OriginalQuantity {
			return fmt.Errorf("lot %s: active lot must hold its full quantity", i.ID)
		}
	case StatusPartialSold:
		if i.CurrentQuantity == 0 || i.CurrentQuantity == i.OriginalQuantity {
			return fmt.Errorf("lot %s: partial_sold lot must hold part of its quantity", i.ID)
		}
	case StatusSold, StatusPending, StatusCancelled:
		if i.CurrentQuantity != 0 {
			return fmt.Errorf("lot %s: %s lot must hold no quantity", i.ID, i.Status)
		}
	default:
		return fmt.Errorf("lot %s: unknown status %q", i.ID, i.Status)
	}
	return nil
}

// MarketValue returns current quantity times current price.
func (i *Investment) MarketValue() decimal.Decimal {
	return i.CurrentPrice.Mul(decimal.NewFromInt(i.CurrentQuantity))
}

// CostBasis returns current quantity times buy price.
func (i *Investment) CostBasis() decimal.Decimal {
	return i.BuyPrice.Mul(decimal.NewFromInt(i.CurrentQuantity))
}
