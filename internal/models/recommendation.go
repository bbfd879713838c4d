package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RecommendationType is the action a recommendation suggests.
type RecommendationType string

const (
	RecommendationStrongBuy  RecommendationType = "strong_buy"
	RecommendationBuy        RecommendationType = "buy"
	RecommendationHold       RecommendationType = "hold"
	RecommendationSell       RecommendationType = "sell"
	RecommendationStrongSell RecommendationType = "strong_sell"
)

// IsBuy reports whether the type receives a budget allocation.
func (t RecommendationType) IsBuy() bool {
	return t == RecommendationStrongBuy || t == RecommendationBuy
}

// Strength orders types from strong_sell (0) to strong_buy (4).
func (t RecommendationType) Strength() int {
	switch t {
	case RecommendationStrongBuy:
		return 4
	case RecommendationBuy:
		return 3
	case RecommendationHold:
		return 2
	case RecommendationSell:
		return 1
	default:
		return 0
	}
}

// RiskLevel classifies an instrument's volatility.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Rank orders risk levels ascending.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLevelLow:
		return 0
	case RiskLevelMedium:
		return 1
	default:
		return 2
	}
}

// Recommendation is one scored suggestion for a user. Rows are never deleted;
// a new generation run deactivates the previous active set.
type Recommendation struct {
	Base
	UserID            string                      `gorm:"not null;index;uniqueIndex:idx_recommendations_active,where:is_active = true" json:"user_id"`
	InstrumentCode    string                      `gorm:"not null;uniqueIndex:idx_recommendations_active,where:is_active = true" json:"instrument_code"`
	RunID             string                      `gorm:"type:uuid;not null;index" json:"run_id"`
	Rank              int                         `gorm:"not null" json:"rank"`
	Type              RecommendationType          `gorm:"not null" json:"type"`
	ConfidenceScore   float64                     `gorm:"not null" json:"confidence_score"`
	ExpectedReturn    float64                     `gorm:"not null" json:"expected_return"`
	RiskLevel         RiskLevel                   `gorm:"not null" json:"risk_level"`
	AllocationPercent decimal.Decimal             `gorm:"type:numeric(30,10);not null" json:"allocation_percent"`
	SuggestedQuantity int64                       `gorm:"not null;default:0" json:"suggested_quantity"`
	ReferencePrice    decimal.Decimal             `gorm:"type:numeric(30,10);not null" json:"reference_price"`
	Reasoning         string                      `json:"reasoning"`
	KeyFactors        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"key_factors"`
	Features          datatypes.JSON              `gorm:"type:jsonb" json:"features,omitempty"`
	IsActive          bool                        `gorm:"not null;default:true;index" json:"is_active"`
	DeactivatedAt     *time.Time                  `json:"deactivated_at,omitempty"`
}
