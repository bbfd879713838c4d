package models

import "gorm.io/datatypes"

// RiskTolerance is the user's declared appetite for volatility.
type RiskTolerance string

const (
	RiskToleranceLow      RiskTolerance = "low"
	RiskToleranceModerate RiskTolerance = "moderate"
	RiskToleranceHigh     RiskTolerance = "high"
)

// Valid reports whether r is a known tolerance.
func (r RiskTolerance) Valid() bool {
	switch r {
	case RiskToleranceLow, RiskToleranceModerate, RiskToleranceHigh:
		return true
	}
	return false
}

// TimeHorizon is the intended holding period of a recommendation request.
type TimeHorizon string

const (
	TimeHorizonShort  TimeHorizon = "short"
	TimeHorizonMedium TimeHorizon = "medium"
	TimeHorizonLong   TimeHorizon = "long"
)

// Valid reports whether h is a known horizon.
func (h TimeHorizon) Valid() bool {
	switch h {
	case TimeHorizonShort, TimeHorizonMedium, TimeHorizonLong:
		return true
	}
	return false
}

// UserProfile stores a user's standing investment preferences.
type UserProfile struct {
	Base
	UserID           string                      `gorm:"uniqueIndex;not null" json:"user_id"`
	RiskTolerance    RiskTolerance               `gorm:"not null;default:moderate" json:"risk_tolerance"`
	InvestmentGoal   string                      `json:"investment_goal"`
	TimeHorizon      TimeHorizon                 `gorm:"not null;default:medium" json:"time_horizon"`
	PreferredSectors datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"preferred_sectors"`
	Blacklist        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"blacklist"`
}
