// Package models defines the GORM entities persisted by bullbear.
package models

// All returns every model for auto-migration, in dependency order.
func All() []any {
	return []any{
		&Instrument{},
		&InstrumentPrice{},
		&InstrumentAnalysis{},
		&UserProfile{},
		&Recommendation{},
		&Investment{},
		&Portfolio{},
		&PortfolioSnapshot{},
		&DecisionRecord{},
		&AuditLog{},
	}
}
