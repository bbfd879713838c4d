// Package ledger holds the pure portfolio arithmetic: decision variants,
// FIFO lot consumption and snapshot recomputation. It never touches the
// database; services load a State, apply a Decision and persist the result.
package ledger

import (
	"github.com/shopspring/decimal"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/models"
)

// Decision is one of BuyDecision, SellDecision, HoldDecision or PendingDecision.
type Decision interface {
	Type() models.DecisionType
	Validate() error
	recommendation() *string
}

// BuyDecision opens a lot. PendingID resolves an earlier pending decision.
type BuyDecision struct {
	Quantity         int64
	Price            decimal.Decimal
	RecommendationID *string
	PendingID        *string
}

// SellDecision consumes open lots oldest first.
type SellDecision struct {
	Quantity         int64
	Price            decimal.Decimal
	RecommendationID *string
}

// HoldDecision is recorded but leaves the ledger untouched.
type HoldDecision struct {
	RecommendationID *string
	Note             string
}

// PendingDecision reserves cash for a buy the user has not confirmed yet.
type PendingDecision struct {
	Quantity         int64
	Price            decimal.Decimal
	RecommendationID *string
}

func (BuyDecision) Type() models.DecisionType     { return models.DecisionBuy }
func (SellDecision) Type() models.DecisionType    { return models.DecisionSell }
func (HoldDecision) Type() models.DecisionType    { return models.DecisionHold }
func (PendingDecision) Type() models.DecisionType { return models.DecisionPending }

func (d BuyDecision) recommendation() *string     { return d.RecommendationID }
func (d SellDecision) recommendation() *string    { return d.RecommendationID }
func (d HoldDecision) recommendation() *string    { return d.RecommendationID }
func (d PendingDecision) recommendation() *string { return d.RecommendationID }

func (d BuyDecision) Validate() error     { return validateTrade(d.Quantity, d.Price) }
func (d SellDecision) Validate() error    { return validateTrade(d.Quantity, d.Price) }
func (d PendingDecision) Validate() error { return validateTrade(d.Quantity, d.Price) }
func (HoldDecision) Validate() error      { return nil }

// RecommendationRef returns the recommendation a decision responds to, if any.
func RecommendationRef(d Decision) *string {
	return d.recommendation()
}

// Amount returns quantity times price for trade decisions, zero for holds.
func Amount(d Decision) decimal.Decimal {
	switch v := d.(type) {
	case BuyDecision:
		return v.Price.Mul(decimal.NewFromInt(v.Quantity))
	case SellDecision:
		return v.Price.Mul(decimal.NewFromInt(v.Quantity))
	case PendingDecision:
		return v.Price.Mul(decimal.NewFromInt(v.Quantity))
	}
	return decimal.Zero
}

// Quantity returns the decision's share count, zero for holds.
func Quantity(d Decision) int64 {
	switch v := d.(type) {
	case BuyDecision:
		return v.Quantity
	case SellDecision:
		return v.Quantity
	case PendingDecision:
		return v.Quantity
	}
	return 0
}

// Price returns the decision's unit price, zero for holds.
func Price(d Decision) decimal.Decimal {
	switch v := d.(type) {
	case BuyDecision:
		return v.Price
	case SellDecision:
		return v.Price
	case PendingDecision:
		return v.Price
	}
	return decimal.Zero
}

func validateTrade(quantity int64, price decimal.Decimal) error {
	if quantity <= 0 {
		return apperrors.ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return apperrors.ErrInvalidPrice
	}
	return nil
}
