package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/models"
)

// State is one user's ledger as loaded inside a transaction.
type State struct {
	Portfolio models.Portfolio
	Lots      []models.Investment
}

// Instrument carries the reference data a decision needs.
type Instrument struct {
	Code   string
	Sector string
}

// Outcome lists what Apply changed so the caller can persist exactly that.
type Outcome struct {
	// Touched indexes into State.Lots for lots that were created or modified.
	Touched     []int
	Investment  *models.Investment
	Fills       []Fill
	Amount      decimal.Decimal
	RealizedPnL decimal.Decimal
	Message     string
}

// Apply validates d against s and, only when every check passes, mutates s.
// A rejected decision leaves s exactly as it was.
func Apply(s *State, inst Instrument, d Decision, at time.Time) (*Outcome, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	var out *Outcome
	var err error
	switch v := d.(type) {
	case BuyDecision:
		out, err = applyBuy(s, inst, v, at)
	case SellDecision:
		out, err = applySell(s, inst, v, at)
	case PendingDecision:
		out, err = applyPending(s, inst, v, at)
	case HoldDecision:
		out = &Outcome{Message: fmt.Sprintf("Holding %s", inst.Code)}
	default:
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Unsupported decision type")
	}
	if err != nil {
		return nil, err
	}

	if d.Type() != models.DecisionHold {
		Recompute(&s.Portfolio, s.Lots, at)
		if err := s.Portfolio.Validate(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrLedgerInvariant, err)
		}
	}
	return out, nil
}

// CancelPending releases the reservation held by the pending lot lotID.
func CancelPending(s *State, lotID string, at time.Time) (*Outcome, error) {
	idx := findLot(s.Lots, lotID)
	if idx < 0 {
		return nil, apperrors.ErrInvestmentNotFound
	}
	lot := &s.Lots[idx]
	if lot.Status != models.StatusPending {
		return nil, apperrors.ErrNotPending
	}

	released := lot.ReservedAmount
	s.Portfolio.ReservedCash = s.Portfolio.ReservedCash.Sub(released)
	lot.ReservedAmount = decimal.Zero
	lot.Status = models.StatusCancelled

	Recompute(&s.Portfolio, s.Lots, at)
	if err := s.Portfolio.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrLedgerInvariant, err)
	}
	return &Outcome{
		Touched:    []int{idx},
		Investment: lot,
		Amount:     released,
		Message:    fmt.Sprintf("Cancelled pending order for %d %s, released %s", lot.OriginalQuantity, lot.InstrumentCode, released.StringFixed(2)),
	}, nil
}

func applyBuy(s *State, inst Instrument, d BuyDecision, at time.Time) (*Outcome, error) {
	cost := Amount(d)
	available := s.Portfolio.CashBalance.Sub(s.Portfolio.ReservedCash)

	pendingIdx := -1
	if d.PendingID != nil {
		pendingIdx = findLot(s.Lots, *d.PendingID)
		if pendingIdx < 0 {
			return nil, apperrors.ErrInvestmentNotFound
		}
		pending := &s.Lots[pendingIdx]
		if pending.Status != models.StatusPending || pending.InstrumentCode != inst.Code {
			return nil, apperrors.ErrNotPending
		}
		available = available.Add(pending.ReservedAmount)
	}
	if cost.GreaterThan(available) {
		return nil, apperrors.ErrInsufficientFunds
	}

	var idx int
	if pendingIdx >= 0 {
		lot := &s.Lots[pendingIdx]
		s.Portfolio.ReservedCash = s.Portfolio.ReservedCash.Sub(lot.ReservedAmount)
		lot.ReservedAmount = decimal.Zero
		lot.OriginalQuantity = d.Quantity
		lot.CurrentQuantity = d.Quantity
		lot.BuyPrice = d.Price
		lot.BuyDate = at
		lot.Status = models.StatusActive
		if d.RecommendationID != nil {
			lot.RecommendationID = d.RecommendationID
		}
		idx = pendingIdx
	} else {
		s.Lots = append(s.Lots, models.Investment{
			UserID:           s.Portfolio.UserID,
			InstrumentCode:   inst.Code,
			Sector:           inst.Sector,
			TransactionType:  models.TransactionBuy,
			OriginalQuantity: d.Quantity,
			CurrentQuantity:  d.Quantity,
			BuyPrice:         d.Price,
			CurrentPrice:     d.Price,
			Status:           models.StatusActive,
			RecommendationID: d.RecommendationID,
			BuyDate:          at,
		})
		idx = len(s.Lots) - 1
	}
	s.Portfolio.CashBalance = s.Portfolio.CashBalance.Sub(cost)

	touched := mergeTouched([]int{idx}, MarkToPrice(s.Lots, inst.Code, d.Price))
	return &Outcome{
		Touched:    touched,
		Investment: &s.Lots[idx],
		Amount:     cost,
		Message:    fmt.Sprintf("Bought %d %s at %s", d.Quantity, inst.Code, d.Price.StringFixed(2)),
	}, nil
}

func applySell(s *State, inst Instrument, d SellDecision, at time.Time) (*Outcome, error) {
	before := make(map[string]int64, len(s.Lots))
	for i := range s.Lots {
		before[s.Lots[i].ID] = s.Lots[i].CurrentQuantity
	}

	fills, realized, err := ConsumeFIFO(s.Lots, inst.Code, d.Quantity, d.Price, at)
	if err != nil {
		return nil, err
	}
	proceeds := Amount(d)
	s.Portfolio.CashBalance = s.Portfolio.CashBalance.Add(proceeds)

	var touched []int
	for i := range s.Lots {
		if s.Lots[i].CurrentQuantity != before[s.Lots[i].ID] {
			touched = append(touched, i)
		}
	}
	touched = mergeTouched(touched, MarkToPrice(s.Lots, inst.Code, d.Price))

	var first *models.Investment
	if len(fills) > 0 {
		first = &s.Lots[findLot(s.Lots, fills[0].LotID)]
	}
	return &Outcome{
		Touched:     touched,
		Investment:  first,
		Fills:       fills,
		Amount:      proceeds,
		RealizedPnL: realized,
		Message:     fmt.Sprintf("Sold %d %s at %s, realized %s", d.Quantity, inst.Code, d.Price.StringFixed(2), realized.StringFixed(2)),
	}, nil
}

func applyPending(s *State, inst Instrument, d PendingDecision, at time.Time) (*Outcome, error) {
	amount := Amount(d)
	if amount.GreaterThan(s.Portfolio.CashBalance.Sub(s.Portfolio.ReservedCash)) {
		return nil, apperrors.ErrInsufficientFunds
	}

	s.Portfolio.ReservedCash = s.Portfolio.ReservedCash.Add(amount)
	s.Lots = append(s.Lots, models.Investment{
		UserID:           s.Portfolio.UserID,
		InstrumentCode:   inst.Code,
		Sector:           inst.Sector,
		TransactionType:  models.TransactionBuy,
		OriginalQuantity: d.Quantity,
		CurrentQuantity:  0,
		BuyPrice:         d.Price,
		CurrentPrice:     d.Price,
		ReservedAmount:   amount,
		Status:           models.StatusPending,
		RecommendationID: d.RecommendationID,
		BuyDate:          at,
	})
	idx := len(s.Lots) - 1
	return &Outcome{
		Touched:    []int{idx},
		Investment: &s.Lots[idx],
		Amount:     amount,
		Message:    fmt.Sprintf("Reserved %s for %d %s", amount.StringFixed(2), d.Quantity, inst.Code),
	}, nil
}

func findLot(lots []models.Investment, id string) int {
	for i := range lots {
		if lots[i].ID == id {
			return i
		}
	}
	return -1
}

func mergeTouched(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, list := range [][]int{a, b} {
		for _, i := range list {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	return out
}
