package scoring

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// allocate sizes buy drafts in rank order. Each buy's share is proportional to
// its composite and capped at maxPct; quantities are whole lots; the reported
// percent is the realized spend rounded down to 2 places. Leftover budget buys
// a single lot for buys that got none, in rank order, without passing the cap.
func allocate(drafts []Draft, budget decimal.Decimal, maxPct float64) {
	capPct := decimal.NewFromFloat(maxPct)
	capAmount := budget.Mul(capPct).Div(hundred)

	total := 0.0
	for i := range drafts {
		if drafts[i].Type.IsBuy() {
			total += drafts[i].Composite
		}
	}
	if total <= 0 {
		return
	}

	spent := decimal.Zero
	for i := range drafts {
		d := &drafts[i]
		if !d.Type.IsBuy() {
			continue
		}
		share := decimal.NewFromFloat(d.Composite).Mul(hundred).Div(decimal.NewFromFloat(total))
		if share.GreaterThan(capPct) {
			share = capPct
		}
		amount := budget.Mul(share).Div(hundred)
		lotCost := d.Price.Mul(decimal.NewFromInt(d.Candidate.LotSize))
		lots := amount.Div(lotCost).Floor().IntPart()
		d.SuggestedQuantity = lots * d.Candidate.LotSize
		spent = spent.Add(lotCost.Mul(decimal.NewFromInt(lots)))
	}

	leftover := budget.Sub(spent)
	for i := range drafts {
		d := &drafts[i]
		if !d.Type.IsBuy() || d.SuggestedQuantity > 0 {
			continue
		}
		lotCost := d.Price.Mul(decimal.NewFromInt(d.Candidate.LotSize))
		if lotCost.LessThanOrEqual(capAmount) && lotCost.LessThanOrEqual(leftover) {
			d.SuggestedQuantity = d.Candidate.LotSize
			leftover = leftover.Sub(lotCost)
		}
	}

	for i := range drafts {
		d := &drafts[i]
		if !d.Type.IsBuy() {
			continue
		}
		spend := d.Price.Mul(decimal.NewFromInt(d.SuggestedQuantity))
		d.AllocationPercent = spend.Mul(hundred).Div(budget).RoundFloor(2)
	}
}
