package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/models"
)

// Fill describes how much of one lot a sale consumed.
type Fill struct {
	LotID    string          `json:"lot_id"`
	Quantity int64           `json:"quantity"`
	BuyPrice decimal.Decimal `json:"buy_price"`
	Realized decimal.Decimal `json:"realized_pnl"`
}

// HeldQuantity sums current quantity over the open lots of code.
func HeldQuantity(lots []models.Investment, code string) int64 {
	var total int64
	for i := range lots {
		if lots[i].InstrumentCode == code && lots[i].Status.IsOpen() {
			total += lots[i].CurrentQuantity
		}
	}
	return total
}

// ConsumeFIFO sells quantity of code from the open lots, oldest buy date first,
// mutating lots in place. Nothing is modified when holdings are insufficient.
func ConsumeFIFO(lots []models.Investment, code string, quantity int64, price decimal.Decimal, at time.Time) ([]Fill, decimal.Decimal, error) {
	if held := HeldQuantity(lots, code); held < quantity {
		return nil, decimal.Zero, apperrors.ErrInsufficientHoldings
	}

	order := make([]int, 0, len(lots))
	for i := range lots {
		if lots[i].InstrumentCode == code && lots[i].Status.IsOpen() && lots[i].CurrentQuantity > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		la, lb := &lots[order[a]], &lots[order[b]]
		if !la.BuyDate.Equal(lb.BuyDate) {
			return la.BuyDate.Before(lb.BuyDate)
		}
		return la.ID < lb.ID
	})

	remaining := quantity
	realized := decimal.Zero
	fills := make([]Fill, 0, len(order))
	for _, idx := range order {
		if remaining == 0 {
			break
		}
		lot := &lots[idx]
		take := min(lot.CurrentQuantity, remaining)
		pnl := price.Sub(lot.BuyPrice).Mul(decimal.NewFromInt(take))

		lot.CurrentQuantity -= take
		lot.RealizedPnL = lot.RealizedPnL.Add(pnl)
		sellPrice := price
		lot.SellPrice = &sellPrice
		sellDate := at
		lot.SellDate = &sellDate
		if lot.CurrentQuantity == 0 {
			lot.Status = models.StatusSold
		} else {
			lot.Status = models.StatusPartialSold
		}

		fills = append(fills, Fill{LotID: lot.ID, Quantity: take, BuyPrice: lot.BuyPrice, Realized: pnl})
		realized = realized.Add(pnl)
		remaining -= take
	}
	return fills, realized, nil
}
