package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"bullbear/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Recompute derives every computed field of p from its cash columns and lots.
// Pending and cancelled lots are excluded from holdings.
func Recompute(p *models.Portfolio, lots []models.Investment, at time.Time) {
	holdings := decimal.Zero
	invested := decimal.Zero
	unrealized := decimal.Zero
	realized := decimal.Zero
	bySector := map[string]decimal.Decimal{}

	for i := range lots {
		lot := &lots[i]
		realized = realized.Add(lot.RealizedPnL)
		if !lot.Status.IsOpen() {
			lot.UnrealizedPnL = decimal.Zero
			continue
		}
		value := lot.MarketValue()
		cost := lot.CostBasis()
		lot.UnrealizedPnL = value.Sub(cost)

		holdings = holdings.Add(value)
		invested = invested.Add(cost)
		unrealized = unrealized.Add(lot.UnrealizedPnL)
		bySector[sectorKey(lot.Sector)] = bySector[sectorKey(lot.Sector)].Add(value)
	}

	allocation := make(map[string]float64, len(bySector))
	if holdings.IsPositive() {
		for sector, value := range bySector {
			allocation[sector] = value.Div(holdings).Mul(hundred).Round(2).InexactFloat64()
		}
	}

	p.AvailableCash = p.CashBalance.Sub(p.ReservedCash)
	p.HoldingsValue = holdings
	p.TotalInvested = invested
	p.TotalValue = p.CashBalance.Add(holdings)
	p.UnrealizedPnL = unrealized
	p.RealizedPnL = realized
	p.SectorAllocation = datatypes.NewJSONType(allocation)
	p.SnapshotAt = at
}

// MarkToPrice sets the current price of every open lot of code.
func MarkToPrice(lots []models.Investment, code string, price decimal.Decimal) []int {
	var touched []int
	for i := range lots {
		if lots[i].InstrumentCode == code && lots[i].Status.IsOpen() && !lots[i].CurrentPrice.Equal(price) {
			lots[i].CurrentPrice = price
			touched = append(touched, i)
		}
	}
	return touched
}

func sectorKey(sector string) string {
	if sector == "" {
		return "unclassified"
	}
	return sector
}
