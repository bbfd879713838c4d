package signals

import (
	"math"

	"github.com/shopspring/decimal"

	"bullbear/internal/models"
)

// BehaviorProfile summarizes a user's past trading.
type BehaviorProfile struct {
	TotalTrades           int     `json:"total_trades"`
	WinRatio              float64 `json:"win_ratio"`
	AvgHoldingDays        float64 `json:"avg_holding_days"`
	SectorDiversification float64 `json:"sector_diversification"`
	Score                 float64 `json:"score"`
}

// PortfolioRisk summarizes the risk of current holdings.
type PortfolioRisk struct {
	Volatility    float64 `json:"volatility"`
	Concentration float64 `json:"concentration"`
	Liquidity     float64 `json:"liquidity"`
	Sector        float64 `json:"sector"`
	Overall       float64 `json:"overall"`
}

const neutral = 0.5

// AnalyzeBehavior scores trading history. Pending and cancelled lots are not trades.
func AnalyzeBehavior(lots []models.Investment) BehaviorProfile {
	var trades, wins, held int
	var holdDays float64
	sectors := map[string]bool{}
	for i := range lots {
		lot := &lots[i]
		if lot.Status == models.StatusPending || lot.Status == models.StatusCancelled {
			continue
		}
		trades++
		sectors[lot.Sector] = true
		if lot.RealizedPnL.IsPositive() {
			wins++
		}
		if lot.SellDate != nil {
			held++
			holdDays += lot.SellDate.Sub(lot.BuyDate).Hours() / 24
		}
	}
	if trades == 0 {
		return BehaviorProfile{Score: neutral}
	}

	b := BehaviorProfile{
		TotalTrades:           trades,
		WinRatio:              float64(wins) / float64(trades),
		SectorDiversification: float64(len(sectors)) / float64(trades),
	}
	if held > 0 {
		b.AvgHoldingDays = holdDays / float64(held)
	}
	b.Score = b.WinRatio*0.4 + math.Min(b.AvgHoldingDays/365, 1)*0.3 + b.SectorDiversification*0.3
	return b
}

// AnalyzePortfolio scores holdings risk. Without a valued portfolio every
// component is neutral.
func AnalyzePortfolio(p *models.Portfolio, lots []models.Investment) PortfolioRisk {
	if p == nil || !p.TotalValue.IsPositive() {
		return PortfolioRisk{Volatility: neutral, Concentration: neutral, Liquidity: neutral, Sector: neutral, Overall: neutral}
	}
	total := p.TotalValue

	r := PortfolioRisk{
		Volatility:    ratio(p.UnrealizedPnL.Add(p.RealizedPnL).Abs(), total),
		Concentration: neutral,
		Sector:        neutral,
		Liquidity:     1 - ratio(p.CashBalance, total),
	}

	largest := decimal.Zero
	bySector := map[string]decimal.Decimal{}
	for i := range lots {
		if !lots[i].Status.IsOpen() {
			continue
		}
		v := lots[i].MarketValue()
		if v.GreaterThan(largest) {
			largest = v
		}
		bySector[lots[i].Sector] = bySector[lots[i].Sector].Add(v)
	}
	if len(bySector) > 0 {
		r.Concentration = ratio(largest, total)
		maxSector := decimal.Zero
		for _, v := range bySector {
			if v.GreaterThan(maxSector) {
				maxSector = v
			}
		}
		r.Sector = ratio(maxSector, total)
	}

	r.Overall = clamp(r.Volatility*0.3+r.Concentration*0.25+r.Liquidity*0.25+r.Sector*0.2, 0, 1)
	return r
}

// ToleranceBase maps a declared tolerance to a base risk level.
func ToleranceBase(t models.RiskTolerance) float64 {
	switch t {
	case models.RiskToleranceLow:
		return 0.3
	case models.RiskToleranceHigh:
		return 0.8
	default:
		return neutral
	}
}

// RiskScore is the user's overall risk exposure in [0,1].
func RiskScore(t models.RiskTolerance, b BehaviorProfile, pr PortfolioRisk) float64 {
	return clamp(ToleranceBase(t)*0.3+(1-b.Score)*0.4+pr.Overall*0.3, 0, 1)
}

// Appetite is the normalized volatility the user is suited to, in [0,1].
// Declared tolerance dominates; good history and a calm portfolio raise it.
func Appetite(t models.RiskTolerance, b BehaviorProfile, pr PortfolioRisk) float64 {
	return clamp(ToleranceBase(t)*0.6+b.Score*0.2+(1-pr.Overall)*0.2, 0, 1)
}

// Compatibility scores how well an instrument's volatility fits the appetite.
// Low-tolerance users are penalized further for volatility above appetite.
func Compatibility(volatility, ceiling, appetite float64, t models.RiskTolerance) float64 {
	norm := clamp(volatility/ceiling, 0, 1)
	c := 1 - math.Abs(norm-appetite)
	if t == models.RiskToleranceLow && norm > appetite {
		c -= 0.5 * (norm - appetite)
	}
	return clamp(c, 0, 1)
}

func ratio(a, b decimal.Decimal) float64 {
	if !b.IsPositive() {
		return 0
	}
	return clamp(a.Div(b).InexactFloat64(), 0, 1)
}
