// Package scoring ranks candidate signals into recommendation drafts and
// sizes buy positions against the user's budget.
package scoring

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"bullbear/internal/config"
	"bullbear/internal/models"
	"bullbear/internal/signals"
)

// Params are the scorer's tunables.
type Params = config.ScoringConfig

// Input is everything one scoring run depends on.
type Input struct {
	Candidates    []signals.Candidate
	RiskTolerance models.RiskTolerance
	TimeHorizon   models.TimeHorizon
	Budget        decimal.Decimal
	// TargetProfit is a percent; zero disables the target bonus.
	TargetProfit float64
}

// Components are the per-factor scores in [0,1].
type Components struct {
	Technical float64 `json:"technical"`
	Sentiment float64 `json:"sentiment"`
	RiskFit   float64 `json:"risk_fit"`
	BudgetFit float64 `json:"budget_fit"`
}

// Draft is a scored recommendation before it is persisted.
type Draft struct {
	Rank              int                       `json:"rank"`
	Code              string                    `json:"code"`
	Type              models.RecommendationType `json:"type"`
	Composite         float64                   `json:"composite"`
	Confidence        float64                   `json:"confidence"`
	ExpectedReturn    float64                   `json:"expected_return"`
	RiskLevel         models.RiskLevel          `json:"risk_level"`
	AllocationPercent decimal.Decimal           `json:"allocation_percent"`
	SuggestedQuantity int64                     `json:"suggested_quantity"`
	Price             decimal.Decimal           `json:"price"`
	Reasoning         string                    `json:"reasoning"`
	KeyFactors        []string                  `json:"key_factors"`
	Components        Components                `json:"components"`
	Candidate         signals.Candidate         `json:"candidate"`
}

// Score ranks candidates and sizes buy allocations. It is pure: identical
// inputs and params always yield identical drafts.
func Score(in Input, p Params) []Draft {
	if !in.Budget.IsPositive() {
		return []Draft{}
	}

	drafts := make([]Draft, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		d, ok := scoreCandidate(c, in, p)
		if ok {
			drafts = append(drafts, d)
		}
	}

	sort.SliceStable(drafts, func(i, j int) bool { return rankBefore(&drafts[i], &drafts[j]) })
	if len(drafts) > p.MaxRecommendations {
		drafts = drafts[:p.MaxRecommendations]
	}
	for i := range drafts {
		drafts[i].Rank = i + 1
	}

	allocate(drafts, in.Budget, p.MaxAllocationPercent)
	for i := range drafts {
		drafts[i].Reasoning = reasoning(&drafts[i])
	}
	return drafts
}

// rankBefore orders drafts by composite, then higher expected return, then
// lower risk level, then instrument code.
func rankBefore(a, b *Draft) bool {
	if a.Composite != b.Composite {
		return a.Composite > b.Composite
	}
	if a.ExpectedReturn != b.ExpectedReturn {
		return a.ExpectedReturn > b.ExpectedReturn
	}
	if a.RiskLevel.Rank() != b.RiskLevel.Rank() {
		return a.RiskLevel.Rank() < b.RiskLevel.Rank()
	}
	return a.Code < b.Code
}

func scoreCandidate(c signals.Candidate, in Input, p Params) (Draft, bool) {
	if c.LotSize < 1 {
		c.LotSize = 1
	}
	lotCost := c.Price.Mul(decimal.NewFromInt(c.LotSize))
	if lotCost.GreaterThan(in.Budget) {
		return Draft{}, false
	}

	comp := Components{
		Technical: technicalScore(c.Technical),
		Sentiment: sentimentScore(c.Sentiment),
		RiskFit:   clamp(c.RiskCompatibility, 0, 1),
		BudgetFit: budgetFit(lotCost, in.Budget, p.MaxAllocationPercent),
	}
	w := p.Weights
	composite := (comp.Technical*w.Technical + comp.Sentiment*w.Sentiment + comp.RiskFit*w.RiskFit + comp.BudgetFit*w.BudgetFit) /
		(w.Technical + w.Sentiment + w.RiskFit + w.BudgetFit)

	expected := round(c.Technical.Momentum*100*horizonFactor(in.TimeHorizon, p.Horizon), 2)
	metTarget := in.TargetProfit > 0 && expected >= in.TargetProfit
	if metTarget {
		composite += p.TargetBonus
	}
	composite = round(clamp(composite, 0, 1), 6)

	d := Draft{
		Code:              c.Code,
		Type:              classify(composite, p.Thresholds),
		Composite:         composite,
		Confidence:        round(composite, 4),
		ExpectedReturn:    expected,
		RiskLevel:         riskLevel(c.Technical.Volatility, p.RiskLevels),
		AllocationPercent: decimal.Zero,
		Price:             c.Price,
		Components:        comp,
		Candidate:         c,
	}
	d.KeyFactors = keyFactors(c, comp, metTarget)

	switch d.Type {
	case models.RecommendationStrongSell:
		d.SuggestedQuantity = c.HeldQuantity
	case models.RecommendationSell:
		d.SuggestedQuantity = c.HeldQuantity / 2 / c.LotSize * c.LotSize
	}
	return d, true
}

// technicalScore blends trend, momentum and room to resistance, adjusted for
// overbought or oversold RSI.
func technicalScore(t signals.Technical) float64 {
	trend := (t.TrendScore + 1) / 2
	momentum := 0.5 + 0.5*math.Tanh(t.Momentum*10)
	room := 0.5 + 0.5*math.Tanh((t.ResistanceDistance-t.SupportDistance)*5)
	s := trend*0.5 + momentum*0.3 + room*0.2
	switch {
	case t.RSI > 70:
		s -= (t.RSI - 70) / 100
	case t.RSI < 30:
		s += (30 - t.RSI) / 100
	}
	return clamp(s, 0, 1)
}

// sentimentScore maps polarity to [0,1], shrunk toward neutral by confidence.
func sentimentScore(s signals.Sentiment) float64 {
	return clamp(0.5+0.5*s.Score*s.Confidence, 0, 1)
}

// budgetFit falls as one lot consumes more of the per-instrument cap, and
// falls further past the cap.
func budgetFit(lotCost, budget decimal.Decimal, maxAllocPct float64) float64 {
	capAmount := budget.Mul(decimal.NewFromFloat(maxAllocPct)).Div(hundred)
	if !capAmount.IsPositive() {
		return 0
	}
	u := lotCost.Div(capAmount).InexactFloat64()
	fit := 1 - 0.5*math.Min(u, 1)
	if u > 1 {
		fit -= 0.5 * math.Min(u-1, 1)
	}
	return clamp(fit, 0, 1)
}

func classify(composite float64, th config.ThresholdsConfig) models.RecommendationType {
	switch {
	case composite >= th.StrongBuy:
		return models.RecommendationStrongBuy
	case composite >= th.Buy:
		return models.RecommendationBuy
	case composite >= th.Hold:
		return models.RecommendationHold
	case composite >= th.Sell:
		return models.RecommendationSell
	default:
		return models.RecommendationStrongSell
	}
}

func riskLevel(volatility float64, rl config.RiskLevelsConfig) models.RiskLevel {
	switch {
	case volatility < rl.LowBelow:
		return models.RiskLevelLow
	case volatility < rl.MediumBelow:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelHigh
	}
}

func horizonFactor(h models.TimeHorizon, hc config.HorizonConfig) float64 {
	switch h {
	case models.TimeHorizonShort:
		return hc.Short
	case models.TimeHorizonLong:
		return hc.Long
	default:
		return hc.Medium
	}
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
