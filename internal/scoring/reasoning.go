package scoring

import (
	"fmt"
	"strings"

	"bullbear/internal/signals"
)

func keyFactors(c signals.Candidate, comp Components, metTarget bool) []string {
	var f []string
	switch {
	case c.Technical.TrendScore >= 0.5:
		f = append(f, "strong uptrend")
	case c.Technical.TrendScore > 0:
		f = append(f, "mild uptrend")
	case c.Technical.TrendScore <= -0.5:
		f = append(f, "strong downtrend")
	case c.Technical.TrendScore < 0:
		f = append(f, "mild downtrend")
	}
	if c.Technical.RSI > 70 {
		f = append(f, "overbought")
	} else if c.Technical.RSI > 0 && c.Technical.RSI < 30 {
		f = append(f, "oversold")
	}
	switch {
	case comp.Sentiment >= 0.65:
		f = append(f, "positive news sentiment")
	case comp.Sentiment <= 0.35:
		f = append(f, "negative news sentiment")
	}
	if comp.RiskFit < 0.4 {
		f = append(f, "volatility above risk appetite")
	}
	if c.PreferredSector {
		f = append(f, "preferred sector")
	}
	if c.HeldQuantity > 0 {
		f = append(f, "already held")
	}
	if metTarget {
		f = append(f, "meets target return")
	}
	for _, e := range c.Sentiment.KeyEvents {
		if e != "" && len(f) < 8 {
			f = append(f, e)
		}
	}
	if f == nil {
		f = []string{}
	}
	return f
}

func reasoning(d *Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rated %s with confidence %.2f (technical %.2f, sentiment %.2f, risk fit %.2f, budget fit %.2f).",
		d.Code, d.Type, d.Confidence, d.Components.Technical, d.Components.Sentiment, d.Components.RiskFit, d.Components.BudgetFit)
	fmt.Fprintf(&b, " Expected return %.2f%%, %s risk.", d.ExpectedReturn, d.RiskLevel)
	switch {
	case d.Type.IsBuy() && d.SuggestedQuantity > 0:
		fmt.Fprintf(&b, " Suggest buying %d units (%s%% of budget).", d.SuggestedQuantity, d.AllocationPercent.StringFixed(2))
	case d.Type.IsBuy():
		b.WriteString(" Budget does not cover a lot after higher-ranked allocations.")
	case d.SuggestedQuantity > 0:
		fmt.Fprintf(&b, " Suggest selling %d held units.", d.SuggestedQuantity)
	}
	return b.String()
}
