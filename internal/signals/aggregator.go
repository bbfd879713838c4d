package signals

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"bullbear/internal/config"
	"bullbear/internal/ledger"
	"bullbear/internal/models"
)

// Request is the per-run input shared by every candidate.
type Request struct {
	UserID           string
	Budget           decimal.Decimal
	RiskTolerance    models.RiskTolerance
	TimeHorizon      models.TimeHorizon
	SectorPreference string
	Exclude          []string
}

// Input is one instrument of the candidate universe with its attached features.
type Input struct {
	Instrument models.Instrument
	Price      decimal.Decimal
	Technical  *TechnicalFeatures
	Sentiment  *SentimentFeatures
}

// UserContext is what the store knows about the requesting user.
type UserContext struct {
	Profile   *models.UserProfile
	Portfolio *models.Portfolio
	Lots      []models.Investment
}

// Candidate is an enriched, validated signal ready for scoring.
type Candidate struct {
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Sector            string          `json:"sector"`
	Price             decimal.Decimal `json:"price"`
	LotSize           int64           `json:"lot_size"`
	Technical         Technical       `json:"technical"`
	Sentiment         Sentiment       `json:"sentiment"`
	RiskCompatibility float64         `json:"risk_compatibility"`
	HeldQuantity      int64           `json:"held_quantity"`
	PreferredSector   bool            `json:"preferred_sector"`
}

// Drop records an instrument left out of a run and why.
type Drop struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Result is the aggregator output for one run.
type Result struct {
	Candidates []Candidate          `json:"candidates"`
	Dropped    []Drop               `json:"dropped"`
	Behavior   BehaviorProfile      `json:"behavior"`
	Portfolio  PortfolioRisk        `json:"portfolio_risk"`
	Appetite   float64              `json:"risk_appetite"`
	RiskScore  float64              `json:"risk_score"`
	Tolerance  models.RiskTolerance `json:"risk_tolerance"`
}

// Aggregator builds candidate signals concurrently.
type Aggregator struct {
	cfg config.SignalsConfig
}

// NewAggregator creates an Aggregator. A non-positive worker count means one.
func NewAggregator(cfg config.SignalsConfig) *Aggregator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Aggregator{cfg: cfg}
}

// Aggregate filters the universe for the user and resolves each remaining
// instrument into a Candidate. Output is sorted by code regardless of scheduling.
func (a *Aggregator) Aggregate(ctx context.Context, req Request, user UserContext, universe []Input) (*Result, error) {
	behavior := AnalyzeBehavior(user.Lots)
	portfolioRisk := AnalyzePortfolio(user.Portfolio, user.Lots)
	appetite := Appetite(req.RiskTolerance, behavior, portfolioRisk)

	excluded := map[string]bool{}
	for _, code := range req.Exclude {
		excluded[normalizeCode(code)] = true
	}
	preferred := map[string]bool{}
	if user.Profile != nil {
		for _, code := range user.Profile.Blacklist {
			excluded[normalizeCode(code)] = true
		}
		for _, sector := range user.Profile.PreferredSectors {
			preferred[strings.ToLower(sector)] = true
		}
	}
	sectorFilter := strings.ToLower(strings.TrimSpace(req.SectorPreference))
	if sectorFilter == "any" {
		sectorFilter = ""
	}

	eligible := make([]Input, 0, len(universe))
	for _, in := range universe {
		if excluded[normalizeCode(in.Instrument.Code)] {
			continue
		}
		if sectorFilter != "" && strings.ToLower(in.Instrument.Sector) != sectorFilter {
			continue
		}
		eligible = append(eligible, in)
	}

	type slot struct {
		candidate *Candidate
		drop      *Drop
	}
	slots := make([]slot, len(eligible))
	sem := make(chan struct{}, a.cfg.Workers)
	var wg sync.WaitGroup
	for i := range eligible {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			in := eligible[i]
			tech, sent, err := resolve(in.Instrument.Code, in.Price, in.Technical, in.Sentiment)
			if err != nil {
				slots[i] = slot{drop: &Drop{Code: in.Instrument.Code, Reason: err.Error()}}
				return
			}
			lotSize := in.Instrument.LotSize
			if lotSize <= 0 {
				lotSize = 1
			}
			slots[i] = slot{candidate: &Candidate{
				Code:              in.Instrument.Code,
				Name:              in.Instrument.Name,
				Sector:            in.Instrument.Sector,
				Price:             in.Price,
				LotSize:           lotSize,
				Technical:         tech,
				Sentiment:         sent,
				RiskCompatibility: Compatibility(tech.Volatility, a.cfg.VolatilityCeiling, appetite, req.RiskTolerance),
				HeldQuantity:      ledger.HeldQuantity(user.Lots, in.Instrument.Code),
				PreferredSector:   preferred[strings.ToLower(in.Instrument.Sector)],
			}}
		}(i)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Candidates: make([]Candidate, 0, len(slots)),
		Dropped:    []Drop{},
		Behavior:   behavior,
		Portfolio:  portfolioRisk,
		Appetite:   appetite,
		RiskScore:  RiskScore(req.RiskTolerance, behavior, portfolioRisk),
		Tolerance:  req.RiskTolerance,
	}
	for _, s := range slots {
		if s.candidate != nil {
			res.Candidates = append(res.Candidates, *s.candidate)
		} else if s.drop != nil {
			res.Dropped = append(res.Dropped, *s.drop)
		}
	}
	sort.Slice(res.Candidates, func(i, j int) bool { return res.Candidates[i].Code < res.Candidates[j].Code })
	sort.Slice(res.Dropped, func(i, j int) bool { return res.Dropped[i].Code < res.Dropped[j].Code })
	return res, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
