// Package oracle fetches quotes for held instruments, records them and
// revalues every portfolio.
package oracle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bullbear/internal/marketdata"
	"bullbear/internal/services"
)

// MarketStore is the market data surface the oracle writes to.
type MarketStore interface {
	HeldInstrumentCodes(ctx context.Context) ([]string, error)
	RecordPrices(ctx context.Context, prices []services.PriceInput) (int, error)
}

// Revaluer marks portfolios to the latest prices.
type Revaluer interface {
	RevalueAll(ctx context.Context, at time.Time) (int, error)
}

// RunResult contains the outcome of an oracle run.
type RunResult struct {
	InstrumentsFetched int
	PricesRecorded     int
	PortfoliosRevalued int
	Errors             []marketdata.FetchError
	Duration           time.Duration
}

// Oracle runs one fetch, record, revalue cycle at a time.
type Oracle struct {
	market   MarketStore
	revaluer Revaluer
	provider marketdata.Provider
	revalue  bool
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewOracle creates a new Oracle. When revalue is false the cycle stops after
// recording prices.
func NewOracle(market MarketStore, revaluer Revaluer, provider marketdata.Provider, revalue bool, logger *zap.SugaredLogger) *Oracle {
	return &Oracle{
		market:   market,
		revaluer: revaluer,
		provider: provider,
		revalue:  revalue,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes a single cycle.
func (o *Oracle) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{}

	codes, err := o.market.HeldInstrumentCodes(ctx)
	if err != nil {
		return nil, err
	}
	result.InstrumentsFetched = len(codes)

	if len(codes) > 0 {
		o.logger.Infow("fetching quotes", "provider", o.provider.Name(), "count", len(codes))
		quotes, fetchErrors := o.provider.FetchQuotes(ctx, codes)
		result.Errors = fetchErrors

		if len(quotes) > 0 {
			prices := make([]services.PriceInput, len(quotes))
			for i, q := range quotes {
				prices[i] = services.PriceInput{Code: q.Code, Price: q.Price, Volume: q.Volume, RecordedAt: q.RecordedAt}
			}
			recorded, err := o.market.RecordPrices(ctx, prices)
			if err != nil {
				return nil, err
			}
			result.PricesRecorded = recorded
		} else {
			o.logger.Info("no quotes fetched")
		}
	} else {
		o.logger.Info("no held instruments, nothing to fetch")
	}

	if o.revalue {
		revalued, err := o.revaluer.RevalueAll(ctx, o.now().UTC())
		if err != nil {
			o.logger.Warnw("failed to revalue portfolios", "error", err)
		} else {
			result.PortfoliosRevalued = revalued
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
