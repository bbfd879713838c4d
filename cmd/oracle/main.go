package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"bullbear/internal/cache"
	"bullbear/internal/config"
	"bullbear/internal/database"
	"bullbear/internal/logger"
	"bullbear/internal/marketdata"
	"bullbear/internal/oracle"
	"bullbear/internal/services"
)

// exitFetchErrors is returned by a one-shot run that recorded prices but
// failed to fetch some quotes.
const exitFetchErrors = 2

func main() {
	skipRevalue := flag.Bool("skip-revalue", false, "record prices without revaluing portfolios")
	flag.Parse()

	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	code, err := run(!*skipRevalue)
	if err != nil {
		logger.Get().Errorw("oracle failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	if code != 0 {
		logger.Sync()
		os.Exit(code)
	}
}

func run(revalue bool) (int, error) {
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load configuration: %w", err)
	}
	tunables, err := config.LoadTunables(cfg.TunablesPath)
	if err != nil {
		return 0, fmt.Errorf("failed to load tunables: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return 0, fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()

	db := dbManager.DB()
	store := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	market := services.NewMarketService(db)
	portfolios := services.NewPortfolioService(db, store, cfg.CacheTTL, tunables.Ledger)

	provider := marketdata.NewHTTPProvider(cfg.QuoteProviderURL,
		marketdata.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	orc := oracle.NewOracle(market, portfolios, provider, revalue, log.With("component", "oracle"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OracleSchedule == "" {
		result, err := orc.Run(ctx)
		if err != nil {
			return 0, err
		}
		logResult(result)
		if len(result.Errors) > 0 {
			return exitFetchErrors, nil
		}
		return 0, nil
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(cfg.OracleSchedule, func() {
		result, err := orc.Run(ctx)
		if err != nil {
			log.Errorw("oracle run failed", "error", err)
			return
		}
		logResult(result)
	}); err != nil {
		return 0, fmt.Errorf("invalid ORACLE_SCHEDULE %q: %w", cfg.OracleSchedule, err)
	}

	log.Infow("oracle scheduled", "schedule", cfg.OracleSchedule, "provider", provider.Name())
	scheduler.Start()
	<-ctx.Done()

	log.Info("shutting down oracle")
	<-scheduler.Stop().Done()
	return 0, nil
}

func logResult(result *oracle.RunResult) {
	log := logger.Get()
	log.Infow("oracle run completed",
		"instruments_fetched", result.InstrumentsFetched,
		"prices_recorded", result.PricesRecorded,
		"portfolios_revalued", result.PortfoliosRevalued,
		"errors", len(result.Errors),
		"duration", result.Duration.String(),
	)
	for _, fetchErr := range result.Errors {
		log.Warnw("price fetch failed", "code", fetchErr.Code, "error", fetchErr.Err)
	}
}
