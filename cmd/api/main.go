package main

import (
	"fmt"
	"os"

	"bullbear/internal/cache"
	"bullbear/internal/config"
	"bullbear/internal/database"
	"bullbear/internal/logger"

	_ "bullbear/internal/docs" // Import swagger docs
)

// @title           BullBear API
// @version         1.0
// @description     BullBear scores instruments into per-user recommendations and keeps a transactional portfolio ledger of the decisions users take on them.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tunables, err := config.LoadTunables(appConfig.TunablesPath)
	if err != nil {
		return fmt.Errorf("failed to load tunables: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	store := cache.New(appConfig.RedisAddr, appConfig.RedisPassword, appConfig.RedisDB)
	if appConfig.RedisAddr != "" {
		log.Infow("Using redis portfolio cache", "addr", appConfig.RedisAddr)
	}

	router := newRouter(appConfig, dbManager.DB(), store, tunables)

	log.Infof("Starting BullBear server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
