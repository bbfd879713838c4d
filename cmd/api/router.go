package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"bullbear/internal/cache"
	"bullbear/internal/config"
	"bullbear/internal/handlers"
	"bullbear/internal/middleware"
	"bullbear/internal/services"
	"bullbear/internal/validator"
)

// newRouter wires services and handlers onto a gin engine.
func newRouter(appConfig *config.Config, db *gorm.DB, store cache.Store, tunables config.Tunables) *gin.Engine {
	validator.Register()

	// Initialize services
	auditService := services.NewAuditService(db)
	marketService := services.NewMarketService(db)
	profileService := services.NewProfileService(db)
	portfolioService := services.NewPortfolioService(db, store, appConfig.CacheTTL, tunables.Ledger)
	decisionService := services.NewDecisionService(db, portfolioService, tunables.Ledger)
	recommendationService := services.NewRecommendationService(db, marketService, profileService, tunables)

	// Initialize handlers
	recommendationHandler := handlers.NewRecommendationHandler(recommendationService, auditService)
	decisionHandler := handlers.NewDecisionHandler(decisionService, auditService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService, auditService)
	profileHandler := handlers.NewProfileHandler(profileService, auditService)
	instrumentHandler := handlers.NewInstrumentHandler(marketService)
	pipelineHandler := handlers.NewPipelineHandler(marketService, portfolioService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Pipeline routes (API key auth)
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(appConfig.PipelineAPIKey))
	pipeline.POST("/instruments", pipelineHandler.UpsertInstruments)
	pipeline.POST("/prices", pipelineHandler.RecordPrices)
	pipeline.POST("/analyses", pipelineHandler.RecordAnalyses)
	pipeline.POST("/revalue", pipelineHandler.Revalue)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", profileHandler.GetProfile)
	protected.PUT("/profile", profileHandler.UpdateProfile)

	recommendations := protected.Group("/recommendations")
	recommendations.POST("", recommendationHandler.Generate)
	recommendations.GET("", recommendationHandler.GetActive)
	recommendations.GET("/history", recommendationHandler.GetHistory)
	recommendations.GET("/:code", recommendationHandler.GetLatest)

	decisions := protected.Group("/decisions")
	decisions.POST("", decisionHandler.ApplyDecision)
	decisions.GET("", decisionHandler.ListDecisions)
	decisions.POST("/batch", decisionHandler.ApplyBatch)
	decisions.DELETE("/pending/:id", decisionHandler.CancelPending)

	portfolio := protected.Group("/portfolio")
	portfolio.POST("", portfolioHandler.CreatePortfolio)
	portfolio.GET("", portfolioHandler.GetPortfolio)
	portfolio.GET("/holdings", portfolioHandler.GetHoldings)
	portfolio.GET("/snapshots", portfolioHandler.GetSnapshots)

	instruments := protected.Group("/instruments")
	instruments.GET("", instrumentHandler.ListInstruments)
	instruments.GET("/:code", instrumentHandler.GetInstrument)

	return router
}
