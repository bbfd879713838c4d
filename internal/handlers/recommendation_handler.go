package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
	"bullbear/internal/services"
)

// RecommendationHandler handles recommendation runs and reads.
type RecommendationHandler struct {
	recommendationService services.RecommendationServicer
	auditService          services.AuditServicer
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(recommendationService services.RecommendationServicer, auditService services.AuditServicer) *RecommendationHandler {
	return &RecommendationHandler{recommendationService: recommendationService, auditService: auditService}
}

// GenerateRecommendationsRequest represents the request payload for a recommendation run.
type GenerateRecommendationsRequest struct {
	Budget           decimal.Decimal `json:"budget" swaggertype:"string" example:"10000000"`
	RiskTolerance    string          `json:"risk_tolerance" binding:"omitempty,risk_tolerance" example:"moderate"`
	TimeHorizon      string          `json:"time_horizon" binding:"omitempty,time_horizon" example:"medium"`
	TargetProfit     float64         `json:"target_profit" binding:"gte=0,lte=1000" example:"10"`
	SectorPreference string          `json:"sector_preference" binding:"max=100"`
	Exclude          []string        `json:"exclude" binding:"omitempty,max=200,dive,instrument_code"`
}

// Generate handles a recommendation run for the authenticated user.
// @Summary     Generate recommendations
// @Description Score the instrument universe for the user, replace the active set and report the diff against the previous one
// @Tags        recommendations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body     GenerateRecommendationsRequest true "Run parameters"
// @Success     200     {object} services.GenerateResult         "Recommendations and diff"
// @Failure     400     {object} ErrorResponse                    "Invalid input"
// @Failure     401     {object} ErrorResponse                    "Unauthorized"
// @Failure     422     {object} ErrorResponse                    "Insufficient data"
// @Failure     503     {object} ErrorResponse                    "Store unavailable"
// @Router      /recommendations [post]
func (h *RecommendationHandler) Generate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req GenerateRecommendationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.recommendationService.Generate(c.Request.Context(), services.GenerateRequest{
		UserID:           userID,
		Budget:           req.Budget,
		RiskTolerance:    models.RiskTolerance(req.RiskTolerance),
		TimeHorizon:      models.TimeHorizon(req.TimeHorizon),
		TargetProfit:     req.TargetProfit,
		SectorPreference: req.SectorPreference,
		Exclude:          req.Exclude,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "GENERATE_RECOMMENDATIONS", "recommendation_run", result.RunID, c.ClientIP(),
		map[string]interface{}{
			"budget":  req.Budget.String(),
			"count":   len(result.Recommendations),
			"new":     len(result.Diff.New),
			"removed": len(result.Diff.Removed),
			"changed": len(result.Diff.Changed),
		})

	c.JSON(http.StatusOK, result)
}

// GetActive handles listing the active recommendation set.
// @Summary     Get active recommendations
// @Description Get the user's current recommendations in rank order
// @Tags        recommendations
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string][]models.Recommendation "Active recommendations"
// @Failure     401 {object} ErrorResponse                      "Unauthorized"
// @Router      /recommendations [get]
func (h *RecommendationHandler) GetActive(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recs, err := h.recommendationService.GetActive(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// GetHistory handles listing every recommendation the user has received.
// @Summary     Get recommendation history
// @Description Get a paginated list of past and current recommendations, newest run first
// @Tags        recommendations
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Recommendation] "Paginated history"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /recommendations/history [get]
func (h *RecommendationHandler) GetHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.recommendationService.GetHistory(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLatest handles reading the newest recommendation for one instrument.
// @Summary     Get latest recommendation for an instrument
// @Tags        recommendations
// @Produce     json
// @Security    BearerAuth
// @Param       code path     string true "Instrument code"
// @Success     200  {object} map[string]models.Recommendation "Recommendation"
// @Failure     401  {object} ErrorResponse "Unauthorized"
// @Failure     404  {object} ErrorResponse "Recommendation not found"
// @Router      /recommendations/{code} [get]
func (h *RecommendationHandler) GetLatest(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rec, err := h.recommendationService.GetLatest(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendation": rec})
}
