package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/ledger"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
	"bullbear/internal/services"
)

// DecisionHandler handles user decisions against the portfolio ledger.
type DecisionHandler struct {
	decisionService services.DecisionServicer
	auditService    services.AuditServicer
}

// NewDecisionHandler creates a new DecisionHandler.
func NewDecisionHandler(decisionService services.DecisionServicer, auditService services.AuditServicer) *DecisionHandler {
	return &DecisionHandler{decisionService: decisionService, auditService: auditService}
}

// DecisionRequest represents one buy, sell, hold or pending decision.
// Quantity and price are ignored for holds.
type DecisionRequest struct {
	InstrumentCode   string          `json:"instrument_code" binding:"required,instrument_code" example:"BBCA"`
	Type             string          `json:"type" binding:"required,decision_type" example:"buy"`
	Quantity         int64           `json:"quantity" example:"100"`
	Price            decimal.Decimal `json:"price" swaggertype:"string" example:"9250"`
	RecommendationID *string         `json:"recommendation_id,omitempty" binding:"omitempty,uuid"`
	PendingID        *string         `json:"pending_id,omitempty" binding:"omitempty,uuid"`
	Note             string          `json:"note" binding:"max=500"`
}

// toDecision builds the ledger variant for the request type. Quantity and
// price are checked by Decision.Validate so every bad value gets the same
// VALIDATION_ERROR answer.
func (r DecisionRequest) toDecision() (ledger.Decision, error) {
	switch models.DecisionType(r.Type) {
	case models.DecisionBuy:
		return ledger.BuyDecision{Quantity: r.Quantity, Price: r.Price, RecommendationID: r.RecommendationID, PendingID: r.PendingID}, nil
	case models.DecisionSell:
		return ledger.SellDecision{Quantity: r.Quantity, Price: r.Price, RecommendationID: r.RecommendationID}, nil
	case models.DecisionPending:
		return ledger.PendingDecision{Quantity: r.Quantity, Price: r.Price, RecommendationID: r.RecommendationID}, nil
	case models.DecisionHold:
		return ledger.HoldDecision{RecommendationID: r.RecommendationID, Note: r.Note}, nil
	}
	return nil, apperrors.WithMessage(apperrors.ErrValidation, "Unsupported decision type "+r.Type)
}

// BatchDecisionRequest represents decisions applied in order for one user.
type BatchDecisionRequest struct {
	Decisions []DecisionRequest `json:"decisions" binding:"required,min=1,max=50,dive"`
}

// ApplyDecision handles one decision.
// @Summary     Apply decision
// @Description Apply a buy, sell, hold or pending decision to the user's portfolio atomically
// @Tags        decisions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body     DecisionRequest          true "Decision"
// @Success     200     {object} services.DecisionResult  "Decision applied"
// @Failure     400     {object} ErrorResponse            "Invalid input, insufficient funds or holdings"
// @Failure     401     {object} ErrorResponse            "Unauthorized"
// @Failure     404     {object} ErrorResponse            "Portfolio not found"
// @Failure     409     {object} ErrorResponse            "Stale recommendation or concurrent modification"
// @Failure     503     {object} ErrorResponse            "Store unavailable"
// @Router      /decisions [post]
func (h *DecisionHandler) ApplyDecision(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	decision, err := req.toDecision()
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := decision.Validate(); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.decisionService.ApplyDecision(c.Request.Context(), userID, req.InstrumentCode, decision)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "APPLY_DECISION", "decision", result.Record.ID, c.ClientIP(),
		map[string]interface{}{
			"instrument": result.Record.InstrumentCode,
			"type":       string(result.Record.Type),
			"quantity":   result.Record.Quantity,
			"price":      result.Record.Price.String(),
			"version":    result.Record.PortfolioVersion,
		})

	c.JSON(http.StatusOK, result)
}

// ApplyBatch handles several decisions applied in order.
// @Summary     Apply decisions in batch
// @Description Apply decisions sequentially. Each item commits or fails independently and is reported by index
// @Tags        decisions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body     BatchDecisionRequest  true "Decisions"
// @Success     200     {object} services.BatchResult  "Per-item results"
// @Failure     400     {object} ErrorResponse         "Invalid input"
// @Failure     401     {object} ErrorResponse         "Unauthorized"
// @Router      /decisions/batch [post]
func (h *DecisionHandler) ApplyBatch(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BatchDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	items := make([]services.DecisionItem, 0, len(req.Decisions))
	for _, d := range req.Decisions {
		decision, err := d.toDecision()
		if err != nil {
			respondWithError(c, err)
			return
		}
		items = append(items, services.DecisionItem{InstrumentCode: d.InstrumentCode, Decision: decision})
	}

	result, err := h.decisionService.ApplyBatch(c.Request.Context(), userID, items)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "APPLY_DECISION_BATCH", "decision", "", c.ClientIP(),
		map[string]interface{}{"succeeded": result.Succeeded, "failed": result.Failed})

	c.JSON(http.StatusOK, result)
}

// CancelPending handles releasing a pending decision's reservation.
// @Summary     Cancel pending decision
// @Tags        decisions
// @Produce     json
// @Security    BearerAuth
// @Param       id  path     string                  true "Pending investment ID"
// @Success     200 {object} services.DecisionResult "Reservation released"
// @Failure     400 {object} ErrorResponse           "Investment is not pending"
// @Failure     401 {object} ErrorResponse           "Unauthorized"
// @Failure     404 {object} ErrorResponse           "Investment not found"
// @Router      /decisions/pending/{id} [delete]
func (h *DecisionHandler) CancelPending(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id := c.Param("id")
	result, err := h.decisionService.CancelPending(c.Request.Context(), userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CANCEL_PENDING", "investment", id, c.ClientIP(),
		map[string]interface{}{"released": result.Record.Amount.String()})

	c.JSON(http.StatusOK, result)
}

// ListDecisions handles reading the decision log.
// @Summary     List decisions
// @Tags        decisions
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.DecisionRecord] "Paginated decisions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /decisions [get]
func (h *DecisionHandler) ListDecisions(c *gin.Context) {
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

	result, err := h.decisionService.ListDecisions(c.Request.Context(), userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
