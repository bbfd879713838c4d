package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/pagination"
	"bullbear/internal/services"
)

// PortfolioHandler handles portfolio reads and creation.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
	auditService     services.AuditServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer, auditService services.AuditServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService, auditService: auditService}
}

// CreatePortfolioRequest represents the request payload for opening a portfolio.
type CreatePortfolioRequest struct {
	InitialCash decimal.Decimal `json:"initial_cash" swaggertype:"string" example:"50000000"`
}

// HoldingsQuery represents the query parameters for listing holdings.
type HoldingsQuery struct {
	pagination.PageRequest
	IncludeClosed bool `form:"include_closed"`
}

// CreatePortfolio handles opening a portfolio for the authenticated user.
// @Summary     Create portfolio
// @Tags        portfolio
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body     CreatePortfolioRequest      true "Initial cash"
// @Success     201     {object} services.PortfolioSummary   "Portfolio created"
// @Failure     400     {object} ErrorResponse               "Invalid input"
// @Failure     401     {object} ErrorResponse               "Unauthorized"
// @Failure     409     {object} ErrorResponse               "Portfolio already exists"
// @Router      /portfolio [post]
func (h *PortfolioHandler) CreatePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	summary, err := h.portfolioService.CreatePortfolio(c.Request.Context(), userID, req.InitialCash)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_PORTFOLIO", "portfolio", userID, c.ClientIP(),
		map[string]interface{}{"initial_cash": req.InitialCash.String()})

	c.JSON(http.StatusCreated, gin.H{"portfolio": summary})
}

// GetPortfolio handles reading the portfolio summary.
// @Summary     Get portfolio
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]services.PortfolioSummary "Portfolio summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolio [get]
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.portfolioService.GetPortfolio(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio": summary})
}

// GetHoldings handles listing the user's lots.
// @Summary     Get holdings
// @Description Get open and pending lots, oldest first. include_closed adds sold and cancelled lots
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Param       include_closed query bool false "Include sold and cancelled lots"
// @Param       page           query int  false "Page number (default 1)"
// @Param       page_size      query int  false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Investment] "Paginated lots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/holdings [get]
func (h *PortfolioHandler) GetHoldings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var q HoldingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.portfolioService.GetHoldings(c.Request.Context(), userID, q.IncludeClosed, q.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSnapshots handles retrieving portfolio snapshot history.
// @Summary     Get portfolio snapshots
// @Description Get paginated snapshots, newest first, for an optional date range or the last N days
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Param       from      query string false "Start (RFC3339 or YYYY-MM-DD)"
// @Param       to        query string false "End (RFC3339 or YYYY-MM-DD)"
// @Param       days      query int    false "Last N days, overrides from/to"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PortfolioSnapshot] "Paginated snapshots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/snapshots [get]
func (h *PortfolioHandler) GetSnapshots(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	window, err := parseWindow(c, time.Now().UTC())
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.portfolioService.GetSnapshots(c.Request.Context(), userID, window, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
