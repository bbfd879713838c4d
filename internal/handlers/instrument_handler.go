package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/pagination"
	"bullbear/internal/services"
)

// InstrumentHandler handles read access to instrument reference data.
type InstrumentHandler struct {
	marketService services.MarketServicer
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(marketService services.MarketServicer) *InstrumentHandler {
	return &InstrumentHandler{marketService: marketService}
}

// ListInstruments handles listing instruments.
// @Summary     List instruments
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Instrument] "Paginated instruments"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /instruments [get]
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.marketService.ListInstruments(c.Request.Context(), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetInstrument handles reading one instrument with its latest price.
// @Summary     Get instrument
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       code path     string true "Instrument code"
// @Success     200  {object} map[string]interface{} "Instrument and latest price"
// @Failure     404  {object} ErrorResponse "Instrument not found"
// @Router      /instruments/{code} [get]
func (h *InstrumentHandler) GetInstrument(c *gin.Context) {
	ctx := c.Request.Context()
	inst, err := h.marketService.GetInstrument(ctx, c.Param("code"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	prices, err := h.marketService.LatestPrices(ctx, []string{inst.Code})
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := gin.H{"instrument": inst}
	if p, ok := prices[inst.Code]; ok {
		resp["latest_price"] = p
	}
	c.JSON(http.StatusOK, resp)
}
