package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/services"
)

// PipelineHandler handles batch writes from the data pipeline.
type PipelineHandler struct {
	marketService    services.MarketServicer
	portfolioService services.PortfolioServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(marketService services.MarketServicer, portfolioService services.PortfolioServicer) *PipelineHandler {
	return &PipelineHandler{marketService: marketService, portfolioService: portfolioService}
}

// InstrumentItem is one instrument in an upsert batch.
type InstrumentItem struct {
	Code    string `json:"code" binding:"required,instrument_code" example:"BBCA"`
	Name    string `json:"name" binding:"required,max=200" example:"Bank Central Asia"`
	Sector  string `json:"sector" binding:"max=100" example:"Finance"`
	LotSize int64  `json:"lot_size" binding:"gte=0" example:"100"`
}

// UpsertInstrumentsRequest represents a batch of instruments.
type UpsertInstrumentsRequest struct {
	Instruments []InstrumentItem `json:"instruments" binding:"required,min=1,max=1000,dive"`
}

// PriceItem is one quote in a price batch.
type PriceItem struct {
	Code       string          `json:"code" binding:"required,instrument_code"`
	Price      decimal.Decimal `json:"price" swaggertype:"string" example:"9250"`
	Volume     int64           `json:"volume" binding:"gte=0"`
	RecordedAt time.Time       `json:"recorded_at" binding:"required"`
}

// RecordPricesRequest represents a batch of quotes.
type RecordPricesRequest struct {
	Prices []PriceItem `json:"prices" binding:"required,min=1,max=5000,dive"`
}

// AnalysisItem is one analyzer result. Payloads are stored as sent.
type AnalysisItem struct {
	Code       string          `json:"code" binding:"required,instrument_code"`
	Technical  json.RawMessage `json:"technical,omitempty" swaggertype:"object"`
	Sentiment  json.RawMessage `json:"sentiment,omitempty" swaggertype:"object"`
	AnalyzedAt time.Time       `json:"analyzed_at"`
}

// RecordAnalysesRequest represents a batch of analyzer results.
type RecordAnalysesRequest struct {
	Analyses []AnalysisItem `json:"analyses" binding:"required,min=1,max=1000,dive"`
}

// RevalueRequest represents the request payload for a revaluation pass.
type RevalueRequest struct {
	At *time.Time `json:"at,omitempty"`
}

// UpsertInstruments handles instrument reference data from the pipeline.
// @Summary     Upsert instruments
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                   true "Pipeline API key"
// @Param       request   body     UpsertInstrumentsRequest true "Instruments"
// @Success     200       {object} map[string]int           "Upserted count"
// @Failure     400       {object} ErrorResponse            "Invalid input"
// @Failure     401       {object} ErrorResponse            "Invalid API key"
// @Failure     503       {object} ErrorResponse            "Pipeline not configured"
// @Router      /pipeline/instruments [post]
func (h *PipelineHandler) UpsertInstruments(c *gin.Context) {
	var req UpsertInstrumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	items := make([]services.InstrumentInput, len(req.Instruments))
	for i, in := range req.Instruments {
		items[i] = services.InstrumentInput{Code: in.Code, Name: in.Name, Sector: in.Sector, LotSize: in.LotSize}
	}

	count, err := h.marketService.UpsertInstruments(c.Request.Context(), items)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"upserted": count})
}

// RecordPrices handles quotes from the pipeline.
// @Summary     Record prices
// @Description Record quotes. A quote already stored for the same instrument and time is skipped
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string              true "Pipeline API key"
// @Param       request   body     RecordPricesRequest true "Quotes"
// @Success     200       {object} map[string]int      "Inserted count"
// @Failure     400       {object} ErrorResponse       "Invalid input"
// @Failure     401       {object} ErrorResponse       "Invalid API key"
// @Router      /pipeline/prices [post]
func (h *PipelineHandler) RecordPrices(c *gin.Context) {
	var req RecordPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	prices := make([]services.PriceInput, len(req.Prices))
	for i, p := range req.Prices {
		prices[i] = services.PriceInput{Code: p.Code, Price: p.Price, Volume: p.Volume, RecordedAt: p.RecordedAt}
	}

	count, err := h.marketService.RecordPrices(c.Request.Context(), prices)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recorded": count, "skipped": len(prices) - count})
}

// RecordAnalyses handles analyzer output from the pipeline.
// @Summary     Record analyses
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string                true "Pipeline API key"
// @Param       request   body     RecordAnalysesRequest true "Analyses"
// @Success     200       {object} map[string]int        "Recorded count"
// @Failure     400       {object} ErrorResponse         "Invalid input"
// @Failure     401       {object} ErrorResponse         "Invalid API key"
// @Router      /pipeline/analyses [post]
func (h *PipelineHandler) RecordAnalyses(c *gin.Context) {
	var req RecordAnalysesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	analyses := make([]services.AnalysisInput, len(req.Analyses))
	for i, a := range req.Analyses {
		analyses[i] = services.AnalysisInput{Code: a.Code, Technical: a.Technical, Sentiment: a.Sentiment, AnalyzedAt: a.AnalyzedAt}
	}

	count, err := h.marketService.RecordAnalyses(c.Request.Context(), analyses)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recorded": count})
}

// Revalue handles marking every portfolio to the latest prices.
// @Summary     Revalue portfolios
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Param       X-API-Key header   string          true  "Pipeline API key"
// @Param       request   body     RevalueRequest  false "Revaluation time, defaults to now"
// @Success     200       {object} map[string]int  "Revalued count"
// @Failure     401       {object} ErrorResponse   "Invalid API key"
// @Failure     409       {object} ErrorResponse   "Concurrent modification"
// @Router      /pipeline/revalue [post]
func (h *PipelineHandler) Revalue(c *gin.Context) {
	var req RevalueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}
	at := time.Now().UTC()
	if req.At != nil {
		at = req.At.UTC()
	}

	count, err := h.portfolioService.RevalueAll(c.Request.Context(), at)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revalued": count})
}
