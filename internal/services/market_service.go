package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/logger"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
	"bullbear/internal/signals"
)

// marketService handles instruments, quotes and analyzer output.
type marketService struct {
	db *gorm.DB
}

// NewMarketService creates a new MarketServicer.
func NewMarketService(db *gorm.DB) MarketServicer {
	return &marketService{db: db}
}

// UpsertInstruments creates or updates instruments by code.
func (s *marketService) UpsertInstruments(ctx context.Context, items []InstrumentInput) (int, error) {
	if len(items) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Instruments array is empty")
	}

	rows := make([]models.Instrument, 0, len(items))
	for _, in := range items {
		code := normalizeCode(in.Code)
		if code == "" {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Instrument code is required")
		}
		if strings.TrimSpace(in.Name) == "" {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Instrument name is required")
		}
		lotSize := in.LotSize
		if lotSize <= 0 {
			lotSize = 1
		}
		rows = append(rows, models.Instrument{
			Code:     code,
			Name:     strings.TrimSpace(in.Name),
			Sector:   strings.TrimSpace(in.Sector),
			LotSize:  lotSize,
			IsActive: true,
		})
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "sector", "lot_size", "is_active", "updated_at"}),
	}).Create(&rows)
	if result.Error != nil {
		return 0, persistErr(result.Error)
	}
	return len(rows), nil
}

// ListInstruments returns a paginated list of instruments ordered by code.
func (s *marketService) ListInstruments(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.WithContext(ctx).Model(&models.Instrument{})
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, persistErr(err)
	}

	var instruments []models.Instrument
	if err := base.Order("code ASC").Scopes(pagination.Paginate(page)).Find(&instruments).Error; err != nil {
		return nil, persistErr(err)
	}

	result := pagination.NewPageResponse(instruments, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetInstrument returns an active instrument by code.
func (s *marketService) GetInstrument(ctx context.Context, code string) (*models.Instrument, error) {
	var inst models.Instrument
	err := s.db.WithContext(ctx).Where("code = ? AND is_active = ?", normalizeCode(code), true).First(&inst).Error
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrInstrumentNotFound)
	}
	return &inst, nil
}

// RecordPrices inserts quotes, skipping duplicates of (code, recorded_at).
func (s *marketService) RecordPrices(ctx context.Context, prices []PriceInput) (int, error) {
	if len(prices) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Prices array is empty")
	}
	for _, p := range prices {
		if !p.Price.IsPositive() {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidPrice, "Price for "+p.Code+" must be positive")
		}
	}

	count := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range prices {
			sp := models.InstrumentPrice{
				InstrumentCode: normalizeCode(p.Code),
				Price:          p.Price,
				Volume:         p.Volume,
				RecordedAt:     p.RecordedAt.UTC(),
			}
			var existing int64
			if err := tx.Model(&models.InstrumentPrice{}).
				Where("instrument_code = ? AND recorded_at = ?", sp.InstrumentCode, sp.RecordedAt).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				continue
			}
			if err := tx.Create(&sp).Error; err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, persistErr(err)
	}
	return count, nil
}

// RecordAnalyses upserts the latest analyzer output per instrument. Payloads
// must decode; missing fields are reported later by the aggregator.
func (s *marketService) RecordAnalyses(ctx context.Context, analyses []AnalysisInput) (int, error) {
	if len(analyses) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Analyses array is empty")
	}

	rows := make([]models.InstrumentAnalysis, 0, len(analyses))
	for _, a := range analyses {
		code := normalizeCode(a.Code)
		if code == "" {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Instrument code is required")
		}
		if _, err := signals.ParseTechnical(a.Technical); err != nil {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid technical payload for "+code)
		}
		if _, err := signals.ParseSentiment(a.Sentiment); err != nil {
			return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid sentiment payload for "+code)
		}
		at := a.AnalyzedAt
		if at.IsZero() {
			at = time.Now()
		}
		rows = append(rows, models.InstrumentAnalysis{
			InstrumentCode: code,
			Technical:      datatypes.JSON(a.Technical),
			Sentiment:      datatypes.JSON(a.Sentiment),
			AnalyzedAt:     at.UTC(),
		})
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"technical", "sentiment", "analyzed_at", "updated_at"}),
	}).Create(&rows)
	if result.Error != nil {
		return 0, persistErr(result.Error)
	}
	return len(rows), nil
}

// LatestPrices returns the most recent quote for each code that has one.
func (s *marketService) LatestPrices(ctx context.Context, codes []string) (map[string]decimal.Decimal, error) {
	return latestPrices(s.db.WithContext(ctx), codes)
}

func latestPrices(db *gorm.DB, codes []string) (map[string]decimal.Decimal, error) {
	if len(codes) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	type priceRow struct {
		InstrumentCode string
		Price          decimal.Decimal
	}
	var rows []priceRow

	subq := db.Table("instrument_prices").
		Select("instrument_code, MAX(recorded_at) AS max_recorded").
		Where("instrument_code IN ?", codes).
		Group("instrument_code")

	if err := db.Table("instrument_prices ip").
		Select("ip.instrument_code, ip.price").
		Joins("INNER JOIN (?) latest ON ip.instrument_code = latest.instrument_code AND ip.recorded_at = latest.max_recorded", subq).
		Scan(&rows).Error; err != nil {
		return nil, persistErr(err)
	}

	result := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		result[r.InstrumentCode] = r.Price
	}
	return result, nil
}

// Universe returns every active instrument with its latest price and analysis.
// Missing data is carried through as zero price or nil features.
func (s *marketService) Universe(ctx context.Context) ([]signals.Input, error) {
	db := s.db.WithContext(ctx)

	var instruments []models.Instrument
	if err := db.Where("is_active = ?", true).Order("code ASC").Find(&instruments).Error; err != nil {
		return nil, persistErr(err)
	}
	if len(instruments) == 0 {
		return []signals.Input{}, nil
	}
	codes := make([]string, len(instruments))
	for i := range instruments {
		codes[i] = instruments[i].Code
	}

	prices, err := latestPrices(db, codes)
	if err != nil {
		return nil, err
	}

	var analyses []models.InstrumentAnalysis
	if err := db.Where("instrument_code IN ?", codes).Find(&analyses).Error; err != nil {
		return nil, persistErr(err)
	}
	byCode := make(map[string]*models.InstrumentAnalysis, len(analyses))
	for i := range analyses {
		byCode[analyses[i].InstrumentCode] = &analyses[i]
	}

	universe := make([]signals.Input, 0, len(instruments))
	for _, inst := range instruments {
		in := signals.Input{Instrument: inst, Price: prices[inst.Code]}
		if a, ok := byCode[inst.Code]; ok {
			in.Technical = parseOrNil(inst.Code, "technical", a.Technical, signals.ParseTechnical)
			in.Sentiment = parseOrNil(inst.Code, "sentiment", a.Sentiment, signals.ParseSentiment)
		}
		universe = append(universe, in)
	}
	return universe, nil
}

// HeldInstrumentCodes returns the distinct codes of every open lot across users.
func (s *marketService) HeldInstrumentCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).Model(&models.Investment{}).
		Where("status IN ?", []models.InvestmentStatus{models.StatusActive, models.StatusPartialSold}).
		Distinct("instrument_code").
		Order("instrument_code ASC").
		Pluck("instrument_code", &codes).Error
	if err != nil {
		return nil, persistErr(err)
	}
	return codes, nil
}

func parseOrNil[T any](code, kind string, raw []byte, parse func([]byte) (*T, error)) *T {
	v, err := parse(raw)
	if err != nil {
		logger.Get().Warnw("discarding undecodable analysis payload", "instrument", code, "kind", kind, "error", err)
		return nil
	}
	return v
}

// lookupInstrument loads an active instrument; an unknown code is a VALIDATION_ERROR.
func lookupInstrument(tx *gorm.DB, code string) (*models.Instrument, error) {
	var inst models.Instrument
	err := tx.Where("code = ? AND is_active = ?", code, true).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.WithMessage(apperrors.ErrUnknownInstrument, "Unknown instrument "+code)
	}
	if err != nil {
		return nil, persistErr(err)
	}
	return &inst, nil
}
