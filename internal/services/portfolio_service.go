package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bullbear/internal/cache"
	"bullbear/internal/config"
	apperrors "bullbear/internal/errors"
	"bullbear/internal/ledger"
	"bullbear/internal/logger"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
)

// portfolioService handles portfolio reads, creation and revaluation.
type portfolioService struct {
	db    *gorm.DB
	cache cache.Store
	ttl   time.Duration
	cfg   config.LedgerConfig
	now   func() time.Time
}

// NewPortfolioService creates a new PortfolioServicer. Summaries are cached in
// store for ttl and invalidated on every ledger write.
func NewPortfolioService(db *gorm.DB, store cache.Store, ttl time.Duration, cfg config.LedgerConfig) PortfolioServicer {
	return &portfolioService{db: db, cache: store, ttl: ttl, cfg: cfg, now: time.Now}
}

// CreatePortfolio opens a portfolio funded with initialCash.
func (s *portfolioService) CreatePortfolio(ctx context.Context, userID string, initialCash decimal.Decimal) (*PortfolioSummary, error) {
	if initialCash.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Initial cash cannot be negative")
	}

	p := models.Portfolio{UserID: userID, CashBalance: initialCash, Version: 1}
	ledger.Recompute(&p, nil, s.now().UTC())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Portfolio{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.ErrPortfolioExists
		}
		if err := tx.Create(&p).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.ErrPortfolioExists
			}
			return err
		}
		return tx.Create(models.NewSnapshot(&p, models.SnapshotSourceCreate)).Error
	})
	if err != nil {
		return nil, persistErr(err)
	}

	logger.Get().Infow("portfolio created", "user_id", userID, "cash", initialCash.String())
	return summarize(&p, nil), nil
}

// GetPortfolio returns the user's portfolio summary, read through the cache.
// A cached summary is served only while its version matches the committed row,
// so a fill that raced an invalidation is never returned.
func (s *portfolioService) GetPortfolio(ctx context.Context, userID string) (*PortfolioSummary, error) {
	var cached PortfolioSummary
	found, err := cache.GetJSON(ctx, s.cache, cache.PortfolioKey(userID), &cached)
	if err != nil {
		logger.Get().Warnw("portfolio cache read failed", "user_id", userID, "error", err)
	}
	if found {
		var versions []int64
		if err := s.db.WithContext(ctx).Model(&models.Portfolio{}).
			Where("user_id = ?", userID).
			Limit(1).
			Pluck("version", &versions).Error; err != nil {
			return nil, persistErr(err)
		}
		if len(versions) == 1 && versions[0] == cached.Version {
			return &cached, nil
		}
		logger.Get().Debugw("stale portfolio cache entry", "user_id", userID, "cached_version", cached.Version)
	}

	st, err := loadState(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	summary := summarize(&st.Portfolio, st.Lots)

	if err := cache.SetJSON(ctx, s.cache, cache.PortfolioKey(userID), summary, s.ttl); err != nil {
		logger.Get().Warnw("portfolio cache write failed", "user_id", userID, "error", err)
	}
	return summary, nil
}

// GetHoldings lists the user's lots oldest first. Closed lots are included on request.
func (s *portfolioService) GetHoldings(ctx context.Context, userID string, includeClosed bool, page pagination.PageRequest) (*pagination.PageResponse[models.Investment], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Investment{}).Where("user_id = ?", userID)
	if !includeClosed {
		base = base.Where("status IN ?", []models.InvestmentStatus{
			models.StatusActive, models.StatusPartialSold, models.StatusPending,
		})
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, persistErr(err)
	}

	var lots []models.Investment
	if err := base.Order("buy_date ASC, id ASC").Scopes(pagination.Paginate(page)).Find(&lots).Error; err != nil {
		return nil, persistErr(err)
	}

	result := pagination.NewPageResponse(lots, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetSnapshots returns the user's snapshot history, newest first.
func (s *portfolioService) GetSnapshots(ctx context.Context, userID string, window pagination.Window, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioSnapshot], error) {
	if !window.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to")
	}
	page.Defaults()

	var totalItems int64
	base := s.db.WithContext(ctx).Model(&models.PortfolioSnapshot{}).
		Where("user_id = ?", userID).
		Scopes(pagination.Within("recorded_at", window))
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, persistErr(err)
	}

	var snapshots []models.PortfolioSnapshot
	if err := base.Order("recorded_at DESC, version DESC").Scopes(pagination.Paginate(page)).Find(&snapshots).Error; err != nil {
		return nil, persistErr(err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// RevalueAll marks every portfolio's open lots to the latest recorded prices
// and appends a revalue snapshot where anything changed.
func (s *portfolioService) RevalueAll(ctx context.Context, at time.Time) (int, error) {
	var userIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Portfolio{}).Order("user_id ASC").Pluck("user_id", &userIDs).Error; err != nil {
		return 0, persistErr(err)
	}

	count := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		var changed bool
		err := withRetry(ctx, s.cfg, userID, func() error {
			var err error
			changed, err = s.revalue(ctx, userID, at)
			return err
		})
		if err != nil {
			return count, err
		}
		if changed {
			s.Invalidate(ctx, userID)
			count++
		}
	}

	logger.Get().Infow("portfolios revalued", "revalued", count, "portfolios", len(userIDs))
	return count, nil
}

func (s *portfolioService) revalue(ctx context.Context, userID string, at time.Time) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := loadState(tx, userID)
		if err != nil {
			return err
		}

		codes := map[string]bool{}
		for i := range st.Lots {
			if st.Lots[i].Status.IsOpen() {
				codes[st.Lots[i].InstrumentCode] = true
			}
		}
		if len(codes) == 0 {
			return nil
		}
		list := make([]string, 0, len(codes))
		for c := range codes {
			list = append(list, c)
		}
		prices, err := latestPrices(tx, list)
		if err != nil {
			return err
		}

		var touched []int
		for code, price := range prices {
			touched = append(touched, ledger.MarkToPrice(st.Lots, code, price)...)
		}
		if len(touched) == 0 {
			return nil
		}
		ledger.Recompute(&st.Portfolio, st.Lots, at.UTC())
		if err := saveState(tx, st, touched, models.SnapshotSourceRevalue); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, persistErr(err)
	}
	return changed, nil
}

// Invalidate drops the user's cached summary.
func (s *portfolioService) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, cache.PortfolioKey(userID)); err != nil {
		logger.Get().Warnw("portfolio cache invalidation failed", "user_id", userID, "error", err)
	}
}

// summarize builds the read model from a portfolio row and its lots.
func summarize(p *models.Portfolio, lots []models.Investment) *PortfolioSummary {
	s := &PortfolioSummary{
		UserID:           p.UserID,
		CashBalance:      p.CashBalance,
		ReservedCash:     p.ReservedCash,
		AvailableCash:    p.AvailableCash,
		TotalInvested:    p.TotalInvested,
		HoldingsValue:    p.HoldingsValue,
		TotalValue:       p.TotalValue,
		RealizedPnL:      p.RealizedPnL,
		UnrealizedPnL:    p.UnrealizedPnL,
		SectorAllocation: allocationOf(p.SectorAllocation),
		Version:          p.Version,
		SnapshotAt:       p.SnapshotAt,
	}
	if p.TotalInvested.IsPositive() {
		s.ReturnPct = p.UnrealizedPnL.Div(p.TotalInvested).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	for i := range lots {
		switch {
		case lots[i].Status.IsOpen():
			s.OpenPositions++
		case lots[i].Status == models.StatusPending:
			s.PendingOrders++
		}
	}
	return s
}

func allocationOf(a datatypes.JSONType[map[string]float64]) map[string]float64 {
	m := a.Data()
	if m == nil {
		return map[string]float64{}
	}
	return m
}
