package services

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"

	"bullbear/internal/config"
	apperrors "bullbear/internal/errors"
	"bullbear/internal/ledger"
	"bullbear/internal/logger"
	"bullbear/internal/models"
)

// loadState reads the user's portfolio row and every lot, oldest first.
func loadState(tx *gorm.DB, userID string) (*ledger.State, error) {
	var st ledger.State
	if err := tx.Where("user_id = ?", userID).First(&st.Portfolio).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrPortfolioNotFound)
	}
	if err := tx.Where("user_id = ?", userID).Order("buy_date ASC, id ASC").Find(&st.Lots).Error; err != nil {
		return nil, persistErr(err)
	}
	return &st, nil
}

// saveState writes the touched lots, then the portfolio row guarded by its
// version, then a snapshot. A version mismatch means another writer committed
// first and the whole transaction must be retried from a fresh read.
func saveState(tx *gorm.DB, st *ledger.State, touched []int, source models.SnapshotSource) error {
	for _, i := range touched {
		if err := tx.Save(&st.Lots[i]).Error; err != nil {
			if errors.Is(err, models.ErrInvalidTransition) {
				return apperrors.Wrap(apperrors.ErrLedgerInvariant, err)
			}
			return persistErr(err)
		}
	}

	p := &st.Portfolio
	if err := p.Validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrLedgerInvariant, err)
	}
	expected := p.Version
	result := tx.Model(&models.Portfolio{Base: models.Base{ID: p.ID}}).
		Where("version = ?", expected).
		Updates(map[string]any{
			"cash_balance":      p.CashBalance,
			"reserved_cash":     p.ReservedCash,
			"available_cash":    p.AvailableCash,
			"total_invested":    p.TotalInvested,
			"holdings_value":    p.HoldingsValue,
			"total_value":       p.TotalValue,
			"realized_pnl":      p.RealizedPnL,
			"unrealized_pnl":    p.UnrealizedPnL,
			"sector_allocation": p.SectorAllocation,
			"snapshot_at":       p.SnapshotAt,
			"version":           expected + 1,
		})
	if result.Error != nil {
		return persistErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrConcurrentModification
	}
	p.Version = expected + 1

	if err := tx.Create(models.NewSnapshot(p, source)).Error; err != nil {
		return persistErr(err)
	}
	return nil
}

// withRetry runs op until it succeeds, fails with anything other than a
// concurrent modification, or exhausts the configured attempts.
func withRetry(ctx context.Context, cfg config.LedgerConfig, userID string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, apperrors.ErrConcurrentModification) {
			logger.Get().Warnw("portfolio version conflict", "user_id", userID, "attempt", attempt)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxRetries)), ctx))
}
