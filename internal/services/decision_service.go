package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bullbear/internal/config"
	apperrors "bullbear/internal/errors"
	"bullbear/internal/ledger"
	"bullbear/internal/logger"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
)

// decisionService applies user decisions to the portfolio ledger.
type decisionService struct {
	db         *gorm.DB
	portfolios PortfolioServicer
	cfg        config.LedgerConfig
	locks      *userLocks
	now        func() time.Time
}

// NewDecisionService creates a new DecisionServicer. Mutations for one user
// are serialized in-process; the portfolio version check guards against
// writers in other processes.
func NewDecisionService(db *gorm.DB, portfolios PortfolioServicer, cfg config.LedgerConfig) DecisionServicer {
	return &decisionService{
		db:         db,
		portfolios: portfolios,
		cfg:        cfg,
		locks:      newUserLocks(),
		now:        time.Now,
	}
}

// ApplyDecision validates d against the user's committed ledger and commits
// the lot changes, portfolio row, snapshot and decision record atomically.
func (s *decisionService) ApplyDecision(ctx context.Context, userID, code string, d ledger.Decision) (*DecisionResult, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Instrument code is required")
	}
	if d == nil {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Decision is required")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	release := s.locks.lock(userID)
	defer release()

	var result *DecisionResult
	err := withRetry(ctx, s.cfg, userID, func() error {
		var err error
		result, err = s.apply(ctx, userID, code, d)
		return err
	})
	if err != nil {
		logger.Get().Infow("decision rejected", "user_id", userID, "instrument", code, "type", d.Type(), "error", err)
		return nil, err
	}

	if d.Type() != models.DecisionHold {
		s.portfolios.Invalidate(ctx, userID)
	}
	logger.Get().Infow("decision applied",
		"user_id", userID,
		"instrument", code,
		"type", d.Type(),
		"quantity", result.Record.Quantity,
		"version", result.Record.PortfolioVersion,
	)
	return result, nil
}

func (s *decisionService) apply(ctx context.Context, userID, code string, d ledger.Decision) (*DecisionResult, error) {
	var result *DecisionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := lookupInstrument(tx, code)
		if err != nil {
			return err
		}
		st, err := loadState(tx, userID)
		if err != nil {
			return err
		}
		if ref := ledger.RecommendationRef(d); ref != nil {
			if err := checkRecommendation(tx, userID, inst.Code, *ref); err != nil {
				return err
			}
		}

		at := s.now().UTC()
		out, err := ledger.Apply(st, ledger.Instrument{Code: inst.Code, Sector: inst.Sector}, d, at)
		if err != nil {
			return err
		}
		if d.Type() != models.DecisionHold {
			if err := saveState(tx, st, out.Touched, models.SnapshotSourceDecision); err != nil {
				return err
			}
		}

		message := out.Message
		if h, ok := d.(ledger.HoldDecision); ok && h.Note != "" {
			message += ": " + h.Note
		}
		record := &models.DecisionRecord{
			UserID:           userID,
			InstrumentCode:   inst.Code,
			Type:             d.Type(),
			Quantity:         ledger.Quantity(d),
			Price:            ledger.Price(d),
			Amount:           out.Amount,
			RealizedPnL:      out.RealizedPnL,
			RecommendationID: ledger.RecommendationRef(d),
			PortfolioVersion: st.Portfolio.Version,
			Message:          message,
		}
		if out.Investment != nil {
			id := out.Investment.ID
			record.InvestmentID = &id
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		result = newDecisionResult(st, out, record)
		return nil
	})
	if err != nil {
		return nil, persistErr(err)
	}
	return result, nil
}

// CancelPending releases a pending decision's reservation.
func (s *decisionService) CancelPending(ctx context.Context, userID, investmentID string) (*DecisionResult, error) {
	release := s.locks.lock(userID)
	defer release()

	var result *DecisionResult
	err := withRetry(ctx, s.cfg, userID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			st, err := loadState(tx, userID)
			if err != nil {
				return err
			}
			out, err := ledger.CancelPending(st, investmentID, s.now().UTC())
			if err != nil {
				return err
			}
			if err := saveState(tx, st, out.Touched, models.SnapshotSourceDecision); err != nil {
				return err
			}

			id := out.Investment.ID
			record := &models.DecisionRecord{
				UserID:           userID,
				InstrumentCode:   out.Investment.InstrumentCode,
				Type:             models.DecisionCancel,
				Quantity:         out.Investment.OriginalQuantity,
				Price:            out.Investment.BuyPrice,
				Amount:           out.Amount,
				RecommendationID: out.Investment.RecommendationID,
				InvestmentID:     &id,
				PortfolioVersion: st.Portfolio.Version,
				Message:          out.Message,
			}
			if err := tx.Create(record).Error; err != nil {
				return persistErr(err)
			}
			result = newDecisionResult(st, out, record)
			return nil
		})
	})
	if err != nil {
		return nil, persistErr(err)
	}

	s.portfolios.Invalidate(ctx, userID)
	logger.Get().Infow("pending decision cancelled", "user_id", userID, "investment_id", investmentID)
	return result, nil
}

// ApplyBatch applies items in order. Each item commits or fails on its own;
// a failure does not stop later items.
func (s *decisionService) ApplyBatch(ctx context.Context, userID string, items []DecisionItem) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Decisions array is empty")
	}

	batch := &BatchResult{Items: make([]BatchItemResult, 0, len(items))}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := BatchItemResult{Index: i, InstrumentCode: normalizeCode(item.InstrumentCode)}
		res, err := s.ApplyDecision(ctx, userID, item.InstrumentCode, item.Decision)
		if err != nil {
			batch.Failed++
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				entry.ErrorCode = appErr.Code
				entry.Error = appErr.Message
			} else {
				entry.ErrorCode = apperrors.ErrInternalServer.Code
				entry.Error = apperrors.ErrInternalServer.Message
			}
		} else {
			batch.Succeeded++
			entry.Result = res
		}
		batch.Items = append(batch.Items, entry)
	}
	return batch, nil
}

// ListDecisions returns the user's decision log, newest first.
func (s *decisionService) ListDecisions(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.DecisionRecord], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.WithContext(ctx).Model(&models.DecisionRecord{}).Where("user_id = ?", userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, persistErr(err)
	}

	var records []models.DecisionRecord
	if err := base.Order("created_at DESC, id DESC").Scopes(pagination.Paginate(page)).Find(&records).Error; err != nil {
		return nil, persistErr(err)
	}

	result := pagination.NewPageResponse(records, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// checkRecommendation requires ref to be the user's active recommendation for code.
func checkRecommendation(tx *gorm.DB, userID, code, ref string) error {
	var count int64
	err := tx.Model(&models.Recommendation{}).
		Where("id = ? AND user_id = ? AND instrument_code = ? AND is_active = ?", ref, userID, code, true).
		Count(&count).Error
	if err != nil {
		return persistErr(err)
	}
	if count == 0 {
		return apperrors.ErrStaleRecommendation
	}
	return nil
}

func newDecisionResult(st *ledger.State, out *ledger.Outcome, record *models.DecisionRecord) *DecisionResult {
	res := &DecisionResult{
		Success:     true,
		Message:     out.Message,
		Portfolio:   summarize(&st.Portfolio, st.Lots),
		Fills:       out.Fills,
		RealizedPnL: out.RealizedPnL,
		Record:      record,
	}
	if out.Investment != nil {
		inv := *out.Investment
		res.Investment = &inv
	}
	return res
}
