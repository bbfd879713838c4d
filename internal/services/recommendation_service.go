package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bullbear/internal/config"
	"bullbear/internal/differ"
	apperrors "bullbear/internal/errors"
	"bullbear/internal/logger"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
	"bullbear/internal/scoring"
	"bullbear/internal/signals"
)

// recommendationService runs the aggregate, score, diff, commit pipeline.
type recommendationService struct {
	db         *gorm.DB
	market     MarketServicer
	profiles   ProfileServicer
	aggregator *signals.Aggregator
	tunables   config.Tunables
	locks      *userLocks
	now        func() time.Time
}

// NewRecommendationService creates a new RecommendationServicer.
func NewRecommendationService(db *gorm.DB, market MarketServicer, profiles ProfileServicer, tunables config.Tunables) RecommendationServicer {
	return &recommendationService{
		db:         db,
		market:     market,
		profiles:   profiles,
		aggregator: signals.NewAggregator(tunables.Signals),
		tunables:   tunables,
		locks:      newUserLocks(),
		now:        time.Now,
	}
}

// Generate scores the universe for the user and replaces their active set.
func (s *recommendationService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if !req.Budget.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Budget must be positive")
	}
	if req.TargetProfit < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Target profit cannot be negative")
	}

	profile, err := s.profiles.GetProfile(ctx, req.UserID)
	if err != nil && !errors.Is(err, apperrors.ErrProfileNotFound) {
		return nil, err
	}
	tolerance, horizon := req.RiskTolerance, req.TimeHorizon
	if profile != nil {
		if tolerance == "" {
			tolerance = profile.RiskTolerance
		}
		if horizon == "" {
			horizon = profile.TimeHorizon
		}
	}
	if tolerance == "" {
		tolerance = models.RiskToleranceModerate
	}
	if horizon == "" {
		horizon = models.TimeHorizonMedium
	}
	if !tolerance.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Unknown risk tolerance")
	}
	if !horizon.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Unknown time horizon")
	}

	user, err := s.userContext(ctx, req.UserID, profile)
	if err != nil {
		return nil, err
	}
	universe, err := s.market.Universe(ctx)
	if err != nil {
		return nil, err
	}

	agg, err := s.aggregator.Aggregate(ctx, signals.Request{
		UserID:           req.UserID,
		Budget:           req.Budget,
		RiskTolerance:    tolerance,
		TimeHorizon:      horizon,
		SectorPreference: req.SectorPreference,
		Exclude:          req.Exclude,
	}, user, universe)
	if err != nil {
		return nil, err
	}
	for _, d := range agg.Dropped {
		logger.Get().Debugw("candidate dropped", "user_id", req.UserID, "instrument", d.Code, "reason", d.Reason)
	}
	if len(agg.Candidates) == 0 {
		return nil, apperrors.ErrNoCandidates
	}

	drafts := scoring.Score(scoring.Input{
		Candidates:    agg.Candidates,
		RiskTolerance: tolerance,
		TimeHorizon:   horizon,
		Budget:        req.Budget,
		TargetProfit:  req.TargetProfit,
	}, s.tunables.Scoring)
	if len(drafts) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrNoCandidates, "No instrument is affordable within the budget")
	}

	runID := uuid.Must(uuid.NewV7()).String()
	recs, diff, err := s.commit(ctx, req.UserID, runID, drafts)
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("recommendations generated",
		"user_id", req.UserID,
		"run_id", runID,
		"candidates", len(agg.Candidates),
		"dropped", len(agg.Dropped),
		"recommended", len(recs),
		"new", len(diff.New),
		"removed", len(diff.Removed),
		"changed", len(diff.Changed),
	)
	return &GenerateResult{
		RunID:           runID,
		Recommendations: recs,
		Diff:            diff,
		Dropped:         agg.Dropped,
		RiskProfile: RiskProfile{
			Tolerance: tolerance,
			RiskScore: agg.RiskScore,
			Appetite:  agg.Appetite,
			Behavior:  agg.Behavior,
			Portfolio: agg.Portfolio,
		},
	}, nil
}

// commit diffs against the prior active set and swaps it for the new one in a
// single transaction, so the user never has zero or two active sets.
func (s *recommendationService) commit(ctx context.Context, userID, runID string, drafts []scoring.Draft) ([]models.Recommendation, differ.Result, error) {
	release := s.locks.lock(userID)
	defer release()

	var diff differ.Result
	recs := make([]models.Recommendation, 0, len(drafts))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior []models.Recommendation
		if err := tx.Where("user_id = ? AND is_active = ?", userID, true).Order("rank ASC").Find(&prior).Error; err != nil {
			return err
		}
		diff = differ.Diff(differ.FromDrafts(drafts), differ.FromRecommendations(prior), s.tunables.Differ.MinConfidenceChange)

		now := s.now().UTC()
		if len(prior) > 0 {
			if err := tx.Model(&models.Recommendation{}).
				Where("user_id = ? AND is_active = ?", userID, true).
				Updates(map[string]any{"is_active": false, "deactivated_at": now}).Error; err != nil {
				return err
			}
		}

		for _, d := range drafts {
			rec, err := toRecommendation(userID, runID, d)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return tx.Create(&recs).Error
	})
	if err != nil {
		return nil, differ.Result{}, persistErr(err)
	}
	return recs, diff, nil
}

func (s *recommendationService) userContext(ctx context.Context, userID string, profile *models.UserProfile) (signals.UserContext, error) {
	db := s.db.WithContext(ctx)
	user := signals.UserContext{Profile: profile}

	var p models.Portfolio
	err := db.Where("user_id = ?", userID).First(&p).Error
	switch {
	case err == nil:
		user.Portfolio = &p
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return user, persistErr(err)
	}

	if err := db.Where("user_id = ?", userID).Order("buy_date ASC, id ASC").Find(&user.Lots).Error; err != nil {
		return user, persistErr(err)
	}
	return user, nil
}

// GetActive returns the user's active recommendations in rank order.
func (s *recommendationService) GetActive(ctx context.Context, userID string) ([]models.Recommendation, error) {
	recs := []models.Recommendation{}
	if err := s.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).Order("rank ASC").Find(&recs).Error; err != nil {
		return nil, persistErr(err)
	}
	return recs, nil
}

// GetHistory returns every recommendation the user has received, newest run
// first. Run ids are UUIDv7, so they sort by creation time.
func (s *recommendationService) GetHistory(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Recommendation], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.WithContext(ctx).Model(&models.Recommendation{}).Where("user_id = ?", userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, persistErr(err)
	}

	var recs []models.Recommendation
	if err := base.Order("run_id DESC, rank ASC").Scopes(pagination.Paginate(page)).Find(&recs).Error; err != nil {
		return nil, persistErr(err)
	}

	result := pagination.NewPageResponse(recs, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetLatest returns the most recent recommendation for one instrument, active or not.
func (s *recommendationService) GetLatest(ctx context.Context, userID, code string) (*models.Recommendation, error) {
	var rec models.Recommendation
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND instrument_code = ?", userID, normalizeCode(code)).
		Order("run_id DESC").
		First(&rec).Error
	if err != nil {
		return nil, notFoundOr(err, apperrors.ErrRecommendationMissing)
	}
	return &rec, nil
}

type featureSnapshot struct {
	Composite         float64            `json:"composite"`
	Components        scoring.Components `json:"components"`
	Technical         signals.Technical  `json:"technical"`
	Sentiment         signals.Sentiment  `json:"sentiment"`
	RiskCompatibility float64            `json:"risk_compatibility"`
	HeldQuantity      int64              `json:"held_quantity"`
	LotSize           int64              `json:"lot_size"`
	Sector            string             `json:"sector"`
}

func toRecommendation(userID, runID string, d scoring.Draft) (models.Recommendation, error) {
	features, err := json.Marshal(featureSnapshot{
		Composite:         d.Composite,
		Components:        d.Components,
		Technical:         d.Candidate.Technical,
		Sentiment:         d.Candidate.Sentiment,
		RiskCompatibility: d.Candidate.RiskCompatibility,
		HeldQuantity:      d.Candidate.HeldQuantity,
		LotSize:           d.Candidate.LotSize,
		Sector:            d.Candidate.Sector,
	})
	if err != nil {
		return models.Recommendation{}, err
	}
	return models.Recommendation{
		UserID:            userID,
		InstrumentCode:    d.Code,
		RunID:             runID,
		Rank:              d.Rank,
		Type:              d.Type,
		ConfidenceScore:   d.Confidence,
		ExpectedReturn:    d.ExpectedReturn,
		RiskLevel:         d.RiskLevel,
		AllocationPercent: d.AllocationPercent,
		SuggestedQuantity: d.SuggestedQuantity,
		ReferencePrice:    d.Price,
		Reasoning:         d.Reasoning,
		KeyFactors:        datatypes.JSONSlice[string](d.KeyFactors),
		Features:          datatypes.JSON(features),
		IsActive:          true,
	}, nil
}
