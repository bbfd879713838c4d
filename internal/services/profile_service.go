package services

import (
	"context"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/models"
)

// profileService handles user investment profiles.
type profileService struct {
	db *gorm.DB
}

// NewProfileService creates a new ProfileServicer.
func NewProfileService(db *gorm.DB) ProfileServicer {
	return &profileService{db: db}
}

// GetProfile returns the user's profile.
func (s *profileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFoundOr(err, apperrors.ErrProfileNotFound)
	}
	return &p, nil
}

// UpsertProfile creates or replaces the user's profile.
func (s *profileService) UpsertProfile(ctx context.Context, userID string, in ProfileInput) (*models.UserProfile, error) {
	if in.RiskTolerance == "" {
		in.RiskTolerance = models.RiskToleranceModerate
	}
	if in.TimeHorizon == "" {
		in.TimeHorizon = models.TimeHorizonMedium
	}
	if !in.RiskTolerance.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Unknown risk tolerance")
	}
	if !in.TimeHorizon.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Unknown time horizon")
	}

	p := models.UserProfile{
		UserID:           userID,
		RiskTolerance:    in.RiskTolerance,
		InvestmentGoal:   strings.TrimSpace(in.InvestmentGoal),
		TimeHorizon:      in.TimeHorizon,
		PreferredSectors: dedupe(in.PreferredSectors, strings.TrimSpace),
		Blacklist:        dedupe(in.Blacklist, normalizeCode),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"risk_tolerance", "investment_goal", "time_horizon", "preferred_sectors", "blacklist", "updated_at",
		}),
	}).Create(&p).Error
	if err != nil {
		return nil, persistErr(err)
	}
	return s.GetProfile(ctx, userID)
}

func dedupe(values []string, norm func(string) string) datatypes.JSONSlice[string] {
	out := datatypes.JSONSlice[string]{}
	seen := map[string]bool{}
	for _, v := range values {
		v = norm(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
