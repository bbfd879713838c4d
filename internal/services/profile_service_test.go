package services

import (
	"context"
	"testing"

	"bullbear/internal/models"
	"bullbear/internal/testutil"
)

func TestProfileService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewProfileService(db)
	ctx := context.Background()
	userID := testutil.NewUserID()

	t.Run("not_found", func(t *testing.T) {
		_, err := svc.GetProfile(ctx, userID)
		testutil.AssertAppError(t, err, "PROFILE_NOT_FOUND")
	})

	t.Run("defaults", func(t *testing.T) {
		p, err := svc.UpsertProfile(ctx, userID, ProfileInput{
			Blacklist:        []string{"acme", " ACME", ""},
			PreferredSectors: []string{" Finance ", "Finance"},
		})
		testutil.AssertNoError(t, err)

		if p.RiskTolerance != models.RiskToleranceModerate || p.TimeHorizon != models.TimeHorizonMedium {
			t.Errorf("expected moderate/medium defaults, got %s/%s", p.RiskTolerance, p.TimeHorizon)
		}
		if len(p.Blacklist) != 1 || p.Blacklist[0] != "ACME" {
			t.Errorf("expected blacklist [ACME], got %v", p.Blacklist)
		}
		if len(p.PreferredSectors) != 1 || p.PreferredSectors[0] != "Finance" {
			t.Errorf("expected sectors [Finance], got %v", p.PreferredSectors)
		}
	})

	t.Run("replace", func(t *testing.T) {
		_, err := svc.UpsertProfile(ctx, userID, ProfileInput{RiskTolerance: models.RiskToleranceHigh, TimeHorizon: models.TimeHorizonLong})
		testutil.AssertNoError(t, err)

		p, err := svc.GetProfile(ctx, userID)
		testutil.AssertNoError(t, err)
		if p.RiskTolerance != models.RiskToleranceHigh || p.TimeHorizon != models.TimeHorizonLong {
			t.Errorf("expected high/long, got %s/%s", p.RiskTolerance, p.TimeHorizon)
		}
		if len(p.Blacklist) != 0 {
			t.Errorf("expected blacklist cleared, got %v", p.Blacklist)
		}
		if n := countRows(t, db, &models.UserProfile{}, "user_id = ?", userID); n != 1 {
			t.Errorf("expected one profile row, got %d", n)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := svc.UpsertProfile(ctx, userID, ProfileInput{RiskTolerance: "reckless"})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")

		_, err = svc.UpsertProfile(ctx, userID, ProfileInput{TimeHorizon: "forever"})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})
}
