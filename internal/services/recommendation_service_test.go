package services

import (
	"context"
	"testing"
	"time"

	"bullbear/internal/config"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
	"bullbear/internal/testutil"

	"gorm.io/gorm"
)

func seedUniverse(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := time.Now().UTC()
	testutil.CreateTestInstrument(t, db, "ACME", "Technology")
	testutil.CreateTestInstrument(t, db, "BANK", "Finance")
	testutil.CreateTestInstrument(t, db, "NODATA", "Energy")
	testutil.CreateTestPrice(t, db, "ACME", "100", now)
	testutil.CreateTestPrice(t, db, "BANK", "50", now)
	testutil.CreateTestAnalysis(t, db, "ACME", testutil.BullishTechnical(), testutil.BullishSentiment())
	testutil.CreateTestAnalysis(t, db, "BANK", testutil.BullishTechnical(), testutil.BullishSentiment())
}

func newRecommendationTestService(db *gorm.DB) RecommendationServicer {
	return NewRecommendationService(db, NewMarketService(db), NewProfileService(db), config.DefaultTunables())
}

func TestGenerate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	seedUniverse(t, db)
	svc := newRecommendationTestService(db)
	ctx := context.Background()
	userID := testutil.NewUserID()

	first, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("10000")})
	testutil.AssertNoError(t, err)

	t.Run("first_run", func(t *testing.T) {
		if len(first.Recommendations) != 2 {
			t.Fatalf("expected 2 recommendations, got %d", len(first.Recommendations))
		}
		if len(first.Dropped) != 1 || first.Dropped[0].Code != "NODATA" {
			t.Errorf("expected NODATA dropped, got %+v", first.Dropped)
		}
		if len(first.Diff.New) != 2 || len(first.Diff.Removed) != 0 {
			t.Errorf("expected everything new on the first run, got %+v", first.Diff)
		}
		if first.RiskProfile.Tolerance != models.RiskToleranceModerate {
			t.Errorf("expected moderate default, got %s", first.RiskProfile.Tolerance)
		}
		for i, rec := range first.Recommendations {
			if rec.Rank != i+1 || rec.RunID != first.RunID || !rec.IsActive {
				t.Errorf("unexpected recommendation %d: %+v", i, rec)
			}
		}
	})

	second, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("10000")})
	testutil.AssertNoError(t, err)

	t.Run("rerun_is_unchanged", func(t *testing.T) {
		if len(second.Diff.Unchanged) != 2 || len(second.Diff.New) != 0 || len(second.Diff.Changed) != 0 {
			t.Errorf("expected 2 unchanged, got %+v", second.Diff)
		}
		if n := countRows(t, db, &models.Recommendation{}, "user_id = ? AND is_active = ?", userID, true); n != 2 {
			t.Errorf("expected exactly one active set of 2, got %d", n)
		}
		if n := countRows(t, db, &models.Recommendation{}, "run_id = ? AND is_active = ? AND deactivated_at IS NOT NULL", first.RunID, false); n != 2 {
			t.Errorf("expected the first run deactivated, got %d", n)
		}
	})

	t.Run("excluded_is_removed", func(t *testing.T) {
		third, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("10000"), Exclude: []string{"bank"}})
		testutil.AssertNoError(t, err)
		if len(third.Diff.Removed) != 1 || third.Diff.Removed[0].Code != "BANK" {
			t.Errorf("expected BANK removed, got %+v", third.Diff.Removed)
		}

		active, err := svc.GetActive(ctx, userID)
		testutil.AssertNoError(t, err)
		if len(active) != 1 || active[0].InstrumentCode != "ACME" {
			t.Errorf("expected only ACME active, got %+v", active)
		}
	})

	t.Run("history", func(t *testing.T) {
		res, err := svc.GetHistory(ctx, userID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if res.TotalItems != 5 {
			t.Fatalf("expected 5 recommendations in history, got %d", res.TotalItems)
		}
		if res.Data[0].RunID == first.RunID {
			t.Error("expected newest run first")
		}
		last := res.Data[len(res.Data)-1]
		if last.RunID != first.RunID {
			t.Errorf("expected first run last, got %s", last.RunID)
		}
	})

	t.Run("latest", func(t *testing.T) {
		rec, err := svc.GetLatest(ctx, userID, "bank")
		testutil.AssertNoError(t, err)
		if rec.RunID != second.RunID || rec.IsActive {
			t.Errorf("expected BANK from the second run, inactive; got run %s active=%v", rec.RunID, rec.IsActive)
		}

		_, err = svc.GetLatest(ctx, userID, "NODATA")
		testutil.AssertAppError(t, err, "RECOMMENDATION_NOT_FOUND")
	})
}

func TestGenerate_Profile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	seedUniverse(t, db)
	svc := newRecommendationTestService(db)
	ctx := context.Background()
	userID := testutil.NewUserID()

	profile := testutil.CreateTestProfile(t, db, userID, models.RiskToleranceHigh)
	db.Model(profile).UpdateColumn("blacklist", `["ACME"]`)

	res, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("10000")})
	testutil.AssertNoError(t, err)

	if res.RiskProfile.Tolerance != models.RiskToleranceHigh {
		t.Errorf("expected tolerance from profile, got %s", res.RiskProfile.Tolerance)
	}
	for _, rec := range res.Recommendations {
		if rec.InstrumentCode == "ACME" {
			t.Error("blacklisted instrument was recommended")
		}
	}

	override, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("10000"), RiskTolerance: models.RiskToleranceLow})
	testutil.AssertNoError(t, err)
	if override.RiskProfile.Tolerance != models.RiskToleranceLow {
		t.Errorf("expected request tolerance to win, got %s", override.RiskProfile.Tolerance)
	}
}

func TestGenerate_Errors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newRecommendationTestService(db)
	ctx := context.Background()
	userID := testutil.NewUserID()

	t.Run("budget", func(t *testing.T) {
		_, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("0")})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("target", func(t *testing.T) {
		_, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("10"), TargetProfit: -1})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("tolerance", func(t *testing.T) {
		_, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("10"), RiskTolerance: "yolo"})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})

	t.Run("no_candidates", func(t *testing.T) {
		testutil.CreateTestInstrument(t, db, "NODATA", "Energy")
		_, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("10")})
		testutil.AssertAppError(t, err, "INSUFFICIENT_DATA")
	})

	t.Run("nothing_affordable_keeps_prior_set", func(t *testing.T) {
		testutil.CreateTestInstrument(t, db, "ACME", "Technology")
		testutil.CreateTestPrice(t, db, "ACME", "100", time.Now().UTC())
		testutil.CreateTestAnalysis(t, db, "ACME", testutil.BullishTechnical(), testutil.BullishSentiment())

		_, err := svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("1000")})
		testutil.AssertNoError(t, err)

		_, err = svc.Generate(ctx, GenerateRequest{UserID: userID, Budget: dec("5")})
		testutil.AssertAppError(t, err, "INSUFFICIENT_DATA")

		active, err := svc.GetActive(ctx, userID)
		testutil.AssertNoError(t, err)
		if len(active) != 1 {
			t.Errorf("expected prior set to stay active, got %d", len(active))
		}
	})
}
