package testutil_test

import (
	"testing"
	"time"

	"bullbear/internal/errors"
	"bullbear/internal/models"
	"bullbear/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{
		"instruments", "instrument_prices", "instrument_analyses", "user_profiles", "recommendations",
		"investments", "portfolios", "portfolio_snapshots", "decision_records", "audit_logs",
	} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_Isolated(t *testing.T) {
	a := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, a)
	b := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, b)

	testutil.CreateTestInstrument(t, a, "ACME", "Technology")

	var count int64
	b.Model(&models.Instrument{}).Count(&count)
	if count != 0 {
		t.Errorf("expected an empty second database, found %d instruments", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	userID := testutil.NewUserID()

	inst := testutil.CreateTestInstrument(t, db, "ACME", "Technology")
	if inst.ID == "" || inst.LotSize != 1 {
		t.Errorf("unexpected instrument %+v", inst)
	}

	p := testutil.CreateTestPortfolio(t, db, userID, "5000")
	testutil.AssertDecimal(t, "available", p.AvailableCash, "5000")

	lot := testutil.CreateTestLot(t, db, userID, "ACME", 10, "100", time.Now())
	if lot.Status != models.StatusActive || lot.CurrentQuantity != 10 {
		t.Errorf("unexpected lot %+v", lot)
	}

	prof := testutil.CreateTestProfile(t, db, userID, models.RiskToleranceHigh)
	if prof.RiskTolerance != models.RiskToleranceHigh {
		t.Errorf("expected high tolerance, got %s", prof.RiskTolerance)
	}

	a := testutil.CreateTestAnalysis(t, db, "ACME", testutil.BullishTechnical(), nil)
	if len(a.Technical) == 0 || a.Sentiment != nil {
		t.Errorf("unexpected analysis payloads %s / %s", a.Technical, a.Sentiment)
	}

	rec := testutil.CreateTestRecommendation(t, db, userID, "ACME", models.RecommendationBuy, 0.7)
	if !rec.IsActive {
		t.Error("recommendation fixture should be active")
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrPortfolioNotFound, "custom message")
	testutil.AssertAppError(t, err, "PORTFOLIO_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
