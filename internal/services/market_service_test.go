package services

import (
	"context"
	"testing"
	"time"

	"bullbear/internal/ledger"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
	"bullbear/internal/testutil"
)

func TestUpsertInstruments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewMarketService(db)
	ctx := context.Background()

	t.Run("create_then_update", func(t *testing.T) {
		n, err := svc.UpsertInstruments(ctx, []InstrumentInput{
			{Code: " acme ", Name: "Acme Corp", Sector: "Technology", LotSize: 100},
			{Code: "BANK", Name: "Bank", Sector: "Finance"},
		})
		testutil.AssertNoError(t, err)
		if n != 2 {
			t.Errorf("expected 2 upserted, got %d", n)
		}

		_, err = svc.UpsertInstruments(ctx, []InstrumentInput{{Code: "ACME", Name: "Acme Holdings", Sector: "Technology", LotSize: 100}})
		testutil.AssertNoError(t, err)

		inst, err := svc.GetInstrument(ctx, "acme")
		testutil.AssertNoError(t, err)
		if inst.Name != "Acme Holdings" || inst.LotSize != 100 {
			t.Errorf("unexpected instrument %+v", inst)
		}
		if n := countRows(t, db, &models.Instrument{}, "code = ?", "ACME"); n != 1 {
			t.Errorf("expected one ACME row, got %d", n)
		}

		bank, err := svc.GetInstrument(ctx, "BANK")
		testutil.AssertNoError(t, err)
		if bank.LotSize != 1 {
			t.Errorf("expected default lot size 1, got %d", bank.LotSize)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := svc.UpsertInstruments(ctx, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		_, err = svc.UpsertInstruments(ctx, []InstrumentInput{{Code: "X"}})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("list", func(t *testing.T) {
		res, err := svc.ListInstruments(ctx, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if res.TotalItems != 2 || res.Data[0].Code != "ACME" {
			t.Errorf("expected ACME first of 2, got %+v", res)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := svc.GetInstrument(ctx, "NOPE")
		testutil.AssertAppError(t, err, "INSTRUMENT_NOT_FOUND")
	})
}

func TestRecordPrices(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewMarketService(db)
	ctx := context.Background()
	testutil.CreateTestInstrument(t, db, "ACME", "Technology")

	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	n, err := svc.RecordPrices(ctx, []PriceInput{
		{Code: "ACME", Price: dec("10"), Volume: 100, RecordedAt: t0},
		{Code: "acme", Price: dec("11"), Volume: 100, RecordedAt: t1},
	})
	testutil.AssertNoError(t, err)
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}

	t.Run("duplicates_skipped", func(t *testing.T) {
		n, err := svc.RecordPrices(ctx, []PriceInput{{Code: "ACME", Price: dec("99"), RecordedAt: t0}})
		testutil.AssertNoError(t, err)
		if n != 0 {
			t.Errorf("expected duplicate to be skipped, got %d", n)
		}
	})

	t.Run("latest", func(t *testing.T) {
		prices, err := svc.LatestPrices(ctx, []string{"ACME", "MISSING"})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "ACME", prices["ACME"], "11")
		if _, ok := prices["MISSING"]; ok {
			t.Error("codes without quotes should be absent")
		}
	})

	t.Run("invalid_price", func(t *testing.T) {
		_, err := svc.RecordPrices(ctx, []PriceInput{{Code: "ACME", Price: dec("0"), RecordedAt: t1}})
		testutil.AssertAppError(t, err, "VALIDATION_ERROR")
	})
}

func TestRecordAnalyses(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewMarketService(db)
	ctx := context.Background()
	testutil.CreateTestInstrument(t, db, "ACME", "Technology")

	_, err := svc.RecordAnalyses(ctx, []AnalysisInput{{Code: "ACME", Technical: []byte(`{"trend_score": 0.2}`)}})
	testutil.AssertNoError(t, err)
	_, err = svc.RecordAnalyses(ctx, []AnalysisInput{{Code: "ACME", Technical: []byte(`{"trend_score": 0.9}`)}})
	testutil.AssertNoError(t, err)

	var rows []models.InstrumentAnalysis
	db.Where("instrument_code = ?", "ACME").Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("expected one analysis row, got %d", len(rows))
	}
	if string(rows[0].Technical) != `{"trend_score": 0.9}` {
		t.Errorf("expected latest payload, got %s", rows[0].Technical)
	}

	_, err = svc.RecordAnalyses(ctx, []AnalysisInput{{Code: "ACME", Technical: []byte(`{not json`)}})
	testutil.AssertAppError(t, err, "INVALID_INPUT")
}

func TestUniverse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewMarketService(db)
	ctx := context.Background()

	testutil.CreateTestInstrument(t, db, "ACME", "Technology")
	testutil.CreateTestInstrument(t, db, "BARE", "Energy")
	testutil.CreateTestPrice(t, db, "ACME", "50", time.Now().UTC())
	testutil.CreateTestAnalysis(t, db, "ACME", testutil.BullishTechnical(), testutil.BullishSentiment())

	universe, err := svc.Universe(ctx)
	testutil.AssertNoError(t, err)
	if len(universe) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(universe))
	}

	acme, bare := universe[0], universe[1]
	testutil.AssertDecimal(t, "ACME price", acme.Price, "50")
	if acme.Technical == nil || acme.Sentiment == nil {
		t.Error("expected ACME features to be decoded")
	}
	if !bare.Price.IsZero() || bare.Technical != nil || bare.Sentiment != nil {
		t.Errorf("expected BARE to carry no data, got %+v", bare)
	}
}

func TestHeldInstrumentCodes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	market := NewMarketService(db)
	decisions, _ := newLedgerServices(db)
	ctx := context.Background()

	for _, code := range []string{"ACME", "BANK", "GONE"} {
		testutil.CreateTestInstrument(t, db, code, "")
	}
	a, b := testutil.NewUserID(), testutil.NewUserID()
	testutil.CreateTestPortfolio(t, db, a, "1000")
	testutil.CreateTestPortfolio(t, db, b, "1000")

	apply := func(user, code string, d ledger.Decision) {
		t.Helper()
		if _, err := decisions.ApplyDecision(ctx, user, code, d); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	apply(a, "ACME", ledger.BuyDecision{Quantity: 1, Price: dec("10")})
	apply(b, "ACME", ledger.BuyDecision{Quantity: 1, Price: dec("10")})
	apply(b, "BANK", ledger.BuyDecision{Quantity: 1, Price: dec("10")})
	apply(a, "GONE", ledger.BuyDecision{Quantity: 1, Price: dec("10")})
	apply(a, "GONE", ledger.SellDecision{Quantity: 1, Price: dec("10")})

	codes, err := market.HeldInstrumentCodes(ctx)
	testutil.AssertNoError(t, err)
	if len(codes) != 2 || codes[0] != "ACME" || codes[1] != "BANK" {
		t.Errorf("expected [ACME BANK], got %v", codes)
	}
}
