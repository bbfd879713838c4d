package testutil

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"bullbear/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewUserID returns a unique user id. Users live in the identity provider, so
// there is no users table to insert into.
func NewUserID() string {
	return fmt.Sprintf("user-%d", nextID())
}

// CreateTestInstrument creates an active instrument with lot size 1.
func CreateTestInstrument(t *testing.T, db *gorm.DB, code, sector string) *models.Instrument {
	t.Helper()

	inst := &models.Instrument{
		Code:     code,
		Name:     code + " Ltd",
		Sector:   sector,
		LotSize:  1,
		IsActive: true,
	}
	if err := db.Create(inst).Error; err != nil {
		t.Fatalf("failed to create test instrument: %v", err)
	}
	return inst
}

// CreateTestPrice records a quote for code at the given time.
func CreateTestPrice(t *testing.T, db *gorm.DB, code, price string, at time.Time) *models.InstrumentPrice {
	t.Helper()

	p := &models.InstrumentPrice{
		InstrumentCode: code,
		Price:          decimal.RequireFromString(price),
		Volume:         1000,
		RecordedAt:     at,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test price: %v", err)
	}
	return p
}

// CreateTestAnalysis stores analyzer output for code. Each map is encoded as
// the technical or sentiment payload; a nil map stores no payload.
func CreateTestAnalysis(t *testing.T, db *gorm.DB, code string, technical, sentiment map[string]any) *models.InstrumentAnalysis {
	t.Helper()

	a := &models.InstrumentAnalysis{
		InstrumentCode: code,
		Technical:      mustJSON(t, technical),
		Sentiment:      mustJSON(t, sentiment),
		AnalyzedAt:     time.Now().UTC(),
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("failed to create test analysis: %v", err)
	}
	return a
}

// BullishTechnical is a technical payload that scores as a buy.
func BullishTechnical() map[string]any {
	return map[string]any{
		"trend_score":         0.8,
		"momentum":            0.06,
		"volatility":          0.1,
		"support_distance":    0.02,
		"resistance_distance": 0.1,
	}
}

// BullishSentiment is a sentiment payload that scores as a buy.
func BullishSentiment() map[string]any {
	return map[string]any{"score": 0.8, "confidence": 0.9, "news_count": 5}
}

// CreateTestPortfolio creates a portfolio holding only cash.
func CreateTestPortfolio(t *testing.T, db *gorm.DB, userID, cash string) *models.Portfolio {
	t.Helper()

	c := decimal.RequireFromString(cash)
	p := &models.Portfolio{
		UserID:        userID,
		CashBalance:   c,
		AvailableCash: c,
		TotalValue:    c,
		Version:       1,
		SnapshotAt:    time.Now().UTC(),
	}
	p.SectorAllocation = datatypes.NewJSONType(map[string]float64{})
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test portfolio: %v", err)
	}
	return p
}

// CreateTestLot creates an active lot. It does not touch the portfolio.
func CreateTestLot(t *testing.T, db *gorm.DB, userID, code string, qty int64, price string, boughtAt time.Time) *models.Investment {
	t.Helper()

	p := decimal.RequireFromString(price)
	lot := &models.Investment{
		UserID:           userID,
		InstrumentCode:   code,
		TransactionType:  models.TransactionBuy,
		OriginalQuantity: qty,
		CurrentQuantity:  qty,
		BuyPrice:         p,
		CurrentPrice:     p,
		Status:           models.StatusActive,
		BuyDate:          boughtAt,
	}
	if err := db.Create(lot).Error; err != nil {
		t.Fatalf("failed to create test lot: %v", err)
	}
	return lot
}

// CreateTestProfile creates a profile with the given tolerance and a medium horizon.
func CreateTestProfile(t *testing.T, db *gorm.DB, userID string, tolerance models.RiskTolerance) *models.UserProfile {
	t.Helper()

	p := &models.UserProfile{
		UserID:           userID,
		RiskTolerance:    tolerance,
		InvestmentGoal:   "growth",
		TimeHorizon:      models.TimeHorizonMedium,
		PreferredSectors: datatypes.JSONSlice[string]{},
		Blacklist:        datatypes.JSONSlice[string]{},
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}
	return p
}

// CreateTestRecommendation creates an active recommendation.
func CreateTestRecommendation(t *testing.T, db *gorm.DB, userID, code string, typ models.RecommendationType, confidence float64) *models.Recommendation {
	t.Helper()

	r := &models.Recommendation{
		UserID:            userID,
		InstrumentCode:    code,
		RunID:             fmt.Sprintf("00000000-0000-7000-8000-%012d", nextID()),
		Rank:              1,
		Type:              typ,
		ConfidenceScore:   confidence,
		RiskLevel:         models.RiskLevelLow,
		AllocationPercent: decimal.Zero,
		ReferencePrice:    decimal.NewFromInt(100),
		KeyFactors:        datatypes.JSONSlice[string]{},
		IsActive:          true,
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("failed to create test recommendation: %v", err)
	}
	return r
}

func mustJSON(t *testing.T, v map[string]any) datatypes.JSON {
	t.Helper()
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode fixture payload: %v", err)
	}
	return datatypes.JSON(b)
}
