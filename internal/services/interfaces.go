package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bullbear/internal/differ"
	"bullbear/internal/ledger"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
	"bullbear/internal/signals"
)

// InstrumentInput is one instrument pushed by the data pipeline.
type InstrumentInput struct {
	Code    string
	Name    string
	Sector  string
	LotSize int64
}

// PriceInput is one market quote pushed by the data pipeline or the oracle.
type PriceInput struct {
	Code       string
	Price      decimal.Decimal
	Volume     int64
	RecordedAt time.Time
}

// AnalysisInput is one analyzer result. Either payload may be empty.
type AnalysisInput struct {
	Code       string
	Technical  []byte
	Sentiment  []byte
	AnalyzedAt time.Time
}

// MarketServicer defines the contract for instrument reference and market data.
type MarketServicer interface {
	UpsertInstruments(ctx context.Context, items []InstrumentInput) (int, error)
	ListInstruments(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error)
	GetInstrument(ctx context.Context, code string) (*models.Instrument, error)
	RecordPrices(ctx context.Context, prices []PriceInput) (int, error)
	RecordAnalyses(ctx context.Context, analyses []AnalysisInput) (int, error)
	LatestPrices(ctx context.Context, codes []string) (map[string]decimal.Decimal, error)
	Universe(ctx context.Context) ([]signals.Input, error)
	HeldInstrumentCodes(ctx context.Context) ([]string, error)
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	RiskTolerance    models.RiskTolerance
	InvestmentGoal   string
	TimeHorizon      models.TimeHorizon
	PreferredSectors []string
	Blacklist        []string
}

// ProfileServicer defines the contract for user investment profiles.
type ProfileServicer interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpsertProfile(ctx context.Context, userID string, in ProfileInput) (*models.UserProfile, error)
}

// GenerateRequest is one recommendation run. Empty tolerance and horizon fall
// back to the user's profile.
type GenerateRequest struct {
	UserID           string
	Budget           decimal.Decimal
	RiskTolerance    models.RiskTolerance
	TimeHorizon      models.TimeHorizon
	TargetProfit     float64
	SectorPreference string
	Exclude          []string
}

// GenerateResult is the outcome of a recommendation run.
type GenerateResult struct {
	RunID           string                  `json:"run_id"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Diff            differ.Result           `json:"diff"`
	Dropped         []signals.Drop          `json:"dropped"`
	RiskProfile     RiskProfile             `json:"risk_profile"`
}

// RiskProfile summarizes the user context the run was scored against.
type RiskProfile struct {
	Tolerance models.RiskTolerance    `json:"risk_tolerance"`
	RiskScore float64                 `json:"risk_score"`
	Appetite  float64                 `json:"risk_appetite"`
	Behavior  signals.BehaviorProfile `json:"behavior"`
	Portfolio signals.PortfolioRisk   `json:"portfolio_risk"`
}

// RecommendationServicer defines the contract for recommendation runs and reads.
type RecommendationServicer interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	GetActive(ctx context.Context, userID string) ([]models.Recommendation, error)
	GetHistory(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Recommendation], error)
	GetLatest(ctx context.Context, userID, code string) (*models.Recommendation, error)
}

// PortfolioSummary is the read model of a user's portfolio.
type PortfolioSummary struct {
	UserID           string             `json:"user_id"`
	CashBalance      decimal.Decimal    `json:"cash_balance"`
	ReservedCash     decimal.Decimal    `json:"reserved_cash"`
	AvailableCash    decimal.Decimal    `json:"available_cash"`
	TotalInvested    decimal.Decimal    `json:"total_invested"`
	HoldingsValue    decimal.Decimal    `json:"holdings_value"`
	TotalValue       decimal.Decimal    `json:"total_value"`
	RealizedPnL      decimal.Decimal    `json:"realized_pnl"`
	UnrealizedPnL    decimal.Decimal    `json:"unrealized_pnl"`
	ReturnPct        float64            `json:"return_pct"`
	SectorAllocation map[string]float64 `json:"sector_allocation"`
	OpenPositions    int                `json:"open_positions"`
	PendingOrders    int                `json:"pending_orders"`
	Version          int64              `json:"version"`
	SnapshotAt       time.Time          `json:"snapshot_at"`
}

// PortfolioServicer defines the contract for portfolio reads and revaluation.
type PortfolioServicer interface {
	CreatePortfolio(ctx context.Context, userID string, initialCash decimal.Decimal) (*PortfolioSummary, error)
	GetPortfolio(ctx context.Context, userID string) (*PortfolioSummary, error)
	GetHoldings(ctx context.Context, userID string, includeClosed bool, page pagination.PageRequest) (*pagination.PageResponse[models.Investment], error)
	GetSnapshots(ctx context.Context, userID string, window pagination.Window, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioSnapshot], error)
	RevalueAll(ctx context.Context, at time.Time) (int, error)
	Invalidate(ctx context.Context, userID string)
}

// DecisionResult is the outcome of one accepted decision.
type DecisionResult struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message"`
	Portfolio   *PortfolioSummary      `json:"portfolio"`
	Investment  *models.Investment     `json:"investment,omitempty"`
	Fills       []ledger.Fill          `json:"fills,omitempty"`
	RealizedPnL decimal.Decimal        `json:"realized_pnl"`
	Record      *models.DecisionRecord `json:"decision"`
}

// DecisionItem is one entry of a batch.
type DecisionItem struct {
	InstrumentCode string
	Decision       ledger.Decision
}

// BatchItemResult reports one batch entry.
type BatchItemResult struct {
	Index          int             `json:"index"`
	InstrumentCode string          `json:"instrument_code"`
	Result         *DecisionResult `json:"result,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// BatchResult reports a batch applied in order.
type BatchResult struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}

// DecisionServicer defines the contract for the portfolio ledger.
type DecisionServicer interface {
	ApplyDecision(ctx context.Context, userID, code string, d ledger.Decision) (*DecisionResult, error)
	ApplyBatch(ctx context.Context, userID string, items []DecisionItem) (*BatchResult, error)
	CancelPending(ctx context.Context, userID, investmentID string) (*DecisionResult, error)
	ListDecisions(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.DecisionRecord], error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
