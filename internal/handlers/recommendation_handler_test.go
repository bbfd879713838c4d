package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/models"
	"bullbear/internal/pagination"
	"bullbear/internal/services"
)

func setupRecommendationRouter(handler *RecommendationHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/recommendations", handler.Generate)
	auth.GET("/recommendations", handler.GetActive)
	auth.GET("/recommendations/history", handler.GetHistory)
	auth.GET("/recommendations/:code", handler.GetLatest)
	return r
}

func TestRecommendationHandler_Generate(t *testing.T) {
	t.Run("returns 200 with the run", func(t *testing.T) {
		var got services.GenerateRequest
		svc := &mockRecommendationService{
			generateFn: func(_ context.Context, req services.GenerateRequest) (*services.GenerateResult, error) {
				got = req
				return &services.GenerateResult{
					RunID: "run-1",
					Recommendations: []models.Recommendation{
						{InstrumentCode: "ACME", Rank: 1, Type: models.RecommendationBuy, IsActive: true},
					},
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupRecommendationRouter(NewRecommendationHandler(svc, audit))

		rec := doRequest(r, "POST", "/recommendations",
			`{"budget":"1000000","risk_tolerance":"high","target_profit":15,"exclude":["BANK"]}`)

		assertStatus(t, rec, http.StatusOK)
		if got.UserID != testUserID {
			t.Errorf("expected user %q, got %q", testUserID, got.UserID)
		}
		if got.Budget.String() != "1000000" {
			t.Errorf("expected budget 1000000, got %s", got.Budget)
		}
		if got.RiskTolerance != models.RiskToleranceHigh {
			t.Errorf("expected high, got %q", got.RiskTolerance)
		}
		if len(got.Exclude) != 1 || got.Exclude[0] != "BANK" {
			t.Errorf("unexpected exclude %v", got.Exclude)
		}
		result := parseJSON(t, rec)
		if result["run_id"] != "run-1" {
			t.Errorf("expected run_id run-1, got %v", result["run_id"])
		}
		if len(audit.actions) != 1 || audit.actions[0] != "GENERATE_RECOMMENDATIONS" {
			t.Errorf("expected audit entry, got %v", audit.actions)
		}
	})

	t.Run("returns 400 on unknown tolerance", func(t *testing.T) {
		r := setupRecommendationRouter(NewRecommendationHandler(&mockRecommendationService{}, &mockAuditService{}))
		rec := doRequest(r, "POST", "/recommendations", `{"budget":"100","risk_tolerance":"reckless"}`)
		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on malformed exclude code", func(t *testing.T) {
		r := setupRecommendationRouter(NewRecommendationHandler(&mockRecommendationService{}, &mockAuditService{}))
		rec := doRequest(r, "POST", "/recommendations", `{"budget":"100","exclude":["no spaces"]}`)
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("returns 422 when no candidates", func(t *testing.T) {
		svc := &mockRecommendationService{
			generateFn: func(context.Context, services.GenerateRequest) (*services.GenerateResult, error) {
				return nil, apperrors.ErrNoCandidates
			},
		}
		audit := &mockAuditService{}
		r := setupRecommendationRouter(NewRecommendationHandler(svc, audit))
		rec := doRequest(r, "POST", "/recommendations", `{"budget":"100"}`)
		assertStatus(t, rec, http.StatusUnprocessableEntity)
		assertErrorCode(t, parseJSON(t, rec), "INSUFFICIENT_DATA")
		if len(audit.actions) != 0 {
			t.Errorf("failed runs must not be audited, got %v", audit.actions)
		}
	})

	t.Run("returns 400 when service rejects the budget", func(t *testing.T) {
		svc := &mockRecommendationService{
			generateFn: func(context.Context, services.GenerateRequest) (*services.GenerateResult, error) {
				return nil, apperrors.WithMessage(apperrors.ErrValidation, "Budget must be positive")
			},
		}
		r := setupRecommendationRouter(NewRecommendationHandler(svc, &mockAuditService{}))
		rec := doRequest(r, "POST", "/recommendations", `{"budget":"0"}`)
		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "VALIDATION_ERROR")
	})
}

func TestRecommendationHandler_Reads(t *testing.T) {
	t.Run("active set", func(t *testing.T) {
		svc := &mockRecommendationService{
			getActiveFn: func(_ context.Context, userID string) ([]models.Recommendation, error) {
				return []models.Recommendation{{UserID: userID, InstrumentCode: "ACME"}, {UserID: userID, InstrumentCode: "BANK"}}, nil
			},
		}
		r := setupRecommendationRouter(NewRecommendationHandler(svc, &mockAuditService{}))
		rec := doRequest(r, "GET", "/recommendations", "")
		assertStatus(t, rec, http.StatusOK)
		recs := parseJSON(t, rec)["recommendations"].([]interface{})
		if len(recs) != 2 {
			t.Errorf("expected 2 recommendations, got %d", len(recs))
		}
	})

	t.Run("history passes paging", func(t *testing.T) {
		var gotPage pagination.PageRequest
		svc := &mockRecommendationService{
			getHistoryFn: func(_ context.Context, _ string, page pagination.PageRequest) (*pagination.PageResponse[models.Recommendation], error) {
				gotPage = page
				resp := pagination.NewPageResponse([]models.Recommendation{}, page.Page, page.PageSize, 0)
				return &resp, nil
			},
		}
		r := setupRecommendationRouter(NewRecommendationHandler(svc, &mockAuditService{}))
		rec := doRequest(r, "GET", "/recommendations/history?page=2&page_size=5", "")
		assertStatus(t, rec, http.StatusOK)
		if gotPage.Page != 2 || gotPage.PageSize != 5 {
			t.Errorf("unexpected page %+v", gotPage)
		}
	})

	t.Run("history rejects oversized page", func(t *testing.T) {
		r := setupRecommendationRouter(NewRecommendationHandler(&mockRecommendationService{}, &mockAuditService{}))
		rec := doRequest(r, "GET", "/recommendations/history?page_size=500", "")
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("latest for instrument", func(t *testing.T) {
		svc := &mockRecommendationService{
			getLatestFn: func(_ context.Context, _, code string) (*models.Recommendation, error) {
				return &models.Recommendation{InstrumentCode: code}, nil
			},
		}
		r := setupRecommendationRouter(NewRecommendationHandler(svc, &mockAuditService{}))
		rec := doRequest(r, "GET", "/recommendations/ACME", "")
		assertStatus(t, rec, http.StatusOK)
		got := parseJSON(t, rec)["recommendation"].(map[string]interface{})
		if got["instrument_code"] != "ACME" {
			t.Errorf("expected ACME, got %v", got["instrument_code"])
		}
	})

	t.Run("latest not found", func(t *testing.T) {
		svc := &mockRecommendationService{
			getLatestFn: func(context.Context, string, string) (*models.Recommendation, error) {
				return nil, apperrors.ErrRecommendationMissing
			},
		}
		r := setupRecommendationRouter(NewRecommendationHandler(svc, &mockAuditService{}))
		rec := doRequest(r, "GET", "/recommendations/NOPE", "")
		assertStatus(t, rec, http.StatusNotFound)
		assertErrorCode(t, parseJSON(t, rec), "RECOMMENDATION_NOT_FOUND")
	})
}
