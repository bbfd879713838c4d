package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/ledger"
	"bullbear/internal/models"
	"bullbear/internal/services"
)

func setupDecisionRouter(handler *DecisionHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/decisions", handler.ApplyDecision)
	auth.POST("/decisions/batch", handler.ApplyBatch)
	auth.DELETE("/decisions/pending/:id", handler.CancelPending)
	auth.GET("/decisions", handler.ListDecisions)
	return r
}

func TestDecisionRequest_ToDecision(t *testing.T) {
	ref := "0192f7a0-0000-7000-8000-0000000000aa"
	tests := []struct {
		name string
		req  DecisionRequest
		want models.DecisionType
	}{
		{"buy", DecisionRequest{Type: "buy", Quantity: 10, Price: decimal.NewFromInt(5), PendingID: &ref}, models.DecisionBuy},
		{"sell", DecisionRequest{Type: "sell", Quantity: 10, Price: decimal.NewFromInt(5)}, models.DecisionSell},
		{"hold", DecisionRequest{Type: "hold", Quantity: 99, Note: "wait"}, models.DecisionHold},
		{"pending", DecisionRequest{Type: "pending", Quantity: 1, Price: decimal.NewFromInt(5)}, models.DecisionPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.req.toDecision()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Type() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, d.Type())
			}
		})
	}

	t.Run("hold ignores quantity", func(t *testing.T) {
		d, _ := DecisionRequest{Type: "hold", Quantity: 99}.toDecision()
		if ledger.Quantity(d) != 0 {
			t.Errorf("expected zero quantity for hold, got %d", ledger.Quantity(d))
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := (DecisionRequest{Type: "short"}).toDecision(); err == nil {
			t.Error("expected error for unknown type")
		}
	})
}

func TestDecisionHandler_ApplyDecision(t *testing.T) {
	t.Run("returns 200 and audits", func(t *testing.T) {
		var gotCode string
		var gotDecision ledger.Decision
		svc := &mockDecisionService{
			applyDecisionFn: func(_ context.Context, _, code string, d ledger.Decision) (*services.DecisionResult, error) {
				gotCode, gotDecision = code, d
				return &services.DecisionResult{
					Success: true,
					Message: "Bought 50 ACME",
					Record:  &models.DecisionRecord{ID: "rec-1", InstrumentCode: code, Type: d.Type(), Quantity: 50, PortfolioVersion: 2},
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupDecisionRouter(NewDecisionHandler(svc, audit))

		rec := doRequest(r, "POST", "/decisions", `{"instrument_code":"ACME","type":"buy","quantity":50,"price":"100.5"}`)

		assertStatus(t, rec, http.StatusOK)
		if gotCode != "ACME" {
			t.Errorf("expected ACME, got %q", gotCode)
		}
		buy, ok := gotDecision.(ledger.BuyDecision)
		if !ok {
			t.Fatalf("expected BuyDecision, got %T", gotDecision)
		}
		if buy.Quantity != 50 || buy.Price.String() != "100.5" {
			t.Errorf("unexpected buy %+v", buy)
		}
		result := parseJSON(t, rec)
		if result["success"] != true {
			t.Errorf("expected success, got %v", result)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "APPLY_DECISION" {
			t.Errorf("expected audit entry, got %v", audit.actions)
		}
	})

	t.Run("returns 400 on missing instrument", func(t *testing.T) {
		r := setupDecisionRouter(NewDecisionHandler(&mockDecisionService{}, &mockAuditService{}))
		rec := doRequest(r, "POST", "/decisions", `{"type":"buy","quantity":1,"price":"1"}`)
		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 400 on unknown type", func(t *testing.T) {
		r := setupDecisionRouter(NewDecisionHandler(&mockDecisionService{}, &mockAuditService{}))
		rec := doRequest(r, "POST", "/decisions", `{"instrument_code":"ACME","type":"short","quantity":1,"price":"1"}`)
		assertStatus(t, rec, http.StatusBadRequest)
	})

	quantityCases := []struct {
		name string
		body string
	}{
		{"zero buy", `{"instrument_code":"ACME","type":"buy","quantity":0,"price":"1"}`},
		{"negative buy", `{"instrument_code":"ACME","type":"buy","quantity":-5,"price":"1"}`},
		{"negative sell", `{"instrument_code":"ACME","type":"sell","quantity":-1,"price":"1"}`},
		{"negative pending", `{"instrument_code":"ACME","type":"pending","quantity":-5,"price":"1"}`},
	}
	for _, tc := range quantityCases {
		t.Run("rejects "+tc.name+" quantity as validation error", func(t *testing.T) {
			called := false
			svc := &mockDecisionService{
				applyDecisionFn: func(context.Context, string, string, ledger.Decision) (*services.DecisionResult, error) {
					called = true
					return nil, nil
				},
			}
			r := setupDecisionRouter(NewDecisionHandler(svc, &mockAuditService{}))
			rec := doRequest(r, "POST", "/decisions", tc.body)
			assertStatus(t, rec, http.StatusBadRequest)
			result := parseJSON(t, rec)
			assertErrorCode(t, result, "VALIDATION_ERROR")
			if msg := result["error"].(map[string]interface{})["message"]; msg != apperrors.ErrInvalidQuantity.Message {
				t.Errorf("expected %q, got %v", apperrors.ErrInvalidQuantity.Message, msg)
			}
			if called {
				t.Error("service must not be called for an invalid quantity")
			}
		})
	}

	t.Run("rejects non-positive price as validation error", func(t *testing.T) {
		r := setupDecisionRouter(NewDecisionHandler(&mockDecisionService{}, &mockAuditService{}))
		rec := doRequest(r, "POST", "/decisions", `{"instrument_code":"ACME","type":"buy","quantity":1,"price":"-2"}`)
		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "VALIDATION_ERROR")
	})

	t.Run("returns 400 on malformed recommendation id", func(t *testing.T) {
		r := setupDecisionRouter(NewDecisionHandler(&mockDecisionService{}, &mockAuditService{}))
		rec := doRequest(r, "POST", "/decisions", `{"instrument_code":"ACME","type":"buy","quantity":1,"price":"1","recommendation_id":"abc"}`)
		assertStatus(t, rec, http.StatusBadRequest)
	})

	errorCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient funds", apperrors.ErrInsufficientFunds, http.StatusBadRequest, "INSUFFICIENT_FUNDS"},
		{"insufficient holdings", apperrors.ErrInsufficientHoldings, http.StatusBadRequest, "INSUFFICIENT_HOLDINGS"},
		{"stale recommendation", apperrors.ErrStaleRecommendation, http.StatusConflict, "STALE_RECOMMENDATION"},
		{"concurrent modification", apperrors.ErrConcurrentModification, http.StatusConflict, "CONCURRENT_MODIFICATION"},
		{"missing portfolio", apperrors.ErrPortfolioNotFound, http.StatusNotFound, "PORTFOLIO_NOT_FOUND"},
		{"store down", apperrors.ErrPersistence, http.StatusServiceUnavailable, "PERSISTENCE_ERROR"},
	}
	for _, tc := range errorCases {
		t.Run("maps "+tc.name, func(t *testing.T) {
			svc := &mockDecisionService{
				applyDecisionFn: func(context.Context, string, string, ledger.Decision) (*services.DecisionResult, error) {
					return nil, tc.err
				},
			}
			audit := &mockAuditService{}
			r := setupDecisionRouter(NewDecisionHandler(svc, audit))
			rec := doRequest(r, "POST", "/decisions", `{"instrument_code":"ACME","type":"buy","quantity":1,"price":"1"}`)
			assertStatus(t, rec, tc.status)
			assertErrorCode(t, parseJSON(t, rec), tc.code)
			if len(audit.actions) != 0 {
				t.Errorf("rejected decisions must not be audited, got %v", audit.actions)
			}
		})
	}
}

func TestDecisionHandler_ApplyBatch(t *testing.T) {
	t.Run("passes items in order", func(t *testing.T) {
		var got []services.DecisionItem
		svc := &mockDecisionService{
			applyBatchFn: func(_ context.Context, _ string, items []services.DecisionItem) (*services.BatchResult, error) {
				got = items
				return &services.BatchResult{Succeeded: 1, Failed: 1, Items: []services.BatchItemResult{
					{Index: 0, InstrumentCode: "ACME"},
					{Index: 1, InstrumentCode: "BANK", ErrorCode: "INSUFFICIENT_HOLDINGS"},
				}}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupDecisionRouter(NewDecisionHandler(svc, audit))

		rec := doRequest(r, "POST", "/decisions/batch", `{"decisions":[
			{"instrument_code":"ACME","type":"buy","quantity":1,"price":"10"},
			{"instrument_code":"BANK","type":"sell","quantity":5,"price":"20"}
		]}`)

		assertStatus(t, rec, http.StatusOK)
		if len(got) != 2 || got[0].InstrumentCode != "ACME" || got[1].Decision.Type() != models.DecisionSell {
			t.Errorf("unexpected items %+v", got)
		}
		result := parseJSON(t, rec)
		if result["succeeded"] != float64(1) || result["failed"] != float64(1) {
			t.Errorf("unexpected counts %v", result)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "APPLY_DECISION_BATCH" {
			t.Errorf("expected audit entry, got %v", audit.actions)
		}
	})

	t.Run("returns 400 on empty batch", func(t *testing.T) {
		r := setupDecisionRouter(NewDecisionHandler(&mockDecisionService{}, &mockAuditService{}))
		rec := doRequest(r, "POST", "/decisions/batch", `{"decisions":[]}`)
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("returns 400 when one item is malformed", func(t *testing.T) {
		r := setupDecisionRouter(NewDecisionHandler(&mockDecisionService{}, &mockAuditService{}))
		rec := doRequest(r, "POST", "/decisions/batch", `{"decisions":[{"instrument_code":"ACME","type":"buy"},{"type":"sell"}]}`)
		assertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestDecisionHandler_CancelPending(t *testing.T) {
	t.Run("returns 200", func(t *testing.T) {
		var gotID string
		svc := &mockDecisionService{
			cancelPendingFn: func(_ context.Context, _, id string) (*services.DecisionResult, error) {
				gotID = id
				return &services.DecisionResult{Success: true, Record: &models.DecisionRecord{Amount: decimal.NewFromInt(1000)}}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupDecisionRouter(NewDecisionHandler(svc, audit))
		rec := doRequest(r, "DELETE", "/decisions/pending/lot-9", "")
		assertStatus(t, rec, http.StatusOK)
		if gotID != "lot-9" {
			t.Errorf("expected lot-9, got %q", gotID)
		}
		if len(audit.actions) != 1 || audit.actions[0] != "CANCEL_PENDING" {
			t.Errorf("expected audit entry, got %v", audit.actions)
		}
	})

	t.Run("returns 404 for unknown lot", func(t *testing.T) {
		svc := &mockDecisionService{
			cancelPendingFn: func(context.Context, string, string) (*services.DecisionResult, error) {
				return nil, apperrors.ErrInvestmentNotFound
			},
		}
		r := setupDecisionRouter(NewDecisionHandler(svc, &mockAuditService{}))
		rec := doRequest(r, "DELETE", "/decisions/pending/nope", "")
		assertStatus(t, rec, http.StatusNotFound)
		assertErrorCode(t, parseJSON(t, rec), "INVESTMENT_NOT_FOUND")
	})
}

func TestDecisionHandler_ListDecisions(t *testing.T) {
	r := setupDecisionRouter(NewDecisionHandler(&mockDecisionService{}, &mockAuditService{}))
	rec := doRequest(r, "GET", "/decisions", "")
	assertStatus(t, rec, http.StatusOK)
	if _, ok := parseJSON(t, rec)["data"].([]interface{}); !ok {
		t.Error("expected data array")
	}
}
