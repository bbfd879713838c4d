package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"bullbear/internal/cache"
	"bullbear/internal/config"
	"bullbear/internal/logger"
	"bullbear/internal/middleware"
	"bullbear/internal/testutil"
)

const testPipelineKey = "pipeline-test-key"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
}

// testApp holds the full application stack backed by an in-memory SQLite.
type testApp struct {
	Router *gin.Engine
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	cfg := &config.Config{PipelineAPIKey: testPipelineKey, CacheTTL: time.Minute}
	return &testApp{Router: newRouter(cfg, db, cache.NewMemoryStore(), config.DefaultTunables())}
}

// request makes an HTTP request with an optional bearer token.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// pipeline makes a pipeline request carrying the API key.
func (app *testApp) pipeline(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pipeline"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testPipelineKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := middleware.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func seedMarket(t *testing.T, app *testApp, at time.Time) {
	t.Helper()
	mustStatus(t, app.pipeline("/instruments", `{"instruments":[
		{"code":"ACME","name":"Acme Corp","sector":"Technology","lot_size":1},
		{"code":"BANK","name":"Big Bank","sector":"Finance","lot_size":1}
	]}`), http.StatusOK)

	ts := at.Format(time.RFC3339)
	mustStatus(t, app.pipeline("/prices", fmt.Sprintf(`{"prices":[
		{"code":"ACME","price":"100","volume":1000,"recorded_at":%q},
		{"code":"BANK","price":"50","volume":1000,"recorded_at":%q}
	]}`, ts, ts)), http.StatusOK)

	technical := `{"trend_score":0.8,"momentum":0.06,"volatility":0.1,"support_distance":0.02,"resistance_distance":0.1}`
	sentiment := `{"score":0.8,"confidence":0.9,"news_count":5}`
	mustStatus(t, app.pipeline("/analyses", fmt.Sprintf(`{"analyses":[
		{"code":"ACME","technical":%s,"sentiment":%s},
		{"code":"BANK","technical":%s,"sentiment":%s}
	]}`, technical, sentiment, technical, sentiment)), http.StatusOK)
}

func TestHealth(t *testing.T) {
	app := setupApp(t)
	rec := app.request("GET", "/api/health", "", "")
	mustStatus(t, rec, http.StatusOK)
	if parseJSON(t, rec)["status"] != "ok" {
		t.Error("expected status ok")
	}
}

func TestAuthBoundaries(t *testing.T) {
	app := setupApp(t)

	t.Run("protected routes need a token", func(t *testing.T) {
		mustStatus(t, app.request("GET", "/api/v1/portfolio", "", ""), http.StatusUnauthorized)
	})

	t.Run("pipeline routes need the key", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/pipeline/revalue", "", tokenFor(t, testutil.NewUserID()))
		mustStatus(t, rec, http.StatusUnauthorized)
	})
}

func TestRecommendationToLedgerFlow(t *testing.T) {
	app := setupApp(t)
	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedMarket(t, app, start)

	token := tokenFor(t, testutil.NewUserID())

	mustStatus(t, app.request("POST", "/api/v1/portfolio", `{"initial_cash":"10000"}`, token), http.StatusCreated)
	mustStatus(t, app.request("PUT", "/api/v1/profile", `{"risk_tolerance":"moderate","time_horizon":"medium"}`, token), http.StatusOK)

	// Generate and pick the ACME recommendation.
	rec := app.request("POST", "/api/v1/recommendations", `{"budget":"10000"}`, token)
	mustStatus(t, rec, http.StatusOK)
	var recID string
	for _, r := range parseJSON(t, rec)["recommendations"].([]interface{}) {
		m := r.(map[string]interface{})
		if m["instrument_code"] == "ACME" {
			recID = m["id"].(string)
		}
	}
	if recID == "" {
		t.Fatal("expected an ACME recommendation")
	}

	t.Run("buy against the recommendation", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/decisions",
			fmt.Sprintf(`{"instrument_code":"ACME","type":"buy","quantity":10,"price":"100","recommendation_id":%q}`, recID), token)
		mustStatus(t, rec, http.StatusOK)
		p := parseJSON(t, rec)["portfolio"].(map[string]interface{})
		if p["cash_balance"] != "9000" || p["total_value"] != "10000" {
			t.Errorf("unexpected portfolio after buy: %v", p)
		}
	})

	t.Run("overspending is rejected", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/decisions", `{"instrument_code":"BANK","type":"buy","quantity":1000,"price":"50"}`, token)
		mustStatus(t, rec, http.StatusBadRequest)
		errObj := parseJSON(t, rec)["error"].(map[string]interface{})
		if errObj["code"] != "INSUFFICIENT_FUNDS" {
			t.Errorf("expected INSUFFICIENT_FUNDS, got %v", errObj["code"])
		}
	})

	t.Run("revaluation marks to the new price", func(t *testing.T) {
		later := start.Add(30 * time.Minute).Format(time.RFC3339)
		mustStatus(t, app.pipeline("/prices",
			fmt.Sprintf(`{"prices":[{"code":"ACME","price":"120","recorded_at":%q}]}`, later)), http.StatusOK)

		rec := app.pipeline("/revalue", "")
		mustStatus(t, rec, http.StatusOK)
		if parseJSON(t, rec)["revalued"] != float64(1) {
			t.Errorf("expected 1 portfolio revalued, got %v", rec.Body.String())
		}

		rec = app.request("GET", "/api/v1/portfolio", "", token)
		mustStatus(t, rec, http.StatusOK)
		p := parseJSON(t, rec)["portfolio"].(map[string]interface{})
		if p["holdings_value"] != "1200" || p["unrealized_pnl"] != "200" {
			t.Errorf("unexpected portfolio after revalue: %v", p)
		}
	})

	t.Run("sell realizes the gain", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/decisions", `{"instrument_code":"ACME","type":"sell","quantity":5,"price":"120"}`, token)
		mustStatus(t, rec, http.StatusOK)
		result := parseJSON(t, rec)
		if result["realized_pnl"] != "100" {
			t.Errorf("expected realized 100, got %v", result["realized_pnl"])
		}
	})

	t.Run("overselling leaves the portfolio untouched", func(t *testing.T) {
		before := parseJSON(t, app.request("GET", "/api/v1/portfolio", "", token))["portfolio"]
		rec := app.request("POST", "/api/v1/decisions", `{"instrument_code":"ACME","type":"sell","quantity":50,"price":"120"}`, token)
		mustStatus(t, rec, http.StatusBadRequest)
		after := parseJSON(t, app.request("GET", "/api/v1/portfolio", "", token))["portfolio"]
		b, _ := json.Marshal(before)
		a, _ := json.Marshal(after)
		if string(a) != string(b) {
			t.Errorf("portfolio changed after rejected sell:\nbefore %s\nafter  %s", b, a)
		}
	})

	t.Run("history is recorded", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/portfolio/snapshots", "", token)
		mustStatus(t, rec, http.StatusOK)
		if n := parseJSON(t, rec)["total_items"].(float64); n != 4 {
			t.Errorf("expected 4 snapshots (create, buy, revalue, sell), got %v", n)
		}

		rec = app.request("GET", "/api/v1/decisions", "", token)
		mustStatus(t, rec, http.StatusOK)
		if n := parseJSON(t, rec)["total_items"].(float64); n != 2 {
			t.Errorf("expected 2 accepted decisions, got %v", n)
		}

		rec = app.request("GET", "/api/v1/portfolio/holdings", "", token)
		mustStatus(t, rec, http.StatusOK)
		lots := parseJSON(t, rec)["data"].([]interface{})
		if len(lots) != 1 || lots[0].(map[string]interface{})["current_quantity"] != float64(5) {
			t.Errorf("expected one lot with 5 left, got %v", lots)
		}
	})

	t.Run("latest recommendation is readable", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/recommendations/ACME", "", token)
		mustStatus(t, rec, http.StatusOK)
	})
}
