package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadTunables_Defaults(t *testing.T) {
	tun, err := LoadTunables("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tun.Scoring.MaxRecommendations != 10 {
		t.Errorf("max_recommendations = %d, want 10", tun.Scoring.MaxRecommendations)
	}
	if tun.Differ.MinConfidenceChange != 0.1 {
		t.Errorf("min_confidence_change = %v, want 0.1", tun.Differ.MinConfidenceChange)
	}
	if tun.Ledger.InitialInterval != 20*time.Millisecond {
		t.Errorf("initial_interval = %v, want 20ms", tun.Ledger.InitialInterval)
	}
}

func TestLoadTunables_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunables.yaml")
	body := []byte("scoring:\n  max_recommendations: 3\n  weights:\n    technical: 0.6\n    sentiment: 0.4\n    risk_fit: 0\n    budget_fit: 0\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tun, err := LoadTunables(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tun.Scoring.MaxRecommendations != 3 {
		t.Errorf("max_recommendations = %d, want 3", tun.Scoring.MaxRecommendations)
	}
	if tun.Scoring.Weights.Technical != 0.6 {
		t.Errorf("technical weight = %v, want 0.6", tun.Scoring.Weights.Technical)
	}
	// Untouched keys keep their defaults.
	if tun.Scoring.Thresholds.Buy != 0.6 {
		t.Errorf("buy threshold = %v, want 0.6", tun.Scoring.Thresholds.Buy)
	}
}

func TestLoadTunables_EnvOverride(t *testing.T) {
	t.Setenv("BULLBEAR_DIFFER_MIN_CONFIDENCE_CHANGE", "0.25")

	tun, err := LoadTunables("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tun.Differ.MinConfidenceChange != 0.25 {
		t.Errorf("min_confidence_change = %v, want 0.25", tun.Differ.MinConfidenceChange)
	}
}

func TestLoadTunables_Invalid(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		if _, err := LoadTunables(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("thresholds_out_of_order", func(t *testing.T) {
		t.Setenv("BULLBEAR_SCORING_THRESHOLDS_BUY", "0.9")
		if _, err := LoadTunables(""); err == nil {
			t.Error("expected error for buy threshold above strong_buy")
		}
	})
}
