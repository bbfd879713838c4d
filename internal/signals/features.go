// Package signals turns raw analyzer output and user context into scored-ready
// candidate signals.
package signals

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "bullbear/internal/errors"
)

// TechnicalFeatures is the technical analyzer payload. Pointer fields tell a
// missing value apart from a zero one.
type TechnicalFeatures struct {
	TrendScore         *float64 `json:"trend_score"`
	Momentum           *float64 `json:"momentum"`
	Volatility         *float64 `json:"volatility"`
	SupportDistance    *float64 `json:"support_distance,omitempty"`
	ResistanceDistance *float64 `json:"resistance_distance,omitempty"`
	RSI                *float64 `json:"rsi,omitempty"`
}

// SentimentFeatures is the news analyzer payload.
type SentimentFeatures struct {
	Score      *float64 `json:"score"`
	Confidence *float64 `json:"confidence"`
	NewsCount  int      `json:"news_count"`
	KeyEvents  []string `json:"key_events,omitempty"`
}

// Technical is a resolved technical feature set with every field present.
type Technical struct {
	TrendScore         float64 `json:"trend_score"`
	Momentum           float64 `json:"momentum"`
	Volatility         float64 `json:"volatility"`
	SupportDistance    float64 `json:"support_distance"`
	ResistanceDistance float64 `json:"resistance_distance"`
	RSI                float64 `json:"rsi"`
}

// Sentiment is a resolved sentiment feature set.
type Sentiment struct {
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	NewsCount  int      `json:"news_count"`
	KeyEvents  []string `json:"key_events,omitempty"`
}

// InsufficientDataError reports why an instrument could not be aggregated.
type InsufficientDataError struct {
	Code    string
	Missing []string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: missing %s", e.Code, strings.Join(e.Missing, ", "))
}

// Unwrap lets errors.Is match the INSUFFICIENT_DATA sentinel.
func (e *InsufficientDataError) Unwrap() error { return apperrors.ErrInsufficientData }

// ParseTechnical decodes a stored technical payload. Empty input yields nil.
func ParseTechnical(raw []byte) (*TechnicalFeatures, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var f TechnicalFeatures
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseSentiment decodes a stored sentiment payload. Empty input yields nil.
func ParseSentiment(raw []byte) (*SentimentFeatures, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var f SentimentFeatures
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// resolve checks required fields and fills optional ones with neutral values.
func resolve(code string, price decimal.Decimal, tf *TechnicalFeatures, sf *SentimentFeatures) (Technical, Sentiment, error) {
	var missing []string
	if !price.IsPositive() {
		missing = append(missing, "price")
	}
	if tf == nil {
		missing = append(missing, "technical")
	} else {
		if tf.TrendScore == nil {
			missing = append(missing, "technical.trend_score")
		}
		if tf.Momentum == nil {
			missing = append(missing, "technical.momentum")
		}
		if tf.Volatility == nil {
			missing = append(missing, "technical.volatility")
		}
	}
	if sf == nil {
		missing = append(missing, "sentiment")
	} else {
		if sf.Score == nil {
			missing = append(missing, "sentiment.score")
		}
		if sf.Confidence == nil {
			missing = append(missing, "sentiment.confidence")
		}
	}
	if len(missing) > 0 {
		return Technical{}, Sentiment{}, &InsufficientDataError{Code: code, Missing: missing}
	}

	t := Technical{
		TrendScore:         clamp(*tf.TrendScore, -1, 1),
		Momentum:           *tf.Momentum,
		Volatility:         max(*tf.Volatility, 0),
		SupportDistance:    valueOr(tf.SupportDistance, 0),
		ResistanceDistance: valueOr(tf.ResistanceDistance, 0),
		RSI:                valueOr(tf.RSI, 50),
	}
	s := Sentiment{
		Score:      clamp(*sf.Score, -1, 1),
		Confidence: clamp(*sf.Confidence, 0, 1),
		NewsCount:  sf.NewsCount,
		KeyEvents:  sf.KeyEvents,
	}
	return t, s, nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
