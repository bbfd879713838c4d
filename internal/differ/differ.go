// Package differ classifies a newly scored recommendation set against the
// user's prior active set. It reads nothing and writes nothing.
package differ

import (
	"fmt"
	"math"
	"sort"

	"bullbear/internal/models"
	"bullbear/internal/scoring"
)

// Reason attached to instruments that drop out of the set.
const ReasonNoLongerMeetsCriteria = "no longer meets criteria"

// confidenceEpsilon absorbs float noise at the threshold boundary.
const confidenceEpsilon = 1e-9

// Entry is the part of a recommendation the differ compares.
type Entry struct {
	Code       string                    `json:"instrument_code"`
	Type       models.RecommendationType `json:"type"`
	Confidence float64                   `json:"confidence_score"`
}

// Change describes an instrument whose recommendation moved meaningfully.
type Change struct {
	Code          string                    `json:"instrument_code"`
	OldType       models.RecommendationType `json:"old_type"`
	NewType       models.RecommendationType `json:"new_type"`
	OldConfidence float64                   `json:"old_confidence"`
	NewConfidence float64                   `json:"new_confidence"`
	Reason        string                    `json:"reason"`
}

// Removal describes an instrument that was active and is no longer recommended.
type Removal struct {
	Code          string                    `json:"instrument_code"`
	OldType       models.RecommendationType `json:"old_type"`
	OldConfidence float64                   `json:"old_confidence"`
	Reason        string                    `json:"reason"`
}

// Result holds four disjoint sets, each sorted by code.
type Result struct {
	New       []Entry   `json:"new"`
	Removed   []Removal `json:"removed"`
	Changed   []Change  `json:"changed"`
	Unchanged []Entry   `json:"unchanged"`
}

// Diff compares next against prior. A change counts when the type differs or
// confidence moves by more than minChange. Duplicate codes keep their first
// occurrence.
func Diff(next, prior []Entry, minChange float64) Result {
	res := Result{
		New:       []Entry{},
		Removed:   []Removal{},
		Changed:   []Change{},
		Unchanged: []Entry{},
	}

	nextByCode, nextCodes := index(next)
	priorByCode, priorCodes := index(prior)

	for _, code := range nextCodes {
		n := nextByCode[code]
		o, ok := priorByCode[code]
		if !ok {
			res.New = append(res.New, n)
			continue
		}
		if reason, changed := compare(o, n, minChange); changed {
			res.Changed = append(res.Changed, Change{
				Code:          code,
				OldType:       o.Type,
				NewType:       n.Type,
				OldConfidence: o.Confidence,
				NewConfidence: n.Confidence,
				Reason:        reason,
			})
			continue
		}
		res.Unchanged = append(res.Unchanged, n)
	}

	for _, code := range priorCodes {
		if _, ok := nextByCode[code]; ok {
			continue
		}
		o := priorByCode[code]
		res.Removed = append(res.Removed, Removal{
			Code:          code,
			OldType:       o.Type,
			OldConfidence: o.Confidence,
			Reason:        ReasonNoLongerMeetsCriteria,
		})
	}
	return res
}

func compare(o, n Entry, minChange float64) (string, bool) {
	if o.Type != n.Type {
		verb := "downgraded"
		if n.Type.Strength() > o.Type.Strength() {
			verb = "upgraded"
		}
		return fmt.Sprintf("%s from %s to %s", verb, o.Type, n.Type), true
	}
	delta := n.Confidence - o.Confidence
	if math.Abs(delta)-minChange <= confidenceEpsilon {
		return "", false
	}
	verb := "decreased"
	if delta > 0 {
		verb = "increased"
	}
	return fmt.Sprintf("confidence %s from %.2f to %.2f", verb, o.Confidence, n.Confidence), true
}

func index(entries []Entry) (map[string]Entry, []string) {
	byCode := make(map[string]Entry, len(entries))
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, seen := byCode[e.Code]; seen {
			continue
		}
		byCode[e.Code] = e
		codes = append(codes, e.Code)
	}
	sort.Strings(codes)
	return byCode, codes
}

// FromDrafts projects scored drafts into diff entries.
func FromDrafts(drafts []scoring.Draft) []Entry {
	out := make([]Entry, len(drafts))
	for i, d := range drafts {
		out[i] = Entry{Code: d.Code, Type: d.Type, Confidence: d.Confidence}
	}
	return out
}

// FromRecommendations projects persisted recommendations into diff entries.
func FromRecommendations(recs []models.Recommendation) []Entry {
	out := make([]Entry, len(recs))
	for i, r := range recs {
		out[i] = Entry{Code: r.InstrumentCode, Type: r.Type, Confidence: r.ConfidenceScore}
	}
	return out
}
