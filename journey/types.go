// Package journey simulates user search behavior: a probabilistic adoption
// model decides whether a simulated user picks a suggested next query, a
// simulator walks whole journeys, and a fidelity evaluator scores how
// closely the simulated behavior matches an externally measured profile.
package journey

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// IntentType classifies what a query is trying to accomplish.
type IntentType string

const (
	IntentInformational IntentType = "informational"
	IntentNavigational  IntentType = "navigational"
	IntentTransactional IntentType = "transactional"
	IntentCommercial    IntentType = "commercial"
)

// Deviation buckets the semantic distance between two queries.
type Deviation string

const (
	DeviationLow    Deviation = "low"
	DeviationMedium Deviation = "medium"
	DeviationHigh   Deviation = "high"
)

// Candidate is one ranked next-query option offered to the simulated user.
type Candidate struct {
	Query     string     `json:"query"`
	Position  int        `json:"position"`
	Intent    IntentType `json:"intent"`
	Deviation Deviation  `json:"deviation"`
}

// JourneyStep records one step of a simulated journey.
type JourneyStep struct {
	Query          string      `json:"query"`
	Intent         IntentType  `json:"intent"`
	Satisfaction   float64     `json:"satisfaction"`
	NextCandidates []Candidate `json:"next_candidates,omitempty"`
}

// DecisionPoint records one adoption: the transition from a typed query to
// a suggested one, with the candidate attributes the fidelity evaluator
// aggregates over.
type DecisionPoint struct {
	FromQuery   string     `json:"from_query"`
	ToQuery     string     `json:"to_query"`
	Reason      string     `json:"reason"`
	IntentShift bool       `json:"intent_shift"`
	Position    int        `json:"position"`
	Deviation   Deviation  `json:"deviation"`
	Intent      IntentType `json:"intent"`
}

// Journey is one complete simulated search session.
type Journey struct {
	ID        string          `json:"id"`
	Seed      string          `json:"seed"`
	Steps     []JourneyStep   `json:"steps"`
	Decisions []DecisionPoint `json:"decisions"`
	// Offers counts steps where candidates were available; together with
	// len(Decisions) it defines the journey's adoption rate.
	Offers int `json:"offers"`
}

// AdoptionParameters configures the adoption model. Read-only.
type AdoptionParameters struct {
	// OverallAdoptionRate is the probability that any adoption occurs at a
	// decision point.
	OverallAdoptionRate float64 `json:"overall_adoption_rate"`
	// PositionWeights weight candidates by rank, index 0 first.
	PositionWeights [10]float64 `json:"position_weights"`
	// SemanticDeviationWeights weight candidates by distance bucket.
	SemanticDeviationWeights map[Deviation]float64 `json:"semantic_deviation_weights"`
	// QueryTypeMultipliers weight candidates by intent type.
	QueryTypeMultipliers map[IntentType]float64 `json:"query_type_multipliers"`
}

// DefaultAdoptionParameters returns parameters tuned to typical
// autocomplete behavior: strong position bias, preference for small
// semantic moves, transactional intent adopted most readily.
func DefaultAdoptionParameters() AdoptionParameters {
	return AdoptionParameters{
		OverallAdoptionRate: 0.65,
		PositionWeights:     [10]float64{1.0, 0.8, 0.6, 0.45, 0.35, 0.28, 0.22, 0.18, 0.15, 0.12},
		SemanticDeviationWeights: map[Deviation]float64{
			DeviationLow:    1.0,
			DeviationMedium: 0.6,
			DeviationHigh:   0.3,
		},
		QueryTypeMultipliers: map[IntentType]float64{
			IntentTransactional: 1.3,
			IntentCommercial:    1.1,
			IntentInformational: 1.0,
			IntentNavigational:  0.7,
		},
	}
}

// BehaviorMetrics is an aggregate behavioral profile: either measured from
// real users (ground truth) or aggregated from simulated journeys.
type BehaviorMetrics struct {
	AdoptionRate float64 `json:"adoption_rate"`
	// PositionPreference is a distribution over ranks (sums to 1 when any
	// adoptions exist).
	PositionPreference []float64 `json:"position_preference"`
	// SemanticDeviation is a distribution over deviation buckets.
	SemanticDeviation map[Deviation]float64 `json:"semantic_deviation"`
	// IntentAdoption is the per-intent adoption rate.
	IntentAdoption map[IntentType]float64 `json:"intent_adoption"`
}

// AdoptionScore is the four-component similarity between simulated and real
// behavior plus the weighted overall value in [0,1].
type AdoptionScore struct {
	OverallRate       float64 `json:"overall_rate"`
	PositionPrefer    float64 `json:"position_preference"`
	SemanticDeviation float64 `json:"semantic_deviation"`
	IntentAdoption    float64 `json:"intent_adoption"`
	OverallSimilarity float64 `json:"overall_similarity"`
}

// LoadBehaviorMetrics reads a ground-truth profile from a JSON file.
func LoadBehaviorMetrics(path string) (BehaviorMetrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BehaviorMetrics{}, fmt.Errorf("failed to read metrics file: %w", err)
	}
	var m BehaviorMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return BehaviorMetrics{}, fmt.Errorf("failed to parse metrics file: %w", err)
	}
	return m, nil
}

// ClassifyIntent assigns an intent type from query wording. Heuristic and
// deliberately coarse; an LLM-backed classifier can substitute where the
// extra accuracy is worth a call.
func ClassifyIntent(query string) IntentType {
	q := strings.ToLower(query)

	for _, kw := range []string{"buy", "price", "cheap", "discount", "order", "coupon", "deal", "purchase"} {
		if strings.Contains(q, kw) {
			return IntentTransactional
		}
	}
	for _, kw := range []string{"best", "top", "review", "vs", "compare", "alternative"} {
		if strings.Contains(q, kw) {
			return IntentCommercial
		}
	}
	for _, kw := range []string{"login", "sign in", "website", "official", "download", ".com", "app"} {
		if strings.Contains(q, kw) {
			return IntentNavigational
		}
	}
	return IntentInformational
}

// DeviationBetween buckets the semantic distance between two queries by
// token overlap (Jaccard): shared wording means a small semantic move.
func DeviationBetween(a, b string) Deviation {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return DeviationHigh
	}

	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	jaccard := float64(intersection) / float64(union)

	switch {
	case jaccard >= 0.5:
		return DeviationLow
	case jaccard >= 0.2:
		return DeviationMedium
	default:
		return DeviationHigh
	}
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}
