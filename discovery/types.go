// Package discovery implements the iterative keyword-discovery loop:
// a convergence controller that runs discovery rounds, an evaluation scorer
// that grades each round across weighted dimensions, and the suggester
// boundary that abstracts where candidate queries come from.
package discovery

import "context"

// Suggestion is one ranked autocomplete candidate.
type Suggestion struct {
	Query    string `json:"query"`
	Position int    `json:"position"`
}

// Suggester is the discovery collaborator boundary. The convergence and
// journey code depends only on this shape; how suggestions are obtained
// (browser automation, API, LLM) is out of scope here.
type Suggester interface {
	Suggestions(ctx context.Context, query string) ([]Suggestion, error)
}

// EvaluationResult grades one iteration's discoveries.
// Produced fresh per iteration; immutable once produced.
type EvaluationResult struct {
	// Dimensions maps dimension name to a score in [0,10].
	Dimensions map[string]float64 `json:"dimensions"`
	// OverallScore is the weight-normalized sum clipped to [0,10].
	OverallScore float64 `json:"overall_score"`
	// RecommendContinue is advisory; the controller makes the final call.
	RecommendContinue bool `json:"recommend_continue"`
	// ImprovementSuggestions collects per-dimension guidance for the next round.
	ImprovementSuggestions []string `json:"improvement_suggestions,omitempty"`
}

// Iteration records one completed discovery round. Appended to the
// controller's history; never mutated after creation.
type Iteration struct {
	Number            int              `json:"number"`
	Query             string           `json:"query"`
	Discoveries       []string         `json:"discoveries"`
	NewCount          int              `json:"new_count"`
	Evaluation        EvaluationResult `json:"evaluation"`
	SatisfactionScore float64          `json:"satisfaction_score"`
}

// DynamicThreshold configures the decaying acceptance threshold.
type DynamicThreshold struct {
	Enabled   bool    `json:"enabled"`
	Initial   float64 `json:"initial"`
	Final     float64 `json:"final"`
	DecayRate float64 `json:"decay_rate"`
}

// ConvergencePolicy is the controller's read-only configuration, loaded
// once at construction.
type ConvergencePolicy struct {
	MaxIterations       int              `json:"max_iterations"`
	MinForcedIterations int              `json:"min_forced_iterations"`
	Dynamic             DynamicThreshold `json:"dynamic_threshold"`
	// FixedThreshold applies when dynamic thresholding is disabled.
	FixedThreshold float64 `json:"fixed_threshold"`
	// Weights maps dimension name to a signed weight. Negative weights
	// penalize (repetition).
	Weights map[string]float64 `json:"weights"`
}

// DefaultConvergencePolicy returns the standard discovery policy.
func DefaultConvergencePolicy() ConvergencePolicy {
	return ConvergencePolicy{
		MaxIterations:       5,
		MinForcedIterations: 2,
		Dynamic: DynamicThreshold{
			Enabled:   true,
			Initial:   0.95,
			Final:     0.75,
			DecayRate: 0.05,
		},
		FixedThreshold: 0.85,
		Weights: map[string]float64{
			DimRelevance:             1.5,
			DimLongTailValue:         1.2,
			DimCommercialValue:       1.0,
			DimDiversity:             1.0,
			DimNovelty:               0.8,
			DimSearchVolumePotential: 0.8,
			DimGoalAchievement:       1.5,
			DimDomainCoverage:        1.0,
			DimRepetitionPenalty:     -0.8,
		},
	}
}

// Evaluation dimension names.
const (
	DimRelevance             = "relevance"
	DimLongTailValue         = "long_tail_value"
	DimCommercialValue       = "commercial_value"
	DimDiversity             = "diversity"
	DimNovelty               = "novelty"
	DimSearchVolumePotential = "search_volume_potential"
	DimGoalAchievement       = "goal_achievement"
	DimDomainCoverage        = "domain_coverage"
	DimRepetitionPenalty     = "repetition_penalty"
)

// dimensionOrder fixes the evaluation order so sub-analysis calls and logs
// are deterministic.
var dimensionOrder = []string{
	DimRelevance,
	DimLongTailValue,
	DimCommercialValue,
	DimDiversity,
	DimNovelty,
	DimSearchVolumePotential,
	DimGoalAchievement,
	DimDomainCoverage,
	DimRepetitionPenalty,
}
