// Evaluation scorer: grades one iteration's discoveries across weighted
// dimensions, each scored by a sub-analysis call through the gateway.
//
// A failed sub-analysis is replaced by a neutral default score and logged,
// and the evaluation continues, so one bad dimension never aborts a
// discovery run.

package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/richinex/keymine/llm"
)

// neutralScore substitutes for a dimension whose sub-analysis failed.
const neutralScore = 5.0

// Caller abstracts the gateway for sub-analysis calls.
type Caller interface {
	Call(ctx context.Context, req llm.Request) (llm.Result, error)
}

// IterationData is the raw material the scorer grades.
type IterationData struct {
	Number    int
	Query     string
	Goal      string
	NewItems  []string
	TotalSeen int
	// RepeatRate is the share of this round's raw discoveries that were
	// already known, in [0,1].
	RepeatRate float64
}

// Scorer grades an iteration and recommends whether to continue.
// The controller supplies the effective threshold.
type Scorer interface {
	Score(ctx context.Context, data IterationData, effectiveThreshold float64) (EvaluationResult, error)
}

// EvaluationScorer implements Scorer with per-dimension gateway calls.
type EvaluationScorer struct {
	caller  Caller
	weights map[string]float64
	logger  *slog.Logger
}

// NewEvaluationScorer creates a scorer using the policy's dimension weights.
func NewEvaluationScorer(caller Caller, policy ConvergencePolicy, logger *slog.Logger) *EvaluationScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvaluationScorer{
		caller:  caller,
		weights: policy.Weights,
		logger:  logger,
	}
}

// Score runs one sub-analysis call per configured dimension and folds the
// results into a weighted overall score in [0,10].
func (s *EvaluationScorer) Score(ctx context.Context, data IterationData, effectiveThreshold float64) (EvaluationResult, error) {
	result := EvaluationResult{
		Dimensions: make(map[string]float64, len(s.weights)),
	}

	for _, dim := range dimensionOrder {
		if _, ok := s.weights[dim]; !ok {
			continue
		}
		score, suggestion := s.scoreDimension(ctx, dim, data)
		result.Dimensions[dim] = score
		if suggestion != "" {
			result.ImprovementSuggestions = append(result.ImprovementSuggestions,
				fmt.Sprintf("%s: %s", dim, suggestion))
		}
	}

	result.OverallScore = weightedOverall(result.Dimensions, s.weights)
	result.RecommendContinue = result.OverallScore/10 < effectiveThreshold
	return result, nil
}

// scoreDimension runs one sub-analysis call. Failures yield the neutral
// default so the pipeline continues.
func (s *EvaluationScorer) scoreDimension(ctx context.Context, dim string, data IterationData) (float64, string) {
	res, err := s.caller.Call(ctx, llm.Request{
		System:     scorerSystemPrompt,
		Prompt:     dimensionPrompt(dim, data),
		StrictJSON: true,
	})
	if err != nil {
		s.logger.Warn("dimension sub-analysis failed, using neutral default",
			"dimension", dim, "iteration", data.Number, "error", err)
		return neutralScore, ""
	}
	if res.Degraded {
		s.logger.Warn("dimension sub-analysis degraded, using neutral default",
			"dimension", dim, "iteration", data.Number, "message", res.Message)
		return neutralScore, ""
	}

	obj, ok := res.Object()
	if !ok {
		return neutralScore, ""
	}

	score := neutralScore
	if v, ok := obj["score"].(float64); ok {
		score = clamp(v, 0, 10)
	}
	suggestion := ""
	if v, ok := obj["suggestion"].(string); ok {
		suggestion = v
	}
	return score, suggestion
}

// weightedOverall computes sum(w_d * s_d) / sum(|w_d|), clipped to [0,10].
func weightedOverall(dimensions, weights map[string]float64) float64 {
	var sum, norm float64
	for dim, w := range weights {
		score, ok := dimensions[dim]
		if !ok {
			continue
		}
		sum += w * score
		if w < 0 {
			norm -= w
		} else {
			norm += w
		}
	}
	if norm == 0 {
		return 0
	}
	return clamp(sum/norm, 0, 10)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

const scorerSystemPrompt = `You are a search-keyword quality analyst. ` +
	`Score the requested dimension from 0 to 10 and respond with JSON only: ` +
	`{"score": <number>, "suggestion": "<one short improvement hint or empty>"}`

var dimensionQuestions = map[string]string{
	DimRelevance:             "How relevant are the new keywords to the seed topic and goal?",
	DimLongTailValue:         "How much long-tail value (specific, lower-competition phrasings) do the new keywords carry?",
	DimCommercialValue:       "How much commercial or monetizable intent do the new keywords show?",
	DimDiversity:             "How diverse are the new keywords across subtopics and phrasings?",
	DimNovelty:               "How novel are the new keywords relative to what was already discovered?",
	DimSearchVolumePotential: "How much plausible search volume do the new keywords represent?",
	DimGoalAchievement:       "How far has the discovery goal been achieved by the accumulated set?",
	DimDomainCoverage:        "How well do the accumulated keywords cover the topic's subdomains?",
	DimRepetitionPenalty:     "How repetitive was this round (near-duplicates, re-discoveries)? Higher means more repetitive.",
}

func dimensionPrompt(dim string, data IterationData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dimension: %s\n%s\n\n", dim, dimensionQuestions[dim])
	fmt.Fprintf(&b, "Seed query: %s\n", data.Query)
	if data.Goal != "" {
		fmt.Fprintf(&b, "Discovery goal: %s\n", data.Goal)
	}
	fmt.Fprintf(&b, "Iteration: %d\nTotal keywords so far: %d\nRepeat rate this round: %.2f\n",
		data.Number, data.TotalSeen, data.RepeatRate)
	fmt.Fprintf(&b, "New keywords this round (%d):\n", len(data.NewItems))
	for _, item := range data.NewItems {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return b.String()
}

// Verify EvaluationScorer implements Scorer
var _ Scorer = (*EvaluationScorer)(nil)
