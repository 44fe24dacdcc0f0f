// Fidelity evaluator: aggregates simulated journeys into a behavioral
// profile and scores its similarity to a real-user profile across four
// components. Identical profiles score exactly 1.0.

package journey

import "math"

// FidelityWeights weight the four similarity components in the overall
// value. They are renormalized to sum to 1 before use.
type FidelityWeights struct {
	OverallRate       float64
	PositionPrefer    float64
	SemanticDeviation float64
	IntentAdoption    float64
}

// DefaultFidelityWeights returns equal-ish weights favoring the adoption
// rate, the coarsest and most reliable signal.
func DefaultFidelityWeights() FidelityWeights {
	return FidelityWeights{
		OverallRate:       0.35,
		PositionPrefer:    0.25,
		SemanticDeviation: 0.2,
		IntentAdoption:    0.2,
	}
}

// Aggregate folds simulated journeys into a behavioral profile comparable
// with a measured one.
func Aggregate(journeys []Journey) BehaviorMetrics {
	metrics := BehaviorMetrics{
		SemanticDeviation: make(map[Deviation]float64),
		IntentAdoption:    make(map[IntentType]float64),
	}

	offers := 0
	adoptions := 0
	positions := make(map[int]int)
	maxPosition := -1
	intentOffers := make(map[IntentType]int)
	intentAdopts := make(map[IntentType]int)

	for _, j := range journeys {
		offers += j.Offers
		adoptions += len(j.Decisions)

		for _, step := range j.Steps {
			if len(step.NextCandidates) == 0 {
				continue
			}
			// An offer exposes every distinct intent among its candidates.
			seen := make(map[IntentType]bool)
			for _, c := range step.NextCandidates {
				if !seen[c.Intent] {
					seen[c.Intent] = true
					intentOffers[c.Intent]++
				}
			}
		}

		for _, d := range j.Decisions {
			positions[d.Position]++
			if d.Position > maxPosition {
				maxPosition = d.Position
			}
			metrics.SemanticDeviation[d.Deviation]++
			intentAdopts[d.Intent]++
		}
	}

	if offers > 0 {
		metrics.AdoptionRate = float64(adoptions) / float64(offers)
	}

	if adoptions > 0 {
		metrics.PositionPreference = make([]float64, maxPosition+1)
		for pos, count := range positions {
			metrics.PositionPreference[pos] = float64(count) / float64(adoptions)
		}
		for dev := range metrics.SemanticDeviation {
			metrics.SemanticDeviation[dev] /= float64(adoptions)
		}
	}

	for intent, n := range intentAdopts {
		if intentOffers[intent] > 0 {
			metrics.IntentAdoption[intent] = float64(n) / float64(intentOffers[intent])
		}
	}

	return metrics
}

// Evaluate scores how closely simulated behavior matches the real profile.
// Every component and the overall value lie in [0,1]; identical inputs
// yield 1.0 everywhere.
func Evaluate(simulated, real BehaviorMetrics, weights FidelityWeights) AdoptionScore {
	score := AdoptionScore{
		OverallRate:       rateSimilarity(simulated.AdoptionRate, real.AdoptionRate),
		PositionPrefer:    positionSimilarity(simulated.PositionPreference, real.PositionPreference),
		SemanticDeviation: deviationSimilarity(simulated.SemanticDeviation, real.SemanticDeviation),
		IntentAdoption:    intentSimilarity(simulated.IntentAdoption, real.IntentAdoption),
	}

	total := weights.OverallRate + weights.PositionPrefer + weights.SemanticDeviation + weights.IntentAdoption
	if total <= 0 {
		w := DefaultFidelityWeights()
		weights = w
		total = w.OverallRate + w.PositionPrefer + w.SemanticDeviation + w.IntentAdoption
	}

	score.OverallSimilarity = (weights.OverallRate*score.OverallRate +
		weights.PositionPrefer*score.PositionPrefer +
		weights.SemanticDeviation*score.SemanticDeviation +
		weights.IntentAdoption*score.IntentAdoption) / total
	return score
}

func rateSimilarity(a, b float64) float64 {
	return clip01(1 - math.Abs(a-b))
}

// positionSimilarity compares rank distributions by Euclidean distance over
// the padded union of ranks.
func positionSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	if n == 0 {
		return 1
	}
	var sum float64
	for i := 0; i < n; i++ {
		var av, bv float64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		d := av - bv
		sum += d * d
	}
	return clip01(1 - math.Sqrt(sum))
}

// deviationSimilarity compares bucket distributions by mean absolute
// difference over the key union; a bucket missing on one side counts as 0.
func deviationSimilarity(a, b map[Deviation]float64) float64 {
	keys := make(map[Deviation]struct{})
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	if len(keys) == 0 {
		return 1
	}
	var sum float64
	for k := range keys {
		sum += math.Abs(a[k] - b[k])
	}
	return clip01(1 - sum/float64(len(keys)))
}

func intentSimilarity(a, b map[IntentType]float64) float64 {
	keys := make(map[IntentType]struct{})
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	if len(keys) == 0 {
		return 1
	}
	var sum float64
	for k := range keys {
		sum += math.Abs(a[k] - b[k])
	}
	return clip01(1 - sum/float64(len(keys)))
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
