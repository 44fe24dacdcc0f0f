// Adoption model: given the candidates shown at a decision point, decide
// probabilistically whether the simulated user adopts one and which.
//
// The model is deliberately simple and fully parameterized: every candidate
// gets a weight from its rank, semantic distance, and intent type, and a
// weighted draw picks among them. The overall adoption rate gates whether
// any adoption happens at all, independent of the candidate mix.

package journey

import (
	"math/rand"
)

// Model is the probabilistic adoption model. Not safe for concurrent use;
// each simulator goroutine owns its own Model.
type Model struct {
	params AdoptionParameters
	rng    *rand.Rand
}

// NewModel creates a model with a seeded source so simulations reproduce.
func NewModel(params AdoptionParameters, seed int64) *Model {
	return &Model{
		params: params,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Weight returns the unnormalized adoption weight of a candidate:
// positionWeights[rank] * semanticDeviationWeights[deviation] *
// queryTypeMultipliers[intent]. Candidates past the weighted ranks or with
// unknown buckets contribute zero.
func (m *Model) Weight(c Candidate) float64 {
	if c.Position < 0 || c.Position >= len(m.params.PositionWeights) {
		return 0
	}
	pw := m.params.PositionWeights[c.Position]
	dw, ok := m.params.SemanticDeviationWeights[c.Deviation]
	if !ok {
		return 0
	}
	tw, ok := m.params.QueryTypeMultipliers[c.Intent]
	if !ok {
		return 0
	}
	return pw * dw * tw
}

// Adopt decides whether the user adopts one of the candidates and which.
// Returns nil, false when no adoption happens (rate gate failed, no
// candidates, or all weights zero).
func (m *Model) Adopt(candidates []Candidate) (*Candidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	if m.rng.Float64() >= m.params.OverallAdoptionRate {
		return nil, false
	}

	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		weights[i] = m.Weight(c)
		total += weights[i]
	}
	if total <= 0 {
		return nil, false
	}

	draw := m.rng.Float64() * total
	for i := range candidates {
		draw -= weights[i]
		if draw < 0 {
			picked := candidates[i]
			return &picked, true
		}
	}
	// Floating-point residue: fall back to the last weighted candidate.
	for i := len(candidates) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			picked := candidates[i]
			return &picked, true
		}
	}
	return nil, false
}
