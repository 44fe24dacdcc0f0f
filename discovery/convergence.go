// Convergence controller: the discovery loop's state machine.
//
// States: Iterating -> Converged | Exhausted. Each round runs a discovery
// step, deduplicates against everything seen, scores the round, and decides
// whether to continue under a dynamically decaying acceptance threshold.
// Early rounds face a high bar (favoring breadth); later rounds accept
// incremental depth rather than searching forever for diminishing returns.
// A floor of forced iterations prevents premature stops on an accidentally
// high first-round score.
//
// Rounds run strictly sequentially: each depends on the accumulated
// discovered set and history. Cancellation is honored between rounds.

package discovery

import (
	"context"
	"log/slog"
	"strings"
)

// State is the controller's lifecycle state.
type State int

const (
	// Iterating means the loop is still running.
	Iterating State = iota
	// Converged means the acceptance threshold was met.
	Converged
	// Exhausted means MaxIterations was reached without meeting the
	// threshold. Terminal and functionally equivalent to Converged for the
	// caller, but logged distinctly for quality monitoring.
	Exhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Discoverer produces candidate keywords for one round.
type Discoverer interface {
	// Discover returns raw candidates for the round; the controller handles
	// deduplication against prior rounds.
	Discover(ctx context.Context, query string, iteration int, seen []string) ([]string, error)
}

// ConvergenceController runs the discovery loop. Not safe for concurrent
// use; run one controller per seed keyword.
type ConvergenceController struct {
	policy     ConvergencePolicy
	discoverer Discoverer
	scorer     Scorer
	logger     *slog.Logger

	history []Iteration
	seen    map[string]struct{}
	order   []string
}

// NewConvergenceController creates a controller. The policy is read-only
// for the run's duration.
func NewConvergenceController(policy ConvergencePolicy, discoverer Discoverer, scorer Scorer, logger *slog.Logger) *ConvergenceController {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxIterations < 1 {
		policy.MaxIterations = 1
	}
	if policy.MinForcedIterations > policy.MaxIterations {
		policy.MinForcedIterations = policy.MaxIterations
	}
	return &ConvergenceController{
		policy:     policy,
		discoverer: discoverer,
		scorer:     scorer,
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// EffectiveThreshold returns the acceptance threshold for iteration i
// (1-indexed): initial - decay*(i-1) clamped to [final, initial] when
// dynamic thresholding is enabled, the fixed threshold otherwise.
func (c *ConvergenceController) EffectiveThreshold(i int) float64 {
	if !c.policy.Dynamic.Enabled {
		return c.policy.FixedThreshold
	}
	d := c.policy.Dynamic
	t := d.Initial - d.DecayRate*float64(i-1)
	if t < d.Final {
		return d.Final
	}
	if t > d.Initial {
		return d.Initial
	}
	return t
}

// History returns the completed iteration history.
func (c *ConvergenceController) History() []Iteration {
	return c.history
}

// Discovered returns every keyword found so far, in discovery order.
func (c *ConvergenceController) Discovered() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Run executes the loop for a seed query until convergence, exhaustion,
// cancellation, or an unrecoverable error. The returned history is valid
// in every case.
func (c *ConvergenceController) Run(ctx context.Context, query, goal string) ([]Iteration, State, error) {
	state := Iterating

	for i := 1; i <= c.policy.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return c.history, state, err
		}

		iter, err := c.runIteration(ctx, i, query, goal)
		if err != nil {
			return c.history, state, err
		}
		c.history = append(c.history, iter)

		threshold := c.EffectiveThreshold(i)
		satisfied := iter.Evaluation.OverallScore/10 >= threshold

		c.logger.Info("iteration complete",
			"iteration", i,
			"new_keywords", iter.NewCount,
			"overall_score", iter.Evaluation.OverallScore,
			"threshold", threshold,
			"satisfied", satisfied)

		if i < c.policy.MinForcedIterations {
			continue
		}
		if satisfied {
			state = Converged
			c.logger.Info("discovery converged",
				"iterations", i,
				"total_keywords", len(c.order))
			return c.history, state, nil
		}
	}

	state = Exhausted
	c.logger.Warn("discovery exhausted without meeting threshold",
		"iterations", c.policy.MaxIterations,
		"total_keywords", len(c.order))
	return c.history, state, nil
}

func (c *ConvergenceController) runIteration(ctx context.Context, number int, query, goal string) (Iteration, error) {
	raw, err := c.discoverer.Discover(ctx, query, number, c.Discovered())
	if err != nil {
		return Iteration{}, err
	}

	var fresh []string
	repeats := 0
	for _, item := range raw {
		key := normalizeKeyword(item)
		if key == "" {
			continue
		}
		if _, dup := c.seen[key]; dup {
			repeats++
			continue
		}
		c.seen[key] = struct{}{}
		c.order = append(c.order, item)
		fresh = append(fresh, item)
	}

	repeatRate := 0.0
	if len(raw) > 0 {
		repeatRate = float64(repeats) / float64(len(raw))
	}

	threshold := c.EffectiveThreshold(number)
	eval, err := c.scorer.Score(ctx, IterationData{
		Number:     number,
		Query:      query,
		Goal:       goal,
		NewItems:   fresh,
		TotalSeen:  len(c.order),
		RepeatRate: repeatRate,
	}, threshold)
	if err != nil {
		return Iteration{}, err
	}

	return Iteration{
		Number:            number,
		Query:             query,
		Discoveries:       fresh,
		NewCount:          len(fresh),
		Evaluation:        eval,
		SatisfactionScore: eval.OverallScore / 10,
	}, nil
}

func normalizeKeyword(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
