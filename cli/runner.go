// Command execution for CLI commands.
//
// Information Hiding:
// - Pipeline wiring (transport, cache, gateway, controller) hidden
// - Output formatting hidden

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/richinex/keymine/config"
	"github.com/richinex/keymine/discovery"
	"github.com/richinex/keymine/journey"
	"github.com/richinex/keymine/llm"
	"github.com/richinex/keymine/storage"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	Goal     string
	// Concurrency bounds parallel seed mining.
	Concurrency int
	Verbose     bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		Concurrency: 2,
		Verbose:     false,
	}
}

// MineReport is the per-seed mining outcome printed as JSON.
type MineReport struct {
	Seed       string                `json:"seed"`
	State      string                `json:"state"`
	Iterations []discovery.Iteration `json:"iterations"`
	Keywords   []string              `json:"keywords"`
}

// SimulateReport is the simulation outcome printed as JSON.
type SimulateReport struct {
	Seed      string                  `json:"seed"`
	Journeys  []journey.Journey       `json:"journeys"`
	Simulated journey.BehaviorMetrics `json:"simulated_metrics"`
	Fidelity  *journey.AdoptionScore  `json:"fidelity,omitempty"`
}

// Mine runs the discovery loop for each seed keyword and prints one report
// per seed. Seeds run concurrently; each seed's loop stays sequential.
func Mine(ctx context.Context, seeds []string, opts Options) error {
	if len(seeds) == 0 {
		return fmt.Errorf("at least one seed keyword is required")
	}

	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	logger := newLogger(opts.Verbose)

	gateway, closeStore, err := buildGateway(settings, logger)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	reports, err := mineAll(ctx, seeds, opts.Concurrency, func(ctx context.Context, seed string) (MineReport, error) {
		return mineSeed(ctx, seed, opts.Goal, settings, gateway, logger)
	})
	if err != nil {
		return err
	}

	return printJSON(reports)
}

// mineAll runs one runner per seed, at most concurrency at a time.
// Reports come back in seed order regardless of completion order.
func mineAll(ctx context.Context, seeds []string, concurrency int, run func(ctx context.Context, seed string) (MineReport, error)) ([]MineReport, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	// Each goroutine writes its own slot, so no mutex and no reordering.
	reports := make([]MineReport, len(seeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, seed := range seeds {
		g.Go(func() error {
			report, err := run(gctx, seed)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// mineSeed runs one discovery loop. Each seed gets its own controller; the
// gateway and cache are shared.
func mineSeed(ctx context.Context, seed, goal string, settings config.Settings, gateway *llm.Gateway, logger *slog.Logger) (MineReport, error) {
	policy := convergencePolicy(settings)
	suggester := discovery.NewLLMSuggester(gateway, settings.Discovery.SuggestionLimit, logger)
	discoverer := discovery.NewSuggestDiscoverer(suggester, 0)
	scorer := discovery.NewEvaluationScorer(gateway, policy, logger)
	controller := discovery.NewConvergenceController(policy, discoverer, scorer, logger)

	iterations, state, err := controller.Run(ctx, seed, goal)
	if err != nil {
		return MineReport{}, fmt.Errorf("mining %q failed: %w", seed, err)
	}

	return MineReport{
		Seed:       seed,
		State:      state.String(),
		Iterations: iterations,
		Keywords:   controller.Discovered(),
	}, nil
}

// Simulate runs n user journeys from a seed keyword, aggregates them, and
// when metricsPath names a ground-truth profile also scores fidelity.
func Simulate(ctx context.Context, seed string, n int, randomSeed int64, metricsPath string, opts Options) error {
	if seed == "" {
		return fmt.Errorf("a seed keyword is required")
	}
	if n <= 0 {
		n = 10
	}

	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	logger := newLogger(opts.Verbose)

	gateway, closeStore, err := buildGateway(settings, logger)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	suggester := discovery.NewLLMSuggester(gateway, settings.Discovery.SuggestionLimit, logger)
	model := journey.NewModel(journey.DefaultAdoptionParameters(), randomSeed)
	simulator := journey.NewSimulator(suggester, model, journey.DefaultSimulatorConfig(), logger)

	journeys, err := simulator.RunMany(ctx, seed, n)
	if err != nil {
		return fmt.Errorf("simulation for %q failed: %w", seed, err)
	}

	report := SimulateReport{
		Seed:      seed,
		Journeys:  journeys,
		Simulated: journey.Aggregate(journeys),
	}

	if metricsPath != "" {
		real, err := journey.LoadBehaviorMetrics(metricsPath)
		if err != nil {
			return err
		}
		score := journey.Evaluate(report.Simulated, real, journey.DefaultFidelityWeights())
		report.Fidelity = &score
	}

	return printJSON(report)
}

// buildGateway assembles the transport, cache, session, and retry stack
// from settings. The returned func closes the SQLite store when one was
// opened.
func buildGateway(settings config.Settings, logger *slog.Logger) (*llm.Gateway, func(), error) {
	kind, err := llm.ParseTransportKind(settings.LLM.Provider)
	if err != nil {
		return nil, nil, err
	}

	// config owns the provider -> env var table; the builder just takes
	// the resolved key.
	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, nil, err
	}

	transport, err := llm.NewTransportBuilder(kind).
		Model(settings.LLM.Model).
		MaxTokens(int(settings.LLM.MaxTokens)).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
	if err != nil {
		return nil, nil, err
	}

	var store storage.Store
	var closeStore func()
	if settings.Cache.Path != "" {
		s, err := storage.OpenSqlite(settings.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		store = s
		closeStore = func() { s.Close() }
	} else {
		store = storage.NewMemoryStore()
	}

	cache := storage.NewResponseCache(store, settings.Cache.TTL, logger)
	sessions := llm.NewSessionContext(settings.Session.MaxContext, settings.Session.IdleTTL, logger)

	gateway := llm.NewGateway(transport).
		WithCache(cache).
		WithSessions(sessions).
		WithRetry(llm.DefaultRetryPolicy()).
		WithLogger(logger)
	return gateway, closeStore, nil
}

func convergencePolicy(settings config.Settings) discovery.ConvergencePolicy {
	policy := discovery.DefaultConvergencePolicy()
	policy.MaxIterations = settings.Discovery.MaxIterations
	policy.MinForcedIterations = settings.Discovery.MinForcedIterations
	policy.Dynamic.Initial = settings.Discovery.InitialThreshold
	policy.Dynamic.Final = settings.Discovery.FinalThreshold
	policy.Dynamic.DecayRate = settings.Discovery.ThresholdDecay
	return policy
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
