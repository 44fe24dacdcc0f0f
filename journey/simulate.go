// Journey simulator: walks a simulated user from a seed query through a
// chain of suggestion adoptions until satisfaction, suggestion exhaustion,
// or the step bound.

package journey

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/richinex/keymine/discovery"
)

// SimulatorConfig bounds a journey walk.
type SimulatorConfig struct {
	// MaxSteps caps journey length.
	MaxSteps int
	// SatisfactionBound ends the journey once cumulative satisfaction
	// reaches it.
	SatisfactionBound float64
	// StepGain is the satisfaction gained per adopted step, by the adopted
	// query's intent. Intents without an entry gain DefaultGain.
	StepGain map[IntentType]float64
	// DefaultGain applies when StepGain has no entry for an intent.
	DefaultGain float64
}

// DefaultSimulatorConfig returns the standard walk bounds: transactional
// adoptions satisfy fastest, navigational ones slowest.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		MaxSteps:          8,
		SatisfactionBound: 1.0,
		StepGain: map[IntentType]float64{
			IntentTransactional: 0.45,
			IntentCommercial:    0.35,
			IntentInformational: 0.25,
			IntentNavigational:  0.5,
		},
		DefaultGain: 0.25,
	}
}

// Simulator walks journeys against a suggester using an adoption model.
// Not safe for concurrent use; RunMany runs journeys sequentially so the
// model's random stream stays reproducible.
type Simulator struct {
	suggester discovery.Suggester
	model     *Model
	cfg       SimulatorConfig
	logger    *slog.Logger
}

// NewSimulator creates a simulator. Zero config fields get defaults.
func NewSimulator(suggester discovery.Suggester, model *Model, cfg SimulatorConfig, logger *slog.Logger) *Simulator {
	def := DefaultSimulatorConfig()
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.SatisfactionBound <= 0 {
		cfg.SatisfactionBound = def.SatisfactionBound
	}
	if cfg.StepGain == nil {
		cfg.StepGain = def.StepGain
	}
	if cfg.DefaultGain <= 0 {
		cfg.DefaultGain = def.DefaultGain
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{suggester: suggester, model: model, cfg: cfg, logger: logger}
}

// Run simulates one journey from a seed query.
func (s *Simulator) Run(ctx context.Context, seed string) (Journey, error) {
	journey := Journey{
		ID:   uuid.New().String(),
		Seed: seed,
	}

	current := seed
	satisfaction := 0.0

	for step := 0; step < s.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return journey, err
		}

		suggestions, err := s.suggester.Suggestions(ctx, current)
		if err != nil {
			return journey, fmt.Errorf("suggestion fetch for %q failed: %w", current, err)
		}

		intent := ClassifyIntent(current)
		candidates := make([]Candidate, 0, len(suggestions))
		for _, sg := range suggestions {
			candidates = append(candidates, Candidate{
				Query:     sg.Query,
				Position:  sg.Position,
				Intent:    ClassifyIntent(sg.Query),
				Deviation: DeviationBetween(current, sg.Query),
			})
		}

		journey.Steps = append(journey.Steps, JourneyStep{
			Query:          current,
			Intent:         intent,
			Satisfaction:   satisfaction,
			NextCandidates: candidates,
		})

		if len(candidates) == 0 {
			s.logger.Debug("journey ended, no suggestions", "journey", journey.ID, "query", current)
			break
		}
		journey.Offers++

		picked, adopted := s.model.Adopt(candidates)
		if !adopted {
			s.logger.Debug("journey ended, nothing adopted", "journey", journey.ID, "query", current)
			break
		}

		journey.Decisions = append(journey.Decisions, DecisionPoint{
			FromQuery:   current,
			ToQuery:     picked.Query,
			Reason:      fmt.Sprintf("adopted rank %d suggestion", picked.Position),
			IntentShift: picked.Intent != intent,
			Position:    picked.Position,
			Deviation:   picked.Deviation,
			Intent:      picked.Intent,
		})

		gain, ok := s.cfg.StepGain[picked.Intent]
		if !ok {
			gain = s.cfg.DefaultGain
		}
		satisfaction += gain
		current = picked.Query

		if satisfaction >= s.cfg.SatisfactionBound {
			journey.Steps = append(journey.Steps, JourneyStep{
				Query:        current,
				Intent:       picked.Intent,
				Satisfaction: satisfaction,
			})
			s.logger.Debug("journey ended, satisfied",
				"journey", journey.ID, "steps", len(journey.Steps), "satisfaction", satisfaction)
			break
		}
	}

	return journey, nil
}

// RunMany simulates n journeys from the same seed query.
func (s *Simulator) RunMany(ctx context.Context, seed string, n int) ([]Journey, error) {
	journeys := make([]Journey, 0, n)
	for i := 0; i < n; i++ {
		j, err := s.Run(ctx, seed)
		if err != nil {
			return journeys, err
		}
		journeys = append(journeys, j)
	}
	s.logger.Info("simulation batch complete", "seed", seed, "journeys", len(journeys))
	return journeys, nil
}
