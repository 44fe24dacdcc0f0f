package journey

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/richinex/keymine/discovery"
)

// mapSuggester serves canned suggestions per query.
type mapSuggester struct {
	byQuery map[string][]discovery.Suggestion
	err     error
}

func (m *mapSuggester) Suggestions(ctx context.Context, query string) ([]discovery.Suggestion, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byQuery[query], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func alwaysAdopt() *Model {
	params := DefaultAdoptionParameters()
	params.OverallAdoptionRate = 1.0
	return NewModel(params, 1)
}

func neverAdopt() *Model {
	params := DefaultAdoptionParameters()
	params.OverallAdoptionRate = 0
	return NewModel(params, 1)
}

func TestRunEndsWhenNoSuggestions(t *testing.T) {
	suggester := &mapSuggester{byQuery: map[string][]discovery.Suggestion{}}
	s := NewSimulator(suggester, alwaysAdopt(), DefaultSimulatorConfig(), quietLogger())

	j, err := s.Run(context.Background(), "dead end")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(j.Steps) != 1 {
		t.Errorf("expected a single step, got %d", len(j.Steps))
	}
	if j.Offers != 0 || len(j.Decisions) != 0 {
		t.Errorf("no suggestions means no offers or decisions: %+v", j)
	}
	if j.ID == "" || j.Seed != "dead end" {
		t.Errorf("journey identity must be set: %+v", j)
	}
}

func TestRunEndsWhenNothingAdopted(t *testing.T) {
	suggester := &mapSuggester{byQuery: map[string][]discovery.Suggestion{
		"seed": {{Query: "seed extended", Position: 0}},
	}}
	s := NewSimulator(suggester, neverAdopt(), DefaultSimulatorConfig(), quietLogger())

	j, err := s.Run(context.Background(), "seed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Offers != 1 {
		t.Errorf("candidates were offered once, got %d offers", j.Offers)
	}
	if len(j.Decisions) != 0 {
		t.Errorf("nothing must be adopted, got %d decisions", len(j.Decisions))
	}
}

func TestRunFollowsAdoptionChain(t *testing.T) {
	suggester := &mapSuggester{byQuery: map[string][]discovery.Suggestion{
		"desk":           {{Query: "desk buy cheap", Position: 0}},
		"desk buy cheap": {{Query: "desk buy cheap online", Position: 0}},
	}}
	cfg := DefaultSimulatorConfig()
	cfg.SatisfactionBound = 0.8
	s := NewSimulator(suggester, alwaysAdopt(), cfg, quietLogger())

	j, err := s.Run(context.Background(), "desk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two transactional adoptions at 0.45 each clear the 0.8 bound.
	if len(j.Decisions) != 2 {
		t.Fatalf("expected 2 adoptions, got %d", len(j.Decisions))
	}
	if j.Decisions[0].FromQuery != "desk" || j.Decisions[0].ToQuery != "desk buy cheap" {
		t.Errorf("unexpected first decision: %+v", j.Decisions[0])
	}

	last := j.Steps[len(j.Steps)-1]
	if last.Satisfaction < 0.8 {
		t.Errorf("final step must carry the satisfying score, got %.2f", last.Satisfaction)
	}
}

func TestRunRecordsIntentShift(t *testing.T) {
	suggester := &mapSuggester{byQuery: map[string][]discovery.Suggestion{
		"standing desk": {{Query: "standing desk buy", Position: 0}},
	}}
	cfg := DefaultSimulatorConfig()
	cfg.MaxSteps = 2
	s := NewSimulator(suggester, alwaysAdopt(), cfg, quietLogger())

	j, err := s.Run(context.Background(), "standing desk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(j.Decisions) == 0 {
		t.Fatal("expected an adoption")
	}
	d := j.Decisions[0]
	// informational seed -> transactional suggestion
	if !d.IntentShift {
		t.Errorf("expected an intent shift: %+v", d)
	}
	if d.Intent != IntentTransactional {
		t.Errorf("expected transactional adopted intent, got %s", d.Intent)
	}
}

func TestRunHonorsStepBound(t *testing.T) {
	// A self-referencing suggestion graph would loop forever without the cap.
	suggester := &mapSuggester{byQuery: map[string][]discovery.Suggestion{
		"a": {{Query: "b", Position: 0}},
		"b": {{Query: "a", Position: 0}},
	}}
	cfg := DefaultSimulatorConfig()
	cfg.MaxSteps = 4
	cfg.SatisfactionBound = 100 // unreachable
	s := NewSimulator(suggester, alwaysAdopt(), cfg, quietLogger())

	j, err := s.Run(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(j.Decisions) != 4 {
		t.Errorf("expected the step bound to cap adoptions at 4, got %d", len(j.Decisions))
	}
}

func TestRunPropagatesSuggesterError(t *testing.T) {
	suggester := &mapSuggester{err: errors.New("browser crashed")}
	s := NewSimulator(suggester, alwaysAdopt(), DefaultSimulatorConfig(), quietLogger())

	_, err := s.Run(context.Background(), "seed")
	if err == nil {
		t.Fatal("expected suggester error to propagate")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	suggester := &mapSuggester{byQuery: map[string][]discovery.Suggestion{}}
	s := NewSimulator(suggester, alwaysAdopt(), DefaultSimulatorConfig(), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Run(ctx, "seed"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestRunManyCountAndSeeds(t *testing.T) {
	suggester := &mapSuggester{byQuery: map[string][]discovery.Suggestion{
		"seed": {{Query: "seed more", Position: 0}},
	}}
	s := NewSimulator(suggester, alwaysAdopt(), DefaultSimulatorConfig(), quietLogger())

	journeys, err := s.RunMany(context.Background(), "seed", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(journeys) != 5 {
		t.Fatalf("expected 5 journeys, got %d", len(journeys))
	}
	ids := make(map[string]bool)
	for _, j := range journeys {
		if j.Seed != "seed" {
			t.Errorf("journey seed mismatch: %q", j.Seed)
		}
		if ids[j.ID] {
			t.Errorf("journey IDs must be unique, repeated %q", j.ID)
		}
		ids[j.ID] = true
	}
}

func TestClassifyIntentHeuristics(t *testing.T) {
	cases := []struct {
		query string
		want  IntentType
	}{
		{"buy standing desk", IntentTransactional},
		{"standing desk price", IntentTransactional},
		{"best standing desk 2026", IntentCommercial},
		{"ikea vs herman miller desk", IntentCommercial},
		{"herman miller official website", IntentNavigational},
		{"how tall should a desk be", IntentInformational},
	}
	for _, tc := range cases {
		if got := ClassifyIntent(tc.query); got != tc.want {
			t.Errorf("%q: expected %s, got %s", tc.query, tc.want, got)
		}
	}
}

func TestDeviationBetweenBuckets(t *testing.T) {
	if got := DeviationBetween("standing desk", "standing desk frame"); got != DeviationLow {
		t.Errorf("high overlap must be low deviation, got %s", got)
	}
	if got := DeviationBetween("standing desk", "ergonomic office chair"); got != DeviationHigh {
		t.Errorf("no overlap must be high deviation, got %s", got)
	}
	if got := DeviationBetween("", "anything"); got != DeviationHigh {
		t.Errorf("empty query must be high deviation, got %s", got)
	}
}
