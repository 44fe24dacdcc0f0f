// Gateway-backed suggester and the discoverer built on the suggester
// boundary.
//
// LLMSuggester stands in for the browser-automation collaborator: it asks
// the model for plausible autocomplete completions so the pipeline runs end
// to end without a browser. Any other Suggester implementation plugs in
// behind the same interface.

package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/richinex/keymine/llm"
)

// LLMSuggester implements Suggester via the gateway.
type LLMSuggester struct {
	caller Caller
	limit  int
	logger *slog.Logger
}

// NewLLMSuggester creates a suggester that returns up to limit candidates
// per query (default 10, the autocomplete convention).
func NewLLMSuggester(caller Caller, limit int, logger *slog.Logger) *LLMSuggester {
	if limit <= 0 {
		limit = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMSuggester{caller: caller, limit: limit, logger: logger}
}

const suggesterSystemPrompt = `You simulate a search engine's autocomplete. ` +
	`Given a query, return the ranked completions a real search engine would show. ` +
	`Respond with JSON only: {"suggestions": ["<completion>", ...]}`

// Suggestions returns ranked completions for a query. A degraded gateway
// result yields an empty list and no error; the round simply finds nothing.
func (s *LLMSuggester) Suggestions(ctx context.Context, query string) ([]Suggestion, error) {
	res, err := s.caller.Call(ctx, llm.Request{
		System:     suggesterSystemPrompt,
		Prompt:     fmt.Sprintf("Query: %s\nReturn up to %d completions.", query, s.limit),
		StrictJSON: true,
	})
	if err != nil {
		return nil, err
	}
	if res.Degraded {
		s.logger.Warn("suggestion call degraded, returning no candidates",
			"query", query, "message", res.Message)
		return []Suggestion{}, nil
	}

	obj, ok := res.Object()
	if !ok {
		return []Suggestion{}, nil
	}

	items, _ := obj["suggestions"].([]any)
	suggestions := make([]Suggestion, 0, len(items))
	for i, item := range items {
		q, ok := item.(string)
		if !ok || strings.TrimSpace(q) == "" {
			continue
		}
		suggestions = append(suggestions, Suggestion{Query: q, Position: i})
		if len(suggestions) == s.limit {
			break
		}
	}
	return suggestions, nil
}

// Verify LLMSuggester implements Suggester
var _ Suggester = (*LLMSuggester)(nil)

// SuggestDiscoverer adapts a Suggester into the controller's discovery
// step: each round expands the seed plus the most recent discoveries.
type SuggestDiscoverer struct {
	suggester Suggester
	// fanout bounds how many recent discoveries are expanded per round.
	fanout int
}

// NewSuggestDiscoverer creates a discoverer over a suggester.
func NewSuggestDiscoverer(suggester Suggester, fanout int) *SuggestDiscoverer {
	if fanout <= 0 {
		fanout = 3
	}
	return &SuggestDiscoverer{suggester: suggester, fanout: fanout}
}

// Discover fetches suggestions for the seed query and a window of recent
// discoveries. Duplicate handling is the controller's job.
func (d *SuggestDiscoverer) Discover(ctx context.Context, query string, iteration int, seen []string) ([]string, error) {
	expand := []string{query}
	// Later rounds push outward from the frontier instead of re-expanding
	// the seed alone.
	if iteration > 1 && len(seen) > 0 {
		start := len(seen) - d.fanout
		if start < 0 {
			start = 0
		}
		expand = append(expand, seen[start:]...)
	}

	var out []string
	for _, q := range expand {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		suggestions, err := d.suggester.Suggestions(ctx, q)
		if err != nil {
			return out, err
		}
		for _, s := range suggestions {
			out = append(out, s.Query)
		}
	}
	return out, nil
}

// Verify SuggestDiscoverer implements Discoverer
var _ Discoverer = (*SuggestDiscoverer)(nil)
