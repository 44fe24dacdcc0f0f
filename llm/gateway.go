// Gateway - the orchestration point for text-generation calls.
//
// One call flows: build messages (system + optional session history + user
// turn) -> fingerprint -> cache lookup -> retry loop over the transport ->
// repair parse -> cache/session update. Conversational calls (SessionID set)
// skip the cache entirely since they are not idempotent.
//
// A fully exhausted retry budget yields a degraded Result rather than an
// error, so one failed sub-analysis does not abort a multi-step workflow.
// Only caller mistakes (empty prompt, cancellation, fatal API rejections)
// propagate as errors.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/richinex/keymine/internal/repair"
	"github.com/richinex/keymine/storage"
)

// Request describes one gateway call.
type Request struct {
	// System is the system instruction. For session calls it is only applied
	// on the session's first turn.
	System string
	// Prompt is the user turn. Required.
	Prompt string
	// SessionID gives the call conversational memory and disables caching.
	SessionID string
	// Model overrides the transport's default model.
	Model string
	// Temperature overrides the transport default when non-nil.
	Temperature *float32
	// MaxTokens overrides the transport default when non-zero.
	MaxTokens int
	// StrictJSON requires a non-empty keyed JSON object; anything else is
	// treated as a retryable failure.
	StrictJSON bool
}

// Result is the outcome of a gateway call. When Degraded is set the retry
// budget was exhausted and Message carries the last failure; callers decide
// whether a degraded result is acceptable to feed forward.
type Result struct {
	Raw       string
	Parsed    repair.Result
	FromCache bool
	Degraded  bool
	Message   string
}

// Object returns the parsed response as a keyed object, if it is one.
func (r Result) Object() (map[string]any, bool) {
	return r.Parsed.Object()
}

// Gateway coordinates transport calls with caching, retries, repair
// parsing, and session state.
type Gateway struct {
	transport Transport
	cache     *storage.ResponseCache
	sessions  *SessionContext
	retry     RetryPolicy
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewGateway creates a gateway over a transport with the default retry
// policy, no cache, and no session store.
func NewGateway(transport Transport) *Gateway {
	return &Gateway{
		transport: transport,
		retry:     DefaultRetryPolicy(),
		logger:    slog.Default(),
		sleep:     sleepContext,
	}
}

// WithCache enables response caching for non-session calls.
func (g *Gateway) WithCache(cache *storage.ResponseCache) *Gateway {
	g.cache = cache
	return g
}

// WithSessions enables conversational memory.
func (g *Gateway) WithSessions(sessions *SessionContext) *Gateway {
	g.sessions = sessions
	return g
}

// WithRetry overrides the retry policy.
func (g *Gateway) WithRetry(policy RetryPolicy) *Gateway {
	g.retry = policy
	return g
}

// WithLogger overrides the logging sink.
func (g *Gateway) WithLogger(logger *slog.Logger) *Gateway {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Call issues one request through the full pipeline. The returned error is
// non-nil only for caller mistakes and cancellation; transport and format
// failures that outlast the retry budget surface as a degraded Result.
func (g *Gateway) Call(ctx context.Context, req Request) (Result, error) {
	if req.Prompt == "" {
		return Result{}, ErrEmptyPrompt
	}
	if g.transport == nil {
		return Result{}, fmt.Errorf("gateway has no transport")
	}

	opts := g.sendOptions(req)
	messages := g.buildMessages(req)

	// Conversational calls are not idempotent; skip the cache entirely.
	useCache := req.SessionID == "" && g.cache != nil
	fp := Fingerprint(messages, opts.Model, opts.Temperature, opts.JSONRequested)

	if useCache {
		if entry, ok := g.cache.Get(ctx, fp); ok {
			g.logger.Debug("cache hit", "fingerprint", fp)
			return Result{
				Raw:       entry.Response,
				Parsed:    repair.Parse(entry.Response),
				FromCache: true,
			}, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := g.sleep(ctx, g.retry.Delay(attempt-1)); err != nil {
				return Result{}, err
			}
		}

		raw, err := g.transport.Send(ctx, messages, opts)
		if err != nil {
			if !g.retry.ShouldRetry(err) {
				return Result{}, err
			}
			g.logger.Warn("transport call failed, will retry",
				"transport", g.transport.Name(),
				"attempt", attempt,
				"error", err)
			lastErr = err
			continue
		}

		parsed := repair.Parse(raw)
		if req.StrictJSON && !parsed.HasObject() {
			// Retry only when a non-empty object was explicitly required.
			lastErr = fmt.Errorf("%w: strategy=%s", ErrMalformedOutput, parsed.Strategy)
			g.logger.Warn("strict-format response rejected, will retry",
				"attempt", attempt,
				"strategy", parsed.Strategy.String())
			continue
		}

		g.commit(ctx, req, fp, raw, useCache, opts.Model)
		return Result{Raw: raw, Parsed: parsed}, nil
	}

	g.logger.Error("retry budget exhausted, returning degraded result",
		"transport", g.transport.Name(),
		"attempts", g.retry.MaxAttempts,
		"error", lastErr)

	return Result{
		Degraded: true,
		Message:  fmt.Sprintf("call failed after %d attempts: %v", g.retry.MaxAttempts, lastErr),
	}, nil
}

// CloseSession destroys a session once the caller signals completion.
func (g *Gateway) CloseSession(id string) {
	if g.sessions != nil {
		g.sessions.Delete(id)
	}
}

// buildMessages assembles the message list for the call. Session calls use
// the stored history (seeding the system message on first use); one-shot
// calls carry system + user only.
func (g *Gateway) buildMessages(req Request) []ChatMessage {
	if req.SessionID != "" && g.sessions != nil {
		history := g.sessions.History(req.SessionID)
		if len(history) == 0 && req.System != "" {
			g.sessions.Append(req.SessionID, SystemMessage(req.System))
			history = g.sessions.History(req.SessionID)
		}
		return append(history, UserMessage(req.Prompt))
	}

	var messages []ChatMessage
	if req.System != "" {
		messages = append(messages, SystemMessage(req.System))
	}
	return append(messages, UserMessage(req.Prompt))
}

func (g *Gateway) sendOptions(req Request) SendOptions {
	opts := SendOptions{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		JSONRequested: req.StrictJSON,
	}
	if opts.Model == "" {
		opts.Model = g.transport.Model()
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	return opts
}

// commit applies the side effects of a successful call: session calls
// record both turns, one-shot calls populate the cache.
func (g *Gateway) commit(ctx context.Context, req Request, fp, raw string, useCache bool, model string) {
	if req.SessionID != "" && g.sessions != nil {
		g.sessions.Append(req.SessionID, UserMessage(req.Prompt))
		g.sessions.Append(req.SessionID, AssistantMessage(raw))
		return
	}
	if useCache {
		g.cache.Put(ctx, fp, raw, model)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
