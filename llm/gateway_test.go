package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/richinex/keymine/storage"
)

// scriptTransport returns canned responses in order. A response beginning
// with "ERR:" becomes a transport error with the status that follows.
type scriptTransport struct {
	script []string
	calls  int
	sent   [][]ChatMessage
}

func (t *scriptTransport) Name() string  { return "script" }
func (t *scriptTransport) Model() string { return "script-model" }

func (t *scriptTransport) Send(ctx context.Context, messages []ChatMessage, opts SendOptions) (string, error) {
	t.sent = append(t.sent, messages)
	if t.calls >= len(t.script) {
		return "", errors.New("script exhausted")
	}
	step := t.script[t.calls]
	t.calls++

	if strings.HasPrefix(step, "ERR:") {
		status := 0
		switch strings.TrimPrefix(step, "ERR:") {
		case "429":
			status = 429
		case "500":
			status = 500
		case "401":
			status = 401
		}
		return "", &TransportError{Status: status, Err: errors.New(step)}
	}
	return step, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testGateway(transport Transport) *Gateway {
	g := NewGateway(transport).WithLogger(quietLogger())
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return g
}

func TestCallRejectsEmptyPrompt(t *testing.T) {
	g := testGateway(&scriptTransport{})

	_, err := g.Call(context.Background(), Request{})
	if !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestCallSuccessFirstAttempt(t *testing.T) {
	transport := &scriptTransport{script: []string{`{"score": 8}`}}
	g := testGateway(transport)

	result, err := g.Call(context.Background(), Request{Prompt: "analyze"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded || result.FromCache {
		t.Errorf("unexpected result flags: %+v", result)
	}
	obj, ok := result.Object()
	if !ok || obj["score"] != 8.0 {
		t.Errorf("unexpected parsed object: %v", obj)
	}
}

func TestCallRetriesTransientFailures(t *testing.T) {
	transport := &scriptTransport{script: []string{"ERR:429", "ERR:500", `{"ok": true}`}}
	g := testGateway(transport)

	result, err := g.Call(context.Background(), Request{Prompt: "analyze"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Fatalf("expected recovery within budget, got degraded: %s", result.Message)
	}
	if transport.calls != 3 {
		t.Errorf("expected 3 transport calls, got %d", transport.calls)
	}
}

func TestCallFatalErrorPropagates(t *testing.T) {
	transport := &scriptTransport{script: []string{"ERR:401"}}
	g := testGateway(transport)

	_, err := g.Call(context.Background(), Request{Prompt: "analyze"})
	var tErr *TransportError
	if !errors.As(err, &tErr) || tErr.Status != 401 {
		t.Fatalf("expected 401 transport error, got %v", err)
	}
	if transport.calls != 1 {
		t.Errorf("fatal errors must not be retried, got %d calls", transport.calls)
	}
}

func TestCallDegradedAfterExhaustion(t *testing.T) {
	transport := &scriptTransport{script: []string{"ERR:500", "ERR:500", "ERR:500"}}
	g := testGateway(transport)

	result, err := g.Call(context.Background(), Request{Prompt: "analyze"})
	if err != nil {
		t.Fatalf("exhaustion must not surface as an error, got %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded result")
	}
	if result.Message == "" {
		t.Error("degraded result must carry a failure message")
	}
	if transport.calls != 3 {
		t.Errorf("expected the full retry budget, got %d calls", transport.calls)
	}
}

func TestCallStrictJSONRetriesNonObject(t *testing.T) {
	transport := &scriptTransport{script: []string{
		"sorry, I cannot answer in JSON",
		`{"score": 7}`,
	}}
	g := testGateway(transport)

	result, err := g.Call(context.Background(), Request{Prompt: "analyze", StrictJSON: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Fatalf("expected recovery on second attempt: %s", result.Message)
	}
	if transport.calls != 2 {
		t.Errorf("expected a format retry, got %d calls", transport.calls)
	}
}

func TestCallStrictJSONRejectsEmptyObject(t *testing.T) {
	transport := &scriptTransport{script: []string{`{}`, `{}`, `{}`}}
	g := testGateway(transport)

	result, err := g.Call(context.Background(), Request{Prompt: "analyze", StrictJSON: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Degraded {
		t.Fatal("empty objects must exhaust the strict-format budget")
	}
}

func TestCallLenientAcceptsProse(t *testing.T) {
	transport := &scriptTransport{script: []string{"just some prose"}}
	g := testGateway(transport)

	result, err := g.Call(context.Background(), Request{Prompt: "summarize"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Fatal("lenient calls must accept unstructured output")
	}
	if !result.Parsed.ParseError {
		t.Error("unstructured output should carry the parse sentinel")
	}
	if result.Raw != "just some prose" {
		t.Errorf("raw text must be preserved, got %q", result.Raw)
	}
}

func TestCallCacheHitSkipsTransport(t *testing.T) {
	transport := &scriptTransport{script: []string{`{"n": 1}`}}
	cache := storage.NewResponseCache(storage.NewMemoryStore(), 0, quietLogger())
	g := testGateway(transport).WithCache(cache)

	first, err := g.Call(context.Background(), Request{Prompt: "analyze"})
	if err != nil || first.FromCache {
		t.Fatalf("first call must miss: %+v, %v", first, err)
	}

	second, err := g.Call(context.Background(), Request{Prompt: "analyze"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.FromCache {
		t.Fatal("identical call must hit the cache")
	}
	if transport.calls != 1 {
		t.Errorf("cache hit must not touch the transport, got %d calls", transport.calls)
	}
	if second.Raw != first.Raw {
		t.Error("cached response must match the original")
	}
}

func TestCallDistinctRequestsMissCache(t *testing.T) {
	transport := &scriptTransport{script: []string{`{"n": 1}`, `{"n": 2}`}}
	cache := storage.NewResponseCache(storage.NewMemoryStore(), 0, quietLogger())
	g := testGateway(transport).WithCache(cache)

	g.Call(context.Background(), Request{Prompt: "first"})
	g.Call(context.Background(), Request{Prompt: "second"})

	if transport.calls != 2 {
		t.Errorf("distinct prompts must each reach the transport, got %d calls", transport.calls)
	}
}

func TestCallSessionSkipsCache(t *testing.T) {
	transport := &scriptTransport{script: []string{`{"n": 1}`, `{"n": 2}`}}
	cache := storage.NewResponseCache(storage.NewMemoryStore(), 0, quietLogger())
	sessions := NewSessionContext(10, 0, quietLogger())
	g := testGateway(transport).WithCache(cache).WithSessions(sessions)

	req := Request{Prompt: "same prompt", SessionID: "s1"}
	g.Call(context.Background(), req)
	g.Call(context.Background(), req)

	if transport.calls != 2 {
		t.Errorf("session calls must bypass the cache, got %d calls", transport.calls)
	}
}

func TestCallSessionAccumulatesHistory(t *testing.T) {
	transport := &scriptTransport{script: []string{"first answer", "second answer"}}
	sessions := NewSessionContext(10, 0, quietLogger())
	g := testGateway(transport).WithSessions(sessions)

	g.Call(context.Background(), Request{Prompt: "q1", System: "sys", SessionID: "s1"})
	g.Call(context.Background(), Request{Prompt: "q2", SessionID: "s1"})

	// Second call carries system, q1, first answer, q2.
	second := transport.sent[1]
	if len(second) != 4 {
		t.Fatalf("expected 4 messages on second turn, got %d", len(second))
	}
	if second[0].Role != "system" || second[2].Content != "first answer" {
		t.Errorf("unexpected second-turn messages: %+v", second)
	}

	// Stored history: system + 2 turns of user/assistant.
	if n := sessions.Len("s1"); n != 5 {
		t.Errorf("expected 5 stored messages, got %d", n)
	}
}

func TestCloseSessionDropsHistory(t *testing.T) {
	transport := &scriptTransport{script: []string{"answer"}}
	sessions := NewSessionContext(10, 0, quietLogger())
	g := testGateway(transport).WithSessions(sessions)

	g.Call(context.Background(), Request{Prompt: "q", SessionID: "s1"})
	g.CloseSession("s1")

	if sessions.Len("s1") != 0 {
		t.Error("closed session must be destroyed")
	}
}

func TestCallCancelledContext(t *testing.T) {
	transport := &scriptTransport{script: []string{"ERR:500", `{"ok": true}`}}
	g := NewGateway(transport).WithLogger(quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Call(ctx, Request{Prompt: "analyze"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to propagate, got %v", err)
	}
}

func TestFingerprintStability(t *testing.T) {
	messages := []ChatMessage{SystemMessage("sys"), UserMessage("prompt")}

	a := Fingerprint(messages, "m", 0.7, true)
	b := Fingerprint(messages, "m", 0.7, true)
	if a != b {
		t.Error("identical inputs must fingerprint identically")
	}

	if Fingerprint(messages, "m", 0.7, false) == a {
		t.Error("format flag must change the fingerprint")
	}
	if Fingerprint(messages, "other", 0.7, true) == a {
		t.Error("model must change the fingerprint")
	}
	if Fingerprint(messages, "m", 0.8, true) == a {
		t.Error("temperature must change the fingerprint")
	}
	if Fingerprint([]ChatMessage{UserMessage("prompt")}, "m", 0.7, true) == a {
		t.Error("messages must change the fingerprint")
	}
}
