// Transport abstraction for text-generation backends.
//
// Each transport implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error normalization
//
// The backend family is selected once at configuration time via TransportKind,
// never re-derived from model-name strings per call.

package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// Transport is the abstract interface for a text-generation backend.
// Send returns the raw completion text; structural repair happens upstream.
type Transport interface {
	// Name returns the transport name (for logging/debugging).
	Name() string

	// Model returns the default model for this transport.
	Model() string

	// Send issues one completion request and returns the raw response text.
	Send(ctx context.Context, messages []ChatMessage, opts SendOptions) (string, error)
}

// TransportKind identifies a backend family.
type TransportKind int

const (
	// OpenAICompatible is the OpenAI Chat Completions family.
	OpenAICompatible TransportKind = iota
	// AnthropicCompatible is the Anthropic Messages family.
	AnthropicCompatible
	// AlibabaCompatible is the Alibaba DashScope compatible-mode family.
	AlibabaCompatible
	// GeminiCompatible is the Google Gemini family.
	GeminiCompatible
)

// String returns the string representation of the transport kind.
func (k TransportKind) String() string {
	switch k {
	case OpenAICompatible:
		return "openai"
	case AnthropicCompatible:
		return "anthropic"
	case AlibabaCompatible:
		return "alibaba"
	case GeminiCompatible:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this kind's API key.
func (k TransportKind) EnvVar() string {
	switch k {
	case OpenAICompatible:
		return "OPENAI_API_KEY"
	case AnthropicCompatible:
		return "ANTHROPIC_API_KEY"
	case AlibabaCompatible:
		return "DASHSCOPE_API_KEY"
	case GeminiCompatible:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the default model for this kind.
func (k TransportKind) DefaultModel() string {
	switch k {
	case OpenAICompatible:
		return ModelOpenAIGPT4oMini
	case AnthropicCompatible:
		return ModelAnthropicClaudeSonnet4
	case AlibabaCompatible:
		return ModelAlibabaQwenPlus
	case GeminiCompatible:
		return ModelGeminiFlash2
	default:
		return ""
	}
}

// ParseTransportKind parses a kind from string (case-insensitive).
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(s) {
	case "openai", "gpt":
		return OpenAICompatible, nil
	case "anthropic", "claude":
		return AnthropicCompatible, nil
	case "alibaba", "qwen", "dashscope":
		return AlibabaCompatible, nil
	case "gemini", "google":
		return GeminiCompatible, nil
	default:
		return 0, fmt.Errorf("unknown transport: %s", s)
	}
}

// FromEnv creates a transport with defaults, reading the API key from the environment.
func (k TransportKind) FromEnv() (Transport, error) {
	return NewTransportBuilder(k).FromEnv()
}

// Model starts configuring this kind with a specific model.
func (k TransportKind) Model(model string) *TransportBuilder {
	return NewTransportBuilder(k).Model(model)
}

// TransportBuilder configures and constructs a Transport.
type TransportBuilder struct {
	kind        TransportKind
	model       string
	maxTokens   int
	temperature *float32
	timeout     time.Duration
	baseURL     string
}

// NewTransportBuilder creates a builder for the given backend family.
func NewTransportBuilder(kind TransportKind) *TransportBuilder {
	return &TransportBuilder{kind: kind}
}

// Model sets the model to use.
func (b *TransportBuilder) Model(model string) *TransportBuilder {
	b.model = model
	return b
}

// MaxTokens sets the maximum response tokens.
func (b *TransportBuilder) MaxTokens(tokens int) *TransportBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets the sampling temperature.
func (b *TransportBuilder) Temperature(temp float32) *TransportBuilder {
	b.temperature = &temp
	return b
}

// Timeout sets the fixed per-call timeout.
func (b *TransportBuilder) Timeout(d time.Duration) *TransportBuilder {
	b.timeout = d
	return b
}

// BaseURL overrides the API endpoint (OpenAI-compatible kinds only).
func (b *TransportBuilder) BaseURL(url string) *TransportBuilder {
	b.baseURL = url
	return b
}

// FromEnv builds the transport, reading the API key from the environment.
func (b *TransportBuilder) FromEnv() (Transport, error) {
	envVar := b.kind.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.kind, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the transport with an explicit API key.
func (b *TransportBuilder) APIKey(key string) (Transport, error) {
	return b.build(key)
}

func (b *TransportBuilder) build(apiKey string) (Transport, error) {
	model := b.model
	if model == "" {
		model = b.kind.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	temperature := float32(0.7) // default
	if b.temperature != nil {
		temperature = *b.temperature
	}

	timeout := b.timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	switch b.kind {
	case OpenAICompatible:
		return NewOpenAITransport(apiKey, model, maxTokens, temperature, timeout, b.baseURL), nil
	case AnthropicCompatible:
		return NewAnthropicTransport(apiKey, model, maxTokens, temperature, timeout), nil
	case AlibabaCompatible:
		return NewAlibabaTransport(apiKey, model, maxTokens, temperature, timeout), nil
	case GeminiCompatible:
		return NewGeminiTransport(apiKey, model, maxTokens, temperature, timeout), nil
	default:
		return nil, fmt.Errorf("unknown transport kind: %v", b.kind)
	}
}

// Model identifier constants for the supported backends.

// OpenAI model identifiers
const (
	ModelOpenAIGPT4o     = "gpt-4o"
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
	ModelOpenAIO3Mini    = "o3-mini"
)

// Anthropic model identifiers
const (
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelAnthropicClaudeHaiku4  = "claude-haiku-4-20250514"
)

// Alibaba DashScope model identifiers
const (
	ModelAlibabaQwenPlus  = "qwen-plus"
	ModelAlibabaQwenTurbo = "qwen-turbo"
	ModelAlibabaQwenMax   = "qwen-max"
)

// Gemini model identifiers
const (
	ModelGeminiFlash2 = "gemini-2.0-flash"
	ModelGeminiPro2   = "gemini-2.0-pro"
)
