// Anthropic transport using the official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Anthropic Messages API
// - System message extraction (Anthropic carries it outside the message list)

package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicTransport implements Transport for Anthropic Claude.
type AnthropicTransport struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	timeout     time.Duration
}

// NewAnthropicTransport creates a new Anthropic transport.
func NewAnthropicTransport(apiKey, model string, maxTokens int, temperature float32, timeout time.Duration) *AnthropicTransport {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicTransport{
		client:      client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
		timeout:     timeout,
	}
}

// Name returns the transport name.
func (t *AnthropicTransport) Name() string {
	return "anthropic"
}

// Model returns the default model.
func (t *AnthropicTransport) Model() string {
	return t.model
}

// Send issues one completion request and returns the raw response text.
// Anthropic has no native JSON response mode; JSONRequested is honored by
// the caller's prompt instructions and the repair layer.
func (t *AnthropicTransport) Send(ctx context.Context, messages []ChatMessage, opts SendOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)

	model := opts.Model
	if model == "" {
		model = t.model
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens == 0 {
		maxTokens = t.maxTokens
	}
	temperature := float64(opts.Temperature)
	if temperature == 0 {
		temperature = t.temperature
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(temperature),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	message, err := t.client.Messages.New(ctx, params)
	if err != nil {
		return "", normalizeAnthropicError(err)
	}

	content := ""
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += variant.Text
		}
	}

	return content, nil
}

// normalizeAnthropicError wraps SDK errors with their HTTP status.
func normalizeAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &TransportError{Status: apiErr.StatusCode, Err: err}
	}
	return &TransportError{Err: err}
}

// convertToAnthropicMessages converts ChatMessage to Anthropic format.
// Extracts the system message and returns it separately.
func convertToAnthropicMessages(messages []ChatMessage) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemPrompt = msg.Content
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case "assistant":
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return anthropicMessages, systemPrompt
}

// Verify AnthropicTransport implements Transport
var _ Transport = (*AnthropicTransport)(nil)
