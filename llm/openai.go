// OpenAI-compatible transport using the go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Chat Completions API
// - Error normalization into TransportError

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITransport implements Transport for OpenAI and OpenAI-compatible endpoints.
type OpenAITransport struct {
	client      *openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewOpenAITransport creates a new OpenAI transport. An empty baseURL uses
// the official endpoint; a custom baseURL points at any compatible server.
func NewOpenAITransport(apiKey, model string, maxTokens int, temperature float32, timeout time.Duration, baseURL string) *OpenAITransport {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAITransport{
		client:      openai.NewClientWithConfig(config),
		name:        "openai",
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
	}
}

// Name returns the transport name.
func (t *OpenAITransport) Name() string {
	return t.name
}

// Model returns the default model.
func (t *OpenAITransport) Model() string {
	return t.model
}

// Send issues one completion request and returns the raw response text.
func (t *OpenAITransport) Send(ctx context.Context, messages []ChatMessage, opts SendOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	model := opts.Model
	if model == "" {
		model = t.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = t.maxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = t.temperature
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	if opts.JSONRequested {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := t.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", normalizeOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &TransportError{Err: fmt.Errorf("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// normalizeOpenAIError wraps go-openai errors with their HTTP status so the
// retry policy can classify them.
func normalizeOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{Status: reqErr.HTTPStatusCode, Err: err}
	}
	return &TransportError{Err: err}
}

// convertToOpenAIMessages converts ChatMessage to openai.ChatCompletionMessage.
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

// Verify OpenAITransport implements Transport
var _ Transport = (*OpenAITransport)(nil)
