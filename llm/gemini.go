// Google Gemini transport using the official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - System instruction handling via config
// - Deferred reporting of client initialization errors

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiTransport implements Transport for Google Gemini.
type GeminiTransport struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	timeout     time.Duration
	initErr     error // Stores client initialization error for deferred reporting
}

// NewGeminiTransport creates a new Gemini transport.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiTransport(apiKey, model string, maxTokens int, temperature float32, timeout time.Duration) *GeminiTransport {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiTransport{
			model:       model,
			maxTokens:   int32(maxTokens),
			temperature: temperature,
			timeout:     timeout,
			initErr:     fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiTransport{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
		timeout:     timeout,
	}
}

// Name returns the transport name.
func (t *GeminiTransport) Name() string {
	return "gemini"
}

// Model returns the default model.
func (t *GeminiTransport) Model() string {
	return t.model
}

// Send issues one completion request and returns the raw response text.
func (t *GeminiTransport) Send(ctx context.Context, messages []ChatMessage, opts SendOptions) (string, error) {
	if t.initErr != nil {
		return "", t.initErr
	}
	if t.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	contents, systemInstruction := convertToGeminiContents(messages)

	model := opts.Model
	if model == "" {
		model = t.model
	}
	maxTokens := int32(opts.MaxTokens)
	if maxTokens == 0 {
		maxTokens = t.maxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = t.temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: maxTokens,
	}
	if opts.JSONRequested {
		config.ResponseMIMEType = "application/json"
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	response, err := t.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", normalizeGeminiError(err)
	}

	content := response.Text()
	if content == "" {
		return "", &TransportError{Err: fmt.Errorf("empty response from Gemini")}
	}

	return content, nil
}

// normalizeGeminiError wraps SDK errors with their HTTP status.
func normalizeGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{Status: apiErr.Code, Err: err}
	}
	return &TransportError{Err: err}
}

// convertToGeminiContents converts ChatMessage to Gemini format.
// Extracts the system message and returns it separately.
func convertToGeminiContents(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemInstruction = msg.Content
		case "user":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	return contents, systemInstruction
}

// Verify GeminiTransport implements Transport
var _ Transport = (*GeminiTransport)(nil)
