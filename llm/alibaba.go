// Alibaba DashScope transport using the go-openai library.
//
// Information Hiding:
// - Uses DashScope's OpenAI compatible-mode endpoint
// - Supports the qwen-turbo/plus/max model family

package llm

import (
	"context"
	"time"
)

const alibabaBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// NewAlibabaTransport creates a transport for Alibaba's DashScope
// compatible-mode API. The wire protocol is identical to OpenAI's, so the
// implementation is the OpenAI transport pointed at the DashScope endpoint.
func NewAlibabaTransport(apiKey, model string, maxTokens int, temperature float32, timeout time.Duration) *AlibabaTransport {
	inner := NewOpenAITransport(apiKey, model, maxTokens, temperature, timeout, alibabaBaseURL)
	return &AlibabaTransport{inner: inner}
}

// AlibabaTransport implements Transport for Alibaba DashScope.
type AlibabaTransport struct {
	inner *OpenAITransport
}

// Name returns the transport name.
func (t *AlibabaTransport) Name() string {
	return "alibaba"
}

// Model returns the default model.
func (t *AlibabaTransport) Model() string {
	return t.inner.Model()
}

// Send issues one completion request and returns the raw response text.
func (t *AlibabaTransport) Send(ctx context.Context, messages []ChatMessage, opts SendOptions) (string, error) {
	return t.inner.Send(ctx, messages, opts)
}

// Verify AlibabaTransport implements Transport
var _ Transport = (*AlibabaTransport)(nil)
