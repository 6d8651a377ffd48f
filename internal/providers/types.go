package providers

import (
	"context"
	"fmt"
	"time"
)

// EmbeddingDim is the dimensionality every embedding provider must return.
// The vector index rejects vectors of any other length.
const EmbeddingDim = 768

// Provider is the interface all generation/embedding providers must implement.
type Provider interface {
	// GenerateText sends a prompt to the model and returns the generated text
	// with token usage.
	GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// Embed returns the embedding vector for a text. The result always has
	// EmbeddingDim elements.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider identifier (e.g. "gemini").
	Name() string
}

// GenerateRequest contains the input for a GenerateText call.
type GenerateRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// GenerateResult is the result of a GenerateText call.
type GenerateResult struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

// HTTPError is a non-200 response from a provider API.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("provider HTTP %d: %s", e.Status, e.Body)
}

// ParseRetryAfter converts a Retry-After header value (seconds) to a duration.
// Returns 0 for empty or unparseable values.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
