package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestPool(t *testing.T, keys ...string) *KeyPool {
	t.Helper()
	pool, err := NewKeyPool(keys)
	if err != nil {
		t.Fatalf("new key pool: %v", err)
	}
	return pool
}

// TestGeminiGenerateText verifies text extraction and token accounting from a
// generateContent response, and that the pool's current key is sent.
func TestGeminiGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "key-1" {
			t.Errorf("expected api key key-1, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "Hello "}, {"text": "there"}},
				}},
			},
			"usageMetadata": map[string]int{"totalTokenCount": 42},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider(newTestPool(t, "key-1"), WithGeminiBaseURL(srv.URL))
	result, err := p.GenerateText(context.Background(), GenerateRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Text != "Hello there" {
		t.Fatalf("expected joined parts, got %q", result.Text)
	}
	if result.TokensUsed != 42 {
		t.Fatalf("expected 42 tokens, got %d", result.TokensUsed)
	}
}

// TestGeminiGenerateText_RateLimitError verifies a 429 surfaces as *HTTPError
// with the Retry-After hint parsed.
func TestGeminiGenerateText_RateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(newTestPool(t, "k"), WithGeminiBaseURL(srv.URL))
	_, err := p.GenerateText(context.Background(), GenerateRequest{Prompt: "hi"})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got: %v", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", httpErr.Status)
	}
	if httpErr.RetryAfter.Seconds() != 7 {
		t.Fatalf("expected 7s retry-after, got %v", httpErr.RetryAfter)
	}
	if !IsRateLimit(err) {
		t.Fatal("429 response must classify as rate limit")
	}
}

// TestGeminiEmbed verifies the embedding path returns the fixed-dimensionality
// vector and rejects mismatched dimensions.
func TestGeminiEmbed(t *testing.T) {
	vec := make([]float32, EmbeddingDim)
	vec[0] = 0.5

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{"values": vec},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider(newTestPool(t, "k"), WithGeminiBaseURL(srv.URL))
	got, err := p.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(got) != EmbeddingDim {
		t.Fatalf("expected %d dims, got %d", EmbeddingDim, len(got))
	}
	if got[0] != 0.5 {
		t.Fatalf("expected first value 0.5, got %v", got[0])
	}
}

// TestGeminiEmbed_WrongDimension verifies a provider returning the wrong
// vector size is treated as an error rather than passed downstream.
func TestGeminiEmbed_WrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{"values": []float32{1, 2, 3}},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider(newTestPool(t, "k"), WithGeminiBaseURL(srv.URL))
	if _, err := p.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected dimension mismatch error, got nil")
	}
}
