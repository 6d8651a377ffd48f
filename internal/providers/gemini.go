package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultEmbeddingModel  = "text-embedding-004"
	geminiAPIBase          = "https://generativelanguage.googleapis.com/v1beta"
	defaultRequestTimeout  = 30 * time.Second
)

// GeminiProvider implements Provider using the Gemini REST API via net/http.
// The API key is read from the key pool on every request, so a rotation
// triggered by a concurrent retry takes effect on the next call.
type GeminiProvider struct {
	keys           *KeyPool
	baseURL        string
	defaultModel   string
	embeddingModel string
	client         *http.Client
}

// NewGeminiProvider creates a new Gemini provider backed by the given key pool.
func NewGeminiProvider(keys *KeyPool, opts ...GeminiOption) *GeminiProvider {
	p := &GeminiProvider{
		keys:           keys,
		baseURL:        geminiAPIBase,
		defaultModel:   defaultGeminiModel,
		embeddingModel: defaultEmbeddingModel,
		client:         &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type GeminiOption func(*GeminiProvider)

func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		if model != "" {
			p.defaultModel = model
		}
	}
}

func WithGeminiEmbeddingModel(model string) GeminiOption {
	return func(p *GeminiProvider) {
		if model != "" {
			p.embeddingModel = model
		}
	}
}

func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(p *GeminiProvider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(p *GeminiProvider) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := geminiGenerateRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	respBody, err := p.doRequest(ctx, fmt.Sprintf("/models/%s:generateContent", model), body)
	if err != nil {
		return nil, err
	}
	defer respBody.Close()

	var resp geminiGenerateResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: empty candidate list")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return &GenerateResult{
		Text:       text.String(),
		TokensUsed: resp.UsageMetadata.TotalTokenCount,
	}, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body := geminiEmbedRequest{
		Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
		OutputDimensionality: EmbeddingDim,
	}

	respBody, err := p.doRequest(ctx, fmt.Sprintf("/models/%s:embedContent", p.embeddingModel), body)
	if err != nil {
		return nil, err
	}
	defer respBody.Close()

	var resp geminiEmbedResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return nil, fmt.Errorf("gemini: decode embedding: %w", err)
	}

	if len(resp.Embedding.Values) != EmbeddingDim {
		return nil, fmt.Errorf("gemini: expected %d-dim embedding, got %d", EmbeddingDim, len(resp.Embedding.Values))
	}

	return resp.Embedding.Values, nil
}

func (p *GeminiProvider) doRequest(ctx context.Context, path string, body interface{}) (io.ReadCloser, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.keys.Current())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &HTTPError{
			Status:     resp.StatusCode,
			Body:       fmt.Sprintf("gemini: %s", string(respBody)),
			RetryAfter: retryAfter,
		}
	}

	return resp.Body, nil
}

// --- Gemini API types (internal) ---

type geminiGenerateRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type geminiEmbedRequest struct {
	Content              geminiContent `json:"content"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}
