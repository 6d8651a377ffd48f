package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chatdesk-ai/chatdesk/internal/providers"
	"github.com/chatdesk-ai/chatdesk/internal/store"
)

// Confidence heuristic constants. The heuristic is a local score over the
// generated text, not a provider-calibrated value, and the exact arithmetic
// is load-bearing: the escalation threshold downstream is tuned against it.
const (
	confidenceBase        = 0.8
	confidenceUncertainty = 0.1  // per occurrence of an uncertainty phrase
	confidenceShortBonus  = 0.05 // responses under shortResponseRunes
	confidenceLongPenalty = 0.1  // responses over longResponseRunes
	confidenceFloor       = 0.3
	confidenceCeil        = 1.0

	shortResponseRunes = 100
	longResponseRunes  = 500
)

// defaultUncertaintyPhrases flags hedging in generated output. The list is
// data: deployments override it from configuration.
var defaultUncertaintyPhrases = []string{
	"i'm not sure",
	"i am not sure",
	"i don't know",
	"i do not know",
	"not certain",
	"cannot confirm",
	"please contact",
	"recommend contacting",
	"human support agent",
	"ไม่แน่ใจ",
	"ไม่ทราบ",
	"ติดต่อเจ้าหน้าที่",
}

// GeneratedResponse is the output of response generation.
type GeneratedResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	TokensUsed int     `json:"tokens_used,omitempty"`
}

// Suggestion is one reply candidate proposed to a human agent.
type Suggestion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Responder generates customer-facing replies and staff reply suggestions.
type Responder struct {
	provider    providers.Provider
	retry       providers.RetryConfig
	model       string
	timeout     time.Duration
	uncertainty []string
}

// ResponderConfig configures a new Responder.
type ResponderConfig struct {
	Provider           providers.Provider
	Retry              providers.RetryConfig
	Model              string
	Timeout            time.Duration // per-call deadline (default 30s)
	UncertaintyPhrases []string      // overrides the built-in hedging list
}

// NewResponder creates a response generator.
func NewResponder(cfg ResponderConfig) *Responder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	phrases := cfg.UncertaintyPhrases
	if len(phrases) == 0 {
		phrases = defaultUncertaintyPhrases
	}
	return &Responder{
		provider:    cfg.Provider,
		retry:       cfg.Retry,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		uncertainty: phrases,
	}
}

// Generate produces a reply to the customer message, grounded in the supplied
// context documents. The returned confidence comes from ScoreConfidence over
// the generated text. Errors surface only after retry exhaustion.
func (r *Responder) Generate(ctx context.Context, message string, docs []ContextDocument, profile store.CustomerProfile) (*GeneratedResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt := responsePrompt(message, docs, profile)
	result, err := providers.ExecuteWithRetry(ctx, r.retry, func() (*providers.GenerateResult, error) {
		return r.provider.GenerateText(ctx, providers.GenerateRequest{
			Prompt:      prompt,
			Model:       r.model,
			Temperature: 0.7,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}

	return &GeneratedResponse{
		Text:       result.Text,
		Confidence: r.ScoreConfidence(result.Text),
		TokensUsed: result.TokensUsed,
	}, nil
}

// ScoreConfidence computes the heuristic confidence for a generated reply:
// base 0.8, minus 0.1 per uncertainty-phrase occurrence, plus 0.05 for short
// replies, minus 0.1 for very long ones, clamped to [0.3, 1.0]. Lengths are
// rune counts so Thai text is measured by character, not byte.
func (r *Responder) ScoreConfidence(text string) float64 {
	score := confidenceBase

	lower := strings.ToLower(text)
	for _, phrase := range r.uncertainty {
		score -= confidenceUncertainty * float64(strings.Count(lower, strings.ToLower(phrase)))
	}

	runes := utf8.RuneCountInString(text)
	if runes < shortResponseRunes {
		score += confidenceShortBonus
	} else if runes > longResponseRunes {
		score -= confidenceLongPenalty
	}

	return clamp(score, confidenceFloor, confidenceCeil)
}

// Suggest proposes up to three reply candidates for a human agent, ranked
// best first. Unlike customer-facing generation, a parse failure here is an
// error: agents should see nothing rather than malformed suggestions.
func (r *Responder) Suggest(ctx context.Context, message string, docs []ContextDocument) ([]Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt := suggestionPrompt(message, docs)
	result, err := providers.ExecuteWithRetry(ctx, r.retry, func() (*providers.GenerateResult, error) {
		return r.provider.GenerateText(ctx, providers.GenerateRequest{
			Prompt:      prompt,
			Model:       r.model,
			Temperature: 0.5,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	raw, ok := extractJSONArray(result.Text)
	if !ok {
		return nil, fmt.Errorf("no JSON array in suggestion response")
	}
	var out []Suggestion
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	if len(out) > 3 {
		out = out[:3]
	}
	for i := range out {
		out[i].Confidence = clamp(out[i].Confidence, 0, 1)
	}
	return out, nil
}

// extractJSONArray returns the first balanced top-level [...] substring,
// string-aware like extractJSONObject.
func extractJSONArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
