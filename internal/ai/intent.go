// Package ai implements the model-facing pipeline stages: intent
// classification, historical-context retrieval, and response generation.
// Every stage degrades to a documented default instead of propagating
// provider failures — the orchestrator in internal/chat only ever sees
// well-formed results or a retry-exhaustion error it can convert to a safe
// fallback.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chatdesk-ai/chatdesk/internal/providers"
)

// Intent is a coarse category describing what the customer wants.
type Intent string

const (
	IntentOpenAccount    Intent = "OPEN_ACCOUNT"
	IntentTransfer       Intent = "TRANSFER"
	IntentCard           Intent = "CARD"
	IntentLoan           Intent = "LOAN"
	IntentComplaint      Intent = "COMPLAINT"
	IntentGeneralInquiry Intent = "GENERAL_INQUIRY"
	IntentGreeting       Intent = "GREETING"
	IntentOther          Intent = "OTHER"
)

var knownIntents = map[Intent]bool{
	IntentOpenAccount:    true,
	IntentTransfer:       true,
	IntentCard:           true,
	IntentLoan:           true,
	IntentComplaint:      true,
	IntentGeneralInquiry: true,
	IntentGreeting:       true,
	IntentOther:          true,
}

// IntentResult is the structured output of intent classification.
type IntentResult struct {
	Intent              Intent   `json:"intent"`
	Confidence          float64  `json:"confidence"`
	Keywords            []string `json:"keywords,omitempty"`
	SuggestedDepartment string   `json:"suggested_department,omitempty"`
	Summary             string   `json:"summary,omitempty"`
	Err                 bool     `json:"error,omitempty"` // classification fell back to defaults
}

// fallbackIntentConfidence is deliberately low so a failed classification
// leans the escalation evaluator toward a human handoff.
const fallbackIntentConfidence = 0.3

// defaultIntentResult is returned whenever classification cannot produce a
// parseable result. GENERAL_INQUIRY, not OTHER: the safer default for the
// downstream escalation rules.
func defaultIntentResult() IntentResult {
	return IntentResult{
		Intent:     IntentGeneralInquiry,
		Confidence: fallbackIntentConfidence,
		Err:        true,
	}
}

// Classifier extracts a structured IntentResult from free text using the
// generation capability.
type Classifier struct {
	provider providers.Provider
	retry    providers.RetryConfig
	model    string
	timeout  time.Duration
}

// ClassifierConfig configures a new Classifier.
type ClassifierConfig struct {
	Provider providers.Provider
	Retry    providers.RetryConfig
	Model    string        // override the provider default
	Timeout  time.Duration // per-call deadline (default 30s)
}

// NewClassifier creates an intent classifier.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Classifier{
		provider: cfg.Provider,
		retry:    cfg.Retry,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
	}
}

// DetectIntent classifies a customer message. It never returns an error:
// provider or parse failures yield the documented GENERAL_INQUIRY default
// with the error flag set.
func (c *Classifier) DetectIntent(ctx context.Context, text string) IntentResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := intentPrompt(text)

	result, err := providers.ExecuteWithRetry(ctx, c.retry, func() (*providers.GenerateResult, error) {
		return c.provider.GenerateText(ctx, providers.GenerateRequest{
			Prompt:      prompt,
			Model:       c.model,
			Temperature: 0.1,
		})
	})
	if err != nil {
		slog.Warn("intent classification failed, using default", "error", err)
		return defaultIntentResult()
	}

	parsed, err := parseIntentResponse(result.Text)
	if err != nil {
		slog.Warn("intent response unparseable, using default", "error", err)
		return defaultIntentResult()
	}
	return parsed
}

func parseIntentResponse(text string) (IntentResult, error) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return IntentResult{}, fmt.Errorf("no JSON object in response")
	}

	var out IntentResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return IntentResult{}, fmt.Errorf("decode intent JSON: %w", err)
	}

	out.Intent = Intent(strings.ToUpper(strings.TrimSpace(string(out.Intent))))
	if !knownIntents[out.Intent] {
		out.Intent = IntentOther
	}
	out.Confidence = clamp(out.Confidence, 0, 1)
	return out, nil
}

// extractJSONObject returns the first balanced top-level {...} substring.
// Bracket-matched and string-aware rather than a strict parse of the whole
// response — models wrap JSON in prose and markdown fences.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
