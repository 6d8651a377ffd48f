package ai

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/chatdesk-ai/chatdesk/internal/store"
)

func newTestResponder(t *testing.T, p *fakeProvider) *Responder {
	t.Helper()
	return NewResponder(ResponderConfig{Provider: p, Retry: testRetry(t)})
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestScoreConfidence_Baseline verifies a short clean reply scores base plus
// the short bonus.
func TestScoreConfidence_Baseline(t *testing.T) {
	r := newTestResponder(t, nil)
	got := r.ScoreConfidence("สวัสดีครับ ยินดีให้บริการครับ")
	if !almostEqual(got, 0.85) {
		t.Fatalf("expected 0.85, got %v", got)
	}
}

// TestScoreConfidence_EmptyText verifies the empty string counts as short.
func TestScoreConfidence_EmptyText(t *testing.T) {
	r := newTestResponder(t, nil)
	if got := r.ScoreConfidence(""); !almostEqual(got, 0.85) {
		t.Fatalf("expected 0.85 for empty text, got %v", got)
	}
}

// TestScoreConfidence_UncertaintyPenalty verifies each phrase occurrence
// subtracts once, including repeats.
func TestScoreConfidence_UncertaintyPenalty(t *testing.T) {
	r := newTestResponder(t, nil)

	one := r.ScoreConfidence("I'm not sure about that, but here is what I found.")
	if !almostEqual(one, 0.75) { // 0.8 - 0.1 + 0.05 short bonus
		t.Fatalf("single phrase: expected 0.75, got %v", one)
	}

	two := r.ScoreConfidence("I'm not sure. Really, I'm not sure at all about this one.")
	if !almostEqual(two, 0.65) { // 0.8 - 0.2 + 0.05
		t.Fatalf("repeated phrase: expected 0.65, got %v", two)
	}
}

// TestScoreConfidence_LongPenalty verifies replies over 500 runes lose 0.1
// and get no short bonus.
func TestScoreConfidence_LongPenalty(t *testing.T) {
	r := newTestResponder(t, nil)
	long := strings.Repeat("ข", 501)
	if got := r.ScoreConfidence(long); !almostEqual(got, 0.7) {
		t.Fatalf("expected 0.7 for long reply, got %v", got)
	}
	// Exactly 500 runes is not "very long".
	if got := r.ScoreConfidence(strings.Repeat("ข", 500)); !almostEqual(got, 0.8) {
		t.Fatalf("expected 0.8 at the boundary, got %v", got)
	}
}

// TestScoreConfidence_RuneLength verifies length is measured in runes: 99
// Thai characters are short even though they exceed 100 bytes.
func TestScoreConfidence_RuneLength(t *testing.T) {
	r := newTestResponder(t, nil)
	text := strings.Repeat("ก", 99)
	if len(text) <= 100 {
		t.Fatal("test text must exceed 100 bytes")
	}
	if got := r.ScoreConfidence(text); !almostEqual(got, 0.85) {
		t.Fatalf("expected short bonus for 99 runes, got %v", got)
	}
}

// TestScoreConfidence_FloorClamp verifies a reply stuffed with every
// uncertainty phrase never drops below 0.3.
func TestScoreConfidence_FloorClamp(t *testing.T) {
	r := newTestResponder(t, nil)
	text := strings.Join(defaultUncertaintyPhrases, " ")
	if got := r.ScoreConfidence(text); !almostEqual(got, 0.3) {
		t.Fatalf("expected floor 0.3, got %v", got)
	}
}

// TestGenerate_ScoresOutput verifies generation wires the heuristic onto the
// provider text.
func TestGenerate_ScoresOutput(t *testing.T) {
	p := &fakeProvider{generate: textResult("Your card will arrive within 7 days.")}
	r := newTestResponder(t, p)

	resp, err := r.Generate(context.Background(), "Where is my card?", nil, store.CustomerProfile{DisplayName: "Ann"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "Your card will arrive within 7 days." {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if !almostEqual(resp.Confidence, 0.85) {
		t.Fatalf("expected 0.85, got %v", resp.Confidence)
	}
}

// TestSuggest_ParsesRankedArray verifies staff suggestions decode from a
// fenced JSON array and are capped at three.
func TestSuggest_ParsesRankedArray(t *testing.T) {
	p := &fakeProvider{generate: textResult("```json\n" +
		`[{"text": "A", "confidence": 0.9}, {"text": "B", "confidence": 0.8}, {"text": "C", "confidence": 0.7}, {"text": "D", "confidence": 0.6}]` +
		"\n```")}
	r := newTestResponder(t, p)

	got, err := r.Suggest(context.Background(), "How do I reset my PIN?", nil)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(got))
	}
	if got[0].Text != "A" || got[0].Confidence != 0.9 {
		t.Fatalf("unexpected first suggestion: %+v", got[0])
	}
}

// TestSuggest_ParseFailureIsError verifies malformed suggestion output is an
// error, unlike the customer-facing fallback paths.
func TestSuggest_ParseFailureIsError(t *testing.T) {
	p := &fakeProvider{generate: textResult("here are some ideas: reply kindly")}
	r := newTestResponder(t, p)

	if _, err := r.Suggest(context.Background(), "hi", nil); err == nil {
		t.Fatal("expected error for unparseable suggestions")
	}
}
