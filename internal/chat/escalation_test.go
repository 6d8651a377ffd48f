package chat

import (
	"strings"
	"testing"

	"github.com/chatdesk-ai/chatdesk/internal/ai"
)

// TestVerdict_AllFactorCombinations walks all 32 factor combinations and
// checks shouldEscalate is true iff any factor fired, and the priority rule
// holds: high if sensitiveTopic or explicitRequest or count>=3, else medium
// if frustration or highValueIntent or count>=2, else low.
func TestVerdict_AllFactorCombinations(t *testing.T) {
	for mask := 0; mask < 32; mask++ {
		f := factors{
			lowConfidence:   mask&1 != 0,
			sensitiveTopic:  mask&2 != 0,
			frustration:     mask&4 != 0,
			highValueIntent: mask&8 != 0,
			explicitRequest: mask&16 != 0,
		}
		v := verdictFrom(f)
		count := f.count()

		if v.ShouldEscalate != (count > 0) {
			t.Errorf("mask %05b: shouldEscalate=%v with %d factors", mask, v.ShouldEscalate, count)
		}

		var want Priority
		switch {
		case count == 0:
			want = PriorityLow
		case f.sensitiveTopic || f.explicitRequest || count >= 3:
			want = PriorityHigh
		case f.frustration || f.highValueIntent || count >= 2:
			want = PriorityMedium
		default:
			want = PriorityLow
		}
		if v.Priority != want {
			t.Errorf("mask %05b: priority=%s, want %s", mask, v.Priority, want)
		}

		if count == 0 && v.Reason != reasonNone {
			t.Errorf("mask %05b: reason=%q, want %q", mask, v.Reason, reasonNone)
		}
		if count > 0 && len(strings.Split(v.Reason, ", ")) != count {
			t.Errorf("mask %05b: reason %q does not list %d factors", mask, v.Reason, count)
		}

		wantFactors := map[string]bool{
			factorLowConfidence:   f.lowConfidence,
			factorSensitiveTopic:  f.sensitiveTopic,
			factorFrustration:     f.frustration,
			factorHighValueIntent: f.highValueIntent,
			factorExplicitRequest: f.explicitRequest,
		}
		if len(v.Factors) != len(wantFactors) {
			t.Errorf("mask %05b: factors map has %d entries, want %d", mask, len(v.Factors), len(wantFactors))
		}
		for name, fired := range wantFactors {
			if v.Factors[name] != fired {
				t.Errorf("mask %05b: factors[%q]=%v, want %v", mask, name, v.Factors[name], fired)
			}
		}
	}
}

// TestVerdict_SensitiveTopicForcesHigh is the non-monotonicity regression:
// a single sensitive-topic factor outranks a two-factor frustration case.
func TestVerdict_SensitiveTopicForcesHigh(t *testing.T) {
	v := verdictFrom(factors{sensitiveTopic: true})
	if v.Priority != PriorityHigh {
		t.Fatalf("single sensitive topic: priority=%s, want high", v.Priority)
	}

	v = verdictFrom(factors{frustration: true, highValueIntent: true})
	if v.Priority != PriorityMedium {
		t.Fatalf("frustration+highValue (count=2): priority=%s, want medium", v.Priority)
	}
}

// TestVerdict_SingleLowConfidenceIsLow verifies one non-forcing factor
// escalates at low priority.
func TestVerdict_SingleLowConfidenceIsLow(t *testing.T) {
	v := verdictFrom(factors{lowConfidence: true})
	if !v.ShouldEscalate || v.Priority != PriorityLow {
		t.Fatalf("got %+v, want escalate at low priority", v)
	}
	if v.Reason != reasonLowConfidence {
		t.Fatalf("reason=%q", v.Reason)
	}
}

func TestEvaluate_ExplicitHumanRequestThai(t *testing.T) {
	e := NewEscalator(EscalatorConfig{})
	v := e.Evaluate("ขอคุยกับเจ้าหน้าที่ค่ะ", ai.IntentGeneralInquiry, 0.9)
	if !v.ShouldEscalate || v.Priority != PriorityHigh {
		t.Fatalf("got %+v, want high-priority escalation", v)
	}
	if !strings.Contains(v.Reason, reasonExplicitRequest) {
		t.Fatalf("reason %q missing explicit-request description", v.Reason)
	}
}

// TestEvaluate_FrustrationNeedsTwoDistinctTerms verifies one frustration term
// is not enough, and repeating the same term does not count twice.
func TestEvaluate_FrustrationNeedsTwoDistinctTerms(t *testing.T) {
	e := NewEscalator(EscalatorConfig{})

	v := e.Evaluate("This is terrible. Terrible, terrible service!", ai.IntentGeneralInquiry, 0.9)
	if v.ShouldEscalate {
		t.Fatalf("repeated single term should not trigger frustration: %+v", v)
	}

	v = e.Evaluate("This is terrible and completely useless.", ai.IntentGeneralInquiry, 0.9)
	if !v.ShouldEscalate || v.Priority != PriorityMedium {
		t.Fatalf("two distinct terms: got %+v, want medium escalation", v)
	}
}

// TestEvaluate_CaseInsensitiveSubstrings verifies the matching semantics the
// keyword tables rely on.
func TestEvaluate_CaseInsensitiveSubstrings(t *testing.T) {
	e := NewEscalator(EscalatorConfig{SensitiveTopics: []string{"chargeback"}})
	v := e.Evaluate("I want a CHARGEBACK now", ai.IntentGeneralInquiry, 0.9)
	if !v.ShouldEscalate || v.Priority != PriorityHigh {
		t.Fatalf("got %+v, want high", v)
	}
}

func TestEvaluate_HighValueIntent(t *testing.T) {
	e := NewEscalator(EscalatorConfig{})
	v := e.Evaluate("I'd like a loan please", ai.IntentLoan, 0.95)
	if !v.ShouldEscalate || v.Priority != PriorityMedium {
		t.Fatalf("got %+v, want medium escalation on LOAN intent", v)
	}
}

// TestEvaluate_ConfidenceThresholdBoundary verifies 0.7 exactly does not
// count as low confidence.
func TestEvaluate_ConfidenceThresholdBoundary(t *testing.T) {
	e := NewEscalator(EscalatorConfig{})
	if v := e.Evaluate("ok", ai.IntentGeneralInquiry, 0.7); v.ShouldEscalate {
		t.Fatalf("confidence exactly at threshold escalated: %+v", v)
	}
	if v := e.Evaluate("ok", ai.IntentGeneralInquiry, 0.69); !v.ShouldEscalate {
		t.Fatalf("confidence below threshold did not escalate: %+v", v)
	}
}
