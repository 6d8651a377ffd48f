package chat

import (
	"strings"

	"github.com/chatdesk-ai/chatdesk/internal/ai"
)

// reasonNone is returned when no escalation factor fired.
const reasonNone = "unspecified"

// Factor descriptions joined into the verdict reason, in evaluation order.
const (
	reasonLowConfidence   = "low response confidence"
	reasonSensitiveTopic  = "sensitive topic"
	reasonFrustration     = "customer frustration"
	reasonHighValueIntent = "high-value intent"
	reasonExplicitRequest = "explicit request for human agent"
)

// Default keyword tables. All matching is case-insensitive substring
// containment. Deployments override these from configuration.
var (
	defaultSensitiveTopics = []string{
		"lawsuit", "lawyer", "legal action", "fraud", "scam", "stolen",
		"police", "regulator", "ฟ้อง", "ทนาย", "โกง", "ฉ้อโกง", "ตำรวจ", "ถูกขโมย",
	}
	defaultFrustrationTerms = []string{
		"angry", "terrible", "worst", "useless", "ridiculous", "unacceptable",
		"fed up", "waste of time", "แย่มาก", "ห่วย", "โมโห", "ทนไม่ไหว", "เสียเวลา", "รับไม่ได้",
	}
	defaultHumanPhrases = []string{
		"talk to a human", "speak to a person", "real person", "human agent",
		"talk to an agent", "customer service representative",
		"ขอคุยกับเจ้าหน้าที่", "ขอสายเจ้าหน้าที่", "คุยกับคนจริง", "ติดต่อพนักงาน",
	}
	defaultHighValueIntents = []ai.Intent{ai.IntentComplaint, ai.IntentLoan, ai.IntentOpenAccount}
)

// Escalator evaluates whether a conversation should be handed to a human.
type Escalator struct {
	threshold        float64
	sensitiveTopics  []string
	frustrationTerms []string
	humanPhrases     []string
	highValueIntents map[ai.Intent]bool
}

// EscalatorConfig configures an Escalator. Zero values take the defaults.
type EscalatorConfig struct {
	ConfidenceThreshold float64
	SensitiveTopics     []string
	FrustrationTerms    []string
	HumanPhrases        []string
	HighValueIntents    []ai.Intent
}

// NewEscalator creates an escalation evaluator.
func NewEscalator(cfg EscalatorConfig) *Escalator {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	if len(cfg.SensitiveTopics) == 0 {
		cfg.SensitiveTopics = defaultSensitiveTopics
	}
	if len(cfg.FrustrationTerms) == 0 {
		cfg.FrustrationTerms = defaultFrustrationTerms
	}
	if len(cfg.HumanPhrases) == 0 {
		cfg.HumanPhrases = defaultHumanPhrases
	}
	if len(cfg.HighValueIntents) == 0 {
		cfg.HighValueIntents = defaultHighValueIntents
	}
	high := make(map[ai.Intent]bool, len(cfg.HighValueIntents))
	for _, i := range cfg.HighValueIntents {
		high[i] = true
	}
	return &Escalator{
		threshold:        cfg.ConfidenceThreshold,
		sensitiveTopics:  cfg.SensitiveTopics,
		frustrationTerms: cfg.FrustrationTerms,
		humanPhrases:     cfg.HumanPhrases,
		highValueIntents: high,
	}
}

// factors holds the five independent escalation signals.
type factors struct {
	lowConfidence   bool
	sensitiveTopic  bool
	frustration     bool
	highValueIntent bool
	explicitRequest bool
}

// Factor names used as keys in EscalationVerdict.Factors.
const (
	factorLowConfidence   = "low_confidence"
	factorSensitiveTopic  = "sensitive_topic"
	factorFrustration     = "customer_frustration"
	factorHighValueIntent = "high_value_intent"
	factorExplicitRequest = "explicit_request"
)

func (f factors) asMap() map[string]bool {
	return map[string]bool{
		factorLowConfidence:   f.lowConfidence,
		factorSensitiveTopic:  f.sensitiveTopic,
		factorFrustration:     f.frustration,
		factorHighValueIntent: f.highValueIntent,
		factorExplicitRequest: f.explicitRequest,
	}
}

func (f factors) count() int {
	n := 0
	for _, b := range []bool{f.lowConfidence, f.sensitiveTopic, f.frustration, f.highValueIntent, f.explicitRequest} {
		if b {
			n++
		}
	}
	return n
}

// Evaluate applies the five factors to the raw message and the pipeline
// result. confidence is the generated response's heuristic score.
func (e *Escalator) Evaluate(message string, intent ai.Intent, confidence float64) EscalationVerdict {
	lower := strings.ToLower(message)

	f := factors{
		lowConfidence:   confidence < e.threshold,
		sensitiveTopic:  containsAny(lower, e.sensitiveTopics),
		frustration:     countDistinct(lower, e.frustrationTerms) >= 2,
		highValueIntent: e.highValueIntents[intent],
		explicitRequest: containsAny(lower, e.humanPhrases),
	}
	return verdictFrom(f)
}

// verdictFrom maps factors to a verdict. Priority is not a pure function of
// the count: sensitive topics and explicit human requests force high on their
// own — volume-based scoring must never down-rank them.
func verdictFrom(f factors) EscalationVerdict {
	count := f.count()
	if count == 0 {
		return EscalationVerdict{Priority: PriorityLow, Reason: reasonNone, Factors: f.asMap()}
	}

	var priority Priority
	switch {
	case f.sensitiveTopic || f.explicitRequest || count >= 3:
		priority = PriorityHigh
	case f.frustration || f.highValueIntent || count >= 2:
		priority = PriorityMedium
	default:
		priority = PriorityLow
	}

	var reasons []string
	if f.lowConfidence {
		reasons = append(reasons, reasonLowConfidence)
	}
	if f.sensitiveTopic {
		reasons = append(reasons, reasonSensitiveTopic)
	}
	if f.frustration {
		reasons = append(reasons, reasonFrustration)
	}
	if f.highValueIntent {
		reasons = append(reasons, reasonHighValueIntent)
	}
	if f.explicitRequest {
		reasons = append(reasons, reasonExplicitRequest)
	}

	return EscalationVerdict{
		ShouldEscalate: true,
		Priority:       priority,
		Reason:         strings.Join(reasons, ", "),
		Factors:        f.asMap(),
	}
}

func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func countDistinct(lower string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(lower, strings.ToLower(t)) {
			n++
		}
	}
	return n
}
