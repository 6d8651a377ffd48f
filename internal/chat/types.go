// Package chat orchestrates the message pipeline: intent classification,
// context retrieval, response generation, and escalation decisioning.
package chat

import (
	"github.com/chatdesk-ai/chatdesk/internal/ai"
)

// Mode selects the processing pipeline for an inbound message.
type Mode string

const (
	// ModeAssistant answers the customer directly and evaluates escalation.
	ModeAssistant Mode = "assistant"
	// ModeStaff proposes reply candidates to a human agent; no escalation.
	ModeStaff Mode = "staff"
)

// Priority ranks an escalation for the operator queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// EscalationVerdict is the outcome of the escalation evaluation.
type EscalationVerdict struct {
	ShouldEscalate bool     `json:"should_escalate"`
	Priority       Priority `json:"priority"`
	Reason         string   `json:"reason"`
	// Factors carries each named signal individually, so consumers can act
	// on specific signals instead of parsing the composed reason string.
	Factors map[string]bool `json:"factors,omitempty"`
}

// Result is the outcome of processing one inbound message.
// Reply is set in assistant mode; Suggestions in staff mode.
type Result struct {
	Reply       string            `json:"reply,omitempty"`
	Suggestions []ai.Suggestion   `json:"suggestions,omitempty"`
	Confidence  float64           `json:"confidence"`
	Intent      ai.IntentResult   `json:"intent"`
	Escalation  EscalationVerdict `json:"escalation"`
}
