package ai

import (
	"fmt"
	"strings"

	"github.com/chatdesk-ai/chatdesk/internal/store"
)

func intentPrompt(text string) string {
	var b strings.Builder
	b.WriteString("You are an intent classifier for a customer support desk.\n")
	b.WriteString("Classify the customer message into exactly one intent from this list:\n")
	b.WriteString("OPEN_ACCOUNT, TRANSFER, CARD, LOAN, COMPLAINT, GENERAL_INQUIRY, GREETING, OTHER\n\n")
	b.WriteString("Respond with ONLY a JSON object in this shape:\n")
	b.WriteString(`{"intent": "...", "confidence": 0.0, "keywords": ["..."], "suggested_department": "...", "summary": "..."}` + "\n\n")
	b.WriteString("Customer message:\n")
	b.WriteString(text)
	return b.String()
}

func responsePrompt(message string, docs []ContextDocument, profile store.CustomerProfile) string {
	var b strings.Builder
	b.WriteString("You are a helpful customer support assistant.\n")
	fmt.Fprintf(&b, "Customer: %s (%d prior conversations with us)\n\n", profile.DisplayName, profile.TotalPriorConversations)

	if len(docs) > 0 {
		b.WriteString("Relevant history from previous support conversations:\n")
		for _, d := range docs {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", d.Question, d.Answer)
		}
	}

	b.WriteString("Answer the customer's new message in their language, concisely and politely.\n")
	b.WriteString("If you are not sure of the answer, say so and recommend contacting a human support agent.\n\n")
	b.WriteString("Customer message:\n")
	b.WriteString(message)
	return b.String()
}

func suggestionPrompt(message string, docs []ContextDocument) string {
	var b strings.Builder
	b.WriteString("You are assisting a human support agent. Propose 3 short reply candidates\n")
	b.WriteString("for the customer message below, ranked best first, grounded in the history provided.\n\n")

	if len(docs) > 0 {
		b.WriteString("Relevant history:\n")
		for _, d := range docs {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", d.Question, d.Answer)
		}
	}

	b.WriteString("Respond with ONLY a JSON array in this shape:\n")
	b.WriteString(`[{"text": "...", "confidence": 0.0}]` + "\n\n")
	b.WriteString("Customer message:\n")
	b.WriteString(message)
	return b.String()
}
