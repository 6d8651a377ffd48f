// Package store defines the persistence interfaces the pipeline consumes.
// The pipeline only reads profiles and appends conversation records; it never
// owns the data. Postgres implementations live in internal/store/pg;
// in-memory implementations back tests and standalone mode.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// CustomerProfile is the read model for a customer.
// Owned by the customer store; the pipeline reads and requests updates only.
type CustomerProfile struct {
	ID                      string    `json:"id"`
	DisplayName             string    `json:"display_name"`
	TotalPriorConversations int       `json:"total_prior_conversations"`
	CreatedAt               time.Time `json:"created_at"`
}

// CustomerStore manages customer profiles.
type CustomerStore interface {
	// GetProfile returns the profile for a customer, or ErrNotFound.
	GetProfile(ctx context.Context, customerID string) (*CustomerProfile, error)

	// TouchConversation upserts the customer and increments their prior
	// conversation count. Called when a new conversation starts.
	TouchConversation(ctx context.Context, customerID, displayName string) error
}

// MessageRecord is one message in a conversation, customer- or staff-authored.
type MessageRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	CustomerID     string    `json:"customer_id"`
	StaffID        string    `json:"staff_id,omitempty"` // empty for customer/assistant messages
	Role           string    `json:"role"`               // "customer", "assistant", "staff"
	Text           string    `json:"text"`
	Intent         string    `json:"intent,omitempty"`
	Confidence     float64   `json:"confidence,omitempty"`
	Escalated      bool      `json:"escalated,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// QAPair is a resolved question/answer pair ready for index ingestion.
type QAPair struct {
	ConversationID string    `json:"conversation_id"`
	CustomerID     string    `json:"customer_id"`
	QuestionID     string    `json:"question_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// ConversationStore persists conversation messages and feeds the index sync.
type ConversationStore interface {
	// AppendMessage stores a message record.
	AppendMessage(ctx context.Context, rec MessageRecord) error

	// RecordStaffReply stores a human-authored reply. The staff answer pairs
	// with the customer's latest unanswered message for index sync.
	RecordStaffReply(ctx context.Context, rec MessageRecord) error

	// ResolvedPairsSince returns Q&A pairs answered after the given time,
	// oldest first. Used by the scheduled index-sync job.
	ResolvedPairsSince(ctx context.Context, since time.Time) ([]QAPair, error)
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Customers     CustomerStore
	Conversations ConversationStore
}
