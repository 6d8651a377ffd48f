package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chatdesk-ai/chatdesk/internal/store"
)

// PGConversationStore implements store.ConversationStore backed by Postgres.
type PGConversationStore struct {
	db *sql.DB
}

func NewPGConversationStore(db *sql.DB) *PGConversationStore {
	return &PGConversationStore{db: db}
}

func (s *PGConversationStore) AppendMessage(ctx context.Context, rec store.MessageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.Must(uuid.NewV7()).String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, customer_id, staff_id, role, text, intent, confidence, escalated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.ConversationID, rec.CustomerID, nullIfEmpty(rec.StaffID),
		rec.Role, rec.Text, nullIfEmpty(rec.Intent), rec.Confidence, rec.Escalated, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *PGConversationStore) RecordStaffReply(ctx context.Context, rec store.MessageRecord) error {
	if rec.Role == "" {
		rec.Role = "staff"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.AppendMessage(ctx, rec); err != nil {
		return err
	}
	// Pair the reply with the customer's latest message in the conversation.
	// A reply with no preceding customer message pairs with nothing.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolved_pairs (id, conversation_id, customer_id, question_id, question, answer, answered_at)
		 SELECT $1, m.conversation_id, m.customer_id, m.id, m.text, $2, $3
		 FROM messages m
		 WHERE m.conversation_id = $4 AND m.role = 'customer'
		 ORDER BY m.created_at DESC LIMIT 1`,
		uuid.Must(uuid.NewV7()).String(), rec.Text, rec.CreatedAt, rec.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("record resolved pair: %w", err)
	}
	return nil
}

func (s *PGConversationStore) ResolvedPairsSince(ctx context.Context, since time.Time) ([]store.QAPair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, customer_id, question_id, question, answer, answered_at
		 FROM resolved_pairs WHERE answered_at > $1 ORDER BY answered_at ASC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query resolved pairs: %w", err)
	}
	defer rows.Close()

	var out []store.QAPair
	for rows.Next() {
		var p store.QAPair
		if err := rows.Scan(&p.ConversationID, &p.CustomerID, &p.QuestionID, &p.Question, &p.Answer, &p.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan resolved pair: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
