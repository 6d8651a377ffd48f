package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chatdesk-ai/chatdesk/internal/store"
)

// PGCustomerStore implements store.CustomerStore backed by Postgres.
type PGCustomerStore struct {
	db *sql.DB
}

func NewPGCustomerStore(db *sql.DB) *PGCustomerStore {
	return &PGCustomerStore{db: db}
}

func (s *PGCustomerStore) GetProfile(ctx context.Context, customerID string) (*store.CustomerProfile, error) {
	var p store.CustomerProfile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, total_prior_conversations, created_at
		 FROM customers WHERE id = $1`,
		customerID,
	).Scan(&p.ID, &p.DisplayName, &p.TotalPriorConversations, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", customerID, err)
	}
	return &p, nil
}

func (s *PGCustomerStore) TouchConversation(ctx context.Context, customerID, displayName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (id, display_name, total_prior_conversations, created_at)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (id) DO UPDATE SET
		   total_prior_conversations = customers.total_prior_conversations + 1,
		   display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE customers.display_name END`,
		customerID, displayName, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("touch customer %s: %w", customerID, err)
	}
	return nil
}
