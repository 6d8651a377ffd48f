package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryCustomerStore is an in-memory CustomerStore for tests and standalone
// mode.
type MemoryCustomerStore struct {
	mu       sync.RWMutex
	profiles map[string]*CustomerProfile
}

// NewMemoryCustomerStore creates an empty in-memory customer store.
func NewMemoryCustomerStore() *MemoryCustomerStore {
	return &MemoryCustomerStore{profiles: make(map[string]*CustomerProfile)}
}

func (s *MemoryCustomerStore) GetProfile(_ context.Context, customerID string) (*CustomerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryCustomerStore) TouchConversation(_ context.Context, customerID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[customerID]
	if !ok {
		s.profiles[customerID] = &CustomerProfile{
			ID:                      customerID,
			DisplayName:             displayName,
			TotalPriorConversations: 1,
			CreatedAt:               time.Now().UTC(),
		}
		return nil
	}
	if displayName != "" {
		p.DisplayName = displayName
	}
	p.TotalPriorConversations++
	return nil
}

// MemoryConversationStore is an in-memory ConversationStore. Staff replies
// pair with the customer's most recent unanswered message in the same
// conversation, mirroring the Postgres implementation.
type MemoryConversationStore struct {
	mu       sync.Mutex
	messages []MessageRecord
	pairs    []QAPair
}

// NewMemoryConversationStore creates an empty in-memory conversation store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{}
}

func (s *MemoryConversationStore) AppendMessage(_ context.Context, rec MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.messages = append(s.messages, rec)
	return nil
}

func (s *MemoryConversationStore) RecordStaffReply(_ context.Context, rec MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.messages = append(s.messages, rec)

	// Pair with the latest customer message in the conversation.
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.ConversationID == rec.ConversationID && m.Role == "customer" {
			s.pairs = append(s.pairs, QAPair{
				ConversationID: rec.ConversationID,
				CustomerID:     m.CustomerID,
				QuestionID:     m.ID,
				Question:       m.Text,
				Answer:         rec.Text,
				AnsweredAt:     rec.CreatedAt,
			})
			break
		}
	}
	return nil
}

func (s *MemoryConversationStore) ResolvedPairsSince(_ context.Context, since time.Time) ([]QAPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []QAPair
	for _, p := range s.pairs {
		if p.AnsweredAt.After(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnsweredAt.Before(out[j].AnsweredAt) })
	return out, nil
}
