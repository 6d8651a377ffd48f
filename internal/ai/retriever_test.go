package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/chatdesk-ai/chatdesk/internal/providers"
	"github.com/chatdesk-ai/chatdesk/internal/vector"
)

// failingIndex always errors; retrieval must degrade to no context.
type failingIndex struct{}

func (failingIndex) Upsert([]vector.Record) error { return errors.New("index down") }
func (failingIndex) Query([]float32, int, string) ([]vector.Match, error) {
	return nil, errors.New("index down")
}
func (failingIndex) Close() error { return nil }

func axisEmbed(axis int) func(string) ([]float32, error) {
	return func(string) ([]float32, error) {
		v := make([]float32, providers.EmbeddingDim)
		v[axis] = 1
		return v, nil
	}
}

// TestQueryRelevant_ReturnsMatchesWithMetadata verifies documents come back
// with their Q&A metadata and similarity scores.
func TestQueryRelevant_ReturnsMatchesWithMetadata(t *testing.T) {
	idx := vector.NewMemoryIndex(providers.EmbeddingDim)
	rec := vector.Record{ID: "conv-1:m1", Vector: make([]float32, providers.EmbeddingDim), Metadata: map[string]string{
		"question":        "What is the transfer fee?",
		"answer":          "25 baht per domestic transfer.",
		"conversation_id": "conv-1",
		"customer_id":     "c9",
		"answered_at":     "2026-08-01T10:00:00Z",
	}}
	rec.Vector[0] = 1
	if err := idx.Upsert([]vector.Record{rec}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	p := &fakeProvider{embed: axisEmbed(0)}
	r := NewRetriever(RetrieverConfig{Provider: p, Index: idx, Retry: testRetry(t)})

	docs := r.QueryRelevant(context.Background(), "how much to transfer?")
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	d := docs[0]
	if d.Question != "What is the transfer fee?" || d.Answer != "25 baht per domestic transfer." {
		t.Fatalf("metadata lost: %+v", d)
	}
	if d.ConversationID != "conv-1" || d.CustomerID != "c9" {
		t.Fatalf("provenance lost: %+v", d)
	}
	if d.Timestamp.IsZero() {
		t.Fatal("timestamp not parsed")
	}
	if d.RelevanceScore < 0.99 {
		t.Fatalf("expected near-exact match score, got %v", d.RelevanceScore)
	}
}

// TestQueryRelevant_EmbedFailureUsesZeroVector verifies an embedding outage
// still queries the index with a zero vector instead of failing.
func TestQueryRelevant_EmbedFailureUsesZeroVector(t *testing.T) {
	idx := vector.NewMemoryIndex(providers.EmbeddingDim)
	rec := vector.Record{ID: "a", Vector: make([]float32, providers.EmbeddingDim)}
	rec.Vector[1] = 1
	idx.Upsert([]vector.Record{rec})

	p := &fakeProvider{embed: func(string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}}
	r := NewRetriever(RetrieverConfig{Provider: p, Index: idx, Retry: testRetry(t)})

	docs := r.QueryRelevant(context.Background(), "anything")
	if len(docs) != 1 {
		t.Fatalf("expected 1 zero-score doc, got %d", len(docs))
	}
	if docs[0].RelevanceScore != 0 {
		t.Fatalf("expected zero score from zero-vector query, got %v", docs[0].RelevanceScore)
	}
}

// TestQueryRelevant_IndexFailureReturnsEmpty verifies an index outage yields
// an empty, non-nil document slice.
func TestQueryRelevant_IndexFailureReturnsEmpty(t *testing.T) {
	p := &fakeProvider{embed: axisEmbed(0)}
	r := NewRetriever(RetrieverConfig{Provider: p, Index: failingIndex{}, Retry: testRetry(t)})

	docs := r.QueryRelevant(context.Background(), "anything")
	if docs == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(docs) != 0 {
		t.Fatalf("expected no docs, got %d", len(docs))
	}
}

// TestQueryRelevant_DefaultWindowIsFive verifies the default retrieval window
// when no TopK override is configured.
func TestQueryRelevant_DefaultWindowIsFive(t *testing.T) {
	idx := vector.NewMemoryIndex(providers.EmbeddingDim)
	var recs []vector.Record
	for i := 0; i < 6; i++ {
		v := make([]float32, providers.EmbeddingDim)
		v[0] = 1
		v[1] = float32(i) * 0.1
		recs = append(recs, vector.Record{ID: string(rune('a' + i)), Vector: v})
	}
	if err := idx.Upsert(recs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	p := &fakeProvider{embed: axisEmbed(0)}
	r := NewRetriever(RetrieverConfig{Provider: p, Index: idx, Retry: testRetry(t)})

	if got := len(r.QueryRelevant(context.Background(), "q")); got != 5 {
		t.Fatalf("expected default window of 5, got %d", got)
	}
}

// TestQueryTop_OverridesWindow verifies staff mode can widen the result
// window past the default.
func TestQueryTop_OverridesWindow(t *testing.T) {
	idx := vector.NewMemoryIndex(providers.EmbeddingDim)
	var recs []vector.Record
	for i := 0; i < 5; i++ {
		v := make([]float32, providers.EmbeddingDim)
		v[0] = 1
		v[1] = float32(i) * 0.1
		recs = append(recs, vector.Record{ID: string(rune('a' + i)), Vector: v})
	}
	idx.Upsert(recs)

	p := &fakeProvider{embed: axisEmbed(0)}
	r := NewRetriever(RetrieverConfig{Provider: p, Index: idx, Retry: testRetry(t), TopK: 2})

	if got := len(r.QueryRelevant(context.Background(), "q")); got != 2 {
		t.Fatalf("expected default window of 2, got %d", got)
	}
	if got := len(r.QueryTop(context.Background(), "q", 4)); got != 4 {
		t.Fatalf("expected widened window of 4, got %d", got)
	}
}
