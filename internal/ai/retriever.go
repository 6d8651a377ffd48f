package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatdesk-ai/chatdesk/internal/providers"
	"github.com/chatdesk-ai/chatdesk/internal/vector"
)

// ContextDocument is one historical Q&A pair retrieved for grounding.
type ContextDocument struct {
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CustomerID     string    `json:"customer_id,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
	RelevanceScore float64   `json:"relevance_score"`
}

// Retriever embeds a query and pulls the most similar historical Q&A pairs
// from the vector index.
type Retriever struct {
	provider  providers.Provider
	index     vector.Index
	retry     providers.RetryConfig
	namespace string
	topK      int
}

// RetrieverConfig configures a new Retriever.
type RetrieverConfig struct {
	Provider  providers.Provider
	Index     vector.Index
	Retry     providers.RetryConfig
	Namespace string
	TopK      int // default 5
}

// NewRetriever creates a context retriever.
func NewRetriever(cfg RetrieverConfig) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Retriever{
		provider:  cfg.Provider,
		index:     cfg.Index,
		retry:     cfg.Retry,
		namespace: cfg.Namespace,
		topK:      cfg.TopK,
	}
}

// QueryRelevant retrieves up to topK context documents for the query. It
// never returns an error: retrieval is an enrichment, so an embedding failure
// degrades to a zero-vector query and an index failure degrades to an empty
// result set. Both paths are logged.
func (r *Retriever) QueryRelevant(ctx context.Context, query string) []ContextDocument {
	return r.query(ctx, query, r.topK)
}

// QueryTop retrieves up to k context documents, for callers that need more
// than the default window (staff suggestion mode uses the top 3 explicitly).
func (r *Retriever) QueryTop(ctx context.Context, query string, k int) []ContextDocument {
	if k <= 0 {
		k = r.topK
	}
	return r.query(ctx, query, k)
}

func (r *Retriever) query(ctx context.Context, query string, k int) []ContextDocument {
	vec, err := providers.ExecuteWithRetry(ctx, r.retry, func() ([]float32, error) {
		return r.provider.Embed(ctx, query)
	})
	if err != nil {
		slog.Warn("query embedding failed, using zero vector", "error", err)
		vec = make([]float32, providers.EmbeddingDim)
	}

	matches, err := r.index.Query(vec, k, r.namespace)
	if err != nil {
		slog.Warn("vector index query failed, continuing without context", "error", err)
		return []ContextDocument{}
	}

	docs := make([]ContextDocument, 0, len(matches))
	for _, m := range matches {
		doc := ContextDocument{
			Question:       m.Metadata["question"],
			Answer:         m.Metadata["answer"],
			ConversationID: m.Metadata["conversation_id"],
			CustomerID:     m.Metadata["customer_id"],
			RelevanceScore: m.Score,
		}
		if ts := m.Metadata["answered_at"]; ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				doc.Timestamp = t
			}
		}
		docs = append(docs, doc)
	}
	return docs
}
