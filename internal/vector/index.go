// Package vector provides the semantic index used for historical Q&A retrieval.
// Two backends exist: an in-memory store for tests/dev and a SQLite-backed
// store for standalone deployments.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// Record is a single embedded document to persist in the index.
type Record struct {
	ID        string            `json:"id"`
	Namespace string            `json:"namespace,omitempty"`
	Vector    []float32         `json:"vector"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Match is a similarity search result, ordered by Score descending.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Index is the minimal contract for upserting and querying embeddings.
type Index interface {
	Upsert(records []Record) error
	Query(vector []float32, topK int, namespace string) ([]Match, error)
	Close() error
}

// ErrDimensionMismatch is returned when a vector's length does not match the
// index dimension.
var ErrDimensionMismatch = errors.New("vector: dimension mismatch")

func checkDimension(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

// cosineSimilarity returns the cosine of the angle between a and b.
// A zero vector on either side yields 0 — no meaningful direction to compare.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
