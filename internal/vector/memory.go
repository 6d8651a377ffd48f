package vector

import (
	"sort"
	"sync"
)

// MemoryIndex is an in-memory cosine-similarity index.
// Used in tests and for deployments without persistence. Safe for concurrent use.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]Record // keyed by namespace + "\x00" + id
}

// NewMemoryIndex creates an empty in-memory index for vectors of the given
// dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		records:   make(map[string]Record),
	}
}

func recordKey(namespace, id string) string {
	return namespace + "\x00" + id
}

// Upsert inserts or replaces records by (namespace, id).
func (m *MemoryIndex) Upsert(records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		if err := checkDimension(r.Vector, m.dimension); err != nil {
			return err
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		r.Vector = vec
		m.records[recordKey(r.Namespace, r.ID)] = r
	}
	return nil
}

// Query returns the topK most similar records in the namespace, ordered by
// cosine similarity descending.
func (m *MemoryIndex) Query(vector []float32, topK int, namespace string) ([]Match, error) {
	if err := checkDimension(vector, m.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.records))
	for _, r := range m.records {
		if r.Namespace != namespace {
			continue
		}
		matches = append(matches, Match{
			ID:       r.ID,
			Score:    cosineSimilarity(vector, r.Vector),
			Metadata: r.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of stored records across all namespaces.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close() error { return nil }
