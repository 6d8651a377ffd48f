package vector

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"
)

// SQLiteIndex persists embeddings in a local SQLite database.
// Vectors are stored as little-endian float32 blobs; similarity is computed
// in Go on query. Fine for the catalog sizes a single support desk produces;
// swap in a server-side vector store before this becomes the bottleneck.
type SQLiteIndex struct {
	db        *sql.DB
	dimension int
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	namespace TEXT NOT NULL DEFAULT '',
	id        TEXT NOT NULL,
	vec       BLOB NOT NULL,
	metadata  TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (namespace, id)
);
`

// OpenSQLiteIndex opens (creating if needed) a SQLite-backed index at path.
func OpenSQLiteIndex(path string, dimension int) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite index schema: %w", err)
	}
	return &SQLiteIndex{db: db, dimension: dimension}, nil
}

// Upsert inserts or replaces records by (namespace, id) in one transaction.
func (s *SQLiteIndex) Upsert(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO embeddings (namespace, id, vec, metadata) VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, id) DO UPDATE SET vec = excluded.vec, metadata = excluded.metadata`,
	)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if err := checkDimension(r.Vector, s.dimension); err != nil {
			return err
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		if _, err := stmt.Exec(r.Namespace, r.ID, encodeVector(r.Vector), string(meta)); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// Query scans the namespace and returns the topK records by cosine similarity.
func (s *SQLiteIndex) Query(vector []float32, topK int, namespace string) ([]Match, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`SELECT id, vec, metadata FROM embeddings WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var id, metaJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}

		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode vector for %s: %w", id, err)
		}
		if len(vec) != s.dimension {
			// Stored before a dimension change; skip rather than mis-score.
			continue
		}

		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			meta = nil
		}

		matches = append(matches, Match{
			ID:       id,
			Score:    cosineSimilarity(vector, vec),
			Metadata: meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error { return s.db.Close() }

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
