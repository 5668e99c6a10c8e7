package vector

import (
	"context"
	"errors"
	"math"
)

var (
	ErrInvalidArgument = errors.New("k must be positive")

	// ErrDimensionMismatch is fatal: mixing embedding dimensions in an
	// index is a configuration error, never retried.
	ErrDimensionMismatch = errors.New("index dimension mismatch")
)

type Config struct {
	Backend    string `yaml:"backend"` // "memory" or "chromem"
	Persistent bool   `yaml:"persistent"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// Index stores embedded chunks and answers k-nearest-neighbor queries
// by cosine similarity. Implementations must allow concurrent searches
// during upserts; a search never observes a half-written entry.
type Index interface {
	// Upsert inserts or replaces entries, idempotent by entry ID.
	Upsert(ctx context.Context, entries []Entry) error

	// Search returns at most k results with score >= minScore, ranked
	// by descending cosine similarity. Ties break toward the
	// earlier-inserted entry. A query whose dimension differs from the
	// indexed entries' is rejected.
	Search(ctx context.Context, query []float32, k int, minScore float32) ([]Result, error)

	// Delete removes every entry originating from the given source.
	Delete(ctx context.Context, sourceID string) error

	Count() int
}

// Entry is one embedded chunk owned by the index after upsert.
type Entry struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Sequence  int       `json:"sequence"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Result pairs an entry with its similarity score for one query.
type Result struct {
	Entry Entry   `json:"entry"`
	Score float32 `json:"score"`
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// A zero vector yields 0 by definition.
func Cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
