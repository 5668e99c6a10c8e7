// Package memory provides a brute-force, memory-resident vector.Index.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cortexflow/ragcore/vector"
)

// Index scans every entry on search. Fine at the single-process scale
// this core targets; anything bigger swaps in another vector.Index.
type Index struct {
	mu      sync.RWMutex
	entries []vector.Entry
	byID    map[string]int

	// dimension is fixed by the first upserted entry.
	dimension int
}

func NewIndex() *Index {
	return &Index{
		byID: make(map[string]int),
	}
}

// Upsert inserts or replaces entries by ID. A replaced entry keeps its
// original insertion position, so search tie-breaking is stable across
// re-ingestion.
func (idx *Index) Upsert(ctx context.Context, entries []vector.Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, e := range entries {
		if idx.dimension == 0 {
			idx.dimension = len(e.Embedding)
		}

		if len(e.Embedding) != idx.dimension {
			return fmt.Errorf("%w: expected %d, got %d for %q",
				vector.ErrDimensionMismatch, idx.dimension, len(e.Embedding), e.ID)
		}

		if pos, ok := idx.byID[e.ID]; ok {
			idx.entries[pos] = e
			continue
		}

		idx.byID[e.ID] = len(idx.entries)
		idx.entries = append(idx.entries, e)
	}

	return nil
}

// Search ranks all entries by cosine similarity against query and
// returns at most k results scoring at least minScore. Ties break
// toward the earlier-inserted entry. A query whose dimension differs
// from the index's fails with vector.ErrDimensionMismatch.
func (idx *Index) Search(ctx context.Context, query []float32, k int, minScore float32) ([]vector.Result, error) {
	if k <= 0 {
		return nil, vector.ErrInvalidArgument
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) > 0 && len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, len(query), idx.dimension)
	}

	results := make([]vector.Result, 0, len(idx.entries))
	for _, e := range idx.entries {
		score := vector.Cosine(query, e.Embedding)
		if score < minScore {
			continue
		}

		results = append(results, vector.Result{Entry: e, Score: score})
	}

	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Delete removes every entry originating from sourceID.
func (idx *Index) Delete(ctx context.Context, sourceID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.entries[:0:0]
	for _, e := range idx.entries {
		if e.SourceID != sourceID {
			kept = append(kept, e)
		}
	}

	idx.entries = kept
	idx.byID = make(map[string]int, len(kept))
	for i, e := range kept {
		idx.byID[e.ID] = i
	}

	return nil
}

func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries)
}
