// Package chromem backs a vector.Index with chromem-go, optionally
// persisted to disk.
package chromem

import (
	"context"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/cortexflow/ragcore/vector"
)

func NewIndex(cfg vector.Config) (vector.Index, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, err
		}

		db = d
	}

	name := cfg.Collection
	if name == "" {
		name = "chunks"
	}

	// Embeddings are always supplied by the gateway, so no embedding
	// function is wired into the collection.
	c, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, err
	}

	return &index{c}, nil
}

type index struct {
	collection *chromem.Collection
}

func (idx *index) Upsert(ctx context.Context, entries []vector.Entry) error {
	for _, e := range entries {
		doc := chromem.Document{
			ID:        e.ID,
			Embedding: e.Embedding,
			Content:   e.Text,
			Metadata: map[string]string{
				"source_id": e.SourceID,
				"sequence":  strconv.Itoa(e.Sequence),
			},
		}

		if err := idx.collection.AddDocument(ctx, doc); err != nil {
			return err
		}
	}

	return nil
}

// Search note: chromem orders exact score ties internally, so the
// insertion-order tie break is only guaranteed by the memory index.
func (idx *index) Search(ctx context.Context, query []float32, k int, minScore float32) ([]vector.Result, error) {
	if k <= 0 {
		return nil, vector.ErrInvalidArgument
	}

	if count := idx.collection.Count(); count == 0 {
		return []vector.Result{}, nil
	} else if k > count {
		k = count
	}

	results, err := idx.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, err
	}

	out := make([]vector.Result, 0, len(results))
	for _, r := range results {
		if r.Similarity < minScore {
			continue
		}

		sequence, _ := strconv.Atoi(r.Metadata["sequence"])

		out = append(out, vector.Result{
			Entry: vector.Entry{
				ID:        r.ID,
				SourceID:  r.Metadata["source_id"],
				Sequence:  sequence,
				Text:      r.Content,
				Embedding: r.Embedding,
			},
			Score: r.Similarity,
		})
	}

	return out, nil
}

func (idx *index) Delete(ctx context.Context, sourceID string) error {
	where := map[string]string{"source_id": sourceID}
	return idx.collection.Delete(ctx, where, nil)
}

func (idx *index) Count() int {
	return idx.collection.Count()
}
