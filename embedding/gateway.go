// Package embedding wraps an llm.Embedder with batching and
// fixed-dimension enforcement.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cortexflow/ragcore/llm"
)

var (
	ErrEmbeddingFailed    = errors.New("embedding failed")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrNoEmbedderProvided = errors.New("no embedder provided")
)

type Config struct {
	BatchSize int `yaml:"batchSize"`
}

const defaultBatchSize = 16

// Gateway converts text to vectors in batches. A downstream failure
// fails the whole batch; no partial results are returned and no
// retries happen here. Every vector must share the dimension of the
// first one ever produced; a mismatch is fatal.
type Gateway struct {
	embedder  llm.Embedder
	batchSize int
	log       *zap.Logger

	mu        sync.Mutex
	dimension int
}

func NewGateway(embedder llm.Embedder, cfg Config) *Gateway {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Gateway{
		embedder:  embedder,
		batchSize: batchSize,
		log: zap.L().With(
			zap.String("component", "embedding_gateway"),
		),
	}
}

// Dimension reports the embedding dimension, or 0 before the first
// successful call.
func (g *Gateway) Dimension() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.dimension
}

// Embed returns one vector per input text, in input order.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if g.embedder == nil {
		return nil, ErrNoEmbedderProvided
	}

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := g.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}

		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts",
				ErrEmbeddingFailed, len(batch), end-start)
		}

		for _, vec := range batch {
			if err := g.checkDimension(len(vec)); err != nil {
				return nil, err
			}
		}

		vectors = append(vectors, batch...)
	}

	g.log.Debug("texts embedded",
		zap.Int("count", len(texts)),
		zap.Int("dimension", g.Dimension()),
	)

	return vectors, nil
}

// EmbedOne embeds a single text.
func (g *Gateway) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vectors[0], nil
}

func (g *Gateway) checkDimension(d int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if d == 0 {
		return fmt.Errorf("%w: empty vector", ErrEmbeddingFailed)
	}

	if g.dimension == 0 {
		g.dimension = d
		return nil
	}

	if g.dimension != d {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, g.dimension, d)
	}

	return nil
}
