package embedding

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEmbedder struct {
	dimension int
	calls     [][]string
	err       error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)

	if f.err != nil {
		return nil, f.err
	}

	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dimension)
		vecs[i][0] = float32(len(texts[i]))
	}

	return vecs, nil
}

func TestEmbedBatches(t *testing.T) {
	assert := assert.New(t)

	embedder := &fakeEmbedder{dimension: 4}
	gateway := NewGateway(embedder, Config{BatchSize: 2})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

	vectors, err := gateway.Embed(context.Background(), texts)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Len(vectors, 5)
	assert.Len(embedder.calls, 3, "5 texts at batch size 2 means 3 calls")

	for i, text := range texts {
		assert.Equal(float32(len(text)), vectors[i][0], "order must follow input")
	}

	assert.Equal(4, gateway.Dimension())
}

func TestEmbedEmptyInput(t *testing.T) {
	assert := assert.New(t)

	gateway := NewGateway(&fakeEmbedder{dimension: 4}, Config{})

	vectors, err := gateway.Embed(context.Background(), nil)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Empty(vectors)
}

func TestEmbedWholeBatchFails(t *testing.T) {
	assert := assert.New(t)

	embedder := &fakeEmbedder{err: fmt.Errorf("model offline")}
	gateway := NewGateway(embedder, Config{})

	vectors, err := gateway.Embed(context.Background(), []string{"a", "b"})

	assert.ErrorIs(err, ErrEmbeddingFailed)
	assert.Nil(vectors, "no partial results on failure")
}

func TestEmbedDimensionMismatch(t *testing.T) {
	assert := assert.New(t)

	embedder := &fakeEmbedder{dimension: 4}
	gateway := NewGateway(embedder, Config{})

	if _, err := gateway.Embed(context.Background(), []string{"first"}); err != nil {
		assert.Fail(err.Error())
		return
	}

	embedder.dimension = 8

	_, err := gateway.Embed(context.Background(), []string{"second"})
	assert.ErrorIs(err, ErrDimensionMismatch)
}

func TestEmbedNoEmbedder(t *testing.T) {
	assert := assert.New(t)

	gateway := NewGateway(nil, Config{})

	_, err := gateway.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(err, ErrNoEmbedderProvided)
}

func TestEmbedOne(t *testing.T) {
	assert := assert.New(t)

	gateway := NewGateway(&fakeEmbedder{dimension: 3}, Config{})

	vec, err := gateway.EmbedOne(context.Background(), "hi")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Len(vec, 3)
}
