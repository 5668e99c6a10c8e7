package ragcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cortexflow/ragcore/extract"
	"github.com/cortexflow/ragcore/llm"

	memoryP "github.com/cortexflow/ragcore/persistence/memory"
)

// wordVector maps a text to a tiny topic vector so retrieval behaves
// deterministically: texts about the same topic land on the same axis.
func wordVector(text string) []float32 {
	vec := make([]float32, 3)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		switch strings.Trim(word, ".,!?") {
		case "sky", "blue":
			vec[0]++
		case "grass", "green":
			vec[1]++
		case "sun", "yellow":
			vec[2]++
		}
	}

	return vec
}

type topicEmbedder struct{}

func (topicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return wordVector(text), nil
}

func (topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = wordVector(text)
	}

	return vecs, nil
}

type scriptedGenerator struct {
	answer    string
	err       error
	delay     time.Duration
	fragments []llm.Fragment
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if g.err != nil {
		return "", g.err
	}

	return g.answer, nil
}

func (g *scriptedGenerator) GenerateStream(ctx context.Context, prompt string) (<-chan llm.Fragment, error) {
	if g.err != nil {
		return nil, g.err
	}

	ch := make(chan llm.Fragment)
	go func() {
		defer close(ch)

		for _, frag := range g.fragments {
			select {
			case ch <- frag:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// gatedGenerator emits one fragment per gate feed, so a test controls
// exactly how far the stream gets before cancellation.
type gatedGenerator struct {
	fragments []llm.Fragment
	gate      chan struct{}
}

func (g *gatedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("blocking generation not scripted")
}

func (g *gatedGenerator) GenerateStream(ctx context.Context, prompt string) (<-chan llm.Fragment, error) {
	ch := make(chan llm.Fragment)
	go func() {
		defer close(ch)

		for _, frag := range g.fragments {
			select {
			case <-g.gate:
			case <-ctx.Done():
				select {
				case ch <- llm.Fragment{Done: true, Err: ctx.Err()}:
				default:
				}
				return
			}

			select {
			case ch <- frag:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func newTestService(generator llm.Generator) (Service, *memoryP.Index, error) {
	cfg := Config{
		SystemPrompt: "You are a helpful assistant.",
		Chunking: ChunkingConfig{
			MaxChunkChars: 20,
			OverlapChars:  0,
		},
		Retrieval: RetrievalConfig{
			TopK:     3,
			MinScore: 0.1,
		},
	}

	index := memoryP.NewIndex()

	svc, err := NewService(cfg, index, topicEmbedder{}, generator, extract.NewDocumentExtractor())
	if err != nil {
		return nil, nil, err
	}

	return svc, index, nil
}

func TestIngestAndQuery(t *testing.T) {
	assert := assert.New(t)

	generator := &scriptedGenerator{answer: "The sky is blue."}

	svc, _, err := newTestService(generator)
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx := context.Background()

	ingested, err := svc.IngestDocument(ctx, "facts", "The sky is blue. Grass is green.")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("facts", ingested.SourceID)
	assert.Equal(2, ingested.ChunkCount)

	result, err := svc.Query(ctx, "What color is the sky?")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("The sky is blue.", result.Answer)

	if assert.NotEmpty(result.Citations) {
		assert.Equal("facts", result.Citations[0].SourceID)
		assert.Greater(result.Citations[0].Score, float32(0.1))
	}
}

func TestIngestReplacesSource(t *testing.T) {
	assert := assert.New(t)

	svc, index, err := newTestService(&scriptedGenerator{answer: "ok"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, "facts", "The sky is blue. Grass is green."); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(2, index.Count())

	ingested, err := svc.IngestDocument(ctx, "facts", "The sun is yellow.")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(1, ingested.ChunkCount)
	assert.Equal(1, index.Count(), "re-ingest replaces the whole source")
}

func TestIngestEmptyDocument(t *testing.T) {
	assert := assert.New(t)

	svc, index, err := newTestService(&scriptedGenerator{answer: "ok"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ingested, err := svc.IngestDocument(context.Background(), "empty", "   \n")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(0, ingested.ChunkCount)
	assert.Equal(0, index.Count())
}

func TestIngestRawPlainText(t *testing.T) {
	assert := assert.New(t)

	svc, _, err := newTestService(&scriptedGenerator{answer: "ok"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ingested, err := svc.IngestRaw(context.Background(), "notes", []byte("The sky is blue."))
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(1, ingested.ChunkCount)
}

func TestIngestRawCorruptPDF(t *testing.T) {
	assert := assert.New(t)

	svc, _, err := newTestService(&scriptedGenerator{answer: "ok"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	_, err = svc.IngestRaw(context.Background(), "broken", []byte("%PDF-1.4 not really a pdf"))

	var stageErr *StageError
	if assert.ErrorAs(err, &stageErr) {
		assert.Equal(StageExtraction, stageErr.Stage)
	}
}

func TestQueryInvalidArgument(t *testing.T) {
	assert := assert.New(t)

	svc, _, err := newTestService(&scriptedGenerator{answer: "ok"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	_, err = svc.Query(context.Background(), "   ")
	assert.ErrorIs(err, ErrInvalidArgument)
}

func TestChatCommitsHistory(t *testing.T) {
	assert := assert.New(t)

	svc, _, err := newTestService(&scriptedGenerator{answer: "Hello there."})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx := context.Background()

	result, err := svc.Chat(ctx, "s1", "Tell me about the sky.")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal("s1", result.SessionID)
	assert.Equal("Hello there.", result.Answer)

	history, err := svc.History(ctx, "s1")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	if assert.Len(history, 2) {
		assert.Equal("Tell me about the sky.", history[0].Content)
		assert.Equal("Hello there.", history[1].Content)
	}
}

func TestChatFailureLeavesNoTrace(t *testing.T) {
	assert := assert.New(t)

	svc, _, err := newTestService(&scriptedGenerator{err: errors.New("model offline")})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx := context.Background()

	_, err = svc.Chat(ctx, "s1", "Tell me about the sky.")

	assert.ErrorIs(err, ErrGenerationFailed)

	var stageErr *StageError
	if assert.ErrorAs(err, &stageErr) {
		assert.Equal(StageGeneration, stageErr.Stage)
	}

	history, err := svc.History(ctx, "s1")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Empty(history)
}

func TestChatInvalidArguments(t *testing.T) {
	assert := assert.New(t)

	svc, _, err := newTestService(&scriptedGenerator{answer: "ok"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx := context.Background()

	_, err = svc.Chat(ctx, "", "message")
	assert.ErrorIs(err, ErrInvalidArgument)

	_, err = svc.Chat(ctx, "s1", "  ")
	assert.ErrorIs(err, ErrInvalidArgument)
}

func TestGenerationTimeout(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{
		Retrieval:  RetrievalConfig{TopK: 3},
		Generation: GenerationConfig{Timeout: Duration(20 * time.Millisecond)},
	}

	generator := &scriptedGenerator{answer: "too late", delay: time.Second}

	svc, err := NewService(cfg, memoryP.NewIndex(), topicEmbedder{}, generator, nil)
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	_, err = svc.Query(context.Background(), "What color is the sky?")

	assert.ErrorIs(err, ErrTimeout)

	var stageErr *StageError
	if assert.ErrorAs(err, &stageErr) {
		assert.Equal(StageGeneration, stageErr.Stage)
	}
}

func TestChatStreamDeliversAll(t *testing.T) {
	assert := assert.New(t)

	generator := &scriptedGenerator{
		fragments: []llm.Fragment{
			{Content: "The sky "},
			{Content: "is blue."},
			{Done: true},
		},
	}

	svc, _, err := newTestService(generator)
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx := context.Background()

	stream, err := svc.ChatStream(ctx, "s1", "What color is the sky?")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	var answer strings.Builder
	for frag := range stream {
		assert.NoError(frag.Err)
		answer.WriteString(frag.Content)
	}

	assert.Equal("The sky is blue.", answer.String())

	history, err := svc.History(ctx, "s1")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	if assert.Len(history, 2) {
		assert.Equal("What color is the sky?", history[0].Content)
		assert.Equal("The sky is blue.", history[1].Content)
	}
}

func TestChatStreamErrorKeepsDelivered(t *testing.T) {
	assert := assert.New(t)

	generator := &scriptedGenerator{
		fragments: []llm.Fragment{
			{Content: "par"},
			{Content: "tial"},
			{Err: errors.New("model crashed")},
		},
	}

	svc, _, err := newTestService(generator)
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx := context.Background()

	stream, err := svc.ChatStream(ctx, "s1", "Tell me about the sky.")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	var (
		answer    strings.Builder
		streamErr error
	)
	for frag := range stream {
		if frag.Err != nil {
			streamErr = frag.Err
		}
		answer.WriteString(frag.Content)
	}

	assert.EqualError(streamErr, "model crashed", "the stream must end with an error marker")
	assert.Equal("partial", answer.String())

	history, err := svc.History(ctx, "s1")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	if assert.Len(history, 2) {
		assert.Equal("Tell me about the sky.", history[0].Content)
		assert.Equal("partial", history[1].Content, "delivered fragments stay despite the failure")
	}
}

func TestChatStreamCancelKeepsDelivered(t *testing.T) {
	assert := assert.New(t)

	generator := &gatedGenerator{
		fragments: []llm.Fragment{
			{Content: "Hello"},
			{Content: ", wor"},
			{Content: "ld!"},
			{Done: true},
		},
		gate: make(chan struct{}),
	}

	svc, _, err := newTestService(generator)
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := svc.ChatStream(ctx, "s1", "Tell me about the sky.")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	generator.gate <- struct{}{}
	frag := <-stream
	assert.Equal("Hello", frag.Content)

	generator.gate <- struct{}{}
	frag = <-stream
	assert.Equal(", wor", frag.Content)

	cancel()

	for frag := range stream {
		assert.Empty(frag.Content, "no content after cancellation")
	}

	history, err := svc.History(context.Background(), "s1")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	if assert.Len(history, 2) {
		assert.Equal("Tell me about the sky.", history[0].Content)
		assert.Equal("Hello, wor", history[1].Content, "delivered fragments survive as a partial message")
	}
}

func TestChatStreamCancelBeforeDeliveryCommitsNothing(t *testing.T) {
	assert := assert.New(t)

	generator := &gatedGenerator{
		fragments: []llm.Fragment{
			{Content: "never sent"},
			{Done: true},
		},
		gate: make(chan struct{}),
	}

	svc, _, err := newTestService(generator)
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())

	stream, err := svc.ChatStream(ctx, "s1", "Tell me about the sky.")
	if err != nil {
		cancel()
		assert.Fail(err.Error())
		return
	}

	cancel()

	for range stream {
	}

	history, err := svc.History(context.Background(), "s1")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Empty(history, "a turn with no delivered fragments leaves no trace")
}

func TestClearHistory(t *testing.T) {
	assert := assert.New(t)

	svc, _, err := newTestService(&scriptedGenerator{answer: "Hi."})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	ctx := context.Background()

	if _, err := svc.Chat(ctx, "s1", "Hello?"); err != nil {
		assert.Fail(err.Error())
		return
	}

	if err := svc.ClearHistory(ctx, "s1"); err != nil {
		assert.Fail(err.Error())
		return
	}

	history, err := svc.History(ctx, "s1")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Empty(history)

	// Clearing again is a no-op.
	assert.NoError(svc.ClearHistory(ctx, "s1"))
}

func TestEmbed(t *testing.T) {
	assert := assert.New(t)

	svc, _, err := newTestService(&scriptedGenerator{answer: "ok"})
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer svc.Close()

	vec, err := svc.Embed(context.Background(), "The sky is blue.")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([]float32{2, 0, 0}, vec)

	_, err = svc.Embed(context.Background(), " ")
	assert.ErrorIs(err, ErrInvalidArgument)
}
