package ragcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cortexflow/ragcore/chunker"
	"github.com/cortexflow/ragcore/embedding"
	"github.com/cortexflow/ragcore/extract"
	"github.com/cortexflow/ragcore/llm"
	"github.com/cortexflow/ragcore/memory"
	"github.com/cortexflow/ragcore/prompt"
	"github.com/cortexflow/ragcore/vector"
)

// Service is the RAG orchestrator: it owns the ingestion flow
// (chunk, embed, upsert) and the query/chat flow (embed, retrieve,
// assemble, generate, remember).
type Service interface {

	// Close releases the service's background resources.
	Close() error

	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// IngestDocument chunks, embeds, and indexes text under sourceID,
	// replacing any earlier ingest of the same source.
	IngestDocument(ctx context.Context, sourceID, text string) (*IngestResult, error)

	// IngestRaw extracts text from document bytes, then ingests it.
	IngestRaw(ctx context.Context, sourceID string, data []byte) (*IngestResult, error)

	// Query answers a question against the knowledge base without any
	// session attached.
	Query(ctx context.Context, question string) (*QueryResult, error)

	// Chat runs one blocking session-attached turn.
	Chat(ctx context.Context, sessionID, message string) (*ChatResult, error)

	// ChatStream runs one session-attached turn, delivering the answer
	// as ordered fragments. Cancelling ctx stops the stream; fragments
	// already delivered stay in the session history as the assistant's
	// partial message.
	ChatStream(ctx context.Context, sessionID, message string) (<-chan llm.Fragment, error)

	// History returns the session's messages in insertion order.
	History(ctx context.Context, sessionID string) ([]memory.Message, error)

	// ClearHistory empties the session's history. Unknown sessions are
	// a no-op.
	ClearHistory(ctx context.Context, sessionID string) error
}

type ServiceMiddleware func(Service) Service

const defaultTopK = 5

func NewService(cfg Config, index vector.Index, embedder llm.Embedder, generator llm.Generator, extractor extract.Extractor) (Service, error) {
	if index == nil {
		return nil, errors.New("vector index is required")
	}

	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	if generator == nil {
		return nil, errors.New("generator is required")
	}

	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = defaultTopK
	}

	log := zap.L().With(
		zap.String("service", "ragcore"),
	)

	store := memory.NewStore(memory.Config{
		MaxMessages:   cfg.Memory.MaxMessages,
		IdleTTL:       cfg.Memory.IdleTTL.Duration(),
		SweepInterval: cfg.Memory.SweepInterval.Duration(),
	})

	return &service{
		cfg:       cfg,
		gateway:   embedding.NewGateway(embedder, embedding.Config{BatchSize: cfg.Embedding.BatchSize}),
		index:     index,
		generator: generator,
		extractor: extractor,
		store:     store,
		log:       log,
	}, nil
}

type service struct {
	cfg       Config
	gateway   *embedding.Gateway
	index     vector.Index
	generator llm.Generator
	extractor extract.Extractor
	store     *memory.Store
	log       *zap.Logger
}

func (svc *service) Close() error {
	svc.store.Close()
	return nil
}

func (svc *service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidArgument
	}

	ctx, cancel := withTimeout(ctx, svc.cfg.Embedding.Timeout)
	defer cancel()

	vec, err := svc.gateway.EmbedOne(ctx, text)
	if err != nil {
		return nil, stageError(StageEmbedding, err)
	}

	return vec, nil
}

func (svc *service) IngestDocument(ctx context.Context, sourceID, text string) (*IngestResult, error) {
	if sourceID == "" {
		return nil, ErrInvalidArgument
	}

	chunks, err := chunker.Split(text, svc.cfg.Chunking.MaxChunkChars, svc.cfg.Chunking.OverlapChars)
	if err != nil {
		return nil, stageError(StageChunking, err)
	}

	if len(chunks) == 0 {
		return &IngestResult{SourceID: sourceID}, nil
	}

	embedCtx, cancel := withTimeout(ctx, svc.cfg.Embedding.Timeout)
	defer cancel()

	vectors, err := svc.gateway.Embed(embedCtx, chunks)
	if err != nil {
		return nil, stageError(StageEmbedding, err)
	}

	entries := make([]vector.Entry, len(chunks))
	for i, text := range chunks {
		entries[i] = vector.Entry{
			ID:        sourceID + ":" + strconv.Itoa(i),
			SourceID:  sourceID,
			Sequence:  i,
			Text:      text,
			Embedding: vectors[i],
		}
	}

	// Re-ingesting a source replaces it entirely; the old version may
	// have had more chunks than the new one.
	if err := svc.index.Delete(ctx, sourceID); err != nil {
		return nil, stageError(StageIndexing, err)
	}

	if err := svc.index.Upsert(ctx, entries); err != nil {
		return nil, stageError(StageIndexing, err)
	}

	return &IngestResult{
		SourceID:   sourceID,
		ChunkCount: len(entries),
	}, nil
}

func (svc *service) IngestRaw(ctx context.Context, sourceID string, data []byte) (*IngestResult, error) {
	if sourceID == "" || len(data) == 0 {
		return nil, ErrInvalidArgument
	}

	if svc.extractor == nil {
		return nil, stageError(StageExtraction, errors.New("no extractor configured"))
	}

	text, err := svc.extractor.ExtractText(ctx, data)
	if err != nil {
		return nil, stageError(StageExtraction, err)
	}

	return svc.IngestDocument(ctx, sourceID, text)
}

func (svc *service) Query(ctx context.Context, question string) (*QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrInvalidArgument
	}

	retrieved, err := svc.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	p := prompt.Build(svc.cfg.SystemPrompt, retrieved, nil, question, svc.cfg.Prompt.BudgetChars)

	answer, err := svc.generate(ctx, p.Render())
	if err != nil {
		return nil, err
	}

	citations := make([]Citation, len(retrieved))
	for i, r := range retrieved {
		citations[i] = Citation{
			SourceID: r.Entry.SourceID,
			Score:    r.Score,
		}
	}

	return &QueryResult{
		Answer:    answer,
		Citations: citations,
	}, nil
}

func (svc *service) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	if sessionID == "" || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidArgument
	}

	release := svc.store.Acquire(sessionID)
	defer release()

	history := svc.store.History(sessionID, svc.cfg.Memory.HistoryWindow)

	retrieved, err := svc.retrieve(ctx, message)
	if err != nil {
		return nil, err
	}

	p := prompt.Build(svc.cfg.SystemPrompt, retrieved, history, message, svc.cfg.Prompt.BudgetChars)

	answer, err := svc.generate(ctx, p.Render())
	if err != nil {
		// A failed turn leaves no trace in the session.
		return nil, err
	}

	now := time.Now()
	svc.store.Append(sessionID,
		memory.Message{Role: memory.RoleUser, Content: message, Timestamp: now},
		memory.Message{Role: memory.RoleAssistant, Content: answer, Timestamp: time.Now()},
	)

	return &ChatResult{
		SessionID: sessionID,
		Answer:    answer,
	}, nil
}

func (svc *service) ChatStream(ctx context.Context, sessionID, message string) (<-chan llm.Fragment, error) {
	if sessionID == "" || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidArgument
	}

	release := svc.store.Acquire(sessionID)

	done := false
	defer func() {
		// Released here only when setup fails; otherwise the
		// forwarding goroutine owns the lock for the whole turn.
		if !done {
			release()
		}
	}()

	history := svc.store.History(sessionID, svc.cfg.Memory.HistoryWindow)

	retrieved, err := svc.retrieve(ctx, message)
	if err != nil {
		return nil, err
	}

	p := prompt.Build(svc.cfg.SystemPrompt, retrieved, history, message, svc.cfg.Prompt.BudgetChars)

	genCtx, cancel := withTimeout(ctx, svc.cfg.Generation.Timeout)

	fragments, err := svc.generator.GenerateStream(genCtx, p.Render())
	if err != nil {
		cancel()
		return nil, stageError(StageGeneration, fmt.Errorf("%w: %w", ErrGenerationFailed, err))
	}

	out := make(chan llm.Fragment)
	done = true

	go svc.forward(genCtx, cancel, release, sessionID, message, fragments, out)

	return out, nil
}

// forward relays generated fragments to the caller, then commits the
// turn: the user message plus whatever part of the assistant response
// was actually delivered. Delivered fragments are never retracted.
func (svc *service) forward(ctx context.Context, cancel context.CancelFunc, release func(), sessionID, message string, fragments <-chan llm.Fragment, out chan<- llm.Fragment) {
	defer close(out)
	defer release()
	defer cancel()

	var (
		delivered strings.Builder
		streamErr error
	)

loop:
	for frag := range fragments {
		if frag.Err != nil {
			streamErr = frag.Err
		}

		select {
		case out <- frag:
			delivered.WriteString(frag.Content)

		case <-ctx.Done():
			streamErr = ctx.Err()
			break loop
		}

		if frag.Done || frag.Err != nil {
			break
		}
	}

	if streamErr != nil && ctx.Err() != nil {
		// Best effort: the consumer may already be gone.
		select {
		case out <- llm.Fragment{Done: true, Err: streamErr}:
		default:
		}
	}

	if delivered.Len() == 0 {
		// Nothing reached the caller, so nothing is committed.
		return
	}

	now := time.Now()
	svc.store.Append(sessionID,
		memory.Message{Role: memory.RoleUser, Content: message, Timestamp: now},
		memory.Message{Role: memory.RoleAssistant, Content: delivered.String(), Timestamp: time.Now()},
	)

	if streamErr != nil {
		svc.log.Warn("stream terminated early",
			zap.String("session_id", sessionID),
			zap.Error(streamErr),
		)
	}
}

func (svc *service) History(ctx context.Context, sessionID string) ([]memory.Message, error) {
	if sessionID == "" {
		return nil, ErrInvalidArgument
	}

	return svc.store.History(sessionID, 0), nil
}

func (svc *service) ClearHistory(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidArgument
	}

	svc.store.Clear(sessionID)
	return nil
}

// retrieve embeds the question and searches the index; the two stages
// fail independently so callers can tell them apart.
func (svc *service) retrieve(ctx context.Context, question string) ([]vector.Result, error) {
	embedCtx, cancel := withTimeout(ctx, svc.cfg.Embedding.Timeout)
	defer cancel()

	queryVec, err := svc.gateway.EmbedOne(embedCtx, question)
	if err != nil {
		return nil, stageError(StageEmbedding, err)
	}

	results, err := svc.index.Search(ctx, queryVec, svc.cfg.Retrieval.TopK, svc.cfg.Retrieval.MinScore)
	if err != nil {
		return nil, stageError(StageRetrieval, err)
	}

	return results, nil
}

func (svc *service) generate(ctx context.Context, rendered string) (string, error) {
	genCtx, cancel := withTimeout(ctx, svc.cfg.Generation.Timeout)
	defer cancel()

	answer, err := svc.generator.Generate(genCtx, rendered)
	if err != nil {
		return "", stageError(StageGeneration, fmt.Errorf("%w: %w", ErrGenerationFailed, err))
	}

	return answer, nil
}

func withTimeout(ctx context.Context, d Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d.Duration())
}

func stageError(stage Stage, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrTimeout
	}

	return &StageError{Stage: stage, Err: err}
}
