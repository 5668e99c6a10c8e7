package ragcore

import (
	"context"

	"go.uber.org/zap"

	"github.com/cortexflow/ragcore/llm"
	"github.com/cortexflow/ragcore/memory"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "ragcore"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Embed(ctx context.Context, text string) ([]float32, error) {
	log := mw.log.With(
		zap.String("action", "embed"),
	)

	vec, err := mw.next.Embed(ctx, text)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("text embedded", zap.Int("dimension", len(vec)))
	return vec, nil
}

func (mw *loggingMiddleware) IngestDocument(ctx context.Context, sourceID, text string) (*IngestResult, error) {
	log := mw.log.With(
		zap.String("action", "ingest_document"),
		zap.String("source_id", sourceID),
	)

	result, err := mw.next.IngestDocument(ctx, sourceID, text)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("document ingested", zap.Int("chunks", result.ChunkCount))
	return result, nil
}

func (mw *loggingMiddleware) IngestRaw(ctx context.Context, sourceID string, data []byte) (*IngestResult, error) {
	log := mw.log.With(
		zap.String("action", "ingest_raw"),
		zap.String("source_id", sourceID),
		zap.Int("bytes", len(data)),
	)

	result, err := mw.next.IngestRaw(ctx, sourceID, data)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("document ingested", zap.Int("chunks", result.ChunkCount))
	return result, nil
}

func (mw *loggingMiddleware) Query(ctx context.Context, question string) (*QueryResult, error) {
	log := mw.log.With(
		zap.String("action", "query"),
	)

	result, err := mw.next.Query(ctx, question)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("query answered", zap.Int("citations", len(result.Citations)))
	return result, nil
}

func (mw *loggingMiddleware) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	log := mw.log.With(
		zap.String("action", "chat"),
		zap.String("session_id", sessionID),
	)

	result, err := mw.next.Chat(ctx, sessionID, message)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("chat turn completed")
	return result, nil
}

func (mw *loggingMiddleware) ChatStream(ctx context.Context, sessionID, message string) (<-chan llm.Fragment, error) {
	log := mw.log.With(
		zap.String("action", "chat_stream"),
		zap.String("session_id", sessionID),
	)

	fragments, err := mw.next.ChatStream(ctx, sessionID, message)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("chat stream started")
	return fragments, nil
}

func (mw *loggingMiddleware) History(ctx context.Context, sessionID string) ([]memory.Message, error) {
	log := mw.log.With(
		zap.String("action", "history"),
		zap.String("session_id", sessionID),
	)

	messages, err := mw.next.History(ctx, sessionID)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("history fetched", zap.Int("count", len(messages)))
	return messages, nil
}

func (mw *loggingMiddleware) ClearHistory(ctx context.Context, sessionID string) error {
	log := mw.log.With(
		zap.String("action", "clear_history"),
		zap.String("session_id", sessionID),
	)

	if err := mw.next.ClearHistory(ctx, sessionID); err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("history cleared")
	return nil
}
