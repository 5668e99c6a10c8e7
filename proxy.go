package ragcore

import (
	"context"
	"errors"

	"github.com/cortexflow/ragcore/llm"
	"github.com/cortexflow/ragcore/memory"
)

// ProxyMiddleware turns a remote EndpointSet (e.g. the NATS client
// factory) into a Service. Streaming stays transport-local.
func ProxyMiddleware(endpoints *EndpointSet) ServiceMiddleware {
	return func(next Service) Service {
		return &proxyMiddleware{
			endpoints: endpoints,
		}
	}
}

type proxyMiddleware struct {
	endpoints *EndpointSet
}

func (mw *proxyMiddleware) Close() error {
	return errors.New("method not implemented")
}

func (mw *proxyMiddleware) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := mw.endpoints.Embed(ctx, EmbedRequest{Text: text})
	if err != nil {
		return nil, err
	}

	vec, ok := resp.([]float32)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return vec, nil
}

func (mw *proxyMiddleware) IngestDocument(ctx context.Context, sourceID, text string) (*IngestResult, error) {
	req := IngestDocumentRequest{
		SourceID: sourceID,
		Text:     text,
	}

	resp, err := mw.endpoints.IngestDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	result, ok := resp.(*IngestResult)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return result, nil
}

func (mw *proxyMiddleware) IngestRaw(ctx context.Context, sourceID string, data []byte) (*IngestResult, error) {
	req := IngestRawRequest{
		SourceID: sourceID,
		Data:     data,
	}

	resp, err := mw.endpoints.IngestRaw(ctx, req)
	if err != nil {
		return nil, err
	}

	result, ok := resp.(*IngestResult)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return result, nil
}

func (mw *proxyMiddleware) Query(ctx context.Context, question string) (*QueryResult, error) {
	resp, err := mw.endpoints.Query(ctx, QueryRequest{Question: question})
	if err != nil {
		return nil, err
	}

	result, ok := resp.(*QueryResult)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return result, nil
}

func (mw *proxyMiddleware) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	req := ChatRequest{
		SessionID: sessionID,
		Message:   message,
	}

	resp, err := mw.endpoints.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	result, ok := resp.(*ChatResult)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return result, nil
}

func (mw *proxyMiddleware) ChatStream(ctx context.Context, sessionID, message string) (<-chan llm.Fragment, error) {
	return nil, ErrNotSupported
}

func (mw *proxyMiddleware) History(ctx context.Context, sessionID string) ([]memory.Message, error) {
	resp, err := mw.endpoints.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages, ok := resp.([]memory.Message)
	if !ok {
		return nil, errors.New("invalid response type")
	}

	return messages, nil
}

func (mw *proxyMiddleware) ClearHistory(ctx context.Context, sessionID string) error {
	_, err := mw.endpoints.ClearHistory(ctx, sessionID)
	return err
}
