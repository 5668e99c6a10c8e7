package ragcore

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
)

type EndpointSet struct {
	Embed          endpoint.Endpoint
	IngestDocument endpoint.Endpoint
	IngestRaw      endpoint.Endpoint
	Query          endpoint.Endpoint
	Chat           endpoint.Endpoint
	History        endpoint.Endpoint
	ClearHistory   endpoint.Endpoint
}

type EmbedRequest struct {
	Text string `json:"text"`
}

func EmbedEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(EmbedRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Embed(ctx, req.Text)
	}
}

type IngestDocumentRequest struct {
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
}

func IngestDocumentEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestDocumentRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.IngestDocument(ctx, req.SourceID, req.Text)
	}
}

type IngestRawRequest struct {
	SourceID string `json:"source_id"`
	Data     []byte `json:"data"`
}

func IngestRawEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRawRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.IngestRaw(ctx, req.SourceID, req.Data)
	}
}

type QueryRequest struct {
	Question string `json:"question"`
}

func QueryEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(QueryRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Query(ctx, req.Question)
	}
}

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func ChatEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ChatRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Chat(ctx, req.SessionID, req.Message)
	}
}

func HistoryEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		sessionID, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.History(ctx, sessionID)
	}
}

func ClearHistoryEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		sessionID, ok := request.(string)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		err := svc.ClearHistory(ctx, sessionID)
		return nil, err
	}
}
