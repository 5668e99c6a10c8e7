package mcp

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cortexflow/ragcore"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      mcp.RequestId   `json:"id"`
	Method  mcp.MCPMethod   `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func errorResponse(id any, code int, message string) mcp.JSONRPCError {
	return mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId(id),
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Data    any    `json:"data,omitempty"`
		}{
			Code:    code,
			Message: message,
		},
	}
}

type MCPEndpoint func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage

const MCPSERVER_INSTRUCTIONS string = `ragcore answers questions against an ingested knowledge base, providing:

1. **Document Ingestion**: Index raw text for retrieval
2. **Semantic Search**: Questions are matched against indexed chunks by vector similarity
3. **Grounded Answers**: Retrieved context is fed to the language model
4. **Conversation Memory**: Chat turns keep per-session history

Available tools:
- rag_ingest_text: Index text under a source id
- rag_query: Ask a question against the knowledge base
- chat: Hold a session-attached conversation turn`

const (
	toolQuery      = "rag_query"
	toolIngestText = "rag_ingest_text"
	toolChat       = "chat"
)

func toolDefinitions() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        toolQuery,
			Description: "Ask a question against the ingested knowledge base. Returns the answer with source citations.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"question": map[string]any{
						"type":        "string",
						"description": "The question to answer",
					},
				},
				Required: []string{"question"},
			},
		},
		{
			Name:        toolIngestText,
			Description: "Ingest raw text into the knowledge base under a source id. Re-ingesting a source replaces it.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"source_id": map[string]any{
						"type":        "string",
						"description": "Identifier of the document source",
					},
					"text": map[string]any{
						"type":        "string",
						"description": "The text to index",
					},
				},
				Required: []string{"source_id", "text"},
			},
		},
		{
			Name:        toolChat,
			Description: "Send one chat message in a session. History is kept per session id.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"session_id": map[string]any{
						"type":        "string",
						"description": "Opaque conversation session key",
					},
					"message": map[string]any{
						"type":        "string",
						"description": "The user message",
					},
				},
				Required: []string{"session_id", "message"},
			},
		},
	}
}

func InitializeEndpoint(svc ragcore.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		protocolVersion := mcp.LATEST_PROTOCOL_VERSION
		if clientVersion := params.ProtocolVersion; clientVersion != "" {
			if slices.Contains(mcp.ValidProtocolVersions, clientVersion) {
				protocolVersion = clientVersion
			}
		}

		result := &mcp.InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: mcp.ServerCapabilities{
				Tools: &struct {
					ListChanged bool `json:"listChanged,omitempty"`
				}{},
			},
			ServerInfo: mcp.Implementation{
				Name:    "ragcore",
				Version: "1.0.0",
			},
			Instructions: MCPSERVER_INSTRUCTIONS,
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func PingEndpoint(svc ragcore.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  struct{}{}, // empty response
		}
	}
}

func ListToolsEndpoint(svc ragcore.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		result := &mcp.ListToolsResult{
			Tools: toolDefinitions(),
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  result,
		}
	}
}

func CallToolEndpoint(svc ragcore.Service) MCPEndpoint {
	return func(ctx context.Context, req JSONRPCRequest) mcp.JSONRPCMessage {
		var params mcp.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, err.Error())
		}

		args, ok := params.Arguments.(map[string]any)
		if !ok {
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "invalid tool arguments")
		}

		var (
			result any
			err    error
		)

		switch params.Name {
		case toolQuery:
			question, _ := args["question"].(string)
			result, err = svc.Query(ctx, question)

		case toolIngestText:
			sourceID, _ := args["source_id"].(string)
			text, _ := args["text"].(string)
			result, err = svc.IngestDocument(ctx, sourceID, text)

		case toolChat:
			sessionID, _ := args["session_id"].(string)
			message, _ := args["message"].(string)
			result, err = svc.Chat(ctx, sessionID, message)

		default:
			return errorResponse(req.ID, mcp.INVALID_PARAMS, "unknown tool: "+params.Name)
		}

		if err != nil {
			return errorResponse(req.ID, mcp.INTERNAL_ERROR, err.Error())
		}

		bs, err := json.Marshal(result)
		if err != nil {
			return errorResponse(req.ID, mcp.INTERNAL_ERROR, err.Error())
		}

		return mcp.JSONRPCResponse{
			JSONRPC: mcp.JSONRPC_VERSION,
			ID:      req.ID,
			Result:  mcp.NewToolResultText(string(bs)),
		}
	}
}
