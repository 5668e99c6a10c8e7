package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cortexflow/ragcore"

	mcpE "github.com/cortexflow/ragcore/mcp"
)

// AddRouters wires the REST API. The streaming chat route talks to the
// service directly since go-kit endpoints are request/reply.
func AddRouters(r *gin.Engine, endpoints ragcore.EndpointSet, svc ragcore.Service) {
	api := r.Group("/api")
	{
		api.POST("/embedding", EmbedHandler(endpoints.Embed))

		rag := api.Group("/rag")
		{
			rag.POST("/ingest/text", IngestTextHandler(endpoints.IngestDocument))
			rag.POST("/ingest/file", IngestFileHandler(endpoints.IngestRaw))
			rag.POST("/query", QueryHandler(endpoints.Query))
		}

		chat := api.Group("/chat")
		{
			chat.POST("", ChatHandler(endpoints.Chat))
			chat.POST("/stream", ChatStreamHandler(svc))
			chat.GET("/history/:session_id", HistoryHandler(endpoints.History))
			chat.DELETE("/history/:session_id", ClearHistoryHandler(endpoints.ClearHistory))
		}
	}
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}
