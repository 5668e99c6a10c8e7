package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"
	"github.com/google/uuid"

	"github.com/cortexflow/ragcore"
	"github.com/cortexflow/ragcore/chunker"
	"github.com/cortexflow/ragcore/vector"
)

type errorResponse struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ragcore.ErrInvalidArgument),
		errors.Is(err, chunker.ErrInvalidArgument),
		errors.Is(err, vector.ErrInvalidArgument):
		status = http.StatusBadRequest

	case errors.Is(err, ragcore.ErrTimeout):
		status = http.StatusGatewayTimeout

	case errors.Is(err, ragcore.ErrNotFound):
		status = http.StatusNotFound
	}

	c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{
		Status:    status,
		Message:   err.Error(),
		Path:      c.Request.URL.Path,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func EmbedHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragcore.EmbedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"embedding": resp})
	}
}

func IngestTextHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragcore.IngestDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		if req.SourceID == "" {
			req.SourceID = "manual"
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func IngestFileHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		f, err := file.Open()
		if err != nil {
			fail(c, err)
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			fail(c, err)
			return
		}

		if len(data) == 0 {
			err := errors.New("file is empty")
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		req := ragcore.IngestRawRequest{
			SourceID: file.Filename,
			Data:     data,
		}

		if source := c.PostForm("source"); source != "" {
			req.SourceID = source
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func QueryHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragcore.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ChatHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragcore.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		// A new conversation starts when the caller omits the session
		// id; the minted id comes back in the response.
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, req)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

// ChatStreamHandler delivers the answer as Server-Sent Events. The
// request context carries client disconnects into the orchestrator,
// which keeps whatever was already flushed as the partial turn.
func ChatStreamHandler(svc ragcore.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ragcore.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		c.Header("X-Session-Id", req.SessionID)

		ctx := c.Request.Context()
		fragments, err := svc.ChatStream(ctx, req.SessionID, req.Message)
		if err != nil {
			fail(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		c.Stream(func(w io.Writer) bool {
			frag, ok := <-fragments
			if !ok {
				return false
			}

			if frag.Err != nil {
				c.SSEvent("error", frag.Err.Error())
				return false
			}

			if frag.Content != "" {
				c.SSEvent("message", frag.Content)
			}

			return !frag.Done
		})
	}
}

func HistoryHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if sessionID == "" {
			err := errors.New("session id is required")
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		resp, err := endpoint(ctx, sessionID)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ClearHistoryHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if sessionID == "" {
			err := errors.New("session id is required")
			c.String(http.StatusBadRequest, err.Error())
			c.Error(err)
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		if _, err := endpoint(ctx, sessionID); err != nil {
			fail(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
