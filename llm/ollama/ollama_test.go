package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cortexflow/ragcore/llm"
)

func TestGenerateStream(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"The sky ","done":false}`)
		fmt.Fprintln(w, `{"response":"is blue.","done":false}`)
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	client := NewClient(llm.Config{BaseURL: srv.URL})

	stream, err := client.GenerateStream(context.Background(), "prompt")
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
}

func TestGenerateStreamCancelReleasesProducer(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			return
		}

		// Stream until the client hangs up, far past the fragment
		// channel's buffer.
		for {
			select {
			case <-r.Context().Done():
				return
			default:
			}

			if _, err := fmt.Fprintln(w, `{"response":"x","done":false}`); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewClient(llm.Config{BaseURL: srv.URL})

	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.GenerateStream(ctx, "prompt")
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	<-stream
	<-stream

	// Stop reading entirely; the producer must still exit and close
	// the connection.
	cancel()

	assert.Eventually(func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 50*time.Millisecond)
}
