// Package ollama adapts a local Ollama server to the llm contracts.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cortexflow/ragcore/llm"
)

const (
	defaultBaseURL    = "http://localhost:11434"
	defaultChatModel  = "llama3.2"
	defaultEmbedModel = "nomic-embed-text"
)

// Client implements llm.Embedder and llm.Generator over the Ollama
// HTTP API. Cancellation and timeouts ride on the request context.
type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	client     *http.Client
}

func NewClient(cfg llm.Config) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		client:     &http.Client{},
	}

	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.chatModel == "" {
		c.chatModel = defaultChatModel
	}
	if c.embedModel == "" {
		c.embedModel = defaultEmbedModel
	}

	return c
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	err := c.post(ctx, "/api/embeddings", embedRequest{
		Model:  c.embedModel,
		Prompt: text,
	}, &out)

	if err != nil {
		return nil, err
	}

	return out.Embedding, nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}

		vectors[i] = vec
	}

	return vectors, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	err := c.post(ctx, "/api/generate", generateRequest{
		Model:  c.chatModel,
		Prompt: prompt,
	}, &out)

	if err != nil {
		return "", err
	}

	return out.Response, nil
}

func (c *Client) GenerateStream(ctx context.Context, prompt string) (<-chan llm.Fragment, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.chatModel,
		Prompt: prompt,
		Stream: true,
	})

	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	ch := make(chan llm.Fragment, 16)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		// Every send races ctx.Done: a cancelled consumer stops
		// reading, and the producer must still exit and release the
		// connection.
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk generateResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}

			select {
			case ch <- llm.Fragment{Content: chunk.Response, Done: chunk.Done}:
			case <-ctx.Done():
				select {
				case ch <- llm.Fragment{Done: true, Err: ctx.Err()}:
				default:
				}
				return
			}

			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			select {
			case ch <- llm.Fragment{Done: true, Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
