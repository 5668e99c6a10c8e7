package llm

import "context"

type Config struct {
	BaseURL    string `yaml:"baseURL"`
	ChatModel  string `yaml:"chatModel"`
	EmbedModel string `yaml:"embedModel"`
}

// Embedder converts text into fixed-dimension vectors. All vectors
// from one embedder share a dimension; callers treat a mismatch as a
// fatal configuration error.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces language-model completions for an assembled prompt.
type Generator interface {
	// Generate blocks until the full response is available.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateStream emits the response as ordered fragments. The channel
	// is closed after the terminal fragment; a mid-stream failure is
	// carried in the final fragment's Err. Fragments already delivered
	// are never retracted. Cancelling ctx stops production promptly.
	GenerateStream(ctx context.Context, prompt string) (<-chan Fragment, error)
}

// Fragment is a single piece of a streamed response.
type Fragment struct {
	Content string
	Done    bool
	Err     error
}
