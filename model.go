package ragcore

import (
	"encoding/json"
	"errors"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cortexflow/ragcore/llm"
	"github.com/cortexflow/ragcore/vector"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrGenerationFailed = errors.New("generation failed")
	ErrTimeout          = errors.New("stage timed out")
	ErrNotFound         = errors.New("not found")
	ErrNotSupported     = errors.New("operation not supported on this transport")
)

// Stage identifies where in the pipeline a request failed. Only the
// stage name and the error kind are contract; wrapped causes are not.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageIndexing   Stage = "indexing"
	StageRetrieval  Stage = "retrieval"
	StageAssembly   Stage = "assembly"
	StageGeneration Stage = "generation"
)

// StageError tags a pipeline failure with its originating stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type ContextKey string

const (
	// PrincipalKey carries the already-authenticated principal; the
	// core never sees raw credentials.
	PrincipalKey ContextKey = "principal"
)

type Principal struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles,omitempty"`
}

// Authenticator verifies a bearer token. Identity is an external
// collaborator; the core only ever receives the resulting principal.
type Authenticator interface {
	Authenticate(token string) (Principal, error)
}

type Config struct {
	SystemPrompt string           `yaml:"systemPrompt"`
	Chunking     ChunkingConfig   `yaml:"chunking"`
	Retrieval    RetrievalConfig  `yaml:"retrieval"`
	Embedding    EmbeddingConfig  `yaml:"embedding"`
	Generation   GenerationConfig `yaml:"generation"`
	Memory       MemoryConfig     `yaml:"memory"`
	Prompt       PromptConfig     `yaml:"prompt"`
	Vector       vector.Config    `yaml:"vector"`
	LLM          llm.Config       `yaml:"llm"`
}

type ChunkingConfig struct {
	MaxChunkChars int `yaml:"maxChunkChars"`
	OverlapChars  int `yaml:"overlapChars"`
}

type RetrievalConfig struct {
	TopK     int     `yaml:"topK"`
	MinScore float32 `yaml:"minScore"`
}

type EmbeddingConfig struct {
	BatchSize int      `yaml:"batchSize"`
	Timeout   Duration `yaml:"timeout"`
}

type GenerationConfig struct {
	Timeout Duration `yaml:"timeout"`
}

type MemoryConfig struct {
	MaxMessages   int      `yaml:"maxMessages"`
	HistoryWindow int      `yaml:"historyWindow"`
	IdleTTL       Duration `yaml:"idleTTL"`
	SweepInterval Duration `yaml:"sweepInterval"`
}

type PromptConfig struct {
	BudgetChars int `yaml:"budgetChars"`
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	// Parse the string duration
	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() ([]byte, error) {
	str := d.Duration().String()
	return yaml.Marshal(str)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	// Parse the string duration
	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

type IngestResult struct {
	SourceID   string `json:"source_id"`
	ChunkCount int    `json:"chunk_count"`
}

type Citation struct {
	SourceID string  `json:"source_id"`
	Score    float32 `json:"score"`
}

type QueryResult struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

type ChatResult struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}
