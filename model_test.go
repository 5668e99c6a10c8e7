package ragcore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestConfigYAMLUnmarshal(t *testing.T) {
	assert := assert.New(t)

	input := `systemPrompt: You are a helpful assistant.
chunking:
  maxChunkChars: 800
  overlapChars: 100
retrieval:
  topK: 4
  minScore: 0.25
embedding:
  batchSize: 32
  timeout: 10s
generation:
  timeout: 2m
memory:
  maxMessages: 100
  historyWindow: 10
  idleTTL: 30m
  sweepInterval: 5m
prompt:
  budgetChars: 8000
vector:
  backend: chromem
  persistent: true
  collection: chunks
llm:
  baseURL: http://localhost:11434
  chatModel: llama3.2
  embedModel: nomic-embed-text`

	var cfg Config
	if err := yaml.Unmarshal([]byte(input), &cfg); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(800, cfg.Chunking.MaxChunkChars)
	assert.Equal(100, cfg.Chunking.OverlapChars)
	assert.Equal(4, cfg.Retrieval.TopK)
	assert.Equal(float32(0.25), cfg.Retrieval.MinScore)
	assert.Equal(10*time.Second, cfg.Embedding.Timeout.Duration())
	assert.Equal(2*time.Minute, cfg.Generation.Timeout.Duration())
	assert.Equal(30*time.Minute, cfg.Memory.IdleTTL.Duration())
	assert.Equal("chromem", cfg.Vector.Backend)
	assert.True(cfg.Vector.Persistent)
	assert.Equal("llama3.2", cfg.LLM.ChatModel)
}

func TestDurationJSONRoundTrip(t *testing.T) {
	assert := assert.New(t)

	d := Duration(90 * time.Second)

	bs, err := json.Marshal(d)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(`"1m30s"`, string(bs))

	var parsed Duration
	if err := json.Unmarshal(bs, &parsed); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal(d, parsed)
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	assert := assert.New(t)

	var d Duration
	err := json.Unmarshal([]byte(`"not-a-duration"`), &d)
	assert.Error(err)
}

func TestStageErrorWrapping(t *testing.T) {
	assert := assert.New(t)

	err := &StageError{
		Stage: StageGeneration,
		Err:   ErrTimeout,
	}

	assert.Equal("generation: stage timed out", err.Error())
	assert.ErrorIs(err, ErrTimeout)

	var stageErr *StageError
	if assert.ErrorAs(error(err), &stageErr) {
		assert.Equal(StageGeneration, stageErr.Stage)
	}
}

func TestStageErrorTimeoutTranslation(t *testing.T) {
	assert := assert.New(t)

	err := stageError(StageEmbedding, context.DeadlineExceeded)

	assert.ErrorIs(err, ErrTimeout)

	var stageErr *StageError
	if assert.ErrorAs(err, &stageErr) {
		assert.Equal(StageEmbedding, stageErr.Stage)
	}
}
