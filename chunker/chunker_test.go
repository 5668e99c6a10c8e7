package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentenceBoundary(t *testing.T) {
	assert := assert.New(t)

	chunks, err := Split("The sky is blue. Grass is green.", 20, 0)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([]string{"The sky is blue.", " Grass is green."}, chunks)
}

func TestSplitShortInput(t *testing.T) {
	assert := assert.New(t)

	chunks, err := Split("hello world", 100, 10)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([]string{"hello world"}, chunks)
}

func TestSplitEmptyInput(t *testing.T) {
	assert := assert.New(t)

	chunks, err := Split("   \n\t  ", 100, 10)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Empty(chunks)
}

func TestSplitInvalidParameters(t *testing.T) {
	assert := assert.New(t)

	_, err := Split("text", 0, 0)
	assert.ErrorIs(err, ErrInvalidArgument)

	_, err = Split("text", 10, -1)
	assert.ErrorIs(err, ErrInvalidArgument)

	_, err = Split("text", 10, 10)
	assert.ErrorIs(err, ErrInvalidArgument)
}

func TestSplitParagraphBoundary(t *testing.T) {
	assert := assert.New(t)

	text := "first paragraph\n\nsecond paragraph here"

	chunks, err := Split(text, 25, 0)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.Equal([]string{"first paragraph\n\n", "second paragraph here"}, chunks)
}

func TestSplitReconstructsInput(t *testing.T) {
	assert := assert.New(t)

	inputs := []string{
		"abcdefghijklmnopqrstuvwxyz",
		"The quick brown fox jumps over the lazy dog. Pack my box with five dozen liquor jugs.",
		"one\n\ntwo\n\nthree\n\nfour\n\nfive paragraphs of varying length to cut across",
		strings.Repeat("word ", 50),
	}

	for _, input := range inputs {
		for _, overlap := range []int{0, 3, 7} {
			chunks, err := Split(input, 10, overlap)
			if err != nil {
				assert.Fail(err.Error())
				return
			}

			var sb strings.Builder
			for i, chunk := range chunks {
				runes := []rune(chunk)
				assert.LessOrEqual(len(runes), 10)

				if i == 0 {
					sb.WriteString(chunk)
				} else {
					sb.WriteString(string(runes[overlap:]))
				}
			}

			assert.Equal(input, sb.String())
		}
	}
}
