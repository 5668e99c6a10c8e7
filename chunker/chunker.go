// Package chunker splits raw document text into bounded, overlapping
// passages suitable for embedding.
package chunker

import (
	"errors"
	"strings"
)

var ErrInvalidArgument = errors.New("invalid chunk parameters")

// Split cuts text into chunks of at most maxChunkChars characters,
// preferring paragraph, sentence, then word boundaries over hard cuts.
// Each chunk after the first repeats the trailing overlapChars
// characters of its predecessor, so concatenating the chunks minus
// their overlaps reconstructs the input exactly. Empty or
// whitespace-only input yields no chunks.
func Split(text string, maxChunkChars, overlapChars int) ([]string, error) {
	if maxChunkChars <= 0 || overlapChars < 0 || overlapChars >= maxChunkChars {
		return nil, ErrInvalidArgument
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)

	var chunks []string

	start := 0
	for start < len(runes) {
		if len(runes)-start <= maxChunkChars {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := boundary(runes, start, start+maxChunkChars)

		// The cut must advance past the overlap or the walk stalls.
		if cut <= start+overlapChars {
			cut = start + maxChunkChars
		}

		chunks = append(chunks, string(runes[start:cut]))
		start = cut - overlapChars
	}

	return chunks, nil
}

// boundary picks the best cut position in (start, end], scanning
// backwards for a paragraph break, then a sentence end, then a word
// gap, before falling back to a hard cut at end.
func boundary(runes []rune, start, end int) int {
	for i := end; i > start+1; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}

	for i := end; i > start+1; i-- {
		if isSentenceEnd(runes[i-1]) && isSpace(runes[i]) {
			return i
		}
	}

	for i := end; i > start; i-- {
		if isSpace(runes[i-1]) {
			return i
		}
	}

	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
