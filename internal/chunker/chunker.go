// Package chunker splits extracted document text into overlapping
// fixed-size chunks for embedding.
package chunker

import "errors"

// ErrChunkSize is returned when maxSize is too small to guarantee forward
// progress: with maxSize < 2 the overlap would equal the chunk size and
// the split would never terminate.
var ErrChunkSize = errors.New("chunk size must be at least 2")

// Split cuts text into chunks of at most maxSize characters. Boundaries
// fall on rune boundaries, so multi-byte text never yields invalid UTF-8
// chunks. Consecutive chunks overlap by max(maxSize/5, 1) characters; the
// final chunk may be shorter and is never padded. An empty text yields no
// chunks.
func Split(text string, maxSize int) ([]string, error) {
	if maxSize < 2 {
		return nil, ErrChunkSize
	}
	if text == "" {
		return nil, nil
	}

	overlap := maxSize / 5
	if overlap < 1 {
		overlap = 1
	}

	var chunks []string
	runes := []rune(text)
	length := len(runes)
	start := 0
	for start < length {
		end := start + maxSize
		if end > length {
			end = length
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == length {
			break
		}
		// overlap < maxSize, so the next start always advances.
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}

	return chunks, nil
}
