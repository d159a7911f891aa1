package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"docrag/internal/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// separators are tried in order when a window has to be cut before the end
// of the text. Whitespace is the last resort before a hard cut.
var separators = []string{"\n\n", "\n"}

// RecursiveChunker splits text into windows of at most size characters
// (Unicode code points). Each window after the first starts with the last
// overlap characters of the previous one.
type RecursiveChunker struct {
	size    int
	overlap int
}

func NewRecursiveChunker(size, overlap int) *RecursiveChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &RecursiveChunker{size: size, overlap: overlap}
}

func (c *RecursiveChunker) Size() int    { return c.size }
func (c *RecursiveChunker) Overlap() int { return c.overlap }

// Chunk returns the chunks of text in reading order. Text that is empty or
// only whitespace yields no chunks.
func (c *RecursiveChunker) Chunk(docID string, text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []domain.Chunk
	start := 0
	for {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.cut(runes, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			ID:     generateChunkID(docID, len(chunks), start),
			DocID:  docID,
			Index:  len(chunks),
			Text:   string(runes[start:end]),
			Length: end - start,
		})

		if end == n {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

// cut picks where the window [start, end) ends. It prefers the latest
// paragraph break, then line break, then whitespace in the second half of
// the window, and falls back to a hard cut at end. The result is always
// greater than start+overlap so the next window makes progress.
func (c *RecursiveChunker) cut(runes []rune, start, end int) int {
	minCut := start + c.size/2
	if minCut <= start+c.overlap {
		minCut = start + c.overlap + 1
	}

	for _, sep := range separators {
		sepRunes := []rune(sep)
		for p := end; p >= minCut && p >= len(sepRunes); p-- {
			if endsWith(runes[:p], sepRunes) {
				return p
			}
		}
	}

	for p := end; p >= minCut; p-- {
		if unicode.IsSpace(runes[p-1]) {
			return p
		}
	}

	return end
}

func endsWith(runes, suffix []rune) bool {
	if len(suffix) > len(runes) {
		return false
	}
	off := len(runes) - len(suffix)
	for i, r := range suffix {
		if runes[off+i] != r {
			return false
		}
	}
	return true
}

func generateChunkID(docID string, index, offset int) string {
	data := fmt.Sprintf("%s:%d@%d", docID, index, offset)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
