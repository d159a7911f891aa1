package port

import "docrag/internal/domain"

type Chunker interface {
	Chunk(docID string, text string) []domain.Chunk
}
