package domain

import "time"

// Document is one uploaded file in the corpus. ID is the sanitised filename.
type Document struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	Chunks  int       `json:"chunks"`
	Seq     uint64    `json:"seq"`
	AddedAt time.Time `json:"added_at"`
}

// Chunk is an ordered fragment of a document's extracted text.
type Chunk struct {
	ID     string `json:"id"`
	DocID  string `json:"doc_id"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// IndexEntry pairs a chunk with its embedding.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// SourceText is a document together with its extracted text, the unit of
// (re)ingestion.
type SourceText struct {
	Doc  Document
	Text string
}

// Metric is the similarity function used by the vector index.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

func (m Metric) Valid() bool {
	return m == MetricCosine || m == MetricDot
}
