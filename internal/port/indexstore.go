package port

import (
	"docrag/internal/domain"
	"docrag/internal/vectorindex"
)

// DocumentStore is the authoritative registry of the corpus. Extracted text
// is kept alongside each document so the index can be rebuilt from it.
type DocumentStore interface {
	// PutDoc stores a document and assigns its sequence number.
	PutDoc(doc domain.Document, text string) (domain.Document, error)

	GetDoc(id string) (domain.Document, error)

	HasDoc(id string) (bool, error)

	DeleteDoc(id string) error

	// ListDocs returns documents in the order they were added.
	ListDocs() ([]domain.Document, error)

	// ListSources returns documents with their text, in the order they were added.
	ListSources() ([]domain.SourceText, error)
}

// IndexPersister stores and restores vector index snapshots.
type IndexPersister interface {
	SaveIndex(snap vectorindex.Snapshot) error

	// LoadIndex returns ok=false when no index was ever saved.
	LoadIndex() (snap vectorindex.Snapshot, ok bool, err error)
}
