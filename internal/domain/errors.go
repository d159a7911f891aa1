package domain

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction        = errors.New("extraction failed")
	ErrUnsupportedType   = fmt.Errorf("%w: unsupported document type", ErrExtraction)
	ErrEmbedding         = errors.New("embedding failed")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrPersistence       = errors.New("persistence failed")
	ErrLoadFailure       = errors.New("index load failed")
	ErrNotFound          = errors.New("document not found")
	ErrInvalidID         = errors.New("invalid document id")
	ErrEmptyQuery        = errors.New("empty query")
)

// DocumentError ties a failure to the document it happened on.
type DocumentError struct {
	DocID string
	Err   error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.DocID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}
