package port

// Extractor turns the raw bytes of an uploaded file into plain text.
type Extractor interface {
	Extract(name string, raw []byte) (string, error)

	// Supports reports whether files with this name can be extracted.
	Supports(name string) bool
}
