package extract

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"docrag/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextExtractor handles plain-text formats (txt, markdown). Which names are
// accepted is decided by glob patterns.
type TextExtractor struct {
	patterns []string
}

func NewTextExtractor(patterns []string) *TextExtractor {
	if len(patterns) == 0 {
		patterns = []string{"**/*.txt", "**/*.md"}
	}
	return &TextExtractor{patterns: patterns}
}

func (e *TextExtractor) Supports(name string) bool {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	lower := strings.ToLower(name)
	for _, pattern := range e.patterns {
		if ok, err := doublestar.Match(pattern, lower); err == nil && ok {
			return true
		}
	}
	return false
}

// Extract decodes raw as UTF-8 text. Binary content or invalid encoding is
// an extraction failure; an empty result is not.
func (e *TextExtractor) Extract(name string, raw []byte) (string, error) {
	if !e.Supports(name) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, name)
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", fmt.Errorf("%w: %s looks like binary data", domain.ErrExtraction, name)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrExtraction, name)
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
