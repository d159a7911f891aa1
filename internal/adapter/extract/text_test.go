package extract

import (
	"errors"
	"testing"

	"docrag/internal/domain"
)

func TestTextExtractorSupports(t *testing.T) {
	e := NewTextExtractor([]string{"**/*.txt", "**/*.md"})
	tests := map[string]bool{
		"notes.txt":        true,
		"README.MD":        true,
		"dir/sub/file.md":  true,
		`C:\docs\file.txt`: true,
		"paper.pdf":        false,
		"noext":            false,
	}
	for name, want := range tests {
		if got := e.Supports(name); got != want {
			t.Errorf("Supports(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestTextExtractorExtract(t *testing.T) {
	e := NewTextExtractor(nil)

	text, err := e.Extract("a.txt", []byte("\xEF\xBB\xBFline one\r\nline two\rline three"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "line one\nline two\nline three" {
		t.Errorf("unexpected text %q", text)
	}

	text, err = e.Extract("empty.txt", nil)
	if err != nil || text != "" {
		t.Errorf("empty file should extract to empty text, got %q, %v", text, err)
	}
}

func TestTextExtractorFailures(t *testing.T) {
	e := NewTextExtractor(nil)

	if _, err := e.Extract("a.pdf", []byte("%PDF")); !errors.Is(err, domain.ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := e.Extract("a.pdf", []byte("%PDF")); !errors.Is(err, domain.ErrExtraction) {
		t.Errorf("unsupported type should also be an extraction failure, got %v", err)
	}
	if _, err := e.Extract("bin.txt", []byte{'a', 0, 'b'}); !errors.Is(err, domain.ErrExtraction) {
		t.Errorf("expected ErrExtraction for binary, got %v", err)
	}
	if _, err := e.Extract("bad.txt", []byte{0xff, 0xfe, 0xfd}); !errors.Is(err, domain.ErrExtraction) {
		t.Errorf("expected ErrExtraction for invalid UTF-8, got %v", err)
	}
}
