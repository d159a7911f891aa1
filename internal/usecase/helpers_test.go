package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/memstore"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/vectorindex"
)

// flakyEmbedder fails for any text containing failOn and, while blocked,
// waits for its context to end.
type flakyEmbedder struct {
	port.Embedder
	failOn  string
	blocked atomic.Bool
}

func (e *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.blocked.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	for _, text := range texts {
		if e.failOn != "" && strings.Contains(text, e.failOn) {
			return nil, errors.New("provider unavailable")
		}
	}
	return e.Embedder.Embed(ctx, texts)
}

type failingPersister struct {
	*memstore.MemoryStore
	fail atomic.Bool
}

func (p *failingPersister) SaveIndex(snap vectorindex.Snapshot) error {
	if p.fail.Load() {
		return errors.New("disk full")
	}
	return p.MemoryStore.SaveIndex(snap)
}

// flakyStore fails registry lookups while failHas is set.
type flakyStore struct {
	*memstore.MemoryStore
	failHas atomic.Bool
}

func (s *flakyStore) HasDoc(id string) (bool, error) {
	if s.failHas.Load() {
		return false, errors.New("registry unavailable")
	}
	return s.MemoryStore.HasDoc(id)
}

func testDeps(store *memstore.MemoryStore, embedder port.Embedder) Deps {
	return Deps{
		Store:     store,
		Persister: store,
		Extractor: extract.NewTextExtractor([]string{"**/*.txt", "**/*.md"}),
		Chunker:   chunker.NewRecursiveChunker(200, 20),
		Embedder:  embedder,
	}
}

func newTestManager(t *testing.T, deps Deps) *Manager {
	t.Helper()
	m, err := Open(deps, Options{Workers: 2})
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	return m
}

// docText builds a few hundred characters of text with vocabulary unique
// to topic.
func docText(topic string, lines int) string {
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "%s note %d covers %s details and %s examples.\n", topic, i, topic, topic)
	}
	return b.String()
}

func hashEmbedder() port.Embedder {
	return embedding.NewHashEmbedder(64)
}

func assertNoDoc(t *testing.T, results []domain.ScoredChunk, docID string) {
	t.Helper()
	for _, r := range results {
		if r.Chunk.DocID == docID {
			t.Fatalf("result references deleted document %s: %+v", docID, r.Chunk)
		}
	}
}
