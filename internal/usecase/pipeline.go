package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/vectorindex"
)

// Pipeline turns document text into index entries: chunk, embed, insert,
// persist. Embedding always happens before the index lock is taken.
type Pipeline struct {
	chunker   port.Chunker
	embedder  port.Embedder
	index     *vectorindex.Index
	persister port.IndexPersister
	workers   int
	logger    *slog.Logger
}

// NewPipeline creates an ingestion pipeline. workers bounds how many
// documents are embedded concurrently during a rebuild.
func NewPipeline(
	chunker port.Chunker,
	embedder port.Embedder,
	index *vectorindex.Index,
	persister port.IndexPersister,
	workers int,
	logger *slog.Logger,
) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		persister: persister,
		workers:   workers,
		logger:    logger,
	}
}

// Ingest adds one document to the index and persists the result. A document
// with no text yields zero chunks and touches nothing.
//
// An embedding failure leaves the index untouched. A persistence failure is
// returned together with the number of chunks that were added in memory.
func (p *Pipeline) Ingest(ctx context.Context, docID, text string) (int, error) {
	entries, err := p.Prepare(ctx, docID, text)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := p.Insert(entries); err != nil {
		return 0, &domain.DocumentError{DocID: docID, Err: err}
	}
	if err := p.Persist(); err != nil {
		return len(entries), err
	}
	return len(entries), nil
}

// Prepare chunks and embeds a document without touching the index.
func (p *Pipeline) Prepare(ctx context.Context, docID, text string) ([]domain.IndexEntry, error) {
	chunks := p.chunker.Chunk(docID, text)
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, &domain.DocumentError{DocID: docID, Err: fmt.Errorf("%w: %v", domain.ErrEmbedding, err)}
	}
	if len(vectors) != len(chunks) {
		return nil, &domain.DocumentError{DocID: docID, Err: fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrEmbedding, len(vectors), len(chunks))}
	}

	dim := len(vectors[0])
	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) == 0 || len(vectors[i]) != dim {
			return nil, &domain.DocumentError{DocID: docID, Err: fmt.Errorf("%w: malformed vector for chunk %d",
				domain.ErrEmbedding, i)}
		}
		entries[i] = domain.IndexEntry{Chunk: c, Vector: vectors[i]}
	}
	return entries, nil
}

// Insert adds prepared entries to the index as one batch.
func (p *Pipeline) Insert(entries []domain.IndexEntry) error {
	return p.index.Add(entries)
}

// Persist writes the current index to durable storage.
func (p *Pipeline) Persist() error {
	snap := p.index.Snapshot()
	if err := p.persister.SaveIndex(snap); err != nil {
		p.logger.Error("failed to persist index", "error", err, "entries", len(snap.Entries))
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	p.logger.Debug("index persisted", "entries", len(snap.Entries), "build", snap.BuildID)
	return nil
}

// RebuildResult summarises a full reindex.
type RebuildResult struct {
	Documents int
	Chunks    int
	BuildID   string
	Failed    []error
}

// Rebuild discards the index and re-ingests every source in order. Documents
// are embedded in parallel; one document failing to embed is recorded and
// skipped. If ctx ends first the old index is left in place and ctx's error
// is returned.
//
// progress, if set, is called once per finished document.
func (p *Pipeline) Rebuild(ctx context.Context, sources []domain.SourceText, progress func(done, total int)) (*RebuildResult, error) {
	prepared := make([][]domain.IndexEntry, len(sources))
	failures := make([]error, len(sources))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, err := p.Prepare(gctx, src.Doc.ID, src.Text)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failures[i] = err
			} else {
				prepared[i] = entries
			}
			if progress != nil {
				progress(int(done.Add(1)), len(sources))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn("rebuild interrupted", "error", err)
		return nil, fmt.Errorf("rebuild interrupted: %w", err)
	}

	result := &RebuildResult{}
	var all []domain.IndexEntry
	for i, entries := range prepared {
		if failures[i] != nil {
			p.logger.Warn("document skipped during rebuild", "doc", sources[i].Doc.ID, "error", failures[i])
			result.Failed = append(result.Failed, failures[i])
			continue
		}
		all = append(all, entries...)
		result.Documents++
	}

	if err := p.index.Replace(all); err != nil {
		return nil, err
	}
	result.Chunks = len(all)
	result.BuildID = p.index.BuildID()
	p.logger.Info("index rebuilt", "documents", result.Documents, "chunks", result.Chunks, "build", result.BuildID)

	if err := p.Persist(); err != nil {
		return result, err
	}
	return result, nil
}
