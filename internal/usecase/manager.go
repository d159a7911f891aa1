package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docrag/internal/adapter/fs"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/vectorindex"
)

// Deps are the collaborators a Manager is built from.
type Deps struct {
	Store     port.DocumentStore
	Persister port.IndexPersister
	Extractor port.Extractor
	Chunker   port.Chunker
	Embedder  port.Embedder

	// QueryEmbedder embeds query text; defaults to Embedder. Lets callers
	// put a cache in front of query embeddings only.
	QueryEmbedder port.Embedder
}

// Options tune a Manager.
type Options struct {
	Metric         domain.Metric
	DefaultK       int
	Workers        int
	RebuildTimeout time.Duration
	Logger         *slog.Logger
}

// Manager owns the corpus and its vector index. Corpus mutations are
// serialised; queries only take the index read lock.
type Manager struct {
	mu             sync.Mutex
	store          port.DocumentStore
	extractor      port.Extractor
	queryEmbedder  port.Embedder
	index          *vectorindex.Index
	pipeline       *Pipeline
	defaultK       int
	workers        int
	rebuildTimeout time.Duration
	logger         *slog.Logger
}

// Open creates a Manager and restores the persisted index.
//
// A corrupt or incompatible index is reported as domain.ErrLoadFailure
// alongside a usable Manager with an empty index, so the caller can choose
// to Rebuild or give up.
func Open(deps Deps, opts Options) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if !opts.Metric.Valid() {
		opts.Metric = domain.MetricCosine
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = 3
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RebuildTimeout <= 0 {
		opts.RebuildTimeout = 5 * time.Minute
	}
	if deps.QueryEmbedder == nil {
		deps.QueryEmbedder = deps.Embedder
	}

	index, loadErr := loadIndex(deps, opts.Metric)
	if loadErr != nil {
		opts.Logger.Warn("persisted index unusable, starting empty", "error", loadErr)
		index = vectorindex.New(opts.Metric)
	}

	m := &Manager{
		store:          deps.Store,
		extractor:      deps.Extractor,
		queryEmbedder:  deps.QueryEmbedder,
		index:          index,
		pipeline:       NewPipeline(deps.Chunker, deps.Embedder, index, deps.Persister, opts.Workers, opts.Logger),
		defaultK:       opts.DefaultK,
		workers:        opts.Workers,
		rebuildTimeout: opts.RebuildTimeout,
		logger:         opts.Logger,
	}
	if loadErr == nil {
		m.logger.Info("index loaded", "entries", index.Len(), "dimension", index.Dimension(), "build", index.BuildID())
	}
	return m, loadErr
}

func loadIndex(deps Deps, metric domain.Metric) (*vectorindex.Index, error) {
	snap, ok, err := deps.Persister.LoadIndex()
	if err != nil {
		if errors.Is(err, domain.ErrLoadFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrLoadFailure, err)
	}

	if !ok {
		if err := checkRegistry(deps.Store, vectorindex.Snapshot{}); err != nil {
			return nil, err
		}
		return vectorindex.New(metric), nil
	}

	index, err := vectorindex.Restore(snap, metric)
	if err != nil {
		return nil, err
	}
	if err := checkRegistry(deps.Store, snap); err != nil {
		return nil, err
	}
	if dim := deps.Embedder.Dimension(); index.Len() > 0 && dim > 0 && index.Dimension() != dim {
		return nil, fmt.Errorf("%w: index has %d dimensions, embedder produces %d",
			domain.ErrLoadFailure, index.Dimension(), dim)
	}
	return index, nil
}

// checkRegistry reports a snapshot that disagrees with the registry about
// which documents are indexed. The registry is written before the index is
// persisted, so a failed persist leaves them apart. Chunk counts are not
// compared because a rebuild under a new chunk size changes them.
func checkRegistry(store port.DocumentStore, snap vectorindex.Snapshot) error {
	docs, err := store.ListDocs()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLoadFailure, err)
	}

	counts := make(map[string]int, len(docs))
	for _, e := range snap.Entries {
		counts[e.Chunk.DocID]++
	}
	for _, d := range docs {
		if d.Chunks > 0 && counts[d.ID] == 0 {
			return fmt.Errorf("%w: registered document %q has no indexed chunks", domain.ErrLoadFailure, d.ID)
		}
		delete(counts, d.ID)
	}
	for id := range counts {
		return fmt.Errorf("%w: index holds chunks of unregistered document %q", domain.ErrLoadFailure, id)
	}
	return nil
}

// AddResult describes the outcome of adding one document.
type AddResult struct {
	DocID          string `json:"doc_id"`
	ChunksAdded    int    `json:"chunks_added"`
	AlreadyPresent bool   `json:"already_present"`
}

// AddDocument indexes text under id. An id that is already in the corpus is
// reported as AlreadyPresent and changes nothing.
func (m *Manager) AddDocument(ctx context.Context, id, text string) (AddResult, error) {
	if strings.TrimSpace(id) == "" {
		return AddResult{}, domain.ErrInvalidID
	}
	return m.add(ctx, domain.Document{ID: id, Name: id, Size: int64(len(text))}, text)
}

// Upload sanitises filename into a document id, extracts the text of raw and
// adds it.
func (m *Manager) Upload(ctx context.Context, filename string, raw []byte) (AddResult, error) {
	doc, text, err := m.extract(filename, raw)
	if err != nil {
		return AddResult{DocID: doc.ID}, err
	}
	return m.add(ctx, doc, text)
}

func (m *Manager) add(ctx context.Context, doc domain.Document, text string) (AddResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if present, err := m.store.HasDoc(doc.ID); err != nil {
		return AddResult{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	} else if present {
		return AddResult{DocID: doc.ID, AlreadyPresent: true}, nil
	}

	n, ingestErr := m.pipeline.Ingest(ctx, doc.ID, text)
	if ingestErr != nil && n == 0 {
		return AddResult{DocID: doc.ID}, ingestErr
	}

	doc.Chunks = n
	stored, err := m.store.PutDoc(doc, text)
	if err != nil {
		if n > 0 {
			m.index.DropDocument(doc.ID)
			if perr := m.pipeline.Persist(); perr != nil {
				m.logger.Warn("index left ahead of registry until rebuild", "doc", doc.ID)
			}
		}
		return AddResult{DocID: doc.ID}, &domain.DocumentError{DocID: doc.ID, Err: fmt.Errorf("%w: %v", domain.ErrPersistence, err)}
	}

	if n == 0 {
		m.logger.Info("nothing to index", "doc", stored.ID)
	} else {
		m.logger.Info("document indexed", "doc", stored.ID, "chunks", n)
	}
	return AddResult{DocID: stored.ID, ChunksAdded: n}, ingestErr
}

func (m *Manager) extract(filename string, raw []byte) (domain.Document, string, error) {
	id := fs.SecureFilename(filename)
	if id == "" {
		return domain.Document{}, "", &domain.DocumentError{DocID: filename, Err: domain.ErrInvalidID}
	}
	doc := domain.Document{ID: id, Name: filename, Size: int64(len(raw))}

	text, err := m.extractor.Extract(id, raw)
	if err != nil {
		return doc, "", &domain.DocumentError{DocID: id, Err: err}
	}
	return doc, text, nil
}

// commit registers doc and inserts its prepared entries without persisting.
// The caller holds m.mu.
func (m *Manager) commit(doc domain.Document, text string, entries []domain.IndexEntry) (AddResult, error) {
	doc.Chunks = len(entries)
	stored, err := m.store.PutDoc(doc, text)
	if err != nil {
		return AddResult{DocID: doc.ID}, &domain.DocumentError{DocID: doc.ID, Err: fmt.Errorf("%w: %v", domain.ErrPersistence, err)}
	}

	if err := m.pipeline.Insert(entries); err != nil {
		if delErr := m.store.DeleteDoc(stored.ID); delErr != nil {
			m.logger.Error("failed to unregister document", "doc", stored.ID, "error", delErr)
		}
		return AddResult{DocID: doc.ID}, &domain.DocumentError{DocID: doc.ID, Err: err}
	}

	result := AddResult{DocID: stored.ID, ChunksAdded: len(entries)}
	if len(entries) == 0 {
		m.logger.Info("nothing to index", "doc", stored.ID)
		return result, nil
	}
	m.logger.Info("document indexed", "doc", stored.ID, "chunks", len(entries))
	return result, nil
}

// Upload is one file of a bulk upload.
type Upload struct {
	Name string
	Data []byte
}

// BatchResult reports a bulk upload document by document.
type BatchResult struct {
	Total   int
	Indexed int
	Skipped int
	Chunks  int
	Results []AddResult
	Errors  []error
}

func (r *BatchResult) Summary() string {
	return fmt.Sprintf("%d of %d documents indexed", r.Indexed, r.Total)
}

// AddDocuments uploads several files. Failures are isolated per document.
// Extraction and embedding run in parallel; insertion happens in input order
// and the index is persisted once at the end.
//
// The returned error is only set when the final persist fails.
func (m *Manager) AddDocuments(ctx context.Context, uploads []Upload, progress func(done, total int)) (*BatchResult, error) {
	result := &BatchResult{Total: len(uploads)}

	type pending struct {
		doc     domain.Document
		text    string
		entries []domain.IndexEntry
		err     error
		skip    bool
	}
	items := make([]pending, len(uploads))

	seen := make(map[string]bool, len(uploads))
	for i, u := range uploads {
		doc, text, err := m.extract(u.Name, u.Data)
		items[i] = pending{doc: doc, text: text, err: err}
		if err != nil {
			continue
		}
		if seen[doc.ID] {
			items[i].skip = true
			continue
		}
		seen[doc.ID] = true
		if present, err := m.store.HasDoc(doc.ID); err != nil {
			items[i].err = &domain.DocumentError{DocID: doc.ID, Err: fmt.Errorf("%w: %v", domain.ErrPersistence, err)}
		} else if present {
			items[i].skip = true
		}
	}

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i := range items {
		if items[i].err != nil || items[i].skip {
			continue
		}
		g.Go(func() error {
			items[i].entries, items[i].err = m.pipeline.Prepare(ctx, items[i].doc.ID, items[i].text)
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := false
	for i := range items {
		it := &items[i]
		if progress != nil {
			progress(i+1, len(items))
		}
		if it.err != nil {
			m.logger.Warn("document not indexed", "doc", it.doc.ID, "error", it.err)
			result.Errors = append(result.Errors, it.err)
			continue
		}
		if !it.skip {
			// A concurrent upload may have added it since the check above.
			present, err := m.store.HasDoc(it.doc.ID)
			if err != nil {
				err = &domain.DocumentError{DocID: it.doc.ID, Err: fmt.Errorf("%w: %v", domain.ErrPersistence, err)}
				m.logger.Warn("document not indexed", "doc", it.doc.ID, "error", err)
				result.Errors = append(result.Errors, err)
				continue
			}
			it.skip = present
		}
		if it.skip {
			result.Skipped++
			result.Results = append(result.Results, AddResult{DocID: it.doc.ID, AlreadyPresent: true})
			continue
		}

		added, err := m.commit(it.doc, it.text, it.entries)
		if err != nil {
			m.logger.Warn("document not indexed", "doc", it.doc.ID, "error", err)
			result.Errors = append(result.Errors, err)
			continue
		}
		inserted = inserted || added.ChunksAdded > 0
		result.Indexed++
		result.Chunks += added.ChunksAdded
		result.Results = append(result.Results, added)
	}

	m.logger.Info(result.Summary(), "skipped", result.Skipped, "failed", len(result.Errors))
	if inserted {
		if err := m.pipeline.Persist(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ListDocuments returns the corpus in the order documents were added.
func (m *Manager) ListDocuments() ([]domain.Document, error) {
	docs, err := m.store.ListDocs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return docs, nil
}

// DeleteDocument removes id from the corpus and rebuilds the index over the
// remaining documents. id may be an uploaded file name; it is sanitised the
// same way Upload does when no document has it verbatim. If the rebuild
// cannot finish in time, the deleted document's entries are dropped from the
// current index instead and the rebuild error is returned.
func (m *Manager) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.resolveID(id)
	if err != nil {
		return err
	}
	if err := m.store.DeleteDoc(id); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	m.logger.Info("document deleted", "doc", id)

	if res, err := m.rebuild(ctx, nil); err != nil {
		if res != nil {
			return err
		}
		dropped := m.index.DropDocument(id)
		m.logger.Warn("rebuild after delete failed, dropped entries in place", "doc", id, "dropped", dropped, "error", err)
		if perr := m.pipeline.Persist(); perr != nil {
			return errors.Join(err, perr)
		}
		return err
	}
	return nil
}

func (m *Manager) resolveID(name string) (string, error) {
	_, err := m.store.GetDoc(name)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return name, err
	}
	id := fs.SecureFilename(name)
	if id == "" || id == name {
		return name, err
	}
	if _, serr := m.store.GetDoc(id); serr != nil {
		return name, serr
	}
	return id, nil
}

// Rebuild reindexes the whole corpus from the registry.
func (m *Manager) Rebuild(ctx context.Context, progress func(done, total int)) (*RebuildResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuild(ctx, progress)
}

func (m *Manager) rebuild(ctx context.Context, progress func(done, total int)) (*RebuildResult, error) {
	ctx, cancel := context.WithTimeout(ctx, m.rebuildTimeout)
	defer cancel()

	sources, err := m.store.ListSources()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return m.pipeline.Rebuild(ctx, sources, progress)
}

// QueryResult is the answer to a query. NothingIndexed is set when the index
// holds no entries at all, which is distinct from a search with no matches.
type QueryResult struct {
	NothingIndexed bool                 `json:"nothing_indexed"`
	Results        []domain.ScoredChunk `json:"results"`
}

// Query embeds text and returns the k most similar chunks. k <= 0 uses the
// configured default.
func (m *Manager) Query(ctx context.Context, text string, k int) (*QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if k <= 0 {
		k = m.defaultK
	}
	if m.index.Len() == 0 {
		return &QueryResult{NothingIndexed: true, Results: []domain.ScoredChunk{}}, nil
	}

	vectors, err := m.queryEmbedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one query", domain.ErrEmbedding, len(vectors))
	}

	results, err := m.index.Search(vectors[0], k)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && m.index.Len() == 0 {
		return &QueryResult{NothingIndexed: true, Results: results}, nil
	}
	return &QueryResult{Results: results}, nil
}

// Status describes the current index.
type Status struct {
	Documents int           `json:"documents"`
	Entries   int           `json:"entries"`
	Dimension int           `json:"dimension"`
	Metric    domain.Metric `json:"metric"`
	BuildID   string        `json:"build_id"`
}

func (m *Manager) Status() (Status, error) {
	docs, err := m.store.ListDocs()
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return Status{
		Documents: len(docs),
		Entries:   m.index.Len(),
		Dimension: m.index.Dimension(),
		Metric:    m.index.Metric(),
		BuildID:   m.index.BuildID(),
	}, nil
}

// Close releases the store if it holds resources. Every mutation has
// already been persisted.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
