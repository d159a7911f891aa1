package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docrag/config"
	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

type backend interface {
	port.DocumentStore
	port.IndexPersister
	Close() error
}

// openManager builds the store manager for the configured backend. A stale
// or unreadable index is rebuilt from the document registry before the
// manager is returned.
func openManager(ctx context.Context, cfg *config.Config, root string) (*usecase.Manager, error) {
	logger := slog.Default()

	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	st, needsRebuild, err := openBackend(cfg, root, logger)
	if err != nil {
		return nil, err
	}

	deps := usecase.Deps{
		Store:         st,
		Persister:     st,
		Extractor:     extract.NewTextExtractor(cfg.Store.Includes),
		Chunker:       chunker.NewRecursiveChunker(cfg.Chunk.Size, cfg.Chunk.Overlap),
		Embedder:      emb,
		QueryEmbedder: cache.NewCachedEmbedder(emb, cache.NewQueryCache(256, 10*time.Minute)),
	}
	opts := usecase.Options{
		Metric:         domain.Metric(cfg.Index.Metric),
		DefaultK:       cfg.Retrieve.TopK,
		Workers:        cfg.Index.Workers,
		RebuildTimeout: time.Duration(cfg.Index.RebuildTimeoutSecs) * time.Second,
		Logger:         logger,
	}

	m, err := usecase.Open(deps, opts)
	if err != nil {
		if !errors.Is(err, domain.ErrLoadFailure) {
			st.Close()
			return nil, err
		}
		needsRebuild = true
	}

	if needsRebuild {
		logger.Info("rebuilding index from document registry")
		bar := newProgressBar("Rebuilding")
		res, err := m.Rebuild(ctx, bar.update)
		bar.finish()
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("index rebuild failed: %w", err)
		}
		logger.Info("index rebuilt", "documents", res.Documents, "chunks", res.Chunks, "failed", len(res.Failed))
	}

	if bs, ok := st.(*store.BoltStore); ok {
		if err := bs.Migrate(cfg); err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to record schema info: %w", err)
		}
	}
	return m, nil
}

func openBackend(cfg *config.Config, root string, logger *slog.Logger) (backend, bool, error) {
	if cfg.Store.Backend == "memory" {
		logger.Warn("using in-memory store, nothing will be persisted")
		return memstore.NewMemoryStore(), false, nil
	}

	if err := cfg.EnsureDataDir(root); err != nil {
		return nil, false, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := cfg.IndexDBPath(root)
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open index store: %w", err)
	}

	migration, err := st.CheckMigration(cfg)
	if err != nil {
		st.Close()
		return nil, false, fmt.Errorf("failed to check migration: %w", err)
	}

	switch {
	case migration.NeedsRebuild:
		logger.Warn("index rebuild required", "reason", migration.Reason)
		if err := st.ClearIndex(); err != nil {
			st.Close()
			return nil, false, fmt.Errorf("failed to clear index: %w", err)
		}
		return st, true, nil
	case migration.NeedsMigration:
		logger.Info("running schema migration", "reason", migration.Reason)
		if err := st.Migrate(cfg); err != nil {
			st.Close()
			return nil, false, fmt.Errorf("migration failed: %w", err)
		}
	}
	logger.Debug("index store opened", "path", dbPath)
	return st, false, nil
}
