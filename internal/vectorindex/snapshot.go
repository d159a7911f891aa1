package vectorindex

import (
	"fmt"

	"docrag/internal/domain"
)

// SchemaVersion is the snapshot format version. Snapshots with a different
// version are rejected on restore.
const SchemaVersion = 1

// Snapshot is the full serialisable state of an index.
type Snapshot struct {
	Version   int
	Metric    domain.Metric
	Dimension int
	BuildID   string
	Entries   []domain.IndexEntry
}

// Snapshot copies the current state under the read lock.
func (ix *Index) Snapshot() Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := make([]domain.IndexEntry, len(ix.entries))
	for i, e := range ix.entries {
		vec := make([]float32, len(e.vector))
		copy(vec, e.vector)
		entries[i] = domain.IndexEntry{Chunk: e.chunk, Vector: vec}
	}
	return Snapshot{
		Version:   SchemaVersion,
		Metric:    ix.metric,
		Dimension: ix.dim,
		BuildID:   ix.buildID,
		Entries:   entries,
	}
}

// Validate checks a snapshot is complete and self-consistent.
func (s Snapshot) Validate() error {
	if s.Version != SchemaVersion {
		return fmt.Errorf("%w: schema version %d, want %d", domain.ErrLoadFailure, s.Version, SchemaVersion)
	}
	if !s.Metric.Valid() {
		return fmt.Errorf("%w: unknown metric %q", domain.ErrLoadFailure, s.Metric)
	}
	if len(s.Entries) == 0 {
		if s.Dimension != 0 {
			return fmt.Errorf("%w: empty index with dimension %d", domain.ErrLoadFailure, s.Dimension)
		}
		return nil
	}
	if s.Dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrLoadFailure, s.Dimension)
	}
	for i, e := range s.Entries {
		if len(e.Vector) != s.Dimension {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				domain.ErrLoadFailure, i, len(e.Vector), s.Dimension)
		}
		if e.Chunk.DocID == "" {
			return fmt.Errorf("%w: entry %d has no document", domain.ErrLoadFailure, i)
		}
	}
	return nil
}

// Restore builds an index from a snapshot. The snapshot metric must match
// the expected one so build and query time agree.
func Restore(s Snapshot, metric domain.Metric) (*Index, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Metric != metric {
		return nil, fmt.Errorf("%w: index built with %s, configured %s", domain.ErrLoadFailure, s.Metric, metric)
	}

	ix := New(metric)
	if len(s.Entries) == 0 {
		return ix, nil
	}
	prepared, err := prepare(s.Entries, s.Dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLoadFailure, err)
	}
	ix.entries = prepared
	ix.dim = s.Dimension
	ix.buildID = s.BuildID
	return ix, nil
}
