package vectorindex

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"docrag/internal/domain"
)

// Index is a brute-force vector index guarded by a readers-writer lock.
// Searches run in parallel; Add, Replace, Reset and DropDocument are exclusive.
type Index struct {
	mu      sync.RWMutex
	metric  domain.Metric
	dim     int
	buildID string
	entries []entry
}

type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

// New creates an empty index using the given metric. An invalid metric
// falls back to cosine.
func New(metric domain.Metric) *Index {
	if !metric.Valid() {
		metric = domain.MetricCosine
	}
	return &Index{metric: metric}
}

// Add appends entries as one batch. Either every entry is added or none is.
// The first batch into an empty index fixes its dimensionality.
func (ix *Index) Add(entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim := ix.dim
	if len(ix.entries) == 0 {
		dim = len(entries[0].Vector)
	}
	prepared, err := prepare(entries, dim)
	if err != nil {
		return err
	}

	if len(ix.entries) == 0 {
		ix.dim = dim
		ix.buildID = uuid.NewString()
	}
	ix.entries = append(ix.entries, prepared...)
	return nil
}

// Replace discards all entries and installs the given set, as produced by a
// full rebuild. An empty set leaves the index empty with no dimensionality.
func (ix *Index) Replace(entries []domain.IndexEntry) error {
	var (
		prepared []entry
		dim      int
	)
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
		var err error
		if prepared, err = prepare(entries, dim); err != nil {
			return err
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = prepared
	ix.dim = dim
	ix.buildID = ""
	if len(prepared) > 0 {
		ix.buildID = uuid.NewString()
	}
	return nil
}

// Reset empties the index.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = nil
	ix.dim = 0
	ix.buildID = ""
}

// DropDocument removes every entry owned by docID and returns how many were
// removed. Used only when a rebuild could not complete.
func (ix *Index) DropDocument(docID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	kept := ix.entries[:0]
	removed := 0
	for _, e := range ix.entries {
		if e.chunk.DocID == docID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(ix.entries); i++ {
		ix.entries[i] = entry{}
	}
	ix.entries = kept
	if len(kept) == 0 {
		ix.dim = 0
		ix.buildID = ""
	}
	return removed
}

// Search returns up to k chunks ranked by descending similarity to query.
// Equal scores keep insertion order.
func (ix *Index) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 || k <= 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(query), ix.dim)
	}

	qnorm := norm(query)
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(ix.entries))
	for i, e := range ix.entries {
		scores[i] = scored{idx: i, score: ix.score(query, qnorm, e)}
	}

	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].score > scores[b].score
	})

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]domain.ScoredChunk, k)
	for i := 0; i < k; i++ {
		results[i] = domain.ScoredChunk{
			Chunk: ix.entries[scores[i].idx].chunk,
			Score: scores[i].score,
		}
	}
	return results, nil
}

func (ix *Index) score(query []float32, qnorm float64, e entry) float64 {
	d := dot(query, e.vector)
	if ix.metric == domain.MetricCosine {
		if qnorm == 0 || e.norm == 0 {
			return 0
		}
		d /= qnorm * e.norm
	}
	if math.IsNaN(d) {
		return math.Inf(-1)
	}
	return d
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

func (ix *Index) Metric() domain.Metric {
	return ix.metric
}

// BuildID identifies the current build; it changes whenever the index is
// populated from empty or replaced.
func (ix *Index) BuildID() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.buildID
}

func prepare(entries []domain.IndexEntry, dim int) ([]entry, error) {
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty embedding", domain.ErrDimensionMismatch)
	}
	out := make([]entry, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("%w: chunk %s has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), dim)
		}
		vec := make([]float32, dim)
		copy(vec, e.Vector)
		out[i] = entry{chunk: e.Chunk, vector: vec, norm: norm(vec)}
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 { return math.Sqrt(dot(v, v)) }
