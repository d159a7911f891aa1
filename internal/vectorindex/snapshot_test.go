package vectorindex

import (
	"errors"
	"testing"

	"docrag/internal/domain"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ix := New(domain.MetricCosine)
	if err := ix.Add([]domain.IndexEntry{
		entryFor("a", 0, 0.5, 0.1, 0.2),
		entryFor("a", 1, 0.1, 0.9, 0.3),
		entryFor("b", 0, 0.4, 0.4, 0.4),
	}); err != nil {
		t.Fatal(err)
	}

	restored, err := Restore(ix.Snapshot(), domain.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	if restored.BuildID() != ix.BuildID() {
		t.Errorf("build id not preserved")
	}

	for _, q := range [][]float32{{1, 0, 0}, {0, 1, 0}, {0.3, 0.3, 0.9}} {
		a, _ := ix.Search(q, 3)
		b, _ := restored.Search(q, 3)
		for i := range a {
			if a[i].Chunk != b[i].Chunk || a[i].Score != b[i].Score {
				t.Errorf("query %v rank %d differs after restore", q, i)
			}
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ix := New(domain.MetricCosine)
	if err := ix.Add([]domain.IndexEntry{entryFor("a", 0, 1, 0)}); err != nil {
		t.Fatal(err)
	}
	snap := ix.Snapshot()
	snap.Entries[0].Vector[0] = 0

	results, _ := ix.Search([]float32{1, 0}, 1)
	if results[0].Score != 1 {
		t.Error("mutating a snapshot changed the index")
	}
}

func TestRestoreRejectsInvalidSnapshots(t *testing.T) {
	valid := func() Snapshot {
		return Snapshot{
			Version:   SchemaVersion,
			Metric:    domain.MetricCosine,
			Dimension: 2,
			Entries:   []domain.IndexEntry{entryFor("a", 0, 1, 0)},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Snapshot)
		metric domain.Metric
	}{
		{"wrong version", func(s *Snapshot) { s.Version = 99 }, domain.MetricCosine},
		{"unknown metric", func(s *Snapshot) { s.Metric = "l2" }, domain.MetricCosine},
		{"metric mismatch", func(s *Snapshot) {}, domain.MetricDot},
		{"short vector", func(s *Snapshot) { s.Entries[0].Vector = []float32{1} }, domain.MetricCosine},
		{"zero dimension", func(s *Snapshot) { s.Dimension = 0 }, domain.MetricCosine},
		{"orphan chunk", func(s *Snapshot) { s.Entries[0].Chunk.DocID = "" }, domain.MetricCosine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := valid()
			tt.mutate(&snap)
			if _, err := Restore(snap, tt.metric); !errors.Is(err, domain.ErrLoadFailure) {
				t.Errorf("expected ErrLoadFailure, got %v", err)
			}
		})
	}
}

func TestRestoreEmptySnapshot(t *testing.T) {
	ix, err := Restore(New(domain.MetricDot).Snapshot(), domain.MetricDot)
	if err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 0 {
		t.Errorf("expected empty index, got %d", ix.Len())
	}
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
