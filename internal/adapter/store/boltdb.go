package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
	"docrag/internal/vectorindex"
)

var (
	bucketDocs         = []byte("docs")
	bucketTexts        = []byte("texts")
	bucketIndexMeta    = []byte("index_meta")
	bucketIndexEntries = []byte("index_entries")
	bucketSchema       = []byte("schema")
	keyIndexMeta       = []byte("meta")
)

// BoltStore keeps the document registry and the persisted vector index in a
// single bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketDocs, bucketTexts, bucketIndexMeta, bucketIndexEntries, bucketSchema}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

type docMeta struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Chunks  int    `json:"chunks"`
	Seq     uint64 `json:"seq"`
	AddedAt int64  `json:"added_at"`
}

func (m docMeta) toDocument(id string) domain.Document {
	return domain.Document{
		ID:      id,
		Name:    m.Name,
		Size:    m.Size,
		Chunks:  m.Chunks,
		Seq:     m.Seq,
		AddedAt: time.Unix(m.AddedAt, 0),
	}
}

func (s *BoltStore) PutDoc(doc domain.Document, text string) (domain.Document, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		if doc.Seq == 0 {
			seq, err := docs.NextSequence()
			if err != nil {
				return err
			}
			doc.Seq = seq
		}
		if doc.AddedAt.IsZero() {
			doc.AddedAt = time.Now()
		}
		meta := docMeta{
			Name:    doc.Name,
			Size:    doc.Size,
			Chunks:  doc.Chunks,
			Seq:     doc.Seq,
			AddedAt: doc.AddedAt.Unix(),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := docs.Put([]byte(doc.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketTexts).Put([]byte(doc.ID), []byte(text))
	})
	return doc, err
}

func (s *BoltStore) GetDoc(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = meta.toDocument(id)
		return nil
	})
	return doc, err
}

func (s *BoltStore) HasDoc(id string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketDocs).Get([]byte(id)) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) DeleteDoc(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		if docs.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}
		if err := docs.Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketTexts).Delete([]byte(id))
	})
}

func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, meta.toDocument(string(k)))
			return nil
		})
	})
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	return docs, err
}

func (s *BoltStore) ListSources() ([]domain.SourceText, error) {
	var sources []domain.SourceText
	err := s.db.View(func(tx *bbolt.Tx) error {
		texts := tx.Bucket(bucketTexts)
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			sources = append(sources, domain.SourceText{
				Doc:  meta.toDocument(string(k)),
				Text: string(texts.Get(k)),
			})
			return nil
		})
	})
	sort.Slice(sources, func(i, j int) bool { return sources[i].Doc.Seq < sources[j].Doc.Seq })
	return sources, err
}

type indexMeta struct {
	Version   int    `json:"version"`
	Metric    string `json:"metric"`
	Dimension int    `json:"dimension"`
	BuildID   string `json:"build_id"`
	Count     int    `json:"count"`
}

type storedEntry struct {
	Chunk  domain.Chunk `json:"c"`
	Vector []byte       `json:"v"`
}

// SaveIndex replaces the persisted index with snap in one transaction.
func (s *BoltStore) SaveIndex(snap vectorindex.Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketIndexEntries); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		entries, err := tx.CreateBucket(bucketIndexEntries)
		if err != nil {
			return err
		}

		for i, e := range snap.Entries {
			data, err := json.Marshal(storedEntry{
				Chunk:  e.Chunk,
				Vector: vectorindex.EncodeVector(e.Vector),
			})
			if err != nil {
				return err
			}
			if err := entries.Put(seqKey(uint64(i)), data); err != nil {
				return err
			}
		}

		meta, err := json.Marshal(indexMeta{
			Version:   snap.Version,
			Metric:    string(snap.Metric),
			Dimension: snap.Dimension,
			BuildID:   snap.BuildID,
			Count:     len(snap.Entries),
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketIndexMeta).Put(keyIndexMeta, meta)
	})
}

// LoadIndex reads the persisted index. Any undecodable record fails the
// whole load with domain.ErrLoadFailure.
func (s *BoltStore) LoadIndex() (vectorindex.Snapshot, bool, error) {
	var (
		snap  vectorindex.Snapshot
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIndexMeta).Get(keyIndexMeta)
		if data == nil {
			return nil
		}
		found = true

		var meta indexMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("%w: index metadata: %v", domain.ErrLoadFailure, err)
		}
		snap = vectorindex.Snapshot{
			Version:   meta.Version,
			Metric:    domain.Metric(meta.Metric),
			Dimension: meta.Dimension,
			BuildID:   meta.BuildID,
			Entries:   make([]domain.IndexEntry, 0, meta.Count),
		}

		b := tx.Bucket(bucketIndexEntries)
		if b == nil {
			return fmt.Errorf("%w: index entries missing", domain.ErrLoadFailure)
		}
		err := b.ForEach(func(k, v []byte) error {
			var stored storedEntry
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("%w: entry %x: %v", domain.ErrLoadFailure, k, err)
			}
			vec, err := vectorindex.DecodeVector(stored.Vector)
			if err != nil {
				return fmt.Errorf("%w: entry %x: %v", domain.ErrLoadFailure, k, err)
			}
			snap.Entries = append(snap.Entries, domain.IndexEntry{Chunk: stored.Chunk, Vector: vec})
			return nil
		})
		if err != nil {
			return err
		}
		if len(snap.Entries) != meta.Count {
			return fmt.Errorf("%w: expected %d entries, found %d", domain.ErrLoadFailure, meta.Count, len(snap.Entries))
		}
		return nil
	})
	if err != nil {
		return vectorindex.Snapshot{}, found, err
	}
	return snap, found, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func seqKey(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}
