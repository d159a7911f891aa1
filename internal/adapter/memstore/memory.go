package memstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"docrag/internal/domain"
	"docrag/internal/vectorindex"
)

// MemoryStore is a process-local DocumentStore and IndexPersister. Nothing
// survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]domain.Document
	texts map[string]string
	seq   uint64
	snap  *vectorindex.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]domain.Document),
		texts: make(map[string]string),
	}
}

func (s *MemoryStore) PutDoc(doc domain.Document, text string) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.Seq == 0 {
		s.seq++
		doc.Seq = s.seq
	}
	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now()
	}
	s.docs[doc.ID] = doc
	s.texts[doc.ID] = text
	return doc, nil
}

func (s *MemoryStore) GetDoc(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return doc, nil
}

func (s *MemoryStore) HasDoc(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok, nil
}

func (s *MemoryStore) DeleteDoc(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	delete(s.docs, id)
	delete(s.texts, id)
	return nil
}

func (s *MemoryStore) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	return docs, nil
}

func (s *MemoryStore) ListSources() ([]domain.SourceText, error) {
	docs, err := s.ListDocs()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sources := make([]domain.SourceText, len(docs))
	for i, doc := range docs {
		sources[i] = domain.SourceText{Doc: doc, Text: s.texts[doc.ID]}
	}
	return sources, nil
}

func (s *MemoryStore) SaveIndex(snap vectorindex.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = &snap
	return nil
}

func (s *MemoryStore) LoadIndex() (vectorindex.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return vectorindex.Snapshot{}, false, nil
	}
	return *s.snap, true, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
