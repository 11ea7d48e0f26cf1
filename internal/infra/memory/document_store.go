package memory

import (
	"context"
	"sync"

	"quizhub-service/internal/docstore"
)

// DocumentStore is an in-process docstore.Store. It backs tests and the offline
// snapshot tier that mirrors whatever the remote store last returned.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Doc
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string]docstore.Doc),
	}
}

func (s *DocumentStore) NewID() string {
	return docstore.NewID()
}

func (s *DocumentStore) Get(_ context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[ref.Collection][ref.ID]
	if !ok {
		return docstore.Snapshot{}, docstore.ErrNotFound
	}
	data, err := docstore.Normalize(doc)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	return docstore.Snapshot{ID: ref.ID, Data: data}, nil
}

func (s *DocumentStore) Set(_ context.Context, ref docstore.Ref, data docstore.Doc, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := docstore.Apply(s.collections[ref.Collection][ref.ID], data, merge)
	if err != nil {
		return err
	}
	s.putLocked(ref, next)
	return nil
}

func (s *DocumentStore) Update(_ context.Context, ref docstore.Ref, fields docstore.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.collections[ref.Collection][ref.ID]
	if !ok {
		return docstore.ErrNotFound
	}
	next, err := docstore.Apply(existing, fields, true)
	if err != nil {
		return err
	}
	s.putLocked(ref, next)
	return nil
}

func (s *DocumentStore) Delete(_ context.Context, ref docstore.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[ref.Collection]
	if !ok {
		return nil
	}
	delete(docs, ref.ID)
	if len(docs) == 0 {
		delete(s.collections, ref.Collection)
	}
	return nil
}

func (s *DocumentStore) Query(_ context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	s.mu.RLock()
	docs := s.collections[q.Collection]
	snaps := make([]docstore.Snapshot, 0, len(docs))
	for id, doc := range docs {
		if !q.Matches(doc) {
			continue
		}
		data, err := docstore.Normalize(doc)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		snaps = append(snaps, docstore.Snapshot{ID: id, Data: data})
	}
	s.mu.RUnlock()
	return docstore.Evaluate(q, snaps), nil
}

func (s *DocumentStore) putLocked(ref docstore.Ref, doc docstore.Doc) {
	docs, ok := s.collections[ref.Collection]
	if !ok {
		docs = make(map[string]docstore.Doc)
		s.collections[ref.Collection] = docs
	}
	docs[ref.ID] = doc
}
