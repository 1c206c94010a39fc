// Package memory provides an in-memory document store, used by tests and as
// a throwaway backend when running without persistence.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Documents are serialised on write so stored bytes are decoupled from the
// caller's values, matching the persistent adapters.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections: make(map[string]map[string]json.RawMessage),
	}
}

// Upsert inserts or replaces the document under (collection, key).
func (s *DocumentStore) Upsert(_ context.Context, key string, doc any, collection string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]json.RawMessage)
		s.collections[collection] = coll
	}
	coll[key] = raw
	return nil
}

// Get returns the stored document, or domain.ErrNotFound.
func (s *DocumentStore) Get(_ context.Context, key, collection string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.collections[collection][key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

// Keys returns every key in a collection, sorted.
func (s *DocumentStore) Keys(_ context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.collections[collection]))
	for key := range s.collections[collection] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of documents in a collection. Test helper.
func (s *DocumentStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Close releases nothing; it exists to satisfy the port.
func (s *DocumentStore) Close() error {
	return nil
}
