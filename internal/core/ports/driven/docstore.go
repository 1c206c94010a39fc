package driven

import (
	"context"
	"encoding/json"
)

// Collection names used by the ingestion pipeline.
const (
	CollectionMeta       = "meta"
	CollectionLightcurve = "lightcurve"
	CollectionEvents     = "events"
)

// DocumentStore is the key-value document capability records are persisted
// to. Writes are last-write-wins upserts keyed by canonical object name
// within a logical collection.
type DocumentStore interface {
	// Upsert inserts or replaces the document under (collection, key).
	Upsert(ctx context.Context, key string, doc any, collection string) error

	// Get returns the stored document, or domain.ErrNotFound.
	Get(ctx context.Context, key, collection string) (json.RawMessage, error)

	// Keys returns every key in a collection, sorted.
	Keys(ctx context.Context, collection string) ([]string, error)

	// Close releases the underlying store.
	Close() error
}
