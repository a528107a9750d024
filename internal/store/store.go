package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoDocument is returned when a requested document does not exist.
var ErrNoDocument = errors.New("store: document not found")

// Collection names used by the application.
const (
	CollectionUsers    = "users"
	CollectionChannels = "channels"
)

// Document is a raw record as delivered by the store, tagged with its
// durable id.
type Document struct {
	ID   string
	Data json.RawMessage
}

// CancelFunc tears down a subscription. Safe to call more than once.
type CancelFunc func()

// DocumentStore is the contract against the backing document database.
//
// Collection subscriptions are push based: on every change to the collection
// the handler receives the entire fresh document set, one call per snapshot,
// never one call per document. No ordering is guaranteed between snapshots of
// different collections. Writes are last-writer-wins; there is no
// compare-and-swap and no multi-document transaction.
type DocumentStore interface {
	// AddDocument stores value under a store-generated id and returns it.
	AddDocument(ctx context.Context, collection string, value any) (string, error)

	// GetDocument decodes the document into out, or returns ErrNoDocument.
	GetDocument(ctx context.Context, collection, id string, out any) error

	// SetDocument replaces the document wholesale, creating it if absent.
	SetDocument(ctx context.Context, collection, id string, value any) error

	// UpdateDocument merges the given top-level fields into the document.
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error

	// SubscribeCollection delivers an initial snapshot and then one snapshot
	// per subsequent change until cancelled.
	SubscribeCollection(ctx context.Context, collection string, onSnapshot func([]Document)) (CancelFunc, error)

	// SubscribeDocument is the single-document variant, used for the active
	// user's own record.
	SubscribeDocument(ctx context.Context, collection, id string, onSnapshot func(Document)) (CancelFunc, error)
}
