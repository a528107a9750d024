package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"dabubble/internal/observability"
	"dabubble/internal/store"
)

// notifyChannel is the LISTEN/NOTIFY channel the documents trigger fires on.
// The payload is "<collection>:<document id>".
const notifyChannel = "document_events"

const (
	listenerMinReconnect = time.Second
	listenerMaxReconnect = 30 * time.Second
	listenerPingInterval = 90 * time.Second
)

// Store is a DocumentStore backed by a single jsonb documents table. Realtime
// subscriptions are driven by Postgres LISTEN/NOTIFY: every row change fires a
// notification and the subscriber re-reads the whole collection, so handlers
// always see a full fresh snapshot rather than a diff.
type Store struct {
	db  *sqlx.DB
	dsn string
}

// New wraps an open database handle. The DSN is needed again because each
// subscription holds its own dedicated listener connection.
func New(db *sqlx.DB, dsn string) *Store {
	return &Store{db: db, dsn: dsn}
}

var _ store.DocumentStore = (*Store)(nil)

// AddDocument inserts value under a generated id.
func (s *Store) AddDocument(ctx context.Context, coll string, value any) (string, error) {
	id := uuid.NewString()
	if err := s.SetDocument(ctx, coll, id, value); err != nil {
		return "", err
	}
	return id, nil
}

// GetDocument decodes a single document into out.
func (s *Store) GetDocument(ctx context.Context, coll, id string, out any) error {
	var raw []byte
	err := s.db.GetContext(ctx, &raw, `SELECT data FROM documents WHERE collection=$1 AND id=$2`, coll, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNoDocument
	}
	if err != nil {
		return fmt.Errorf("get document %s/%s: %w", coll, id, err)
	}
	return json.Unmarshal(raw, out)
}

// SetDocument upserts the document wholesale.
func (s *Store) SetDocument(ctx context.Context, coll, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
        ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, coll, id, raw)
	if err != nil {
		return fmt.Errorf("set document %s/%s: %w", coll, id, err)
	}
	return nil
}

// UpdateDocument merges top-level fields into the stored jsonb value.
func (s *Store) UpdateDocument(ctx context.Context, coll, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET data = data || $3::jsonb, updated_at = now()
        WHERE collection=$1 AND id=$2`, coll, id, raw)
	if err != nil {
		return fmt.Errorf("update document %s/%s: %w", coll, id, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNoDocument
	}
	return nil
}

// SubscribeCollection delivers the current snapshot, then a fresh one after
// every notification for the collection. Listener errors are counted and
// logged but never surfaced to the handler.
func (s *Store) SubscribeCollection(ctx context.Context, coll string, onSnapshot func([]store.Document)) (store.CancelFunc, error) {
	listener, err := s.openListener()
	if err != nil {
		return nil, err
	}

	docs, err := s.loadCollection(ctx, coll)
	if err != nil {
		listener.Close()
		return nil, err
	}
	onSnapshot(docs)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case n := <-listener.Notify:
				// A nil notification marks a listener reconnect; changes may
				// have been missed, refresh unconditionally.
				if n != nil && !strings.HasPrefix(n.Extra, coll+":") {
					continue
				}
				docs, err := s.loadCollection(context.Background(), coll)
				if err != nil {
					log.Printf("store: refresh %s snapshot: %v", coll, err)
					observability.IncStoreListenerError(coll)
					continue
				}
				onSnapshot(docs)
			case <-time.After(listenerPingInterval):
				go func() {
					if err := listener.Ping(); err != nil {
						log.Printf("store: listener ping: %v", err)
					}
				}()
			}
		}
	}()

	return cancelOnce(done, listener), nil
}

// SubscribeDocument watches a single document.
func (s *Store) SubscribeDocument(ctx context.Context, coll, id string, onSnapshot func(store.Document)) (store.CancelFunc, error) {
	listener, err := s.openListener()
	if err != nil {
		return nil, err
	}

	if doc, err := s.loadDocument(ctx, coll, id); err == nil {
		onSnapshot(doc)
	} else if !errors.Is(err, store.ErrNoDocument) {
		listener.Close()
		return nil, err
	}

	payload := coll + ":" + id
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case n := <-listener.Notify:
				if n != nil && n.Extra != payload {
					continue
				}
				doc, err := s.loadDocument(context.Background(), coll, id)
				if err != nil {
					if !errors.Is(err, store.ErrNoDocument) {
						log.Printf("store: refresh %s/%s: %v", coll, id, err)
						observability.IncStoreListenerError(coll)
					}
					continue
				}
				onSnapshot(doc)
			case <-time.After(listenerPingInterval):
				go func() {
					if err := listener.Ping(); err != nil {
						log.Printf("store: listener ping: %v", err)
					}
				}()
			}
		}
	}()

	return cancelOnce(done, listener), nil
}

func (s *Store) openListener() (*pq.Listener, error) {
	listener := pq.NewListener(s.dsn, listenerMinReconnect, listenerMaxReconnect, func(_ pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("store: listener event error: %v", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	return listener, nil
}

func (s *Store) loadCollection(ctx context.Context, coll string) ([]store.Document, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT id, data FROM documents WHERE collection=$1 ORDER BY created_at, id`, coll)
	if err != nil {
		return nil, fmt.Errorf("load collection %s: %w", coll, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		docs = append(docs, store.Document{ID: id, Data: json.RawMessage(raw)})
	}
	return docs, rows.Err()
}

func (s *Store) loadDocument(ctx context.Context, coll, id string) (store.Document, error) {
	var raw []byte
	err := s.db.GetContext(ctx, &raw, `SELECT data FROM documents WHERE collection=$1 AND id=$2`, coll, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNoDocument
	}
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: id, Data: json.RawMessage(raw)}, nil
}

func cancelOnce(done chan struct{}, listener *pq.Listener) store.CancelFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			listener.Close()
		})
	}
}
