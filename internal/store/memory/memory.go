package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"dabubble/internal/store"
)

// Store is an in-memory DocumentStore. Snapshots are delivered synchronously
// from the writing goroutine, which makes it deterministic enough to drive
// the realtime mirror in tests without a real backend.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	collSubs    map[string]map[int]func([]store.Document)
	docSubs     map[string]map[int]func(store.Document)
	nextSubID   int
}

type collection struct {
	order []string
	docs  map[string]json.RawMessage
}

// New creates an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		collSubs:    make(map[string]map[int]func([]store.Document)),
		docSubs:     make(map[string]map[int]func(store.Document)),
	}
}

var _ store.DocumentStore = (*Store)(nil)

// AddDocument stores value under a generated id.
func (s *Store) AddDocument(ctx context.Context, coll string, value any) (string, error) {
	id := uuid.NewString()
	if err := s.SetDocument(ctx, coll, id, value); err != nil {
		return "", err
	}
	return id, nil
}

// GetDocument decodes a document into out.
func (s *Store) GetDocument(_ context.Context, coll, id string, out any) error {
	s.mu.Lock()
	c, ok := s.collections[coll]
	if !ok {
		s.mu.Unlock()
		return store.ErrNoDocument
	}
	raw, ok := c.docs[id]
	s.mu.Unlock()
	if !ok {
		return store.ErrNoDocument
	}
	return json.Unmarshal(raw, out)
}

// SetDocument replaces the document wholesale and fires snapshots.
func (s *Store) SetDocument(_ context.Context, coll, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	s.mu.Lock()
	c, ok := s.collections[coll]
	if !ok {
		c = &collection{docs: make(map[string]json.RawMessage)}
		s.collections[coll] = c
	}
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = raw
	s.mu.Unlock()

	s.fire(coll, id)
	return nil
}

// UpdateDocument merges top-level fields into the stored document.
func (s *Store) UpdateDocument(_ context.Context, coll, id string, fields map[string]any) error {
	s.mu.Lock()
	c, ok := s.collections[coll]
	if !ok {
		s.mu.Unlock()
		return store.ErrNoDocument
	}
	raw, ok := c.docs[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNoDocument
	}

	var merged map[string]any
	if err := json.Unmarshal(raw, &merged); err != nil {
		s.mu.Unlock()
		return err
	}
	for k, v := range fields {
		merged[k] = v
	}
	updated, err := json.Marshal(merged)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	c.docs[id] = updated
	s.mu.Unlock()

	s.fire(coll, id)
	return nil
}

// SubscribeCollection registers a snapshot handler and delivers the current
// state immediately.
func (s *Store) SubscribeCollection(_ context.Context, coll string, onSnapshot func([]store.Document)) (store.CancelFunc, error) {
	s.mu.Lock()
	if s.collSubs[coll] == nil {
		s.collSubs[coll] = make(map[int]func([]store.Document))
	}
	subID := s.nextSubID
	s.nextSubID++
	s.collSubs[coll][subID] = onSnapshot
	snap := s.snapshotLocked(coll)
	s.mu.Unlock()

	onSnapshot(snap)
	return func() {
		s.mu.Lock()
		delete(s.collSubs[coll], subID)
		s.mu.Unlock()
	}, nil
}

// SubscribeDocument registers a single-document handler. The initial state is
// delivered immediately when the document exists.
func (s *Store) SubscribeDocument(_ context.Context, coll, id string, onSnapshot func(store.Document)) (store.CancelFunc, error) {
	key := coll + "/" + id
	s.mu.Lock()
	if s.docSubs[key] == nil {
		s.docSubs[key] = make(map[int]func(store.Document))
	}
	subID := s.nextSubID
	s.nextSubID++
	s.docSubs[key][subID] = onSnapshot
	var initial *store.Document
	if c, ok := s.collections[coll]; ok {
		if raw, ok := c.docs[id]; ok {
			initial = &store.Document{ID: id, Data: raw}
		}
	}
	s.mu.Unlock()

	if initial != nil {
		onSnapshot(*initial)
	}
	return func() {
		s.mu.Lock()
		delete(s.docSubs[key], subID)
		s.mu.Unlock()
	}, nil
}

func (s *Store) snapshotLocked(coll string) []store.Document {
	c, ok := s.collections[coll]
	if !ok {
		return nil
	}
	snap := make([]store.Document, 0, len(c.order))
	for _, id := range c.order {
		snap = append(snap, store.Document{ID: id, Data: c.docs[id]})
	}
	return snap
}

func (s *Store) fire(coll, id string) {
	s.mu.Lock()
	snap := s.snapshotLocked(coll)
	collHandlers := make([]func([]store.Document), 0, len(s.collSubs[coll]))
	for _, fn := range s.collSubs[coll] {
		collHandlers = append(collHandlers, fn)
	}
	var doc *store.Document
	var docHandlers []func(store.Document)
	if subs := s.docSubs[coll+"/"+id]; len(subs) > 0 {
		raw := s.collections[coll].docs[id]
		doc = &store.Document{ID: id, Data: raw}
		for _, fn := range subs {
			docHandlers = append(docHandlers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range collHandlers {
		fn(snap)
	}
	for _, fn := range docHandlers {
		fn(*doc)
	}
}
