package mirror

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"dabubble/internal/models"
	"dabubble/internal/observability"
	"dabubble/internal/store"
)

// Mirror keeps in-process copies of the users and channels collections
// current by subscribing to the document store's realtime feed. Every
// snapshot replaces the corresponding array wholesale; change handlers fire
// once per snapshot, never once per document. No ordering is guaranteed
// between the two collections' snapshots.
//
// The mirror owns the canonical arrays. Everything else reads them through
// the accessors and mutates remote state through the facades, then waits for
// the mirror to catch up via its listener.
type Mirror struct {
	store store.DocumentStore

	mu           sync.RWMutex
	users        []models.User
	channels     []models.Channel
	activeUser   *models.User
	activeUserID string

	userHandlers    map[int]func([]models.User)
	channelHandlers map[int]func([]models.Channel)
	activeHandlers  map[int]func(models.User)
	nextHandlerID   int

	cancelUsers    store.CancelFunc
	cancelChannels store.CancelFunc
	cancelActive   store.CancelFunc
}

// New creates a mirror over the given store. Call Start to begin syncing.
func New(st store.DocumentStore) *Mirror {
	return &Mirror{
		store:           st,
		userHandlers:    make(map[int]func([]models.User)),
		channelHandlers: make(map[int]func([]models.Channel)),
		activeHandlers:  make(map[int]func(models.User)),
	}
}

// Start opens the two collection subscriptions.
func (m *Mirror) Start(ctx context.Context) error {
	cancelUsers, err := m.store.SubscribeCollection(ctx, store.CollectionUsers, m.applyUsers)
	if err != nil {
		return err
	}
	cancelChannels, err := m.store.SubscribeCollection(ctx, store.CollectionChannels, m.applyChannels)
	if err != nil {
		cancelUsers()
		return err
	}
	m.mu.Lock()
	m.cancelUsers = cancelUsers
	m.cancelChannels = cancelChannels
	m.mu.Unlock()
	return nil
}

// SetActiveUser switches the single dynamic subscription to the given user's
// own document. The previous active subscription, if any, is cancelled first.
func (m *Mirror) SetActiveUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	if m.activeUserID == userID {
		m.mu.Unlock()
		return nil
	}
	prev := m.cancelActive
	m.cancelActive = nil
	m.activeUserID = userID
	m.activeUser = nil
	m.mu.Unlock()

	if prev != nil {
		prev()
	}
	if userID == "" {
		return nil
	}

	cancel, err := m.store.SubscribeDocument(ctx, store.CollectionUsers, userID, m.applyActiveUser)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cancelActive = cancel
	m.mu.Unlock()
	return nil
}

// Close cancels all subscriptions.
func (m *Mirror) Close() {
	m.mu.Lock()
	cancels := []store.CancelFunc{m.cancelUsers, m.cancelChannels, m.cancelActive}
	m.cancelUsers, m.cancelChannels, m.cancelActive = nil, nil, nil
	m.mu.Unlock()
	for _, cancel := range cancels {
		if cancel != nil {
			cancel()
		}
	}
}

// Users returns the current mirrored user set.
func (m *Mirror) Users() []models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users
}

// Channels returns the current mirrored channel set.
func (m *Mirror) Channels() []models.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels
}

// ChannelsFor returns the channels the given user belongs to, in mirror
// order.
func (m *Mirror) ChannelsFor(userID string) []models.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Channel
	for _, ch := range m.channels {
		if ch.HasMember(userID) {
			out = append(out, ch)
		}
	}
	return out
}

// UserByID returns a deep copy of the user, safe to mutate before a write.
func (m *Mirror) UserByID(id string) (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			return u.Clone(), true
		}
	}
	return models.User{}, false
}

// ChannelByID returns a deep copy of the channel, safe to mutate before a
// write.
func (m *Mirror) ChannelByID(id string) (models.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.channels {
		if ch.ID == id {
			return ch.Clone(), true
		}
	}
	return models.Channel{}, false
}

// ActiveUser returns a deep copy of the watched user's record.
func (m *Mirror) ActiveUser() (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeUser == nil {
		return models.User{}, false
	}
	return m.activeUser.Clone(), true
}

// OnUsersChanged registers a handler invoked once per users snapshot.
func (m *Mirror) OnUsersChanged(fn func([]models.User)) store.CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.userHandlers[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.userHandlers, id)
		m.mu.Unlock()
	}
}

// OnChannelsChanged registers a handler invoked once per channels snapshot.
func (m *Mirror) OnChannelsChanged(fn func([]models.Channel)) store.CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.channelHandlers[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.channelHandlers, id)
		m.mu.Unlock()
	}
}

// OnActiveUserChanged registers a handler for the active user's record.
func (m *Mirror) OnActiveUserChanged(fn func(models.User)) store.CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.activeHandlers[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.activeHandlers, id)
		m.mu.Unlock()
	}
}

func (m *Mirror) applyUsers(docs []store.Document) {
	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		var u models.User
		if err := json.Unmarshal(doc.Data, &u); err != nil {
			log.Printf("mirror: decode user %s: %v", doc.ID, err)
			continue
		}
		u.ID = doc.ID
		users = append(users, u)
	}

	m.mu.Lock()
	m.users = users
	handlers := make([]func([]models.User), 0, len(m.userHandlers))
	for _, fn := range m.userHandlers {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	observability.IncStoreSnapshot(store.CollectionUsers)
	for _, fn := range handlers {
		fn(users)
	}
}

func (m *Mirror) applyChannels(docs []store.Document) {
	channels := make([]models.Channel, 0, len(docs))
	for _, doc := range docs {
		var ch models.Channel
		if err := json.Unmarshal(doc.Data, &ch); err != nil {
			log.Printf("mirror: decode channel %s: %v", doc.ID, err)
			continue
		}
		ch.ID = doc.ID
		channels = append(channels, ch)
	}

	m.mu.Lock()
	m.channels = channels
	handlers := make([]func([]models.Channel), 0, len(m.channelHandlers))
	for _, fn := range m.channelHandlers {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	observability.IncStoreSnapshot(store.CollectionChannels)
	for _, fn := range handlers {
		fn(channels)
	}
}

func (m *Mirror) applyActiveUser(doc store.Document) {
	var u models.User
	if err := json.Unmarshal(doc.Data, &u); err != nil {
		log.Printf("mirror: decode active user %s: %v", doc.ID, err)
		return
	}
	u.ID = doc.ID

	m.mu.Lock()
	if m.activeUserID != u.ID {
		// Stale snapshot from a subscription that was being torn down.
		m.mu.Unlock()
		return
	}
	m.activeUser = &u
	handlers := make([]func(models.User), 0, len(m.activeHandlers))
	for _, fn := range m.activeHandlers {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(u)
	}
}
