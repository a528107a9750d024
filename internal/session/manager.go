package session

import (
	"sync"
	"time"

	"dabubble/internal/observability"
)

// DefaultIdleTimeout is how long a session stays alive without activity.
const DefaultIdleTimeout = 15 * time.Minute

// Manager runs one idle-logout timer per user. Touch arms or rearms the
// timer; when it fires the expiry callback runs once and the timer is gone
// until the next Touch.
type Manager struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	timeout  time.Duration
	onExpire func(userID string)
	closed   bool
}

func NewManager(timeout time.Duration, onExpire func(userID string)) *Manager {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	return &Manager{
		timers:   make(map[string]*time.Timer),
		timeout:  timeout,
		onExpire: onExpire,
	}
}

// Touch resets the user's idle timer.
func (m *Manager) Touch(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if t, ok := m.timers[userID]; ok {
		t.Stop()
	}
	m.timers[userID] = time.AfterFunc(m.timeout, func() {
		m.expire(userID)
	})
}

// Stop cancels the user's idle timer, used on explicit logout.
func (m *Manager) Stop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[userID]; ok {
		t.Stop()
		delete(m.timers, userID)
	}
}

// Close stops all timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) expire(userID string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	delete(m.timers, userID)
	m.mu.Unlock()

	observability.IncSessionExpiry()
	if m.onExpire != nil {
		m.onExpire(userID)
	}
}
