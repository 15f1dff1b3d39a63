package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Namespace is the slot holding the Square order id of a pending checkout.
const Namespace = "square.order_id"

// ErrNotFound is returned by Get when the slot is empty or expired.
var ErrNotFound = errors.New("session: value not found")

// Store keeps per-buyer-session values. Implementations must be safe for
// concurrent use; each buyer session only ever touches its own keys.
type Store interface {
	Put(ctx context.Context, sessionID, namespace, value string) error
	Get(ctx context.Context, sessionID, namespace string) (string, error)
	Delete(ctx context.Context, sessionID, namespace string) error
}

// Key builds the storage key for a session slot.
func Key(sessionID, namespace string) string {
	return "session:" + strings.TrimSpace(sessionID) + ":" + namespace
}

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	TTL time.Duration

	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore returns an empty MemoryStore. A zero ttl never expires entries.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{TTL: ttl, items: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Put(_ context.Context, sessionID, namespace, value string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("session: empty session id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	entry := memoryEntry{value: value}
	if m.TTL > 0 {
		entry.expiresAt = m.now().Add(m.TTL)
	}
	m.items[Key(sessionID, namespace)] = entry
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID, namespace string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	key := Key(sessionID, namespace)
	entry, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.items, key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	delete(m.items, Key(sessionID, namespace))
	return nil
}

func (m *MemoryStore) init() {
	if m.items == nil {
		m.items = make(map[string]memoryEntry)
	}
	if m.now == nil {
		m.now = time.Now
	}
}
