package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/conversationhub/transcription-engine/internal/domain/entities"
)

// MemorySessionStore is an in-memory versioned session store with
// expiration. It is the default when no Redis host is configured and is the
// store used by tests.
type MemorySessionStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]*sessionItem
}

type sessionItem struct {
	// payload is the JSON-encoded session so readers never alias the
	// stored value
	payload    []byte
	version    int64
	expireTime time.Time
}

// NewMemorySessionStore creates a new in-memory store
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	store := &MemorySessionStore{
		ttl:   ttl,
		items: make(map[string]*sessionItem),
	}

	// Start cleanup goroutine to remove expired items
	go store.cleanupExpired()

	return store
}

// Create stores a new session under its id
func (ms *MemorySessionStore) Create(_ context.Context, sess *entities.Session) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if item, exists := ms.items[sess.ID]; exists && time.Now().Before(item.expireTime) {
		return fmt.Errorf("session %s already exists", sess.ID)
	}

	sess.Version = 1
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ms.items[sess.ID] = &sessionItem{
		payload:    payload,
		version:    1,
		expireTime: time.Now().Add(ms.ttl),
	}
	return nil
}

// Get retrieves a session by id
func (ms *MemorySessionStore) Get(_ context.Context, sessionID string) (*entities.Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	item, exists := ms.items[sessionID]
	if !exists || time.Now().After(item.expireTime) {
		return nil, entities.ErrSessionNotFound
	}

	var sess entities.Session
	if err := json.Unmarshal(item.payload, &sess); err != nil {
		return nil, err
	}
	sess.Version = item.version
	return &sess, nil
}

// Put replaces the stored session when versions match and refreshes the TTL
func (ms *MemorySessionStore) Put(_ context.Context, sess *entities.Session) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	item, exists := ms.items[sess.ID]
	if !exists || time.Now().After(item.expireTime) {
		return entities.ErrSessionNotFound
	}
	if item.version != sess.Version {
		return entities.ErrVersionConflict
	}

	sess.Version++
	payload, err := json.Marshal(sess)
	if err != nil {
		sess.Version--
		return err
	}
	item.payload = payload
	item.version = sess.Version
	item.expireTime = time.Now().Add(ms.ttl)
	return nil
}

// Delete removes a session
func (ms *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.items, sessionID)
	return nil
}

// cleanupExpired periodically removes expired items
func (ms *MemorySessionStore) cleanupExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		ms.mu.Lock()
		now := time.Now()
		for key, item := range ms.items {
			if now.After(item.expireTime) {
				delete(ms.items, key)
			}
		}
		ms.mu.Unlock()
	}
}
