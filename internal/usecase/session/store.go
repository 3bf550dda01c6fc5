package session

import (
	"context"
	"errors"

	"github.com/conversationhub/transcription-engine/internal/domain/entities"
)

// Store is the versioned session record store. Implementations keep one
// value per session id, bound by the configured TTL, and reject a Put whose
// Version does not match the stored one.
type Store interface {
	// Create stores a new session. Fails if the id already exists.
	Create(ctx context.Context, sess *entities.Session) error

	// Get returns the session or entities.ErrSessionNotFound. Expired
	// sessions are indistinguishable from missing ones.
	Get(ctx context.Context, sessionID string) (*entities.Session, error)

	// Put replaces the stored session if sess.Version matches the stored
	// version, then bumps the version and refreshes the TTL. Returns
	// entities.ErrVersionConflict on a stale write.
	Put(ctx context.Context, sess *entities.Session) error

	// Delete removes the session. Deleting a missing session is not an
	// error.
	Delete(ctx context.Context, sessionID string) error
}

// updateMaxRetries bounds how often a read-modify-write is replayed when
// concurrent requests race on the same session.
const updateMaxRetries = 5

// Update runs a read-modify-write cycle against the store, retrying on
// version conflicts. The mutate function may be called multiple times and
// must not have side effects outside the session value. The stored session
// after a successful write is returned.
func Update(ctx context.Context, store Store, sessionID string, mutate func(*entities.Session) error) (*entities.Session, error) {
	var lastErr error
	for attempt := 0; attempt < updateMaxRetries; attempt++ {
		sess, err := store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := mutate(sess); err != nil {
			return nil, err
		}
		if err := store.Put(ctx, sess); err != nil {
			if errors.Is(err, entities.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return sess, nil
	}
	return nil, lastErr
}
