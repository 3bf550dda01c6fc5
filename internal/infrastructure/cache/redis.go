package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conversationhub/transcription-engine/internal/domain/entities"
)

const sessionKeyPrefix = "live:session:"

// RedisSessionStore is the Redis-backed versioned session store used when
// multiple engine instances share session state. Optimistic concurrency is
// enforced with WATCH/MULTI on the session key; the version stamp lives
// inside the JSON value.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a Redis store and verifies connectivity.
func NewRedisSessionStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSessionStore{client: client, ttl: ttl}, nil
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Create stores a new session under its id. SET NX guards against id reuse.
func (rs *RedisSessionStore) Create(ctx context.Context, sess *entities.Session) error {
	sess.Version = 1
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	ok, err := rs.client.SetNX(ctx, sessionKey(sess.ID), payload, rs.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	return nil
}

// Get retrieves a session by id.
func (rs *RedisSessionStore) Get(ctx context.Context, sessionID string) (*entities.Session, error) {
	payload, err := rs.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entities.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess entities.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Put replaces the stored session when versions match and refreshes the TTL.
// The key is WATCHed so a concurrent write between the read and the MULTI
// aborts the transaction.
func (rs *RedisSessionStore) Put(ctx context.Context, sess *entities.Session) error {
	key := sessionKey(sess.ID)

	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return entities.ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		var stored entities.Session
		if err := json.Unmarshal(current, &stored); err != nil {
			return err
		}
		if stored.Version != sess.Version {
			return entities.ErrVersionConflict
		}

		sess.Version++
		payload, err := json.Marshal(sess)
		if err != nil {
			sess.Version--
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, rs.ttl)
			return nil
		})
		if err != nil {
			sess.Version--
		}
		return err
	}

	err := rs.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return entities.ErrVersionConflict
	}
	return err
}

// Delete removes a session.
func (rs *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return rs.client.Del(ctx, sessionKey(sessionID)).Err()
}

// Close releases the underlying client.
func (rs *RedisSessionStore) Close() error {
	return rs.client.Close()
}
