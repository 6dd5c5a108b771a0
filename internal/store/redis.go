// ABOUTME: Redis session store for admin deployments running several replicas
// ABOUTME: Sessions are JSON values whose key TTL matches the session expiry

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements SessionStore on a Redis server.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// Ensure RedisStore implements SessionStore.
var _ SessionStore = (*RedisStore)(nil)

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces session keys. Defaults to "modeladmin:session:".
	Prefix string
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisStoreFromClient(client, opts.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "modeladmin:session:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: slog.Default().With("component", "store"),
	}
}

type redisSession struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// CreateSession stores the session with a TTL ending at its expiry.
func (s *RedisStore) CreateSession(ctx context.Context, session *Session) error {
	data, err := json.Marshal(redisSession{
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt.UTC(),
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	var ttl time.Duration
	if !session.ExpiresAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	ok, err := s.client.SetNX(ctx, s.key(session.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	if !ok {
		return ErrSessionExists
	}
	s.logger.Debug("created session", "user_id", session.UserID)
	return nil
}

// GetSession loads a live session.
func (s *RedisStore) GetSession(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	session := &Session{ID: id, UserID: rs.UserID, CreatedAt: rs.CreatedAt, ExpiresAt: rs.ExpiresAt}
	if session.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession removes the key and reports whether it existed.
func (s *RedisStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return n > 0, nil
}

// DeleteExpiredSessions is a no-op; Redis expires keys itself.
func (s *RedisStore) DeleteExpiredSessions(context.Context) error {
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
