// Package session stores the single-use correlation tokens that tie a
// LINE OAuth callback back to the internal user who started the link flow.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const opTimeout = 3 * time.Second

// RedisLinkSessionStore keeps link sessions in Redis with TTL. Consume is
// a GETDEL, so a token can be redeemed at most once and disappears with
// its TTL when never redeemed.
type RedisLinkSessionStore struct {
	client *redis.Client
}

// NewRedisLinkSessionStore builds a Redis-backed link session store.
func NewRedisLinkSessionStore(addr, password string) *RedisLinkSessionStore {
	return &RedisLinkSessionStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// NewRedisLinkSessionStoreFromClient wraps an existing client (tests).
func NewRedisLinkSessionStoreFromClient(client *redis.Client) *RedisLinkSessionStore {
	return &RedisLinkSessionStore{client: client}
}

func (s *RedisLinkSessionStore) Create(ctx context.Context, token, userID string, ttl time.Duration) error {
	if token == "" || userID == "" {
		return errors.New("token and user id required")
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.client.Set(ctx, sessionKey(token), userID, ttl).Err()
}

func (s *RedisLinkSessionStore) Consume(ctx context.Context, token string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	val, err := s.client.GetDel(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func sessionKey(token string) string { return "linelink:" + token }

// MemoryLinkSessionStore is the in-process fallback used when no Redis
// address is configured. Expiry is a wall-clock comparison at consume
// time.
type MemoryLinkSessionStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

func NewMemoryLinkSessionStore() *MemoryLinkSessionStore {
	return &MemoryLinkSessionStore{
		sessions: map[string]memorySession{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryLinkSessionStore) Create(ctx context.Context, token, userID string, ttl time.Duration) error {
	if token == "" || userID == "" {
		return errors.New("token and user id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memorySession{userID: userID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryLinkSessionStore) Consume(ctx context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return "", false, nil
	}
	delete(s.sessions, token)
	if s.now().After(sess.expiresAt) {
		return "", false, nil
	}
	return sess.userID, true, nil
}
