package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"catalog_service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// SessionStore remembers which sessions are still open.
type SessionStore interface {
	Save(ctx context.Context, identity domain.Identity, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*domain.Identity, error)
	Delete(ctx context.Context, sessionID string) error
}

type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "catalog:session:"
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) Save(ctx context.Context, identity domain.Identity, ttl time.Duration) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("could not encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+identity.SessionID, data, ttl).Err(); err != nil {
		return fmt.Errorf("could not save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (*domain.Identity, error) {
	data, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("could not load session: %w", err)
	}
	var identity domain.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("could not decode session: %w", err)
	}
	return &identity, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("could not delete session: %w", err)
	}
	return nil
}

// sessionSweepInterval bounds how often Save scans for expired sessions.
const sessionSweepInterval = time.Minute

type MemorySessionStore struct {
	mu        sync.Mutex
	sessions  map[string]memorySession
	now       func() time.Time
	lastSweep time.Time
}

type memorySession struct {
	identity  domain.Identity
	expiresAt time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Save(ctx context.Context, identity domain.Identity, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= sessionSweepInterval {
		s.sweepLocked(now)
	}
	s.sessions[identity.SessionID] = memorySession{identity: identity, expiresAt: now.Add(ttl)}
	return nil
}

// sweepLocked drops expired sessions so anonymous visitors do not accumulate.
func (s *MemorySessionStore) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.After(sess.expiresAt) {
			delete(s.sessions, id)
		}
	}
	s.lastSweep = now
}

func (s *MemorySessionStore) Load(ctx context.Context, sessionID string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || s.now().After(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return nil, fmt.Errorf("session %w", domain.ErrNotFound)
	}
	identity := sess.identity
	return &identity, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
