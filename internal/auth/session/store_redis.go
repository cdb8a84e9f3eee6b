package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"warikan/pkg/sentinel"
)

const sessionKeyPrefix = "sess:"

// RedisStore shares sessions across instances. Expiry is enforced by key
// TTL, so Find never returns sentinel.ErrExpired; expired sessions simply
// vanish.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, session Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrExpired)
	}
	return s.client.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl).Err()
}

func (s *RedisStore) Find(ctx context.Context, id string) (Session, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}
