package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session slots in Redis. Every Put resets the TTL.
type RedisStore struct {
	R   *redis.Client
	TTL time.Duration
}

func (s RedisStore) Put(ctx context.Context, sessionID, namespace, value string) error {
	if s.R == nil {
		return errors.New("session: redis client not configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("session: empty session id")
	}
	if err := s.R.Set(ctx, Key(sessionID, namespace), value, s.TTL).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

func (s RedisStore) Get(ctx context.Context, sessionID, namespace string) (string, error) {
	if s.R == nil {
		return "", errors.New("session: redis client not configured")
	}
	value, err := s.R.Get(ctx, Key(sessionID, namespace)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session get: %w", err)
	}
	return value, nil
}

func (s RedisStore) Delete(ctx context.Context, sessionID, namespace string) error {
	if s.R == nil {
		return errors.New("session: redis client not configured")
	}
	if err := s.R.Del(ctx, Key(sessionID, namespace)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
