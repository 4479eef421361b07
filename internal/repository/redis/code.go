package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const keyPrefix = "otp:"

// CodeStore implements repository.CodeStore using Redis. Expiry is left to
// Redis and consumption uses GETDEL, so a code can be redeemed at most once
// even across replicas.
type CodeStore struct {
	client *redis.Client
}

// NewCodeStore creates a new Redis-backed verification code store.
func NewCodeStore(client *redis.Client) *CodeStore {
	return &CodeStore{client: client}
}

var _ repository.CodeStore = (*CodeStore)(nil)

// Save stores code under key with the given TTL.
func (s *CodeStore) Save(ctx context.Context, key, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, code, ttl).Err(); err != nil {
		return fmt.Errorf("redis set code: %w", err)
	}
	return nil
}

// Consume returns the stored code and deletes it.
func (s *CodeStore) Consume(ctx context.Context, key string) (string, error) {
	code, err := s.client.GetDel(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("verification code", key)
		}
		return "", fmt.Errorf("redis getdel code: %w", err)
	}
	return code, nil
}
