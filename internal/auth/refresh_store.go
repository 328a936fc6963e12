package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-aid/meridian-aid/internal/shared"
)

const refreshKeyPrefix = "auth:refresh:"

// RefreshStore keeps hashed refresh tokens in redis with their TTL, so
// revocation is immediate and restarts do not leak sessions.
type RefreshStore struct {
	client *redis.Client
}

// NewRefreshStore constructs a RefreshStore.
func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{client: client}
}

// Save binds a token hash to a user id until expiry.
func (s *RefreshStore) Save(ctx context.Context, hash string, userID uuid.UUID, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKeyPrefix+hash, userID.String(), ttl).Err()
}

// Resolve returns the user owning the token hash.
func (s *RefreshStore) Resolve(ctx context.Context, hash string) (uuid.UUID, error) {
	val, err := s.client.Get(ctx, refreshKeyPrefix+hash).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, shared.ErrTokenInvalid
	}
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, shared.ErrTokenInvalid
	}
	return id, nil
}

// Delete revokes a token hash.
func (s *RefreshStore) Delete(ctx context.Context, hash string) error {
	return s.client.Del(ctx, refreshKeyPrefix+hash).Err()
}
