package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pmikheev/staffauth/internal/apperrors"
)

// RefreshTokenStore keeps the single live refresh token per (user, device)
// pair in redis with TTL equal to the refresh token validity.
//
// Key layout: refresh:{userID}:{device}
// Redis SET/DEL are atomic per key which is all the rotation protocol
// needs: two concurrent rotations resolve to last-write-wins and the
// loser fails its own compare on the next read.
type RefreshTokenStore struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{rdb: rdb}
}

func (s *RefreshTokenStore) Save(ctx context.Context, userID uuid.UUID, device string, token string, ttl time.Duration) error {
	err := s.rdb.Set(ctx, key(userID, device), token, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (s *RefreshTokenStore) Get(ctx context.Context, userID uuid.UUID, device string) (string, error) {
	token, err := s.rdb.Get(ctx, key(userID, device)).Result()

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, redis.Nil):
		return "", apperrors.ErrRefreshTokenNotFound
	default:
		return "", fmt.Errorf("redis error: %w", err)
	}
}

func (s *RefreshTokenStore) Delete(ctx context.Context, userID uuid.UUID, device string) error {
	err := s.rdb.Del(ctx, key(userID, device)).Err()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func key(userID uuid.UUID, device string) string {
	return fmt.Sprintf("refresh:%s:%s", userID, device)
}
