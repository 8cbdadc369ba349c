package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when a refresh token is absent or expired.
var ErrTokenNotFound = errors.New("refresh token not found")

// TokenRepository stores refresh tokens in Redis. Each token is a single key
// with the session TTL, so expiry and revocation share one source of truth
// and logout is a plain delete.
type TokenRepository struct {
	client *redis.Client
}

// NewTokenRepository constructs a TokenRepository.
func NewTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{client: client}
}

func refreshTokenKey(token string) string {
	return "refresh_token:" + token
}

// Store associates the refresh token with a user ID for the given TTL.
func (r *TokenRepository) Store(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, refreshTokenKey(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Resolve returns the user ID bound to the token.
func (r *TokenRepository) Resolve(ctx context.Context, token string) (string, error) {
	userID, err := r.client.Get(ctx, refreshTokenKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("resolve refresh token: %w", err)
	}
	return userID, nil
}

// Revoke deletes the token. Revoking an unknown token is not an error.
func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, refreshTokenKey(token)).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
