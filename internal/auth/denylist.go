package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "auth:denylist:"

// TokenRevoker tracks revoked token ids so stateless JWTs can be logged out.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) bool
}

// TokenDenylist records revoked token IDs in Redis until they would have
// expired anyway.
type TokenDenylist struct {
	client *redis.Client
}

var _ TokenRevoker = (*TokenDenylist)(nil)

// NewTokenDenylist wraps a Redis client.
func NewTokenDenylist(client *redis.Client) *TokenDenylist {
	return &TokenDenylist{client: client}
}

// Revoke marks a token id as unusable for the remaining token lifetime.
func (d *TokenDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if d == nil || d.client == nil || jti == "" {
		return nil
	}
	ttl := revocationTTL(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, denylistPrefix+jti, "1", ttl).Err()
}

// revocationTTL is how long a revoked jti must stay on the denylist: exactly
// the token's remaining life, after which the token is dead on its own.
func revocationTTL(expiresAt time.Time) time.Duration {
	return time.Until(expiresAt)
}

// IsRevoked reports whether the token id has been revoked. Redis errors are
// treated as not revoked so an unavailable cache does not lock everyone out.
func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) bool {
	if d == nil || d.client == nil || jti == "" {
		return false
	}
	n, err := d.client.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil {
		return false
	}
	return n > 0
}
