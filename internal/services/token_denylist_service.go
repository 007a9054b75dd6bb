package services

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const denylistPrefix = "denylist:"

// TokenDenylist records revoked access tokens in Redis until they expire.
// A nil client disables it: nothing is stored and no token is revoked.
type TokenDenylist struct {
	client *redis.Client
}

func NewTokenDenylist(client *redis.Client) *TokenDenylist {
	return &TokenDenylist{client: client}
}

func (d *TokenDenylist) Enabled() bool {
	return d != nil && d.client != nil
}

func (d *TokenDenylist) Add(ctx context.Context, tokenString string, expiration time.Duration) error {
	if !d.Enabled() || expiration <= 0 {
		return nil
	}
	return d.client.Set(ctx, denylistPrefix+tokenString, 1, expiration).Err()
}

func (d *TokenDenylist) IsDenylisted(ctx context.Context, tokenString string) (bool, error) {
	if !d.Enabled() {
		return false, nil
	}
	val, err := d.client.Get(ctx, denylistPrefix+tokenString).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val != "", nil
}
