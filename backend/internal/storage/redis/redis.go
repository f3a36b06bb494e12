// Package redis keeps the refresh token ledger in redis so that rotation
// holds across several api replicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crmportal/crmportal/shared/config"
	"github.com/crmportal/crmportal/shared/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "crmportal:refresh:"
	dialTimeout = 5 * time.Second
)

type Revocations struct {
	client *goredis.Client
}

// New connects and pings the server before returning.
func New(ctx context.Context, cfg config.Redis) (*Revocations, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is empty")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connect error: %w", err)
	}
	return &Revocations{client: client}, nil
}

func NewFromClient(client *goredis.Client) *Revocations {
	return &Revocations{client: client}
}

// Consume marks the refresh token id as used. It reports false when the id
// was already used. The key lives until the token would have expired anyway.
func (r *Revocations) Consume(ctx context.Context, id domain.TokenId, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return false, nil
	}
	ok, err := r.client.SetNX(ctx, keyPrefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (r *Revocations) Consumed(ctx context.Context, id domain.TokenId) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *Revocations) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Revocations) Close() error {
	return r.client.Close()
}
