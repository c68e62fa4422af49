// Package redislock provides a cross-instance provider lock for the
// reservation guard. Single-replica deployments use the in-process locker;
// this one serializes reservation attempts across API replicas sharing a
// redis instance.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "reserve_lock:"

// unlockScript deletes the lock only when it still holds our token, so a lock
// that expired and was re-acquired by another caller is never released by us.
var unlockScript = redis.NewScript(
	`if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`)

// Locker implements the availability engine's ProviderLocker over redis
// SET NX with a per-acquisition token.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// New creates a redis-backed provider locker. ttl bounds how long a crashed
// holder can block the provider; retry is the poll interval while contended.
func New(client *redis.Client, ttl, retry time.Duration) *Locker {
	if client == nil {
		panic("redislock: redis client required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &Locker{client: client, ttl: ttl, retry: retry}
}

// Lock acquires the provider's lock, polling until acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, providerID string) (func(), error) {
	key := keyPrefix + providerID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redislock: acquire %s: %w", providerID, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	release := func() {
		// The request context may already be done by release time.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = unlockScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
