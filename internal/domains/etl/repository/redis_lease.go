package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"movies-etl/internal/domains/etl"
)

// releaseScript deletes the lease only if this instance still holds it, so
// an expired lease taken over by another coordinator is never released from
// under it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

type redisLease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLease creates the coordinator lease over the watermark resource.
// The TTL must cover the cycle budget so the lease cannot expire mid-cycle.
func NewRedisLease(client *redis.Client, key string, ttl time.Duration) etl.Lease {
	return &redisLease{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

func (l *redisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lease: %w", err)
	}
	return ok, nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release sync lease: %w", err)
	}
	return nil
}
