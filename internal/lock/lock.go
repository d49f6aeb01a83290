// Package lock provides the lease lock taken around a settlement sweep when
// several server instances run. Settlement is correct without it; the lock
// only keeps instances from doing the same work twice.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mmynk/estatesale/internal/apperr"
)

// ErrNotAcquired is returned when another holder owns the lease.
var ErrNotAcquired = errors.New("lock held by another instance")

// Lease is a held lock.
type Lease interface {
	// Release gives the lock up. Releasing an expired lease is a no-op.
	Release(ctx context.Context) error
}

// Locker acquires named leases.
type Locker interface {
	// Acquire takes the lock for ttl or returns ErrNotAcquired.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// releaseScript deletes the key only if it still holds our token, so an
// instance whose lease expired cannot release the next holder's lock.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a locker on an existing client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, prefix: "estatesale:lock:"}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: failed to connect to Redis: %w", apperr.ErrExternalService, err)
	}
	return rdb, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	key := l.prefix + name
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire lock %s: %w", apperr.ErrExternalService, name, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("%w: failed to release lock: %w", apperr.ErrExternalService, err)
	}
	return nil
}

// Noop never contends. Used when Redis is not configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Release(context.Context) error { return nil }
