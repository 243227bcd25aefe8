// Package redislock serializes work on a key across service instances.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker takes leases with SET NX PX and releases them only while the
// caller's token is still the stored value.
type Locker struct {
	rdb        redis.Cmdable
	prefix     string
	ttl        time.Duration
	retryEvery time.Duration
	logger     *slog.Logger
}

type Config struct {
	Prefix     string
	TTL        time.Duration
	RetryEvery time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func New(rdb redis.Cmdable, logger *slog.Logger, cfg Config) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RetryEvery <= 0 {
		cfg.RetryEvery = 25 * time.Millisecond
	}
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	if cfg.Prefix == "" {
		cfg.Prefix = "lock"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{
		rdb:        rdb,
		prefix:     cfg.Prefix,
		ttl:        cfg.TTL,
		retryEvery: cfg.RetryEvery,
		logger:     logger,
	}
}

// Lock retries until the key is acquired or ctx is done, in which case
// ctx.Err() is returned.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + ":" + key
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("redis lock %s: %w", fullKey, err)
		}
		if ok {
			return l.releaseFunc(fullKey, token), nil
		}

		timer := time.NewTimer(l.retryEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) releaseFunc(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("redis lock release failed", "key", key, "err", err)
				return
			}
			if n == 0 {
				l.logger.Warn("redis lock expired before release", "key", key, "ttl", l.ttl)
			}
		})
	}
}

// ReadyCheck pings Redis for /readyz.
func ReadyCheck(rdb redis.Cmdable) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
