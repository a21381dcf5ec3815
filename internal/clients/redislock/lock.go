package redislock

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/utils"
)

// Locker hands out short-lived mutual-exclusion locks. Used to serialize
// concurrent quiz submissions for the same (user, module).
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
	Close() error
}

type locker struct {
	log *logger.Logger
	rdb *goredis.Client
}

func New(log *logger.Logger) (Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := utils.GetEnv("REDIS_ADDR", "", nil)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &locker{
		log: log.With("service", "RedisLocker"),
		rdb: rdb,
	}, nil
}

func (l *locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	ok, err := l.rdb.SetNX(ctx, "lock:"+key, 1, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.rdb.Del(rctx, "lock:"+key).Err(); err != nil {
			l.log.Warn("lock release failed", "key", key, "error", err)
		}
	}
	return release, true, nil
}

func (l *locker) Close() error {
	return l.rdb.Close()
}

// NopLocker always grants the lock. Used when Redis is not configured;
// single-instance deployments still get tx-level attempt numbering.
type NopLocker struct{}

func (NopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

func (NopLocker) Close() error { return nil }
