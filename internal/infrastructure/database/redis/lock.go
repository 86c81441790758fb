package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "lock is held by another run")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

type LockOption func(*lockConfig)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

// WithWatchdogInterval sets how often a held lock is extended.
func WithWatchdogInterval(interval time.Duration) LockOption {
	return func(c *lockConfig) { c.watchdogInterval = interval }
}

type lockConfig struct {
	ttl              time.Duration
	watchdogInterval time.Duration
}

// RunLock hands out single-owner locks.  A held lock is kept alive by a
// watchdog until it is released, so a crashed holder frees it after one TTL.
type RunLock struct {
	client *Client
	log    logging.Logger
	config lockConfig
}

var _ consolidation.RunLocker = (*RunLock)(nil)

func NewRunLock(client *Client, log logging.Logger, opts ...LockOption) *RunLock {
	if log == nil {
		log = logging.NewNopLogger()
	}
	cfg := lockConfig{ttl: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.watchdogInterval <= 0 {
		cfg.watchdogInterval = cfg.ttl / 3
	}
	return &RunLock{client: client, log: log, config: cfg}
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Lock acquires name without waiting.  The returned function releases it.
func (l *RunLock) Lock(ctx context.Context, name string) (func(context.Context) error, error) {
	key := buildLockKey(name)
	value := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, value, l.config.ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to set lock")
	}
	if !ok {
		return nil, ErrLockNotAcquired.WithDetail(name)
	}

	wdCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go l.watchdog(wdCtx, key, value, done)

	unlock := func(ctx context.Context) error {
		cancel()
		<-done
		res, err := unlockScript.Run(ctx, l.client.rdb, []string{key}, value).Int64()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCacheError, "failed to release lock")
		}
		if res == 0 {
			return ErrLockNotHeld.WithDetail(name)
		}
		return nil
	}
	return unlock, nil
}

func (l *RunLock) extend(ctx context.Context, key, value string) (bool, error) {
	res, err := extendScript.Run(ctx, l.client.rdb, []string{key}, value, l.config.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (l *RunLock) watchdog(ctx context.Context, key, value string, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.config.watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := l.extend(ctx, key, value)
			if err != nil {
				if ctx.Err() == nil {
					l.log.Error("Watchdog failed to extend lock", logging.String("key", key), logging.Err(err))
				}
				return
			}
			if !ok {
				l.log.Warn("Watchdog lost lock", logging.String("key", key))
				return
			}
		}
	}
}

func buildLockKey(name string) string {
	return "gastm:lock:" + name
}
