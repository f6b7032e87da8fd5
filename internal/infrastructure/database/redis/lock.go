package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "lock not acquired")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// Lock is a distributed mutex. Workers take one per run so a redelivered
// pose job cannot execute concurrently with the delivery already in flight.
type Lock interface {
	// Lock blocks until the lock is acquired, the retry budget runs out, or
	// ctx is done.
	Lock(ctx context.Context) error
	// TryLock attempts a single acquisition without retrying.
	TryLock(ctx context.Context) (bool, error)
	// Unlock releases the lock if this instance still owns it.
	Unlock(ctx context.Context) error
	// Extend pushes the expiry out by ttl if this instance still owns it.
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
	// TTL reports the remaining lifetime of the lock key.
	TTL(ctx context.Context) (time.Duration, error)
}

// LockFactory mints named locks sharing one client.
type LockFactory interface {
	NewMutex(name string, opts ...LockOption) Lock
}

type LockOption func(*lockConfig)

// WithLockTTL bounds how long a crashed holder can block others.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

func WithRetryDelay(delay time.Duration) LockOption {
	return func(c *lockConfig) { c.retryDelay = delay }
}

func WithRetryCount(count int) LockOption {
	return func(c *lockConfig) { c.retryCount = count }
}

// WithWatchdog keeps extending the lock in the background while it is held.
// Use for work that can outlive the TTL, such as posing a large candidate set.
func WithWatchdog(enabled bool) LockOption {
	return func(c *lockConfig) { c.watchdogEnabled = enabled }
}

type lockConfig struct {
	ttl              time.Duration
	retryDelay       time.Duration
	retryCount       int
	watchdogEnabled  bool
	watchdogInterval time.Duration
}

// locker is the command surface the mutex needs. The raw go-redis client
// satisfies it; tests substitute an in-memory implementation.
type locker interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

type redisLockFactory struct {
	client locker
	logger logging.Logger
}

// NewLockFactory builds a factory on the shared client.
func NewLockFactory(client *Client, log logging.Logger) LockFactory {
	return &redisLockFactory{client: client.Underlying(), logger: log}
}

func (f *redisLockFactory) NewMutex(name string, opts ...LockOption) Lock {
	cfg := lockConfig{
		ttl:        30 * time.Second,
		retryDelay: 100 * time.Millisecond,
		retryCount: 30,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.watchdogEnabled && cfg.watchdogInterval == 0 {
		cfg.watchdogInterval = cfg.ttl / 3
	}

	return &redisMutex{
		client: f.client,
		name:   name,
		token:  uuid.New().String(),
		config: cfg,
		logger: f.logger,
	}
}

// redisMutex holds the lock key with a unique token so only the acquiring
// instance can release or extend it.
type redisMutex struct {
	client         locker
	name           string
	token          string
	config         lockConfig
	logger         logging.Logger
	watchdogCancel context.CancelFunc
	watchdogDone   chan struct{}
}

const unlockLua = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

const extendLua = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`

var (
	unlockScript = redis.NewScript(unlockLua)
	extendScript = redis.NewScript(extendLua)
)

func lockKey(name string) string {
	return "fragelab:lock:" + name
}

func (m *redisMutex) Lock(ctx context.Context) error {
	key := lockKey(m.name)
	for attempt := 0; attempt <= m.config.retryCount; attempt++ {
		acquired, err := m.client.SetNX(ctx, key, m.token, m.config.ttl).Result()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCache, "acquire lock")
		}
		if acquired {
			if m.config.watchdogEnabled {
				m.startWatchdog()
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.retryDelay):
		}
	}
	return ErrLockNotAcquired
}

func (m *redisMutex) TryLock(ctx context.Context) (bool, error) {
	acquired, err := m.client.SetNX(ctx, lockKey(m.name), m.token, m.config.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCache, "acquire lock")
	}
	if acquired && m.config.watchdogEnabled {
		m.startWatchdog()
	}
	return acquired, nil
}

func (m *redisMutex) Unlock(ctx context.Context) error {
	m.stopWatchdog()
	res, err := unlockScript.Run(ctx, m.client, []string{lockKey(m.name)}, m.token).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCache, "release lock")
	}
	if res.(int64) == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (m *redisMutex) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, m.client, []string{lockKey(m.name)}, m.token, ttl.Milliseconds()).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCache, "extend lock")
	}
	return res.(int64) == 1, nil
}

func (m *redisMutex) TTL(ctx context.Context) (time.Duration, error) {
	return m.client.PTTL(ctx, lockKey(m.name)).Result()
}

func (m *redisMutex) startWatchdog() {
	ctx, cancel := context.WithCancel(context.Background())
	m.watchdogCancel = cancel
	m.watchdogDone = make(chan struct{})

	go func() {
		defer close(m.watchdogDone)
		ticker := time.NewTicker(m.config.watchdogInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := m.Extend(ctx, m.config.ttl)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					m.logger.Error("lock watchdog extend failed",
						logging.String("lock", m.name), logging.Err(err))
					return
				}
				if !ok {
					m.logger.Warn("lock watchdog lost ownership",
						logging.String("lock", m.name))
					return
				}
			}
		}
	}()
}

func (m *redisMutex) stopWatchdog() {
	if m.watchdogCancel != nil {
		m.watchdogCancel()
		<-m.watchdogDone
		m.watchdogCancel = nil
	}
}
