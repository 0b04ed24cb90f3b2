// Package cache provides the shared key-value adapters and the
// stale-while-revalidate layer the pipeline caches are built on.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/ports/outbound"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements the shared KV port on redis with circuit breaker
// protection. A tripped breaker fails fast so cache reads degrade to
// upstream calls instead of stalling the run.
type RedisStore struct {
	client      redis.UniversalClient
	logger      *zap.Logger
	breaker     *circuitBreaker
	casAttempts int
}

var _ outbound.KVStore = (*RedisStore)(nil)

// NewRedisStore creates a redis-backed KV store. casAttempts bounds the
// optimistic retries in Update.
func NewRedisStore(cfg *config.RedisConfig, casAttempts int, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if casAttempts < 1 {
		casAttempts = 1
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:           []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Password:        cfg.Password,
		DB:              cfg.Database,
		MaxRetries:      cfg.MaxRetries,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		PoolTimeout:     10 * time.Second,
	})

	store := &RedisStore{
		client:      client,
		logger:      logger,
		breaker:     newCircuitBreaker(5, 30*time.Second),
		casAttempts: casAttempts,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis KV store initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Int("database", cfg.Database))

	return store, nil
}

// Ping tests the redis connection
// Client exposes the underlying connection for health checks
func (r *RedisStore) Client() redis.UniversalClient {
	return r.client
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if !r.breaker.Allow() {
		return fmt.Errorf("redis circuit breaker is open")
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.breaker.RecordFailure()
		return err
	}
	r.breaker.RecordSuccess()
	return nil
}

// Get retrieves a value, mapping redis.Nil onto the port's miss sentinel
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !r.breaker.Allow() {
		return nil, fmt.Errorf("redis circuit breaker is open")
	}

	result, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		r.breaker.RecordSuccess()
		return nil, outbound.ErrKeyNotFound
	}
	if err != nil {
		r.breaker.RecordFailure()
		r.logger.Error("Redis GET failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	r.breaker.RecordSuccess()
	return result, nil
}

// Set stores a value with TTL
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.breaker.Allow() {
		return fmt.Errorf("redis circuit breaker is open")
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.breaker.RecordFailure()
		r.logger.Error("Redis SET failed", zap.String("key", key), zap.Error(err))
		return err
	}

	r.breaker.RecordSuccess()
	return nil
}

// SetNX sets a key only if it doesn't exist (atomic operation)
func (r *RedisStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if !r.breaker.Allow() {
		return false, fmt.Errorf("redis circuit breaker is open")
	}

	stored, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		r.breaker.RecordFailure()
		r.logger.Error("Redis SETNX failed", zap.String("key", key), zap.Error(err))
		return false, err
	}

	r.breaker.RecordSuccess()
	return stored, nil
}

// Update applies transform under WATCH so concurrent writers never lose
// increments. Only transaction conflicts are retried; transform errors and
// transport errors surface immediately.
func (r *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, transform func(current []byte) ([]byte, error)) error {
	if !r.breaker.Allow() {
		return fmt.Errorf("redis circuit breaker is open")
	}

	for attempt := 0; attempt < r.casAttempts; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				current = nil
			} else if err != nil {
				return err
			}

			next, err := transform(current)
			if err != nil {
				return err
			}
			if next == nil {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			r.breaker.RecordFailure()
			return err
		}
		r.breaker.RecordSuccess()
		return nil
	}

	r.logger.Warn("Redis CAS update exhausted its attempts",
		zap.String("key", key), zap.Int("attempts", r.casAttempts))
	return fmt.Errorf("%w: %s after %d attempts", outbound.ErrUpdateContention, key, r.casAttempts)
}

// Delete removes a key
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if !r.breaker.Allow() {
		return fmt.Errorf("redis circuit breaker is open")
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.breaker.RecordFailure()
		r.logger.Error("Redis DEL failed", zap.String("key", key), zap.Error(err))
		return err
	}

	r.breaker.RecordSuccess()
	return nil
}

// Exists checks whether a key exists
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	if !r.breaker.Allow() {
		return false, fmt.Errorf("redis circuit breaker is open")
	}

	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		r.breaker.RecordFailure()
		r.logger.Error("Redis EXISTS failed", zap.String("key", key), zap.Error(err))
		return false, err
	}

	r.breaker.RecordSuccess()
	return n > 0, nil
}

// Close closes the redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// circuitBreaker trips after consecutive failures and half-opens once the
// cooldown elapses.
type circuitBreaker struct {
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
}

func newCircuitBreaker(maxFailures int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{maxFailures: maxFailures, cooldown: cooldown}
}

// Allow reports whether a request may proceed, half-opening after cooldown.
func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return true
	}
	if time.Since(cb.openedAt) > cb.cooldown {
		// Half-open: let one request probe the backend.
		cb.open = false
		cb.failures = cb.maxFailures - 1
		return true
	}
	return false
}

// RecordSuccess resets the breaker
func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
}

// RecordFailure counts a failure and trips the breaker at the threshold
func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.open = true
		cb.openedAt = time.Now()
	}
}
