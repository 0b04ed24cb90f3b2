// Package ratelimit implements the shared market token bucket. Bucket
// state lives in the KV store, one key per retailer, so every pipeline
// instance contends against the same budget.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"go.uber.org/zap"
)

// bucketState is the wire shape stored under market:bucket:{store}.
type bucketState struct {
	Tokens       float64 `json:"tokens"`
	LastRefillMS int64   `json:"last_refill_ms"`
}

// Bucket is a lazily refilled token bucket. Tokens accrue continuously at
// the refill rate up to capacity; Take spends one, waiting just long
// enough for it to accrue when the bucket is empty, up to the wait cap.
type Bucket struct {
	kv       outbound.KVStore
	cfg      config.BucketConfig
	logger   *zap.Logger
	observer func(store string, wait time.Duration, refused bool)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

var _ outbound.TokenBucket = (*Bucket)(nil)

// NewBucket creates a token bucket on top of kv.
func NewBucket(kv outbound.KVStore, cfg config.BucketConfig, logger *zap.Logger) *Bucket {
	return &Bucket{
		kv:     kv,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// SetObserver registers a callback invoked once per admission outcome.
// Used to feed metrics counters.
func (b *Bucket) SetObserver(fn func(store string, wait time.Duration, refused bool)) {
	b.observer = fn
}

func (b *Bucket) observe(store string, wait time.Duration, refused bool) {
	if b.observer != nil {
		b.observer(store, wait, refused)
	}
}

// Take blocks until one token is available for store, up to the configured
// wait cap. Exhausting the cap, or losing every CAS attempt on the state
// key, yields a RATE_LIMITED error the caller treats like an upstream 429.
func (b *Bucket) Take(ctx context.Context, store string) error {
	key := b.cfg.KeyPrefix + store
	started := b.now()
	deadline := started.Add(b.cfg.MaxWait)

	for {
		var (
			acquired bool
			tokens   float64
		)
		err := b.kv.Update(ctx, key, 0, func(current []byte) ([]byte, error) {
			state := b.refill(current)
			tokens = state.Tokens
			if state.Tokens < 1 {
				// Nothing to spend; skip the write and wait outside.
				acquired = false
				return nil, nil
			}
			state.Tokens--
			acquired = true
			tokens = state.Tokens
			return json.Marshal(state)
		})
		if err != nil {
			if errors.Is(err, outbound.ErrUpdateContention) {
				b.logger.Warn("Token bucket CAS contention",
					zap.String("store", store))
				b.observe(store, b.now().Sub(started), true)
				return apperrors.NewRateLimitedError("market", 0)
			}
			return err
		}
		if acquired {
			b.observe(store, b.now().Sub(started), false)
			return nil
		}

		wait := b.waitFor(tokens)
		if b.now().Add(wait).After(deadline) {
			b.logger.Debug("Token bucket wait exceeds cap",
				zap.String("store", store),
				zap.Duration("wait", wait),
				zap.Duration("cap", b.cfg.MaxWait))
			b.observe(store, b.now().Sub(started), true)
			return apperrors.NewRateLimitedError("market", wait.Milliseconds())
		}
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// refill advances the stored state to now. An absent or corrupt key resets
// to a full bucket.
func (b *Bucket) refill(current []byte) bucketState {
	now := b.now()
	full := bucketState{Tokens: b.cfg.Capacity, LastRefillMS: now.UnixMilli()}
	if current == nil {
		return full
	}

	var state bucketState
	if err := json.Unmarshal(current, &state); err != nil {
		return full
	}

	elapsed := now.Sub(time.UnixMilli(state.LastRefillMS))
	if elapsed < 0 {
		elapsed = 0
	}
	state.Tokens = math.Min(b.cfg.Capacity, state.Tokens+elapsed.Seconds()*b.cfg.RefillPerSec)
	state.LastRefillMS = now.UnixMilli()
	return state
}

// waitFor returns how long until one whole token has accrued, with a small
// cushion so the retry does not land a hair early.
func (b *Bucket) waitFor(tokens float64) time.Duration {
	deficit := 1 - tokens
	if deficit < 0 {
		deficit = 0
	}
	return time.Duration(deficit/b.cfg.RefillPerSec*float64(time.Second)) + time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
