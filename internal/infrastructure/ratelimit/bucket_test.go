package ratelimit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/macrocart/v2/internal/infrastructure/cache"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// contentionKV always loses the optimistic race.
type contentionKV struct {
	*cache.MemoryStore
}

func (c *contentionKV) Update(context.Context, string, time.Duration, func([]byte) ([]byte, error)) error {
	return outbound.ErrUpdateContention
}

type BucketTestSuite struct {
	suite.Suite
	ctx    context.Context
	kv     *cache.MemoryStore
	bucket *Bucket
	clock  time.Time
	slept  []time.Duration
}

func (suite *BucketTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.kv = cache.NewMemoryStore(0)
	suite.clock = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	suite.slept = nil
	suite.bucket = suite.newBucket(config.BucketConfig{
		Capacity:     10,
		RefillPerSec: 10,
		MaxWait:      250 * time.Millisecond,
		CASAttempts:  3,
		KeyPrefix:    "market:bucket:",
	})
}

// newBucket wires a bucket to the suite's controllable clock; sleeping
// advances the clock instead of blocking.
func (suite *BucketTestSuite) newBucket(cfg config.BucketConfig) *Bucket {
	b := NewBucket(suite.kv, cfg, zap.NewNop())
	b.now = func() time.Time { return suite.clock }
	b.sleep = func(ctx context.Context, d time.Duration) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		suite.slept = append(suite.slept, d)
		suite.clock = suite.clock.Add(d)
		return nil
	}
	return b
}

func (suite *BucketTestSuite) state(store string) bucketState {
	raw, err := suite.kv.Get(suite.ctx, "market:bucket:"+store)
	suite.Require().NoError(err)
	var state bucketState
	suite.Require().NoError(json.Unmarshal(raw, &state))
	return state
}

func (suite *BucketTestSuite) drain(store string, n int) {
	for i := 0; i < n; i++ {
		suite.Require().NoError(suite.bucket.Take(suite.ctx, store))
	}
}

func (suite *BucketTestSuite) TestTake() {
	// Subtests share the suite clock, so each uses its own store key.
	suite.Run("Take_OnAbsentKey_ShouldStartFullAndSpendOne", func() {
		// Act
		err := suite.bucket.Take(suite.ctx, "tesco")

		// Assert
		suite.Require().NoError(err)
		state := suite.state("tesco")
		assert.InDelta(suite.T(), 9.0, state.Tokens, 1e-9)
		assert.Equal(suite.T(), suite.clock.UnixMilli(), state.LastRefillMS)
		assert.Empty(suite.T(), suite.slept)
	})

	suite.Run("Take_StateOnTheWire_ShouldUseDocumentedFieldNames", func() {
		// Arrange
		suite.Require().NoError(suite.bucket.Take(suite.ctx, "wire"))

		// Act
		raw, err := suite.kv.Get(suite.ctx, "market:bucket:wire")

		// Assert
		suite.Require().NoError(err)
		var fields map[string]interface{}
		suite.Require().NoError(json.Unmarshal(raw, &fields))
		assert.Contains(suite.T(), fields, "tokens")
		assert.Contains(suite.T(), fields, "last_refill_ms")
		assert.Len(suite.T(), fields, 2)
	})

	suite.Run("Take_WithEmptyBucket_ShouldWaitForOneTokenThenSucceed", func() {
		// Arrange: ten instant takes land the bucket on zero.
		suite.drain("empty", 10)
		suite.Require().InDelta(0.0, suite.state("empty").Tokens, 1e-9)
		suite.slept = nil

		// Act
		err := suite.bucket.Take(suite.ctx, "empty")

		// Assert: one ~100ms wait at 10 tokens/s.
		suite.Require().NoError(err)
		suite.Require().Len(suite.slept, 1)
		assert.InDelta(suite.T(), float64(100*time.Millisecond), float64(suite.slept[0]), float64(2*time.Millisecond))
	})

	suite.Run("Take_AfterIdlePeriod_ShouldRefillToCapacity", func() {
		// Arrange
		suite.drain("idle", 10)
		suite.clock = suite.clock.Add(10 * time.Second)

		// Act
		err := suite.bucket.Take(suite.ctx, "idle")

		// Assert: refill clamps at capacity before the spend.
		suite.Require().NoError(err)
		assert.InDelta(suite.T(), 9.0, suite.state("idle").Tokens, 1e-9)
	})

	suite.Run("Take_PartialRefill_ShouldAccrueFractionalTokens", func() {
		// Arrange
		suite.drain("partial", 10)
		suite.clock = suite.clock.Add(250 * time.Millisecond)
		suite.slept = nil

		// Act: 2.5 tokens accrued, spend one.
		err := suite.bucket.Take(suite.ctx, "partial")

		// Assert
		suite.Require().NoError(err)
		assert.InDelta(suite.T(), 1.5, suite.state("partial").Tokens, 1e-9)
		assert.Empty(suite.T(), suite.slept)
	})

	suite.Run("Take_PerStore_ShouldKeepIndependentBudgets", func() {
		// Arrange
		suite.drain("crowded", 10)
		suite.slept = nil

		// Act
		err := suite.bucket.Take(suite.ctx, "quiet")

		// Assert
		suite.Require().NoError(err)
		assert.Empty(suite.T(), suite.slept)
		assert.InDelta(suite.T(), 9.0, suite.state("quiet").Tokens, 1e-9)
	})

	suite.Run("Take_CorruptState_ShouldResetToFullBucket", func() {
		// Arrange
		suite.Require().NoError(suite.kv.Set(suite.ctx, "market:bucket:corrupt", []byte("not json"), 0))

		// Act
		err := suite.bucket.Take(suite.ctx, "corrupt")

		// Assert
		suite.Require().NoError(err)
		assert.InDelta(suite.T(), 9.0, suite.state("corrupt").Tokens, 1e-9)
	})
}

func (suite *BucketTestSuite) TestRateLimiting() {
	suite.Run("Take_WhenWaitWouldExceedCap_ShouldReturnRateLimited", func() {
		// Arrange: 1 token/s means an empty bucket needs a full second.
		slow := suite.newBucket(config.BucketConfig{
			Capacity:     2,
			RefillPerSec: 1,
			MaxWait:      250 * time.Millisecond,
			CASAttempts:  3,
			KeyPrefix:    "market:bucket:",
		})
		suite.Require().NoError(slow.Take(suite.ctx, "slow"))
		suite.Require().NoError(slow.Take(suite.ctx, "slow"))

		// Act
		err := slow.Take(suite.ctx, "slow")

		// Assert: fails fast without sleeping, reporting the needed wait.
		suite.Require().Error(err)
		assert.Equal(suite.T(), apperrors.CodeRateLimited, apperrors.GetCode(err))
		assert.Empty(suite.T(), suite.slept)
		var appErr *apperrors.AppError
		suite.Require().ErrorAs(err, &appErr)
		assert.InDelta(suite.T(), 1000, appErr.Metadata["bucket_wait_ms"], 5)
	})

	suite.Run("Take_WhenCASAttemptsExhaust_ShouldReturnRateLimited", func() {
		// Arrange
		contended := NewBucket(&contentionKV{suite.kv}, config.BucketConfig{
			Capacity:     10,
			RefillPerSec: 10,
			MaxWait:      250 * time.Millisecond,
			CASAttempts:  3,
			KeyPrefix:    "market:bucket:",
		}, zap.NewNop())

		// Act
		err := contended.Take(suite.ctx, "tesco")

		// Assert
		suite.Require().Error(err)
		assert.Equal(suite.T(), apperrors.CodeRateLimited, apperrors.GetCode(err))
	})

	suite.Run("Take_WithCancelledContext_ShouldStopWaiting", func() {
		// Arrange
		suite.drain("cancelled", 10)
		ctx, cancel := context.WithCancel(suite.ctx)
		cancel()

		// Act
		err := suite.bucket.Take(ctx, "cancelled")

		// Assert
		assert.ErrorIs(suite.T(), err, context.Canceled)
	})
}

func (suite *BucketTestSuite) TestObserver() {
	suite.Run("Take_WithObserver_ShouldReportWaitOnGrant", func() {
		// Arrange
		type event struct {
			store   string
			wait    time.Duration
			refused bool
		}
		var events []event
		suite.bucket.SetObserver(func(store string, wait time.Duration, refused bool) {
			events = append(events, event{store, wait, refused})
		})
		suite.drain("observed", 10)

		// Act: the bucket is empty, so this take waits ~100ms.
		suite.Require().NoError(suite.bucket.Take(suite.ctx, "observed"))

		// Assert
		suite.Require().Len(events, 11)
		last := events[10]
		assert.Equal(suite.T(), "observed", last.store)
		assert.False(suite.T(), last.refused)
		assert.InDelta(suite.T(), float64(100*time.Millisecond), float64(last.wait), float64(2*time.Millisecond))
	})

	suite.Run("Take_RefusedAtCap_ShouldReportRefusal", func() {
		// Arrange: 1 token/s, so the second take needs a full second.
		var refusals []string
		slow := suite.newBucket(config.BucketConfig{
			Capacity:     1,
			RefillPerSec: 1,
			MaxWait:      100 * time.Millisecond,
			CASAttempts:  3,
			KeyPrefix:    "market:bucket:",
		})
		slow.SetObserver(func(store string, wait time.Duration, refused bool) {
			if refused {
				refusals = append(refusals, store)
			}
		})
		suite.Require().NoError(slow.Take(suite.ctx, "obs-slow"))

		// Act
		err := slow.Take(suite.ctx, "obs-slow")

		// Assert
		suite.Require().Error(err)
		assert.Equal(suite.T(), []string{"obs-slow"}, refusals)
	})
}

func (suite *BucketTestSuite) TestConcurrency() {
	suite.Run("Take_ManyConcurrentTakers_ShouldNeverOverspend", func() {
		// Arrange: real clock, refill so slow that no token accrues during
		// the test, so exactly capacity takes can succeed.
		bucket := NewBucket(suite.kv, config.BucketConfig{
			Capacity:     5,
			RefillPerSec: 0.001,
			MaxWait:      250 * time.Millisecond,
			CASAttempts:  3,
			KeyPrefix:    "market:bucket:",
		}, zap.NewNop())

		// Act
		var wg sync.WaitGroup
		results := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- bucket.Take(context.Background(), "tesco")
			}()
		}
		wg.Wait()
		close(results)

		// Assert
		granted, limited := 0, 0
		for err := range results {
			if err == nil {
				granted++
			} else {
				suite.Require().Equal(apperrors.CodeRateLimited, apperrors.GetCode(err))
				limited++
			}
		}
		assert.Equal(suite.T(), 5, granted)
		assert.Equal(suite.T(), 15, limited)
	})
}

func TestBucketTestSuite(t *testing.T) {
	suite.Run(t, new(BucketTestSuite))
}

func BenchmarkBucketTake(b *testing.B) {
	kv := cache.NewMemoryStore(0)
	bucket := NewBucket(kv, config.BucketConfig{
		Capacity:     1e9,
		RefillPerSec: 1e9,
		MaxWait:      250 * time.Millisecond,
		CASAttempts:  3,
		KeyPrefix:    "market:bucket:",
	}, zap.NewNop())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bucket.Take(ctx, "tesco")
	}
}
