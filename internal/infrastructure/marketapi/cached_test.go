package marketapi

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/infrastructure/cache"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// countingSearcher records calls and plays back canned results.
type countingSearcher struct {
	mu      sync.Mutex
	calls   int
	results []market.SKUCandidate
	total   int
	err     error
}

func (s *countingSearcher) Search(context.Context, string, string, int) ([]market.SKUCandidate, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.results, s.total, nil
}

func (s *countingSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type CachedSearcherTestSuite struct {
	suite.Suite
	ctx      context.Context
	kv       *cache.MemoryStore
	upstream *countingSearcher
	cached   *CachedSearcher
}

func (suite *CachedSearcherTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.kv = cache.NewMemoryStore(0)
	swr := cache.NewSWR(suite.kv, config.CacheConfig{
		FreshTTL:         time.Hour,
		HardTTL:          3 * time.Hour,
		RefreshMarkerTTL: 30 * time.Second,
	}, zap.NewNop())
	suite.upstream = &countingSearcher{
		results: []market.SKUCandidate{
			market.NewSKUCandidate("Chicken Breast Fillets", "Fresh Co", "meat",
				decimal.NewFromFloat(3.5), "500g", "https://mart.example/p/1", ""),
		},
		total: 1,
	}
	suite.cached = NewCachedSearcher(suite.upstream, swr, "cache:price:", zap.NewNop())
}

func (suite *CachedSearcherTestSuite) TestCaching() {
	suite.Run("Search_SecondCall_ShouldServeFromCache", func() {
		// Act
		first, total1, err1 := suite.cached.Search(suite.ctx, "tesco", "chicken breast", 1)
		second, total2, err2 := suite.cached.Search(suite.ctx, "tesco", "chicken breast", 1)

		// Assert
		suite.Require().NoError(err1)
		suite.Require().NoError(err2)
		assert.Equal(suite.T(), 1, suite.upstream.callCount())
		assert.Equal(suite.T(), total1, total2)
		suite.Require().Len(second, 1)
		assert.Equal(suite.T(), first[0].Title, second[0].Title)
		// Money fields must survive the JSON round trip exactly.
		assert.True(suite.T(), second[0].UnitPrice100.Equal(decimal.NewFromFloat(0.7)),
			"unit price drifted through the cache: %s", second[0].UnitPrice100)
	})

	suite.Run("Search_DistinctPages_ShouldUseDistinctKeys", func() {
		// Arrange
		suite.upstream.calls = 0

		// Act
		_, _, err1 := suite.cached.Search(suite.ctx, "tesco", "rice", 1)
		_, _, err2 := suite.cached.Search(suite.ctx, "tesco", "rice", 2)

		// Assert
		suite.Require().NoError(err1)
		suite.Require().NoError(err2)
		assert.Equal(suite.T(), 2, suite.upstream.callCount())

		for _, key := range []string{"cache:price:tesco:rice:1", "cache:price:tesco:rice:2"} {
			exists, err := suite.kv.Exists(suite.ctx, key)
			suite.Require().NoError(err)
			assert.True(suite.T(), exists, "expected %s to be cached", key)
		}
	})

	suite.Run("Search_UpstreamFailsOnMiss_ShouldPropagateError", func() {
		// Arrange
		suite.upstream.err = errors.New("search down")

		// Act
		_, _, err := suite.cached.Search(suite.ctx, "tesco", "pasta", 1)

		// Assert: nothing cached on failure.
		assert.Error(suite.T(), err)
		exists, existsErr := suite.kv.Exists(suite.ctx, "cache:price:tesco:pasta:1")
		suite.Require().NoError(existsErr)
		assert.False(suite.T(), exists)
	})

	suite.Run("Search_PoisonedEntry_ShouldRefetchAndOverwrite", func() {
		// Arrange: a valid envelope whose payload is not a search page.
		suite.upstream.err = nil
		suite.upstream.calls = 0
		env := cache.Envelope{
			Payload:    json.RawMessage(`"scalar nonsense"`),
			StoredAtMS: time.Now().UnixMilli(),
		}
		buf, err := json.Marshal(env)
		suite.Require().NoError(err)
		suite.Require().NoError(suite.kv.Set(suite.ctx, "cache:price:tesco:oats:1", buf, 0))

		// Act
		results, total, err := suite.cached.Search(suite.ctx, "tesco", "oats", 1)
		again, _, errAgain := suite.cached.Search(suite.ctx, "tesco", "oats", 1)

		// Assert: upstream consulted once to repair, then the cache serves.
		suite.Require().NoError(err)
		suite.Require().NoError(errAgain)
		assert.Equal(suite.T(), 1, total)
		suite.Require().Len(results, 1)
		assert.Equal(suite.T(), results[0].Title, again[0].Title)
		assert.Equal(suite.T(), 1, suite.upstream.callCount())
	})
}

func TestCachedSearcherTestSuite(t *testing.T) {
	suite.Run(t, new(CachedSearcherTestSuite))
}
