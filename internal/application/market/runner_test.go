package market

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/infrastructure/config"
	apperrors "github.com/macrocart/v2/pkg/errors"
)

type stubSearcher struct {
	mu      sync.Mutex
	results map[string][]market.SKUCandidate
	errs    map[string]error
	queries []string
}

func newStubSearcher() *stubSearcher {
	return &stubSearcher{
		results: map[string][]market.SKUCandidate{},
		errs:    map[string]error{},
	}
}

func (s *stubSearcher) Search(_ context.Context, _, query string, _ int) ([]market.SKUCandidate, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if err, ok := s.errs[query]; ok {
		return nil, 0, err
	}
	res := s.results[query]
	return res, len(res), nil
}

func (s *stubSearcher) seenQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

func sku(title string, price float64, sizeText, url string) market.SKUCandidate {
	return market.NewSKUCandidate(title, "", "", decimal.NewFromFloat(price), sizeText, url, "")
}

func chickenSpec() catalog.IngredientSpec {
	return catalog.IngredientSpec{
		CID:         "chicken_breast",
		DisplayName: "Chicken Breast",
		CoreTerms:   []string{"chicken", "breast", "fillet"},
		PackSizes:   []float64{300, 650, 1000},
	}
}

type RunnerTestSuite struct {
	suite.Suite
	ctx      context.Context
	searcher *stubSearcher
}

func (suite *RunnerTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.searcher = newStubSearcher()
}

func (suite *RunnerTestSuite) newRunner() *Runner {
	cfg := &config.Config{Market: config.MarketConfig{Workers: 2}}
	return NewRunner(cfg, suite.searcher, zap.NewNop())
}

func (suite *RunnerTestSuite) TestLadder() {
	suite.Run("PerfectTightHit_ShouldSkipWiderRungs", func() {
		// Arrange
		suite.searcher.results["chicken breast fillet"] = []market.SKUCandidate{
			sku("Chicken Breast Fillets 650g", 3.50, "650g", "https://shop/p/1"),
			sku("British Chicken Breast Fillet 1kg", 5.80, "1kg", "https://shop/p/2"),
		}
		runner := suite.newRunner()

		// Act
		res := runner.searchOne(suite.ctx, "metro", Task{Spec: chickenSpec(), RequiredG: 650})

		// Assert
		suite.Require().NotNil(res.ChosenSKU)
		assert.Equal(suite.T(), []string{"chicken breast fillet"}, suite.searcher.seenQueries())
		assert.Equal(suite.T(), "Chicken Breast Fillets 650g", res.ChosenSKU.Title)
		assert.InDelta(suite.T(), 1.0, res.Score, 0.001)
		suite.Require().Len(res.Debug.Attempts, 1)
		assert.Equal(suite.T(), 2, res.Debug.Attempts[0].Accepted)
		assert.NoError(suite.T(), res.Err)
	})

	suite.Run("WeakTightHit_ShouldWalkTheWholeLadder", func() {
		// Arrange: the tight rung only yields a one-term match, so the
		// runner keeps descending and the normal rung wins on price.
		suite.searcher = newStubSearcher()
		suite.searcher.results["chicken breast fillet"] = []market.SKUCandidate{
			sku("Chicken 500g", 3.00, "500g", "https://shop/p/10"),
		}
		suite.searcher.results["chicken breast"] = []market.SKUCandidate{
			sku("Chicken Breast Fillets 650g", 3.20, "650g", "https://shop/p/11"),
		}
		runner := suite.newRunner()

		// Act
		res := runner.searchOne(suite.ctx, "metro", Task{Spec: chickenSpec(), RequiredG: 650})

		// Assert
		assert.Equal(suite.T(),
			[]string{"chicken breast fillet", "chicken breast", "chicken"},
			suite.searcher.seenQueries())
		suite.Require().NotNil(res.ChosenSKU)
		assert.Equal(suite.T(), "Chicken Breast Fillets 650g", res.ChosenSKU.Title)
		assert.InDelta(suite.T(), 1.0, res.Score, 0.001)
	})

	suite.Run("RungError_ShouldContinueToTheNextRung", func() {
		// Arrange
		suite.searcher = newStubSearcher()
		suite.searcher.errs["chicken breast fillet"] = apperrors.NewUpstreamError("market", 502, nil)
		suite.searcher.results["chicken breast"] = []market.SKUCandidate{
			sku("Chicken Breast Fillets 650g", 3.20, "650g", "https://shop/p/20"),
		}
		runner := suite.newRunner()

		// Act
		res := runner.searchOne(suite.ctx, "metro", Task{Spec: chickenSpec(), RequiredG: 650})

		// Assert
		suite.Require().NotNil(res.ChosenSKU)
		assert.NoError(suite.T(), res.Err)
		suite.Require().Len(res.Debug.Attempts, 3)
		assert.NotEmpty(suite.T(), res.Debug.Attempts[0].Error)
		assert.Empty(suite.T(), res.Debug.Attempts[1].Error)
	})

	suite.Run("EveryRungFailing_ShouldSurfaceTheError", func() {
		// Arrange
		suite.searcher = newStubSearcher()
		suite.searcher.errs["chicken breast fillet"] = apperrors.NewUpstreamError("market", 503, nil)
		suite.searcher.errs["chicken breast"] = apperrors.NewUpstreamError("market", 503, nil)
		suite.searcher.errs["chicken"] = apperrors.NewUpstreamTimeoutError("market", nil)
		runner := suite.newRunner()

		// Act
		res := runner.searchOne(suite.ctx, "metro", Task{Spec: chickenSpec(), RequiredG: 650})

		// Assert
		assert.Nil(suite.T(), res.ChosenSKU)
		suite.Require().Error(res.Err)
		assert.Equal(suite.T(), apperrors.CodeUpstreamTimeout, apperrors.GetCode(res.Err))
		suite.Require().Len(res.Debug.Attempts, 3)
		for _, attempt := range res.Debug.Attempts {
			assert.NotEmpty(suite.T(), attempt.Error)
		}
	})

	suite.Run("DuplicateURLAcrossRungs_ShouldCountOnce", func() {
		// Arrange: the same product comes back on two rungs.
		suite.searcher = newStubSearcher()
		repeat := sku("Chicken 500g", 3.00, "500g", "https://shop/p/30")
		suite.searcher.results["chicken breast fillet"] = []market.SKUCandidate{repeat}
		suite.searcher.results["chicken breast"] = []market.SKUCandidate{repeat}
		runner := suite.newRunner()

		// Act
		res := runner.searchOne(suite.ctx, "metro", Task{Spec: chickenSpec(), RequiredG: 650})

		// Assert
		suite.Require().NotNil(res.ChosenSKU)
		suite.Require().Len(res.Debug.Attempts, 3)
		assert.Equal(suite.T(), 1, res.Debug.Attempts[0].Accepted)
		assert.Equal(suite.T(), 0, res.Debug.Attempts[1].Accepted)
	})

	suite.Run("VettedOutCandidates_ShouldLandInTheTrace", func() {
		// Arrange
		suite.searcher = newStubSearcher()
		suite.searcher.results["chicken breast fillet"] = []market.SKUCandidate{
			sku("Chicken Flavour Dog Food 2kg", 4.00, "2kg", "https://shop/p/40"),
			sku("Chicken Breast Fillets 650g", 3.50, "650g", "https://shop/p/41"),
		}
		runner := suite.newRunner()

		// Act
		res := runner.searchOne(suite.ctx, "metro", Task{Spec: chickenSpec(), RequiredG: 650})

		// Assert
		suite.Require().NotNil(res.ChosenSKU)
		assert.Equal(suite.T(), "Chicken Breast Fillets 650g", res.ChosenSKU.Title)
		suite.Require().Len(res.Debug.Rejected, 1)
		assert.Equal(suite.T(), market.ReasonBanned, res.Debug.Rejected[0].Reason)
	})

	suite.Run("PriceOutlier_ShouldBeDroppedBeforeSelection", func() {
		// Arrange: seven sanely priced fillets and one at ten times the
		// going rate. The z-score guard needs this many samples to call it.
		suite.searcher = newStubSearcher()
		prices := []float64{3.25, 3.32, 3.38, 3.45, 3.51, 3.58, 3.64}
		candidates := make([]market.SKUCandidate, 0, 8)
		for i, p := range prices {
			candidates = append(candidates, sku(
				"Chicken Breast Fillets 650g", p, "650g",
				fmt.Sprintf("https://shop/p/5%d", i)))
		}
		candidates = append(candidates,
			sku("Chicken Breast Fillets Deluxe 650g", 32.50, "650g", "https://shop/p/59"))
		suite.searcher.results["chicken breast fillet"] = candidates
		runner := suite.newRunner()

		// Act
		res := runner.searchOne(suite.ctx, "metro", Task{Spec: chickenSpec(), RequiredG: 650})

		// Assert
		suite.Require().NotNil(res.ChosenSKU)
		assert.Equal(suite.T(), "https://shop/p/50", res.ChosenSKU.URL)
		dropped := false
		for _, rej := range res.Debug.Rejected {
			if rej.Reason == market.ReasonPriceOutlier {
				dropped = true
				assert.Equal(suite.T(), "Chicken Breast Fillets Deluxe 650g", rej.Title)
			}
		}
		assert.True(suite.T(), dropped)
	})
}

func (suite *RunnerTestSuite) TestRunPool() {
	suite.Run("MixedOutcomes_ShouldCompleteIndependently", func() {
		// Arrange: three ingredients, one of which cannot be fetched at all.
		suite.searcher = newStubSearcher()
		suite.searcher.results["chicken breast fillet"] = []market.SKUCandidate{
			sku("Chicken Breast Fillets 650g", 3.50, "650g", "https://shop/p/60"),
		}
		suite.searcher.results["basmati rice"] = []market.SKUCandidate{
			sku("Basmati Rice 1kg", 2.40, "1kg", "https://shop/p/61"),
		}
		for _, q := range []string{"porridge oats", "porridge", "oats"} {
			suite.searcher.errs[q] = apperrors.NewNetworkError("market", nil)
		}
		runner := suite.newRunner()

		tasks := []Task{
			{Spec: chickenSpec(), RequiredG: 650},
			{Spec: catalog.IngredientSpec{
				CID:       "basmati_rice",
				CoreTerms: []string{"basmati", "rice"},
				PackSizes: []float64{500, 1000},
				Pantry:    true,
			}, RequiredG: 900},
			{Spec: catalog.IngredientSpec{
				CID:       "oats",
				CoreTerms: []string{"porridge", "oats"},
				PackSizes: []float64{500, 1000},
				Pantry:    true,
			}, RequiredG: 400},
		}

		var mu sync.Mutex
		var completions []catalog.CID

		// Act
		out := runner.Run(suite.ctx, "metro", tasks, func(res SearchResult) {
			mu.Lock()
			completions = append(completions, res.CID)
			mu.Unlock()
		})

		// Assert
		suite.Require().Len(out, 3)
		assert.Len(suite.T(), completions, 3)
		assert.NotNil(suite.T(), out["chicken_breast"].ChosenSKU)
		assert.NotNil(suite.T(), out["basmati_rice"].ChosenSKU)
		assert.Nil(suite.T(), out["oats"].ChosenSKU)
		assert.Error(suite.T(), out["oats"].Err)
	})

	suite.Run("NoTasks_ShouldReturnEmptyMap", func() {
		// Arrange
		runner := suite.newRunner()

		// Act
		out := runner.Run(suite.ctx, "metro", nil, nil)

		// Assert
		assert.Empty(suite.T(), out)
	})
}

func TestRunnerTestSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}

func BenchmarkSearchOne(b *testing.B) {
	searcher := newStubSearcher()
	candidates := make([]market.SKUCandidate, 0, 20)
	for i := 0; i < 20; i++ {
		candidates = append(candidates, sku(
			"Chicken Breast Fillets 650g", 3.20+float64(i)*0.05, "650g",
			fmt.Sprintf("https://shop/p/b%d", i)))
	}
	searcher.results["chicken breast fillet"] = candidates
	runner := NewRunner(&config.Config{}, searcher, zap.NewNop())
	task := Task{Spec: chickenSpec(), RequiredG: 650}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runner.searchOne(context.Background(), "metro", task)
	}
}
