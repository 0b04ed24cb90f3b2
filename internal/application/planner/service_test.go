package planner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	appmarket "github.com/macrocart/v2/internal/application/market"
	appnutrition "github.com/macrocart/v2/internal/application/nutrition"
	"github.com/macrocart/v2/internal/application/solver"
	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/domain/plan"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/ports/inbound"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"github.com/macrocart/v2/pkg/logger"
)

// stubSketcher plays the sketch model. It records the request it saw so
// tests can check what the orchestrator asked for.
type stubSketcher struct {
	mu       sync.Mutex
	sketch   *outbound.MealSketch
	err      error
	panicMsg string
	calls    int
	lastReq  outbound.SketchRequest
}

func (s *stubSketcher) Sketch(_ context.Context, req outbound.SketchRequest) (*outbound.MealSketch, error) {
	s.mu.Lock()
	s.calls++
	s.lastReq = req
	sketch, err, panicMsg := s.sketch, s.err, s.panicMsg
	s.mu.Unlock()
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return nil, err
	}
	return sketch, nil
}

func (s *stubSketcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubSketcher) request() outbound.SketchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

type stubDescriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (s *stubDescriber) Describe(_ context.Context, _ outbound.DescribeRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *stubDescriber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubSearcher answers store searches from a fixed query-to-candidates map.
// With failAll set every rung errors, which is the transport-down scenario.
type stubSearcher struct {
	mu        sync.Mutex
	results   map[string][]market.SKUCandidate
	failAll   error
	lastStore string
}

func newStubSearcher() *stubSearcher {
	return &stubSearcher{results: map[string][]market.SKUCandidate{}}
}

func (s *stubSearcher) Search(_ context.Context, store, query string, _ int) ([]market.SKUCandidate, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStore = store
	if s.failAll != nil {
		return nil, 0, s.failAll
	}
	res := s.results[query]
	return res, len(res), nil
}

func (s *stubSearcher) store() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStore
}

// The canonical store and external nutrition providers never answer in
// these tests; registry ingredients resolve from the hot table before any
// of them is consulted.
type missCanonical struct{}

func (missCanonical) FindByKey(context.Context, string) (*nutrition.Row, error) { return nil, nil }
func (missCanonical) FindNearest(context.Context, string, int) (*nutrition.Row, string, error) {
	return nil, "", nil
}
func (missCanonical) Insert(context.Context, string, nutrition.Row) (bool, error) {
	return false, nil
}
func (missCanonical) Count(context.Context) (int64, error) { return 0, nil }

type missBarcode struct{}

func (missBarcode) FetchByBarcode(_ context.Context, barcode string) (*nutrition.Row, error) {
	return nil, apperrors.NewNutritionNotFoundError(barcode)
}

type missFreeText struct{}

func (missFreeText) SearchFood(_ context.Context, query string) (*nutrition.Row, error) {
	return nil, apperrors.NewNutritionNotFoundError(query)
}

// fixture bundles the service under test with its stubbed edges.
type fixture struct {
	cfg       *config.Config
	sketcher  *stubSketcher
	describer *stubDescriber
	searcher  *stubSearcher
	svc       *Service
}

func newFixture(cfg *config.Config) *fixture {
	f := &fixture{
		cfg:       cfg,
		sketcher:  &stubSketcher{sketch: balancedSketch(1)},
		describer: &stubDescriber{text: "A hearty bowl that eats like a reward."},
		searcher:  newStubSearcher(),
	}
	nop := zap.NewNop()
	runner := appmarket.NewRunner(cfg, f.searcher, nop)
	resolver := appnutrition.NewResolver(cfg, missCanonical{}, missBarcode{}, missFreeText{}, nop)
	f.svc = NewService(cfg, f.sketcher, f.describer, runner, resolver,
		solver.New(cfg, nop), solver.NewVerifier(nop), nop)
	return f
}

// testConfig widens the acceptance bands one notch beyond the shipped
// defaults so integer gram rounding cannot flip a satisfied solve.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Market.DefaultStore = "metro"
	cfg.Contract.KcalTolerancePct = 0.05
	cfg.Contract.MacroTolerancePct = 0.10
	return cfg
}

// planCommand is the reference profile: male, 30y, 180cm, 80kg, moderate,
// maintain. Mifflin-St Jeor puts the daily contract at 2608 kcal.
func planCommand() inbound.GeneratePlanCommand {
	return inbound.GeneratePlanCommand{
		HeightCm:        180,
		WeightKg:        80,
		Age:             30,
		Sex:             contract.SexMale,
		Activity:        contract.ActivityModerate,
		Goal:            contract.GoalMaintain,
		Days:            1,
		EatingOccasions: 3,
		Store:           "metro",
	}
}

// balancedItems mirrors the chicken-rice-oil-broccoli bowl whose macro
// ratio sits within a few percent of the default 30/20/50 split, so a
// near-uniform scale satisfies every occasion.
func balancedItems() []outbound.SketchItem {
	return []outbound.SketchItem{
		{Name: "Chicken Breast", QtyValue: 200, QtyUnit: "g"},
		{Name: "White Rice", QtyValue: 100, QtyUnit: "g"},
		{Name: "Olive Oil", QtyValue: 10, QtyUnit: "g"},
		{Name: "Broccoli", QtyValue: 150, QtyUnit: "g"},
	}
}

func balancedSketch(days int) *outbound.MealSketch {
	sketch := &outbound.MealSketch{}
	for d := 1; d <= days; d++ {
		sketch.Days = append(sketch.Days, outbound.SketchDay{
			Day: d,
			Meals: []outbound.SketchMeal{
				{Type: "breakfast", Title: "Chicken rice bowl", Items: balancedItems()},
				{Type: "lunch", Title: "Grilled chicken with rice", Items: balancedItems()},
				{Type: "dinner", Title: "Chicken and greens", Items: balancedItems()},
			},
		})
	}
	return sketch
}

// vegetableSketch cannot reach any sane calorie target even at maximum
// scale, which drives the solve into the min-gram fallback.
func vegetableSketch() *outbound.MealSketch {
	meal := func(mealType, title string) outbound.SketchMeal {
		return outbound.SketchMeal{Type: mealType, Title: title, Items: []outbound.SketchItem{
			{Name: "Broccoli", QtyValue: 200, QtyUnit: "g"},
		}}
	}
	return &outbound.MealSketch{Days: []outbound.SketchDay{{
		Day:   1,
		Meals: []outbound.SketchMeal{meal("breakfast", "Greens"), meal("lunch", "More greens"), meal("dinner", "Still greens")},
	}}}
}

func chickenSKU() market.SKUCandidate {
	return market.NewSKUCandidate(
		"Fresh Chicken Breast Fillets", "", "Meat & Poultry",
		decimal.NewFromFloat(3.50), "500g",
		"https://metro.example/p/chicken-breast-500g", "5000112637922")
}

func hasMessage(entries []logger.Entry, message string) bool {
	for _, e := range entries {
		if e.Message == message {
			return true
		}
	}
	return false
}

func entryPhases(entries []logger.Entry) map[string]bool {
	phases := map[string]bool{}
	for _, e := range entries {
		data, ok := e.Data.(map[string]interface{})
		if !ok {
			continue
		}
		if phase, ok := data["phase"].(string); ok {
			phases[phase] = true
		}
	}
	return phases
}

func asAppError(t *testing.T, err error) *apperrors.AppError {
	t.Helper()
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok, "expected *AppError, got %T", err)
	return appErr
}

// PlannerServiceTestSuite exercises the full pipeline against stubbed
// edges: the sketch model, the store search and the nutrition providers.
type PlannerServiceTestSuite struct {
	suite.Suite
	ctx context.Context
}

func (suite *PlannerServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
}

// TestGeneratePlan tests the successful pipeline end to end
func (suite *PlannerServiceTestSuite) TestGeneratePlan() {
	suite.Run("BalancedSketch_ShouldSatisfyContract", func() {
		// Arrange
		f := newFixture(testConfig())

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), resp)

		assert.InDelta(suite.T(), 2608, resp.Contract.Kcal, 0.5)
		assert.InDelta(suite.T(), 196, resp.Contract.ProteinG, 0.5)
		assert.InDelta(suite.T(), 58, resp.Contract.FatG, 0.5)
		assert.InDelta(suite.T(), 326, resp.Contract.CarbG, 0.5)

		require.Len(suite.T(), resp.MealPlan, 1)
		require.Len(suite.T(), resp.MealPlan[0].Meals, 3)
		for _, meal := range resp.MealPlan[0].Meals {
			require.Len(suite.T(), meal.Items, 4)
			for _, item := range meal.Items {
				assert.Positive(suite.T(), item.Grams)
				assert.NotEmpty(suite.T(), item.DisplayName)
			}
			assert.Positive(suite.T(), meal.FinalMacros.Kcal)
		}

		assert.True(suite.T(), resp.ContractSatisfied.OK)
		assert.Empty(suite.T(), resp.ContractSatisfied.Violations)
		assert.InDelta(suite.T(), resp.Contract.Kcal, resp.Ledger.Kcal, resp.Contract.Kcal*0.05)
		assert.InDelta(suite.T(), resp.Contract.ProteinG, resp.Ledger.Protein, resp.Contract.ProteinG*0.10)

		require.Len(suite.T(), resp.Results, 4)
		for cid, res := range resp.Results {
			assert.Equal(suite.T(), market.OutcomeCanonicalFallback, res.Outcome, string(cid))
			assert.True(suite.T(), res.HasNutrition())
			assert.InDelta(suite.T(), 0.95, res.Confidence, 1e-9)
			assert.Nil(suite.T(), res.ChosenSKU)
		}

		require.Len(suite.T(), resp.UniqueIngredients, 4)
		wantOrder := []catalog.CID{"broccoli", "chicken_breast", "olive_oil", "rice_white"}
		for i, ing := range resp.UniqueIngredients {
			assert.Equal(suite.T(), wantOrder[i], ing.CID)
			assert.Positive(suite.T(), ing.TotalGrams)
			assert.Regexp(suite.T(), `^\d+ g$`, ing.QuantityUnits)
		}

		require.NotEmpty(suite.T(), resp.Logs)
		for _, message := range []string{
			"Contract built", "Blueprint validated", "Market run complete",
			"Nutrition resolution complete", "Plan solved", "Ledger verified", "Plan assembled",
		} {
			assert.True(suite.T(), hasMessage(resp.Logs, message), message)
		}

		req := f.sketcher.request()
		assert.Equal(suite.T(), 1, req.Days)
		assert.Equal(suite.T(), 3, req.EatingOccasions)
		assert.NotEmpty(suite.T(), req.KnownIngredients)
		assert.InDelta(suite.T(), 2608, req.Contract.Kcal, 0.5)
	})

	suite.Run("ChosenSKU_ShouldReportDiscovery", func() {
		// Arrange: the tight chicken rung returns one acceptable product
		f := newFixture(testConfig())
		f.searcher.results["chicken breast fillet"] = []market.SKUCandidate{chickenSKU()}

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert
		require.NoError(suite.T(), err)
		chicken := resp.Results[catalog.CID("chicken_breast")]
		assert.Equal(suite.T(), market.OutcomeDiscovery, chicken.Outcome)
		require.NotNil(suite.T(), chicken.ChosenSKU)
		assert.Equal(suite.T(), "Fresh Chicken Breast Fillets", chicken.ChosenSKU.Title)
		assert.Equal(suite.T(), nutrition.SourceHotTable, chicken.Nutrition.Source)

		rice := resp.Results[catalog.CID("rice_white")]
		assert.Equal(suite.T(), market.OutcomeCanonicalFallback, rice.Outcome)

		var chickenLine *inbound.UniqueIngredientDTO
		for i := range resp.UniqueIngredients {
			if resp.UniqueIngredients[i].CID == "chicken_breast" {
				chickenLine = &resp.UniqueIngredients[i]
			}
		}
		require.NotNil(suite.T(), chickenLine)
		assert.Regexp(suite.T(), `^[1-3] x 500 g$`, chickenLine.QuantityUnits)

		assert.True(suite.T(), hasMessage(resp.Logs, "Ingredient sourced"))
	})

	suite.Run("SearchErrors_ShouldFallBackToCanonical", func() {
		// Arrange: every store call dies at the transport
		f := newFixture(testConfig())
		f.searcher.failAll = apperrors.NewNetworkError("metro", errors.New("connection reset"))

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert: the run survives on hot-table nutrition
		require.NoError(suite.T(), err)
		assert.True(suite.T(), resp.ContractSatisfied.OK)
		for _, res := range resp.Results {
			assert.Equal(suite.T(), market.OutcomeCanonicalFallback, res.Outcome)
			assert.Nil(suite.T(), res.ChosenSKU)
			require.NotEmpty(suite.T(), res.Debug.Attempts)
			assert.NotEmpty(suite.T(), res.Debug.Attempts[0].Error)
		}
		assert.True(suite.T(), hasMessage(resp.Logs, "Ingredient search failed"))
	})

	suite.Run("UnmappedIngredient_ShouldWarnNotFail", func() {
		// Arrange: one ingredient no registry entry will ever match
		f := newFixture(testConfig())
		sketch := balancedSketch(1)
		sketch.Days[0].Meals[0].Items = append(sketch.Days[0].Meals[0].Items,
			outbound.SketchItem{Name: "Plutonium Rod", QtyValue: 50, QtyUnit: "g"})
		f.sketcher.sketch = sketch

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert: warned, excluded from the solve, absent from results
		require.NoError(suite.T(), err)
		assert.Len(suite.T(), resp.Results, 4)
		assert.Len(suite.T(), resp.MealPlan[0].Meals[0].Items, 4)
		assert.True(suite.T(), hasMessage(resp.Logs, "Ingredient has no canonical entry"))
	})

	suite.Run("EmptyStore_ShouldUseConfiguredDefault", func() {
		// Arrange
		f := newFixture(testConfig())
		cmd := planCommand()
		cmd.Store = ""

		// Act
		_, err := f.svc.GeneratePlan(suite.ctx, cmd)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "metro", f.searcher.store())
	})

	suite.Run("ContractTunables_ShouldOverrideDefaults", func() {
		// Arrange: a 10% cut instead of the default 15%
		cfg := testConfig()
		cfg.Contract.CutModeratePct = 0.10
		f := newFixture(cfg)
		cmd := planCommand()
		cmd.Goal = contract.GoalCutModerate

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, cmd)

		// Assert: 2608 TDEE kcal cut by 10%, not 15%
		require.NoError(suite.T(), err)
		assert.InDelta(suite.T(), 2347, resp.Contract.Kcal, 0.5)
		assert.InDelta(suite.T(), 176, resp.Contract.ProteinG, 0.5)
	})
}

// TestGeneratePlan_Descriptions tests the optional description phase
func (suite *PlannerServiceTestSuite) TestGeneratePlan_Descriptions() {
	suite.Run("Enabled_ShouldAttachBlurbToEveryMeal", func() {
		// Arrange
		cfg := testConfig()
		cfg.Planner.EnableDescriptions = true
		f := newFixture(cfg)

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert
		require.NoError(suite.T(), err)
		for _, meal := range resp.MealPlan[0].Meals {
			assert.Equal(suite.T(), "A hearty bowl that eats like a reward.", meal.Description)
		}
		assert.Equal(suite.T(), 3, f.describer.callCount())
	})

	suite.Run("DescriberFailure_ShouldDegradeToEmpty", func() {
		// Arrange
		cfg := testConfig()
		cfg.Planner.EnableDescriptions = true
		f := newFixture(cfg)
		f.describer.err = errors.New("model overloaded")

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert: descriptions degrade, the plan does not
		require.NoError(suite.T(), err)
		for _, meal := range resp.MealPlan[0].Meals {
			assert.Empty(suite.T(), meal.Description)
		}
		assert.True(suite.T(), hasMessage(resp.Logs, "Meal description failed"))
	})

	suite.Run("Disabled_ShouldNeverCallDescriber", func() {
		// Arrange
		f := newFixture(testConfig())

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert
		require.NoError(suite.T(), err)
		assert.Empty(suite.T(), resp.MealPlan[0].Meals[0].Description)
		assert.Zero(suite.T(), f.describer.callCount())
	})
}

// TestGeneratePlan_BlueprintInvalid tests structural sketch rejection
func (suite *PlannerServiceTestSuite) TestGeneratePlan_BlueprintInvalid() {
	run := func(sketch *outbound.MealSketch, cmd inbound.GeneratePlanCommand) error {
		f := newFixture(testConfig())
		f.sketcher.sketch = sketch
		_, err := f.svc.GeneratePlan(suite.ctx, cmd)
		return err
	}

	suite.Run("WrongDayCount_ShouldFail", func() {
		cmd := planCommand()
		cmd.Days = 2

		err := run(balancedSketch(1), cmd)

		require.Error(suite.T(), err)
		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeBlueprintInvalid, appErr.Code)
		assert.Equal(suite.T(), "blueprint", appErr.Metadata["phase"])
		assert.Equal(suite.T(), "days", appErr.Metadata["path"])
		assert.Contains(suite.T(), appErr.Details, "expected 2 days")

		logs, ok := appErr.Metadata["logs"].([]logger.Entry)
		require.True(suite.T(), ok)
		assert.True(suite.T(), hasMessage(logs, "Pipeline phase failed"))
	})

	suite.Run("UnknownMealType_ShouldPinpointPath", func() {
		sketch := balancedSketch(1)
		sketch.Days[0].Meals[0].Type = "brunch"

		err := run(sketch, planCommand())

		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeBlueprintInvalid, appErr.Code)
		assert.Equal(suite.T(), "days[0].meals[0].type", appErr.Metadata["path"])
	})

	suite.Run("ModelEmittedBooster_ShouldBeRejected", func() {
		sketch := balancedSketch(1)
		sketch.Days[0].Meals[1].Type = "booster"

		err := run(sketch, planCommand())

		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeBlueprintInvalid, appErr.Code)
		assert.Equal(suite.T(), "days[0].meals[1].type", appErr.Metadata["path"])
	})

	suite.Run("MissingOccasion_ShouldNameIt", func() {
		sketch := balancedSketch(1)
		sketch.Days[0].Meals = sketch.Days[0].Meals[:2]

		err := run(sketch, planCommand())

		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeBlueprintInvalid, appErr.Code)
		assert.Equal(suite.T(), "days[0].meals", appErr.Metadata["path"])
		assert.Contains(suite.T(), appErr.Details, `missing occasion "dinner"`)
	})

	suite.Run("EmptyItems_ShouldFail", func() {
		sketch := balancedSketch(1)
		sketch.Days[0].Meals[2].Items = nil

		err := run(sketch, planCommand())

		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeBlueprintInvalid, appErr.Code)
		assert.Equal(suite.T(), "days[0].meals[2].items", appErr.Metadata["path"])
	})

	suite.Run("NonPositiveQuantity_ShouldFail", func() {
		sketch := balancedSketch(1)
		sketch.Days[0].Meals[0].Items[0].QtyValue = 0

		err := run(sketch, planCommand())

		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeBlueprintInvalid, appErr.Code)
		assert.Equal(suite.T(), "days[0].meals[0].items[0].qty_value", appErr.Metadata["path"])
	})
}

// TestGeneratePlan_Failures tests the remaining failure classifications
func (suite *PlannerServiceTestSuite) TestGeneratePlan_Failures() {
	suite.Run("InvalidProfile_ShouldFailBeforeSketching", func() {
		// Arrange
		f := newFixture(testConfig())
		cmd := planCommand()
		cmd.Age = 9

		// Act
		_, err := f.svc.GeneratePlan(suite.ctx, cmd)

		// Assert
		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeValidationFailed, appErr.Code)
		assert.Equal(suite.T(), "contract", appErr.Metadata["phase"])
		assert.Zero(suite.T(), f.sketcher.callCount())
	})

	suite.Run("MissingStoreWithoutDefault_ShouldFailValidation", func() {
		// Arrange
		cfg := testConfig()
		cfg.Market.DefaultStore = ""
		f := newFixture(cfg)
		cmd := planCommand()
		cmd.Store = ""

		// Act
		_, err := f.svc.GeneratePlan(suite.ctx, cmd)

		// Assert
		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeValidationFailed, appErr.Code)
		assert.Contains(suite.T(), appErr.Details, "store")
	})

	suite.Run("SketcherError_ShouldCarrySketchPhase", func() {
		// Arrange
		f := newFixture(testConfig())
		f.sketcher.err = apperrors.NewUpstreamTimeoutError("llm", errors.New("deadline"))

		// Act
		_, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert
		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeUpstreamTimeout, appErr.Code)
		assert.Equal(suite.T(), "sketch", appErr.Metadata["phase"])
	})

	suite.Run("SketcherPanic_ShouldMapToUncaught", func() {
		// Arrange
		f := newFixture(testConfig())
		f.sketcher.panicMsg = "sketch exploded"

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert
		assert.Nil(suite.T(), resp)
		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeUncaught, appErr.Code)
		assert.Equal(suite.T(), "sketch", appErr.Metadata["phase"])
	})

	suite.Run("CancelledContext_ShouldStopAtPhaseBoundary", func() {
		// Arrange: the stubs ignore ctx, so the first checkpoint catches it
		f := newFixture(testConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// Act
		_, err := f.svc.GeneratePlan(ctx, planCommand())

		// Assert
		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeUncaught, appErr.Code)
		assert.Equal(suite.T(), "blueprint", appErr.Metadata["phase"])
		assert.Equal(suite.T(), context.Canceled, appErr.Cause)
	})

	suite.Run("VegetablesOnly_ShouldReportInfeasible", func() {
		// Arrange: broccoli alone cannot reach 2608 kcal at any scale
		f := newFixture(testConfig())
		f.sketcher.sketch = vegetableSketch()

		// Act
		resp, err := f.svc.GeneratePlan(suite.ctx, planCommand())

		// Assert
		assert.Nil(suite.T(), resp)
		appErr := asAppError(suite.T(), err)
		assert.Equal(suite.T(), apperrors.CodeMacroInfeasible, appErr.Code)
		assert.Equal(suite.T(), "ledger", appErr.Metadata["phase"])
		assert.Equal(suite.T(), 1, appErr.Metadata["worst_day"])

		ledger, ok := appErr.Metadata["ledger"].(nutrition.Macros)
		require.True(suite.T(), ok)
		assert.Less(suite.T(), ledger.Kcal, 2608.0)

		c, ok := appErr.Metadata["contract"].(contract.MacroContract)
		require.True(suite.T(), ok)
		assert.InDelta(suite.T(), 2608, c.Kcal, 0.5)

		payload := FailurePayload(err)
		assert.Equal(suite.T(), "MACRO_INFEASIBLE", payload.Error)
		assert.Contains(suite.T(), payload.Reason, "day 1")
		assert.NotEmpty(suite.T(), payload.Logs)
	})
}

// TestStreamPlan tests progress forwarding and the terminal events
func (suite *PlannerServiceTestSuite) TestStreamPlan() {
	suite.Run("Success_ShouldEndWithFinalData", func() {
		// Arrange
		f := newFixture(testConfig())
		var entries []logger.Entry
		sink := func(e logger.Entry) error {
			entries = append(entries, e)
			return nil
		}

		// Act
		err := f.svc.StreamPlan(suite.ctx, planCommand(), sink)

		// Assert
		require.NoError(suite.T(), err)
		require.NotEmpty(suite.T(), entries)

		last := entries[len(entries)-1]
		assert.Equal(suite.T(), "finalData", last.Tag)
		resp, ok := last.Data.(*inbound.PlanResponse)
		require.True(suite.T(), ok)
		assert.True(suite.T(), resp.ContractSatisfied.OK)

		phases := entryPhases(entries[:len(entries)-1])
		for _, phase := range []string{"contract", "blueprint", "market_run", "nutrition_resolve", "solver", "ledger"} {
			assert.True(suite.T(), phases[phase], phase)
		}
		assert.Equal(suite.T(), "planner", entries[0].Tag)
	})

	suite.Run("Failure_ShouldEndWithErrorPayload", func() {
		// Arrange
		f := newFixture(testConfig())
		cmd := planCommand()
		cmd.Days = 2
		var entries []logger.Entry
		sink := func(e logger.Entry) error {
			entries = append(entries, e)
			return nil
		}

		// Act
		err := f.svc.StreamPlan(suite.ctx, cmd, sink)

		// Assert
		require.Error(suite.T(), err)
		require.NotEmpty(suite.T(), entries)

		last := entries[len(entries)-1]
		assert.Equal(suite.T(), "error", last.Tag)
		assert.Equal(suite.T(), "error", last.Level)
		payload, ok := last.Data.(inbound.PlanFailure)
		require.True(suite.T(), ok)
		assert.Equal(suite.T(), "BLUEPRINT_INVALID", payload.Error)
		assert.NotEmpty(suite.T(), payload.Logs)
	})

	suite.Run("SinkError_ShouldStopForwarding", func() {
		// Arrange: the client disconnects on the first write
		f := newFixture(testConfig())
		sinkErr := errors.New("client gone")
		calls := 0
		sink := func(logger.Entry) error {
			calls++
			return sinkErr
		}

		// Act
		err := f.svc.StreamPlan(suite.ctx, planCommand(), sink)

		// Assert: one forwarded entry, one terminal attempt, nothing between
		assert.ErrorIs(suite.T(), err, sinkErr)
		assert.Equal(suite.T(), 2, calls)
	})
}

// TestFailurePayload tests the wire failure shaping
func (suite *PlannerServiceTestSuite) TestFailurePayload() {
	suite.Run("AppErrorWithLogs_ShouldCarryThem", func() {
		err := apperrors.NewMacroInfeasibleError("day 1: kcal 480 below band").
			WithMetadata("logs", []logger.Entry{{Message: "Plan solved"}})

		payload := FailurePayload(err)

		assert.Equal(suite.T(), "MACRO_INFEASIBLE", payload.Error)
		assert.Equal(suite.T(), "Macro targets infeasible: day 1: kcal 480 below band", payload.Reason)
		require.Len(suite.T(), payload.Logs, 1)
		assert.Equal(suite.T(), "Plan solved", payload.Logs[0].Message)
	})

	suite.Run("PlainError_ShouldWrapAsInternal", func() {
		payload := FailurePayload(errors.New("boom"))

		assert.Equal(suite.T(), "INTERNAL_ERROR", payload.Error)
		assert.Equal(suite.T(), "plan generation failed", payload.Reason)
		assert.Empty(suite.T(), payload.Logs)
	})

	suite.Run("NoDetails_ShouldUseMessageAlone", func() {
		payload := FailurePayload(apperrors.NewUncaughtError(errors.New("panic: x")))

		assert.Equal(suite.T(), "UNCAUGHT", payload.Error)
		assert.Equal(suite.T(), "Uncaught pipeline failure", payload.Reason)
	})
}

// TestResponseAssembly tests the assembly helpers directly
func (suite *PlannerServiceTestSuite) TestResponseAssembly() {
	suite.Run("QuantityUnits_ShouldRenderPacksOrGrams", func() {
		sized := &market.SKUCandidate{Size: market.PackSize{Value: 500, Unit: market.SizeGram}}

		assert.Equal(suite.T(), "620 g", quantityUnits(620, nil))
		assert.Equal(suite.T(), "2 x 500 g", quantityUnits(620, sized))
		assert.Equal(suite.T(), "1 x 500 g", quantityUnits(180, sized))
		assert.Equal(suite.T(), "75 g", quantityUnits(75, &market.SKUCandidate{}))
	})

	suite.Run("CompletedResults_ShouldBackfillFromHotTable", func() {
		// Arrange: a plan whose results map knows nothing yet
		meal, err := plan.NewMeal(plan.MealLunch, "Bowl", []plan.PlannedIngredient{{
			DisplayName:   "Chicken Breast",
			Quantity:      plan.Quantity{Value: 200, Unit: plan.UnitGram},
			CID:           "chicken_breast",
			NormalizedKey: "chicken_breast",
			RequiredG:     200,
		}})
		require.NoError(suite.T(), err)
		day, err := plan.NewDayPlan(1, []plan.Meal{meal})
		require.NoError(suite.T(), err)
		p, err := plan.NewMealPlan(contract.MacroContract{Kcal: 2000, ProteinG: 150, FatG: 44, CarbG: 250}, []plan.DayPlan{day})
		require.NoError(suite.T(), err)

		// Act
		full := completedResults(p, map[catalog.CID]market.ResolvedIngredient{})

		// Assert
		res, ok := full[catalog.CID("chicken_breast")]
		require.True(suite.T(), ok)
		assert.Equal(suite.T(), market.OutcomeCanonicalFallback, res.Outcome)
		assert.Equal(suite.T(), "Chicken breast", res.DisplayName)
		assert.True(suite.T(), res.HasNutrition())
		assert.InDelta(suite.T(), 0.95, res.Confidence, 1e-9)
	})
}

// TestPlannerServiceTestSuite runs the test suite
func TestPlannerServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PlannerServiceTestSuite))
}

// BenchmarkGeneratePlan benchmarks one full pipeline run against stub edges
func BenchmarkGeneratePlan(b *testing.B) {
	f := newFixture(testConfig())
	cmd := planCommand()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.svc.GeneratePlan(context.Background(), cmd); err != nil {
			b.Fatal(err)
		}
	}
}
