package contract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/macrocart/v2/internal/domain/nutrition"
)

// ContractTestSuite covers contract derivation and the ledger predicate.
type ContractTestSuite struct {
	suite.Suite
	builder *Builder
}

func (suite *ContractTestSuite) SetupSuite() {
	suite.builder = NewBuilder(DefaultBuilderConfig())
}

func baselineProfile() Profile {
	return Profile{
		HeightCm:        187,
		WeightKg:        73,
		Age:             23,
		Sex:             SexMale,
		Activity:        ActivityActive,
		Goal:            GoalBulkLean,
		Days:            1,
		EatingOccasions: 3,
		Store:           "superstore",
	}
}

func (suite *ContractTestSuite) TestBuild() {
	suite.Run("Build_BaselineLeanBulk_ShouldDeriveKnownContract", func() {
		// Act
		c, err := suite.builder.Build(baselineProfile())

		// Assert
		require.NoError(suite.T(), err)
		assert.InDelta(suite.T(), 3030, c.Kcal, 30)
		assert.Equal(suite.T(), 219.0, c.ProteinG)
		assert.Equal(suite.T(), 67.0, c.FatG)
		assert.InDelta(suite.T(), 387, c.CarbG, 2)
	})

	suite.Run("Build_ProteinCapDrivenTarget_ShouldStayAdmissible", func() {
		// The 3.0 g/kg target cap sits above the 2.8 g/kg ledger ceiling;
		// the published target must never violate its own hard cap.

		// Act
		c, err := suite.builder.Build(baselineProfile())

		// Assert
		require.NoError(suite.T(), err)
		assert.GreaterOrEqual(suite.T(), c.HardCaps.ProteinMaxG, c.ProteinG)
		assert.Empty(suite.T(), c.FatalViolations(c.Targets()))
	})

	suite.Run("Build_HardCaps_ShouldScaleFromTargets", func() {
		// Act
		c, err := suite.builder.Build(baselineProfile())

		// Assert
		require.NoError(suite.T(), err)
		assert.InDelta(suite.T(), 1.5*c.FatG, c.HardCaps.FatMaxG, 0.01)
		assert.InDelta(suite.T(), 0.8*c.CarbG, c.HardCaps.CarbMinG, 0.01)
	})

	suite.Run("Build_AggressiveCutWithTinyTDEE_ShouldClampKcal", func() {
		// Arrange
		p := Profile{
			HeightCm:        155,
			WeightKg:        60,
			Age:             45,
			Sex:             SexFemale,
			Activity:        ActivitySedentary,
			Goal:            GoalCutAggressive,
			Days:            1,
			EatingOccasions: 3,
			Store:           "superstore",
		}

		// Act
		c, err := suite.builder.Build(p)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), 1200.0, c.Kcal)
		assert.Equal(suite.T(), 90.0, c.ProteinG)
		assert.Equal(suite.T(), 150.0, c.CarbG)
		require.NotEmpty(suite.T(), c.Notes)
		assert.Contains(suite.T(), c.Notes[0], "clamped")
	})

	suite.Run("Build_LowSplitProtein_ShouldNoteSoftFloorOnly", func() {
		// Arrange: 90g protein against a 96g floor for 60kg body weight.
		p := Profile{
			HeightCm: 155, WeightKg: 60, Age: 45,
			Sex: SexFemale, Activity: ActivitySedentary, Goal: GoalCutAggressive,
			Days: 1, EatingOccasions: 3, Store: "superstore",
		}

		// Act
		c, err := suite.builder.Build(p)

		// Assert
		require.NoError(suite.T(), err)
		foundProteinNote := false
		for _, n := range c.Notes {
			if strings.Contains(n, "protein") && strings.Contains(n, "soft floor") {
				foundProteinNote = true
			}
		}
		assert.True(suite.T(), foundProteinNote, "expected protein soft floor note, got %v", c.Notes)
		assert.Equal(suite.T(), 90.0, c.ProteinG, "floor is noted, not enforced")
	})

	suite.Run("Build_MaintainGoal_ShouldUseTDEEDirectly", func() {
		// Arrange
		p := baselineProfile()
		p.Goal = GoalMaintain

		// Act
		c, err := suite.builder.Build(p)

		// Assert
		require.NoError(suite.T(), err)
		assert.InDelta(suite.T(), 2773, c.Kcal, 1)
	})

	suite.Run("Build_GoalOrdering_ShouldBeMonotonic", func() {
		// Arrange
		kcalFor := func(g Goal) float64 {
			p := baselineProfile()
			p.Goal = g
			c, err := suite.builder.Build(p)
			require.NoError(suite.T(), err)
			return c.Kcal
		}

		// Act & Assert
		assert.Less(suite.T(), kcalFor(GoalCutAggressive), kcalFor(GoalCutModerate))
		assert.Less(suite.T(), kcalFor(GoalCutModerate), kcalFor(GoalMaintain))
		assert.Less(suite.T(), kcalFor(GoalMaintain), kcalFor(GoalBulkLean))
		assert.Less(suite.T(), kcalFor(GoalBulkLean), kcalFor(GoalBulkAggressive))
	})

	suite.Run("Build_InvalidProfiles_ShouldFailValidation", func() {
		// Arrange
		cases := map[string]func(*Profile){
			"sex":       func(p *Profile) { p.Sex = "other" },
			"activity":  func(p *Profile) { p.Activity = "couch" },
			"goal":      func(p *Profile) { p.Goal = "recomp" },
			"days":      func(p *Profile) { p.Days = 0 },
			"occasions": func(p *Profile) { p.EatingOccasions = 2 },
			"store":     func(p *Profile) { p.Store = "" },
			"height":    func(p *Profile) { p.HeightCm = 80 },
			"weight":    func(p *Profile) { p.WeightKg = 20 },
			"age":       func(p *Profile) { p.Age = 9 },
		}

		for name, mutate := range cases {
			// Act
			p := baselineProfile()
			mutate(&p)
			_, err := suite.builder.Build(p)

			// Assert
			require.Error(suite.T(), err, "case %s", name)
			assert.ErrorIs(suite.T(), err, ErrInvalidProfile, "case %s", name)
		}
	})
}

func (suite *ContractTestSuite) TestCheck() {
	contract := MacroContract{
		Kcal: 3000, ProteinG: 200, FatG: 70, CarbG: 380,
		Tolerances: Tolerances{KcalPct: 0.03, ProteinPct: 0.08, FatPct: 0.08, CarbPct: 0.08, CarbFloorPct: 0.8},
		HardCaps:   HardCaps{ProteinMaxG: 210, FatMaxG: 105, CarbMinG: 304},
	}

	suite.Run("Check_OnTargetTotals_ShouldPass", func() {
		// Act & Assert
		assert.True(suite.T(), contract.Satisfied(nutrition.Macros{Kcal: 3000, Protein: 200, Fat: 70, Carbs: 380}))
	})

	suite.Run("Check_WithinTolerances_ShouldPass", func() {
		// Act & Assert
		assert.True(suite.T(), contract.Satisfied(nutrition.Macros{Kcal: 3080, Protein: 205, Fat: 73, Carbs: 390}))
	})

	suite.Run("Check_CarbsBelowHardFloor_ShouldBeFatal", func() {
		// Act
		violations := contract.Check(nutrition.Macros{Kcal: 2700, Protein: 200, Fat: 70, Carbs: 300})

		// Assert
		require.NotEmpty(suite.T(), violations)
		assert.Equal(suite.T(), ViolationCarbsTooLow, violations[0].Code)
		assert.True(suite.T(), violations[0].Code.Fatal())
	})

	suite.Run("Check_ProteinAboveHardCap_ShouldBeFatal", func() {
		// Act
		violations := contract.Check(nutrition.Macros{Kcal: 3060, Protein: 215, Fat: 70, Carbs: 380})

		// Assert
		require.Len(suite.T(), violations, 1)
		assert.Equal(suite.T(), ViolationProteinTooHigh, violations[0].Code)
	})

	suite.Run("Check_FatAboveHardCap_ShouldBeFatal", func() {
		// Act
		fatal := contract.FatalViolations(nutrition.Macros{Kcal: 3300, Protein: 200, Fat: 110, Carbs: 380})

		// Assert
		require.Len(suite.T(), fatal, 1)
		assert.Equal(suite.T(), ViolationFatTooHigh, fatal[0].Code)
	})

	suite.Run("Check_KcalDrift_ShouldBeNonFatal", func() {
		// Act
		violations := contract.Check(nutrition.Macros{Kcal: 3200, Protein: 200, Fat: 70, Carbs: 380})

		// Assert
		require.Len(suite.T(), violations, 1)
		assert.Equal(suite.T(), ViolationKcalDrift, violations[0].Code)
		assert.False(suite.T(), violations[0].Code.Fatal())
		assert.Empty(suite.T(), contract.FatalViolations(nutrition.Macros{Kcal: 3200, Protein: 200, Fat: 70, Carbs: 380}))
	})

	suite.Run("Check_ZeroTargetComponent_ShouldNotDivide", func() {
		// Arrange: a zero-fat contract must not reject on fat drift math.
		zeroFat := MacroContract{
			Kcal: 2000, ProteinG: 150, FatG: 0, CarbG: 350,
			Tolerances: Tolerances{KcalPct: 0.03, ProteinPct: 0.08, FatPct: 0.08, CarbPct: 0.08},
			HardCaps:   HardCaps{ProteinMaxG: 200, FatMaxG: 10, CarbMinG: 280},
		}

		// Act & Assert
		assert.True(suite.T(), zeroFat.Satisfied(nutrition.Macros{Kcal: 2000, Protein: 150, Fat: 5, Carbs: 350}))
	})

	suite.Run("Widen_SnackTolerances_ShouldLoosenBandsOnly", func() {
		// Act
		wide := contract.Tolerances.Widen(1.25)

		// Assert
		assert.InDelta(suite.T(), 0.0375, wide.KcalPct, 1e-9)
		assert.InDelta(suite.T(), 0.10, wide.ProteinPct, 1e-9)
		assert.Equal(suite.T(), contract.Tolerances.CarbFloorPct, wide.CarbFloorPct)
	})
}

func (suite *ContractTestSuite) TestBMR() {
	suite.Run("BMR_MaleAndFemale_ShouldDifferByFixedOffset", func() {
		// Arrange
		male := baselineProfile()
		female := baselineProfile()
		female.Sex = SexFemale

		// Act & Assert
		assert.InDelta(suite.T(), 1788.75, male.BMR(), 0.001)
		assert.InDelta(suite.T(), male.BMR()-166, female.BMR(), 0.001)
	})
}

func TestContractTestSuite(t *testing.T) {
	suite.Run(t, new(ContractTestSuite))
}

func BenchmarkBuildContract(b *testing.B) {
	builder := NewBuilder(DefaultBuilderConfig())
	p := baselineProfile()
	for i := 0; i < b.N; i++ {
		_, _ = builder.Build(p)
	}
}
