package nutrition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// HotTableTestSuite covers the hot-path table, its audit, and the row
// invariants every table entry must satisfy.
type HotTableTestSuite struct {
	suite.Suite
}

func (suite *HotTableTestSuite) TestShippedTable() {
	suite.Run("Audit_ShippedTable_ShouldBeClean", func() {
		// Act
		report := HotTableAudit()

		// Assert
		assert.Empty(suite.T(), report.Corrected, "shipped rows must not need kcal repair")
		assert.Empty(suite.T(), report.Excluded, "shipped rows must not be excluded")
		assert.True(suite.T(), report.Clean())
	})

	suite.Run("Table_EveryRow_ShouldSatisfyInvariants", func() {
		for key, row := range HotTable() {
			assert.NoError(suite.T(), row.Validate(), "row %q", key)
			assert.True(suite.T(), row.KcalBalanced(KcalBalanceTolerance), "row %q kcal imbalance %.3f", key, row.KcalImbalance())
		}
	})

	suite.Run("Table_Size_ShouldCoverCommonIngredients", func() {
		require.GreaterOrEqual(suite.T(), len(HotTable()), 150)

		for _, key := range []string{"chicken_breast", "rice_white", "olive_oil", "banana", "honey"} {
			_, ok := LookupHot(key)
			assert.True(suite.T(), ok, "expected hot row for %q", key)
		}
	})

	suite.Run("Lookup_UnknownKey_ShouldMiss", func() {
		_, ok := LookupHot("dragon_fruit_smoothie")
		assert.False(suite.T(), ok)
	})
}

func (suite *HotTableTestSuite) TestAudit() {
	suite.Run("Audit_UnbalancedRow_ShouldRecomputeKcal", func() {
		// Arrange: stored kcal far from the 4/4/9 derivation
		table := map[string]Row{
			"broken": {
				Macros: Macros{Kcal: 500, Protein: 10, Fat: 1, Carbs: 10},
				State:  StateRaw,
				Source: SourceHotTable,
			},
		}

		// Act
		audited, report := Audit(table)

		// Assert
		require.Contains(suite.T(), report.Corrected, "broken")
		row := audited["broken"]
		assert.InDelta(suite.T(), row.DerivedKcal(), row.Kcal, 0.11)
		assert.NoError(suite.T(), row.Validate())
	})

	suite.Run("Audit_ImplausibleRow_ShouldExclude", func() {
		// Arrange: macro mass beyond 105g per 100g cannot be repaired
		table := map[string]Row{
			"impossible": {
				Macros: Macros{Kcal: 800, Protein: 60, Fat: 40, Carbs: 60},
				State:  StateRaw,
				Source: SourceHotTable,
			},
		}

		// Act
		audited, report := Audit(table)

		// Assert
		assert.Contains(suite.T(), report.Excluded, "impossible")
		assert.NotContains(suite.T(), audited, "impossible")
	})

	suite.Run("Audit_ZeroCalorieRow_ShouldPassUntouched", func() {
		// Arrange
		table := map[string]Row{
			"salt": {Macros: Macros{}, State: StatePowder, Source: SourceHotTable},
		}

		// Act
		_, report := Audit(table)

		// Assert
		assert.True(suite.T(), report.Clean())
	})
}

func (suite *HotTableTestSuite) TestRowValidation() {
	suite.Run("Validate_KcalOutOfRange_ShouldReject", func() {
		row := Row{Macros: Macros{Kcal: 950, Fat: 105}, State: StateAsSold}
		err := row.Validate()
		assert.ErrorIs(suite.T(), err, ErrRowRejected)
	})

	suite.Run("Validate_MassOver105_ShouldReject", func() {
		row := Row{Macros: Macros{Kcal: 600, Protein: 50, Fat: 30, Carbs: 40}, State: StateAsSold}
		err := row.Validate()
		assert.ErrorIs(suite.T(), err, ErrRowRejected)
	})

	suite.Run("Validate_UnknownState_ShouldReject", func() {
		row := Row{Macros: Macros{Kcal: 100, Carbs: 25}, State: State("frozen")}
		err := row.Validate()
		assert.ErrorIs(suite.T(), err, ErrInvalidState)
	})
}

func (suite *HotTableTestSuite) TestUnitHelpers() {
	suite.Run("GramsFromML_WithDensity_ShouldConvert", func() {
		row, ok := LookupHot("olive_oil")
		require.True(suite.T(), ok)
		assert.InDelta(suite.T(), 9.1, row.GramsFromML(10), 0.001)
	})

	suite.Run("GramsFromML_WithoutDensity_ShouldAssumeWater", func() {
		row := Row{}
		assert.InDelta(suite.T(), 250.0, row.GramsFromML(250), 0.001)
	})

	suite.Run("CookedFrom_DryGrain_ShouldApplyYield", func() {
		row, ok := LookupHot("rice_white")
		require.True(suite.T(), ok)
		assert.InDelta(suite.T(), 280.0, row.CookedFrom(100), 0.001)
	})
}

func (suite *HotTableTestSuite) TestMacros() {
	suite.Run("DerivedKcal_ShouldUseAtwaterFactors", func() {
		m := Macros{Protein: 10, Fat: 10, Carbs: 10}
		assert.InDelta(suite.T(), 170.0, m.DerivedKcal(), 0.001)
	})

	suite.Run("Scale_ShouldBeLinear", func() {
		m := Macros{Kcal: 100, Protein: 10, Fat: 5, Carbs: 5}
		scaled := m.Scale(2.5)
		assert.InDelta(suite.T(), 250.0, scaled.Kcal, 0.001)
		assert.InDelta(suite.T(), 25.0, scaled.Protein, 0.001)
	})

	suite.Run("KcalImbalance_ZeroKcal_ShouldNotDivideByZero", func() {
		m := Macros{Kcal: 0, Protein: 0, Fat: 0, Carbs: 0}
		assert.Equal(suite.T(), 0.0, m.KcalImbalance())
	})
}

func TestHotTableTestSuite(t *testing.T) {
	suite.Run(t, new(HotTableTestSuite))
}

func BenchmarkLookupHot(b *testing.B) {
	for i := 0; i < b.N; i++ {
		LookupHot("chicken_breast")
	}
}
