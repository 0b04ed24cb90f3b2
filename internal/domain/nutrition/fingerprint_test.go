package nutrition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type FingerprintTestSuite struct {
	suite.Suite

	tol FingerprintTolerance
}

func (suite *FingerprintTestSuite) SetupSuite() {
	suite.tol = DefaultFingerprintTolerance()
}

func (suite *FingerprintTestSuite) TestCheckFingerprint() {
	oliveOil := Macros{Kcal: 900, Protein: 0, Fat: 100, Carbs: 0}

	suite.Run("Check_WithinTolerance_ShouldPass", func() {
		actual := Macros{Kcal: 822, Protein: 0, Fat: 91, Carbs: 0}
		assert.NoError(suite.T(), CheckFingerprint(actual, oliveOil, suite.tol))
	})

	suite.Run("Check_ZeroFatProduct_ShouldRejectOliveOil", func() {
		// A mislabeled SKU reporting kcal=0 fat=0 for an oil
		actual := Macros{Kcal: 0, Protein: 0, Fat: 0, Carbs: 0}
		err := CheckFingerprint(actual, oliveOil, suite.tol)
		assert.ErrorIs(suite.T(), err, ErrFingerprintMismatch)
	})

	suite.Run("Check_NextCandidateFullFat_ShouldPass", func() {
		actual := Macros{Kcal: 900, Protein: 0, Fat: 100, Carbs: 0.2}
		assert.NoError(suite.T(), CheckFingerprint(actual, oliveOil, suite.tol))
	})

	suite.Run("Check_ZeroKcalExpectation_ShouldNotDivideByZero", func() {
		// Zero-calorie spice: expectation is all zeros, small actuals pass
		spice := Macros{}
		actual := Macros{Kcal: 12, Protein: 0.4, Fat: 0.2, Carbs: 2.1}
		assert.NoError(suite.T(), CheckFingerprint(actual, spice, suite.tol))
	})

	suite.Run("Check_ZeroKcalExpectation_LargeActual_ShouldReject", func() {
		spice := Macros{}
		actual := Macros{Kcal: 400, Protein: 0, Fat: 0, Carbs: 95}
		err := CheckFingerprint(actual, spice, suite.tol)
		assert.ErrorIs(suite.T(), err, ErrFingerprintMismatch)
	})

	suite.Run("Check_ProteinDrift30Pct_ShouldReject", func() {
		expected := Macros{Kcal: 113, Protein: 22.5, Fat: 2.6, Carbs: 0}
		actual := Macros{Kcal: 113, Protein: 29.5, Fat: 2.6, Carbs: 0}
		err := CheckFingerprint(actual, expected, suite.tol)
		assert.ErrorIs(suite.T(), err, ErrFingerprintMismatch)
	})

	suite.Run("Check_KcalDrift25Pct_ShouldReject", func() {
		expected := Macros{Kcal: 400, Protein: 10, Fat: 10, Carbs: 67.5}
		actual := Macros{Kcal: 500, Protein: 10, Fat: 10, Carbs: 67.5}
		err := CheckFingerprint(actual, expected, suite.tol)
		assert.ErrorIs(suite.T(), err, ErrFingerprintMismatch)
	})
}

func TestFingerprintTestSuite(t *testing.T) {
	suite.Run(t, new(FingerprintTestSuite))
}
