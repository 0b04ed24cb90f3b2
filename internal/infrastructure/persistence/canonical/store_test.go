package canonical

import (
	"context"
	"testing"

	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testRow(kcal, protein, fat, carbs float64) nutrition.Row {
	return nutrition.Row{
		Macros: nutrition.Macros{
			Kcal:    kcal,
			Protein: protein,
			Fat:     fat,
			Carbs:   carbs,
		},
		State:      nutrition.StateAsSold,
		Source:     nutrition.SourceCanonical,
		Confidence: 0.9,
	}
}

type CanonicalStoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	db    *gorm.DB
	store *Store
}

func (suite *CanonicalStoreTestSuite) SetupTest() {
	suite.ctx = context.Background()

	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.LogLevel = "silent"
	cfg.Database.AutoMigrate = true

	db, err := Open(cfg)
	suite.Require().NoError(err)
	suite.db = db

	store, err := NewStore(db, zap.NewNop())
	suite.Require().NoError(err)
	suite.store = store
}

func (suite *CanonicalStoreTestSuite) TestLookups() {
	suite.Run("ExactKey_ShouldReturnStoredRow", func() {
		// Arrange
		written, err := suite.store.Insert(suite.ctx, "chicken_breast", testRow(156, 31, 3.6, 0))
		suite.Require().NoError(err)
		suite.Require().True(written)

		// Act
		row, err := suite.store.FindByKey(suite.ctx, "chicken_breast")

		// Assert
		suite.Require().NoError(err)
		suite.Require().NotNil(row)
		assert.Equal(suite.T(), 156.0, row.Kcal)
		assert.Equal(suite.T(), 31.0, row.Protein)
		assert.Equal(suite.T(), nutrition.SourceCanonical, row.Source)
	})

	suite.Run("UnknownKey_ShouldReturnNil", func() {
		// Act
		row, err := suite.store.FindByKey(suite.ctx, "unobtainium")

		// Assert
		suite.Require().NoError(err)
		assert.Nil(suite.T(), row)
	})

	suite.Run("ReturnedRow_ShouldBeACopy", func() {
		// Arrange
		_, err := suite.store.Insert(suite.ctx, "rolled_oats", testRow(379, 13.2, 6.5, 67.7))
		suite.Require().NoError(err)

		// Act
		first, err := suite.store.FindByKey(suite.ctx, "rolled_oats")
		suite.Require().NoError(err)
		first.Kcal = 1

		second, err := suite.store.FindByKey(suite.ctx, "rolled_oats")

		// Assert
		suite.Require().NoError(err)
		assert.Equal(suite.T(), 379.0, second.Kcal)
	})
}

func (suite *CanonicalStoreTestSuite) TestFindNearest() {
	suite.Run("CloseKey_ShouldMatchWithinDistance", func() {
		// Arrange
		_, err := suite.store.Insert(suite.ctx, "chicken_breast", testRow(156, 31, 3.6, 0))
		suite.Require().NoError(err)
		_, err = suite.store.Insert(suite.ctx, "chicken_thigh", testRow(209, 17.5, 15, 0))
		suite.Require().NoError(err)

		// Act: one trailing character off.
		row, matched, err := suite.store.FindNearest(suite.ctx, "chicken_breasts", 2)

		// Assert
		suite.Require().NoError(err)
		suite.Require().NotNil(row)
		assert.Equal(suite.T(), "chicken_breast", matched)
		assert.Equal(suite.T(), 31.0, row.Protein)
	})

	suite.Run("DistantKey_ShouldReturnNil", func() {
		// Arrange
		_, err := suite.store.Insert(suite.ctx, "basmati_rice", testRow(350, 7.5, 1, 78))
		suite.Require().NoError(err)

		// Act
		row, matched, err := suite.store.FindNearest(suite.ctx, "beef_mince", 2)

		// Assert
		suite.Require().NoError(err)
		assert.Nil(suite.T(), row)
		assert.Empty(suite.T(), matched)
	})

	suite.Run("ExactKey_ShouldShortCircuit", func() {
		// Arrange
		_, err := suite.store.Insert(suite.ctx, "whole_milk", testRow(64, 3.4, 3.6, 4.8))
		suite.Require().NoError(err)

		// Act
		row, matched, err := suite.store.FindNearest(suite.ctx, "whole_milk", 3)

		// Assert
		suite.Require().NoError(err)
		suite.Require().NotNil(row)
		assert.Equal(suite.T(), "whole_milk", matched)
	})

	suite.Run("EqualDistances_ShouldPreferLexicographicOrder", func() {
		// Arrange: both keys sit one edit from the query.
		_, err := suite.store.Insert(suite.ctx, "penne_a", testRow(352, 12, 1.5, 71))
		suite.Require().NoError(err)
		_, err = suite.store.Insert(suite.ctx, "penne_b", testRow(352, 12, 1.5, 71))
		suite.Require().NoError(err)

		// Act
		_, matched, err := suite.store.FindNearest(suite.ctx, "penne_c", 2)

		// Assert
		suite.Require().NoError(err)
		assert.Equal(suite.T(), "penne_a", matched)
	})
}

func (suite *CanonicalStoreTestSuite) TestInsert() {
	suite.Run("DuplicateKey_ShouldKeepFirstWriter", func() {
		// Arrange
		written, err := suite.store.Insert(suite.ctx, "greek_yogurt", testRow(97, 9, 5, 3.9))
		suite.Require().NoError(err)
		suite.Require().True(written)

		// Act
		written, err = suite.store.Insert(suite.ctx, "greek_yogurt", testRow(60, 10, 0.4, 3.6))

		// Assert
		suite.Require().NoError(err)
		assert.False(suite.T(), written)

		row, err := suite.store.FindByKey(suite.ctx, "greek_yogurt")
		suite.Require().NoError(err)
		assert.Equal(suite.T(), 97.0, row.Kcal)
	})

	suite.Run("Count_ShouldTrackInsertedRows", func() {
		// Arrange
		before, err := suite.store.Count(suite.ctx)
		suite.Require().NoError(err)

		_, err = suite.store.Insert(suite.ctx, "red_lentils", testRow(340, 24, 1.5, 57))
		suite.Require().NoError(err)

		// Act
		after, err := suite.store.Count(suite.ctx)

		// Assert
		suite.Require().NoError(err)
		assert.Equal(suite.T(), before+1, after)
	})

	suite.Run("FreshStore_ShouldWarmFromDatabase", func() {
		// Arrange
		_, err := suite.store.Insert(suite.ctx, "sweet_potato", testRow(86, 1.6, 0.1, 20))
		suite.Require().NoError(err)

		// Act: a second store over the same database sees the row.
		reopened, err := NewStore(suite.db, zap.NewNop())
		suite.Require().NoError(err)
		row, err := reopened.FindByKey(suite.ctx, "sweet_potato")

		// Assert
		suite.Require().NoError(err)
		suite.Require().NotNil(row)
		assert.Equal(suite.T(), 86.0, row.Kcal)
		assert.Equal(suite.T(), nutrition.SourceCanonical, row.Source)
	})
}

func TestCanonicalStoreTestSuite(t *testing.T) {
	suite.Run(t, new(CanonicalStoreTestSuite))
}

func BenchmarkStoreFindNearest(b *testing.B) {
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.LogLevel = "silent"
	cfg.Database.AutoMigrate = true

	db, err := Open(cfg)
	if err != nil {
		b.Fatal(err)
	}
	store, err := NewStore(db, zap.NewNop())
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	keys := []string{"chicken_breast", "chicken_thigh", "basmati_rice", "rolled_oats", "whole_milk", "greek_yogurt"}
	for _, key := range keys {
		if _, err := store.Insert(ctx, key, testRow(156, 31, 3.6, 0)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.FindNearest(ctx, "chicken_breasts", 3)
	}
}
