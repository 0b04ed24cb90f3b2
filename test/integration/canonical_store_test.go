// Package integration provides integration tests using real database instances
//go:build integration
// +build integration

package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/infrastructure/persistence/canonical"
	"github.com/macrocart/v2/internal/infrastructure/persistence/migrations"
	"github.com/macrocart/v2/test/testutils"
)

// CanonicalStoreIntegrationTestSuite exercises the canonical store, the
// dataset loader and the migrations against a real postgres instance
type CanonicalStoreIntegrationTestSuite struct {
	suite.Suite
	testDB     *testutils.TestDatabase
	store      *canonical.Store
	rowFactory *testutils.RowFactory
	ctx        context.Context
}

// SetupSuite initializes the test suite with real database
func (suite *CanonicalStoreIntegrationTestSuite) SetupSuite() {
	suite.ctx = context.Background()

	suite.testDB = testutils.SetupTestDatabase(suite.T())

	err := suite.testDB.RunMigrations()
	require.NoError(suite.T(), err, "Failed to run database migrations")

	suite.rowFactory = testutils.NewRowFactory(time.Now().UnixNano())
}

// SetupTest prepares each test with a clean table and a freshly warmed store
func (suite *CanonicalStoreIntegrationTestSuite) SetupTest() {
	err := suite.testDB.TruncateCanonical()
	require.NoError(suite.T(), err, "Failed to clean canonical rows")

	store, err := canonical.NewStore(suite.testDB.GormDB, zap.NewNop())
	require.NoError(suite.T(), err, "Failed to create canonical store")
	suite.store = store
}

// TestInsertAndLookup tests the write path and the exact-key index
func (suite *CanonicalStoreIntegrationTestSuite) TestInsertAndLookup() {
	suite.Run("InsertNewRow_ShouldPersistAndServeLookups", func() {
		// Arrange
		row := suite.rowFactory.CreateProteinRow()

		// Act
		written, err := suite.store.Insert(suite.ctx, "chicken_breast", row)

		// Assert
		require.NoError(suite.T(), err)
		assert.True(suite.T(), written)

		found, err := suite.store.FindByKey(suite.ctx, "chicken_breast")
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), found)
		assert.InDelta(suite.T(), row.Kcal, found.Kcal, 0.001)
		assert.InDelta(suite.T(), row.Protein, found.Protein, 0.001)
		assert.Equal(suite.T(), nutrition.StateCooked, found.State)
		assert.Equal(suite.T(), nutrition.SourceCanonical, found.Source)

		count, err := suite.store.Count(suite.ctx)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), int64(1), count)
	})

	suite.Run("FindByKey_WithUnknownKey_ShouldReturnNoRow", func() {
		// Act
		found, err := suite.store.FindByKey(suite.ctx, "dragonfruit_custard")

		// Assert
		require.NoError(suite.T(), err)
		assert.Nil(suite.T(), found)
	})

	suite.Run("Insert_WithDuplicateKey_ShouldKeepFirstWriter", func() {
		// Arrange
		original := suite.rowFactory.CreateProteinRow()
		written, err := suite.store.Insert(suite.ctx, "turkey_breast", original)
		require.NoError(suite.T(), err)
		require.True(suite.T(), written)

		before, err := suite.store.Count(suite.ctx)
		require.NoError(suite.T(), err)

		// Act
		written, err = suite.store.Insert(suite.ctx, "turkey_breast", suite.rowFactory.CreateCarbRow())

		// Assert
		require.NoError(suite.T(), err)
		assert.False(suite.T(), written)

		found, err := suite.store.FindByKey(suite.ctx, "turkey_breast")
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), found)
		assert.InDelta(suite.T(), original.Protein, found.Protein, 0.001, "First writer's row must survive")

		after, err := suite.store.Count(suite.ctx)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), before, after)
	})

	suite.Run("InsertedRows_ShouldSurviveRestart", func() {
		// Arrange
		carb := suite.rowFactory.CreateCarbRow()
		_, err := suite.store.Insert(suite.ctx, "rice_white", carb)
		require.NoError(suite.T(), err)

		// Act: a fresh store warms its index from the database
		reopened, err := canonical.NewStore(suite.testDB.GormDB, zap.NewNop())

		// Assert
		require.NoError(suite.T(), err)
		found, err := reopened.FindByKey(suite.ctx, "rice_white")
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), found)
		assert.InDelta(suite.T(), carb.Carbs, found.Carbs, 0.001)
		assert.InDelta(suite.T(), 2.5, found.YieldFactor, 0.001)
		assert.Equal(suite.T(), nutrition.StateDry, found.State)
	})
}

// TestFindNearest tests fuzzy lookups over the warmed index
func (suite *CanonicalStoreIntegrationTestSuite) TestFindNearest() {
	// Seed directly, then warm a fresh store over the persisted rows
	err := suite.testDB.SeedCanonicalRows(map[string]nutrition.Row{
		"chicken_breast": suite.rowFactory.CreateProteinRow(),
		"basmati_rice":   suite.rowFactory.CreateCarbRow(),
	})
	require.NoError(suite.T(), err)

	store, err := canonical.NewStore(suite.testDB.GormDB, zap.NewNop())
	require.NoError(suite.T(), err)

	suite.Run("FindNearest_WithTypo_ShouldMatchWithinDistance", func() {
		// Act
		row, matched, err := store.FindNearest(suite.ctx, "chicken_brest", 2)

		// Assert
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), row)
		assert.Equal(suite.T(), "chicken_breast", matched)
		assert.InDelta(suite.T(), 31.0, row.Protein, 0.001)
	})

	suite.Run("FindNearest_WithExactKey_ShouldShortCircuit", func() {
		// Act
		row, matched, err := store.FindNearest(suite.ctx, "basmati_rice", 2)

		// Assert
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), row)
		assert.Equal(suite.T(), "basmati_rice", matched)
		assert.InDelta(suite.T(), 80.0, row.Carbs, 0.001)
	})

	suite.Run("FindNearest_BeyondDistance_ShouldMiss", func() {
		// Act
		row, matched, err := store.FindNearest(suite.ctx, "maple_syrup", 2)

		// Assert
		require.NoError(suite.T(), err)
		assert.Nil(suite.T(), row)
		assert.Empty(suite.T(), matched)
	})
}

// TestDatasetImport tests the loader end to end against the real store
func (suite *CanonicalStoreIntegrationTestSuite) TestDatasetImport() {
	suite.Run("Load_WithMixedDataset_ShouldImportGateAndRecordCollisions", func() {
		// Arrange: two good rows, one blank line, one implausible row, one
		// key colliding after normalization, one blank key
		dataset := strings.Join([]string{
			`{"key":"Chicken Breast","kcal":113,"protein_g":22.5,"fat_g":2.6,"carb_g":0,"state":"raw"}`,
			`{"key":"White Rice","kcal":349,"protein_g":7,"fat_g":0.6,"carb_g":79,"fiber_g":1.3,"state":"dry","yield_factor":2.8}`,
			``,
			`{"key":"Protein Blob","kcal":750,"protein_g":120,"fat_g":30,"carb_g":0,"state":"as_sold"}`,
			`{"key":"Chicken Breast Fillet","kcal":114,"protein_g":22.6,"fat_g":2.7,"carb_g":0,"state":"raw"}`,
			`{"key":"   ","kcal":100,"protein_g":5,"fat_g":2,"carb_g":15,"state":"raw"}`,
		}, "\n")

		path := filepath.Join(suite.T().TempDir(), "dataset.jsonl")
		require.NoError(suite.T(), os.WriteFile(path, []byte(dataset), 0o644))

		loader := canonical.NewLoader(suite.store, zap.NewNop())

		// Act
		report, err := loader.Load(suite.ctx, canonical.NewFileSource(path))

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), 2, report.Imported)
		assert.Equal(suite.T(), []string{"chicken_breast"}, report.Collisions)

		require.Len(suite.T(), report.Rejected, 2)
		assert.Contains(suite.T(), report.Rejected[0].Reason, "macro mass")
		assert.Equal(suite.T(), "empty key", report.Rejected[1].Reason)

		count, err := suite.store.Count(suite.ctx)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), int64(2), count)

		// Normalized keys serve lookups with loader defaults applied
		rice, err := suite.store.FindByKey(suite.ctx, "rice_white")
		require.NoError(suite.T(), err)
		require.NotNil(suite.T(), rice)
		assert.InDelta(suite.T(), 349.0, rice.Kcal, 0.001)
		assert.InDelta(suite.T(), 2.8, rice.YieldFactor, 0.001)
		assert.InDelta(suite.T(), 0.9, rice.Confidence, 0.001)
		assert.Equal(suite.T(), nutrition.SourceCanonical, rice.Source)
	})

	suite.Run("Load_WithMissingFile_ShouldFail", func() {
		// Arrange
		loader := canonical.NewLoader(suite.store, zap.NewNop())
		src := canonical.NewFileSource(filepath.Join(suite.T().TempDir(), "absent.jsonl"))

		// Act
		report, err := loader.Load(suite.ctx, src)

		// Assert
		require.Error(suite.T(), err)
		assert.Nil(suite.T(), report)
	})
}

// TestMigrations tests schema versioning over an already migrated database
func (suite *CanonicalStoreIntegrationTestSuite) TestMigrations() {
	suite.Run("Up_WhenAlreadyCurrent_ShouldBeIdempotent", func() {
		// Arrange: dedicated handle so closing the migrator cannot touch the
		// suite's shared connection pool
		db, err := sql.Open("pgx", suite.testDB.DSN)
		require.NoError(suite.T(), err)
		defer db.Close()

		migrator, err := migrations.New(db, "macrocart_test", zap.NewNop())
		require.NoError(suite.T(), err)

		// Act
		err = migrator.Up()

		// Assert
		require.NoError(suite.T(), err)

		version, dirty, err := migrator.Version()
		require.NoError(suite.T(), err)
		assert.False(suite.T(), dirty)
		assert.GreaterOrEqual(suite.T(), version, uint(1))
	})
}

// TestCanonicalStoreIntegrationTestSuite runs the canonical store integration test suite
func TestCanonicalStoreIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(CanonicalStoreIntegrationTestSuite))
}
