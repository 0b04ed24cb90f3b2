// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/ports/outbound"
)

// MockMarketSearcher provides a mock implementation of MarketSearcher
type MockMarketSearcher struct {
	mock.Mock
}

var _ outbound.MarketSearcher = (*MockMarketSearcher)(nil)

// NewMockMarketSearcher creates a new mock market searcher
func NewMockMarketSearcher() *MockMarketSearcher {
	return &MockMarketSearcher{}
}

// Search returns the configured shelf for a store and query
func (m *MockMarketSearcher) Search(ctx context.Context, store, query string, page int) ([]market.SKUCandidate, int, error) {
	args := m.Called(ctx, store, query, page)
	if args.Error(2) != nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]market.SKUCandidate), args.Int(1), nil
}

// SetupShelf configures one store and query to return the given candidates on
// every page request.
func (m *MockMarketSearcher) SetupShelf(store, query string, candidates []market.SKUCandidate) {
	m.On("Search", mock.Anything, store, query, mock.AnythingOfType("int")).
		Return(candidates, len(candidates), nil)
}

// SetupEmpty configures every unmatched search to return an empty shelf
func (m *MockMarketSearcher) SetupEmpty() {
	m.On("Search", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("int")).
		Return([]market.SKUCandidate{}, 0, nil)
}

// MockBarcodeClient provides a mock implementation of BarcodeNutritionClient
type MockBarcodeClient struct {
	mock.Mock
}

var _ outbound.BarcodeNutritionClient = (*MockBarcodeClient)(nil)

// NewMockBarcodeClient creates a new mock barcode client
func NewMockBarcodeClient() *MockBarcodeClient {
	return &MockBarcodeClient{}
}

// FetchByBarcode returns the configured row for a barcode
func (m *MockBarcodeClient) FetchByBarcode(ctx context.Context, barcode string) (*nutrition.Row, error) {
	args := m.Called(ctx, barcode)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nutrition.Row), nil
}

// MockFoodSearchClient provides a mock implementation of FoodSearchClient
type MockFoodSearchClient struct {
	mock.Mock
}

var _ outbound.FoodSearchClient = (*MockFoodSearchClient)(nil)

// NewMockFoodSearchClient creates a new mock food search client
func NewMockFoodSearchClient() *MockFoodSearchClient {
	return &MockFoodSearchClient{}
}

// SearchFood returns the configured row for a query
func (m *MockFoodSearchClient) SearchFood(ctx context.Context, query string) (*nutrition.Row, error) {
	args := m.Called(ctx, query)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nutrition.Row), nil
}

// MockSketchClient provides a mock implementation of SketchClient
type MockSketchClient struct {
	mock.Mock
}

var _ outbound.SketchClient = (*MockSketchClient)(nil)

// NewMockSketchClient creates a new mock sketch client
func NewMockSketchClient() *MockSketchClient {
	return &MockSketchClient{}
}

// Sketch returns the configured blueprint
func (m *MockSketchClient) Sketch(ctx context.Context, req outbound.SketchRequest) (*outbound.MealSketch, error) {
	args := m.Called(ctx, req)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.MealSketch), nil
}

// SetupSketch configures every sketch request to return the given blueprint
func (m *MockSketchClient) SetupSketch(sketch *outbound.MealSketch) {
	m.On("Sketch", mock.Anything, mock.AnythingOfType("outbound.SketchRequest")).
		Return(sketch, nil)
}

// MockDescriptionClient provides a mock implementation of DescriptionClient
type MockDescriptionClient struct {
	mock.Mock
}

var _ outbound.DescriptionClient = (*MockDescriptionClient)(nil)

// NewMockDescriptionClient creates a new mock description client
func NewMockDescriptionClient() *MockDescriptionClient {
	return &MockDescriptionClient{}
}

// Describe returns the configured description
func (m *MockDescriptionClient) Describe(ctx context.Context, req outbound.DescribeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// SetupDescriptions configures every describe request to return a fixed blurb
func (m *MockDescriptionClient) SetupDescriptions(text string) {
	m.On("Describe", mock.Anything, mock.AnythingOfType("outbound.DescribeRequest")).
		Return(text, nil)
}

// MockCanonicalRepository provides a mock canonical store backed by a map so
// inserted rows are visible to later lookups.
type MockCanonicalRepository struct {
	mock.Mock
	rows map[string]nutrition.Row
	mu   sync.RWMutex
}

var _ outbound.CanonicalRepository = (*MockCanonicalRepository)(nil)

// NewMockCanonicalRepository creates a new mock canonical repository
func NewMockCanonicalRepository() *MockCanonicalRepository {
	return &MockCanonicalRepository{
		rows: make(map[string]nutrition.Row),
	}
}

// Seed stores rows without going through the mock expectations
func (m *MockCanonicalRepository) Seed(rows map[string]nutrition.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, row := range rows {
		m.rows[key] = row
	}
}

// FindByKey returns the seeded row under the exact key
func (m *MockCanonicalRepository) FindByKey(ctx context.Context, key string) (*nutrition.Row, error) {
	args := m.Called(ctx, key)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if row, ok := m.rows[key]; ok {
		return &row, nil
	}
	return nil, nil
}

// FindNearest returns whatever the expectation configures; the map is exact
// match only.
func (m *MockCanonicalRepository) FindNearest(ctx context.Context, key string, maxDistance int) (*nutrition.Row, string, error) {
	args := m.Called(ctx, key, maxDistance)
	if args.Error(2) != nil {
		return nil, "", args.Error(2)
	}
	if args.Get(0) == nil {
		return nil, "", nil
	}
	return args.Get(0).(*nutrition.Row), args.String(1), nil
}

// Insert stores a row, first writer wins
func (m *MockCanonicalRepository) Insert(ctx context.Context, key string, row nutrition.Row) (bool, error) {
	args := m.Called(ctx, key, row)
	if args.Error(1) != nil {
		return false, args.Error(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[key]; exists {
		return false, nil
	}
	m.rows[key] = row
	return true, nil
}

// Count returns the number of stored rows
func (m *MockCanonicalRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	if args.Error(1) != nil {
		return 0, args.Error(1)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.rows)), nil
}

// SetupStandardMockBehavior sets up common mock behaviors: lookups hit the
// seeded map, fuzzy match misses, inserts succeed.
func (m *MockCanonicalRepository) SetupStandardMockBehavior() {
	m.On("FindByKey", mock.Anything, mock.AnythingOfType("string")).
		Return((*nutrition.Row)(nil), nil)

	m.On("FindNearest", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("int")).
		Return(nil, "", nil)

	m.On("Insert", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("nutrition.Row")).
		Return(true, nil)

	m.On("Count", mock.Anything).
		Return(int64(0), nil)
}

// MockTokenBucket provides a mock implementation of TokenBucket
type MockTokenBucket struct {
	mock.Mock
}

var _ outbound.TokenBucket = (*MockTokenBucket)(nil)

// NewMockTokenBucket creates a new mock token bucket
func NewMockTokenBucket() *MockTokenBucket {
	return &MockTokenBucket{}
}

// Take consumes a token for the store
func (m *MockTokenBucket) Take(ctx context.Context, store string) error {
	args := m.Called(ctx, store)
	return args.Error(0)
}

// SetupUnlimited configures every take to succeed immediately
func (m *MockTokenBucket) SetupUnlimited() {
	m.On("Take", mock.Anything, mock.AnythingOfType("string")).
		Return(nil)
}
