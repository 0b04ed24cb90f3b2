package nutritionapi

import (
	"context"
	"encoding/json"

	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/infrastructure/cache"
	"github.com/macrocart/v2/internal/ports/outbound"
	"go.uber.org/zap"
)

// cachedRow runs one lookup through the SWR layer. Misses and fingerprint
// rejections surface as fill errors, which the SWR layer never stores, so
// only real rows are ever cached.
func cachedRow(ctx context.Context, swr *cache.SWR, key string, logger *zap.Logger,
	fill func(ctx context.Context) (*nutrition.Row, error)) (*nutrition.Row, error) {

	raw, status, err := swr.GetOrFill(ctx, key, func(fctx context.Context) ([]byte, error) {
		row, fillErr := fill(fctx)
		if fillErr != nil {
			return nil, fillErr
		}
		return json.Marshal(row)
	})
	if err != nil {
		return nil, err
	}

	var row nutrition.Row
	if err := json.Unmarshal(raw, &row); err != nil {
		// Alien shape under our key; fetch upstream and overwrite it.
		logger.Warn("Poisoned nutrition cache entry", zap.String("key", key), zap.Error(err))
		fresh, fillErr := fill(ctx)
		if fillErr != nil {
			return nil, fillErr
		}
		if buf, marshalErr := json.Marshal(fresh); marshalErr == nil {
			swr.Store(ctx, key, buf)
		}
		return fresh, nil
	}

	logger.Debug("Nutrition lookup served",
		zap.String("key", key),
		zap.String("cache_status", string(status)))
	return &row, nil
}

// CachedBarcodeClient decorates barcode lookups with the per-source SWR
// cache under cache:nutrition:barcode:{barcode}.
type CachedBarcodeClient struct {
	next   outbound.BarcodeNutritionClient
	swr    *cache.SWR
	prefix string
	logger *zap.Logger
}

var _ outbound.BarcodeNutritionClient = (*CachedBarcodeClient)(nil)

// NewCachedBarcodeClient wraps next with the nutrition cache.
func NewCachedBarcodeClient(next outbound.BarcodeNutritionClient, swr *cache.SWR, prefix string, logger *zap.Logger) *CachedBarcodeClient {
	return &CachedBarcodeClient{
		next:   next,
		swr:    swr,
		prefix: prefix,
		logger: logger.Named("nutrition-cache"),
	}
}

// FetchByBarcode serves the row from cache when it can.
func (c *CachedBarcodeClient) FetchByBarcode(ctx context.Context, barcode string) (*nutrition.Row, error) {
	key := c.prefix + string(nutrition.SourceBarcode) + ":" + barcode
	return cachedRow(ctx, c.swr, key, c.logger, func(fctx context.Context) (*nutrition.Row, error) {
		return c.next.FetchByBarcode(fctx, barcode)
	})
}

// CachedFoodSearchClient decorates free-text lookups with the per-source
// SWR cache under cache:nutrition:free_text:{query}.
type CachedFoodSearchClient struct {
	next   outbound.FoodSearchClient
	swr    *cache.SWR
	prefix string
	logger *zap.Logger
}

var _ outbound.FoodSearchClient = (*CachedFoodSearchClient)(nil)

// NewCachedFoodSearchClient wraps next with the nutrition cache.
func NewCachedFoodSearchClient(next outbound.FoodSearchClient, swr *cache.SWR, prefix string, logger *zap.Logger) *CachedFoodSearchClient {
	return &CachedFoodSearchClient{
		next:   next,
		swr:    swr,
		prefix: prefix,
		logger: logger.Named("nutrition-cache"),
	}
}

// SearchFood serves the row from cache when it can.
func (c *CachedFoodSearchClient) SearchFood(ctx context.Context, query string) (*nutrition.Row, error) {
	key := c.prefix + string(nutrition.SourceFreeText) + ":" + query
	return cachedRow(ctx, c.swr, key, c.logger, func(fctx context.Context) (*nutrition.Row, error) {
		return c.next.SearchFood(fctx, query)
	})
}
