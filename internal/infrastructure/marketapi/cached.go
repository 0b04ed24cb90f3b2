package marketapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/infrastructure/cache"
	"github.com/macrocart/v2/internal/ports/outbound"
	"go.uber.org/zap"
)

// searchPayload is the cached shape for one search page.
type searchPayload struct {
	Results []market.SKUCandidate `json:"results"`
	Total   int                   `json:"total"`
}

// CachedSearcher decorates a MarketSearcher with the stale-while-revalidate
// price cache, keyed cache:price:{store}:{query}:{page}.
type CachedSearcher struct {
	next   outbound.MarketSearcher
	swr    *cache.SWR
	prefix string
	logger *zap.Logger
}

var _ outbound.MarketSearcher = (*CachedSearcher)(nil)

// NewCachedSearcher wraps next with the price cache.
func NewCachedSearcher(next outbound.MarketSearcher, swr *cache.SWR, prefix string, logger *zap.Logger) *CachedSearcher {
	return &CachedSearcher{
		next:   next,
		swr:    swr,
		prefix: prefix,
		logger: logger.Named("price-cache"),
	}
}

// Search serves the page from cache when it can, going upstream through the
// SWR layer otherwise.
func (c *CachedSearcher) Search(ctx context.Context, store, query string, page int) ([]market.SKUCandidate, int, error) {
	key := fmt.Sprintf("%s%s:%s:%d", c.prefix, store, query, page)

	raw, status, err := c.swr.GetOrFill(ctx, key, func(fctx context.Context) ([]byte, error) {
		results, total, searchErr := c.next.Search(fctx, store, query, page)
		if searchErr != nil {
			return nil, searchErr
		}
		return json.Marshal(searchPayload{Results: results, Total: total})
	})
	if err != nil {
		return nil, 0, err
	}

	var payload searchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Someone wrote an alien shape under our key; fetch upstream and
		// overwrite it.
		c.logger.Warn("Poisoned price cache entry",
			zap.String("key", key), zap.Error(err))
		results, total, searchErr := c.next.Search(ctx, store, query, page)
		if searchErr != nil {
			return nil, 0, searchErr
		}
		if buf, marshalErr := json.Marshal(searchPayload{Results: results, Total: total}); marshalErr == nil {
			c.swr.Store(ctx, key, buf)
		}
		return results, total, nil
	}

	c.logger.Debug("Price lookup served",
		zap.String("key", key),
		zap.String("cache_status", string(status)))

	return payload.Results, payload.Total, nil
}
