// Package marketapi implements the supermarket search client: token-bucket
// admission, bounded retries with backoff, the single courtesy retry on an
// upstream 429, and stale-while-revalidate price caching.
package marketapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/infrastructure/monitoring"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// searchResult is one row of the upstream search payload.
type searchResult struct {
	Title    string  `json:"title"`
	Brand    string  `json:"brand"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Size     string  `json:"size"`
	Unit     string  `json:"unit,omitempty"`
	URL      string  `json:"url"`
	Barcode  string  `json:"barcode,omitempty"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	Total   int            `json:"total"`
}

// Client talks to the supermarket search API. Every regular attempt takes
// one token from the shared bucket; transient failures are retried with
// exponential backoff up to the attempt budget. An upstream 429 earns
// exactly one extra attempt after a fixed delay, without another token.
type Client struct {
	baseURL     string
	apiKey      string
	pageSize    int
	maxAttempts int
	backoff     time.Duration
	delay429    time.Duration
	httpClient  *http.Client
	bucket      outbound.TokenBucket
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

var _ outbound.MarketSearcher = (*Client)(nil)

// NewClient creates a supermarket search client. A nil metrics collector
// skips upstream instrumentation.
func NewClient(cfg *config.MarketConfig, bucket outbound.TokenBucket, metrics *monitoring.MetricsCollector, logger *zap.Logger) *Client {
	maxAttempts := cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		pageSize:    cfg.PageSize,
		maxAttempts: maxAttempts,
		backoff:     cfg.RetryBackoff,
		delay429:    cfg.Retry429Delay,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(monitoring.InstrumentTransport(metrics, "market", nil)),
		},
		bucket: bucket,
		logger: logger.Named("market-client"),
		sleep:  sleepCtx,
	}
}

// Search runs one page of the upstream product search and returns parsed
// candidates plus the upstream total.
func (c *Client) Search(ctx context.Context, store, query string, page int) ([]market.SKUCandidate, int, error) {
	params := url.Values{
		"store":     {store},
		"q":         {query},
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(c.pageSize)},
	}
	endpoint := c.baseURL + "/v1/search?" + params.Encode()

	body, err := c.fetch(ctx, store, endpoint)
	if err != nil {
		return nil, 0, err
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, 0, apperrors.NewAppError(apperrors.CodeUpstream5xx,
			"Upstream service error",
			"market search returned an unparseable payload",
		).WithCause(err)
	}

	candidates := make([]market.SKUCandidate, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		sizeText := r.Size
		if sizeText == "" {
			sizeText = r.Unit
		}
		candidates = append(candidates, market.NewSKUCandidate(
			r.Title, r.Brand, r.Category, decimal.NewFromFloat(r.Price), sizeText, r.URL, r.Barcode))
	}

	c.logger.Debug("Market search completed",
		zap.String("store", store),
		zap.String("query", query),
		zap.Int("page", page),
		zap.Int("results", len(candidates)),
		zap.Int("total", decoded.Total))

	return candidates, decoded.Total, nil
}

// fetch drives the attempt ladder for one endpoint.
func (c *Client) fetch(ctx context.Context, store, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.backoff<<(attempt-2)); err != nil {
				return nil, err
			}
		}

		if err := c.bucket.Take(ctx, store); err != nil {
			// Synthetic 429: the budget is gone, do not call upstream.
			return nil, err
		}

		body, err := c.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}

		if apperrors.GetCode(err) == apperrors.CodeRateLimited {
			// Courtesy retry on upstream 429, no extra token.
			if sleepErr := c.sleep(ctx, c.delay429); sleepErr != nil {
				return nil, sleepErr
			}
			body, err = c.do(ctx, endpoint)
			if err == nil {
				return body, nil
			}
			return nil, err
		}

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) || !appErr.Retryable() {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("Market search attempt failed",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, lastErr
}

// do performs a single HTTP round trip and classifies the outcome.
func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, apperrors.NewUpstreamTimeoutError("market", err)
		}
		return nil, apperrors.NewNetworkError("market", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError("market", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitedError("market", retryAfterMS(resp))
	case resp.StatusCode >= 500:
		return nil, apperrors.NewUpstreamError("market", resp.StatusCode, nil)
	default:
		return nil, apperrors.NewAppError(apperrors.CodeBadRequest,
			"Market search rejected",
			fmt.Sprintf("upstream returned status %d", resp.StatusCode),
		).WithMetadata("status", resp.StatusCode)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryAfterMS surfaces the upstream's Retry-After hint when present.
func retryAfterMS(resp *http.Response) int64 {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return int64(seconds) * 1000
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
