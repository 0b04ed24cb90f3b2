package nutritionapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/infrastructure/monitoring"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type foodRow struct {
	Description string  `json:"description"`
	Kcal100g    float64 `json:"kcal_100g"`
	Protein100g float64 `json:"protein_100g"`
	Fat100g     float64 `json:"fat_100g"`
	Carb100g    float64 `json:"carb_100g"`
	Fiber100g   float64 `json:"fiber_100g"`
}

type foodSearchResponse struct {
	Foods []foodRow `json:"foods"`
}

// freeTextConfidence is low: the match is by description relevance, not by
// product identity, so the fingerprint gate does the real vetting.
const freeTextConfidence = 0.6

// FoodSearchClient resolves nutrition from a free-text description, the
// last rung of the resolution ladder.
type FoodSearchClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ outbound.FoodSearchClient = (*FoodSearchClient)(nil)

// NewFoodSearchClient creates a free-text food search client.
func NewFoodSearchClient(cfg *config.NutritionConfig, metrics *monitoring.MetricsCollector, logger *zap.Logger) *FoodSearchClient {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &FoodSearchClient{
		baseURL: strings.TrimRight(cfg.FoodSearchBaseURL, "/"),
		apiKey:  cfg.FoodSearchAPIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(monitoring.InstrumentTransport(metrics, "food_search", nil)),
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger.Named("food-search-client"),
	}
}

// SearchFood returns the first plausible hit for query.
func (c *FoodSearchClient) SearchFood(ctx context.Context, query string) (*nutrition.Row, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewNutritionNotFoundError("empty query")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{"query": {query}}
	endpoint := c.baseURL + "/v1/foods/search?" + params.Encode()

	body, status, err := fetchJSON(ctx, c.httpClient, endpoint, c.apiKey, "food_search")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, apperrors.NewNutritionNotFoundError(query)
	}

	var decoded foodSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, apperrors.NewAppError(apperrors.CodeUpstream5xx,
			"Upstream service error",
			"food search returned an unparseable payload",
		).WithCause(err)
	}

	// Hits arrive in relevance order; take the first one that looks like
	// real label data.
	for _, food := range decoded.Foods {
		row := &nutrition.Row{
			Macros: nutrition.Macros{
				Kcal:    food.Kcal100g,
				Protein: food.Protein100g,
				Fat:     food.Fat100g,
				Carbs:   food.Carb100g,
			},
			FiberG:     food.Fiber100g,
			State:      nutrition.StateAsSold,
			Source:     nutrition.SourceFreeText,
			Confidence: freeTextConfidence,
		}
		if plausibleLabel(row) {
			c.logger.Debug("Free-text nutrition matched",
				zap.String("query", query),
				zap.String("description", food.Description))
			return row, nil
		}
	}

	return nil, apperrors.NewNutritionNotFoundError(query)
}
