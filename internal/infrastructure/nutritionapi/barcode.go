package nutritionapi

import (
	"context"
	"encoding/json"
	"fmt"
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

// Wire shapes for the product lookup, OpenFoodFacts style.
type offNutriments struct {
	EnergyKcal100g float64 `json:"energy-kcal_100g"`
	Proteins100g   float64 `json:"proteins_100g"`
	Fat100g        float64 `json:"fat_100g"`
	Carbs100g      float64 `json:"carbohydrates_100g"`
	Fiber100g      float64 `json:"fiber_100g"`
}

type offProduct struct {
	Nutriments offNutriments `json:"nutriments"`
}

type offResponse struct {
	Status  int        `json:"status"`
	Product offProduct `json:"product"`
}

// barcodeConfidence reflects that label data is usually right but keyed to
// the exact product, not the generic ingredient.
const barcodeConfidence = 0.85

// BarcodeClient resolves per-100g nutrition from a product barcode.
type BarcodeClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ outbound.BarcodeNutritionClient = (*BarcodeClient)(nil)

// NewBarcodeClient creates a barcode lookup client.
func NewBarcodeClient(cfg *config.NutritionConfig, metrics *monitoring.MetricsCollector, logger *zap.Logger) *BarcodeClient {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &BarcodeClient{
		baseURL: strings.TrimRight(cfg.BarcodeBaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(monitoring.InstrumentTransport(metrics, "barcode", nil)),
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger.Named("barcode-client"),
	}
}

// FetchByBarcode looks the product up and maps its label onto a row. A
// clean miss, an unknown status, or junk label data all come back as
// NUTRITION_NOT_FOUND so the resolver falls through to the next source.
func (c *BarcodeClient) FetchByBarcode(ctx context.Context, barcode string) (*nutrition.Row, error) {
	if barcode == "" {
		return nil, apperrors.NewNutritionNotFoundError("empty barcode")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(barcode))
	body, status, err := fetchJSON(ctx, c.httpClient, endpoint, "", "barcode")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, apperrors.NewNutritionNotFoundError(barcode)
	}

	var decoded offResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, apperrors.NewAppError(apperrors.CodeUpstream5xx,
			"Upstream service error",
			"barcode lookup returned an unparseable payload",
		).WithCause(err)
	}
	if decoded.Status != 1 {
		return nil, apperrors.NewNutritionNotFoundError(barcode)
	}

	n := decoded.Product.Nutriments
	row := &nutrition.Row{
		Macros: nutrition.Macros{
			Kcal:    n.EnergyKcal100g,
			Protein: n.Proteins100g,
			Fat:     n.Fat100g,
			Carbs:   n.Carbs100g,
		},
		FiberG:     n.Fiber100g,
		State:      nutrition.StateAsSold,
		Source:     nutrition.SourceBarcode,
		Confidence: barcodeConfidence,
	}
	if !plausibleLabel(row) {
		c.logger.Debug("Barcode label rejected as implausible",
			zap.String("barcode", barcode),
			zap.Float64("kcal", row.Kcal))
		return nil, apperrors.NewNutritionNotFoundError(barcode)
	}

	return row, nil
}
