package outbound

import (
	"context"

	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/domain/nutrition"
)

// TokenBucket grants market request tokens shared across instances. Take
// blocks until a token for store is granted or the wait budget runs out,
// failing with a RATE_LIMITED error in that case.
type TokenBucket interface {
	Take(ctx context.Context, store string) error
}

// MarketSearcher queries one supermarket's product search. Page is 1-based;
// the page size is fixed by the adapter. Transport failures come back
// mapped onto the upstream error taxonomy.
type MarketSearcher interface {
	Search(ctx context.Context, store, query string, page int) (results []market.SKUCandidate, total int, err error)
}

// BarcodeNutritionClient resolves per-100g nutrition by product barcode.
// A clean miss is a NUTRITION_NOT_FOUND error, not a nil row.
type BarcodeNutritionClient interface {
	FetchByBarcode(ctx context.Context, barcode string) (*nutrition.Row, error)
}

// FoodSearchClient resolves per-100g nutrition from a free-text food
// description, the last rung of the resolution ladder.
type FoodSearchClient interface {
	SearchFood(ctx context.Context, query string) (*nutrition.Row, error)
}

// SketchClient asks the language model for a meal plan blueprint.
type SketchClient interface {
	Sketch(ctx context.Context, req SketchRequest) (*MealSketch, error)
}

// DescriptionClient asks the language model for a short appetizing blurb
// for one solved meal. Failures degrade to empty descriptions upstream.
type DescriptionClient interface {
	Describe(ctx context.Context, req DescribeRequest) (string, error)
}

// SketchRequest carries everything the model needs to draft a blueprint.
// KnownIngredients nudges the model toward names the registry can map.
type SketchRequest struct {
	Contract         contract.MacroContract
	Days             int
	EatingOccasions  int
	DietaryTags      []string
	CuisinePrompt    string
	KnownIngredients []string
}

// DescribeRequest carries one solved meal for description enrichment.
type DescribeRequest struct {
	Title string
	Items []string
}

// MealSketch is the model's blueprint in its wire shape. Validation and
// gram conversion happen in the application layer; this is raw input.
type MealSketch struct {
	Days []SketchDay `json:"days"`
}

// SketchDay is one drafted day
type SketchDay struct {
	Day   int          `json:"day"`
	Meals []SketchMeal `json:"meals"`
}

// SketchMeal is one drafted meal
type SketchMeal struct {
	Type  string       `json:"type"`
	Title string       `json:"title"`
	Items []SketchItem `json:"items"`
}

// SketchItem is one drafted ingredient with its quantity hints
type SketchItem struct {
	Name       string  `json:"name"`
	QtyValue   float64 `json:"qty_value"`
	QtyUnit    string  `json:"qty_unit"`
	StateHint  string  `json:"state_hint,omitempty"`
	MethodHint string  `json:"method_hint,omitempty"`
	MinG       float64 `json:"min_g,omitempty"`
	MaxG       float64 `json:"max_g,omitempty"`
}
