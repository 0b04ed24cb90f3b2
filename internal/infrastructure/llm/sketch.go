package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/macrocart/v2/internal/domain/plan"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/infrastructure/monitoring"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"go.uber.org/zap"
)

// SketchClient asks the model for a raw plan blueprint. It owns only the
// wire exchange and the parse into the sketch shape; referential integrity
// and gram conversion happen in the planner.
type SketchClient struct {
	chat
}

var _ outbound.SketchClient = (*SketchClient)(nil)

// NewSketchClient creates the sketch client with the long call budget.
func NewSketchClient(cfg *config.LLMConfig, metrics *monitoring.MetricsCollector, logger *zap.Logger) *SketchClient {
	return &SketchClient{
		chat: newChat(cfg, cfg.SketchTimeout, metrics, logger.Named("sketch-client")),
	}
}

const sketchSystemPrompt = `You are a meal planning assistant. Draft realistic meal plans from everyday supermarket ingredients.

CRITICAL: Respond with ONLY a valid JSON object in this exact format:
{
  "days": [
    {
      "day": 1,
      "meals": [
        {
          "type": "breakfast",
          "title": "Oat and berry bowl",
          "items": [
            {
              "name": "rolled oats",
              "qty_value": 90,
              "qty_unit": "g",
              "state_hint": "dry",
              "method_hint": null,
              "min_g": 60,
              "max_g": 150
            }
          ]
        }
      ]
    }
  ]
}

Rules:
- qty_unit is one of: g, ml, slice, egg, medium, large, tbsp, tsp, cup, piece. Prefer grams.
- state_hint is one of: dry, raw, cooked, as_pack. method_hint is one of: boiled, pan_fried, grilled, baked, steamed, or null.
- min_g and max_g bound how far a portion may be scaled. Keep them realistic for the ingredient.
- Every ingredient name must be a plain generic food name, no brands.`

// buildSketchSystemPrompt appends the request constraints to the schema
// instructions.
func (c *SketchClient) buildSketchSystemPrompt(req outbound.SketchRequest) string {
	prompt := sketchSystemPrompt

	if slots, err := plan.OccasionSlots(req.EatingOccasions); err == nil {
		types := make([]string, len(slots))
		for i, slot := range slots {
			types[i] = string(slot.Type)
		}
		prompt += fmt.Sprintf("\n- Each day has exactly these meal types in order: %s.", strings.Join(types, ", "))
	}
	if len(req.DietaryTags) > 0 {
		prompt += fmt.Sprintf("\n- Dietary restrictions: %s.", strings.Join(req.DietaryTags, ", "))
	}
	if len(req.KnownIngredients) > 0 {
		prompt += fmt.Sprintf("\n- Choose ingredients from this vocabulary wherever possible: %s.",
			strings.Join(req.KnownIngredients, ", "))
	}

	prompt += "\n\nRemember: Respond with ONLY valid JSON. No additional text, explanations, or formatting."
	return prompt
}

func (c *SketchClient) buildSketchUserPrompt(req outbound.SketchRequest) string {
	prompt := fmt.Sprintf(
		"Draft a %d-day meal plan with %d eating occasions per day.\nDaily targets: %.0f kcal, %.0f g protein, %.0f g fat, %.0f g carbohydrate.",
		req.Days, req.EatingOccasions,
		req.Contract.Kcal, req.Contract.ProteinG, req.Contract.FatG, req.Contract.CarbG)

	if req.CuisinePrompt != "" {
		prompt += fmt.Sprintf("\nStyle preference: %s", req.CuisinePrompt)
	}
	return prompt
}

// Sketch runs one blueprint exchange with the model.
func (c *SketchClient) Sketch(ctx context.Context, req outbound.SketchRequest) (*outbound.MealSketch, error) {
	response, err := c.complete(ctx, c.buildSketchSystemPrompt(req), c.buildSketchUserPrompt(req))
	if err != nil {
		return nil, err
	}

	jsonStr, ok := extractJSON(response)
	if !ok {
		return nil, apperrors.NewBlueprintInvalidError("$", "no JSON object in model response")
	}

	var sketch outbound.MealSketch
	if err := json.Unmarshal([]byte(jsonStr), &sketch); err != nil {
		c.logger.Warn("Model emitted malformed blueprint JSON",
			zap.Error(err),
			zap.String("payload", jsonStr[:min(len(jsonStr), 500)]))
		return nil, apperrors.NewBlueprintInvalidError("$", "blueprint JSON does not match the schema").WithCause(err)
	}

	meals := 0
	for _, day := range sketch.Days {
		meals += len(day.Meals)
	}
	c.logger.Info("Meal sketch generated",
		zap.Int("days", len(sketch.Days)),
		zap.Int("meals", meals))

	return &sketch, nil
}
