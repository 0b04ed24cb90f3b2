// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"

	"github.com/google/uuid"
	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/domain/plan"
	"github.com/macrocart/v2/pkg/logger"
)

// PlannerService defines the use cases for meal plan generation
// This is the primary port that HTTP handlers and other driving adapters will use
type PlannerService interface {
	// GeneratePlan runs the whole pipeline for one profile and returns the
	// assembled plan. Failures come back as *errors.AppError carrying the
	// failing phase and the captured log stream.
	GeneratePlan(ctx context.Context, cmd GeneratePlanCommand) (*PlanResponse, error)

	// StreamPlan runs the same pipeline while forwarding every progress
	// entry to sink as it happens. The terminal entry carries the tag
	// "finalData" with the success payload in Data; a failed run forwards
	// the failure payload instead. Sink calls are serialized, never
	// concurrent.
	StreamPlan(ctx context.Context, cmd GeneratePlanCommand, sink ProgressSink) error
}

// ProgressSink receives progress entries during a streaming run. Returning
// an error stops the stream; the run itself keeps its own result.
type ProgressSink func(entry logger.Entry) error

// Command objects for operations

// GeneratePlanCommand contains the profile driving one plan run
type GeneratePlanCommand struct {
	HeightCm        float64
	WeightKg        float64
	Age             int
	Sex             contract.Sex
	Activity        contract.Activity
	Goal            contract.Goal
	DietaryTags     []string
	CuisinePrompt   string
	Days            int
	EatingOccasions int
	Store           string
	PreferredStores []string
}

// Profile converts the command into the read-only domain profile.
func (c GeneratePlanCommand) Profile() contract.Profile {
	return contract.Profile{
		HeightCm:        c.HeightCm,
		WeightKg:        c.WeightKg,
		Age:             c.Age,
		Sex:             c.Sex,
		Activity:        c.Activity,
		Goal:            c.Goal,
		DietaryTags:     c.DietaryTags,
		CuisinePrompt:   c.CuisinePrompt,
		Days:            c.Days,
		EatingOccasions: c.EatingOccasions,
		Store:           c.Store,
		PreferredStores: c.PreferredStores,
	}
}

// Response DTOs

// PlanResponse is the success payload for a completed run
type PlanResponse struct {
	Contract          contract.MacroContract                    `json:"contract"`
	MealPlan          []DayPlanDTO                              `json:"mealPlan"`
	UniqueIngredients []UniqueIngredientDTO                     `json:"uniqueIngredients"`
	Results           map[catalog.CID]market.ResolvedIngredient `json:"results"`
	Ledger            nutrition.Macros                          `json:"ledger"`
	ContractSatisfied ContractVerdictDTO                        `json:"contractSatisfied"`
	Logs              []logger.Entry                            `json:"logs"`
}

// PlanFailure is the failure payload for 5xx plan errors
type PlanFailure struct {
	Error  string         `json:"error"`
	Reason string         `json:"reason"`
	Logs   []logger.Entry `json:"logs"`
}

// DayPlanDTO is one solved day
type DayPlanDTO struct {
	Day   int       `json:"day"`
	Meals []MealDTO `json:"meals"`
}

// MealDTO is one solved meal with its final portions
type MealDTO struct {
	MealID      uuid.UUID        `json:"meal_id"`
	Type        plan.MealType    `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Items       []PortionDTO     `json:"items"`
	FinalMacros nutrition.Macros `json:"final_macros"`
}

// PortionDTO is one purchased ingredient portion inside a meal
type PortionDTO struct {
	CID         catalog.CID `json:"cid"`
	DisplayName string      `json:"display_name"`
	Grams       int         `json:"grams"`
}

// UniqueIngredientDTO aggregates one ingredient across the whole plan
type UniqueIngredientDTO struct {
	CID           catalog.CID          `json:"cid"`
	DisplayName   string               `json:"display_name"`
	ChosenSKU     *market.SKUCandidate `json:"chosen_sku,omitempty"`
	Confidence    float64              `json:"confidence"`
	TotalGrams    int                  `json:"total_grams"`
	QuantityUnits string               `json:"quantity_units"`
}

// ContractVerdictDTO reports the ledger-vs-contract judgement. For multi-day
// plans WorstDay names the day with the largest drift; Violations belong to
// that day.
type ContractVerdictDTO struct {
	OK         bool                 `json:"ok"`
	WorstDay   int                  `json:"worst_day,omitempty"`
	Violations []contract.Violation `json:"violations,omitempty"`
}
