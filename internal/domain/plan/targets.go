package plan

import (
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/nutrition"
)

// Slot is one eating occasion with its share of the daily contract.
type Slot struct {
	Type  MealType
	Share float64
}

// occasionSlots maps the profile's eating_occasions to daily shares.
// Shares sum to 1.0 per row; mains always dominate.
var occasionSlots = map[int][]Slot{
	3: {
		{MealBreakfast, 0.30},
		{MealLunch, 0.35},
		{MealDinner, 0.35},
	},
	4: {
		{MealBreakfast, 0.25},
		{MealLunch, 0.30},
		{MealDinner, 0.30},
		{MealSnack1, 0.15},
	},
	5: {
		{MealBreakfast, 0.25},
		{MealLunch, 0.30},
		{MealDinner, 0.30},
		{MealSnack1, 0.075},
		{MealSnack2, 0.075},
	},
}

// MealTarget is a per-occasion slice of the daily contract.
type MealTarget struct {
	Type       MealType
	Targets    nutrition.Macros
	Tolerances contract.Tolerances
}

// OccasionSlots returns the share table for the given occasion count.
func OccasionSlots(occasions int) ([]Slot, error) {
	slots, ok := occasionSlots[occasions]
	if !ok {
		return nil, ErrInvalidOccasions
	}
	out := make([]Slot, len(slots))
	copy(out, slots)
	return out, nil
}

// SplitTargets divides the daily contract across eating occasions. Snacks
// receive tolerances widened by the contract's snack factor; mains keep
// the contract's bands. The daily contract itself is not affected.
func SplitTargets(c contract.MacroContract, occasions int) ([]MealTarget, error) {
	slots, err := OccasionSlots(occasions)
	if err != nil {
		return nil, err
	}

	daily := c.Targets()
	targets := make([]MealTarget, 0, len(slots))
	for _, slot := range slots {
		tol := c.Tolerances
		if slot.Type.IsSnack() {
			tol = tol.Widen(tol.SnackFactor())
		}
		targets = append(targets, MealTarget{
			Type:       slot.Type,
			Targets:    daily.Scale(slot.Share),
			Tolerances: tol,
		})
	}
	return targets, nil
}
