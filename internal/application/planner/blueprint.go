package planner

import (
	"fmt"
	"strings"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/domain/plan"
	"github.com/macrocart/v2/internal/ports/inbound"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
)

// buildPlan turns the model's raw sketch into the domain aggregate:
// structural validation with precise paths, CID assignment, gram bound
// resolution and per-occasion target assignment. Names without a canonical
// entry are returned for surfacing as per-ingredient failures; they never
// fail the build on their own.
func buildPlan(c contract.MacroContract, cmd inbound.GeneratePlanCommand, sketch *outbound.MealSketch) (*plan.MealPlan, []catalog.Unmapped, error) {
	if sketch == nil || len(sketch.Days) == 0 {
		return nil, nil, apperrors.NewBlueprintInvalidError("days", "blueprint has no days")
	}
	if len(sketch.Days) != cmd.Days {
		return nil, nil, apperrors.NewBlueprintInvalidError("days",
			fmt.Sprintf("expected %d days, got %d", cmd.Days, len(sketch.Days)))
	}

	slots, err := plan.OccasionSlots(cmd.EatingOccasions)
	if err != nil {
		return nil, nil, apperrors.NewValidationError(err.Error())
	}

	var unmapped []catalog.Unmapped
	days := make([]plan.DayPlan, 0, len(sketch.Days))
	for i, sd := range sketch.Days {
		day, dayUnmapped, err := buildDay(i, sd, slots)
		if err != nil {
			return nil, nil, err
		}
		unmapped = append(unmapped, dayUnmapped...)
		days = append(days, day)
	}

	p, err := plan.NewMealPlan(c, days)
	if err != nil {
		return nil, nil, apperrors.NewBlueprintInvalidError("days", err.Error())
	}

	targets, err := plan.SplitTargets(c, cmd.EatingOccasions)
	if err != nil {
		return nil, nil, apperrors.NewValidationError(err.Error())
	}
	if err := p.AssignTargets(targets); err != nil {
		return nil, nil, apperrors.Wrap(err, "assigning occasion targets")
	}
	return p, unmapped, nil
}

// buildDay validates one sketched day. Its meals must cover the plan's
// eating occasions exactly: every slot once, nothing extra, no boosters.
func buildDay(i int, sd outbound.SketchDay, slots []plan.Slot) (plan.DayPlan, []catalog.Unmapped, error) {
	path := fmt.Sprintf("days[%d]", i)
	if sd.Day < 1 {
		return plan.DayPlan{}, nil, apperrors.NewBlueprintInvalidError(path+".day",
			fmt.Sprintf("day number %d is not positive", sd.Day))
	}
	if len(sd.Meals) == 0 {
		return plan.DayPlan{}, nil, apperrors.NewBlueprintInvalidError(path+".meals", "day has no meals")
	}

	want := make(map[plan.MealType]int, len(slots))
	for _, slot := range slots {
		want[slot.Type]++
	}

	var unmapped []catalog.Unmapped
	meals := make([]plan.Meal, 0, len(sd.Meals))
	for j, sm := range sd.Meals {
		meal, mealUnmapped, err := buildMeal(fmt.Sprintf("%s.meals[%d]", path, j), sm)
		if err != nil {
			return plan.DayPlan{}, nil, err
		}
		if want[meal.Type] == 0 {
			return plan.DayPlan{}, nil, apperrors.NewBlueprintInvalidError(
				fmt.Sprintf("%s.meals[%d].type", path, j),
				fmt.Sprintf("unexpected occasion %q for this plan", meal.Type))
		}
		want[meal.Type]--
		unmapped = append(unmapped, mealUnmapped...)
		meals = append(meals, meal)
	}
	for _, slot := range slots {
		if want[slot.Type] > 0 {
			return plan.DayPlan{}, nil, apperrors.NewBlueprintInvalidError(path+".meals",
				fmt.Sprintf("missing occasion %q", slot.Type))
		}
	}

	day, err := plan.NewDayPlan(sd.Day, meals)
	if err != nil {
		return plan.DayPlan{}, nil, apperrors.NewBlueprintInvalidError(path, err.Error())
	}
	return day, unmapped, nil
}

func buildMeal(path string, sm outbound.SketchMeal) (plan.Meal, []catalog.Unmapped, error) {
	mealType := plan.MealType(strings.ToLower(strings.TrimSpace(sm.Type)))
	if err := mealType.Validate(); err != nil || mealType == plan.MealBooster {
		return plan.Meal{}, nil, apperrors.NewBlueprintInvalidError(path+".type",
			fmt.Sprintf("unknown meal type %q", sm.Type))
	}
	if strings.TrimSpace(sm.Title) == "" {
		return plan.Meal{}, nil, apperrors.NewBlueprintInvalidError(path+".title", "meal has no title")
	}
	if len(sm.Items) == 0 {
		return plan.Meal{}, nil, apperrors.NewBlueprintInvalidError(path+".items", "meal has no ingredients")
	}

	var unmapped []catalog.Unmapped
	items := make([]plan.PlannedIngredient, 0, len(sm.Items))
	for k, si := range sm.Items {
		item, err := buildItem(fmt.Sprintf("%s.items[%d]", path, k), si)
		if err != nil {
			return plan.Meal{}, nil, err
		}
		if m, mapErr := catalog.MapIngredient(item.DisplayName); mapErr != nil {
			unmapped = append(unmapped, catalog.Unmapped{
				Name:          item.DisplayName,
				NormalizedKey: catalog.Normalize(item.DisplayName),
				Reason:        mapErr.Error(),
			})
		} else {
			item.CID = m.CID
			item.NormalizedKey = m.NormalizedKey
		}
		item.ResolveBounds(itemDensity(item))
		items = append(items, item)
	}

	meal, err := plan.NewMeal(mealType, strings.TrimSpace(sm.Title), items)
	if err != nil {
		return plan.Meal{}, nil, apperrors.NewBlueprintInvalidError(path, err.Error())
	}
	return meal, unmapped, nil
}

func buildItem(path string, si outbound.SketchItem) (plan.PlannedIngredient, error) {
	name := strings.TrimSpace(si.Name)
	if name == "" {
		return plan.PlannedIngredient{}, apperrors.NewBlueprintInvalidError(path+".name", "ingredient has no name")
	}
	if si.QtyValue <= 0 {
		return plan.PlannedIngredient{}, apperrors.NewBlueprintInvalidError(path+".qty_value",
			fmt.Sprintf("quantity %v is not positive", si.QtyValue))
	}
	unit := plan.QtyUnit(strings.ToLower(strings.TrimSpace(si.QtyUnit)))
	if err := unit.Validate(); err != nil {
		return plan.PlannedIngredient{}, apperrors.NewBlueprintInvalidError(path+".qty_unit",
			fmt.Sprintf("unknown unit %q", si.QtyUnit))
	}
	state := plan.StateHint(strings.ToLower(strings.TrimSpace(si.StateHint)))
	if err := state.Validate(); err != nil {
		return plan.PlannedIngredient{}, apperrors.NewBlueprintInvalidError(path+".state_hint",
			fmt.Sprintf("unknown state %q", si.StateHint))
	}
	method := plan.MethodHint(strings.ToLower(strings.TrimSpace(si.MethodHint)))
	if err := method.Validate(); err != nil {
		return plan.PlannedIngredient{}, apperrors.NewBlueprintInvalidError(path+".method_hint",
			fmt.Sprintf("unknown method %q", si.MethodHint))
	}
	if si.MinG < 0 || si.MaxG < 0 || (si.MaxG > 0 && si.MinG > si.MaxG) {
		return plan.PlannedIngredient{}, apperrors.NewBlueprintInvalidError(path+".min_g",
			fmt.Sprintf("invalid gram bounds [%v, %v]", si.MinG, si.MaxG))
	}

	return plan.PlannedIngredient{
		DisplayName: name,
		Quantity:    plan.Quantity{Value: si.QtyValue, Unit: unit},
		StateHint:   state,
		MethodHint:  method,
		MinG:        si.MinG,
		MaxG:        si.MaxG,
	}, nil
}

// itemDensity finds the ml-to-g density for volumetric quantities. Only
// hot-table rows carry densities; everything else converts at water.
func itemDensity(item plan.PlannedIngredient) float64 {
	if !item.Quantity.Unit.Volumetric() || !item.Mapped() {
		return 0
	}
	if row, ok := nutrition.LookupHot(string(item.CID)); ok {
		return row.DensityGPerML
	}
	return 0
}
