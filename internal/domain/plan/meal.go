package plan

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/nutrition"
)

// Meal is one eating occasion: the sketched items, the per-occasion slice of
// the daily contract, and eventually the solver's portions and the verified
// macros.
type Meal struct {
	ID          uuid.UUID           `json:"meal_id"`
	Type        MealType            `json:"type"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Targets     nutrition.Macros    `json:"targets"`
	Tolerances  contract.Tolerances `json:"tolerances"`
	Items       []PlannedIngredient `json:"items"`
	Solution    []Portion           `json:"solution,omitempty"`
	FinalMacros nutrition.Macros    `json:"final_macros"`
}

// NewMeal creates a meal with validation. Targets and tolerances are
// assigned later from the occasion split.
func NewMeal(mealType MealType, title string, items []PlannedIngredient) (Meal, error) {
	if err := mealType.Validate(); err != nil {
		return Meal{}, err
	}
	if title == "" {
		return Meal{}, ErrEmptyTitle
	}
	if len(items) == 0 {
		return Meal{}, fmt.Errorf("%w: %s", ErrNoItems, title)
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return Meal{}, err
		}
	}

	return Meal{
		ID:    uuid.New(),
		Type:  mealType,
		Title: title,
		Items: items,
	}, nil
}

// ItemByCID returns the first item mapped to the given CID.
func (m Meal) ItemByCID(cid catalog.CID) (PlannedIngredient, bool) {
	for _, item := range m.Items {
		if item.CID == cid {
			return item, true
		}
	}
	return PlannedIngredient{}, false
}

// MappedItems returns the items that resolved to a CID.
func (m Meal) MappedItems() []PlannedIngredient {
	out := make([]PlannedIngredient, 0, len(m.Items))
	for _, item := range m.Items {
		if item.Mapped() {
			out = append(out, item)
		}
	}
	return out
}

// applySolution records the solver's portions for this meal. Every portion
// must reference a mapped item; zero-gram portions are kept so the solution
// stays in one-to-one correspondence with the mapped items.
func (m *Meal) applySolution(portions []Portion, final nutrition.Macros) error {
	for _, p := range portions {
		if _, ok := m.ItemByCID(p.CID); !ok {
			return fmt.Errorf("%w: %s in meal %q", ErrUnknownPortionCID, p.CID, m.Title)
		}
		if p.Grams < 0 {
			return fmt.Errorf("%w: %s grams=%d", ErrInvalidBounds, p.CID, p.Grams)
		}
	}
	m.Solution = portions
	m.FinalMacros = final
	return nil
}

// DayPlan is the ordered list of meals for one day.
type DayPlan struct {
	Day   int    `json:"day"`
	Meals []Meal `json:"meals"`
}

// NewDayPlan creates a day with validation. Day numbers are 1-based.
func NewDayPlan(day int, meals []Meal) (DayPlan, error) {
	if day < 1 {
		return DayPlan{}, fmt.Errorf("%w: %d", ErrDayNotFound, day)
	}
	if len(meals) == 0 {
		return DayPlan{}, fmt.Errorf("%w: day %d", ErrNoMeals, day)
	}
	return DayPlan{Day: day, Meals: meals}, nil
}

// Totals sums the verified macros across the day's meals.
func (d DayPlan) Totals() nutrition.Macros {
	var totals nutrition.Macros
	for _, m := range d.Meals {
		totals = totals.Add(m.FinalMacros)
	}
	return totals
}

// mealIndex returns the position of the meal with the given ID, or -1.
func (d DayPlan) mealIndex(id uuid.UUID) int {
	for i := range d.Meals {
		if d.Meals[i].ID == id {
			return i
		}
	}
	return -1
}
