package plan

import (
	"fmt"

	"github.com/macrocart/v2/internal/domain/catalog"
)

// Value Objects - Immutable objects that describe aspects of the domain

// MealType identifies an eating occasion within a day.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack1    MealType = "snack_1"
	MealSnack2    MealType = "snack_2"
	// MealBooster is the solver-injected high-carb meal. Never produced by
	// the sketch; appended at most once per day.
	MealBooster MealType = "booster"
)

// Validate validates the meal type.
func (t MealType) Validate() error {
	switch t {
	case MealBreakfast, MealLunch, MealDinner, MealSnack1, MealSnack2, MealBooster:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMealType, t)
}

// IsSnack reports whether the occasion is a snack rather than a main.
// Snacks carry widened tolerances.
func (t MealType) IsSnack() bool {
	return t == MealSnack1 || t == MealSnack2 || t == MealBooster
}

// QtyUnit is the unit attached to a sketched ingredient quantity.
type QtyUnit string

const (
	UnitGram       QtyUnit = "g"
	UnitMilliliter QtyUnit = "ml"
	UnitSlice      QtyUnit = "slice"
	UnitEgg        QtyUnit = "egg"
	UnitMedium     QtyUnit = "medium"
	UnitLarge      QtyUnit = "large"
	UnitTablespoon QtyUnit = "tbsp"
	UnitTeaspoon   QtyUnit = "tsp"
	UnitCup        QtyUnit = "cup"
	UnitPiece      QtyUnit = "piece"
)

// unitGrams converts count and spoon units to grams. Milliliter-based units
// (ml, tbsp, tsp, cup) are listed at water density; Quantity.Grams applies
// the ingredient density on top.
var unitGrams = map[QtyUnit]float64{
	UnitSlice:      36,
	UnitEgg:        55,
	UnitMedium:     120,
	UnitLarge:      150,
	UnitTablespoon: 15,
	UnitTeaspoon:   5,
	UnitCup:        240,
	UnitPiece:      100,
}

// Validate validates the quantity unit.
func (u QtyUnit) Validate() error {
	if u == UnitGram || u == UnitMilliliter {
		return nil
	}
	if _, ok := unitGrams[u]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidUnit, u)
}

// Volumetric reports whether the unit measures volume and therefore needs a
// density to convert to grams.
func (u QtyUnit) Volumetric() bool {
	switch u {
	case UnitMilliliter, UnitTablespoon, UnitTeaspoon, UnitCup:
		return true
	}
	return false
}

// StateHint describes the state the sketched quantity refers to.
type StateHint string

const (
	StateDry    StateHint = "dry"
	StateRaw    StateHint = "raw"
	StateCooked StateHint = "cooked"
	StateAsPack StateHint = "as_pack"
)

// Validate validates the state hint. Empty is allowed; the sketch may omit it.
func (s StateHint) Validate() error {
	switch s {
	case "", StateDry, StateRaw, StateCooked, StateAsPack:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidStateHint, s)
}

// MethodHint describes the sketched cooking method.
type MethodHint string

const (
	MethodBoiled   MethodHint = "boiled"
	MethodPanFried MethodHint = "pan_fried"
	MethodGrilled  MethodHint = "grilled"
	MethodBaked    MethodHint = "baked"
	MethodSteamed  MethodHint = "steamed"
)

// Validate validates the method hint. Empty is allowed.
func (m MethodHint) Validate() error {
	switch m {
	case "", MethodBoiled, MethodPanFried, MethodGrilled, MethodBaked, MethodSteamed:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMethodHint, m)
}

// Quantity is a sketched amount with its unit.
type Quantity struct {
	Value float64 `json:"qty_value"`
	Unit  QtyUnit `json:"qty_unit"`
}

// Validate validates the quantity.
func (q Quantity) Validate() error {
	if q.Value <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, q.Value)
	}
	return q.Unit.Validate()
}

// Grams converts the quantity to grams. densityGPerML applies to volumetric
// units only; non-positive densities fall back to 1.0 (water).
func (q Quantity) Grams(densityGPerML float64) float64 {
	if q.Unit == UnitGram {
		return q.Value
	}
	if q.Unit.Volumetric() {
		if densityGPerML <= 0 {
			densityGPerML = 1.0
		}
		ml := q.Value
		if g, ok := unitGrams[q.Unit]; ok {
			ml = q.Value * g
		}
		return ml * densityGPerML
	}
	return q.Value * unitGrams[q.Unit]
}

// Portion is one solved ingredient amount. Grams are integers by the solver's
// rounding rules.
type Portion struct {
	CID   catalog.CID `json:"cid"`
	Grams int         `json:"grams"`
}

// PlannedIngredient is a sketched meal item, augmented in place as the
// pipeline resolves it: mapping fills CID and NormalizedKey, bound resolution
// fills RequiredG/MinG/MaxG.
type PlannedIngredient struct {
	DisplayName string     `json:"display_name"`
	Quantity    Quantity   `json:"quantity"`
	StateHint   StateHint  `json:"state_hint,omitempty"`
	MethodHint  MethodHint `json:"method_hint,omitempty"`

	CID           catalog.CID `json:"cid,omitempty"`
	NormalizedKey string      `json:"normalized_key,omitempty"`
	RequiredG     float64     `json:"required_grams,omitempty"`
	MinG          float64     `json:"min_g,omitempty"`
	MaxG          float64     `json:"max_g,omitempty"`
}

// Validate validates the sketched fields of the item.
func (i PlannedIngredient) Validate() error {
	if i.DisplayName == "" {
		return ErrEmptyIngredientName
	}
	if err := i.Quantity.Validate(); err != nil {
		return fmt.Errorf("%s: %w", i.DisplayName, err)
	}
	if err := i.StateHint.Validate(); err != nil {
		return fmt.Errorf("%s: %w", i.DisplayName, err)
	}
	if err := i.MethodHint.Validate(); err != nil {
		return fmt.Errorf("%s: %w", i.DisplayName, err)
	}
	if i.MinG < 0 || i.MaxG < 0 || (i.MaxG > 0 && i.MinG > i.MaxG) {
		return fmt.Errorf("%w: %s min=%v max=%v", ErrInvalidBounds, i.DisplayName, i.MinG, i.MaxG)
	}
	return nil
}

// Mapped reports whether the item has been assigned a CID.
func (i PlannedIngredient) Mapped() bool {
	return i.CID != ""
}

// ResolveBounds fills RequiredG from the quantity and defaults missing gram
// bounds to half and double the requirement. Already-set bounds are kept;
// RequiredG is clamped into them.
func (i *PlannedIngredient) ResolveBounds(densityGPerML float64) {
	i.RequiredG = i.Quantity.Grams(densityGPerML)
	if i.MinG == 0 {
		i.MinG = i.RequiredG * 0.5
	}
	if i.MaxG == 0 {
		i.MaxG = i.RequiredG * 2.0
	}
	if i.RequiredG < i.MinG {
		i.RequiredG = i.MinG
	}
	if i.RequiredG > i.MaxG {
		i.RequiredG = i.MaxG
	}
}
