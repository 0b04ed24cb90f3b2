package nutrition

import "fmt"

// State describes the physical state the per-100g figures refer to.
type State string

const (
	StateRaw    State = "raw"
	StateDry    State = "dry"
	StateCooked State = "cooked"
	StateAsSold State = "as_sold"
	StateLiquid State = "liquid"
	StatePowder State = "powder"
)

// Validate checks if the state is valid
func (s State) Validate() error {
	switch s {
	case StateRaw, StateDry, StateCooked, StateAsSold, StateLiquid, StatePowder:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// Source identifies where a row came from, in resolution order.
type Source string

const (
	SourceHotTable  Source = "hot_table"
	SourceCanonical Source = "canonical"
	SourceBarcode   Source = "barcode"
	SourceFreeText  Source = "free_text"
	SourceRegistry  Source = "registry_fallback"
)

// Row is a per-100g nutrition record. Rows are immutable once built; every
// constructor path runs Validate before handing one out.
type Row struct {
	Macros
	FiberG        float64 `json:"fiber_g"`
	State         State   `json:"state"`
	YieldFactor   float64 `json:"yield_factor,omitempty"`
	DensityGPerML float64 `json:"density_g_per_ml,omitempty"`
	Source        Source  `json:"source"`
	Confidence    float64 `json:"confidence"`
}

// MaxMacroMassPer100g bounds p+f+c for a physically plausible row.
const MaxMacroMassPer100g = 105.0

// KcalBalanceTolerance is the maximum relative gap between stored and
// derived energy accepted by the hot-table audit and the ingestion gate.
const KcalBalanceTolerance = 0.05

// Validate enforces the ingestion invariants: kcal in range, kcal within 5%
// of the 4/4/9 derivation, and macro mass at most 105g per 100g.
func (r Row) Validate() error {
	if err := r.State.Validate(); err != nil {
		return err
	}
	if r.Kcal < 0 || r.Kcal > 900 {
		return fmt.Errorf("%w: kcal %.1f outside [0, 900]", ErrRowRejected, r.Kcal)
	}
	if r.Protein < 0 || r.Fat < 0 || r.Carbs < 0 || r.FiberG < 0 {
		return fmt.Errorf("%w: negative macro value", ErrRowRejected)
	}
	if mass := r.Protein + r.Fat + r.Carbs; mass > MaxMacroMassPer100g {
		return fmt.Errorf("%w: macro mass %.1fg exceeds %.0fg per 100g", ErrRowRejected, mass, MaxMacroMassPer100g)
	}
	if !r.KcalBalanced(KcalBalanceTolerance) {
		return fmt.Errorf("%w: kcal %.1f deviates %.0f%% from macros", ErrRowRejected, r.Kcal, r.KcalImbalance()*100)
	}
	return nil
}

// GramsFromML converts a milliliter quantity using the row's density.
// Rows without a density treat liquids as water.
func (r Row) GramsFromML(ml float64) float64 {
	density := r.DensityGPerML
	if density <= 0 {
		density = 1.0
	}
	return ml * density
}

// CookedFrom converts dry grams to cooked grams using the yield factor.
// Rows without a yield factor pass grams through unchanged.
func (r Row) CookedFrom(dryGrams float64) float64 {
	if r.YieldFactor <= 0 {
		return dryGrams
	}
	return dryGrams * r.YieldFactor
}
