package contract

import (
	"fmt"
	"math"

	"github.com/macrocart/v2/internal/domain/nutrition"
)

// defaultSnackWidening applies when a contract does not set its own.
const defaultSnackWidening = 1.25

// Tolerances are the per-macro acceptance bands, expressed as fractions.
// SnackWidening is how much looser snack occasions are than mains.
type Tolerances struct {
	KcalPct       float64 `json:"kcal_pct"`
	ProteinPct    float64 `json:"protein_pct"`
	FatPct        float64 `json:"fat_pct"`
	CarbPct       float64 `json:"carb_pct"`
	CarbFloorPct  float64 `json:"carb_floor_pct"`
	SnackWidening float64 `json:"snack_widening,omitempty"`
}

// Widen returns the tolerances scaled by factor, for snack occasions that
// accept looser bands than mains.
func (t Tolerances) Widen(factor float64) Tolerances {
	return Tolerances{
		KcalPct:       t.KcalPct * factor,
		ProteinPct:    t.ProteinPct * factor,
		FatPct:        t.FatPct * factor,
		CarbPct:       t.CarbPct * factor,
		CarbFloorPct:  t.CarbFloorPct,
		SnackWidening: t.SnackWidening,
	}
}

// SnackFactor returns the widening for snack occasions.
func (t Tolerances) SnackFactor() float64 {
	if t.SnackWidening > 0 {
		return t.SnackWidening
	}
	return defaultSnackWidening
}

// HardCaps are absolute bounds the ledger must respect regardless of the
// percentage tolerances.
type HardCaps struct {
	ProteinMaxG float64 `json:"protein_max_g"`
	FatMaxG     float64 `json:"fat_max_g"`
	CarbMinG    float64 `json:"carb_min_g"`
}

// MacroContract is the daily target the whole pipeline optimizes toward.
// Immutable once built.
type MacroContract struct {
	Kcal       float64    `json:"kcal"`
	ProteinG   float64    `json:"protein_g"`
	FatG       float64    `json:"fat_g"`
	CarbG      float64    `json:"carb_g"`
	Tolerances Tolerances `json:"tolerances"`
	HardCaps   HardCaps   `json:"hard_caps"`

	// Notes records soft-floor observations. Informational only.
	Notes []string `json:"notes,omitempty"`
}

// Targets returns the contract as a macro tuple.
func (c MacroContract) Targets() nutrition.Macros {
	return nutrition.Macros{Kcal: c.Kcal, Protein: c.ProteinG, Fat: c.FatG, Carbs: c.CarbG}
}

// Violation is one failed check from the contract predicate.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
	Limit   float64       `json:"limit"`
	Actual  float64       `json:"actual"`
}

// Check judges ledger totals against the contract. Hard caps are evaluated
// first and produce fatal codes; percentage tolerances follow. The returned
// slice is empty when the contract is satisfied.
func (c MacroContract) Check(totals nutrition.Macros) []Violation {
	var out []Violation

	if totals.Carbs < c.HardCaps.CarbMinG {
		out = append(out, Violation{
			Code:    ViolationCarbsTooLow,
			Message: fmt.Sprintf("carbs %.1fg below hard floor %.1fg", totals.Carbs, c.HardCaps.CarbMinG),
			Limit:   c.HardCaps.CarbMinG,
			Actual:  totals.Carbs,
		})
	}
	if totals.Protein > c.HardCaps.ProteinMaxG {
		out = append(out, Violation{
			Code:    ViolationProteinTooHigh,
			Message: fmt.Sprintf("protein %.1fg above hard cap %.1fg", totals.Protein, c.HardCaps.ProteinMaxG),
			Limit:   c.HardCaps.ProteinMaxG,
			Actual:  totals.Protein,
		})
	}
	if totals.Fat > c.HardCaps.FatMaxG {
		out = append(out, Violation{
			Code:    ViolationFatTooHigh,
			Message: fmt.Sprintf("fat %.1fg above hard cap %.1fg", totals.Fat, c.HardCaps.FatMaxG),
			Limit:   c.HardCaps.FatMaxG,
			Actual:  totals.Fat,
		})
	}

	out = appendDrift(out, ViolationKcalDrift, "kcal", totals.Kcal, c.Kcal, c.Tolerances.KcalPct)
	out = appendDrift(out, ViolationProteinDrift, "protein", totals.Protein, c.ProteinG, c.Tolerances.ProteinPct)
	out = appendDrift(out, ViolationFatDrift, "fat", totals.Fat, c.FatG, c.Tolerances.FatPct)
	out = appendDrift(out, ViolationCarbDrift, "carbs", totals.Carbs, c.CarbG, c.Tolerances.CarbPct)
	return out
}

// Satisfied reports whether totals pass every hard cap and tolerance.
func (c MacroContract) Satisfied(totals nutrition.Macros) bool {
	return len(c.Check(totals)) == 0
}

// FatalViolations filters Check output down to hard-cap breaches.
func (c MacroContract) FatalViolations(totals nutrition.Macros) []Violation {
	var out []Violation
	for _, v := range c.Check(totals) {
		if v.Code.Fatal() {
			out = append(out, v)
		}
	}
	return out
}

func appendDrift(out []Violation, code ViolationCode, name string, actual, target, tol float64) []Violation {
	// A zero target tolerates anything; nothing sensible to measure against.
	if target <= 0 {
		return out
	}
	if math.Abs(actual-target) <= tol*target {
		return out
	}
	return append(out, Violation{
		Code:    code,
		Message: fmt.Sprintf("%s %.1f outside %.1f ±%.0f%%", name, actual, target, tol*100),
		Limit:   target,
		Actual:  actual,
	})
}
