// Package nutrition holds the per-100g nutrition model: macro tuples, the
// hot-path table, and the fingerprint gate used to accept or reject data
// coming back from external providers.
package nutrition

import "math"

// Macros is a per-100g macro tuple. Kcal is stored, not derived, because
// sources disagree with the 4/4/9 rule; KcalBalanced quantifies by how much.
type Macros struct {
	Kcal    float64 `json:"kcal"`
	Protein float64 `json:"protein_g"`
	Fat     float64 `json:"fat_g"`
	Carbs   float64 `json:"carb_g"`
}

// Add returns the element-wise sum.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Kcal:    m.Kcal + o.Kcal,
		Protein: m.Protein + o.Protein,
		Fat:     m.Fat + o.Fat,
		Carbs:   m.Carbs + o.Carbs,
	}
}

// Scale returns the tuple multiplied by factor.
func (m Macros) Scale(factor float64) Macros {
	return Macros{
		Kcal:    m.Kcal * factor,
		Protein: m.Protein * factor,
		Fat:     m.Fat * factor,
		Carbs:   m.Carbs * factor,
	}
}

// DerivedKcal computes energy from macros with the Atwater 4/4/9 factors.
func (m Macros) DerivedKcal() float64 {
	return 4*m.Protein + 4*m.Carbs + 9*m.Fat
}

// KcalImbalance returns the relative gap between stored and derived energy.
// The denominator is floored at 1 kcal so zero-calorie rows never divide by
// zero.
func (m Macros) KcalImbalance() float64 {
	return math.Abs(m.Kcal-m.DerivedKcal()) / math.Max(m.Kcal, 1)
}

// KcalBalanced reports whether stored energy agrees with derived energy
// within tolerance (0.05 for the hot table and ingestion gate).
func (m Macros) KcalBalanced(tolerance float64) bool {
	return m.KcalImbalance() <= tolerance
}

// Rebalanced returns a copy with Kcal recomputed from the macros. Used by
// the hot-table audit to repair rows instead of dropping them.
func (m Macros) Rebalanced() Macros {
	m.Kcal = math.Round(m.DerivedKcal()*10) / 10
	return m
}

// IsZero reports an all-zero tuple.
func (m Macros) IsZero() bool {
	return m.Kcal == 0 && m.Protein == 0 && m.Fat == 0 && m.Carbs == 0
}
