package contract

import (
	"fmt"
	"math"
)

// BuilderConfig exposes every tunable the contract derivation uses. The
// source of truth for defaults is DefaultBuilderConfig; the config layer may
// override any of them.
type BuilderConfig struct {
	// Macro splits as fractions of daily kcal.
	ProteinSplit float64
	FatSplit     float64

	// Target-side caps and soft floors.
	ProteinCapGPerKg   float64
	ProteinFloorGPerKg float64
	FatCapPct          float64
	FatFloorGPerKg     float64

	// Ledger-side hard caps.
	ProteinMaxGPerKg float64
	FatMaxFactor     float64
	CarbMinFactor    float64

	KcalMin float64

	// Acceptance tolerances.
	KcalTolerancePct  float64
	MacroTolerancePct float64
	SnackWidening     float64

	// Goal adjustments. Cuts are fractional deficits of TDEE; bulks are
	// fixed surpluses in kcal.
	CutModeratePct        float64
	CutAggressivePct      float64
	LeanSurplusKcal       float64
	AggressiveSurplusKcal float64
}

// DefaultBuilderConfig returns the standard derivation constants.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		ProteinSplit:          0.30,
		FatSplit:              0.20,
		ProteinCapGPerKg:      3.0,
		ProteinFloorGPerKg:    1.6,
		FatCapPct:             0.35,
		FatFloorGPerKg:        0.8,
		ProteinMaxGPerKg:      2.8,
		FatMaxFactor:          1.5,
		CarbMinFactor:         0.8,
		KcalMin:               1200,
		KcalTolerancePct:      0.03,
		MacroTolerancePct:     0.08,
		SnackWidening:         1.25,
		CutModeratePct:        0.15,
		CutAggressivePct:      0.25,
		LeanSurplusKcal:       250,
		AggressiveSurplusKcal: 500,
	}
}

// Builder derives macro contracts from profiles.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder creates a contract builder with the given constants.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build derives the immutable daily contract for the profile.
//
// Kcal: Mifflin-St Jeor BMR x activity factor, goal-adjusted, clamped to the
// configured minimum. Protein: split-driven, capped per kg of body weight.
// Fat: split-driven, capped as a kcal fraction. Carbs: the exact residual.
// Soft floors are recorded as notes, never enforced.
func (b *Builder) Build(p Profile) (MacroContract, error) {
	if err := p.Validate(); err != nil {
		return MacroContract{}, err
	}

	factor, err := p.Activity.Factor()
	if err != nil {
		return MacroContract{}, err
	}
	tdee := p.BMR() * factor

	var notes []string
	kcal := b.goalAdjusted(tdee, p.Goal)
	if kcal < b.cfg.KcalMin {
		notes = append(notes, fmt.Sprintf("kcal %.0f clamped to minimum %.0f", kcal, b.cfg.KcalMin))
		kcal = b.cfg.KcalMin
	}
	kcal = math.Round(kcal)

	proteinSplit := b.cfg.ProteinSplit * kcal / 4
	proteinCap := b.cfg.ProteinCapGPerKg * p.WeightKg
	protein := math.Min(proteinSplit, proteinCap)
	if floor := b.cfg.ProteinFloorGPerKg * p.WeightKg; protein < floor {
		notes = append(notes, fmt.Sprintf("protein %.1fg below soft floor %.1fg (%.1f g/kg)",
			protein, floor, b.cfg.ProteinFloorGPerKg))
	}

	fat := b.cfg.FatSplit * kcal / 9
	if fatCap := b.cfg.FatCapPct * kcal / 9; fat > fatCap {
		fat = fatCap
	}
	if floor := b.cfg.FatFloorGPerKg * p.WeightKg; fat < floor {
		notes = append(notes, fmt.Sprintf("fat %.1fg below soft floor %.1fg (%.1f g/kg)",
			fat, floor, b.cfg.FatFloorGPerKg))
	}

	carbs := (kcal - 4*protein - 9*fat) / 4

	proteinG := math.Round(protein)
	fatG := math.Round(fat)
	carbG := math.Round(carbs)

	return MacroContract{
		Kcal:     kcal,
		ProteinG: proteinG,
		FatG:     fatG,
		CarbG:    carbG,
		Tolerances: Tolerances{
			KcalPct:       b.cfg.KcalTolerancePct,
			ProteinPct:    b.cfg.MacroTolerancePct,
			FatPct:        b.cfg.MacroTolerancePct,
			CarbPct:       b.cfg.MacroTolerancePct,
			CarbFloorPct:  b.cfg.CarbMinFactor,
			SnackWidening: b.cfg.SnackWidening,
		},
		HardCaps: HardCaps{
			// The per-kg ceiling may sit below a cap-driven target; the
			// target itself is always admissible.
			ProteinMaxG: math.Max(b.cfg.ProteinMaxGPerKg*p.WeightKg, proteinG),
			FatMaxG:     b.cfg.FatMaxFactor * fatG,
			CarbMinG:    b.cfg.CarbMinFactor * carbG,
		},
		Notes: notes,
	}, nil
}

func (b *Builder) goalAdjusted(tdee float64, goal Goal) float64 {
	switch goal {
	case GoalCutAggressive:
		return tdee * (1 - b.cfg.CutAggressivePct)
	case GoalCutModerate:
		return tdee * (1 - b.cfg.CutModeratePct)
	case GoalBulkLean:
		return tdee + b.cfg.LeanSurplusKcal
	case GoalBulkAggressive:
		return tdee + b.cfg.AggressiveSurplusKcal
	default:
		return tdee
	}
}
