package nutrition

import (
	"fmt"
	"math"
)

// FingerprintTolerance bounds how far resolved nutrition may drift from the
// registry's expectation for a CID before the row is rejected.
type FingerprintTolerance struct {
	KcalPct     float64
	MacroPct    float64
	KcalFloorG  float64
	MacroFloorG float64
}

// DefaultFingerprintTolerance matches the registry acceptance gate:
// ±20% on kcal, ±25% per macro. The absolute floors take over when the
// expectation is near zero, so a zero-calorie spice never divides by zero.
func DefaultFingerprintTolerance() FingerprintTolerance {
	return FingerprintTolerance{
		KcalPct:     0.20,
		MacroPct:    0.25,
		KcalFloorG:  25,
		MacroFloorG: 5,
	}
}

// CheckFingerprint compares a resolved row against the expected per-100g
// macros. It returns nil when every component is within tolerance, or an
// error wrapping ErrFingerprintMismatch naming the first component that
// failed.
func CheckFingerprint(actual Macros, expected Macros, tol FingerprintTolerance) error {
	if err := checkComponent("kcal", actual.Kcal, expected.Kcal, tol.KcalPct, tol.KcalFloorG); err != nil {
		return err
	}
	if err := checkComponent("protein", actual.Protein, expected.Protein, tol.MacroPct, tol.MacroFloorG); err != nil {
		return err
	}
	if err := checkComponent("fat", actual.Fat, expected.Fat, tol.MacroPct, tol.MacroFloorG); err != nil {
		return err
	}
	if err := checkComponent("carbs", actual.Carbs, expected.Carbs, tol.MacroPct, tol.MacroFloorG); err != nil {
		return err
	}
	return nil
}

// checkComponent applies a relative bound for meaningful expectations and an
// absolute bound for near-zero ones.
func checkComponent(name string, actual, expected, pct, floor float64) error {
	diff := math.Abs(actual - expected)
	if expected < 1 {
		if diff > floor {
			return fmt.Errorf("%w: %s %.1f vs expected %.1f (abs limit %.1f)",
				ErrFingerprintMismatch, name, actual, expected, floor)
		}
		return nil
	}
	if diff/expected > pct {
		return fmt.Errorf("%w: %s %.1f vs expected %.1f (limit ±%.0f%%)",
			ErrFingerprintMismatch, name, actual, expected, pct*100)
	}
	return nil
}
