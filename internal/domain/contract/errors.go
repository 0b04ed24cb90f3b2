package contract

import "errors"

var (
	// ErrInvalidProfile indicates a profile field outside its allowed range.
	ErrInvalidProfile = errors.New("invalid profile")
)

// ViolationCode labels a hard-cap breach in the contract predicate.
type ViolationCode string

const (
	ViolationCarbsTooLow    ViolationCode = "CARBS_TOO_LOW"
	ViolationProteinTooHigh ViolationCode = "PROTEIN_TOO_HIGH"
	ViolationFatTooHigh     ViolationCode = "FAT_TOO_HIGH"
	ViolationKcalDrift      ViolationCode = "KCAL_OUT_OF_TOLERANCE"
	ViolationProteinDrift   ViolationCode = "PROTEIN_OUT_OF_TOLERANCE"
	ViolationFatDrift       ViolationCode = "FAT_OUT_OF_TOLERANCE"
	ViolationCarbDrift      ViolationCode = "CARBS_OUT_OF_TOLERANCE"
)

// Fatal reports whether the violation is a hard-cap breach rather than a
// tolerance drift.
func (c ViolationCode) Fatal() bool {
	switch c {
	case ViolationCarbsTooLow, ViolationProteinTooHigh, ViolationFatTooHigh:
		return true
	default:
		return false
	}
}
