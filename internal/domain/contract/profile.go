// Package contract derives the daily macro contract from a user profile and
// judges ledger totals against it. Everything here is pure arithmetic; the
// caller owns logging and persistence.
package contract

import "fmt"

// Sex is the biological sex used by the Mifflin-St Jeor equation.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Validate checks if the sex value is supported.
func (s Sex) Validate() error {
	switch s {
	case SexMale, SexFemale:
		return nil
	default:
		return fmt.Errorf("%w: sex %q", ErrInvalidProfile, s)
	}
}

// Activity is the self-reported activity level.
type Activity string

const (
	ActivitySedentary  Activity = "sedentary"
	ActivityLight      Activity = "light"
	ActivityModerate   Activity = "moderate"
	ActivityActive     Activity = "active"
	ActivityVeryActive Activity = "very_active"
)

// activityFactors multiply BMR into TDEE.
var activityFactors = map[Activity]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.465,
	ActivityActive:     1.55,
	ActivityVeryActive: 1.725,
}

// Factor returns the TDEE multiplier for the activity level.
func (a Activity) Factor() (float64, error) {
	f, ok := activityFactors[a]
	if !ok {
		return 0, fmt.Errorf("%w: activity %q", ErrInvalidProfile, a)
	}
	return f, nil
}

// Goal is the dietary goal driving the calorie adjustment.
type Goal string

const (
	GoalCutAggressive  Goal = "cut_aggressive"
	GoalCutModerate    Goal = "cut_moderate"
	GoalMaintain       Goal = "maintain"
	GoalBulkLean       Goal = "bulk_lean"
	GoalBulkAggressive Goal = "bulk_aggressive"
)

// Validate checks if the goal value is supported.
func (g Goal) Validate() error {
	switch g {
	case GoalCutAggressive, GoalCutModerate, GoalMaintain, GoalBulkLean, GoalBulkAggressive:
		return nil
	default:
		return fmt.Errorf("%w: goal %q", ErrInvalidProfile, g)
	}
}

// Profile is the read-only request input the contract is derived from.
type Profile struct {
	HeightCm        float64  `json:"height_cm"`
	WeightKg        float64  `json:"weight_kg"`
	Age             int      `json:"age"`
	Sex             Sex      `json:"sex"`
	Activity        Activity `json:"activity"`
	Goal            Goal     `json:"goal"`
	DietaryTags     []string `json:"dietary_tags,omitempty"`
	CuisinePrompt   string   `json:"cuisine_prompt,omitempty"`
	Days            int      `json:"days"`
	EatingOccasions int      `json:"eating_occasions"`
	Store           string   `json:"store"`
	PreferredStores []string `json:"preferred_stores,omitempty"`
}

// Validate checks every profile field against its allowed range.
func (p Profile) Validate() error {
	if p.HeightCm < 100 || p.HeightCm > 250 {
		return fmt.Errorf("%w: height_cm %.1f outside [100, 250]", ErrInvalidProfile, p.HeightCm)
	}
	if p.WeightKg < 30 || p.WeightKg > 300 {
		return fmt.Errorf("%w: weight_kg %.1f outside [30, 300]", ErrInvalidProfile, p.WeightKg)
	}
	if p.Age < 13 || p.Age > 100 {
		return fmt.Errorf("%w: age %d outside [13, 100]", ErrInvalidProfile, p.Age)
	}
	if err := p.Sex.Validate(); err != nil {
		return err
	}
	if _, err := p.Activity.Factor(); err != nil {
		return err
	}
	if err := p.Goal.Validate(); err != nil {
		return err
	}
	if p.Days < 1 || p.Days > 7 {
		return fmt.Errorf("%w: days %d outside [1, 7]", ErrInvalidProfile, p.Days)
	}
	switch p.EatingOccasions {
	case 3, 4, 5:
	default:
		return fmt.Errorf("%w: eating_occasions %d not in {3, 4, 5}", ErrInvalidProfile, p.EatingOccasions)
	}
	if p.Store == "" {
		return fmt.Errorf("%w: store is required", ErrInvalidProfile)
	}
	return nil
}

// BMR computes basal metabolic rate via Mifflin-St Jeor.
func (p Profile) BMR() float64 {
	base := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Sex == SexFemale {
		return base - 161
	}
	return base + 5
}
