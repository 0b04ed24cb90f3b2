package plan

import "errors"

// Domain errors for meal plan operations

var (
	// Value object validation errors
	ErrInvalidMealType     = errors.New("invalid meal type")
	ErrInvalidUnit         = errors.New("invalid quantity unit")
	ErrInvalidStateHint    = errors.New("invalid state hint")
	ErrInvalidMethodHint   = errors.New("invalid method hint")
	ErrInvalidQuantity     = errors.New("quantity value must be positive")
	ErrInvalidBounds       = errors.New("gram bounds must satisfy 0 <= min <= max")
	ErrEmptyIngredientName = errors.New("ingredient name is required")

	// Structural errors
	ErrInvalidDayCount  = errors.New("days must be between 1 and 7")
	ErrInvalidOccasions = errors.New("eating occasions must be 3, 4, or 5")
	ErrDuplicateDay     = errors.New("day already present in plan")
	ErrDayNotFound      = errors.New("day not found in plan")
	ErrMealNotFound     = errors.New("meal not found in plan")
	ErrNoMeals          = errors.New("day must contain at least one meal")
	ErrNoItems          = errors.New("meal must contain at least one ingredient")
	ErrEmptyTitle       = errors.New("meal title is required")

	// Solution errors
	ErrUnknownPortionCID       = errors.New("portion references an ingredient not planned in the meal")
	ErrBoosterAlreadyAppended  = errors.New("booster meal already appended")
	ErrInvalidStatusTransition = errors.New("invalid plan status transition")
)
