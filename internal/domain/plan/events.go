package plan

import (
	"time"

	"github.com/google/uuid"
)

// Domain Events - Events raised by the meal plan aggregate

// MealPlanCreatedEvent is raised when a plan is assembled from a sketch.
type MealPlanCreatedEvent struct {
	PlanID    uuid.UUID
	Days      int
	CreatedAt time.Time
}

func (e MealPlanCreatedEvent) EventName() string {
	return "plan.created"
}

func (e MealPlanCreatedEvent) OccurredAt() time.Time {
	return e.CreatedAt
}

// BoosterAppendedEvent is raised when the solver injects the high-carb
// booster meal.
type BoosterAppendedEvent struct {
	PlanID     uuid.UUID
	Day        int
	MealID     uuid.UUID
	AppendedAt time.Time
}

func (e BoosterAppendedEvent) EventName() string {
	return "plan.booster.appended"
}

func (e BoosterAppendedEvent) OccurredAt() time.Time {
	return e.AppendedAt
}

// PlanSolvedEvent is raised when the solver commits a solution.
type PlanSolvedEvent struct {
	PlanID   uuid.UUID
	Label    SolveLabel
	SolvedAt time.Time
}

func (e PlanSolvedEvent) EventName() string {
	return "plan.solved"
}

func (e PlanSolvedEvent) OccurredAt() time.Time {
	return e.SolvedAt
}

// PlanVerifiedEvent is raised after the ledger check, pass or fail.
type PlanVerifiedEvent struct {
	PlanID     uuid.UUID
	Satisfied  bool
	VerifiedAt time.Time
}

func (e PlanVerifiedEvent) EventName() string {
	return "plan.verified"
}

func (e PlanVerifiedEvent) OccurredAt() time.Time {
	return e.VerifiedAt
}
