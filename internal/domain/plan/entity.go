// Package plan contains the meal plan aggregate: days of meals, sketched
// ingredients, the solver's portion solution, and the reconciliation ledger.
// Follows Domain-Driven Design with a rich aggregate root raising domain
// events at lifecycle transitions.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/domain/shared"
)

// PlanStatus tracks the aggregate through the pipeline phases.
type PlanStatus string

const (
	PlanStatusDraft    PlanStatus = "draft"
	PlanStatusSolved   PlanStatus = "solved"
	PlanStatusVerified PlanStatus = "verified"
	PlanStatusFailed   PlanStatus = "failed"
)

// SolveLabel names the solver path that produced the current solution.
type SolveLabel string

const (
	SolvePrimary   SolveLabel = "primary"
	SolveHeuristic SolveLabel = "heuristic"
	SolveBoosted   SolveLabel = "boosted"
	SolveMinG      SolveLabel = "min_g_fallback"
)

// Feasible reports whether the label may be presented as a satisfied solve.
// The min_g fallback is a last resort and never claims feasibility.
func (l SolveLabel) Feasible() bool {
	return l == SolvePrimary || l == SolveHeuristic || l == SolveBoosted
}

// MealPlan is the aggregate root for one planning run. All state lives for a
// single request; the aggregate is never persisted.
type MealPlan struct {
	id       uuid.UUID
	contract contract.MacroContract
	days     []DayPlan
	status   PlanStatus
	label    SolveLabel
	boosted  bool

	createdAt time.Time
	updatedAt time.Time

	events []shared.DomainEvent
}

// NewMealPlan creates a plan from the validated sketch. Days must be
// numbered 1..n with no gaps, and every day needs at least one meal.
func NewMealPlan(c contract.MacroContract, days []DayPlan) (*MealPlan, error) {
	if len(days) < 1 || len(days) > 7 {
		return nil, ErrInvalidDayCount
	}
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d.Day < 1 || d.Day > len(days) {
			return nil, fmt.Errorf("%w: day %d outside 1..%d", ErrDayNotFound, d.Day, len(days))
		}
		if seen[d.Day] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateDay, d.Day)
		}
		seen[d.Day] = true
		if len(d.Meals) == 0 {
			return nil, fmt.Errorf("%w: day %d", ErrNoMeals, d.Day)
		}
	}
	ordered := make([]DayPlan, len(days))
	copy(ordered, days)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Day < ordered[j].Day })

	now := time.Now()
	p := &MealPlan{
		id:        uuid.New(),
		contract:  c,
		days:      ordered,
		status:    PlanStatusDraft,
		createdAt: now,
		updatedAt: now,
		events:    []shared.DomainEvent{},
	}

	p.addEvent(MealPlanCreatedEvent{
		PlanID:    p.id,
		Days:      len(ordered),
		CreatedAt: now,
	})

	return p, nil
}

// ID returns the plan's unique identifier.
func (p *MealPlan) ID() uuid.UUID {
	return p.id
}

// Contract returns the daily macro contract the plan must satisfy.
func (p *MealPlan) Contract() contract.MacroContract {
	return p.contract
}

// Days returns the plan's days in order.
func (p *MealPlan) Days() []DayPlan {
	return p.days
}

// Status returns the plan's lifecycle status.
func (p *MealPlan) Status() PlanStatus {
	return p.status
}

// Label returns the solver path label, empty until solved.
func (p *MealPlan) Label() SolveLabel {
	return p.label
}

// Boosted reports whether the booster meal has been appended.
func (p *MealPlan) Boosted() bool {
	return p.boosted
}

// CreatedAt returns when the plan was created.
func (p *MealPlan) CreatedAt() time.Time {
	return p.createdAt
}

// UpdatedAt returns when the plan last changed.
func (p *MealPlan) UpdatedAt() time.Time {
	return p.updatedAt
}

// Day returns the plan for the given 1-based day number.
func (p *MealPlan) Day(n int) (DayPlan, error) {
	for _, d := range p.days {
		if d.Day == n {
			return d, nil
		}
	}
	return DayPlan{}, fmt.Errorf("%w: %d", ErrDayNotFound, n)
}

// UniqueCIDs returns every mapped CID referenced by any meal, sorted for
// deterministic fan-out order.
func (p *MealPlan) UniqueCIDs() []catalog.CID {
	seen := make(map[catalog.CID]bool)
	for _, d := range p.days {
		for _, m := range d.Meals {
			for _, item := range m.Items {
				if item.Mapped() {
					seen[item.CID] = true
				}
			}
		}
	}
	cids := make([]catalog.CID, 0, len(seen))
	for cid := range seen {
		cids = append(cids, cid)
	}
	sort.Slice(cids, func(i, j int) bool { return cids[i] < cids[j] })
	return cids
}

// RequiredGramsByCID sums each CID's sketched requirement across the whole
// plan. Used for pack-count estimates and size-gate targets.
func (p *MealPlan) RequiredGramsByCID() map[catalog.CID]float64 {
	grams := make(map[catalog.CID]float64)
	for _, d := range p.days {
		for _, m := range d.Meals {
			for _, item := range m.Items {
				if item.Mapped() {
					grams[item.CID] += item.RequiredG
				}
			}
		}
	}
	return grams
}

// UnmappedItems returns the items that failed CID assignment, for surfacing
// as per-ingredient failures.
func (p *MealPlan) UnmappedItems() []PlannedIngredient {
	var out []PlannedIngredient
	for _, d := range p.days {
		for _, m := range d.Meals {
			for _, item := range m.Items {
				if !item.Mapped() {
					out = append(out, item)
				}
			}
		}
	}
	return out
}

// AssignTargets distributes the daily contract across each day's meals by
// occasion type. Booster meals keep the targets they were constructed with.
func (p *MealPlan) AssignTargets(targets []MealTarget) error {
	byType := make(map[MealType]MealTarget, len(targets))
	for _, t := range targets {
		byType[t.Type] = t
	}
	for di := range p.days {
		for mi := range p.days[di].Meals {
			meal := &p.days[di].Meals[mi]
			if meal.Type == MealBooster {
				continue
			}
			t, ok := byType[meal.Type]
			if !ok {
				return fmt.Errorf("%w: no target for occasion %q", ErrInvalidMealType, meal.Type)
			}
			meal.Targets = t.Targets
			meal.Tolerances = t.Tolerances
		}
	}
	p.touch()
	return nil
}

// ApplySolution records the solver's portions for one meal. The portions
// must reference only CIDs planned in that meal (referential integrity).
func (p *MealPlan) ApplySolution(mealID uuid.UUID, portions []Portion, final nutrition.Macros) error {
	for di := range p.days {
		if mi := p.days[di].mealIndex(mealID); mi >= 0 {
			if err := p.days[di].Meals[mi].applySolution(portions, final); err != nil {
				return err
			}
			p.touch()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMealNotFound, mealID)
}

// AppendBooster appends the solver's high-carb booster meal to the given
// day. Allowed at most once per plan, and only while still drafting.
func (p *MealPlan) AppendBooster(day int, meal Meal) error {
	if p.status != PlanStatusDraft {
		return ErrInvalidStatusTransition
	}
	if p.boosted {
		return ErrBoosterAlreadyAppended
	}
	for di := range p.days {
		if p.days[di].Day == day {
			meal.Type = MealBooster
			p.days[di].Meals = append(p.days[di].Meals, meal)
			p.boosted = true
			p.touch()
			p.addEvent(BoosterAppendedEvent{
				PlanID:     p.id,
				Day:        day,
				MealID:     meal.ID,
				AppendedAt: p.updatedAt,
			})
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrDayNotFound, day)
}

// MarkSolved transitions draft → solved once the solver has applied its
// portions to every meal.
func (p *MealPlan) MarkSolved(label SolveLabel) error {
	if p.status != PlanStatusDraft {
		return ErrInvalidStatusTransition
	}
	p.status = PlanStatusSolved
	p.label = label
	p.touch()
	p.addEvent(PlanSolvedEvent{
		PlanID:   p.id,
		Label:    label,
		SolvedAt: p.updatedAt,
	})
	return nil
}

// MarkVerified transitions solved → verified or failed based on the
// verifier's judgement of the ledger. The solver's own claim is ignored.
func (p *MealPlan) MarkVerified(satisfied bool) error {
	if p.status != PlanStatusSolved {
		return ErrInvalidStatusTransition
	}
	if satisfied {
		p.status = PlanStatusVerified
	} else {
		p.status = PlanStatusFailed
	}
	p.touch()
	p.addEvent(PlanVerifiedEvent{
		PlanID:     p.id,
		Satisfied:  satisfied,
		VerifiedAt: p.updatedAt,
	})
	return nil
}

// touch bumps the update timestamp.
func (p *MealPlan) touch() {
	p.updatedAt = time.Now()
}

// addEvent adds a domain event to be dispatched.
func (p *MealPlan) addEvent(event shared.DomainEvent) {
	p.events = append(p.events, event)
}

// Events returns and clears pending domain events.
func (p *MealPlan) Events() []shared.DomainEvent {
	events := p.events
	p.events = []shared.DomainEvent{}
	return events
}
