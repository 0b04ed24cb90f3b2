// Package solver implements the portion solver and the ledger verifier.
//
// The solver fits integer gram portions to each meal's occasion targets by
// projected gradient descent over per-item scales, falling back to a
// composition-biased heuristic, then to a one-shot high-carb booster meal,
// and finally to a min-gram revert that never claims feasibility. The
// verifier recomputes the plan's ledger from the accepted nutrition rows and
// judges it against the daily contract; its verdict overrides the solver's.
package solver

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/domain/plan"
	"github.com/macrocart/v2/internal/infrastructure/config"
)

// boosterItems is the canonical high-carb meal appended when a day cannot
// reach its carb floor: roughly 450 kcal and 100g carbs at base portions.
var boosterItems = []struct {
	display string
	key     string
	grams   float64
}{
	{"Basmati rice", "basmati_rice", 75},
	{"Banana", "banana", 120},
	{"Honey", "honey", 20},
}

// Solver fits portion scales to occasion targets. Stateless between calls;
// all tunables come from the solver config.
type Solver struct {
	cfg    config.SolverConfig
	logger *zap.Logger
}

// New creates a solver. Zero config values fall back to the shipped
// defaults so a partially populated config still solves sensibly.
func New(cfg *config.Config, logger *zap.Logger) *Solver {
	sc := cfg.Solver
	if sc.MaxIterations <= 0 {
		sc.MaxIterations = 800
	}
	if sc.MaxBacktracks <= 0 {
		sc.MaxBacktracks = 6
	}
	if sc.Acceleration <= 1 {
		sc.Acceleration = 1.10
	}
	if sc.InitialStep <= 0 {
		sc.InitialStep = 0.05
	}
	if sc.ScaleMin <= 0 {
		sc.ScaleMin = 0.3
	}
	if sc.ScaleMax <= sc.ScaleMin {
		sc.ScaleMax = 3.0
	}
	if sc.WeightKcal <= 0 {
		sc.WeightKcal = 1.0
	}
	if sc.WeightProtein <= 0 {
		sc.WeightProtein = 1.2
	}
	if sc.WeightFat <= 0 {
		sc.WeightFat = 1.2
	}
	if sc.WeightCarb <= 0 {
		sc.WeightCarb = 1.6
	}
	if sc.HeuristicIters <= 0 {
		sc.HeuristicIters = 400
	}

	return &Solver{
		cfg:    sc,
		logger: logger.Named("portion-solver"),
	}
}

// Solve fits every meal in the plan and transitions it to solved. The rows
// map holds the accepted per-100g nutrition keyed by CID; items without a
// row keep their sketched grams. The returned label reports the worst path
// any meal needed: primary, heuristic, boosted, or the min-gram fallback.
func (s *Solver) Solve(p *plan.MealPlan, rows map[catalog.CID]nutrition.Row) (plan.SolveLabel, error) {
	label := plan.SolvePrimary

	for _, day := range p.Days() {
		for _, meal := range day.Meals {
			mealLabel, err := s.solveMeal(p, meal, rows)
			if err != nil {
				return "", err
			}
			label = worseLabel(label, mealLabel)
		}
	}

	violating := s.violatingDays(p)

	if len(violating) > 0 && s.cfg.EnableBooster && !p.Boosted() {
		day, deficit, ok := s.boosterTarget(p, violating)
		if ok {
			boosted, err := s.appendBooster(p, day, deficit, rows)
			if err != nil {
				return "", err
			}
			if boosted {
				label = worseLabel(label, plan.SolveBoosted)
				violating = s.violatingDays(p)
			}
		}
	}

	if len(violating) > 0 {
		s.logger.Warn("Plan infeasible after all solve paths, reverting to minimum grams",
			zap.Ints("violating_days", violating))
		if err := s.revertToMinG(p, rows); err != nil {
			return "", err
		}
		label = plan.SolveMinG
	}

	if err := p.MarkSolved(label); err != nil {
		return "", err
	}
	s.logger.Info("Plan solved",
		zap.String("label", string(label)),
		zap.Int("days", len(p.Days())))
	return label, nil
}

// solveMeal fits one meal and applies the result. Primary first; the
// heuristic replaces it only when it attains a strictly lower loss.
func (s *Solver) solveMeal(p *plan.MealPlan, meal plan.Meal, rows map[catalog.CID]nutrition.Row) (plan.SolveLabel, error) {
	prob := buildProblem(meal, rows, s.cfg.ScaleMin, s.cfg.ScaleMax, s.weights())
	if len(prob.items) == 0 {
		return plan.SolvePrimary, p.ApplySolution(meal.ID, []plan.Portion{}, nutrition.Macros{})
	}

	label := plan.SolvePrimary
	scales, loss := s.projectedGradient(prob)
	if !prob.satisfied(scales) {
		if hScales, hLoss := s.heuristic(prob); hLoss < loss {
			scales, loss = hScales, hLoss
			label = plan.SolveHeuristic
		}
	}

	portions, final := prob.portions(scales)
	s.logger.Debug("Meal solved",
		zap.String("meal", meal.Title),
		zap.String("type", string(meal.Type)),
		zap.String("label", string(label)),
		zap.Float64("loss", loss),
		zap.Bool("satisfied", prob.satisfied(scales)))
	return label, p.ApplySolution(meal.ID, portions, final)
}

// projectedGradient runs the primary descent: steepest descent steps
// normalized by the gradient's sup norm, projected into bounds, with
// backtracking halving on no-improvement and acceleration on improvement.
// The accepted loss never increases.
func (s *Solver) projectedGradient(prob *problem) ([]float64, float64) {
	best := prob.initialScales()
	bestLoss := prob.loss(best)
	eta := s.cfg.InitialStep
	backtracks := 0

	for iter := 0; iter < s.cfg.MaxIterations; iter++ {
		if prob.satisfied(best) {
			break
		}
		grad := prob.gradient(best)
		norm := supNorm(grad)
		if norm == 0 {
			break
		}

		next := make([]float64, len(best))
		for i := range best {
			next[i] = best[i] - eta*grad[i]/norm
		}
		prob.project(next)

		if l := prob.loss(next); l < bestLoss {
			best, bestLoss = next, l
			eta *= s.cfg.Acceleration
			backtracks = 0
			continue
		}
		eta /= 2
		backtracks++
		if backtracks > s.cfg.MaxBacktracks {
			break
		}
	}
	return best, bestLoss
}

// heuristic is fallback 1: each item gets a composition bias favoring carbs
// over fat and protein, and a global ratio scale pushes the totals toward
// the targets. Stops on satisfaction or when no scale moves.
func (s *Solver) heuristic(prob *problem) ([]float64, float64) {
	scales := prob.initialScales()

	for iter := 0; iter < s.cfg.HeuristicIters; iter++ {
		t := prob.totals(scales)
		carbRatio := prob.targets.Carbs / math.Max(t.Carbs, 1)
		kcalRatio := prob.targets.Kcal / math.Max(t.Kcal, 1)
		global := clip(0.7*carbRatio+0.3*kcalRatio, 0.7, 1.4)

		changed := false
		for i, it := range prob.items {
			if it.lo == it.hi {
				continue
			}
			kcal := math.Max(it.per100.Kcal, 1)
			bias := clip(1+0.8*it.per100.Carbs/kcal-0.6*it.per100.Fat/kcal-0.2*it.per100.Protein/kcal, 0.6, 1.4)
			next := clip(global*bias*scales[i], it.lo, it.hi)
			if math.Abs(next-scales[i]) > 1e-9 {
				scales[i] = next
				changed = true
			}
		}
		if !changed || prob.satisfied(scales) {
			break
		}
	}
	return scales, prob.loss(scales)
}

// violatingDays returns the day numbers whose totals fail the daily
// contract, in plan order.
func (s *Solver) violatingDays(p *plan.MealPlan) []int {
	var out []int
	c := p.Contract()
	for _, day := range p.Days() {
		if len(c.Check(day.Totals())) > 0 {
			out = append(out, day.Day)
		}
	}
	return out
}

// boosterTarget picks the violating day with the deepest carb deficit. Days
// already over their carb target gain nothing from a high-carb meal.
func (s *Solver) boosterTarget(p *plan.MealPlan, violating []int) (int, nutrition.Macros, bool) {
	c := p.Contract()
	targets := c.Targets()

	bestDay := 0
	var bestDeficit nutrition.Macros
	for _, n := range violating {
		day, err := p.Day(n)
		if err != nil {
			continue
		}
		totals := day.Totals()
		carbGap := targets.Carbs - totals.Carbs
		if carbGap <= 0 {
			continue
		}
		if bestDay == 0 || carbGap > bestDeficit.Carbs {
			bestDay = n
			bestDeficit = nutrition.Macros{
				Kcal:    math.Max(targets.Kcal-totals.Kcal, 0),
				Protein: math.Max(targets.Protein-totals.Protein, 0),
				Fat:     math.Max(targets.Fat-totals.Fat, 0),
				Carbs:   carbGap,
			}
		}
	}
	return bestDay, bestDeficit, bestDay != 0
}

// appendBooster builds the booster meal, appends it to the day, and solves
// it with the primary path against the day's remaining deficit.
func (s *Solver) appendBooster(p *plan.MealPlan, day int, deficit nutrition.Macros, rows map[catalog.CID]nutrition.Row) (bool, error) {
	meal, err := s.boosterMeal(deficit, p.Contract().Tolerances)
	if err != nil {
		return false, fmt.Errorf("build booster meal: %w", err)
	}
	if err := p.AppendBooster(day, meal); err != nil {
		return false, err
	}

	s.logger.Info("Booster meal appended",
		zap.Int("day", day),
		zap.Float64("carb_deficit_g", deficit.Carbs))

	merged := withBoosterRows(rows)
	dayPlan, err := p.Day(day)
	if err != nil {
		return false, err
	}
	for _, m := range dayPlan.Meals {
		if m.Type != plan.MealBooster {
			continue
		}
		prob := buildProblem(m, merged, s.cfg.ScaleMin, s.cfg.ScaleMax, s.weights())
		scales, _ := s.projectedGradient(prob)
		portions, final := prob.portions(scales)
		if err := p.ApplySolution(m.ID, portions, final); err != nil {
			return false, err
		}
	}
	return true, nil
}

// boosterMeal assembles the canonical booster scaled toward the deficit.
// Snack-width tolerances apply since the booster is an extra occasion.
func (s *Solver) boosterMeal(deficit nutrition.Macros, tol contract.Tolerances) (plan.Meal, error) {
	items := make([]plan.PlannedIngredient, 0, len(boosterItems))
	for _, b := range boosterItems {
		item := plan.PlannedIngredient{
			DisplayName:   b.display,
			Quantity:      plan.Quantity{Value: b.grams, Unit: plan.UnitGram},
			CID:           catalog.CID(b.key),
			NormalizedKey: b.key,
		}
		item.ResolveBounds(0)
		items = append(items, item)
	}

	meal, err := plan.NewMeal(plan.MealBooster, "Carb booster", items)
	if err != nil {
		return plan.Meal{}, err
	}
	meal.Targets = deficit
	meal.Tolerances = tol.Widen(tol.SnackFactor())
	return meal, nil
}

// revertToMinG is the last-resort output validation: every item in every
// meal drops to its declared minimum grams and the finals are recomputed.
func (s *Solver) revertToMinG(p *plan.MealPlan, rows map[catalog.CID]nutrition.Row) error {
	merged := rows
	if p.Boosted() {
		merged = withBoosterRows(rows)
	}
	for _, day := range p.Days() {
		for _, meal := range day.Meals {
			prob := buildProblem(meal, merged, s.cfg.ScaleMin, s.cfg.ScaleMax, s.weights())
			portions, final := prob.minGPortions()
			if err := p.ApplySolution(meal.ID, portions, final); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Solver) weights() macroWeights {
	return macroWeights{
		kcal:    s.cfg.WeightKcal,
		protein: s.cfg.WeightProtein,
		fat:     s.cfg.WeightFat,
		carb:    s.cfg.WeightCarb,
	}
}

// withBoosterRows merges the booster ingredients' hot-table rows into a copy
// of the accepted rows. The caller's map is never mutated.
func withBoosterRows(rows map[catalog.CID]nutrition.Row) map[catalog.CID]nutrition.Row {
	merged := make(map[catalog.CID]nutrition.Row, len(rows)+len(boosterItems))
	for cid, row := range rows {
		merged[cid] = row
	}
	for _, b := range boosterItems {
		cid := catalog.CID(b.key)
		if _, ok := merged[cid]; ok {
			continue
		}
		if row, ok := nutrition.LookupHot(b.key); ok {
			merged[cid] = row
		}
	}
	return merged
}

func worseLabel(a, b plan.SolveLabel) plan.SolveLabel {
	if labelRank(b) > labelRank(a) {
		return b
	}
	return a
}

func labelRank(l plan.SolveLabel) int {
	switch l {
	case plan.SolveHeuristic:
		return 1
	case plan.SolveBoosted:
		return 2
	case plan.SolveMinG:
		return 3
	}
	return 0
}

func supNorm(v []float64) float64 {
	var n float64
	for _, x := range v {
		if a := math.Abs(x); a > n {
			n = a
		}
	}
	return n
}
