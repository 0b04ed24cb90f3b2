package solver

import (
	"math"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/domain/plan"
)

// solveItem is one meal ingredient in the optimization vector. Items whose
// nutrition never resolved are pinned at scale 1.0 with zero macros, so they
// keep their sketched grams without disturbing the loss.
type solveItem struct {
	item   plan.PlannedIngredient
	per100 nutrition.Macros
	baseG  float64
	lo, hi float64
}

// problem is one meal's optimization: scale each item within its bounds so
// the macro totals land on the occasion targets.
type problem struct {
	items   []solveItem
	targets nutrition.Macros
	tol     contract.Tolerances
	weights macroWeights
}

type macroWeights struct {
	kcal, protein, fat, carb float64
}

// buildProblem assembles the per-meal problem from the mapped items and the
// accepted nutrition rows. Scale bounds are the solver's global window
// narrowed by each item's gram bounds.
func buildProblem(meal plan.Meal, rows map[catalog.CID]nutrition.Row, scaleMin, scaleMax float64, w macroWeights) *problem {
	prob := &problem{
		targets: meal.Targets,
		tol:     meal.Tolerances,
		weights: w,
	}

	for _, item := range meal.MappedItems() {
		baseG := item.RequiredG
		if baseG <= 0 {
			baseG = math.Max(item.MinG, 1)
		}

		si := solveItem{item: item, baseG: baseG, lo: 1, hi: 1}
		if row, ok := rows[item.CID]; ok {
			si.per100 = row.Macros
			si.lo, si.hi = scaleMin, scaleMax
			if item.MinG > 0 {
				si.lo = math.Max(si.lo, item.MinG/baseG)
			}
			if item.MaxG > 0 {
				si.hi = math.Min(si.hi, item.MaxG/baseG)
			}
			if si.lo > si.hi {
				si.lo = si.hi
			}
		}
		prob.items = append(prob.items, si)
	}
	return prob
}

// initialScales starts every item at its sketched portion, projected into
// bounds.
func (p *problem) initialScales() []float64 {
	scales := make([]float64, len(p.items))
	for i := range scales {
		scales[i] = 1.0
	}
	p.project(scales)
	return scales
}

// project clips the scales into each item's bounds, in place.
func (p *problem) project(scales []float64) {
	for i := range scales {
		scales[i] = clip(scales[i], p.items[i].lo, p.items[i].hi)
	}
}

// totals computes the meal macros at the given scales.
func (p *problem) totals(scales []float64) nutrition.Macros {
	var out nutrition.Macros
	for i, it := range p.items {
		out = out.Add(it.per100.Scale(it.baseG * scales[i] / 100))
	}
	return out
}

// loss is the weighted squared distance from the targets.
func (p *problem) loss(scales []float64) float64 {
	t := p.totals(scales)
	dk := t.Kcal - p.targets.Kcal
	dp := t.Protein - p.targets.Protein
	df := t.Fat - p.targets.Fat
	dc := t.Carbs - p.targets.Carbs
	return p.weights.kcal*dk*dk +
		p.weights.protein*dp*dp +
		p.weights.fat*df*df +
		p.weights.carb*dc*dc
}

// gradient is the partial derivative of the loss per scale component.
func (p *problem) gradient(scales []float64) []float64 {
	t := p.totals(scales)
	dk := 2 * p.weights.kcal * (t.Kcal - p.targets.Kcal)
	dp := 2 * p.weights.protein * (t.Protein - p.targets.Protein)
	df := 2 * p.weights.fat * (t.Fat - p.targets.Fat)
	dc := 2 * p.weights.carb * (t.Carbs - p.targets.Carbs)

	grad := make([]float64, len(p.items))
	for i, it := range p.items {
		a := it.per100.Scale(it.baseG / 100)
		grad[i] = dk*a.Kcal + dp*a.Protein + df*a.Fat + dc*a.Carbs
	}
	return grad
}

// satisfied reports whether the totals sit inside the occasion's tolerance
// bands. Zero targets tolerate anything, same as the contract predicate.
func (p *problem) satisfied(scales []float64) bool {
	t := p.totals(scales)
	return withinBand(t.Kcal, p.targets.Kcal, p.tol.KcalPct) &&
		withinBand(t.Protein, p.targets.Protein, p.tol.ProteinPct) &&
		withinBand(t.Fat, p.targets.Fat, p.tol.FatPct) &&
		withinBand(t.Carbs, p.targets.Carbs, p.tol.CarbPct)
}

// portions converts the scales into the final integer gram portions and the
// macros implied by them. Scales round to two decimals before gram
// conversion; grams round to integers and clamp into the item's bounds.
// Zero-gram portions are kept so the solution covers every mapped item.
func (p *problem) portions(scales []float64) ([]plan.Portion, nutrition.Macros) {
	portions := make([]plan.Portion, 0, len(p.items))
	var final nutrition.Macros

	for i, it := range p.items {
		scale := math.Round(scales[i]*100) / 100
		grams := int(math.Round(scale * it.baseG))
		grams = clampGrams(grams, it.item.MinG, it.item.MaxG)

		portions = append(portions, plan.Portion{CID: it.item.CID, Grams: grams})
		final = final.Add(it.per100.Scale(float64(grams) / 100))
	}
	return portions, final
}

// minGPortions is the infeasibility bail-out: every item at its minimum.
func (p *problem) minGPortions() ([]plan.Portion, nutrition.Macros) {
	portions := make([]plan.Portion, 0, len(p.items))
	var final nutrition.Macros

	for _, it := range p.items {
		grams := int(math.Round(it.item.MinG))
		if grams < 0 {
			grams = 0
		}
		portions = append(portions, plan.Portion{CID: it.item.CID, Grams: grams})
		final = final.Add(it.per100.Scale(float64(grams) / 100))
	}
	return portions, final
}

func withinBand(actual, target, tolPct float64) bool {
	if target <= 0 {
		return true
	}
	return math.Abs(actual-target) <= tolPct*target
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampGrams(grams int, minG, maxG float64) int {
	if lo := int(math.Round(minG)); grams < lo {
		grams = lo
	}
	if maxG > 0 {
		if hi := int(math.Round(maxG)); grams > hi {
			grams = hi
		}
	}
	if grams < 0 {
		grams = 0
	}
	return grams
}
