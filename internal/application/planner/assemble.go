package planner

import (
	"fmt"
	"math"

	"github.com/macrocart/v2/internal/application/solver"
	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/domain/plan"
	"github.com/macrocart/v2/internal/ports/inbound"
	"github.com/macrocart/v2/pkg/logger"
)

// assemble shapes the verified plan into the response payload. The results
// map is completed with hot-table bundles for solver-appended ingredients
// so every CID in the plan has one.
func (s *Service) assemble(
	c contract.MacroContract,
	p *plan.MealPlan,
	results map[catalog.CID]market.ResolvedIngredient,
	verdict solver.Verdict,
	capture *logger.Capture,
) *inbound.PlanResponse {
	days := make([]inbound.DayPlanDTO, 0, len(p.Days()))
	for _, day := range p.Days() {
		meals := make([]inbound.MealDTO, 0, len(day.Meals))
		for _, meal := range day.Meals {
			meals = append(meals, mealDTO(meal))
		}
		days = append(days, inbound.DayPlanDTO{Day: day.Day, Meals: meals})
	}

	full := completedResults(p, results)

	return &inbound.PlanResponse{
		Contract:          c,
		MealPlan:          days,
		UniqueIngredients: uniqueIngredients(p, full),
		Results:           full,
		Ledger:            verdict.Totals,
		ContractSatisfied: inbound.ContractVerdictDTO{
			OK:         verdict.OK,
			WorstDay:   verdict.WorstDay,
			Violations: verdict.Violations,
		},
		Logs: capture.Entries(),
	}
}

func mealDTO(meal plan.Meal) inbound.MealDTO {
	items := make([]inbound.PortionDTO, 0, len(meal.Solution))
	for _, portion := range meal.Solution {
		name := string(portion.CID)
		if item, ok := meal.ItemByCID(portion.CID); ok {
			name = item.DisplayName
		}
		items = append(items, inbound.PortionDTO{
			CID:         portion.CID,
			DisplayName: name,
			Grams:       portion.Grams,
		})
	}
	return inbound.MealDTO{
		MealID:      meal.ID,
		Type:        meal.Type,
		Title:       meal.Title,
		Description: meal.Description,
		Items:       items,
		FinalMacros: meal.FinalMacros,
	}
}

// completedResults copies the pipeline results and backfills hot-table
// bundles for CIDs the solver introduced after the market run.
func completedResults(p *plan.MealPlan, results map[catalog.CID]market.ResolvedIngredient) map[catalog.CID]market.ResolvedIngredient {
	full := make(map[catalog.CID]market.ResolvedIngredient, len(results))
	for cid, res := range results {
		full[cid] = res
	}
	for _, cid := range p.UniqueCIDs() {
		if _, ok := full[cid]; ok {
			continue
		}
		res := market.ResolvedIngredient{
			CID:         cid,
			DisplayName: string(cid),
			Outcome:     market.OutcomeFailed,
		}
		if spec, ok := catalog.Lookup(cid); ok {
			res.DisplayName = spec.DisplayName
		}
		if row, ok := nutrition.LookupHot(string(cid)); ok {
			res.Outcome = market.OutcomeCanonicalFallback
			res.Nutrition = &row
			res.Confidence = row.Confidence
		}
		full[cid] = res
	}
	return full
}

// uniqueIngredients aggregates the shopping view: one line per CID with the
// plan-wide gram total and a purchasable unit count.
func uniqueIngredients(p *plan.MealPlan, results map[catalog.CID]market.ResolvedIngredient) []inbound.UniqueIngredientDTO {
	totals := make(map[catalog.CID]int)
	for _, day := range p.Days() {
		for _, meal := range day.Meals {
			for _, portion := range meal.Solution {
				totals[portion.CID] += portion.Grams
			}
		}
	}

	cids := p.UniqueCIDs()
	out := make([]inbound.UniqueIngredientDTO, 0, len(cids))
	for _, cid := range cids {
		res := results[cid]
		out = append(out, inbound.UniqueIngredientDTO{
			CID:           cid,
			DisplayName:   res.DisplayName,
			ChosenSKU:     res.ChosenSKU,
			Confidence:    res.Confidence,
			TotalGrams:    totals[cid],
			QuantityUnits: quantityUnits(totals[cid], res.ChosenSKU),
		})
	}
	return out
}

// quantityUnits renders how much to buy: pack counts against the chosen
// SKU's size, raw grams when no SKU was sourced.
func quantityUnits(totalGrams int, sku *market.SKUCandidate) string {
	if sku == nil || sku.Size.Value <= 0 {
		return fmt.Sprintf("%d g", totalGrams)
	}
	packs := int(math.Ceil(float64(totalGrams) / sku.Size.Value))
	if packs < 1 {
		packs = 1
	}
	return fmt.Sprintf("%d x %.0f %s", packs, sku.Size.Value, sku.Size.Unit)
}
