package solver

import (
	"go.uber.org/zap"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/domain/plan"
)

// DayLedger is one day's authoritative reconciliation.
type DayLedger struct {
	Day        int
	Ledger     *plan.Ledger
	Totals     nutrition.Macros
	Violations []contract.Violation
}

// Verdict is the verifier's judgement of a solved plan. Totals and
// Violations describe the worst day so a failing plan surfaces its most
// useful diagnostics first; PerDay carries the full picture.
type Verdict struct {
	OK         bool
	WorstDay   int
	Totals     nutrition.Macros
	Violations []contract.Violation
	PerDay     []DayLedger
}

// Verifier recomputes the plan's ledger from solved grams and accepted
// nutrition rows, then applies the contract predicate per day. The solver's
// own satisfaction claim carries no weight here.
type Verifier struct {
	logger *zap.Logger
}

// NewVerifier creates a verifier.
func NewVerifier(logger *zap.Logger) *Verifier {
	return &Verifier{logger: logger.Named("ledger-verifier")}
}

// Verify reconciles every day of the plan. Rows missing from the accepted
// map contribute nothing to the ledger: an ingredient that never cleared
// the fingerprint gate cannot vouch for any macros.
func (v *Verifier) Verify(p *plan.MealPlan, rows map[catalog.CID]nutrition.Row) Verdict {
	accepted := rows
	if p.Boosted() {
		accepted = withBoosterRows(rows)
	}

	c := p.Contract()
	verdict := Verdict{OK: true}
	worstDrift := -1.0

	for _, day := range p.Days() {
		ledger := plan.NewLedger()
		for _, meal := range day.Meals {
			for _, portion := range meal.Solution {
				row, ok := accepted[portion.CID]
				if !ok {
					continue
				}
				ledger.Add(portion.CID, float64(portion.Grams), row.Macros)
			}
		}

		totals := ledger.Totals()
		violations := c.Check(totals)
		verdict.PerDay = append(verdict.PerDay, DayLedger{
			Day:        day.Day,
			Ledger:     ledger,
			Totals:     totals,
			Violations: violations,
		})
		if len(violations) > 0 {
			verdict.OK = false
		}

		if drift := contractDrift(c, totals); drift > worstDrift {
			worstDrift = drift
			verdict.WorstDay = day.Day
			verdict.Totals = totals
			verdict.Violations = violations
		}
	}

	v.logger.Info("Ledger verified",
		zap.Bool("ok", verdict.OK),
		zap.Int("worst_day", verdict.WorstDay),
		zap.Float64("worst_drift", worstDrift))
	return verdict
}

// contractDrift is the largest relative distance from any macro target,
// used to rank days for diagnostics.
func contractDrift(c contract.MacroContract, totals nutrition.Macros) float64 {
	targets := c.Targets()
	drift := relDrift(totals.Kcal, targets.Kcal)
	if d := relDrift(totals.Protein, targets.Protein); d > drift {
		drift = d
	}
	if d := relDrift(totals.Fat, targets.Fat); d > drift {
		drift = d
	}
	if d := relDrift(totals.Carbs, targets.Carbs); d > drift {
		drift = d
	}
	return drift
}

func relDrift(actual, target float64) float64 {
	if target <= 0 {
		return 0
	}
	d := (actual - target) / target
	if d < 0 {
		d = -d
	}
	return d
}
