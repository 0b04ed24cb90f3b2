// Package market implements the market run use case: fanning ingredients
// out over the tight/normal/wide query ladder, vetting every candidate
// through the deterministic gates, and keeping the cheapest acceptable SKU
// per ingredient.
package market

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/ports/outbound"
)

// Task is one ingredient to source. RequiredG is the plan-wide gram
// requirement that drives the pack size gate.
type Task struct {
	Spec      catalog.IngredientSpec
	RequiredG float64
}

// SearchResult is the market half of an ingredient's resolution: the chosen
// SKU when a rung produced one, the full rung trace, and the terminal fetch
// error when every rung failed outright. Nutrition attaches in a later
// phase, so the final outcome is not decided here.
type SearchResult struct {
	CID       catalog.CID
	ChosenSKU *market.SKUCandidate
	Score     float64
	Debug     market.Debug
	Err       error
}

// Runner executes the market run over a bounded worker pool. It holds no
// per-run state and is safe for concurrent use.
type Runner struct {
	searcher  outbound.MarketSearcher
	validator *market.Validator
	workers   int
	skipScore float64
	logger    *zap.Logger
}

// NewRunner builds a runner from the market configuration. Vetting
// thresholds flow into the domain validator; zero config values keep the
// validator defaults.
func NewRunner(cfg *config.Config, searcher outbound.MarketSearcher, logger *zap.Logger) *Runner {
	vcfg := market.DefaultValidatorConfig()
	if cfg.Market.SizeLowerFactor > 0 {
		vcfg.SizeLowerFactor = cfg.Market.SizeLowerFactor
	}
	if cfg.Market.SizeUpperFactor > 0 {
		vcfg.SizeUpperFactor = cfg.Market.SizeUpperFactor
	}
	if cfg.Market.PantrySizeUpperFactor > 0 {
		vcfg.PantrySizeUpperFactor = cfg.Market.PantrySizeUpperFactor
	}
	if cfg.Market.MaxUnitPrice100 > 0 {
		vcfg.MaxUnitPrice100 = decimal.NewFromFloat(cfg.Market.MaxUnitPrice100)
	}
	if cfg.Market.OutlierZScore > 0 {
		vcfg.OutlierZScore = cfg.Market.OutlierZScore
	}
	if cfg.Market.OutlierMinSample > 0 {
		vcfg.OutlierMinSample = cfg.Market.OutlierMinSample
	}

	workers := cfg.Market.Workers
	if workers <= 0 {
		workers = 5
	}

	return &Runner{
		searcher:  searcher,
		validator: market.NewValidator(vcfg),
		workers:   workers,
		skipScore: 1.0,
		logger:    logger.Named("market-run"),
	}
}

// Run sources every task against store and returns the results keyed by
// CID. One ingredient's failure never disturbs its peers. When completed is
// non-nil it is invoked from the collecting goroutine after each ingredient
// finishes, which is how the orchestrator emits per-ingredient progress.
func (r *Runner) Run(ctx context.Context, store string, tasks []Task, completed func(SearchResult)) map[catalog.CID]SearchResult {
	out := make(map[catalog.CID]SearchResult, len(tasks))
	if len(tasks) == 0 {
		return out
	}

	jobs := make(chan Task)
	results := make(chan SearchResult)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- r.searchOne(ctx, store, task)
			}
		}()
	}

	go func() {
		for _, task := range tasks {
			jobs <- task
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for res := range results {
		out[res.CID] = res
		if completed != nil {
			completed(res)
		}
	}
	return out
}

// searchOne walks the ladder for a single ingredient. Accepted candidates
// accumulate across rungs, deduplicated by URL; after the tight rung a
// perfect-score candidate stops the walk early. The final selection is the
// cheapest candidate surviving the price outlier guard.
func (r *Runner) searchOne(ctx context.Context, store string, task Task) SearchResult {
	plan := catalog.BuildQueries(task.Spec, store)
	res := SearchResult{CID: task.Spec.CID}

	var accepted []market.SKUCandidate
	scores := make(map[string]float64)
	seen := make(map[string]bool)
	var lastErr error
	anyRungSucceeded := false

	for _, q := range plan.Queries {
		res.Debug.Queries = append(res.Debug.Queries, q.Terms)
		attempt := market.QueryAttempt{Level: q.Level, Query: q.Terms}

		found, _, err := r.searcher.Search(ctx, store, q.Terms, 1)
		if err != nil {
			attempt.Error = err.Error()
			res.Debug.Attempts = append(res.Debug.Attempts, attempt)
			lastErr = err
			r.logger.Warn("Search rung failed",
				zap.String("cid", string(task.Spec.CID)),
				zap.String("level", string(q.Level)),
				zap.Error(err))
			continue
		}
		anyRungSucceeded = true
		attempt.Results = len(found)

		for _, sku := range found {
			if sku.URL != "" {
				if seen[sku.URL] {
					continue
				}
				seen[sku.URL] = true
			}
			verdict := r.validator.Validate(sku, plan.Predicates, task.RequiredG)
			if !verdict.Pass {
				res.Debug.Rejected = append(res.Debug.Rejected, market.RejectedCandidate{
					Title:  sku.Title,
					Reason: verdict.Reason,
				})
				continue
			}
			scores[sku.URL] = verdict.Score
			accepted = append(accepted, sku)
			attempt.Accepted++
		}
		res.Debug.Attempts = append(res.Debug.Attempts, attempt)

		if q.Level == catalog.QueryTight {
			kept, _ := r.validator.ApplyPriceOutlierGuard(accepted)
			if bestScore(kept, scores) >= r.skipScore {
				r.logger.Debug("Tight rung satisfied, skipping wider rungs",
					zap.String("cid", string(task.Spec.CID)),
					zap.Int("accepted", len(kept)))
				break
			}
		}
	}

	kept, droppedOutliers := r.validator.ApplyPriceOutlierGuard(accepted)
	for _, d := range droppedOutliers {
		res.Debug.Rejected = append(res.Debug.Rejected, market.RejectedCandidate{
			Title:  d.Title,
			Reason: market.ReasonPriceOutlier,
		})
	}

	if chosen, ok := cheapest(kept); ok {
		res.ChosenSKU = &chosen
		res.Score = scores[chosen.URL]
		r.logger.Debug("Ingredient sourced",
			zap.String("cid", string(task.Spec.CID)),
			zap.String("title", chosen.Title),
			zap.String("unit_price_100", chosen.UnitPrice100.String()),
			zap.Float64("score", res.Score))
		return res
	}

	if !anyRungSucceeded && lastErr != nil {
		res.Err = lastErr
		return res
	}
	r.logger.Debug("No acceptable candidate",
		zap.String("cid", string(task.Spec.CID)),
		zap.Int("rejected", len(res.Debug.Rejected)))
	return res
}

// cheapest returns the lowest-unit-price candidate using the deterministic
// domain ordering.
func cheapest(candidates []market.SKUCandidate) (market.SKUCandidate, bool) {
	if len(candidates) == 0 {
		return market.SKUCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.CheaperThan(best) {
			best = c
		}
	}
	return best, true
}

func bestScore(candidates []market.SKUCandidate, scores map[string]float64) float64 {
	best := 0.0
	for _, c := range candidates {
		if s := scores[c.URL]; s > best {
			best = s
		}
	}
	return best
}
