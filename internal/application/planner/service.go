// Package planner implements the orchestrator: one request flows through
// contract derivation, the model sketch, blueprint validation, the market
// run, nutrition resolution, the portion solver and the ledger check, with
// bounded parallelism inside the fan-out phases and progress events at
// every boundary.
//
// Phase order is a strict happens-before chain; each phase joins its
// workers before the next starts. A phase failure carries the failing phase
// name and the captured log stream on the returned error, so every surface
// can report what the pipeline saw.
package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appmarket "github.com/macrocart/v2/internal/application/market"
	appnutrition "github.com/macrocart/v2/internal/application/nutrition"
	"github.com/macrocart/v2/internal/application/solver"
	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/domain/plan"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/ports/inbound"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"github.com/macrocart/v2/pkg/logger"
)

const defaultRequestTimeout = 180 * time.Second

// Service sequences the pipeline phases. It holds no per-run state and is
// safe for concurrent use.
type Service struct {
	cfg       *config.Config
	builder   *contract.Builder
	sketcher  outbound.SketchClient
	describer outbound.DescriptionClient
	market    *appmarket.Runner
	resolver  *appnutrition.Resolver
	solver    *solver.Solver
	verifier  *solver.Verifier
	logger    *zap.Logger
	tracer    trace.Tracer
}

var _ inbound.PlannerService = (*Service)(nil)

// NewService wires the pipeline from its phase components. The contract
// builder is constructed here from the contract tunables; zero config
// values keep the domain defaults.
func NewService(
	cfg *config.Config,
	sketcher outbound.SketchClient,
	describer outbound.DescriptionClient,
	runner *appmarket.Runner,
	resolver *appnutrition.Resolver,
	solve *solver.Solver,
	verifier *solver.Verifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		builder:   contract.NewBuilder(builderConfig(cfg.Contract)),
		sketcher:  sketcher,
		describer: describer,
		market:    runner,
		resolver:  resolver,
		solver:    solve,
		verifier:  verifier,
		logger:    logger.Named("planner"),
		tracer:    otel.Tracer("planner"),
	}
}

// GeneratePlan runs the whole pipeline and returns the assembled response.
func (s *Service) GeneratePlan(ctx context.Context, cmd inbound.GeneratePlanCommand) (*inbound.PlanResponse, error) {
	return s.run(ctx, cmd, nil)
}

// StreamPlan runs the pipeline while forwarding every captured entry to
// sink, then emits the terminal event: "finalData" with the response on
// success, an error entry with the failure payload otherwise.
func (s *Service) StreamPlan(ctx context.Context, cmd inbound.GeneratePlanCommand, sink inbound.ProgressSink) error {
	resp, err := s.run(ctx, cmd, sink)
	if err != nil {
		_ = sink(logger.Entry{
			TS:      time.Now(),
			Level:   "error",
			Tag:     "error",
			Message: "plan generation failed",
			Data:    FailurePayload(err),
		})
		return err
	}
	return sink(logger.Entry{
		TS:      time.Now(),
		Level:   "info",
		Tag:     "finalData",
		Message: "plan complete",
		Data:    resp,
	})
}

// FailurePayload shapes an error into the wire failure body. The failing
// phase and the captured log stream travel on the AppError metadata.
func FailurePayload(err error) inbound.PlanFailure {
	appErr := apperrors.Wrap(err, "plan generation failed")
	failure := inbound.PlanFailure{
		Error:  string(appErr.Code),
		Reason: appErr.Message,
	}
	if appErr.Details != "" {
		failure.Reason = fmt.Sprintf("%s: %s", appErr.Message, appErr.Details)
	}
	if logs, ok := appErr.Metadata["logs"].([]logger.Entry); ok {
		failure.Logs = logs
	}
	return failure
}

// run executes the pipeline. A non-nil sink receives every captured entry
// as it is written; the terminal event is the caller's concern.
func (s *Service) run(ctx context.Context, cmd inbound.GeneratePlanCommand, sink inbound.ProgressSink) (resp *inbound.PlanResponse, err error) {
	timeout := s.cfg.Planner.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log, capture := logger.WithCapture(s.logger, zapcore.InfoLevel, s.cfg.Planner.LogLimit)
	if sink != nil {
		var mu sync.Mutex
		var streamDown bool
		capture.Observe(func(e logger.Entry) {
			mu.Lock()
			defer mu.Unlock()
			if streamDown {
				return
			}
			if sinkErr := sink(e); sinkErr != nil {
				streamDown = true
			}
		})
	}

	phase := "contract"
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Pipeline panic",
				logger.Phase(phase),
				zap.Any("panic", r),
				zap.Stack("stack"))
			resp = nil
			err = s.fail(log, capture, phase, apperrors.NewUncaughtError(fmt.Errorf("panic: %v", r)))
		}
	}()

	if cmd.Store == "" {
		cmd.Store = s.cfg.Market.DefaultStore
	}

	c, buildErr := s.builder.Build(cmd.Profile())
	if buildErr != nil {
		return nil, s.fail(log, capture, phase, apperrors.NewValidationError(buildErr.Error()))
	}
	log.Info("Contract built",
		logger.Phase(phase),
		zap.Float64("kcal", c.Kcal),
		zap.Float64("protein_g", c.ProteinG),
		zap.Float64("fat_g", c.FatG),
		zap.Float64("carb_g", c.CarbG))

	phase = "sketch"
	sketchCtx, sketchSpan := s.tracer.Start(ctx, "planner.sketch")
	sketch, sketchErr := s.sketcher.Sketch(sketchCtx, outbound.SketchRequest{
		Contract:         c,
		Days:             cmd.Days,
		EatingOccasions:  cmd.EatingOccasions,
		DietaryTags:      cmd.DietaryTags,
		CuisinePrompt:    cmd.CuisinePrompt,
		KnownIngredients: knownIngredients(),
	})
	if sketchErr != nil {
		sketchSpan.RecordError(sketchErr)
		sketchSpan.End()
		return nil, s.fail(log, capture, phase, sketchErr)
	}
	sketchSpan.End()

	phase = "blueprint"
	p, unmapped, planErr := buildPlan(c, cmd, sketch)
	if planErr != nil {
		return nil, s.fail(log, capture, phase, planErr)
	}
	for _, u := range unmapped {
		log.Warn("Ingredient has no canonical entry",
			logger.Phase(phase),
			zap.String("name", u.Name),
			zap.String("key", u.NormalizedKey))
	}
	cids := p.UniqueCIDs()
	log.Info("Blueprint validated",
		logger.Phase(phase),
		zap.Int("days", len(p.Days())),
		zap.Int("ingredients", len(cids)),
		zap.Int("unmapped", len(unmapped)))

	if err := s.checkpoint(ctx, log, capture, phase); err != nil {
		return nil, err
	}

	phase = "market_run"
	marketCtx, marketSpan := s.tracer.Start(ctx, "planner.market_run")
	searches := s.market.Run(marketCtx, cmd.Store, marketTasks(p), func(res appmarket.SearchResult) {
		switch {
		case res.Err != nil:
			log.Warn("Ingredient search failed",
				logger.Phase(phase),
				logger.CID(string(res.CID)),
				zap.Error(res.Err))
		case res.ChosenSKU != nil:
			log.Info("Ingredient sourced",
				logger.Phase(phase),
				logger.CID(string(res.CID)),
				zap.String("title", res.ChosenSKU.Title),
				zap.Float64("score", res.Score))
		default:
			log.Warn("No acceptable product",
				logger.Phase(phase),
				logger.CID(string(res.CID)))
		}
	})
	marketSpan.End()
	log.Info("Market run complete",
		logger.Phase(phase),
		zap.Int("ingredients", len(cids)),
		zap.Int("sourced", sourcedCount(searches)))

	if err := s.checkpoint(ctx, log, capture, phase); err != nil {
		return nil, err
	}

	phase = "nutrition_resolve"
	resolveCtx, resolveSpan := s.tracer.Start(ctx, "planner.nutrition_resolve")
	results := s.resolveNutrition(resolveCtx, log, phase, cids, searches)
	resolveSpan.End()
	rows := acceptedRows(results)
	log.Info("Nutrition resolution complete",
		logger.Phase(phase),
		zap.Int("resolved", len(rows)),
		zap.Int("ingredients", len(cids)))

	if err := s.checkpoint(ctx, log, capture, phase); err != nil {
		return nil, err
	}

	phase = "solver"
	_, solveSpan := s.tracer.Start(ctx, "planner.solver")
	label, solveErr := s.solver.Solve(p, rows)
	if solveErr != nil {
		solveSpan.RecordError(solveErr)
		solveSpan.End()
		return nil, s.fail(log, capture, phase, solveErr)
	}
	solveSpan.End()
	log.Info("Plan solved",
		logger.Phase(phase),
		zap.String("label", string(label)),
		zap.Bool("boosted", p.Boosted()))

	phase = "ledger"
	verdict := s.verifier.Verify(p, rows)
	if markErr := p.MarkVerified(verdict.OK); markErr != nil {
		return nil, s.fail(log, capture, phase, markErr)
	}
	if !verdict.OK {
		detail := violationSummary(verdict)
		failErr := apperrors.NewFinalMacroMismatchError(detail)
		if label == plan.SolveMinG {
			failErr = apperrors.NewMacroInfeasibleError(detail)
		}
		failErr = failErr.
			WithMetadata("ledger", verdict.Totals).
			WithMetadata("contract", c).
			WithMetadata("worst_day", verdict.WorstDay)
		return nil, s.fail(log, capture, phase, failErr)
	}
	log.Info("Ledger verified",
		logger.Phase(phase),
		zap.Int("worst_day", verdict.WorstDay),
		zap.Float64("kcal", verdict.Totals.Kcal))

	if s.cfg.Planner.EnableDescriptions && s.describer != nil {
		phase = "describe"
		describeCtx, describeSpan := s.tracer.Start(ctx, "planner.describe")
		s.describeMeals(describeCtx, log, p)
		describeSpan.End()
	}

	phase = "assemble"
	log.Info("Plan assembled",
		logger.Phase(phase),
		zap.Int("days", len(p.Days())),
		zap.String("status", string(p.Status())))
	return s.assemble(c, p, results, verdict, capture), nil
}

// checkpoint enforces phase-boundary cancellation: work already in flight
// finishes, but no later phase starts once the request is dead.
func (s *Service) checkpoint(ctx context.Context, log *zap.Logger, capture *logger.Capture, phase string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return s.fail(log, capture, phase, apperrors.NewUncaughtError(ctxErr))
	}
	return nil
}

// fail logs the failure into the captured stream, then attaches the phase
// and the stream itself to the error.
func (s *Service) fail(log *zap.Logger, capture *logger.Capture, phase string, cause error) error {
	appErr := apperrors.Wrap(cause, "plan generation failed")
	log.Error("Pipeline phase failed",
		logger.Phase(phase),
		zap.String("code", string(appErr.Code)),
		zap.Error(appErr))
	return appErr.
		WithMetadata("phase", phase).
		WithMetadata("logs", capture.Entries())
}

// resolveNutrition fans the resolver out over a bounded worker pool and
// classifies each ingredient's terminal outcome. Per-ingredient progress is
// logged from the collecting goroutine.
func (s *Service) resolveNutrition(
	ctx context.Context,
	log *zap.Logger,
	phase string,
	cids []catalog.CID,
	searches map[catalog.CID]appmarket.SearchResult,
) map[catalog.CID]market.ResolvedIngredient {
	out := make(map[catalog.CID]market.ResolvedIngredient, len(cids))
	if len(cids) == 0 {
		return out
	}

	workers := s.cfg.Nutrition.Workers
	if workers <= 0 {
		workers = 5
	}

	jobs := make(chan catalog.CID)
	results := make(chan market.ResolvedIngredient)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cid := range jobs {
				results <- s.resolveOne(ctx, cid, searches[cid])
			}
		}()
	}

	go func() {
		for _, cid := range cids {
			jobs <- cid
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for res := range results {
		out[res.CID] = res
		switch res.Outcome {
		case market.OutcomeDiscovery, market.OutcomeCanonicalFallback:
			log.Info("Nutrition resolved",
				logger.Phase(phase),
				logger.CID(string(res.CID)),
				zap.String("outcome", string(res.Outcome)),
				zap.Float64("confidence", res.Confidence))
		default:
			log.Warn("Ingredient unresolved",
				logger.Phase(phase),
				logger.CID(string(res.CID)),
				zap.String("outcome", string(res.Outcome)))
		}
	}
	return out
}

// resolveOne attaches nutrition to one ingredient and classifies the
// outcome. A chosen SKU contributes its barcode and title to the ladder and
// must clear the registry fingerprint; without one the ladder runs against
// the ingredient name alone.
func (s *Service) resolveOne(ctx context.Context, cid catalog.CID, search appmarket.SearchResult) market.ResolvedIngredient {
	spec, _ := catalog.Lookup(cid)
	res := market.ResolvedIngredient{
		CID:         cid,
		DisplayName: spec.DisplayName,
		ChosenSKU:   search.ChosenSKU,
		Debug:       search.Debug,
	}

	req := appnutrition.Request{Key: string(cid), CID: cid}
	if search.ChosenSKU != nil {
		req.Barcode = search.ChosenSKU.Barcode
		req.Query = search.ChosenSKU.Title
		if expected := spec.ExpectedFingerprint(); !expected.IsZero() {
			fingerprint := expected
			req.Fingerprint = &fingerprint
		}
	}

	row, err := s.resolver.Resolve(ctx, req)
	switch {
	case err == nil && search.ChosenSKU != nil:
		res.Outcome = market.OutcomeDiscovery
		res.Nutrition = row
		res.Confidence = row.Confidence
	case err == nil:
		res.Outcome = market.OutcomeCanonicalFallback
		res.Nutrition = row
		res.Confidence = row.Confidence
	case search.Err != nil:
		res.Outcome = market.OutcomeError
	default:
		res.Outcome = market.OutcomeFailed
	}
	return res
}

// describeMeals enriches solved meals with model-written blurbs. Failures
// degrade to empty descriptions and never fail the plan.
func (s *Service) describeMeals(ctx context.Context, log *zap.Logger, p *plan.MealPlan) {
	type job struct{ di, mi int }
	days := p.Days()

	jobs := make([]job, 0, len(days)*4)
	for di := range days {
		for mi := range days[di].Meals {
			jobs = append(jobs, job{di, mi})
		}
	}

	workers := s.cfg.LLM.DescribeWorkers
	if workers <= 0 {
		workers = 1
	}

	ch := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch {
				if ctx.Err() != nil {
					continue
				}
				meal := &days[j.di].Meals[j.mi]
				text, err := s.describer.Describe(ctx, outbound.DescribeRequest{
					Title: meal.Title,
					Items: describedItems(*meal),
				})
				if err != nil {
					log.Warn("Meal description failed",
						zap.String("title", meal.Title),
						zap.Error(err))
					continue
				}
				meal.Description = text
			}
		}()
	}
	for _, j := range jobs {
		ch <- j
	}
	close(ch)
	wg.Wait()
}

// describedItems lists the display names that ended up on the plate.
// Zero-gram portions stay out of descriptions.
func describedItems(meal plan.Meal) []string {
	grams := make(map[catalog.CID]int, len(meal.Solution))
	for _, portion := range meal.Solution {
		grams[portion.CID] = portion.Grams
	}
	names := make([]string, 0, len(meal.Items))
	for _, item := range meal.Items {
		if item.Mapped() && grams[item.CID] > 0 {
			names = append(names, item.DisplayName)
		}
	}
	return names
}

// marketTasks builds one sourcing task per unique CID, carrying the
// plan-wide gram requirement for the pack size gate.
func marketTasks(p *plan.MealPlan) []appmarket.Task {
	required := p.RequiredGramsByCID()
	cids := p.UniqueCIDs()
	tasks := make([]appmarket.Task, 0, len(cids))
	for _, cid := range cids {
		spec, ok := catalog.Lookup(cid)
		if !ok {
			continue
		}
		tasks = append(tasks, appmarket.Task{Spec: spec, RequiredG: required[cid]})
	}
	return tasks
}

// acceptedRows projects the resolution results down to the rows the solver
// and verifier may trust.
func acceptedRows(results map[catalog.CID]market.ResolvedIngredient) map[catalog.CID]nutrition.Row {
	rows := make(map[catalog.CID]nutrition.Row, len(results))
	for cid, res := range results {
		if res.HasNutrition() {
			rows[cid] = *res.Nutrition
		}
	}
	return rows
}

func sourcedCount(searches map[catalog.CID]appmarket.SearchResult) int {
	n := 0
	for _, res := range searches {
		if res.ChosenSKU != nil {
			n++
		}
	}
	return n
}

func violationSummary(verdict solver.Verdict) string {
	if len(verdict.Violations) == 0 {
		return fmt.Sprintf("day %d violates the contract", verdict.WorstDay)
	}
	msgs := make([]string, 0, len(verdict.Violations))
	for _, v := range verdict.Violations {
		msgs = append(msgs, v.Message)
	}
	return fmt.Sprintf("day %d: %s", verdict.WorstDay, strings.Join(msgs, "; "))
}

// knownIngredients lists every registry display name, nudging the model
// toward ingredients the pipeline can actually source.
func knownIngredients() []string {
	cids := catalog.AllCIDs()
	names := make([]string, 0, len(cids))
	for _, cid := range cids {
		names = append(names, catalog.MustLookup(cid).DisplayName)
	}
	return names
}

// builderConfig overlays the configured contract tunables onto the domain
// defaults.
func builderConfig(cfg config.ContractConfig) contract.BuilderConfig {
	b := contract.DefaultBuilderConfig()
	if cfg.ProteinSplit > 0 {
		b.ProteinSplit = cfg.ProteinSplit
	}
	if cfg.FatSplit > 0 {
		b.FatSplit = cfg.FatSplit
	}
	if cfg.ProteinCapGPerKg > 0 {
		b.ProteinCapGPerKg = cfg.ProteinCapGPerKg
	}
	if cfg.ProteinFloorGPerKg > 0 {
		b.ProteinFloorGPerKg = cfg.ProteinFloorGPerKg
	}
	if cfg.FatCapPct > 0 {
		b.FatCapPct = cfg.FatCapPct
	}
	if cfg.FatFloorGPerKg > 0 {
		b.FatFloorGPerKg = cfg.FatFloorGPerKg
	}
	if cfg.ProteinMaxGPerKg > 0 {
		b.ProteinMaxGPerKg = cfg.ProteinMaxGPerKg
	}
	if cfg.FatMaxFactor > 0 {
		b.FatMaxFactor = cfg.FatMaxFactor
	}
	if cfg.CarbMinFactor > 0 {
		b.CarbMinFactor = cfg.CarbMinFactor
	}
	if cfg.KcalMin > 0 {
		b.KcalMin = cfg.KcalMin
	}
	if cfg.KcalTolerancePct > 0 {
		b.KcalTolerancePct = cfg.KcalTolerancePct
	}
	if cfg.MacroTolerancePct > 0 {
		b.MacroTolerancePct = cfg.MacroTolerancePct
	}
	if cfg.SnackWidening > 0 {
		b.SnackWidening = cfg.SnackWidening
	}
	if cfg.CutModeratePct > 0 {
		b.CutModeratePct = cfg.CutModeratePct
	}
	if cfg.CutAggressivePct > 0 {
		b.CutAggressivePct = cfg.CutAggressivePct
	}
	if cfg.LeanSurplusKcal > 0 {
		b.LeanSurplusKcal = cfg.LeanSurplusKcal
	}
	if cfg.AggressiveSurplusKcal > 0 {
		b.AggressiveSurplusKcal = cfg.AggressiveSurplusKcal
	}
	return b
}
