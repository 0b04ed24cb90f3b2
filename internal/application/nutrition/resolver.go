// Package nutrition implements the nutrition resolution use case: walking
// the source ladder from the in-process hot table down to the external
// free-text provider until a trusted per-100g row comes back.
//
// The ladder order is fixed: hot table, canonical store (exact then fuzzy),
// barcode provider, free-text provider. Every row that leaves the resolver
// has passed the caller's fingerprint gate, so downstream consumers never
// re-check provenance.
package nutrition

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/ports/outbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
)

// Request identifies one ingredient to resolve. Key is the normalized
// ingredient key and always present; Barcode and Query come from the chosen
// SKU when the market run found one. Fingerprint, when set, is the expected
// per-100g profile every candidate row must match.
type Request struct {
	Key         string
	CID         catalog.CID
	Barcode     string
	Query       string
	Fingerprint *nutrition.Macros
}

// Resolver walks the source ladder for ingredient nutrition. External
// providers sit behind a shared courtesy limiter so a 5-wide worker pool
// cannot hammer them; the canonical store and hot table are free.
type Resolver struct {
	canonical outbound.CanonicalRepository
	barcode   outbound.BarcodeNutritionClient
	freeText  outbound.FoodSearchClient
	limiter   *rate.Limiter
	tolerance nutrition.FingerprintTolerance
	fuzzyMax  int
	logger    *zap.Logger
}

// NewResolver creates a resolver over the given sources. Tolerance
// percentages and the fuzzy match ceiling come from the nutrition config;
// zero values fall back to the domain defaults.
func NewResolver(
	cfg *config.Config,
	canonical outbound.CanonicalRepository,
	barcode outbound.BarcodeNutritionClient,
	freeText outbound.FoodSearchClient,
	logger *zap.Logger,
) *Resolver {
	tol := nutrition.DefaultFingerprintTolerance()
	if cfg.Nutrition.FingerprintKcalPct > 0 {
		tol.KcalPct = cfg.Nutrition.FingerprintKcalPct
	}
	if cfg.Nutrition.FingerprintMacroPct > 0 {
		tol.MacroPct = cfg.Nutrition.FingerprintMacroPct
	}

	limit := rate.Inf
	burst := 1
	if cfg.Nutrition.RatePerSec > 0 {
		limit = rate.Limit(cfg.Nutrition.RatePerSec)
		if b := int(cfg.Nutrition.RatePerSec); b > burst {
			burst = b
		}
	}

	fuzzyMax := cfg.Nutrition.FuzzyMaxDistance
	if fuzzyMax < 0 {
		fuzzyMax = 0
	}

	return &Resolver{
		canonical: canonical,
		barcode:   barcode,
		freeText:  freeText,
		limiter:   rate.NewLimiter(limit, burst),
		tolerance: tol,
		fuzzyMax:  fuzzyMax,
		logger:    logger.Named("nutrition-resolver"),
	}
}

// Resolve returns the first ladder row that clears the fingerprint gate.
// Source failures and fingerprint rejections demote to the next rung; they
// never abort the walk. An all-source miss is a NUTRITION_NOT_FOUND error
// unless at least one row was rejected by the gate, in which case the
// mismatch is reported instead so the caller sees why nothing survived.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*nutrition.Row, error) {
	key := catalog.Normalize(req.Key)
	if key == "" {
		return nil, apperrors.NewNutritionNotFoundError(req.Key)
	}

	var lastMismatch error
	accept := func(row nutrition.Row, matched string) *nutrition.Row {
		if err := r.gate(row, req); err != nil {
			lastMismatch = err
			return nil
		}
		r.trace(req, row, matched)
		out := row
		return &out
	}

	if row, ok := nutrition.LookupHot(key); ok {
		if out := accept(row, key); out != nil {
			return out, nil
		}
	}

	if row, matched := r.fromCanonical(ctx, key); row != nil {
		if out := accept(*row, matched); out != nil {
			return out, nil
		}
	}

	if req.Barcode != "" {
		if row := r.fromBarcode(ctx, req); row != nil {
			if out := accept(*row, req.Barcode); out != nil {
				return out, nil
			}
		}
	}

	if row := r.fromFreeText(ctx, req, key); row != nil {
		if out := accept(*row, key); out != nil {
			return out, nil
		}
	}

	if lastMismatch != nil {
		return nil, apperrors.NewFingerprintMismatchError(string(req.CID), lastMismatch.Error())
	}
	return nil, apperrors.NewNutritionNotFoundError(req.Key)
}

// fromCanonical tries the canonical store with the fuzzy candidate keys in
// priority order, then an edit-distance fallback. Returns the row and the
// key it actually matched.
func (r *Resolver) fromCanonical(ctx context.Context, key string) (*nutrition.Row, string) {
	for _, candidate := range catalog.FuzzyCandidates(key) {
		row, err := r.canonical.FindByKey(ctx, candidate)
		if err != nil {
			r.logger.Warn("Canonical lookup failed",
				zap.String("key", candidate),
				zap.Error(err))
			return nil, ""
		}
		if row != nil {
			return row, candidate
		}
	}

	if r.fuzzyMax > 0 {
		row, matched, err := r.canonical.FindNearest(ctx, key, r.fuzzyMax)
		if err != nil {
			r.logger.Warn("Canonical fuzzy lookup failed",
				zap.String("key", key),
				zap.Error(err))
			return nil, ""
		}
		if row != nil {
			return row, matched
		}
	}
	return nil, ""
}

// fromBarcode queries the barcode provider through the courtesy limiter.
// Misses and upstream failures both demote; the distinction only matters
// for the log line.
func (r *Resolver) fromBarcode(ctx context.Context, req Request) *nutrition.Row {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil
	}
	row, err := r.barcode.FetchByBarcode(ctx, req.Barcode)
	if err != nil {
		if !apperrors.Is(err, apperrors.CodeNutritionNotFound) {
			r.logger.Warn("Barcode provider failed",
				zap.String("barcode", req.Barcode),
				zap.Error(err))
		}
		return nil
	}
	return row
}

// fromFreeText queries the last-resort text provider. The query prefers the
// SKU title when one exists; otherwise the normalized key is humanized back
// into words.
func (r *Resolver) fromFreeText(ctx context.Context, req Request, key string) *nutrition.Row {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = strings.ReplaceAll(key, "_", " ")
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil
	}
	row, err := r.freeText.SearchFood(ctx, query)
	if err != nil {
		if !apperrors.Is(err, apperrors.CodeNutritionNotFound) {
			r.logger.Warn("Food search provider failed",
				zap.String("query", query),
				zap.Error(err))
		}
		return nil
	}
	return row
}

// gate applies the fingerprint check when the request carries an
// expectation. Rejections are logged with the failing source so a noisy
// provider shows up in the run trace.
func (r *Resolver) gate(row nutrition.Row, req Request) error {
	if req.Fingerprint == nil {
		return nil
	}
	if err := nutrition.CheckFingerprint(row.Macros, *req.Fingerprint, r.tolerance); err != nil {
		r.logger.Warn("Nutrition row rejected by fingerprint gate",
			zap.String("cid", string(req.CID)),
			zap.String("source", string(row.Source)),
			zap.Error(err))
		return err
	}
	return nil
}

func (r *Resolver) trace(req Request, row nutrition.Row, matched string) {
	r.logger.Debug("Nutrition resolved",
		zap.String("cid", string(req.CID)),
		zap.String("source", string(row.Source)),
		zap.String("matched", matched),
		zap.Float64("confidence", row.Confidence))
}
