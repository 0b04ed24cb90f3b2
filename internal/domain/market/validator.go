package market

import (
	"math"
	"strings"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// globalBanned are title phrases that disqualify a product outright no
// matter which ingredient is being searched. Store search endpoints happily
// return pet food for "chicken" and cleaning products for "lemon".
var globalBanned = []string{
	"cigarette", "tobacco", "vape",
	"dog food", "cat food", "dog treat", "cat treat", "puppy", "kitten", "bird seed",
	"detergent", "bleach", "fabric softener", "dishwasher", "disinfectant",
	"air freshener", "surface cleaner", "toilet cleaner", "washing up liquid",
	"shampoo", "conditioner", "toothpaste", "deodorant", "shower gel", "mouthwash",
	"hand wash", "bubble bath",
	"multivitamin", "supplement", "capsules",
	"candle", "batteries", "kitchen foil", "cling film", "kitchen roll",
	"toilet roll", "bin bags", "bin liner",
}

// RejectReason explains why a candidate failed vetting.
type RejectReason string

const (
	ReasonBanned          RejectReason = "banned_keyword"
	ReasonExcluded        RejectReason = "negative_keyword"
	ReasonMissingRequired RejectReason = "missing_required_term"
	ReasonCategory        RejectReason = "category_mismatch"
	ReasonSizeUnknown     RejectReason = "size_unparseable"
	ReasonSize            RejectReason = "size_out_of_range"
	ReasonUnitPrice       RejectReason = "unit_price_out_of_range"
	ReasonPriceOutlier    RejectReason = "price_outlier"
)

// Verdict is the outcome of vetting one candidate. Score only carries
// meaning on a pass; 1.0 or better marks a high-confidence match.
type Verdict struct {
	Pass   bool         `json:"pass"`
	Reason RejectReason `json:"reason,omitempty"`
	Score  float64      `json:"score"`
}

// ValidatorConfig carries the vetting thresholds. Size bounds are factors
// on the CID's target pack size.
type ValidatorConfig struct {
	SizeLowerFactor       float64
	SizeUpperFactor       float64
	PantrySizeUpperFactor float64
	MaxUnitPrice100       decimal.Decimal
	OutlierZScore         float64
	OutlierMinSample      int
}

// DefaultValidatorConfig returns the standard thresholds.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		SizeLowerFactor:       0.5,
		SizeUpperFactor:       2.0,
		PantrySizeUpperFactor: 3.0,
		MaxUnitPrice100:       decimal.NewFromInt(1000),
		OutlierZScore:         2.0,
		OutlierMinSample:      3,
	}
}

// Validator applies the deterministic gates, in order, with first-failure
// short circuit. It holds no per-ingredient state and is safe to share
// across workers.
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator creates a validator with the given thresholds.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.OutlierMinSample < 3 {
		cfg.OutlierMinSample = 3
	}
	return &Validator{cfg: cfg}
}

// Validate vets one candidate against the ingredient's predicate bundle.
// requiredG is the plan-wide requirement driving the size gate.
func (v *Validator) Validate(sku SKUCandidate, pred catalog.PredicateBundle, requiredG float64) Verdict {
	title := strings.ToLower(sku.Title)

	for _, phrase := range globalBanned {
		if strings.Contains(title, phrase) {
			return Verdict{Reason: ReasonBanned}
		}
	}

	for _, phrase := range pred.MustExclude {
		if strings.Contains(title, strings.ToLower(phrase)) {
			return Verdict{Reason: ReasonExcluded}
		}
	}

	matched := 0
	if len(pred.RequiredAny) > 0 {
		tokens := titleLemmas(title)
		for _, term := range pred.RequiredAny {
			if tokens[lemma(strings.ToLower(term))] {
				matched++
			}
		}
		if matched == 0 {
			return Verdict{Reason: ReasonMissingRequired}
		}
	}

	category := strings.ToLower(sku.Category)
	categoryMatched := false
	if pred.CategoryRule != "" {
		// Hard gate: the store category must name the rule substring.
		if !strings.Contains(category, pred.CategoryRule) {
			return Verdict{Reason: ReasonCategory}
		}
		categoryMatched = true
	} else if len(pred.StoreCategories) > 0 && category != "" {
		// Soft gate: an absent category passes, a foreign one does not.
		for _, allowed := range pred.StoreCategories {
			if strings.Contains(category, strings.ToLower(allowed)) {
				categoryMatched = true
				break
			}
		}
		if !categoryMatched {
			return Verdict{Reason: ReasonCategory}
		}
	}

	if !pred.Produce {
		if sku.Size.IsZero() {
			return Verdict{Reason: ReasonSizeUnknown}
		}
		target := pred.TargetPackSize(requiredG)
		upper := v.cfg.SizeUpperFactor
		if pred.Pantry {
			upper = v.cfg.PantrySizeUpperFactor
		}
		if sku.Size.Value < target*v.cfg.SizeLowerFactor || sku.Size.Value > target*upper {
			return Verdict{Reason: ReasonSize}
		}
	}

	if !sku.UnitPrice100.IsPositive() || sku.UnitPrice100.GreaterThanOrEqual(v.cfg.MaxUnitPrice100) {
		return Verdict{Reason: ReasonUnitPrice}
	}

	score := 1.0
	if len(pred.RequiredAny) > 0 {
		score = float64(matched) / float64(len(pred.RequiredAny))
	}
	if categoryMatched {
		score += 0.2
	}
	return Verdict{Pass: true, Score: score}
}

// ApplyPriceOutlierGuard drops candidates whose unit price sits more than
// the configured z-score from the sample mean. Needs at least three
// candidates; a flat price distribution drops nothing. Returns the kept and
// dropped sets.
func (v *Validator) ApplyPriceOutlierGuard(candidates []SKUCandidate) (kept, dropped []SKUCandidate) {
	if len(candidates) < v.cfg.OutlierMinSample {
		return candidates, nil
	}

	prices := make([]float64, len(candidates))
	var sum float64
	for i, c := range candidates {
		prices[i] = c.UnitPrice100.InexactFloat64()
		sum += prices[i]
	}
	mean := sum / float64(len(prices))

	var variance float64
	for _, p := range prices {
		variance += (p - mean) * (p - mean)
	}
	stdev := math.Sqrt(variance / float64(len(prices)))
	if stdev == 0 {
		return candidates, nil
	}

	for i, c := range candidates {
		if math.Abs(prices[i]-mean)/stdev > v.cfg.OutlierZScore {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

// titleLemmas tokenizes a lowercased title into lemmatized tokens.
func titleLemmas(title string) map[string]bool {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	tokens := make(map[string]bool, len(fields))
	for _, f := range fields {
		tokens[lemma(f)] = true
	}
	return tokens
}

// lemma folds simple plurals: trailing "ies" to "y", otherwise a trailing
// "s" is dropped.
func lemma(token string) string {
	if strings.HasSuffix(token, "ies") && len(token) > 3 {
		return token[:len(token)-3] + "y"
	}
	if strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") && len(token) > 3 {
		return token[:len(token)-1]
	}
	return token
}
