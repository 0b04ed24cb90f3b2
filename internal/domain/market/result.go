package market

import (
	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/nutrition"
)

// Outcome classifies how an ingredient's market run ended.
type Outcome string

const (
	// OutcomeDiscovery means a SKU was chosen and its nutrition accepted.
	OutcomeDiscovery Outcome = "discovery"
	// OutcomeFailed means every rung ran clean but nothing acceptable came back.
	OutcomeFailed Outcome = "failed"
	// OutcomeError means the search itself failed unrecoverably.
	OutcomeError Outcome = "error"
	// OutcomeCanonicalFallback means no SKU, but nutrition resolved from the
	// canonical data against the ingredient name.
	OutcomeCanonicalFallback Outcome = "canonical_fallback"
)

// QueryAttempt records one rung of the ladder for diagnostics.
type QueryAttempt struct {
	Level    catalog.QueryLevel `json:"level"`
	Query    string             `json:"query"`
	Results  int                `json:"results"`
	Accepted int                `json:"accepted"`
	Error    string             `json:"error,omitempty"`
}

// RejectedCandidate records a vetted-out product and why.
type RejectedCandidate struct {
	Title  string       `json:"title"`
	Reason RejectReason `json:"reason"`
}

// Debug is the per-ingredient trace bundle surfaced in the response.
type Debug struct {
	Queries  []string            `json:"queries"`
	Attempts []QueryAttempt      `json:"attempts"`
	Rejected []RejectedCandidate `json:"rejected,omitempty"`
}

// ResolvedIngredient is the final state of one ingredient after the market
// run and nutrition resolution.
type ResolvedIngredient struct {
	CID         catalog.CID    `json:"cid"`
	DisplayName string         `json:"display_name"`
	Outcome     Outcome        `json:"outcome"`
	ChosenSKU   *SKUCandidate  `json:"chosen_sku,omitempty"`
	Confidence  float64        `json:"confidence"`
	Nutrition   *nutrition.Row `json:"nutrition_per_100g,omitempty"`
	Debug       Debug          `json:"debug"`
}

// HasNutrition reports whether the ingredient can contribute to the ledger.
func (r ResolvedIngredient) HasNutrition() bool {
	return r.Nutrition != nil
}
