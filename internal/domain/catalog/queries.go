package catalog

import "strings"

// QueryLevel names a rung of the search ladder.
type QueryLevel string

const (
	QueryTight  QueryLevel = "tight"
	QueryNormal QueryLevel = "normal"
	QueryWide   QueryLevel = "wide"
)

// Query is one search request against a store.
type Query struct {
	Level QueryLevel `json:"level"`
	Terms string     `json:"terms"`
}

// PredicateBundle carries the static vetting data alongside the queries so
// the market run never reaches back into the registry mid-flight.
type PredicateBundle struct {
	RequiredAny     []string  `json:"required_any"`
	MustExclude     []string  `json:"must_exclude"`
	StoreCategories []string  `json:"store_categories,omitempty"`
	CategoryRule    string    `json:"category_rule,omitempty"`
	PackSizes       []float64 `json:"pack_sizes,omitempty"`
	Pantry          bool      `json:"pantry,omitempty"`
	Produce         bool      `json:"produce,omitempty"`
	Liquid          bool      `json:"liquid,omitempty"`
}

// TargetPackSize picks the typical pack closest to the required grams: the
// smallest pack covering the need, or the largest pack when none does.
// Mirrors IngredientSpec.TargetPackSize for callers holding only the bundle.
func (p PredicateBundle) TargetPackSize(requiredG float64) float64 {
	if len(p.PackSizes) == 0 {
		return requiredG
	}
	for _, size := range p.PackSizes {
		if size >= requiredG {
			return size
		}
	}
	return p.PackSizes[len(p.PackSizes)-1]
}

// QueryPlan is the full search order for one ingredient at one store.
type QueryPlan struct {
	CID        CID             `json:"cid"`
	Store      string          `json:"store"`
	Queries    []Query         `json:"queries"`
	Predicates PredicateBundle `json:"predicates"`
}

// BuildQueries derives the tight/normal/wide ladder from the core terms.
// Rungs that would repeat a previous query are collapsed, so a single-term
// ingredient produces a one-rung ladder. Queries are never model-generated.
func BuildQueries(spec IngredientSpec, store string) QueryPlan {
	terms := spec.CoreTerms
	ladder := []struct {
		level QueryLevel
		n     int
	}{
		{QueryTight, len(terms)},
		{QueryNormal, 2},
		{QueryWide, 1},
	}

	queries := make([]Query, 0, 3)
	seen := make(map[string]bool, 3)
	for _, rung := range ladder {
		n := rung.n
		if n > len(terms) {
			n = len(terms)
		}
		if n < 1 {
			continue
		}
		q := strings.Join(terms[:n], " ")
		if seen[q] {
			continue
		}
		seen[q] = true
		queries = append(queries, Query{Level: rung.level, Terms: q})
	}

	return QueryPlan{
		CID:     spec.CID,
		Store:   store,
		Queries: queries,
		Predicates: PredicateBundle{
			RequiredAny:     spec.RequiredAny(),
			MustExclude:     spec.MustExclude,
			StoreCategories: spec.StoreCategories,
			CategoryRule:    spec.CategoryRule,
			PackSizes:       spec.PackSizes,
			Pantry:          spec.Pantry,
			Produce:         spec.Produce,
			Liquid:          spec.Liquid,
		},
	}
}
