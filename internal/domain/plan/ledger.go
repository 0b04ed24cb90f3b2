package plan

import (
	"sort"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/nutrition"
)

// LedgerRow is one ingredient's contribution to the daily reconciliation,
// computed from solved grams times accepted per-100g nutrition. Sum-linear
// in grams.
type LedgerRow struct {
	CID        catalog.CID `json:"cid"`
	TotalGrams float64     `json:"total_grams"`
	Kcal       float64     `json:"kcal"`
	ProteinG   float64     `json:"protein_g"`
	FatG       float64     `json:"fat_g"`
	CarbG      float64     `json:"carb_g"`
}

// Macros returns the row's contribution as a tuple.
func (r LedgerRow) Macros() nutrition.Macros {
	return nutrition.Macros{Kcal: r.Kcal, Protein: r.ProteinG, Fat: r.FatG, Carbs: r.CarbG}
}

// Ledger accumulates per-ingredient contributions for one day. Only
// fingerprint-accepted nutrition ever enters a ledger; the caller enforces
// that by construction.
type Ledger struct {
	rows map[catalog.CID]*LedgerRow
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{rows: make(map[catalog.CID]*LedgerRow)}
}

// Add accumulates grams of the ingredient at the given per-100g nutrition.
func (l *Ledger) Add(cid catalog.CID, grams float64, per100 nutrition.Macros) {
	row, ok := l.rows[cid]
	if !ok {
		row = &LedgerRow{CID: cid}
		l.rows[cid] = row
	}
	contribution := per100.Scale(grams / 100)
	row.TotalGrams += grams
	row.Kcal += contribution.Kcal
	row.ProteinG += contribution.Protein
	row.FatG += contribution.Fat
	row.CarbG += contribution.Carbs
}

// Rows returns the rows sorted by CID for deterministic output.
func (l *Ledger) Rows() []LedgerRow {
	out := make([]LedgerRow, 0, len(l.rows))
	for _, row := range l.rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CID < out[j].CID })
	return out
}

// Totals sums every row.
func (l *Ledger) Totals() nutrition.Macros {
	var totals nutrition.Macros
	for _, row := range l.rows {
		totals = totals.Add(row.Macros())
	}
	return totals
}

// Empty reports whether nothing has been accumulated. An empty ledger means
// no SKU resolved at all and the plan cannot be verified.
func (l *Ledger) Empty() bool {
	return len(l.rows) == 0
}
