// Package market models supermarket SKU candidates and the deterministic
// vetting that decides which of them may satisfy an ingredient.
package market

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SizeUnit is the base unit a pack size is expressed in.
type SizeUnit string

const (
	SizeGram       SizeUnit = "g"
	SizeMilliliter SizeUnit = "ml"
)

// PackSize is a parsed product size in base units.
type PackSize struct {
	Value float64  `json:"value"`
	Unit  SizeUnit `json:"unit"`
}

// IsZero reports an unparsed size.
func (s PackSize) IsZero() bool {
	return s.Value == 0
}

// sizePattern matches "630g", "1.5 kg", "2x110g", "6 x 330ml", "75cl"
// anywhere in a size string or product title.
var sizePattern = regexp.MustCompile(`(?i)(?:(\d+)\s*x\s*)?(\d+(?:\.\d+)?)\s*(kg|g|ml|cl|l)\b`)

// ParseSize extracts a pack size in grams or milliliters. Multipacks
// multiply out. Returns false when no size can be read.
func ParseSize(text string) (PackSize, bool) {
	m := sizePattern.FindStringSubmatch(text)
	if m == nil {
		return PackSize{}, false
	}

	multiplier := 1.0
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return PackSize{}, false
		}
		multiplier = float64(n)
	}
	value, err := strconv.ParseFloat(m[2], 64)
	if err != nil || value <= 0 {
		return PackSize{}, false
	}

	switch strings.ToLower(m[3]) {
	case "kg":
		return PackSize{Value: multiplier * value * 1000, Unit: SizeGram}, true
	case "g":
		return PackSize{Value: multiplier * value, Unit: SizeGram}, true
	case "l":
		return PackSize{Value: multiplier * value * 1000, Unit: SizeMilliliter}, true
	case "cl":
		return PackSize{Value: multiplier * value * 10, Unit: SizeMilliliter}, true
	case "ml":
		return PackSize{Value: multiplier * value, Unit: SizeMilliliter}, true
	}
	return PackSize{}, false
}

// SKUCandidate is one concrete product returned by a store search. Money is
// decimal; unit price is per 100 base units and derived at construction.
type SKUCandidate struct {
	Title        string          `json:"title"`
	Brand        string          `json:"brand,omitempty"`
	Category     string          `json:"category,omitempty"`
	Price        decimal.Decimal `json:"price"`
	SizeText     string          `json:"size_text,omitempty"`
	Size         PackSize        `json:"size"`
	URL          string          `json:"url"`
	Barcode      string          `json:"barcode,omitempty"`
	UnitPrice100 decimal.Decimal `json:"unit_price_per_100"`
}

// NewSKUCandidate builds a candidate from raw search fields, parsing the
// size (falling back to the title when the size field is empty or
// unreadable) and deriving the unit price.
func NewSKUCandidate(title, brand, category string, price decimal.Decimal, sizeText, url, barcode string) SKUCandidate {
	sku := SKUCandidate{
		Title:    title,
		Brand:    brand,
		Category: category,
		Price:    price,
		SizeText: sizeText,
		URL:      url,
		Barcode:  barcode,
	}
	if size, ok := ParseSize(sizeText); ok {
		sku.Size = size
	} else if size, ok := ParseSize(title); ok {
		sku.Size = size
	}
	if sku.Size.Value > 0 {
		sku.UnitPrice100 = price.Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromFloat(sku.Size.Value)).
			Round(4)
	} else {
		// Per-item pricing ("each" produce). The pack price stands in for
		// the unit price; only produce candidates survive vetting without
		// a parsed size.
		sku.UnitPrice100 = price
	}
	return sku
}

// CheaperThan orders candidates by unit price; ties break on absolute price,
// then lexically by URL so selection stays deterministic.
func (c SKUCandidate) CheaperThan(o SKUCandidate) bool {
	if cmp := c.UnitPrice100.Cmp(o.UnitPrice100); cmp != 0 {
		return cmp < 0
	}
	if cmp := c.Price.Cmp(o.Price); cmp != 0 {
		return cmp < 0
	}
	return c.URL < o.URL
}
