// Package catalog owns ingredient identity: the normalizer that collapses
// noisy display names and product titles onto canonical keys, the static
// registry of purchasable ingredients (CIDs), and the search-query ladder
// built from registry entries.
package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultLevenshteinCeiling bounds last-resort fuzzy matching. Anything
// further apart than this is treated as a different ingredient.
const DefaultLevenshteinCeiling = 3

// brandPrefixes are leading tokens that carry no ingredient identity.
// Stripped only from the front so "organic" survives inside compound names.
var brandPrefixes = map[string]bool{
	"fresh":     true,
	"organic":   true,
	"premium":   true,
	"finest":    true,
	"classic":   true,
	"original":  true,
	"simply":    true,
	"essential": true,
	"everyday":  true,
	"value":     true,
	"select":    true,
	"signature": true,
	"deluxe":    true,
}

// packSuffixes are trailing tokens that describe packaging, not food.
var packSuffixes = map[string]bool{
	"pack":      true,
	"packet":    true,
	"multipack": true,
	"bag":       true,
	"tub":       true,
	"jar":       true,
	"tin":       true,
	"can":       true,
	"bottle":    true,
	"box":       true,
	"punnet":    true,
	"portion":   true,
	"serving":   true,
}

// qualityAdjectives are dropped wherever they appear. Words that change
// nutrition (lean, smoked, dried, wholemeal) deliberately stay.
var qualityAdjectives = map[string]bool{
	"extra":    true,
	"large":    true,
	"medium":   true,
	"small":    true,
	"jumbo":    true,
	"baby":     true,
	"mini":     true,
	"ripe":     true,
	"juicy":    true,
	"tasty":    true,
	"crunchy":  true,
	"creamy":   true,
	"smooth":   true,
	"chunky":   true,
	"seedless": true,
	"boneless": true,
	"skinless": true,
	"unsalted": true,
	"salted":   true,
}

// synonyms maps both whole keys and single tokens onto canonical spellings.
// Values must themselves be normalized fixed points. Single-token entries
// are also applied inside longer keys, which is why multi-token expansions
// such as rice -> rice_white are only ever matched against the whole key.
var synonyms = map[string]string{
	// token level spellings
	"yoghurt":    "yogurt",
	"courgette":  "zucchini",
	"aubergine":  "eggplant",
	"prawn":      "shrimp",
	"wholewheat": "wholemeal",
	"soya":       "soy",
	"beetroots":  "beetroot",

	// poultry and meat
	"chicken_fillet":         "chicken_breast",
	"chicken_breast_fillet":  "chicken_breast",
	"chicken_mini_fillet":    "chicken_breast",
	"minced_beef":            "beef_mince",
	"ground_beef":            "beef_mince",
	"beef_mince_5_pct":       "beef_mince_lean",
	"lean_beef_mince":        "beef_mince_lean",
	"minced_turkey":          "turkey_mince",
	"ground_turkey":          "turkey_mince",
	"king_shrimp":            "shrimp",

	// grains and bakery
	"rolled_oats":      "oats",
	"porridge_oats":    "oats",
	"porridge":         "oats",
	"oatmeal":          "oats",
	"instant_oats":     "oats",
	"rice":             "rice_white",
	"white_rice":       "rice_white",
	"brown_rice":       "rice_brown",
	"basmati":          "basmati_rice",
	"spaghetti":        "pasta",
	"penne":            "pasta",
	"fusilli":          "pasta",
	"macaroni":         "pasta",
	"wholemeal_pasta":  "pasta_wholemeal",
	"wholemeal_bread":  "bread_wholemeal",
	"brown_bread":      "bread_wholemeal",
	"white_bread":      "bread_white",
	"wrap":             "tortilla",
	"garbanzo_bean":    "chickpea",

	// dairy
	"natural_yogurt":        "yogurt_natural",
	"plain_yogurt":          "yogurt_natural",
	"greek_style_yogurt":    "greek_yogurt",
	"full_fat_greek_yogurt": "greek_yogurt",
	"whole_milk":            "milk_whole",
	"full_fat_milk":         "milk_whole",
	"skimmed_milk":          "milk_skim",
	"semi_skimmed_milk":     "milk_skim",

	// produce
	"capsicum":        "bell_pepper",
	"red_pepper":      "bell_pepper",
	"green_pepper":    "bell_pepper",
	"yellow_pepper":   "bell_pepper",
	"sweetcorn":       "corn",
	"corn_on_the_cob": "corn",

	// fats, sauces, pantry
	"virgin_olive_oil":       "olive_oil",
	"extra_virgin_olive_oil": "olive_oil",
	"evoo":                   "olive_oil",
	"cooking_spray":          "oil_spray",
	"low_calorie_spray":      "oil_spray",
	"light_soy_sauce":        "soy_sauce",
	"tomato_puree":           "tomato_paste",
	"protein_powder":         "whey_protein",
	"light_mozzarella":       "mozzarella_light",
	"reduced_fat_mozzarella": "mozzarella_light",
}

// pluralExceptions are mass nouns whose trailing s is part of the word.
var pluralExceptions = map[string]bool{
	"oats":      true,
	"hummus":    true,
	"couscous":  true,
	"asparagus": true,
	"lentils":   true,
}

var packSizePattern = regexp.MustCompile(`^x?[0-9]+(?:g|kg|ml|l|x)?$`)

// Normalize collapses a display name or product title onto its canonical
// key form. Total and deterministic; Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := foldDiacritics(raw)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "%", " pct ")
	s = separatorsToSpace(s)

	tokens := strings.Fields(s)
	tokens = dropLeadingPrefixes(tokens)
	tokens = dropTrailingPackTokens(tokens)
	tokens = dropQualityAdjectives(tokens)

	key := strings.Join(tokens, "_")
	key = applySynonyms(key)
	key = foldPlurals(key)
	// Second pass so plural-folded forms re-match (prawns -> prawn -> shrimp).
	key = applySynonyms(key)
	return key
}

// FuzzyCandidates returns lookup keys for key in priority order: exact,
// quality-stripped, first word, last word, numeric-suffix-stripped.
func FuzzyCandidates(key string) []string {
	out := make([]string, 0, 5)
	seen := make(map[string]bool, 5)
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	add(key)
	add(strings.Join(dropQualityAdjectives(strings.Split(key, "_")), "_"))
	if parts := strings.Split(key, "_"); len(parts) > 1 {
		add(parts[0])
		add(parts[len(parts)-1])
	}
	add(strings.Join(dropTrailingPackTokens(strings.Split(key, "_")), "_"))
	return out
}

// Levenshtein returns the edit distance between a and b, or ceiling+1 as
// soon as the distance provably exceeds ceiling.
func Levenshtein(a, b string, ceiling int) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(rb)-len(ra) > ceiling {
		return ceiling + 1
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		rowMin := curr[0]
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = min3(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
			if curr[i] < rowMin {
				rowMin = curr[i]
			}
		}
		if rowMin > ceiling {
			return ceiling + 1
		}
		prev, curr = curr, prev
	}
	if prev[len(ra)] > ceiling {
		return ceiling + 1
	}
	return prev[len(ra)]
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func separatorsToSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, s)
}

func dropLeadingPrefixes(tokens []string) []string {
	for len(tokens) > 0 && brandPrefixes[tokens[0]] {
		tokens = tokens[1:]
	}
	return tokens
}

func dropTrailingPackTokens(tokens []string) []string {
	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		if packSuffixes[last] || packSizePattern.MatchString(last) {
			tokens = tokens[:len(tokens)-1]
			continue
		}
		break
	}
	return tokens
}

func dropQualityAdjectives(tokens []string) []string {
	kept := tokens[:0:len(tokens)]
	for _, t := range tokens {
		if t == "" || qualityAdjectives[t] {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

func applySynonyms(key string) string {
	if repl, ok := synonyms[key]; ok {
		return repl
	}
	parts := strings.Split(key, "_")
	changed := false
	for i, p := range parts {
		// Token-level substitution only for single-token replacements so a
		// whole-key expansion like rice -> rice_white never fires mid-key.
		if repl, ok := synonyms[p]; ok && !strings.Contains(repl, "_") {
			parts[i] = repl
			changed = true
		}
	}
	if !changed {
		return key
	}
	joined := strings.Join(parts, "_")
	// Token substitution may have produced a known whole key
	// (king_prawn -> king_shrimp -> shrimp).
	if repl, ok := synonyms[joined]; ok {
		return repl
	}
	return joined
}

func foldPlurals(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		parts[i] = singularize(p)
	}
	return strings.Join(parts, "_")
}

func singularize(token string) string {
	if pluralExceptions[token] {
		return token
	}
	switch {
	case len(token) > 4 && strings.HasSuffix(token, "ies"):
		return token[:len(token)-3] + "y"
	case len(token) > 4 && strings.HasSuffix(token, "oes"):
		return token[:len(token)-2]
	case strings.HasSuffix(token, "ss") || strings.HasSuffix(token, "us"):
		return token
	case len(token) > 3 && strings.HasSuffix(token, "s"):
		return token[:len(token)-1]
	}
	return token
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
