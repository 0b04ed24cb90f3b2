package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/macrocart/v2/internal/domain/nutrition"
)

// CID identifies a canonical purchasable ingredient. Every CID doubles as a
// normalized key with a hot-table nutrition row behind it.
type CID string

// Category groups registry entries for store-category gating and pricing.
type Category string

const (
	CategoryProtein   Category = "protein"
	CategoryDairy     Category = "dairy"
	CategoryProduce   Category = "produce"
	CategoryPantry    Category = "pantry"
	CategoryBakery    Category = "bakery"
	CategoryFrozen    Category = "frozen"
	CategoryCondiment Category = "condiment"
)

// IngredientSpec is one registry entry: everything needed to search a store
// for the ingredient, vet the candidates, and sanity-check their nutrition.
type IngredientSpec struct {
	CID         CID
	DisplayName string
	Category    Category

	// CoreTerms drive the query ladder, most specific first.
	CoreTerms []string
	// MustInclude is the required-ANY token set for candidate titles.
	// Empty means CoreTerms double as the required set.
	MustInclude []string
	// MustExclude extends the global banned list for this CID.
	MustExclude []string
	// StoreCategories is a soft allow-list of category substrings.
	StoreCategories []string
	// CategoryRule, when set, is a hard substring the store category must
	// contain. Reserved for CIDs that attract lookalike junk.
	CategoryRule string

	// Expected overrides the hot-table fingerprint when the as-sold product
	// differs from the table row. Zero value means: use the hot-table row.
	Expected  nutrition.Macros
	PackSizes []float64 // grams, or ml when Liquid

	// MaxMealG caps a single meal's portion for calorie-dense items.
	// Zero means no cap.
	MaxMealG float64

	Pantry  bool
	Produce bool
	Liquid  bool
}

// ExpectedFingerprint returns the per-100g macros candidates are checked
// against. Falls back to the hot-table row keyed by the CID.
func (s IngredientSpec) ExpectedFingerprint() nutrition.Macros {
	if !s.Expected.IsZero() {
		return s.Expected
	}
	if row, ok := nutrition.LookupHot(string(s.CID)); ok {
		return row.Macros
	}
	return nutrition.Macros{}
}

// RequiredAny returns the required-ANY token set for title validation.
func (s IngredientSpec) RequiredAny() []string {
	if len(s.MustInclude) > 0 {
		return s.MustInclude
	}
	return s.CoreTerms
}

// TargetPackSize picks the typical pack closest to the required grams: the
// smallest pack covering the need, or the largest pack when none does.
func (s IngredientSpec) TargetPackSize(requiredG float64) float64 {
	if len(s.PackSizes) == 0 {
		return requiredG
	}
	for _, p := range s.PackSizes {
		if p >= requiredG {
			return p
		}
	}
	return s.PackSizes[len(s.PackSizes)-1]
}

var entries = []IngredientSpec{
	// Poultry, meat and fish.
	{
		CID: "chicken_breast", DisplayName: "Chicken breast", Category: CategoryProtein,
		CoreTerms:       []string{"chicken", "breast", "fillet"},
		MustInclude:     []string{"chicken"},
		MustExclude:     []string{"breaded", "southern", "kiev", "nugget", "goujon", "coated", "stuffed", "flavoured"},
		StoreCategories: []string{"meat", "poultry", "chicken"},
		PackSizes:       []float64{300, 500, 650, 1000},
	},
	{
		CID: "chicken_thigh", DisplayName: "Chicken thigh", Category: CategoryProtein,
		CoreTerms:       []string{"chicken", "thigh"},
		MustInclude:     []string{"chicken"},
		MustExclude:     []string{"breaded", "coated", "marinated", "glazed"},
		StoreCategories: []string{"meat", "poultry", "chicken"},
		PackSizes:       []float64{400, 600, 1000},
	},
	{
		CID: "turkey_breast", DisplayName: "Turkey breast", Category: CategoryProtein,
		CoreTerms:       []string{"turkey", "breast"},
		MustInclude:     []string{"turkey"},
		MustExclude:     []string{"breaded", "smoked", "wafer", "slices", "dinosaur"},
		StoreCategories: []string{"meat", "poultry", "turkey"},
		PackSizes:       []float64{300, 500, 700},
	},
	{
		CID: "turkey_mince", DisplayName: "Turkey mince", Category: CategoryProtein,
		CoreTerms:       []string{"turkey", "mince"},
		MustInclude:     []string{"turkey"},
		MustExclude:     []string{"seasoned", "burger", "meatball"},
		StoreCategories: []string{"meat", "poultry", "turkey"},
		PackSizes:       []float64{500, 750},
	},
	{
		CID: "beef_mince", DisplayName: "Beef mince", Category: CategoryProtein,
		CoreTerms:       []string{"beef", "mince"},
		MustInclude:     []string{"beef"},
		MustExclude:     []string{"burger", "meatball", "seasoned", "chilli"},
		StoreCategories: []string{"meat", "beef"},
		PackSizes:       []float64{250, 500, 750},
	},
	{
		CID: "beef_mince_lean", DisplayName: "Lean beef mince", Category: CategoryProtein,
		CoreTerms:       []string{"lean", "beef", "mince"},
		MustInclude:     []string{"beef"},
		MustExclude:     []string{"burger", "meatball", "seasoned", "20"},
		StoreCategories: []string{"meat", "beef"},
		PackSizes:       []float64{250, 500, 750},
	},
	{
		CID: "beef_steak", DisplayName: "Beef steak", Category: CategoryProtein,
		CoreTerms:       []string{"beef", "steak"},
		MustInclude:     []string{"steak"},
		MustExclude:     []string{"pie", "bake", "sauce", "peppered", "sandwich"},
		StoreCategories: []string{"meat", "beef"},
		PackSizes:       []float64{225, 400, 500},
	},
	{
		CID: "pork_loin", DisplayName: "Pork loin", Category: CategoryProtein,
		CoreTerms:       []string{"pork", "loin"},
		MustInclude:     []string{"pork"},
		MustExclude:     []string{"breaded", "belly", "marinated", "sausage"},
		StoreCategories: []string{"meat", "pork"},
		PackSizes:       []float64{400, 600, 1000},
	},
	{
		CID: "salmon", DisplayName: "Salmon fillet", Category: CategoryProtein,
		CoreTerms:       []string{"salmon", "fillet"},
		MustInclude:     []string{"salmon"},
		MustExclude:     []string{"smoked", "breaded", "battered", "terrine", "pate", "cat"},
		StoreCategories: []string{"fish", "seafood"},
		PackSizes:       []float64{240, 480, 1000},
	},
	{
		CID: "cod", DisplayName: "Cod fillet", Category: CategoryProtein,
		CoreTerms:       []string{"cod", "fillet"},
		MustInclude:     []string{"cod"},
		MustExclude:     []string{"battered", "breaded", "fishcake", "liver", "roe"},
		StoreCategories: []string{"fish", "seafood", "frozen"},
		PackSizes:       []float64{250, 400, 500},
	},
	{
		CID: "tuna_canned", DisplayName: "Canned tuna", Category: CategoryProtein,
		CoreTerms:       []string{"tuna", "spring", "water"},
		MustInclude:     []string{"tuna"},
		MustExclude:     []string{"mayo", "sandwich", "pasta", "steak", "cat"},
		StoreCategories: []string{"tins", "cans", "fish"},
		PackSizes:       []float64{145, 400, 580},
		Pantry:          true,
	},
	{
		CID: "shrimp", DisplayName: "King prawns", Category: CategoryProtein,
		CoreTerms:       []string{"king", "prawns"},
		MustInclude:     []string{"prawn", "shrimp"},
		MustExclude:     []string{"battered", "breaded", "cocktail", "crackers", "ring"},
		StoreCategories: []string{"fish", "seafood", "frozen"},
		PackSizes:       []float64{150, 225, 400},
	},
	{
		CID: "egg", DisplayName: "Eggs", Category: CategoryProtein,
		CoreTerms:       []string{"free", "range", "eggs"},
		MustInclude:     []string{"egg"},
		MustExclude:     []string{"chocolate", "easter", "creme", "scotch", "mayonnaise"},
		StoreCategories: []string{"egg", "dairy"},
		PackSizes:       []float64{360, 600, 720}, // 6, 10, 12 medium eggs
	},
	{
		CID: "tofu", DisplayName: "Firm tofu", Category: CategoryProtein,
		CoreTerms:       []string{"firm", "tofu"},
		MustInclude:     []string{"tofu"},
		MustExclude:     []string{"fried", "marinated", "dessert"},
		StoreCategories: []string{"vegetarian", "vegan", "world", "chilled"},
		PackSizes:       []float64{280, 396, 450},
	},
	{
		CID: "halloumi", DisplayName: "Halloumi", Category: CategoryProtein,
		CoreTerms:       []string{"halloumi"},
		MustExclude:     []string{"fries", "burger", "marinated"},
		StoreCategories: []string{"cheese", "dairy"},
		PackSizes:       []float64{225, 250},
	},
	{
		CID: "whey_protein", DisplayName: "Whey protein powder", Category: CategoryPantry,
		CoreTerms:       []string{"whey", "protein", "powder"},
		MustInclude:     []string{"whey", "protein"},
		MustExclude:     []string{"bar", "shake", "drink", "vegan", "diet"},
		StoreCategories: []string{"sports", "nutrition", "health"},
		PackSizes:       []float64{500, 1000, 2500},
		MaxMealG:        80,
		Pantry:          true,
	},

	// Dairy.
	{
		CID: "milk_whole", DisplayName: "Whole milk", Category: CategoryDairy,
		CoreTerms:       []string{"whole", "milk"},
		MustInclude:     []string{"milk"},
		MustExclude:     []string{"chocolate", "flavoured", "shake", "condensed", "evaporated", "coconut", "almond", "oat", "soya"},
		StoreCategories: []string{"milk", "dairy"},
		PackSizes:       []float64{500, 1000, 2000},
		Liquid:          true,
	},
	{
		CID: "milk_skim", DisplayName: "Skimmed milk", Category: CategoryDairy,
		CoreTerms:       []string{"skimmed", "milk"},
		MustInclude:     []string{"milk"},
		MustExclude:     []string{"chocolate", "flavoured", "shake", "condensed", "coconut", "almond", "oat", "soya"},
		StoreCategories: []string{"milk", "dairy"},
		PackSizes:       []float64{500, 1000, 2000},
		Liquid:          true,
	},
	{
		CID: "greek_yogurt", DisplayName: "Greek yogurt", Category: CategoryDairy,
		CoreTerms:       []string{"greek", "yogurt"},
		MustInclude:     []string{"yogurt"},
		MustExclude:     []string{"flavoured", "honey", "vanilla", "coconut", "dessert", "corner"},
		StoreCategories: []string{"yogurt", "dairy"},
		PackSizes:       []float64{450, 500, 1000},
	},
	{
		CID: "yogurt_natural", DisplayName: "Natural yogurt", Category: CategoryDairy,
		CoreTerms:       []string{"natural", "yogurt"},
		MustInclude:     []string{"yogurt"},
		MustExclude:     []string{"flavoured", "vanilla", "cherry", "dessert", "drink"},
		StoreCategories: []string{"yogurt", "dairy"},
		PackSizes:       []float64{500, 1000},
	},
	{
		CID: "skyr", DisplayName: "Skyr", Category: CategoryDairy,
		CoreTerms:       []string{"skyr"},
		MustExclude:     []string{"flavoured", "vanilla", "berry", "drink"},
		StoreCategories: []string{"yogurt", "dairy"},
		PackSizes:       []float64{450, 1000},
	},
	{
		CID: "cottage_cheese", DisplayName: "Cottage cheese", Category: CategoryDairy,
		CoreTerms:       []string{"cottage", "cheese"},
		MustInclude:     []string{"cottage"},
		MustExclude:     []string{"pineapple", "chive", "onion"},
		StoreCategories: []string{"cheese", "dairy"},
		PackSizes:       []float64{300, 600},
	},
	{
		CID: "cheddar", DisplayName: "Cheddar", Category: CategoryDairy,
		CoreTerms:       []string{"mature", "cheddar"},
		MustInclude:     []string{"cheddar"},
		MustExclude:     []string{"crackers", "biscuits", "sauce", "slices", "spread", "crisps"},
		StoreCategories: []string{"cheese", "dairy"},
		PackSizes:       []float64{220, 350, 550},
	},
	{
		CID: "mozzarella_light", DisplayName: "Light mozzarella", Category: CategoryDairy,
		CoreTerms:       []string{"light", "mozzarella"},
		MustInclude:     []string{"mozzarella"},
		MustExclude:     []string{"pizza", "sticks", "garlic"},
		StoreCategories: []string{"cheese", "dairy"},
		PackSizes:       []float64{125, 250},
	},
	{
		CID: "feta", DisplayName: "Feta", Category: CategoryDairy,
		CoreTerms:       []string{"feta"},
		MustExclude:     []string{"salad", "pastry", "dip"},
		StoreCategories: []string{"cheese", "dairy"},
		PackSizes:       []float64{200},
	},
	{
		CID: "butter", DisplayName: "Butter", Category: CategoryDairy,
		CoreTerms:       []string{"butter"},
		MustExclude:     []string{"peanut", "almond", "cashew", "spreadable", "garlic", "brandy"},
		StoreCategories: []string{"butter", "dairy"},
		PackSizes:       []float64{250, 500},
		MaxMealG:        40,
	},

	// Grains, potatoes and bakery.
	{
		CID: "oats", DisplayName: "Porridge oats", Category: CategoryPantry,
		CoreTerms:       []string{"porridge", "oats"},
		MustInclude:     []string{"oats", "porridge", "oat"},
		MustExclude:     []string{"golden", "syrup", "sachet", "instant", "biscuit", "cookie", "flapjack"},
		StoreCategories: []string{"cereal", "food cupboard"},
		PackSizes:       []float64{500, 1000, 2000},
		Pantry:          true,
	},
	{
		CID: "rice_white", DisplayName: "White rice", Category: CategoryPantry,
		CoreTerms:       []string{"long", "grain", "rice"},
		MustInclude:     []string{"rice"},
		MustExclude:     []string{"pudding", "cake", "crackers", "microwave", "fried", "wine"},
		StoreCategories: []string{"rice", "food cupboard", "world"},
		PackSizes:       []float64{500, 1000, 2000},
		Pantry:          true,
	},
	{
		CID: "rice_brown", DisplayName: "Brown rice", Category: CategoryPantry,
		CoreTerms:       []string{"brown", "rice"},
		MustInclude:     []string{"rice"},
		MustExclude:     []string{"pudding", "crackers", "microwave", "syrup"},
		StoreCategories: []string{"rice", "food cupboard"},
		PackSizes:       []float64{500, 1000},
		Pantry:          true,
	},
	{
		CID: "basmati_rice", DisplayName: "Basmati rice", Category: CategoryPantry,
		CoreTerms:       []string{"basmati", "rice"},
		MustInclude:     []string{"basmati"},
		MustExclude:     []string{"microwave", "pilau", "coconut"},
		StoreCategories: []string{"rice", "food cupboard", "world"},
		PackSizes:       []float64{500, 1000, 2000, 5000},
		Pantry:          true,
	},
	{
		CID: "pasta", DisplayName: "Pasta", Category: CategoryPantry,
		CoreTerms:       []string{"penne", "pasta"},
		MustInclude:     []string{"pasta", "penne", "fusilli", "spaghetti", "rigatoni"},
		MustExclude:     []string{"sauce", "bake", "pot", "salad", "snack", "fresh", "filled", "ravioli", "tortelloni"},
		StoreCategories: []string{"pasta", "food cupboard"},
		CategoryRule:    "pasta",
		PackSizes:       []float64{500, 1000, 3000},
		Pantry:          true,
	},
	{
		CID: "pasta_wholemeal", DisplayName: "Wholemeal pasta", Category: CategoryPantry,
		CoreTerms:       []string{"wholemeal", "pasta"},
		MustInclude:     []string{"pasta", "penne", "fusilli", "spaghetti"},
		MustExclude:     []string{"sauce", "bake", "pot", "fresh"},
		StoreCategories: []string{"pasta", "food cupboard"},
		CategoryRule:    "pasta",
		PackSizes:       []float64{500, 1000},
		Pantry:          true,
	},
	{
		CID: "quinoa", DisplayName: "Quinoa", Category: CategoryPantry,
		CoreTerms:       []string{"quinoa"},
		MustExclude:     []string{"salad", "pouch", "microwave", "crisps"},
		StoreCategories: []string{"grains", "food cupboard", "health"},
		PackSizes:       []float64{300, 500},
		Pantry:          true,
	},
	{
		CID: "couscous", DisplayName: "Couscous", Category: CategoryPantry,
		CoreTerms:       []string{"couscous"},
		MustExclude:     []string{"flavoured", "sachet", "salad", "giant"},
		StoreCategories: []string{"grains", "food cupboard", "world"},
		PackSizes:       []float64{500, 1000},
		Pantry:          true,
	},
	{
		CID: "potato", DisplayName: "White potatoes", Category: CategoryProduce,
		CoreTerms:       []string{"white", "potatoes"},
		MustInclude:     []string{"potato"},
		MustExclude:     []string{"crisps", "chips", "waffle", "croquette", "mash", "roast", "salad", "sweet"},
		StoreCategories: []string{"vegetables", "fresh", "produce"},
		PackSizes:       []float64{1000, 2000, 2500},
		Produce:         true,
	},
	{
		CID: "sweet_potato", DisplayName: "Sweet potatoes", Category: CategoryProduce,
		CoreTerms:       []string{"sweet", "potatoes"},
		MustInclude:     []string{"sweet"},
		MustExclude:     []string{"fries", "wedges", "mash", "crisps"},
		StoreCategories: []string{"vegetables", "fresh", "produce"},
		PackSizes:       []float64{1000, 1250},
		Produce:         true,
	},
	{
		CID: "bread_wholemeal", DisplayName: "Wholemeal bread", Category: CategoryBakery,
		CoreTerms:       []string{"wholemeal", "bread"},
		MustInclude:     []string{"bread", "loaf"},
		MustExclude:     []string{"crumbs", "sauce", "mix", "thins", "sandwich", "pudding"},
		StoreCategories: []string{"bakery", "bread"},
		CategoryRule:    "bakery",
		PackSizes:       []float64{400, 800},
	},
	{
		CID: "tortilla", DisplayName: "Tortilla wraps", Category: CategoryBakery,
		CoreTerms:       []string{"tortilla", "wraps"},
		MustInclude:     []string{"tortilla", "wrap"},
		MustExclude:     []string{"chips", "crisps", "filled", "kit"},
		StoreCategories: []string{"bakery", "world"},
		CategoryRule:    "bakery",
		PackSizes:       []float64{256, 512}, // 4 or 8 wraps
	},

	// Oils, sauces and pantry staples.
	{
		CID: "olive_oil", DisplayName: "Olive oil", Category: CategoryPantry,
		CoreTerms:       []string{"olive", "oil"},
		MustInclude:     []string{"olive"},
		MustExclude:     []string{"spread", "infused", "chilli", "garlic", "soap", "spray"},
		StoreCategories: []string{"oil", "food cupboard"},
		PackSizes:       []float64{250, 500, 750, 1000},
		MaxMealG:        40,
		Pantry:          true,
		Liquid:          true,
	},
	{
		CID: "oil_spray", DisplayName: "Cooking oil spray", Category: CategoryPantry,
		CoreTerms:       []string{"oil", "spray"},
		MustInclude:     []string{"spray"},
		MustExclude:     []string{"cleaner", "polish", "deodorant"},
		StoreCategories: []string{"oil", "food cupboard"},
		CategoryRule:    "oil",
		PackSizes:       []float64{190, 250},
		MaxMealG:        10,
		Pantry:          true,
		Liquid:          true,
	},
	{
		CID: "honey", DisplayName: "Honey", Category: CategoryPantry,
		CoreTerms:       []string{"clear", "honey"},
		MustInclude:     []string{"honey"},
		MustExclude:     []string{"roast", "glazed", "mustard", "shampoo", "soap", "yogurt"},
		StoreCategories: []string{"spreads", "food cupboard"},
		PackSizes:       []float64{340, 454, 720},
		MaxMealG:        60,
		Pantry:          true,
	},
	{
		CID: "peanut_butter", DisplayName: "Peanut butter", Category: CategoryPantry,
		CoreTerms:       []string{"peanut", "butter"},
		MustInclude:     []string{"peanut"},
		MustExclude:     []string{"cups", "chocolate", "bar", "cookie", "ice"},
		StoreCategories: []string{"spreads", "food cupboard"},
		PackSizes:       []float64{340, 500, 1000},
		MaxMealG:        60,
		Pantry:          true,
	},
	{
		CID: "soy_sauce", DisplayName: "Soy sauce", Category: CategoryCondiment,
		CoreTerms:       []string{"soy", "sauce"},
		MustInclude:     []string{"soy", "soya"},
		MustExclude:     []string{"sweet", "teriyaki", "stir", "marinade"},
		StoreCategories: []string{"sauce", "world", "food cupboard"},
		CategoryRule:    "sauce",
		PackSizes:       []float64{150, 250},
		MaxMealG:        30,
		Pantry:          true,
		Liquid:          true,
	},
	{
		CID: "tomato_paste", DisplayName: "Tomato puree", Category: CategoryPantry,
		CoreTerms:       []string{"tomato", "puree"},
		MustInclude:     []string{"puree", "paste"},
		MustExclude:     []string{"sundried", "pesto"},
		StoreCategories: []string{"tins", "cooking", "food cupboard"},
		PackSizes:       []float64{200, 300},
		MaxMealG:        80,
		Pantry:          true,
	},
	{
		CID: "passata", DisplayName: "Passata", Category: CategoryPantry,
		CoreTerms:       []string{"passata"},
		MustExclude:     []string{"basil", "garlic", "onion"},
		StoreCategories: []string{"tins", "cooking", "food cupboard"},
		PackSizes:       []float64{500, 690},
		Pantry:          true,
	},
	{
		CID: "coconut_milk", DisplayName: "Coconut milk", Category: CategoryPantry,
		CoreTerms:       []string{"coconut", "milk"},
		MustInclude:     []string{"coconut"},
		MustExclude:     []string{"drink", "water", "yogurt", "light"},
		StoreCategories: []string{"tins", "world", "food cupboard"},
		PackSizes:       []float64{400},
		Pantry:          true,
		Liquid:          true,
	},
	{
		CID: "lentils", DisplayName: "Red lentils", Category: CategoryPantry,
		CoreTerms:       []string{"red", "lentils"},
		MustInclude:     []string{"lentils", "lentil"},
		MustExclude:     []string{"soup", "curry", "crisps", "pouch"},
		StoreCategories: []string{"pulses", "world", "food cupboard"},
		PackSizes:       []float64{500, 1000},
		Pantry:          true,
	},
	{
		CID: "chickpea_canned", DisplayName: "Canned chickpeas", Category: CategoryPantry,
		CoreTerms:       []string{"chickpeas", "in", "water"},
		MustInclude:     []string{"chickpea"},
		MustExclude:     []string{"curry", "dahl", "roasted", "snack"},
		StoreCategories: []string{"tins", "pulses", "food cupboard"},
		PackSizes:       []float64{400},
		Pantry:          true,
	},
	{
		CID: "black_bean", DisplayName: "Black beans", Category: CategoryPantry,
		CoreTerms:       []string{"black", "beans"},
		MustInclude:     []string{"bean"},
		MustExclude:     []string{"sauce", "burger", "soup"},
		StoreCategories: []string{"tins", "pulses", "world"},
		PackSizes:       []float64{400},
		Pantry:          true,
	},
	{
		CID: "salt", DisplayName: "Table salt", Category: CategoryPantry,
		CoreTerms:       []string{"table", "salt"},
		MustInclude:     []string{"salt"},
		MustExclude:     []string{"bath", "crisps", "caramel", "lamp"},
		StoreCategories: []string{"seasoning", "food cupboard"},
		PackSizes:       []float64{750},
		MaxMealG:        5,
		Pantry:          true,
	},
	{
		CID: "maple_syrup", DisplayName: "Maple syrup", Category: CategoryPantry,
		CoreTerms:       []string{"maple", "syrup"},
		MustInclude:     []string{"maple"},
		MustExclude:     []string{"flavoured", "bacon", "granola"},
		StoreCategories: []string{"spreads", "food cupboard"},
		PackSizes:       []float64{250, 330},
		MaxMealG:        60,
		Pantry:          true,
		Liquid:          true,
	},
	{
		CID: "dark_chocolate", DisplayName: "Dark chocolate", Category: CategoryPantry,
		CoreTerms:       []string{"dark", "chocolate"},
		MustInclude:     []string{"chocolate"},
		MustExclude:     []string{"biscuit", "cake", "spread", "drink", "milk", "white"},
		StoreCategories: []string{"confectionery", "chocolate"},
		PackSizes:       []float64{100, 180},
		MaxMealG:        60,
		Pantry:          true,
	},
	{
		CID: "almond", DisplayName: "Almonds", Category: CategoryPantry,
		CoreTerms:       []string{"whole", "almonds"},
		MustInclude:     []string{"almond"},
		MustExclude:     []string{"milk", "butter", "flaked", "ground", "chocolate", "croissant"},
		StoreCategories: []string{"nuts", "snacks", "food cupboard"},
		PackSizes:       []float64{200, 500},
		MaxMealG:        60,
		Pantry:          true,
	},

	// Produce. Size checks are skipped for these, loose items price by unit.
	{
		CID: "banana", DisplayName: "Bananas", Category: CategoryProduce,
		CoreTerms:       []string{"bananas"},
		MustInclude:     []string{"banana"},
		MustExclude:     []string{"bread", "milkshake", "dried", "chips", "sweets"},
		StoreCategories: []string{"fruit", "fresh", "produce"},
		PackSizes:       []float64{600, 1000}, // 5-pack or bunch
		Produce:         true,
	},
	{
		CID: "apple", DisplayName: "Apples", Category: CategoryProduce,
		CoreTerms:       []string{"apples"},
		MustInclude:     []string{"apple"},
		MustExclude:     []string{"juice", "pie", "sauce", "crumble", "cider", "dried"},
		StoreCategories: []string{"fruit", "fresh", "produce"},
		PackSizes:       []float64{600, 1000},
		Produce:         true,
	},
	{
		CID: "orange", DisplayName: "Oranges", Category: CategoryProduce,
		CoreTerms:       []string{"oranges"},
		MustInclude:     []string{"orange"},
		MustExclude:     []string{"juice", "chocolate", "squash", "marmalade"},
		StoreCategories: []string{"fruit", "fresh", "produce"},
		PackSizes:       []float64{600, 1000},
		Produce:         true,
	},
	{
		CID: "blueberry", DisplayName: "Blueberries", Category: CategoryProduce,
		CoreTerms:       []string{"blueberries"},
		MustInclude:     []string{"blueberry", "blueberries"},
		MustExclude:     []string{"muffin", "jam", "yogurt", "dried"},
		StoreCategories: []string{"fruit", "fresh", "produce"},
		PackSizes:       []float64{150, 400},
		Produce:         true,
	},
	{
		CID: "strawberry", DisplayName: "Strawberries", Category: CategoryProduce,
		CoreTerms:       []string{"strawberries"},
		MustInclude:     []string{"strawberry", "strawberries"},
		MustExclude:     []string{"jam", "yogurt", "laces", "milkshake", "tart"},
		StoreCategories: []string{"fruit", "fresh", "produce"},
		PackSizes:       []float64{227, 400},
		Produce:         true,
	},
	{
		CID: "avocado", DisplayName: "Avocados", Category: CategoryProduce,
		CoreTerms:       []string{"avocados"},
		MustInclude:     []string{"avocado"},
		MustExclude:     []string{"oil", "smash", "dip"},
		StoreCategories: []string{"fruit", "vegetables", "fresh", "produce"},
		PackSizes:       []float64{300, 500},
		Produce:         true,
	},
	{
		CID: "broccoli", DisplayName: "Broccoli", Category: CategoryProduce,
		CoreTerms:       []string{"broccoli"},
		MustExclude:     []string{"soup", "cheese", "bake"},
		StoreCategories: []string{"vegetables", "fresh", "produce"},
		PackSizes:       []float64{335, 400},
		Produce:         true,
	},
	{
		CID: "spinach", DisplayName: "Spinach", Category: CategoryProduce,
		CoreTerms:       []string{"spinach"},
		MustExclude:     []string{"ricotta", "soup", "pasta"},
		StoreCategories: []string{"vegetables", "salad", "fresh", "produce"},
		PackSizes:       []float64{240, 500},
		Produce:         true,
	},
	{
		CID: "carrot", DisplayName: "Carrots", Category: CategoryProduce,
		CoreTerms:       []string{"carrots"},
		MustInclude:     []string{"carrot"},
		MustExclude:     []string{"cake", "soup", "juice", "batons"},
		StoreCategories: []string{"vegetables", "fresh", "produce"},
		PackSizes:       []float64{500, 1000},
		Produce:         true,
	},
	{
		CID: "onion", DisplayName: "Onions", Category: CategoryProduce,
		CoreTerms:       []string{"brown", "onions"},
		MustInclude:     []string{"onion"},
		MustExclude:     []string{"rings", "pickled", "gravy", "bhaji", "crispy"},
		StoreCategories: []string{"vegetables", "fresh", "produce"},
		PackSizes:       []float64{500, 1000},
		Produce:         true,
	},
	{
		CID: "garlic", DisplayName: "Garlic", Category: CategoryProduce,
		CoreTerms:       []string{"garlic"},
		MustExclude:     []string{"bread", "sauce", "mayonnaise", "paste", "granules"},
		StoreCategories: []string{"vegetables", "fresh", "produce"},
		PackSizes:       []float64{100, 200},
		Produce:         true,
	},
	{
		CID: "bell_pepper", DisplayName: "Bell peppers", Category: CategoryProduce,
		CoreTerms:       []string{"peppers"},
		MustInclude:     []string{"pepper"},
		MustExclude:     []string{"black", "ground", "stuffed", "sauce", "chilli"},
		StoreCategories: []string{"vegetables", "fresh", "produce"},
		PackSizes:       []float64{450, 500},
		Produce:         true,
	},
	{
		CID: "tomato", DisplayName: "Tomatoes", Category: CategoryProduce,
		CoreTerms:       []string{"tomatoes"},
		MustInclude:     []string{"tomato"},
		MustExclude:     []string{"ketchup", "soup", "puree", "chopped", "sundried", "tinned"},
		StoreCategories: []string{"vegetables", "salad", "fresh", "produce"},
		PackSizes:       []float64{360, 600},
		Produce:         true,
	},
	{
		CID: "cucumber", DisplayName: "Cucumber", Category: CategoryProduce,
		CoreTerms:       []string{"cucumber"},
		MustExclude:     []string{"pickled", "relish", "gin"},
		StoreCategories: []string{"vegetables", "salad", "fresh", "produce"},
		PackSizes:       []float64{400},
		Produce:         true,
	},
	{
		CID: "zucchini", DisplayName: "Courgettes", Category: CategoryProduce,
		CoreTerms:       []string{"courgettes"},
		MustInclude:     []string{"courgette", "zucchini"},
		MustExclude:     []string{"spaghetti", "fritter"},
		StoreCategories: []string{"vegetables", "fresh", "produce"},
		PackSizes:       []float64{350, 500},
		Produce:         true,
	},
	{
		CID: "mushroom", DisplayName: "Mushrooms", Category: CategoryProduce,
		CoreTerms:       []string{"chestnut", "mushrooms"},
		MustInclude:     []string{"mushroom"},
		MustExclude:     []string{"soup", "sauce", "garlic", "stuffed", "dried"},
		StoreCategories: []string{"vegetables", "fresh", "produce"},
		PackSizes:       []float64{250, 400},
		Produce:         true,
	},

	// Frozen.
	{
		CID: "frozen_berry", DisplayName: "Frozen berries", Category: CategoryFrozen,
		CoreTerms:       []string{"frozen", "berries"},
		MustInclude:     []string{"berry", "berries", "fruit"},
		MustExclude:     []string{"yogurt", "ice", "dessert", "cheesecake"},
		StoreCategories: []string{"frozen"},
		PackSizes:       []float64{350, 500},
	},
	{
		CID: "frozen_mixed_veg", DisplayName: "Frozen mixed vegetables", Category: CategoryFrozen,
		CoreTerms:       []string{"frozen", "mixed", "vegetables"},
		MustInclude:     []string{"veg", "vegetable", "vegetables"},
		MustExclude:     []string{"soup", "casserole", "stew", "pack"},
		StoreCategories: []string{"frozen"},
		PackSizes:       []float64{500, 1000},
	},
	{
		CID: "pea", DisplayName: "Garden peas", Category: CategoryFrozen,
		CoreTerms:       []string{"garden", "peas"},
		MustInclude:     []string{"pea", "peas"},
		MustExclude:     []string{"mushy", "soup", "snack", "wasabi"},
		StoreCategories: []string{"frozen", "vegetables"},
		PackSizes:       []float64{545, 1000},
	},
}

var registry map[CID]IngredientSpec

func init() {
	registry = make(map[CID]IngredientSpec, len(entries))
	for _, e := range entries {
		if e.CID == "" || e.DisplayName == "" || len(e.CoreTerms) == 0 {
			panic(fmt.Sprintf("catalog: malformed registry entry %q", e.CID))
		}
		if _, dup := registry[e.CID]; dup {
			panic(fmt.Sprintf("catalog: duplicate cid %q", e.CID))
		}
		if string(e.CID) != Normalize(string(e.CID)) {
			panic(fmt.Sprintf("catalog: cid %q is not a normalized fixed point", e.CID))
		}
		if _, ok := nutrition.LookupHot(string(e.CID)); !ok && e.Expected.IsZero() {
			panic(fmt.Sprintf("catalog: cid %q has no fingerprint source", e.CID))
		}
		sort.Float64s(e.PackSizes)
		registry[e.CID] = e
	}
}

// Lookup returns the registry entry for cid.
func Lookup(cid CID) (IngredientSpec, bool) {
	s, ok := registry[cid]
	return s, ok
}

// MustLookup returns the registry entry for cid or panics. Reserved for
// static references such as the booster meal.
func MustLookup(cid CID) IngredientSpec {
	s, ok := registry[cid]
	if !ok {
		panic(fmt.Sprintf("catalog: %v: %s", ErrUnknownCID, cid))
	}
	return s
}

// Size reports how many ingredients the registry carries.
func Size() int { return len(registry) }

// AllCIDs returns every registered CID in lexical order.
func AllCIDs() []CID {
	out := make([]CID, 0, len(registry))
	for cid := range registry {
		out = append(out, cid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Mapping is a successful name-to-CID assignment.
type Mapping struct {
	Name          string
	NormalizedKey string
	CID           CID
}

// Unmapped is a name that could not be assigned. Surfaced, never guessed.
type Unmapped struct {
	Name          string
	NormalizedKey string
	Reason        string
}

// MapIngredient assigns a CID to a single display name. Resolution order:
// exact normalized key, stripped fuzzy variants, token-subset match,
// bounded edit distance.
func MapIngredient(name string) (Mapping, error) {
	key := Normalize(name)
	if key == "" {
		return Mapping{}, fmt.Errorf("%w: %q", ErrEmptyName, name)
	}
	if _, ok := registry[CID(key)]; ok {
		return Mapping{Name: name, NormalizedKey: key, CID: CID(key)}, nil
	}

	// Stripped variants only. First-word and last-word candidates are too
	// loose for purchase decisions and stay reserved for nutrition lookups.
	for _, cand := range strippedCandidates(key) {
		if _, ok := registry[CID(cand)]; ok {
			return Mapping{Name: name, NormalizedKey: key, CID: CID(cand)}, nil
		}
	}

	if cid, ok := bestTokenSubset(key); ok {
		return Mapping{Name: name, NormalizedKey: key, CID: cid}, nil
	}
	if cid, ok := nearestCID(key, DefaultLevenshteinCeiling); ok {
		return Mapping{Name: name, NormalizedKey: key, CID: cid}, nil
	}
	return Mapping{}, fmt.Errorf("%w: %q (key %q)", ErrNoCID, name, key)
}

// MapIngredients assigns CIDs one-to-one across a batch of names.
func MapIngredients(names []string) ([]Mapping, []Unmapped) {
	mapped := make([]Mapping, 0, len(names))
	var failed []Unmapped
	for _, name := range names {
		m, err := MapIngredient(name)
		if err != nil {
			failed = append(failed, Unmapped{Name: name, NormalizedKey: Normalize(name), Reason: err.Error()})
			continue
		}
		mapped = append(mapped, m)
	}
	return mapped, failed
}

func strippedCandidates(key string) []string {
	parts := strings.Split(key, "_")
	out := make([]string, 0, 2)
	if c := strings.Join(dropQualityAdjectives(append([]string(nil), parts...)), "_"); c != key && c != "" {
		out = append(out, c)
	}
	if c := strings.Join(dropTrailingPackTokens(append([]string(nil), parts...)), "_"); c != key && c != "" {
		out = append(out, c)
	}
	return out
}

// bestTokenSubset finds the CID whose every token appears in the key. Most
// tokens wins, then the longer key, then lexical order for determinism.
func bestTokenSubset(key string) (CID, bool) {
	keyTokens := make(map[string]bool)
	for _, t := range strings.Split(key, "_") {
		keyTokens[t] = true
	}

	var best CID
	bestTokens, found := 0, false
	for _, cid := range AllCIDs() {
		parts := strings.Split(string(cid), "_")
		covered := true
		for _, p := range parts {
			if !keyTokens[p] {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}
		if !found || len(parts) > bestTokens ||
			(len(parts) == bestTokens && len(cid) > len(best)) {
			best, bestTokens, found = cid, len(parts), true
		}
	}
	return best, found
}

func nearestCID(key string, ceiling int) (CID, bool) {
	var best CID
	bestDist, found := ceiling+1, false
	for _, cid := range AllCIDs() {
		d := Levenshtein(key, string(cid), ceiling)
		if d < bestDist {
			best, bestDist, found = cid, d, true
		}
	}
	return best, found && bestDist <= ceiling
}
