package nutrition

// The hot-path table covers the ingredients that show up in almost every
// generated plan, so the resolver can answer without touching the canonical
// store or any external provider. Keys are normalized keys (see the catalog
// normalizer). Values are per-100g in the stated state.
//
// Energy values are the audit-passing variant: kcal agrees with the 4/4/9
// derivation within KcalBalanceTolerance for every row. Rows that drift are
// repaired or excluded by Audit before the table is served.

func hotRow(kcal, protein, fat, carbs float64, state State) Row {
	return Row{
		Macros:     Macros{Kcal: kcal, Protein: protein, Fat: fat, Carbs: carbs},
		State:      state,
		Source:     SourceHotTable,
		Confidence: 0.95,
	}
}

func (r Row) withYield(factor float64) Row {
	r.YieldFactor = factor
	return r
}

func (r Row) withDensity(gPerML float64) Row {
	r.DensityGPerML = gPerML
	return r
}

func (r Row) withFiber(grams float64) Row {
	r.FiberG = grams
	return r
}

var rawHotTable = map[string]Row{
	// Poultry, meat
	"chicken_breast":    hotRow(113, 22.5, 2.6, 0, StateRaw),
	"chicken_thigh":     hotRow(144, 18, 8, 0, StateRaw),
	"chicken_drumstick": hotRow(124, 18.1, 5.7, 0, StateRaw),
	"turkey_breast":     hotRow(102, 22, 1.5, 0, StateRaw),
	"turkey_mince":      hotRow(141, 19.5, 7, 0, StateRaw),
	"beef_mince_lean":   hotRow(129, 21, 5, 0, StateRaw),
	"beef_mince":        hotRow(180, 19.5, 11.3, 0, StateRaw),
	"beef_steak":        hotRow(156, 21, 8, 0, StateRaw),
	"pork_loin":         hotRow(129, 21, 5, 0, StateRaw),
	"lamb":              hotRow(239, 17, 19, 0, StateRaw),
	"duck_breast":       hotRow(117, 19.7, 4.3, 0, StateRaw),
	"bacon":             hotRow(371, 13, 35, 1, StateRaw),
	"ham":               hotRow(103, 18, 3, 1, StateAsSold),

	// Fish, seafood
	"salmon":          hotRow(197, 20, 13, 0, StateRaw),
	"tuna_canned":     hotRow(105, 24, 1, 0, StateAsSold),
	"cod":             hotRow(78, 18, 0.7, 0, StateRaw),
	"tilapia":         hotRow(95, 20, 1.7, 0, StateRaw),
	"sea_bass":        hotRow(92, 18.4, 2, 0, StateRaw),
	"mackerel":        hotRow(199, 18.5, 13.9, 0, StateRaw),
	"sardine_canned": hotRow(202, 24.6, 11.5, 0, StateAsSold),
	"shrimp":          hotRow(91, 20, 1, 0.5, StateRaw),

	// Eggs, soy, protein powders
	"egg":            hotRow(139, 12.6, 9.5, 0.7, StateRaw),
	"egg_white":      hotRow(49, 11, 0.2, 0.7, StateRaw),
	"tofu":           hotRow(119, 12, 7, 2, StateAsSold),
	"tempeh":         hotRow(211, 19, 11, 9, StateAsSold),
	"seitan":         hotRow(134, 24, 1.5, 6, StateAsSold),
	"whey_protein":   hotRow(377, 75, 5, 8, StatePowder),
	"casein_protein": hotRow(358, 78, 1.5, 8, StatePowder),
	"plant_protein":  hotRow(391, 70, 7, 12, StatePowder),

	// Dairy
	"greek_yogurt":     hotRow(86, 9, 4, 3.5, StateAsSold),
	"yogurt_natural":   hotRow(68, 4, 3.5, 5, StateAsSold),
	"skyr":             hotRow(62, 11, 0.2, 4, StateAsSold),
	"quark":            hotRow(67, 12, 0.3, 4, StateAsSold),
	"cottage_cheese":   hotRow(97, 11, 4.5, 3, StateAsSold),
	"kefir":            hotRow(61, 3.3, 3.5, 4, StateLiquid).withDensity(1.03),
	"milk_whole":       hotRow(65, 3.4, 3.6, 4.8, StateLiquid).withDensity(1.03),
	"milk_skim":        hotRow(37, 3.5, 0.3, 5, StateLiquid).withDensity(1.03),
	"almond_milk":      hotRow(25, 0.5, 1.2, 3, StateLiquid).withDensity(1.0),
	"oat_milk":         hotRow(46, 1, 1.5, 7, StateLiquid).withDensity(1.0),
	"cheddar":          hotRow(402, 25, 33, 1.3, StateAsSold),
	"mozzarella":       hotRow(250, 22, 17, 2.2, StateAsSold),
	"mozzarella_light": hotRow(182, 20, 10, 3, StateAsSold),
	"feta":             hotRow(261, 14, 21, 4, StateAsSold),
	"parmesan":         hotRow(405, 35, 28, 3.2, StateAsSold),
	"halloumi":         hotRow(317, 21, 25, 2, StateAsSold),
	"ricotta":          hotRow(173, 11, 13, 3, StateAsSold),
	"cream_cheese":     hotRow(319, 6, 31, 4, StateAsSold),
	"butter":           hotRow(735, 0.9, 81, 0.7, StateAsSold),
	"cream":            hotRow(290, 2, 30, 3, StateLiquid).withDensity(1.0),

	// Grains, pasta, bread
	"rice_white":      hotRow(349, 7, 0.6, 79, StateDry).withYield(2.8).withFiber(1.3),
	"rice_brown":      hotRow(346, 7.5, 2.7, 73, StateDry).withYield(2.5).withFiber(3.5),
	"basmati_rice":    hotRow(356, 7.5, 0.7, 80, StateDry).withYield(2.8),
	"wild_rice":       hotRow(369, 14.7, 1.1, 75, StateDry).withYield(2.6),
	"rice_cooked":     hotRow(126, 2.5, 0.2, 28.5, StateCooked),
	"pasta":           hotRow(350, 13, 1.5, 71, StateDry).withYield(2.2).withFiber(3),
	"pasta_wholemeal": hotRow(341, 13.5, 2.5, 66, StateDry).withYield(2.2).withFiber(8),
	"pasta_cooked":    hotRow(150, 5.5, 0.9, 30, StateCooked),
	"rice_noodle":    hotRow(339, 3.4, 0.6, 80, StateDry).withYield(2.2),
	"egg_noodle":     hotRow(380, 14, 4.4, 71, StateDry).withYield(2.4),
	"couscous":        hotRow(345, 12.8, 0.6, 72, StateDry).withYield(2.5).withFiber(5),
	"quinoa":          hotRow(366, 14, 6, 64, StateDry).withYield(2.6).withFiber(7),
	"bulgur":          hotRow(364, 12, 1.3, 76, StateDry).withYield(2.5),
	"buckwheat":       hotRow(369, 13, 3.4, 71.5, StateDry).withYield(2.5),
	"millet":          hotRow(374, 11, 4.2, 73, StateDry).withYield(2.5),
	"barley":          hotRow(344, 9.9, 1.2, 73.5, StateDry).withYield(2.8),
	"polenta":         hotRow(347, 8, 2.5, 73, StateDry).withYield(3.0),
	"oats":            hotRow(349, 13.5, 7, 58, StateDry).withYield(2.5).withFiber(10),
	"bread_white":     hotRow(257, 8.5, 3, 49, StateAsSold),
	"bread_wholemeal": hotRow(242, 9.5, 3.5, 43, StateAsSold).withFiber(6),
	"rye_bread":       hotRow(241, 8.5, 1.7, 48, StateAsSold),
	"bagel":           hotRow(268, 10.3, 1.7, 53, StateAsSold),
	"pita":            hotRow(267, 9, 1.2, 55, StateAsSold),
	"tortilla":        hotRow(308, 8, 7.5, 52, StateAsSold),
	"tortilla_corn":   hotRow(241, 5.7, 2.9, 48, StateAsSold),
	"naan":            hotRow(303, 9, 7.5, 50, StateAsSold),
	"crispbread":      hotRow(321, 10, 1.5, 67, StateAsSold),
	"rice_cake":      hotRow(379, 8, 3, 80, StateAsSold),
	"gnocchi":         hotRow(148, 4, 0.5, 32, StateAsSold),
	"flour_wheat":     hotRow(353, 10, 1, 76, StatePowder),
	"cornflake":      hotRow(374, 7.5, 0.9, 84, StateAsSold),
	"granola":         hotRow(404, 10, 12, 64, StateAsSold),
	"popcorn":         hotRow(380, 11, 4.5, 74, StateAsSold),

	// Potatoes
	"potato":       hotRow(77, 2, 0.1, 17, StateRaw).withFiber(2.2),
	"sweet_potato": hotRow(87, 1.6, 0.1, 20, StateRaw).withFiber(3),

	// Legumes
	"lentils":             hotRow(346, 24, 1.1, 60, StateDry).withYield(2.5).withFiber(11),
	"chickpea":           hotRow(374, 19, 6, 61, StateDry).withYield(2.6).withFiber(12),
	"chickpea_canned":    hotRow(96, 7, 1.3, 14, StateAsSold),
	"black_bean":         hotRow(347, 21.6, 1.4, 62, StateDry).withYield(2.5),
	"kidney_bean_canned": hotRow(100, 8, 0.5, 16, StateAsSold),
	"baked_bean":         hotRow(84, 5, 0.5, 15, StateAsSold),
	"edamame":             hotRow(125, 11, 5, 8.9, StateRaw),
	"hummus":              hotRow(249, 7.9, 17.8, 14.3, StateAsSold),
	"falafel":             hotRow(334, 13, 18, 30, StateAsSold),
	"pea":                hotRow(83, 5.4, 0.4, 14.5, StateRaw),

	// Vegetables
	"broccoli":         hotRow(41, 2.8, 0.4, 6.6, StateRaw).withFiber(2.6),
	"spinach":          hotRow(30, 2.9, 0.4, 3.6, StateRaw).withFiber(2.2),
	"carrot":           hotRow(44, 0.9, 0.2, 9.6, StateRaw).withFiber(2.8),
	"tomato":           hotRow(21, 0.9, 0.2, 3.9, StateRaw).withFiber(1.2),
	"cherry_tomato":    hotRow(23, 1, 0.2, 4.2, StateRaw),
	"cucumber":         hotRow(18, 0.7, 0.1, 3.6, StateRaw),
	"bell_pepper":      hotRow(31, 1, 0.3, 6, StateRaw),
	"onion":            hotRow(42, 1.1, 0.1, 9.3, StateRaw),
	"garlic":           hotRow(162, 6.4, 0.5, 33, StateRaw),
	"zucchini":         hotRow(20, 1.2, 0.3, 3.1, StateRaw),
	"mushroom":         hotRow(28, 3.1, 0.3, 3.3, StateRaw),
	"lettuce":          hotRow(19, 1.4, 0.2, 2.9, StateRaw),
	"kale":             hotRow(61, 4.3, 0.9, 8.8, StateRaw),
	"cauliflower":      hotRow(30, 1.9, 0.3, 5, StateRaw),
	"green_bean":      hotRow(37, 1.8, 0.2, 7, StateRaw),
	"corn":             hotRow(102, 3.3, 1.4, 19, StateRaw),
	"avocado":          hotRow(177, 2, 15, 8.5, StateRaw).withFiber(6.7),
	"eggplant":         hotRow(29, 1, 0.2, 5.9, StateRaw),
	"cabbage":          hotRow(29, 1.3, 0.1, 5.8, StateRaw),
	"asparagus":        hotRow(25, 2.2, 0.1, 3.9, StateRaw),
	"beetroot":         hotRow(47, 1.6, 0.2, 9.6, StateRaw),
	"pumpkin":          hotRow(31, 1, 0.1, 6.5, StateRaw),
	"celery":           hotRow(17, 0.7, 0.2, 3, StateRaw),
	"frozen_mixed_veg": hotRow(46, 2.5, 0.5, 8, StateAsSold),

	// Fruit
	"banana":        hotRow(98, 1.1, 0.3, 22.8, StateRaw).withFiber(2.6),
	"apple":         hotRow(58, 0.3, 0.2, 13.8, StateRaw).withFiber(2.4),
	"orange":        hotRow(52, 0.9, 0.1, 11.8, StateRaw),
	"pear":          hotRow(63, 0.4, 0.1, 15.2, StateRaw),
	"peach":         hotRow(44, 0.9, 0.3, 9.5, StateRaw),
	"mango":         hotRow(67, 0.8, 0.4, 15, StateRaw),
	"pineapple":     hotRow(55, 0.5, 0.1, 13, StateRaw),
	"kiwi":          hotRow(68, 1.1, 0.5, 14.7, StateRaw),
	"watermelon":    hotRow(35, 0.6, 0.2, 7.6, StateRaw),
	"grape":        hotRow(72, 0.6, 0.2, 17, StateRaw),
	"strawberry":    hotRow(36, 0.7, 0.3, 7.7, StateRaw),
	"blueberry":     hotRow(64, 0.7, 0.3, 14.5, StateRaw),
	"frozen_berry": hotRow(43, 0.8, 0.4, 9, StateAsSold),
	"lemon":         hotRow(44, 1.1, 0.3, 9.3, StateRaw),
	"date":         hotRow(309, 1.8, 0.2, 75, StateAsSold),
	"raisin":       hotRow(332, 3, 0.5, 79, StateAsSold),
	"plum":          hotRow(51, 0.7, 0.3, 11.4, StateRaw),

	// Oils, nuts, seeds
	"olive_oil":      hotRow(900, 0, 100, 0, StateLiquid).withDensity(0.91),
	"sunflower_oil":  hotRow(900, 0, 100, 0, StateLiquid).withDensity(0.92),
	"coconut_oil":    hotRow(891, 0, 99, 0, StateAsSold),
	"oil_spray":      hotRow(720, 0, 80, 0, StateAsSold),
	"peanut_butter":  hotRow(630, 25, 50, 20, StateAsSold),
	"almond":        hotRow(572, 21, 50, 9.5, StateAsSold).withFiber(12.5),
	"walnut":        hotRow(673, 15, 65, 7, StateAsSold),
	"cashew":        hotRow(588, 18, 44, 30, StateAsSold),
	"peanut":        hotRow(609, 26, 49, 16, StateAsSold),
	"pumpkin_seed":  hotRow(605, 30, 49, 11, StateAsSold),
	"chia_seed":     hotRow(378, 17, 31, 7.7, StateAsSold).withFiber(34),
	"flaxseed":       hotRow(478, 18, 42, 7, StateAsSold).withFiber(27),
	"tahini":         hotRow(665, 17, 57, 21, StateAsSold),
	"coconut_milk":   hotRow(211, 2.3, 21, 3.3, StateLiquid).withDensity(0.97),
	"dark_chocolate": hotRow(599, 7.9, 42.6, 45.9, StateAsSold),
	"cocoa_powder":   hotRow(257, 19.6, 13.7, 13.9, StatePowder),

	// Sweeteners, condiments, seasoning
	"honey":            hotRow(329, 0.3, 0, 82, StateLiquid).withDensity(1.42),
	"maple_syrup":      hotRow(269, 0, 0.1, 67, StateLiquid).withDensity(1.32),
	"sugar":            hotRow(400, 0, 0, 100, StatePowder),
	"jam":              hotRow(242, 0.4, 0.1, 60, StateAsSold),
	"soy_sauce":        hotRow(64, 8, 0, 8, StateLiquid).withDensity(1.2),
	"tomato_paste":     hotRow(97, 4.3, 0.5, 18.9, StateAsSold),
	"passata":          hotRow(29, 1.2, 0.2, 5.5, StateLiquid).withDensity(1.03),
	"ketchup":          hotRow(110, 1.2, 0.1, 26, StateAsSold),
	"mayonnaise":       hotRow(685, 1, 75, 1.5, StateAsSold),
	"mustard":          hotRow(80, 4.4, 4.4, 5.8, StateAsSold),
	"balsamic_vinegar": hotRow(70, 0.5, 0, 17, StateLiquid).withDensity(1.07),
	"salsa":            hotRow(36, 1.5, 0.2, 7, StateAsSold),
	"pesto":            hotRow(449, 5, 45, 6, StateAsSold),
	"curry_paste":      hotRow(160, 3, 12, 10, StateAsSold),
	"salt":             hotRow(0, 0, 0, 0, StatePowder),
	"black_pepper":     hotRow(226, 10.4, 3.3, 38.7, StatePowder),
	"dried_herb":      hotRow(176, 9, 4, 26, StatePowder),
	"cinnamon":         hotRow(251, 4, 1.2, 56, StatePowder),
	"stock_cube":       hotRow(255, 15, 15, 15, StateAsSold),

	// Misc
	"orange_juice": hotRow(46, 0.7, 0.2, 10.4, StateLiquid).withDensity(1.04),
	"protein_bar":  hotRow(370, 30, 10, 40, StateAsSold),
}

// AuditReport summarizes what Audit had to do to a table.
type AuditReport struct {
	Total     int
	Corrected []string
	Excluded  []string
}

// Clean reports whether the audit passed without repairs.
func (r AuditReport) Clean() bool {
	return len(r.Corrected) == 0 && len(r.Excluded) == 0
}

// Audit applies the kcal-balance rule to every row of a table. Rows whose
// stored energy drifts beyond KcalBalanceTolerance are repaired by
// recomputing kcal from macros; rows that are invalid beyond repair (out of
// range even after correction) are excluded. The returned table is safe to
// serve.
func Audit(table map[string]Row) (map[string]Row, AuditReport) {
	report := AuditReport{Total: len(table)}
	audited := make(map[string]Row, len(table))
	for key, row := range table {
		if !row.KcalBalanced(KcalBalanceTolerance) {
			row.Macros = row.Rebalanced()
			report.Corrected = append(report.Corrected, key)
		}
		if err := row.Validate(); err != nil {
			report.Excluded = append(report.Excluded, key)
			continue
		}
		audited[key] = row
	}
	return audited, report
}

var (
	hotTable       map[string]Row
	hotTableReport AuditReport
)

func init() {
	hotTable, hotTableReport = Audit(rawHotTable)
}

// LookupHot returns the hot-path row for an exact normalized key.
func LookupHot(key string) (Row, bool) {
	row, ok := hotTable[key]
	return row, ok
}

// HotTable returns the audited table. Callers must treat it as read-only.
func HotTable() map[string]Row {
	return hotTable
}

// HotTableAudit returns the report produced when the shipped table was
// audited at init.
func HotTableAudit() AuditReport {
	return hotTableReport
}
