// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/macrocart/v2/internal/domain/contract"
	"github.com/macrocart/v2/internal/domain/market"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/ports/inbound"
	"github.com/macrocart/v2/internal/ports/outbound"
)

// CommandBuilder provides a fluent interface for building plan commands
type CommandBuilder struct {
	cmd inbound.GeneratePlanCommand
}

// NewCommandBuilder creates a command builder preloaded with a valid
// maintenance profile.
func NewCommandBuilder() *CommandBuilder {
	return &CommandBuilder{
		cmd: inbound.GeneratePlanCommand{
			HeightCm:        180,
			WeightKg:        80,
			Age:             30,
			Sex:             contract.SexMale,
			Activity:        contract.ActivityModerate,
			Goal:            contract.GoalMaintain,
			Days:            1,
			EatingOccasions: 4,
			Store:           "kroger",
		},
	}
}

// WithBody sets height, weight and age
func (cb *CommandBuilder) WithBody(heightCm, weightKg float64, age int) *CommandBuilder {
	cb.cmd.HeightCm = heightCm
	cb.cmd.WeightKg = weightKg
	cb.cmd.Age = age
	return cb
}

// WithSex sets the biological sex
func (cb *CommandBuilder) WithSex(sex contract.Sex) *CommandBuilder {
	cb.cmd.Sex = sex
	return cb
}

// WithActivity sets the activity level
func (cb *CommandBuilder) WithActivity(activity contract.Activity) *CommandBuilder {
	cb.cmd.Activity = activity
	return cb
}

// WithGoal sets the dietary goal
func (cb *CommandBuilder) WithGoal(goal contract.Goal) *CommandBuilder {
	cb.cmd.Goal = goal
	return cb
}

// WithDays sets the plan horizon
func (cb *CommandBuilder) WithDays(days int) *CommandBuilder {
	cb.cmd.Days = days
	return cb
}

// WithOccasions sets the eating occasions per day
func (cb *CommandBuilder) WithOccasions(occasions int) *CommandBuilder {
	cb.cmd.EatingOccasions = occasions
	return cb
}

// WithStore sets the primary store
func (cb *CommandBuilder) WithStore(store string) *CommandBuilder {
	cb.cmd.Store = store
	return cb
}

// WithPreferredStores sets the fallback store order
func (cb *CommandBuilder) WithPreferredStores(stores ...string) *CommandBuilder {
	cb.cmd.PreferredStores = stores
	return cb
}

// WithDietaryTags sets the dietary tags
func (cb *CommandBuilder) WithDietaryTags(tags ...string) *CommandBuilder {
	cb.cmd.DietaryTags = tags
	return cb
}

// WithCuisinePrompt sets the free-text cuisine prompt
func (cb *CommandBuilder) WithCuisinePrompt(prompt string) *CommandBuilder {
	cb.cmd.CuisinePrompt = prompt
	return cb
}

// Build returns the command
func (cb *CommandBuilder) Build() inbound.GeneratePlanCommand {
	return cb.cmd
}

// CommandFactory creates randomized valid plan commands
type CommandFactory struct {
	faker *gofakeit.Faker
}

// NewCommandFactory creates a command factory with seeded faker
func NewCommandFactory(seed int64) *CommandFactory {
	return &CommandFactory{
		faker: gofakeit.New(seed),
	}
}

// CreateCommand creates a random valid command
func (cf *CommandFactory) CreateCommand() inbound.GeneratePlanCommand {
	sexes := []contract.Sex{contract.SexMale, contract.SexFemale}
	activities := []contract.Activity{
		contract.ActivitySedentary, contract.ActivityLight,
		contract.ActivityModerate, contract.ActivityActive,
		contract.ActivityVeryActive,
	}
	goals := []contract.Goal{
		contract.GoalCutAggressive, contract.GoalCutModerate,
		contract.GoalMaintain, contract.GoalBulkLean,
		contract.GoalBulkAggressive,
	}
	occasions := []int{3, 4, 5}

	return NewCommandBuilder().
		WithBody(
			cf.faker.Float64Range(150, 200),
			cf.faker.Float64Range(50, 120),
			cf.faker.IntRange(18, 65),
		).
		WithSex(sexes[cf.faker.IntRange(0, len(sexes)-1)]).
		WithActivity(activities[cf.faker.IntRange(0, len(activities)-1)]).
		WithGoal(goals[cf.faker.IntRange(0, len(goals)-1)]).
		WithDays(cf.faker.IntRange(1, 7)).
		WithOccasions(occasions[cf.faker.IntRange(0, len(occasions)-1)]).
		WithStore("kroger").
		Build()
}

// CreateCutCommand creates a command with an aggressive cut goal
func (cf *CommandFactory) CreateCutCommand() inbound.GeneratePlanCommand {
	return NewCommandBuilder().
		WithBody(175, 90, 35).
		WithGoal(contract.GoalCutAggressive).
		WithActivity(contract.ActivityLight).
		Build()
}

// CreateBulkCommand creates a command with a lean bulk goal
func (cf *CommandFactory) CreateBulkCommand() inbound.GeneratePlanCommand {
	return NewCommandBuilder().
		WithBody(185, 75, 24).
		WithGoal(contract.GoalBulkLean).
		WithActivity(contract.ActivityActive).
		Build()
}

// RowFactory creates nutrition rows that pass the ingestion gate. Kcal is
// derived from the macros via 4/4/9 so Validate always balances.
type RowFactory struct {
	faker *gofakeit.Faker
}

// NewRowFactory creates a row factory with seeded faker
func NewRowFactory(seed int64) *RowFactory {
	return &RowFactory{
		faker: gofakeit.New(seed),
	}
}

// CreateRow creates a valid row from the given per-100g macros
func (rf *RowFactory) CreateRow(protein, fat, carbs float64, state nutrition.State) nutrition.Row {
	return nutrition.Row{
		Macros: nutrition.Macros{
			Kcal:    4*protein + 9*fat + 4*carbs,
			Protein: protein,
			Fat:     fat,
			Carbs:   carbs,
		},
		State:      state,
		Source:     nutrition.SourceCanonical,
		Confidence: 0.9,
	}
}

// CreateRandomRow creates a valid row with randomized plausible macros
func (rf *RowFactory) CreateRandomRow() nutrition.Row {
	protein := rf.faker.Float64Range(0, 30)
	fat := rf.faker.Float64Range(0, 25)
	carbs := rf.faker.Float64Range(0, 50)
	return rf.CreateRow(protein, fat, carbs, nutrition.StateRaw)
}

// CreateProteinRow creates a lean-protein row (chicken breast shaped)
func (rf *RowFactory) CreateProteinRow() nutrition.Row {
	return rf.CreateRow(31, 3.6, 0, nutrition.StateCooked)
}

// CreateCarbRow creates a dry-staple row (white rice shaped) with a cooked
// yield factor
func (rf *RowFactory) CreateCarbRow() nutrition.Row {
	row := rf.CreateRow(7, 0.6, 80, nutrition.StateDry)
	row.YieldFactor = 2.5
	return row
}

// CreateLiquidRow creates a liquid row (whole milk shaped) with a density
func (rf *RowFactory) CreateLiquidRow() nutrition.Row {
	row := rf.CreateRow(3.4, 3.6, 4.8, nutrition.StateLiquid)
	row.DensityGPerML = 1.03
	return row
}

// SKUFactory creates market SKU candidates
type SKUFactory struct {
	faker *gofakeit.Faker
	seq   int
}

// NewSKUFactory creates a SKU factory with seeded faker
func NewSKUFactory(seed int64) *SKUFactory {
	return &SKUFactory{
		faker: gofakeit.New(seed),
	}
}

// CreateSKU builds a candidate through the domain constructor so size parsing
// and unit pricing behave exactly as in production. The store category is left
// empty, which the soft category gate admits for any ingredient.
func (sf *SKUFactory) CreateSKU(title string, price float64, sizeText string) market.SKUCandidate {
	sf.seq++
	return market.NewSKUCandidate(
		title,
		sf.faker.Company(),
		"",
		decimal.NewFromFloat(price),
		sizeText,
		fmt.Sprintf("https://store.example/p/%d", sf.seq),
		sf.faker.DigitN(13),
	)
}

// CreateShelf creates n candidates for one product with spread prices, cheapest
// first by unit price.
func (sf *SKUFactory) CreateShelf(title, sizeText string, n int) []market.SKUCandidate {
	shelf := make([]market.SKUCandidate, 0, n)
	for i := 0; i < n; i++ {
		price := 1.50 + float64(i)*0.75
		shelf = append(shelf, sf.CreateSKU(title, price, sizeText))
	}
	return shelf
}

// SketchFactory creates model blueprint responses
type SketchFactory struct {
	faker *gofakeit.Faker
}

// NewSketchFactory creates a sketch factory with seeded faker
func NewSketchFactory(seed int64) *SketchFactory {
	return &SketchFactory{
		faker: gofakeit.New(seed),
	}
}

// mealTypes returns the occasion labels for the given count, mirroring the
// prompt contract: 3 mains first, snacks after.
func mealTypes(occasions int) []string {
	types := []string{"breakfast", "lunch", "dinner", "snack_1", "snack_2"}
	if occasions > len(types) {
		occasions = len(types)
	}
	return types[:occasions]
}

// CreateSketch creates a well-formed sketch with the given shape. Every meal
// carries the provided items.
func (sf *SketchFactory) CreateSketch(days, occasions int, items ...outbound.SketchItem) *outbound.MealSketch {
	if len(items) == 0 {
		items = []outbound.SketchItem{
			{Name: "chicken breast", QtyValue: 200, QtyUnit: "g"},
			{Name: "white rice", QtyValue: 80, QtyUnit: "g", StateHint: "dry"},
		}
	}

	sketch := &outbound.MealSketch{}
	for d := 1; d <= days; d++ {
		day := outbound.SketchDay{Day: d}
		for _, mealType := range mealTypes(occasions) {
			day.Meals = append(day.Meals, outbound.SketchMeal{
				Type:  mealType,
				Title: sf.faker.Dinner(),
				Items: items,
			})
		}
		sketch.Days = append(sketch.Days, day)
	}
	return sketch
}

// Cleanup provides cleanup utilities for tests
type Cleanup struct {
	funcs []func()
}

// NewCleanup creates a new cleanup helper
func NewCleanup() *Cleanup {
	return &Cleanup{
		funcs: make([]func(), 0),
	}
}

// Add adds a cleanup function
func (c *Cleanup) Add(f func()) {
	c.funcs = append(c.funcs, f)
}

// Execute runs all cleanup functions in reverse order
func (c *Cleanup) Execute() {
	for i := len(c.funcs) - 1; i >= 0; i-- {
		c.funcs[i]()
	}
}
