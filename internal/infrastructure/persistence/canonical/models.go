package canonical

import (
	"time"

	"github.com/macrocart/v2/internal/domain/nutrition"
)

// RowModel is the persisted shape of one canonical nutrition row.
type RowModel struct {
	Key           string  `gorm:"type:varchar(255);primaryKey"`
	Kcal          float64 `gorm:"not null"`
	ProteinG      float64 `gorm:"column:protein_g;not null"`
	FatG          float64 `gorm:"column:fat_g;not null"`
	CarbG         float64 `gorm:"column:carb_g;not null"`
	FiberG        float64 `gorm:"column:fiber_g"`
	State         string  `gorm:"type:varchar(20);not null"`
	YieldFactor   float64 `gorm:"column:yield_factor"`
	DensityGPerML float64 `gorm:"column:density_g_per_ml"`
	Confidence    float64 `gorm:"not null"`
	CreatedAt     time.Time
}

// TableName overrides the GORM table name
func (RowModel) TableName() string {
	return "canonical_rows"
}

// RowToModel converts a domain row for persistence.
func RowToModel(key string, row nutrition.Row) *RowModel {
	return &RowModel{
		Key:           key,
		Kcal:          row.Kcal,
		ProteinG:      row.Protein,
		FatG:          row.Fat,
		CarbG:         row.Carbs,
		FiberG:        row.FiberG,
		State:         string(row.State),
		YieldFactor:   row.YieldFactor,
		DensityGPerML: row.DensityGPerML,
		Confidence:    row.Confidence,
	}
}

// ModelToRow converts a persisted row back to the domain shape. Stored rows
// are canonical by definition regardless of the source that produced the
// dataset.
func ModelToRow(model *RowModel) nutrition.Row {
	return nutrition.Row{
		Macros: nutrition.Macros{
			Kcal:    model.Kcal,
			Protein: model.ProteinG,
			Fat:     model.FatG,
			Carbs:   model.CarbG,
		},
		FiberG:        model.FiberG,
		State:         nutrition.State(model.State),
		YieldFactor:   model.YieldFactor,
		DensityGPerML: model.DensityGPerML,
		Source:        nutrition.SourceCanonical,
		Confidence:    model.Confidence,
	}
}
