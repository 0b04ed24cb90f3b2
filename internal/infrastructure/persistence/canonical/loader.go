package canonical

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/macrocart/v2/internal/domain/catalog"
	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/ports/outbound"
	"go.uber.org/zap"
)

// defaultConfidence is assigned to dataset rows that do not carry their own
// confidence. Canonical rows rank between the hot table and barcode labels.
const defaultConfidence = 0.9

// datasetRow is one JSON line of the build artifact.
type datasetRow struct {
	Key           string  `json:"key"`
	Kcal          float64 `json:"kcal"`
	ProteinG      float64 `json:"protein_g"`
	FatG          float64 `json:"fat_g"`
	CarbG         float64 `json:"carb_g"`
	FiberG        float64 `json:"fiber_g"`
	State         string  `json:"state"`
	YieldFactor   float64 `json:"yield_factor,omitempty"`
	DensityGPerML float64 `json:"density_g_per_ml,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// RejectedRow records one dataset line the ingestion gate refused.
type RejectedRow struct {
	Line   int    `json:"line"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// ImportReport summarizes one dataset import.
type ImportReport struct {
	Imported   int           `json:"imported"`
	Rejected   []RejectedRow `json:"rejected"`
	Collisions []string      `json:"collisions"`
}

// Loader ingests the dataset artifact into the canonical store, applying
// the same row invariants the hot table audits.
type Loader struct {
	store  outbound.CanonicalRepository
	logger *zap.Logger
}

// NewLoader creates a dataset loader.
func NewLoader(store outbound.CanonicalRepository, logger *zap.Logger) *Loader {
	return &Loader{
		store:  store,
		logger: logger.Named("dataset-loader"),
	}
}

// Load streams the dataset from src line by line. Rows failing the gate are
// rejected with a reason, duplicate keys lose to the first writer, and
// neither stops the import.
func (l *Loader) Load(ctx context.Context, src outbound.DatasetSource) (*ImportReport, error) {
	rc, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset: %w", err)
	}
	defer rc.Close()

	report := &ImportReport{}
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw datasetRow
		if err := json.Unmarshal(line, &raw); err != nil {
			report.Rejected = append(report.Rejected, RejectedRow{
				Line: lineNo, Key: raw.Key, Reason: "unparseable line",
			})
			continue
		}

		key := catalog.Normalize(raw.Key)
		if key == "" {
			report.Rejected = append(report.Rejected, RejectedRow{
				Line: lineNo, Key: raw.Key, Reason: "empty key",
			})
			continue
		}

		row := rowFromDataset(raw)
		if err := row.Validate(); err != nil {
			report.Rejected = append(report.Rejected, RejectedRow{
				Line: lineNo, Key: key, Reason: err.Error(),
			})
			continue
		}

		written, err := l.store.Insert(ctx, key, row)
		if err != nil {
			return nil, err
		}
		if !written {
			report.Collisions = append(report.Collisions, key)
			continue
		}
		report.Imported++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	l.logger.Info("Dataset import finished",
		zap.Int("imported", report.Imported),
		zap.Int("rejected", len(report.Rejected)),
		zap.Int("collisions", len(report.Collisions)))

	return report, nil
}

func rowFromDataset(raw datasetRow) nutrition.Row {
	confidence := raw.Confidence
	if confidence <= 0 {
		confidence = defaultConfidence
	}
	return nutrition.Row{
		Macros: nutrition.Macros{
			Kcal:    raw.Kcal,
			Protein: raw.ProteinG,
			Fat:     raw.FatG,
			Carbs:   raw.CarbG,
		},
		FiberG:        raw.FiberG,
		State:         nutrition.State(raw.State),
		YieldFactor:   raw.YieldFactor,
		DensityGPerML: raw.DensityGPerML,
		Source:        nutrition.SourceCanonical,
		Confidence:    confidence,
	}
}
