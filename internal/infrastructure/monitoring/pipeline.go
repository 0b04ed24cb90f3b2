package monitoring

import (
	"strings"
	"time"

	"github.com/macrocart/v2/internal/ports/inbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"github.com/macrocart/v2/pkg/logger"
)

// ObservePlan records one successful run: terminal status, end-to-end
// duration, phase timings derived from the event stream, per-ingredient
// sourcing outcomes, the solver label, and the ledger verdict.
func (m *MetricsCollector) ObservePlan(resp *inbound.PlanResponse, duration time.Duration) {
	m.RecordPlanRun("ok", duration)
	if resp == nil {
		return
	}
	m.observeEntries(resp.Logs)
	for _, res := range resp.Results {
		m.RecordIngredientOutcome(string(res.Outcome))
	}
	m.RecordLedgerVerdict(resp.ContractSatisfied.OK)
}

// ObservePlanFailure records one failed run under its lowercased error code.
// The entries are whatever the pipeline captured before dying, so phase
// timings still cover the phases that ran.
func (m *MetricsCollector) ObservePlanFailure(code apperrors.ErrorCode, entries []logger.Entry, duration time.Duration) {
	m.RecordPlanRun(strings.ToLower(string(code)), duration)
	m.observeEntries(entries)
	switch code {
	case apperrors.CodeMacroInfeasible, apperrors.CodeFinalMacroMismatch:
		m.RecordLedgerVerdict(false)
	}
}

// observeEntries attributes the gap between consecutive captured entries to
// the later entry's phase. Phases that log several events accumulate their
// whole window; phases that log nothing themselves (the sketch call) book
// against the first event of the phase that follows. Tracing spans carry the
// exact per-call timings.
func (m *MetricsCollector) observeEntries(entries []logger.Entry) {
	var prev time.Time
	for _, e := range entries {
		data, _ := e.Data.(map[string]interface{})
		if data == nil {
			continue
		}
		phase, _ := data["phase"].(string)
		if phase == "" {
			continue
		}
		if !prev.IsZero() {
			m.RecordPhase(phase, e.TS.Sub(prev))
		}
		prev = e.TS

		if e.Message == "Plan solved" {
			if label, ok := data["label"].(string); ok {
				m.RecordSolverRun(label)
			}
		}
	}
}
