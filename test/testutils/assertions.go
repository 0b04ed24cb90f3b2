// Package testutils provides custom assertions and testing utilities
package testutils

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrocart/v2/internal/domain/nutrition"
	"github.com/macrocart/v2/internal/ports/inbound"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"github.com/macrocart/v2/pkg/logger"
)

// PlanAssertions provides plan-specific assertion methods
type PlanAssertions struct {
	t *testing.T
}

// NewPlanAssertions creates a new plan assertions helper
func NewPlanAssertions(t *testing.T) *PlanAssertions {
	return &PlanAssertions{t: t}
}

// ValidResponse asserts the structural invariants of a completed run: the
// plan covers every requested day, every meal resolves its portions, and the
// verdict is present.
func (pa *PlanAssertions) ValidResponse(resp *inbound.PlanResponse, days int) {
	require.NotNil(pa.t, resp, "Plan response should not be nil")
	assert.Len(pa.t, resp.MealPlan, days, "Plan should cover every requested day")
	assert.NotEmpty(pa.t, resp.UniqueIngredients, "Plan should aggregate ingredients")
	assert.NotEmpty(pa.t, resp.Results, "Plan should carry resolved ingredients")

	for _, day := range resp.MealPlan {
		assert.NotEmpty(pa.t, day.Meals, "Day %d should have meals", day.Day)
		for _, meal := range day.Meals {
			assert.NotEmpty(pa.t, meal.Items, "Meal %q should have portions", meal.Title)
			for _, item := range meal.Items {
				assert.Greater(pa.t, item.Grams, 0, "Portion %s should have positive grams", item.CID)
			}
		}
	}
}

// ContractSatisfied asserts the run ended inside tolerance
func (pa *PlanAssertions) ContractSatisfied(resp *inbound.PlanResponse) {
	require.NotNil(pa.t, resp, "Plan response should not be nil")
	assert.True(pa.t, resp.ContractSatisfied.OK,
		"Contract should be satisfied, violations: %+v", resp.ContractSatisfied.Violations)
}

// MealsPerDay asserts each day has the requested occasions, allowing one
// extra for a booster meal.
func (pa *PlanAssertions) MealsPerDay(resp *inbound.PlanResponse, occasions int) {
	require.NotNil(pa.t, resp, "Plan response should not be nil")
	for _, day := range resp.MealPlan {
		count := len(day.Meals)
		withinRange := count == occasions || count == occasions+1
		assert.True(pa.t, withinRange,
			"Day %d has %d meals, want %d or %d", day.Day, count, occasions, occasions+1)
	}
}

// MacroAssertions provides nutrition-specific assertion methods
type MacroAssertions struct {
	t *testing.T
}

// NewMacroAssertions creates a new macro assertions helper
func NewMacroAssertions(t *testing.T) *MacroAssertions {
	return &MacroAssertions{t: t}
}

// ValidRow asserts that a row passes the ingestion gate
func (ma *MacroAssertions) ValidRow(row nutrition.Row) {
	assert.NoError(ma.t, row.Validate(), "Row should pass the ingestion gate")
}

// MacrosClose asserts two macro sets agree within a relative tolerance
func (ma *MacroAssertions) MacrosClose(expected, actual nutrition.Macros, tolerance float64) {
	ma.relClose("kcal", expected.Kcal, actual.Kcal, tolerance)
	ma.relClose("protein", expected.Protein, actual.Protein, tolerance)
	ma.relClose("fat", expected.Fat, actual.Fat, tolerance)
	ma.relClose("carbs", expected.Carbs, actual.Carbs, tolerance)
}

func (ma *MacroAssertions) relClose(name string, expected, actual, tolerance float64) {
	if expected == 0 {
		assert.InDelta(ma.t, expected, actual, 1e-9, "%s should be zero", name)
		return
	}
	drift := math.Abs(actual-expected) / math.Abs(expected)
	assert.LessOrEqual(ma.t, drift, tolerance,
		"%s drift %.3f exceeds %.3f (expected %.1f, got %.1f)", name, drift, tolerance, expected, actual)
}

// HTTPAssertions provides HTTP-specific assertion methods
type HTTPAssertions struct {
	t *testing.T
}

// NewHTTPAssertions creates a new HTTP assertions helper
func NewHTTPAssertions(t *testing.T) *HTTPAssertions {
	return &HTTPAssertions{t: t}
}

// StatusCode asserts the HTTP status code
func (ha *HTTPAssertions) StatusCode(resp *http.Response, expectedCode int) {
	require.NotNil(ha.t, resp, "Response should not be nil")
	assert.Equal(ha.t, expectedCode, resp.StatusCode)
}

// JSONResponse asserts that the response is valid JSON and unmarshals it
func (ha *HTTPAssertions) JSONResponse(resp *http.Response, target interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")

	contentType := resp.Header.Get("Content-Type")
	assert.True(ha.t, strings.Contains(contentType, "application/json"),
		"Response should have JSON content type, got: %s", contentType)

	require.NoError(ha.t, json.NewDecoder(resp.Body).Decode(target),
		"Response should be valid JSON")
}

// ErrorCode asserts that the response body carries the given error code
func (ha *HTTPAssertions) ErrorCode(resp *http.Response, code apperrors.ErrorCode) {
	require.NotNil(ha.t, resp, "Response should not be nil")

	var errorResp apperrors.ErrorResponse
	ha.JSONResponse(resp, &errorResp)
	assert.Equal(ha.t, code, errorResp.Error.Code)
}

// Header asserts that a header exists with the expected value
func (ha *HTTPAssertions) Header(resp *http.Response, name, expectedValue string) {
	require.NotNil(ha.t, resp, "Response should not be nil")
	assert.Equal(ha.t, expectedValue, resp.Header.Get(name))
}

// ParseNDJSON splits a streaming body into its progress entries. The terminal
// line is returned raw so callers can decode its payload by tag.
func ParseNDJSON(t *testing.T, body []byte) (entries []logger.Entry, last json.RawMessage) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines [][]byte
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	require.NoError(t, scanner.Err(), "Stream should be readable")
	require.NotEmpty(t, lines, "Stream should have at least the terminal entry")

	for _, line := range lines[:len(lines)-1] {
		var entry logger.Entry
		require.NoError(t, json.Unmarshal(line, &entry), "Stream line should be an entry: %s", line)
		entries = append(entries, entry)
	}
	return entries, json.RawMessage(lines[len(lines)-1])
}
