// Package nutritionapi implements the external nutrition providers of the
// resolution ladder: the barcode product lookup and the free-text food
// search. Both are throttled by a courtesy limiter and come with
// stale-while-revalidate decorators for the per-source caches.
package nutritionapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/macrocart/v2/internal/domain/nutrition"
	apperrors "github.com/macrocart/v2/pkg/errors"
)

// fetchJSON performs one GET and classifies the outcome. A 404 comes back
// as (nil, 404, nil) so callers can treat it as a clean miss rather than a
// transport failure.
func fetchJSON(ctx context.Context, client *http.Client, endpoint, apiKey, source string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, apperrors.NewBadRequestError(err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, 0, apperrors.NewUpstreamTimeoutError(source, err)
		}
		return nil, 0, apperrors.NewNetworkError(source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apperrors.NewNetworkError(source, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, resp.StatusCode, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resp.StatusCode, apperrors.NewRateLimitedError(source, retryAfterMS(resp))
	case resp.StatusCode >= 500:
		return nil, resp.StatusCode, apperrors.NewUpstreamError(source, resp.StatusCode, nil)
	default:
		return nil, resp.StatusCode, apperrors.NewAppError(apperrors.CodeBadRequest,
			"Nutrition lookup rejected",
			fmt.Sprintf("%s returned status %d", source, resp.StatusCode),
		).WithMetadata("status", resp.StatusCode)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func retryAfterMS(resp *http.Response) int64 {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return int64(seconds) * 1000
}

// plausibleLabel rejects empty or physically impossible label data. The
// finer plausibility call happens in the resolver's fingerprint gate; this
// only keeps obvious junk out of the pipeline.
func plausibleLabel(row *nutrition.Row) bool {
	if row.Kcal < 0 || row.Protein < 0 || row.Fat < 0 || row.Carbs < 0 || row.FiberG < 0 {
		return false
	}
	if row.Kcal == 0 && row.Protein == 0 && row.Fat == 0 && row.Carbs == 0 {
		return false
	}
	return row.Protein+row.Fat+row.Carbs <= nutrition.MaxMacroMassPer100g
}
