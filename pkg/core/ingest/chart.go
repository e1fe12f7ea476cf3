// Package ingest provides the market-data collaborators the valuation core
// consumes: daily price history, quote-page profile facts, and reported
// financial statements.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dcf_valuation/pkg/models"

	"golang.org/x/time/rate"
)

const (
	// ChartPath is the price-history endpoint, relative to the base URL
	ChartPath = "/v8/finance/chart/%s"

	UserAgent = "DCFValuation/1.0 (contact@example.com)"
)

// =============================================================================
// CHART API DATA TYPES
// =============================================================================

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// =============================================================================
// CHART CLIENT
// =============================================================================

// ChartClient fetches daily closes from a chart-style JSON API.
type ChartClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewChartClient creates a client. requestsPerSecond <= 0 disables throttling.
func NewChartClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *ChartClient {
	return &ChartClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(requestsPerSecond),
	}
}

// PriceHistory returns ascending daily closes; null closes are dropped.
// A symbol the API does not know yields an empty history, not an error.
func (c *ChartClient) PriceHistory(ctx context.Context, symbol string, window models.Window) ([]models.PricePoint, error) {
	endpoint := c.baseURL + fmt.Sprintf(ChartPath, url.PathEscape(symbol))
	q := url.Values{}
	q.Set("range", string(window))
	q.Set("interval", "1d")

	body, status, err := getBody(ctx, c.httpClient, c.limiter, endpoint+"?"+q.Encode(), "application/json")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("chart API returned status %d for %s", status, symbol)
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart API error for %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}

	return toPricePoints(resp.Chart.Result[0]), nil
}

func toPricePoints(r chartResult) []models.PricePoint {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	closes := r.Indicators.Quote[0].Close

	points := make([]models.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, models.PricePoint{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *closes[i],
		})
	}
	return points
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}

// getBody performs a throttled GET and returns the body with its status code
func getBody(ctx context.Context, client *http.Client, limiter *rate.Limiter, endpoint, accept string) ([]byte, int, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
