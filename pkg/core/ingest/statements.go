package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dcf_valuation/pkg/core/utils"
	"dcf_valuation/pkg/models"

	"golang.org/x/time/rate"
)

const (
	// FundamentalsPath is the statements endpoint, relative to the base URL
	FundamentalsPath = "/fundamentals/%s"

	periodLayout = "2006-01-02"
)

// ErrStatementsNotFound is returned when a source has no statements for a ticker
var ErrStatementsNotFound = errors.New("statements not found")

// StatementDocument is the wire/file form of a FinancialStatementSet:
// statement kind -> line item -> period end (YYYY-MM-DD) -> value.
// Null values are allowed and treated as undefined.
type StatementDocument struct {
	Ticker     string                                    `json:"ticker"`
	Currency   string                                    `json:"currency,omitempty"`
	Statements map[string]map[string]map[string]*float64 `json:"statements"`
}

// ToStatementSet converts the document, rejecting unknown statement kinds
// and malformed period dates.
func (d *StatementDocument) ToStatementSet() (models.FinancialStatementSet, error) {
	known := make(map[models.StatementKind]bool, len(models.StatementKinds))
	for _, k := range models.StatementKinds {
		known[k] = true
	}

	fs := make(models.FinancialStatementSet, len(d.Statements))
	for kindName, items := range d.Statements {
		kind := models.StatementKind(kindName)
		if !known[kind] {
			return nil, fmt.Errorf("unknown statement kind %q", kindName)
		}

		obs := make(map[models.LineItem]map[time.Time]*float64, len(items))
		for item, byDate := range items {
			row := make(map[time.Time]*float64, len(byDate))
			for date, v := range byDate {
				period, err := time.Parse(periodLayout, date)
				if err != nil {
					return nil, fmt.Errorf("%s/%s: bad period %q: %w", kindName, item, date, err)
				}
				row[period] = v
			}
			obs[models.LineItem(item)] = row
		}
		fs[kind] = models.NewStatement(obs)
	}
	return fs, nil
}

// =============================================================================
// FILE SOURCE
// =============================================================================

// FileStatementSource reads <dir>/<TICKER>.hjson (or .json). Hjson allows
// comments and unquoted keys, which suits hand-maintained fixtures.
type FileStatementSource struct {
	dir string
}

func NewFileStatementSource(dir string) *FileStatementSource {
	return &FileStatementSource{dir: dir}
}

func (s *FileStatementSource) Statements(_ context.Context, ticker string) (models.FinancialStatementSet, error) {
	name := strings.ToUpper(ticker)
	for _, ext := range []string{".hjson", ".json"} {
		path := filepath.Join(s.dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		if ext == ".hjson" {
			if data, err = utils.ParseHJSON(data); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}

		var doc StatementDocument
		if err := utils.SmartParse(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return doc.ToStatementSet()
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrStatementsNotFound, ticker, s.dir)
}

// =============================================================================
// HTTP SOURCE
// =============================================================================

// HTTPStatementSource fetches statement documents from a fundamentals API.
// Payloads that fail strict decoding are run through JSON repair.
type HTTPStatementSource struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewHTTPStatementSource(baseURL string, timeout time.Duration, requestsPerSecond float64) *HTTPStatementSource {
	return &HTTPStatementSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(requestsPerSecond),
	}
}

func (s *HTTPStatementSource) Statements(ctx context.Context, ticker string) (models.FinancialStatementSet, error) {
	endpoint := s.baseURL + fmt.Sprintf(FundamentalsPath, url.PathEscape(ticker))

	body, status, err := getBody(ctx, s.httpClient, s.limiter, endpoint, "application/json")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrStatementsNotFound, ticker)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fundamentals API returned status %d for %s", status, ticker)
	}

	var doc StatementDocument
	if err := utils.SmartParse(body, &doc); err != nil {
		return nil, fmt.Errorf("%s: decode fundamentals: %w", ticker, err)
	}
	return doc.ToStatementSet()
}
