package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dcf_valuation/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartFixture = `{
  "chart": {
    "result": [{
      "timestamp": [1704153600, 1704240000, 1704326400],
      "indicators": {"quote": [{"close": [4.02, null, 4.11]}]}
    }],
    "error": null
  }
}`

const quoteFixture = `<html><body>
<h1>Acme Corp (ACME)</h1>
<table>
  <tr><td>Name</td><td data-field="longName">Acme Corporation</td></tr>
  <tr><td>Sector</td><td data-field="sector">Industrials</td></tr>
  <tr><td>Industry</td><td data-field="industry">Machinery</td></tr>
  <tr><td>Beta</td><td data-field="beta">1.24</td></tr>
  <tr><td>Market Cap</td><td data-field="marketCap">2.95T</td></tr>
  <tr><td>EV</td><td data-field="enterpriseValue">N/A</td></tr>
  <tr><td>Shares</td><td data-field="sharesOutstanding" data-value="15204137000">15.2B</td></tr>
</table>
</body></html>`

const statementsFixture = `{
  // hand-maintained fixture
  ticker: ACME
  statements: {
    income_statement: {
      "Total Revenue": {"2022-12-31": 100, "2023-12-31": 110}
    }
    balance_sheet: {
      "Total Debt": {"2023-12-31": 20}
      "Cash Cash Equivalents And Short Term Investments": {"2022-12-31": 45, "2023-12-31": null}
    }
  }
}`

func TestChartClient_PriceHistory(t *testing.T) {
	var gotPath, gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	c := NewChartClient(srv.URL, 5*time.Second, 0)
	points, err := c.PriceHistory(context.Background(), "^TNX", models.Window5Days)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/^TNX", gotPath)
	assert.Equal(t, "5d", gotRange)
	require.Len(t, points, 2, "null close must be dropped")
	assert.Equal(t, 4.02, points[0].Close)
	assert.Equal(t, 4.11, points[1].Close)
	assert.True(t, points[0].Time.Before(points[1].Time))
}

func TestChartClient_UnknownSymbolIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	points, err := NewChartClient(srv.URL, time.Second, 0).PriceHistory(context.Background(), "NOPE", models.Window1Day)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestChartClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Bad Request","description":"invalid range"}}}`))
	}))
	defer srv.Close()

	_, err := NewChartClient(srv.URL, time.Second, 0).PriceHistory(context.Background(), "^GSPC", models.WindowMax)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range")
}

func TestChartClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewChartClient(srv.URL, time.Second, 0).PriceHistory(context.Background(), "^GSPC", models.WindowMax)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestParseQuotePage(t *testing.T) {
	p, err := ParseQuotePage([]byte(quoteFixture))
	require.NoError(t, err)

	assert.Equal(t, "Acme Corporation", p.Name)
	assert.Equal(t, "Industrials", p.Sector)
	assert.Equal(t, "Machinery", p.Industry)
	require.NotNil(t, p.Beta)
	assert.InDelta(t, 1.24, *p.Beta, 1e-12)
	require.NotNil(t, p.MarketCap)
	assert.InDelta(t, 2.95e12, *p.MarketCap, 1)
	assert.Nil(t, p.EnterpriseValue)
	require.NotNil(t, p.SharesOutstanding)
	assert.Equal(t, 15204137000.0, *p.SharesOutstanding)
}

func TestParseQuotePage_NameFallsBackToHeading(t *testing.T) {
	p, err := ParseQuotePage([]byte(`<html><body><h1> Widget Inc </h1></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Widget Inc", p.Name)
	assert.Nil(t, p.Beta)
	assert.Nil(t, p.SharesOutstanding)
}

func TestParseAbbreviated(t *testing.T) {
	cases := map[string]*float64{
		"1.24":           ptr(1.24),
		"15,204,137,000": ptr(15204137000),
		"3.5M":           ptr(3.5e6),
		"12k":            ptr(12e3),
		"(3.1B)":         ptr(-3.1e9),
		"N/A":            nil,
		"--":             nil,
		"()":             nil,
		"abc":            nil,
		"":               nil,
	}
	for in, want := range cases {
		got := parseAbbreviated(in)
		if want == nil {
			assert.Nil(t, got, in)
			continue
		}
		require.NotNil(t, got, in)
		assert.InDelta(t, *want, *got, 1e-6, in)
	}
}

func TestQuotePageScraper_Profile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/ACME", r.URL.Path)
		_, _ = w.Write([]byte(quoteFixture))
	}))
	defer srv.Close()

	p, err := NewQuotePageScraper(srv.URL, time.Second, 0).Profile(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", p.Name)
}

func TestFileStatementSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ACME.hjson"), []byte(statementsFixture), 0o644))

	fs, err := NewFileStatementSource(dir).Statements(context.Background(), "acme")
	require.NoError(t, err)

	rev := fs.Series(models.StatementIncome, models.Revenue)
	assert.Equal(t, []float64{100, 110}, rev.Values())

	cash := fs.Series(models.StatementBalanceSheet, models.CashAndShortTerm)
	assert.Equal(t, []float64{45}, cash.Values(), "null cell is undefined")
}

func TestFileStatementSource_Missing(t *testing.T) {
	_, err := NewFileStatementSource(t.TempDir()).Statements(context.Background(), "ACME")
	assert.True(t, errors.Is(err, ErrStatementsNotFound))
}

func TestStatementDocument_RejectsBadInput(t *testing.T) {
	doc := StatementDocument{Statements: map[string]map[string]map[string]*float64{
		"ledger": {},
	}}
	_, err := doc.ToStatementSet()
	assert.Error(t, err)

	doc = StatementDocument{Statements: map[string]map[string]map[string]*float64{
		"cashflow": {"Free Cash Flow": {"31/12/2023": ptr(1)}},
	}}
	_, err = doc.ToStatementSet()
	assert.Error(t, err)
}

func TestHTTPStatementSource_RepairsPayload(t *testing.T) {
	// trailing commas
	payload := `{"ticker": "ACME", "statements": {"cashflow": {"Free Cash Flow": {"2023-12-31": 12.5,},},},}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fundamentals/ACME", r.URL.Path)
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	fs, err := NewHTTPStatementSource(srv.URL, time.Second, 0).Statements(context.Background(), "ACME")
	require.NoError(t, err)
	v, ok := fs.Latest(models.StatementCashFlow, models.FreeCashFlow)
	require.True(t, ok)
	assert.Equal(t, 12.5, v)
}

func TestHTTPStatementSource_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewHTTPStatementSource(srv.URL, time.Second, 0).Statements(context.Background(), "ACME")
	assert.True(t, errors.Is(err, ErrStatementsNotFound))
}

type stubSources struct {
	profile *models.CompanyProfile
	fs      models.FinancialStatementSet
	err     error
}

func (s stubSources) PriceHistory(context.Context, string, models.Window) ([]models.PricePoint, error) {
	return nil, s.err
}

func (s stubSources) Profile(context.Context, string) (*models.CompanyProfile, error) {
	return s.profile, s.err
}

func (s stubSources) Statements(context.Context, string) (models.FinancialStatementSet, error) {
	return s.fs, s.err
}

type recordingObserver struct {
	ops  []string
	errs int
}

func (o *recordingObserver) ObserveFetch(op string, seconds float64, err error) {
	o.ops = append(o.ops, op)
	if err != nil {
		o.errs++
	}
}

func TestProvider_ObservesEveryFetch(t *testing.T) {
	src := stubSources{profile: &models.CompanyProfile{Name: "Acme"}, fs: models.FinancialStatementSet{}}
	p := NewProvider(src, src, src)
	obs := &recordingObserver{}
	p.SetObserver(obs)

	ctx := context.Background()
	_, _ = p.PriceHistory(ctx, "^GSPC", models.WindowMax)
	_, _ = p.Profile(ctx, "ACME")
	_, _ = p.Statements(ctx, "ACME")

	assert.Equal(t, []string{"price_history", "profile", "statements"}, obs.ops)
	assert.Zero(t, obs.errs)
}

func TestLoadCompany(t *testing.T) {
	fs := models.FinancialStatementSet{
		models.StatementBalanceSheet: models.NewAnnualStatement(2023, map[models.LineItem][]float64{
			models.CashAndShortTerm: {40, 50},
			models.TotalDebt:        {25, 20},
		}),
	}
	src := stubSources{profile: &models.CompanyProfile{Name: "Acme", SharesOutstanding: ptr(10)}, fs: fs}

	c, err := LoadCompany(context.Background(), src, "ACME")
	require.NoError(t, err)
	assert.Equal(t, "ACME", c.Ticker)
	assert.Equal(t, 50.0, c.CashOrZero())
	assert.Equal(t, 20.0, c.DebtOrZero())
	assert.Equal(t, 10.0, *c.SharesOutstanding())
}

func TestLoadCompany_PropagatesFetchError(t *testing.T) {
	boom := errors.New("upstream down")
	_, err := LoadCompany(context.Background(), stubSources{err: boom}, "ACME")
	assert.ErrorIs(t, err, boom)
}

func ptr(v float64) *float64 { return &v }
