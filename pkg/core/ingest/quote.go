package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dcf_valuation/pkg/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// QuotePath is the HTML quote page, relative to the base URL
const QuotePath = "/quote/%s"

// QuotePageScraper reads profile facts from a quote page. Every fact is an
// element tagged with data-field, e.g. <td data-field="beta">1.24</td>.
type QuotePageScraper struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewQuotePageScraper(baseURL string, timeout time.Duration, requestsPerSecond float64) *QuotePageScraper {
	return &QuotePageScraper{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(requestsPerSecond),
	}
}

// Profile fetches and parses the quote page for ticker
func (s *QuotePageScraper) Profile(ctx context.Context, ticker string) (*models.CompanyProfile, error) {
	endpoint := s.baseURL + fmt.Sprintf(QuotePath, url.PathEscape(ticker))

	body, status, err := getBody(ctx, s.httpClient, s.limiter, endpoint, "text/html")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("quote page returned status %d for %s", status, ticker)
	}

	return ParseQuotePage(body)
}

// ParseQuotePage extracts the profile from quote page HTML. Unparseable or
// placeholder values ("N/A", "--") leave the field nil.
func ParseQuotePage(html []byte) (*models.CompanyProfile, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote page: %w", err)
	}

	fields := make(map[string]string)
	doc.Find("[data-field]").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("data-field")
		value, ok := sel.Attr("data-value")
		if !ok {
			value = sel.Text()
		}
		if _, seen := fields[name]; !seen {
			fields[name] = strings.TrimSpace(value)
		}
	})

	p := &models.CompanyProfile{
		Name:              fields["longName"],
		Sector:            fields["sector"],
		Industry:          fields["industry"],
		Beta:              parseAbbreviated(fields["beta"]),
		MarketCap:         parseAbbreviated(fields["marketCap"]),
		EnterpriseValue:   parseAbbreviated(fields["enterpriseValue"]),
		SharesOutstanding: parseAbbreviated(fields["sharesOutstanding"]),
	}
	if p.Name == "" {
		p.Name = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return p, nil
}

var magnitudes = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
	'T': 1e12,
}

// parseAbbreviated reads "1.24", "2.95T", "15,204,137,000" or "(3.1B)"
func parseAbbreviated(raw string) *float64 {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if s == "" || s == "N/A" || s == "--" || s == "-" {
		return nil
	}

	sign := 1.0
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		sign = -1
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return nil
	}

	mult := 1.0
	if m, ok := magnitudes[strings.ToUpper(s[len(s)-1:])[0]]; ok {
		mult = m
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v *= sign * mult
	return &v
}
