package ingest

import (
	"context"
	"fmt"
	"time"

	"dcf_valuation/pkg/models"
)

type HistorySource interface {
	PriceHistory(ctx context.Context, symbol string, window models.Window) ([]models.PricePoint, error)
}

type ProfileSource interface {
	Profile(ctx context.Context, ticker string) (*models.CompanyProfile, error)
}

type StatementSource interface {
	Statements(ctx context.Context, ticker string) (models.FinancialStatementSet, error)
}

// FetchObserver is notified after every upstream call
type FetchObserver interface {
	ObserveFetch(op string, seconds float64, err error)
}

// Provider composes the three sources into one market-data collaborator
type Provider struct {
	history    HistorySource
	profiles   ProfileSource
	statements StatementSource
	observer   FetchObserver
}

func NewProvider(history HistorySource, profiles ProfileSource, statements StatementSource) *Provider {
	return &Provider{history: history, profiles: profiles, statements: statements}
}

// SetObserver attaches a fetch observer (e.g. a metrics recorder)
func (p *Provider) SetObserver(o FetchObserver) {
	p.observer = o
}

func (p *Provider) PriceHistory(ctx context.Context, symbol string, window models.Window) ([]models.PricePoint, error) {
	start := time.Now()
	points, err := p.history.PriceHistory(ctx, symbol, window)
	p.observe("price_history", start, err)
	return points, err
}

func (p *Provider) Profile(ctx context.Context, ticker string) (*models.CompanyProfile, error) {
	start := time.Now()
	profile, err := p.profiles.Profile(ctx, ticker)
	p.observe("profile", start, err)
	return profile, err
}

func (p *Provider) Statements(ctx context.Context, ticker string) (models.FinancialStatementSet, error) {
	start := time.Now()
	fs, err := p.statements.Statements(ctx, ticker)
	p.observe("statements", start, err)
	return fs, err
}

func (p *Provider) observe(op string, start time.Time, err error) {
	if p.observer != nil {
		p.observer.ObserveFetch(op, time.Since(start).Seconds(), err)
	}
}

// CompanySource is what LoadCompany needs from a provider
type CompanySource interface {
	ProfileSource
	StatementSource
}

// LoadCompany fetches profile and statements once and assembles the company
func LoadCompany(ctx context.Context, src CompanySource, ticker string) (*models.Company, error) {
	profile, err := src.Profile(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch profile: %w", ticker, err)
	}
	fs, err := src.Statements(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch statements: %w", ticker, err)
	}
	for kind, st := range fs {
		if err := st.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", ticker, kind, err)
		}
	}
	return models.NewCompany(ticker, *profile, fs), nil
}
