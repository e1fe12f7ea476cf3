package pipeline

import (
	"context"
	"fmt"

	"dcf_valuation/pkg/config"
	"dcf_valuation/pkg/core/ingest"
	"dcf_valuation/pkg/core/store"
	"dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/metrics"

	"github.com/rs/zerolog"
)

// Services is a fully wired orchestrator plus what it was built from
type Services struct {
	Orchestrator *Orchestrator
	Repository   store.ValuationRepository // nil when persistence is off
	Cache        *store.MarketDataCache    // nil without Redis
	Recorder     *metrics.Recorder

	closers []func()
}

// Close releases the Redis client and database pool, if any
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// NewFromConfig builds the market-data chain (HTTP sources, optional Redis
// cache), optional persistence and the orchestrator. A Redis outage degrades
// to uncached fetches; a database failure is fatal.
func NewFromConfig(ctx context.Context, cfg *config.Config, log zerolog.Logger, recorder *metrics.Recorder, persist bool) (*Services, error) {
	s := &Services{Recorder: recorder}

	var statements ingest.StatementSource = ingest.NewFileStatementSource(cfg.Market.StatementsDir)
	if cfg.Market.FundamentalsURL != "" {
		statements = ingest.NewHTTPStatementSource(cfg.Market.FundamentalsURL, cfg.Market.Timeout, cfg.Market.RequestsPerSecond)
	}
	provider := ingest.NewProvider(
		ingest.NewChartClient(cfg.Market.BaseURL, cfg.Market.Timeout, cfg.Market.RequestsPerSecond),
		ingest.NewQuotePageScraper(cfg.Market.QuoteBaseURL, cfg.Market.Timeout, cfg.Market.RequestsPerSecond),
		statements,
	)
	if recorder != nil {
		provider.SetObserver(recorder)
	}

	var market valuation.MarketData = provider
	if cfg.Cache.RedisAddr != "" {
		client, err := store.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, running without cache")
		} else {
			s.closers = append(s.closers, func() { _ = client.Close() })
			s.Cache = store.NewMarketDataCache(provider, client,
				store.WithCachePrefix(cfg.Cache.Prefix),
				store.WithCacheTTL(cfg.Cache.TTL),
				store.WithCacheLogger(log))
			market = s.Cache
		}
	}

	opts := []Option{
		WithLogger(log),
		WithWACCOptions(
			valuation.WithRiskFreeSymbol(cfg.Market.RiskFreeSymbol),
			valuation.WithMarketIndex(cfg.Market.IndexSymbol),
			valuation.WithBondSpread(cfg.Market.BondSpread),
			valuation.WithDefaultTaxRate(cfg.Market.DefaultTaxRate),
		),
	}
	if recorder != nil {
		opts = append(opts, WithRecorder(recorder))
	}

	if persist || cfg.Store.DatabaseURL != "" {
		if cfg.Store.DatabaseURL != "" {
			if err := store.InitDB(ctx, cfg.Store.DatabaseURL); err != nil {
				s.Close()
				return nil, fmt.Errorf("init db: %w", err)
			}
			s.closers = append(s.closers, store.Close)
		}
		repo, err := store.NewValuationRepo(store.GetPool(), cfg.Store.Dir)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Repository = repo
		opts = append(opts, WithRepository(repo))
	}

	s.Orchestrator = NewOrchestrator(market, opts...)
	return s, nil
}
