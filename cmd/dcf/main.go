package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dcf_valuation/pkg/config"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/report"
	"dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/logger"
	"dcf_valuation/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	var opts cliOptions
	flag.StringVar(&opts.strategy, "strategy", "", "Forecast strategy: revenue_margin, nopat, operating_cash_flow (default from config)")
	flag.IntVar(&opts.horizon, "horizon", 0, "Forecast horizon in years (default from config)")
	flag.Float64Var(&opts.growth, "growth", 0, "Terminal growth rate, e.g. 0.03 (default from config)")
	format := flag.String("format", "md", "Output format: md, html, json")
	persist := flag.Bool("persist", false, "Store each valuation run")
	refresh := flag.Bool("refresh", false, "Drop cached market data for the tickers before valuing")
	flag.Parse()

	opts.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	tickers := flag.Args()
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "usage: dcf [flags] TICKER [TICKER...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.LoadWithDotenv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, buildRequests(cfg, tickers, opts), *format, *persist, *refresh); err != nil {
		log.Error().Err(err).Msg("dcf failed")
		os.Exit(1)
	}
}

// cliOptions holds the per-run flags; set records which were passed explicitly
type cliOptions struct {
	strategy string
	horizon  int
	growth   float64
	set      map[string]bool
}

// buildRequests fills anything not given on the command line from config
func buildRequests(cfg *config.Config, tickers []string, opts cliOptions) []pipeline.Request {
	strategy := cfg.Valuation.Strategy
	if opts.set["strategy"] {
		strategy = opts.strategy
	}
	horizon := cfg.Valuation.HorizonYears
	if opts.set["horizon"] {
		horizon = opts.horizon
	}
	growth := cfg.Valuation.TerminalGrowth
	if opts.set["growth"] {
		growth = opts.growth
	}

	reqs := make([]pipeline.Request, len(tickers))
	for i, t := range tickers {
		g := growth
		reqs[i] = pipeline.Request{Ticker: t, Strategy: strategy, HorizonYears: horizon, TerminalGrowth: &g}
	}
	return reqs
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, reqs []pipeline.Request, format string, persist, refresh bool) error {
	recorder := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	svc, err := pipeline.NewFromConfig(ctx, cfg, log, recorder, persist)
	if err != nil {
		return err
	}
	defer svc.Close()

	if refresh && svc.Cache != nil {
		for _, r := range reqs {
			if err := svc.Cache.Invalidate(ctx, r.Ticker); err != nil {
				log.Warn().Err(err).Str("ticker", r.Ticker).Msg("cache invalidation failed")
			}
		}
	}

	results := svc.Orchestrator.RunAll(ctx, reqs, cfg.Valuation.Concurrency)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Request.Ticker, r.Err)
			continue
		}
		if err := write(os.Stdout, format, r.Outcome); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d valuations failed", failed, len(results))
	}
	return nil
}

func write(w *os.File, format string, out *pipeline.Outcome) error {
	v := report.Valuation{Company: out.Company, Table: out.Table, Result: out.Result, WACC: &out.WACC}

	switch format {
	case "html":
		html, err := report.HTML(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, html)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Ticker   string                     `json:"ticker"`
			Name     string                     `json:"name"`
			RecordID string                     `json:"record_id,omitempty"`
			WACC     valuation.WACCResult       `json:"wacc"`
			Table    *valuation.DCFTable        `json:"table"`
			Result   *valuation.ValuationResult `json:"result"`
		}{out.Company.Ticker, out.Company.Profile.Name, out.RecordID, out.WACC, out.Table, out.Result})
	default:
		_, err := fmt.Fprintln(w, report.Markdown(v))
		return err
	}
}
