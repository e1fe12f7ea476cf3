// Package pipeline runs end-to-end valuations: load company, estimate the
// discount rate, run the DCF engine, then record and persist the outcome.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dcf_valuation/pkg/core/ingest"
	"dcf_valuation/pkg/core/projection"
	"dcf_valuation/pkg/core/store"
	"dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/models"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var validate = validator.New()

// Request describes one valuation. Zero fields take their defaults.
type Request struct {
	Ticker         string   `json:"ticker" validate:"required,max=16"`
	Strategy       string   `json:"strategy" default:"revenue_margin" validate:"required"`
	HorizonYears   int      `json:"horizon_years" default:"5" validate:"gte=1,lte=50"`
	TerminalGrowth *float64 `json:"terminal_growth" default:"0.03" validate:"required"`
}

// Outcome is a successful valuation
type Outcome struct {
	Company  *models.Company
	Strategy projection.StrategyKind
	WACC     valuation.WACCResult
	Table    *valuation.DCFTable
	Result   *valuation.ValuationResult
	RecordID string
}

// Recorder receives valuation metrics
type Recorder interface {
	RecordValuation(ticker, strategy string, price float64, err error)
	RecordDiscountRate(ticker string, rate float64)
}

// Orchestrator wires the market-data collaborator to the valuation core.
// Repository and recorder are optional.
type Orchestrator struct {
	market   valuation.MarketData
	repo     store.ValuationRepository
	recorder Recorder
	log      zerolog.Logger
	waccOpts []valuation.WACCOption
}

type Option func(*Orchestrator)

func WithRepository(repo store.ValuationRepository) Option {
	return func(o *Orchestrator) { o.repo = repo }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithWACCOptions forwards options (index, risk-free symbol, spread) to every estimator
func WithWACCOptions(opts ...valuation.WACCOption) Option {
	return func(o *Orchestrator) { o.waccOpts = append(o.waccOpts, opts...) }
}

func NewOrchestrator(market valuation.MarketData, opts ...Option) *Orchestrator {
	o := &Orchestrator{market: market, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Normalize applies defaults and validates the request in place
func (r *Request) Normalize() error {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if err := defaults.Set(r); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// Run values one company. A failed valuation returns no outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	kind, err := projection.ParseStrategyKind(req.Strategy)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := o.run(ctx, req, kind)
	if o.recorder != nil {
		price := 0.0
		if out != nil {
			price = out.Result.IntrinsicSharePrice
		}
		o.recorder.RecordValuation(req.Ticker, string(kind), price, err)
	}
	if err != nil {
		o.log.Warn().Err(err).Str("ticker", req.Ticker).Str("strategy", string(kind)).Msg("valuation failed")
		return nil, err
	}

	o.log.Info().
		Str("ticker", req.Ticker).
		Str("strategy", string(kind)).
		Float64("wacc", out.WACC.WACC).
		Float64("share_price", out.Result.IntrinsicSharePrice).
		Dur("elapsed", time.Since(start)).
		Msg("valuation complete")
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, kind projection.StrategyKind) (*Outcome, error) {
	// 1. Company facts and statements
	company, err := ingest.LoadCompany(ctx, o.market, req.Ticker)
	if err != nil {
		return nil, err
	}

	// 2. Discount rate
	opts := append([]valuation.WACCOption{valuation.WithLogger(o.log)}, o.waccOpts...)
	wacc, err := valuation.NewWACCEstimator(ctx, req.Ticker, o.market, opts...)
	if err != nil {
		return nil, err
	}
	if o.recorder != nil {
		o.recorder.RecordDiscountRate(req.Ticker, wacc.Estimate())
	}

	// 3. DCF
	engine := valuation.NewEngine(company, wacc, valuation.WithEngineLogger(o.log))
	table, result, err := engine.Run(kind, req.HorizonYears, *req.TerminalGrowth)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Company:  company,
		Strategy: kind,
		WACC:     wacc.Result(),
		Table:    table,
		Result:   result,
	}

	// 4. Storage
	if o.repo != nil {
		inputs := wacc.Inputs()
		rec := &store.ValuationRecord{
			Ticker:         req.Ticker,
			CompanyName:    company.Profile.Name,
			Strategy:       kind,
			HorizonYears:   req.HorizonYears,
			TerminalGrowth: *req.TerminalGrowth,
			Inputs:         &inputs,
			WACC:           &out.WACC,
			Table:          table,
			Result:         result,
		}
		if err := o.repo.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("storage failed: %w", err)
		}
		out.RecordID = rec.ID
	}
	return out, nil
}

// BatchResult pairs a request with its outcome or error
type BatchResult struct {
	Request Request
	Outcome *Outcome
	Err     error
}

// RunAll values every request with at most concurrency in flight. One
// ticker's failure does not cancel the others; results keep request order.
func (o *Orchestrator) RunAll(ctx context.Context, reqs []Request, concurrency int) []BatchResult {
	results := make([]BatchResult, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, req := range reqs {
		g.Go(func() error {
			out, err := o.Run(ctx, req)
			results[i] = BatchResult{Request: req, Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
