package valuation

import (
	"context"
	"fmt"
	"sort"

	"dcf_valuation/pkg/models"

	"github.com/rs/zerolog"
)

const (
	DefaultRiskFreeSymbol   = "^TNX"  // 10-year Treasury yield, quoted in percent
	DefaultMarketIndex      = "^GSPC" // S&P 500 price index
	DefaultMarketBondSpread = 0.02
	DefaultTaxRate          = 0.21
	DefaultBeta             = 1.0
)

// RiskFreeWindows are tried in order until one yields a close
var RiskFreeWindows = []models.Window{
	models.Window1Day,
	models.Window5Days,
	models.Window1Month,
	models.Window3Months,
}

// MarketData is the external market-data collaborator
type MarketData interface {
	PriceHistory(ctx context.Context, symbol string, window models.Window) ([]models.PricePoint, error)
	Profile(ctx context.Context, ticker string) (*models.CompanyProfile, error)
	Statements(ctx context.Context, ticker string) (models.FinancialStatementSet, error)
}

// CostOfCapitalInputs are the scalars fetched once per valuation
type CostOfCapitalInputs struct {
	RiskFreeRate float64 `json:"risk_free_rate"`
	MarketReturn float64 `json:"market_return"`
	Beta         float64 `json:"beta"`
	EquityValue  float64 `json:"equity_value"` // Market capitalization
	DebtValue    float64 `json:"debt_value"`
	TaxRate      float64 `json:"tax_rate"`
}

// WACCInput parameters for calculating Cost of Capital
type WACCInput struct {
	CostOfCapitalInputs
	InterestExpense *float64 `json:"interest_expense,omitempty"` // Most recent, nil when unreported
	BondSpread      float64  `json:"bond_spread"`                // Added to the risk-free rate when cost of debt cannot be observed
}

// WACCResult holds the calculated rates
type WACCResult struct {
	CostOfEquity float64 `json:"cost_of_equity"`
	CostOfDebt   float64 `json:"cost_of_debt"` // Pre-tax
	WeightEquity float64 `json:"weight_equity"`
	WeightDebt   float64 `json:"weight_debt"`
	WACC         float64 `json:"wacc"`
}

// CalculateWACC blends CAPM cost of equity with after-tax cost of debt
func CalculateWACC(input WACCInput) WACCResult {
	in := input.CostOfCapitalInputs

	// 1. Cost of Equity (CAPM)
	// Ke = Rf + Beta * (Rm - Rf)
	ke := in.RiskFreeRate + in.Beta*(in.MarketReturn-in.RiskFreeRate)

	// 2. Cost of Debt (Pre-tax)
	// Observed interest / debt, else Rf + spread
	kd := in.RiskFreeRate + input.BondSpread
	if input.InterestExpense != nil && in.DebtValue != 0 {
		kd = *input.InterestExpense / in.DebtValue
	}

	// 3. Weights (both 0 when the firm has no value)
	var we, wd float64
	if total := in.EquityValue + in.DebtValue; total != 0 {
		we = in.EquityValue / total
		wd = 1 - we
	}

	// 4. WACC
	wacc := we*ke + wd*kd*(1-in.TaxRate)

	return WACCResult{
		CostOfEquity: ke,
		CostOfDebt:   kd,
		WeightEquity: we,
		WeightDebt:   wd,
		WACC:         wacc,
	}
}

// =============================================================================
// ESTIMATOR
// =============================================================================

type waccOptions struct {
	riskFreeSymbol string
	marketIndex    string
	bondSpread     float64
	defaultTaxRate float64
	log            zerolog.Logger
}

// WACCOption customizes a WACCEstimator
type WACCOption func(*waccOptions)

// WithRiskFreeSymbol sets the benchmark quoted in percent (default ^TNX)
func WithRiskFreeSymbol(symbol string) WACCOption {
	return func(o *waccOptions) { o.riskFreeSymbol = symbol }
}

// WithMarketIndex sets the broad index, e.g. ^SP500TR or ^RUA (default ^GSPC)
func WithMarketIndex(symbol string) WACCOption {
	return func(o *waccOptions) { o.marketIndex = symbol }
}

func WithBondSpread(spread float64) WACCOption {
	return func(o *waccOptions) { o.bondSpread = spread }
}

func WithDefaultTaxRate(rate float64) WACCOption {
	return func(o *waccOptions) { o.defaultTaxRate = rate }
}

// WithLogger receives debug events for intermediate rates
func WithLogger(l zerolog.Logger) WACCOption {
	return func(o *waccOptions) { o.log = l }
}

// WACCEstimator fetches cost-of-capital inputs for one ticker at construction
// and caches the resulting rate. Not meant to be shared across tickers.
type WACCEstimator struct {
	ticker string
	input  WACCInput
	result WACCResult
}

// NewWACCEstimator reads market data once and computes the discount rate
func NewWACCEstimator(ctx context.Context, ticker string, md MarketData, opts ...WACCOption) (*WACCEstimator, error) {
	o := waccOptions{
		riskFreeSymbol: DefaultRiskFreeSymbol,
		marketIndex:    DefaultMarketIndex,
		bondSpread:     DefaultMarketBondSpread,
		defaultTaxRate: DefaultTaxRate,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	riskFree, err := fetchRiskFreeRate(ctx, md, o.riskFreeSymbol)
	if err != nil {
		return nil, err
	}

	marketReturn, err := fetchMarketReturn(ctx, md, o.marketIndex)
	if err != nil {
		return nil, err
	}

	profile, err := md.Profile(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch profile: %w", ticker, err)
	}
	statements, err := md.Statements(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch statements: %w", ticker, err)
	}

	input := WACCInput{
		CostOfCapitalInputs: CostOfCapitalInputs{
			RiskFreeRate: riskFree,
			MarketReturn: marketReturn,
			Beta:         DefaultBeta,
			TaxRate:      effectiveTaxRate(statements, o.defaultTaxRate),
		},
		BondSpread: o.bondSpread,
	}
	if profile.Beta != nil {
		input.Beta = *profile.Beta
	}
	if profile.MarketCap != nil {
		input.EquityValue = *profile.MarketCap
	}
	if debt, ok := statements.Latest(models.StatementBalanceSheet, models.TotalDebt); ok {
		input.DebtValue = debt
	}
	if interest, ok := statements.Latest(models.StatementIncome, models.InterestExpense); ok {
		input.InterestExpense = &interest
	}

	w := &WACCEstimator{ticker: ticker, input: input, result: CalculateWACC(input)}

	o.log.Debug().
		Str("ticker", ticker).
		Float64("risk_free_rate", input.RiskFreeRate).
		Float64("beta", input.Beta).
		Float64("market_return", input.MarketReturn).
		Float64("cost_of_equity", w.result.CostOfEquity).
		Float64("cost_of_debt", w.result.CostOfDebt).
		Float64("wacc", w.result.WACC).
		Msg("wacc estimated")

	return w, nil
}

// Estimate returns the cached discount rate
func (w *WACCEstimator) Estimate() float64 {
	return w.result.WACC
}

// Inputs returns the fetched scalars
func (w *WACCEstimator) Inputs() CostOfCapitalInputs {
	return w.input.CostOfCapitalInputs
}

// Result returns the full breakdown behind Estimate
func (w *WACCEstimator) Result() WACCResult {
	return w.result
}

// =============================================================================
// INPUT HELPERS
// =============================================================================

func fetchRiskFreeRate(ctx context.Context, md MarketData, symbol string) (float64, error) {
	for _, window := range RiskFreeWindows {
		points, err := md.PriceHistory(ctx, symbol, window)
		if err != nil {
			return 0, fmt.Errorf("%s: fetch %s history: %w", symbol, window, err)
		}
		if len(points) > 0 {
			return points[len(points)-1].Close / 100, nil
		}
	}
	return 0, models.NewInputError(symbol, "", "", ErrNoRateAvailable)
}

func fetchMarketReturn(ctx context.Context, md MarketData, symbol string) (float64, error) {
	points, err := md.PriceHistory(ctx, symbol, models.WindowMax)
	if err != nil {
		return 0, fmt.Errorf("%s: fetch max history: %w", symbol, err)
	}
	returns := YearlyReturns(points)
	if len(returns) == 0 {
		return 0, models.NewInputError(symbol, "", "", ErrInsufficientMarketHistory)
	}
	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	return sum / float64(len(returns)), nil
}

// YearlyReturns takes each calendar year's last close, carries it forward
// across years with no data, and returns the year-over-year changes.
func YearlyReturns(points []models.PricePoint) []float64 {
	if len(points) == 0 {
		return nil
	}
	sorted := append([]models.PricePoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	yearEnd := make(map[int]float64)
	for _, p := range sorted {
		yearEnd[p.Time.UTC().Year()] = p.Close
	}
	first := sorted[0].Time.UTC().Year()
	last := sorted[len(sorted)-1].Time.UTC().Year()

	var returns []float64
	prev := yearEnd[first]
	for y := first + 1; y <= last; y++ {
		cur, ok := yearEnd[y]
		if !ok {
			cur = prev
		}
		if prev != 0 {
			returns = append(returns, cur/prev-1)
		}
		prev = cur
	}
	return returns
}

func effectiveTaxRate(fs models.FinancialStatementSet, fallback float64) float64 {
	provision, okP := fs.Latest(models.StatementIncome, models.TaxProvision)
	pretax, okT := fs.Latest(models.StatementIncome, models.PretaxIncome)
	if !okP || !okT || pretax == 0 {
		return fallback
	}
	return provision / pretax
}
