package valuation

import (
	"fmt"
	"math"
	"strconv"

	"dcf_valuation/pkg/core/projection"
	"dcf_valuation/pkg/models"

	"github.com/rs/zerolog"
)

const (
	DefaultTerminalGrowth = 0.03
	TerminalLabel         = "Terminal Value"
)

// DiscountRateEstimator supplies the single rate used for a whole schedule
type DiscountRateEstimator interface {
	Estimate() float64
}

// FixedRate is a DiscountRateEstimator returning a constant
type FixedRate float64

func (r FixedRate) Estimate() float64 { return float64(r) }

// DCFRow is one period of the schedule. Year is 0 on the terminal row.
type DCFRow struct {
	Period     string  `json:"period"`
	Year       int     `json:"year"`
	Terminal   bool    `json:"terminal"`
	Forecasted float64 `json:"forecasted_fcf"`
	Discounted float64 `json:"discounted_fcf"`
}

// DCFTable holds N forecast rows followed by exactly one terminal row.
// Read-only once returned.
type DCFTable struct {
	Strategy       projection.StrategyKind `json:"strategy"`
	DiscountRate   float64                 `json:"discount_rate"`
	TerminalGrowth float64                 `json:"terminal_growth"`
	Rows           []DCFRow                `json:"rows"`
}

// TotalDiscounted sums every discounted value, terminal included
func (t *DCFTable) TotalDiscounted() float64 {
	total := 0.0
	for _, r := range t.Rows {
		total += r.Discounted
	}
	return total
}

// ForecastRows returns the rows for years 1..N
func (t *DCFTable) ForecastRows() []DCFRow {
	return t.Rows[:len(t.Rows)-1]
}

// TerminalRow returns the terminal value row
func (t *DCFTable) TerminalRow() DCFRow {
	return t.Rows[len(t.Rows)-1]
}

// ValuationResult is the per-company outcome of a DCF run
type ValuationResult struct {
	EquityValue         float64 `json:"equity_value"`
	IntrinsicSharePrice float64 `json:"intrinsic_share_price"`
}

// Engine runs forecast -> discount -> sum -> adjust -> divide for one company.
// Each step needs the previous one's artifact; recomputing a step discards
// whatever was derived from it.
type Engine struct {
	company *models.Company
	rates   DiscountRateEstimator
	log     zerolog.Logger

	table       *DCFTable
	equityValue *float64
}

// EngineOption customizes an Engine
type EngineOption func(*Engine)

func WithEngineLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine borrows the company and the discount-rate estimator
func NewEngine(company *models.Company, rates DiscountRateEstimator, opts ...EngineOption) *Engine {
	e := &Engine{company: company, rates: rates, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CalculateDCF forecasts with the strategy, appends the Gordon-growth terminal
// value and discounts every value at the estimator's rate.
func (e *Engine) CalculateDCF(strategy projection.StrategyKind, horizonYears int, terminalGrowth float64) (*DCFTable, error) {
	e.table = nil
	e.equityValue = nil

	// 1. Forecast
	forecast, err := strategy.Forecast(e.company, horizonYears)
	if err != nil {
		return nil, err
	}

	// 2. Discount rate
	rate := e.rates.Estimate()
	if rate <= terminalGrowth || math.IsNaN(rate) || math.IsNaN(terminalGrowth) {
		return nil, models.NewInputError(e.company.Ticker, "", "",
			fmt.Errorf("%w: discount rate %.4f, terminal growth %.4f", ErrInvalidDiscountRate, rate, terminalGrowth))
	}

	// 3. Terminal value (Gordon Growth)
	// TV = FCF_N * (1+g) / (r - g)
	tv := forecast.Last() * (1 + terminalGrowth) / (rate - terminalGrowth)

	// 4. Discount; TV shares the final year's exponent
	rows := make([]DCFRow, 0, len(forecast)+1)
	for i, fcf := range forecast {
		year := i + 1
		rows = append(rows, DCFRow{
			Period:     strconv.Itoa(year),
			Year:       year,
			Forecasted: fcf,
			Discounted: discount(fcf, rate, year),
		})
	}
	rows = append(rows, DCFRow{
		Period:     TerminalLabel,
		Terminal:   true,
		Forecasted: tv,
		Discounted: discount(tv, rate, horizonYears),
	})

	e.table = &DCFTable{
		Strategy:       strategy,
		DiscountRate:   rate,
		TerminalGrowth: terminalGrowth,
		Rows:           rows,
	}
	return e.table, nil
}

// CalculateEquityValue = Σ discounted + cash - debt
func (e *Engine) CalculateEquityValue() (float64, error) {
	if e.table == nil {
		return 0, ErrDCFNotCalculated
	}
	v := e.table.TotalDiscounted() + e.company.CashOrZero() - e.company.DebtOrZero()
	e.equityValue = &v
	return v, nil
}

// CalculateIntrinsicSharePrice = equity value / shares outstanding
func (e *Engine) CalculateIntrinsicSharePrice() (float64, error) {
	if e.equityValue == nil {
		return 0, ErrEquityNotCalculated
	}
	shares := e.company.SharesOutstanding()
	if shares == nil || *shares == 0 {
		return 0, models.NewInputError(e.company.Ticker, "", models.SharesOutstandingKey, ErrMissingShareCount)
	}
	return *e.equityValue / *shares, nil
}

// Run performs every step. On failure no table is returned, though an equity
// value computed before a share-count failure stays available via EquityValue.
func (e *Engine) Run(strategy projection.StrategyKind, horizonYears int, terminalGrowth float64) (*DCFTable, *ValuationResult, error) {
	table, err := e.CalculateDCF(strategy, horizonYears, terminalGrowth)
	if err != nil {
		return nil, nil, err
	}
	equity, err := e.CalculateEquityValue()
	if err != nil {
		return nil, nil, err
	}
	price, err := e.CalculateIntrinsicSharePrice()
	if err != nil {
		return nil, nil, err
	}

	e.log.Debug().
		Str("ticker", e.company.Ticker).
		Str("strategy", string(strategy)).
		Int("horizon_years", horizonYears).
		Float64("discount_rate", table.DiscountRate).
		Float64("equity_value", equity).
		Float64("share_price", price).
		Msg("dcf valuation complete")

	return table, &ValuationResult{EquityValue: equity, IntrinsicSharePrice: price}, nil
}

// Table returns the last computed table, nil before CalculateDCF succeeds
func (e *Engine) Table() *DCFTable {
	return e.table
}

// EquityValue returns the last computed equity value
func (e *Engine) EquityValue() (float64, bool) {
	if e.equityValue == nil {
		return 0, false
	}
	return *e.equityValue, true
}

func discount(v, rate float64, period int) float64 {
	return v / math.Pow(1+rate, float64(period))
}
