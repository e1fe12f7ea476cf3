// Package projection forecasts free cash flow from reported history.
// Each StrategyKind is one closed variant of the forecasting contract:
// same input (a company and a horizon), same output (a Schedule).
package projection

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/models"
)

var (
	ErrInvalidHorizon         = errors.New("forecast horizon must be at least one year")
	ErrUnknownStrategy        = errors.New("unknown forecast strategy")
	ErrStrategyNotImplemented = errors.New("forecast strategy not implemented")
)

// StrategyKind enumerates the cash-flow forecasting variants
type StrategyKind string

const (
	RevenueMargin     StrategyKind = "revenue_margin"
	NOPAT             StrategyKind = "nopat"
	OperatingCashFlow StrategyKind = "operating_cash_flow"

	// FreeCashFlowToEquity is reserved; its formula is not defined yet.
	FreeCashFlowToEquity StrategyKind = "fcfe"
)

// Strategies lists the implemented variants
var Strategies = []StrategyKind{RevenueMargin, NOPAT, OperatingCashFlow}

// ParseStrategyKind maps user input ("nopat", "Revenue-Margin", ...) to a kind
func ParseStrategyKind(s string) (StrategyKind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch StrategyKind(norm) {
	case RevenueMargin, NOPAT, OperatingCashFlow, FreeCashFlowToEquity:
		return StrategyKind(norm), nil
	case "fcf", "margin":
		return RevenueMargin, nil
	case "cfo", "cash_flow_operations":
		return OperatingCashFlow, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Schedule holds projected free cash flow for years 1..N. Callers must not mutate it.
type Schedule []float64

// Last returns the final forecast year
func (s Schedule) Last() float64 {
	return s[len(s)-1]
}

// Forecast projects free cash flow for horizonYears. Deterministic for identical inputs.
func (k StrategyKind) Forecast(c *models.Company, horizonYears int) (Schedule, error) {
	if horizonYears < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizonYears)
	}

	switch k {
	case RevenueMargin:
		return forecastRevenueMargin(c, horizonYears)
	case NOPAT:
		return forecastNOPAT(c, horizonYears)
	case OperatingCashFlow:
		return forecastOperatingCashFlow(c, horizonYears)
	case FreeCashFlowToEquity:
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotImplemented, k)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, string(k))
}

// =============================================================================
// VARIANTS
// =============================================================================

// FCF = revenue_t × mean(FCF)/revenue_0
func forecastRevenueMargin(c *models.Company, years int) (Schedule, error) {
	revenue, err := latestRequired(c, models.StatementIncome, models.Revenue)
	if err != nil {
		return nil, err
	}
	revenueGrowth, err := growth(c, models.StatementIncome, models.Revenue, true)
	if err != nil {
		return nil, err
	}

	avgFCF := meanOrZero(c, models.StatementCashFlow, models.FreeCashFlow)
	avgMargin := ratio(avgFCF, revenue)

	out := make(Schedule, 0, years)
	for year := 1; year <= years; year++ {
		revenue *= 1 + revenueGrowth
		out = append(out, revenue*avgMargin)
	}
	return out, nil
}

// FCF = NOPAT + depreciation - capex - ΔWC
func forecastNOPAT(c *models.Company, years int) (Schedule, error) {
	revenue, err := latestRequired(c, models.StatementIncome, models.Revenue)
	if err != nil {
		return nil, err
	}
	revenueGrowth, err := growth(c, models.StatementIncome, models.Revenue, true)
	if err != nil {
		return nil, err
	}
	capexGrowth, err := growth(c, models.StatementCashFlow, models.CapitalExpenditure, false)
	if err != nil {
		return nil, err
	}
	wcGrowth, err := growth(c, models.StatementCashFlow, models.ChangeInWorkingCapital, false)
	if err != nil {
		return nil, err
	}

	operatingIncome := latestOrZero(c, models.StatementIncome, models.OperatingIncome)
	operatingMargin := ratio(operatingIncome, revenue)
	taxRate := effectiveTaxRate(c)

	avgDepreciation := meanOrZero(c, models.StatementCashFlow, models.Depreciation)
	avgCapex := math.Abs(meanOrZero(c, models.StatementCashFlow, models.CapitalExpenditure))
	avgChangeInWC := meanOrZero(c, models.StatementCashFlow, models.ChangeInWorkingCapital)

	// Ratios are fixed off the base year
	capexToRevenue := ratio(avgCapex, revenue)

	out := make(Schedule, 0, years)
	for year := 1; year <= years; year++ {
		revenue *= 1 + revenueGrowth
		nopat := revenue * operatingMargin * (1 - taxRate)

		capex := revenue * capexToRevenue * (1 + capexGrowth)
		changeInWC := avgChangeInWC * (1 + wcGrowth)

		out = append(out, nopat+avgDepreciation-capex-changeInWC)
	}
	return out, nil
}

// FCF = CFO + interest × (1 - t) - capex
func forecastOperatingCashFlow(c *models.Company, years int) (Schedule, error) {
	cfo, err := latestRequired(c, models.StatementCashFlow, models.OperatingCashFlow)
	if err != nil {
		return nil, err
	}
	cfoGrowth, err := growth(c, models.StatementCashFlow, models.OperatingCashFlow, true)
	if err != nil {
		return nil, err
	}
	capexGrowth, err := growth(c, models.StatementCashFlow, models.CapitalExpenditure, false)
	if err != nil {
		return nil, err
	}

	interest := latestOrZero(c, models.StatementIncome, models.InterestExpense)
	capex := math.Abs(latestOrZero(c, models.StatementCashFlow, models.CapitalExpenditure))
	taxRate := effectiveTaxRate(c)

	interestToCFO := ratio(interest, cfo)

	out := make(Schedule, 0, years)
	for year := 1; year <= years; year++ {
		cfo *= 1 + cfoGrowth
		capex *= 1 + capexGrowth
		interest = cfo * interestToCFO

		out = append(out, cfo+interest*(1-taxRate)-capex)
	}
	return out, nil
}

// =============================================================================
// DRIVER HELPERS
// =============================================================================

// growth estimates a driver's rate. Secondary drivers with no history at all
// fall back to 0; any other estimator failure is returned with its input named.
func growth(c *models.Company, st models.StatementKind, item models.LineItem, primary bool) (float64, error) {
	series := c.Financials.Series(st, item)
	if !primary && len(series) == 0 {
		return 0, nil
	}
	rate, err := assumption.EstimateGrowthRate(series, assumption.DefaultBand)
	if err != nil {
		return 0, models.NewInputError(c.Ticker, st, item, err)
	}
	return rate, nil
}

func latestRequired(c *models.Company, st models.StatementKind, item models.LineItem) (float64, error) {
	v, ok := c.Financials.Latest(st, item)
	if !ok {
		return 0, models.NewInputError(c.Ticker, st, item, models.ErrMissingLineItem)
	}
	return v, nil
}

func latestOrZero(c *models.Company, st models.StatementKind, item models.LineItem) float64 {
	v, _ := c.Financials.Latest(st, item)
	return v
}

func meanOrZero(c *models.Company, st models.StatementKind, item models.LineItem) float64 {
	v, _ := c.Financials.Series(st, item).Mean()
	return v
}

func effectiveTaxRate(c *models.Company) float64 {
	provision, okP := c.Financials.Latest(models.StatementIncome, models.TaxProvision)
	pretax, okT := c.Financials.Latest(models.StatementIncome, models.PretaxIncome)
	if !okP || !okT {
		return 0
	}
	return ratio(provision, pretax)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
